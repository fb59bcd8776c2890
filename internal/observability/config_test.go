package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterHonoursToggle(t *testing.T) {
	mux := http.NewServeMux()
	if Register(mux, Config{}) {
		t.Fatalf("expected nothing mounted when disabled")
	}
	resp := httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when disabled, got %d", resp.Code)
	}

	mux = http.NewServeMux()
	if !Register(mux, Config{EnablePprofTrace: true}) {
		t.Fatalf("expected endpoints mounted when enabled")
	}
	resp = httptest.NewRecorder()
	mux.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 when enabled, got %d", resp.Code)
	}
}
