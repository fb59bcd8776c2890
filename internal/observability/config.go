// Package observability mounts opt-in debugging endpoints.
package observability

import (
	nethttp "net/http"
	"net/http/pprof"
)

// Config captures opt-in observability toggles that wire into the host.
type Config struct {
	EnablePprofTrace bool
}

// Register mounts the enabled endpoints on mux and reports whether any were
// added.
func Register(mux *nethttp.ServeMux, cfg Config) bool {
	if !cfg.EnablePprofTrace {
		return false
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return true
}
