package main

import "testing"

func TestViolates(t *testing.T) {
	tests := []struct {
		pkg, imp string
		want     bool
	}{
		{module + "internal/authority", module + "internal/net/ws", true},
		{module + "internal/reconcile", module + "internal/net/proto", true},
		{module + "internal/event", module + "internal/dispatch", true},
		{module + "internal/event", module + "internal/hex", false},
		{module + "internal/authority", module + "internal/world", false},
		{module + "internal/net/ws", module + "internal/sim", false},
		{module + "internal/event", "fmt", false},
	}
	for _, tt := range tests {
		if _, got := violates(tt.pkg, tt.imp); got != tt.want {
			t.Fatalf("violates(%s, %s) = %v, want %v", tt.pkg, tt.imp, got, tt.want)
		}
	}
}
