// Package net assembles the host's HTTP surface.
package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"time"

	"github.com/ThePuug/closed-economy/internal/observability"
)

// Upgrader serves the websocket endpoint. ws.Server satisfies it.
type Upgrader interface {
	Handle(w nethttp.ResponseWriter, r *nethttp.Request)
	Sessions() int
}

// Diagnostics reports host loop state. sim.Loop satisfies it.
type Diagnostics interface {
	Tick() uint64
	Pending() int
}

type HTTPHandlerConfig struct {
	Logger        *log.Logger
	TickRate      int
	Telemetry     func() map[string]uint64
	Observability observability.Config
}

func NewHTTPHandler(ws Upgrader, loop Diagnostics, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var telemetry map[string]uint64
		if cfg.Telemetry != nil {
			telemetry = cfg.Telemetry()
		}
		payload := struct {
			Status     string            `json:"status"`
			ServerTime int64             `json:"serverTime"`
			Tick       uint64            `json:"tick"`
			TickRate   int               `json:"tickRate"`
			Sessions   int               `json:"sessions"`
			Pending    int               `json:"pendingCommands"`
			Telemetry  map[string]uint64 `json:"telemetry"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Tick:       loop.Tick(),
			TickRate:   cfg.TickRate,
			Sessions:   ws.Sessions(),
			Pending:    loop.Pending(),
			Telemetry:  telemetry,
		}

		data, err := json.Marshal(payload)
		if err != nil {
			logger.Printf("failed to encode diagnostics: %v", err)
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/ws", ws.Handle)

	if observability.Register(mux, cfg.Observability) {
		logger.Printf("pprof endpoints enabled under /debug/pprof/")
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
