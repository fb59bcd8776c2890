package app

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ThePuug/closed-economy/internal/config"
	"github.com/ThePuug/closed-economy/logging"
	loggingSinks "github.com/ThePuug/closed-economy/logging/sinks"
)

// newRouter builds the structured event router for the configured sinks.
// The returned cleanup closes any file the JSON sink writes to and must run
// after the router is closed.
func newRouter(cfg config.LoggingConfig, stdout io.Writer, fallback *log.Logger) (*logging.Router, func(), error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	routerCfg := cfg.Router()
	cleanup := func() {}

	sinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsoleSink(stdout)},
		{Name: "zerolog", Sink: loggingSinks.NewZerolog(stdout, false)},
	}
	if routerCfg.HasSink("json") {
		var w io.Writer = stdout
		if routerCfg.JSON.FilePath != "" {
			file, err := os.OpenFile(routerCfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, cleanup, fmt.Errorf("open json log %s: %w", routerCfg.JSON.FilePath, err)
			}
			w = file
			cleanup = func() { file.Close() }
		}
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(w, routerCfg.JSON.FlushInterval)})
	}

	router, err := logging.NewRouter(logging.SystemClock{}, routerCfg, fallback, sinks)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to construct logging router: %w", err)
	}
	return router, cleanup, nil
}
