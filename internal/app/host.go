// Package app wires the host and client processes from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	stdnet "net"
	"net/http"
	"time"

	"github.com/ThePuug/closed-economy/internal/authority"
	"github.com/ThePuug/closed-economy/internal/config"
	"github.com/ThePuug/closed-economy/internal/event"
	servernet "github.com/ThePuug/closed-economy/internal/net"
	"github.com/ThePuug/closed-economy/internal/net/ws"
	"github.com/ThePuug/closed-economy/internal/observability"
	"github.com/ThePuug/closed-economy/internal/sim"
	"github.com/ThePuug/closed-economy/internal/storage"
	"github.com/ThePuug/closed-economy/internal/telemetry"
	"github.com/ThePuug/closed-economy/internal/terrain"
	"github.com/ThePuug/closed-economy/internal/world"
	"github.com/ThePuug/closed-economy/logging"
	"github.com/ThePuug/closed-economy/logging/lifecycle"
)

const (
	shutdownTimeout = 5 * time.Second
	// persistTimeout bounds the final snapshot save on its own, after the
	// transport and loop have stopped.
	persistTimeout = 5 * time.Second
)

// HostOptions carries process-level collaborators. Every field is optional.
type HostOptions struct {
	Logger *log.Logger
	Stdout io.Writer
	// Listener replaces listening on cfg.Host.Addr.
	Listener stdnet.Listener
	// Ready receives the bound address once the host is serving.
	Ready chan<- string
}

// RunHost serves the host until ctx is cancelled, then persists the scene
// and returns the session outcome.
func RunHost(ctx context.Context, cfg config.Config, opts HostOptions) (authority.SessionEnd, error) {
	failed := authority.SessionEnd{Code: authority.ExitPersistFail}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	telemetryLogger := telemetry.WrapLogger(logger)

	router, closeSinks, err := newRouter(cfg.Logging, opts.Stdout, logger)
	if err != nil {
		return failed, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
		closeSinks()
	}()

	metrics := &logging.Metrics{}
	hostMetrics := telemetry.WrapMetrics(metrics)

	var store *storage.Store
	if cfg.Host.SnapshotPath != "" {
		store, err = storage.Open(cfg.Host.SnapshotPath)
		if err != nil {
			return failed, err
		}
		defer store.Close()
	}
	archive := storage.Archive{Store: store}

	movement := cfg.Movement()
	movement.Predict = false
	scene := world.New(movement, world.Deps{Field: terrain.New(cfg.Host.Seed), Logger: telemetryLogger})
	restored, ok, err := archive.Latest(ctx)
	if err != nil {
		return failed, fmt.Errorf("restore scene: %w", err)
	}
	if ok {
		// Actors belonged to sessions that no longer exist.
		scene.Restore(event.SceneState{Tiles: restored.Tiles})
		logger.Printf("restored %d tiles from snapshot", len(restored.Tiles))
	}

	host := authority.New(authority.Config{
		SpawnKind: cfg.Host.SpawnKind,
		Spawn:     cfg.Host.Spawn(),
		Movement:  movement,
	}, authority.Deps{
		Registry:  authority.NewRegistry().Register(authority.KeyScene, scene),
		Scene:     scene,
		Actors:    world.Factory{},
		Persister: archive,
		Logger:    telemetryLogger,
		Publisher: router,
		Metrics:   hostMetrics,
	})
	host.Begin()
	defer host.End()

	var loop *sim.Loop
	loop = sim.NewLoop(host, sim.LoopConfig{
		TickRate:        cfg.Host.TickRate,
		CatchupMaxTicks: cfg.Host.CatchupMaxTicks,
		CommandCapacity: cfg.Host.CommandCapacity,
		PerSessionLimit: cfg.Host.PerSessionLimit,
		Coalesce:        cfg.Host.Coalesce,
	}, sim.LoopHooks{
		OnDisconnect: func(tick uint64, cmd sim.Command, unloaded int) {
			lifecycle.SessionLeft(context.Background(), router, tick, logging.SessionRef(string(cmd.TID)), lifecycle.SessionLeftPayload{
				Reason:   cmd.Reason,
				Unloaded: unloaded,
			})
			loop.Forget(cmd.TID)
		},
	}, sim.Deps{Logger: telemetryLogger, Metrics: hostMetrics})

	transport := ws.NewServer(loop, ws.ServerConfig{
		Logger:    logger,
		Publisher: router,
		Metrics:   hostMetrics,
		RateLimit: cfg.Host.RateLimit,
		Burst:     cfg.Host.RateBurst,
	})
	host.SetTransmitter(transport)

	handler := servernet.NewHTTPHandler(transport, loop, servernet.HTTPHandlerConfig{
		Logger:   logger,
		TickRate: cfg.Host.TickRate,
		Telemetry: func() map[string]uint64 {
			snapshot := metrics.Snapshot()
			router.Export(func(key string, value uint64) { snapshot[key] = value })
			return snapshot
		},
		Observability: observability.Config{EnablePprofTrace: cfg.Host.Pprof},
	})

	listener := opts.Listener
	if listener == nil {
		listener, err = stdnet.Listen("tcp", cfg.Host.Addr)
		if err != nil {
			return failed, fmt.Errorf("listen on %s: %w", cfg.Host.Addr, err)
		}
	}
	srv := &http.Server{Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan struct{})
	loopDone := make(chan struct{})
	go func() {
		loop.Run(stop)
		close(loopDone)
	}()

	logger.Printf("host listening on %s", listener.Addr())
	if opts.Ready != nil {
		opts.Ready <- listener.Addr().String()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	transport.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("failed to shut down http server: %v", err)
	}
	close(stop)
	<-loopDone

	end, err := persistSession(host, persistTimeout)
	if err != nil {
		return end, errors.Join(runErr, err)
	}
	return end, runErr
}

type sessionEnder interface {
	OnSessionEnd(ctx context.Context) (authority.SessionEnd, error)
}

// persistSession runs the final save under its own deadline.
func persistSession(host sessionEnder, timeout time.Duration) (authority.SessionEnd, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return host.OnSessionEnd(ctx)
}
