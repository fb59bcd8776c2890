package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ThePuug/closed-economy/internal/authority"
	"github.com/ThePuug/closed-economy/internal/config"
	"github.com/ThePuug/closed-economy/internal/net/ws"
	"github.com/ThePuug/closed-economy/internal/reconcile"
	"github.com/ThePuug/closed-economy/internal/telemetry"
	"github.com/ThePuug/closed-economy/internal/terrain"
	"github.com/ThePuug/closed-economy/internal/ui"
	"github.com/ThePuug/closed-economy/internal/world"
	"github.com/ThePuug/closed-economy/logging"
)

// ClientOptions carries process-level collaborators. Every field is optional.
type ClientOptions struct {
	Logger *log.Logger
	Stdout io.Writer
}

// ClientReport summarises a finished client run.
type ClientReport struct {
	TID     string
	Frames  uint64
	Pending int
	Tiles   int
	Actors  int
	Overlay int
}

// RunClient connects to the host and drives a reconciling session until ctx
// is cancelled, the configured duration elapses or the host goes away.
func RunClient(ctx context.Context, cfg config.Config, opts ClientOptions) (ClientReport, error) {
	var report ClientReport
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	telemetryLogger := telemetry.WrapLogger(logger)

	router, closeSinks, err := newRouter(cfg.Logging, opts.Stdout, logger)
	if err != nil {
		return report, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
		closeSinks()
	}()

	conn, err := ws.Dial(ctx, cfg.Client.URL, ws.ClientConfig{Logger: logger})
	if err != nil {
		return report, fmt.Errorf("dial %s: %w", cfg.Client.URL, err)
	}
	defer conn.Close()

	metrics := &logging.Metrics{}
	scene := world.New(cfg.Movement(), world.Deps{Field: terrain.New(cfg.Host.Seed), Logger: telemetryLogger})
	overlay := ui.NewOverlay()
	registry := authority.NewRegistry().
		Register(authority.KeyScene, scene).
		Register(authority.KeyOverlay, overlay).
		Register(authority.KeyActionBar, ui.NewActionBar(ui.DefaultPanel))
	client := reconcile.New(reconcile.Config{}, reconcile.Deps{
		Registry:    registry,
		Transmitter: conn,
		Logger:      telemetryLogger,
		Publisher:   router,
		Metrics:     telemetry.WrapMetrics(metrics),
	})
	client.Begin()
	defer client.End()

	frame := time.Second / time.Duration(cfg.Client.FrameRate)
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if cfg.Client.Duration > 0 {
		timer := time.NewTimer(cfg.Client.Duration)
		defer timer.Stop()
		deadline = timer.C
	}

	var driver *bot
	if cfg.Client.Bot {
		driver = newBot(client, cfg.Client.BotTurn)
	}

	var runErr error
	last := time.Now()
run:
	for {
		select {
		case <-ctx.Done():
			break run
		case <-deadline:
			break run
		case <-conn.Done():
			if err := conn.Err(); err != nil && err != ws.ErrClosed {
				runErr = fmt.Errorf("connection lost: %w", err)
			}
			break run
		case now := <-ticker.C:
			drainInbox(conn, client)
			dt := now.Sub(last).Seconds()
			last = now
			if driver != nil {
				driver.step(now)
			}
			scene.Update(dt, client.Keys().Heading())
			report.Frames++
			client.SetTick(report.Frames)
		}
	}

	report.TID = string(client.TID())
	report.Pending = len(client.Pending())
	report.Tiles = len(scene.Tiles())
	report.Actors = len(scene.Actors())
	report.Overlay = overlay.Opened()
	logger.Printf("client %s finished after %d frames: %d pending, %d tiles, %d actors",
		report.TID, report.Frames, report.Pending, report.Tiles, report.Actors)
	return report, runErr
}

// drainInbox applies every confirmation that has arrived since the last
// frame.
func drainInbox(conn *ws.Client, client *reconcile.Client) {
	for {
		select {
		case msg, ok := <-conn.Inbox():
			if !ok {
				return
			}
			client.ReceiveConfirmation(msg.TID, msg.Event, msg.Broadcast, msg.Sequence())
		default:
			return
		}
	}
}

// bot walks along one direction at a time, turning every interval, and
// opens and closes the overlay every few turns.
type bot struct {
	client   *reconcile.Client
	interval time.Duration
	keys     []string
	next     time.Time
	turn     int
	held     string
}

func newBot(client *reconcile.Client, interval time.Duration) *bot {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &bot{client: client, interval: interval, keys: ui.MovementKeys()}
}

func (b *bot) step(now time.Time) {
	if !b.client.Playing() || now.Before(b.next) {
		return
	}
	b.next = now.Add(b.interval)
	if b.client.OverlayActive() {
		b.client.HandleKey(ui.KeyEscape, true)
		return
	}
	if b.held != "" {
		b.client.HandleKey(b.held, false)
		b.held = ""
	}
	b.turn++
	if b.turn%4 == 0 {
		b.client.HandleKey(ui.KeyOverlay, true)
		return
	}
	b.held = b.keys[b.turn%len(b.keys)]
	b.client.HandleKey(b.held, true)
}
