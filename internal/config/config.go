// Package config loads host and client settings. Values start from
// Default, are overlaid by an optional TOML file and finally by environment
// variables prefixed with CLOSED_ECONOMY_.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/ThePuug/closed-economy/internal/hex"
	"github.com/ThePuug/closed-economy/internal/world"
	"github.com/ThePuug/closed-economy/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CLOSED_ECONOMY_"

var (
	ErrInvalidHost    = errors.New("config: invalid host setting")
	ErrInvalidClient  = errors.New("config: invalid client setting")
	ErrInvalidLogging = errors.New("config: invalid logging setting")
)

type Config struct {
	Host    HostConfig    `toml:"host" envPrefix:"HOST_"`
	Client  ClientConfig  `toml:"client" envPrefix:"CLIENT_"`
	Logging LoggingConfig `toml:"logging" envPrefix:"LOGGING_"`
}

type HostConfig struct {
	Addr            string  `toml:"addr" env:"ADDR"`
	TickRate        int     `toml:"tick_rate" env:"TICK_RATE"`
	CatchupMaxTicks int     `toml:"catchup_max_ticks" env:"CATCHUP_MAX_TICKS"`
	CommandCapacity int     `toml:"command_capacity" env:"COMMAND_CAPACITY"`
	PerSessionLimit int     `toml:"per_session_limit" env:"PER_SESSION_LIMIT"`
	Coalesce        bool    `toml:"coalesce" env:"COALESCE"`
	RateLimit       float64 `toml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst       int     `toml:"rate_burst" env:"RATE_BURST"`
	Seed            uint64  `toml:"seed" env:"SEED"`
	SpawnKind       string  `toml:"spawn_kind" env:"SPAWN_KIND"`
	SpawnQ          int     `toml:"spawn_q" env:"SPAWN_Q"`
	SpawnR          int     `toml:"spawn_r" env:"SPAWN_R"`
	MoveSpeed       float64 `toml:"move_speed" env:"MOVE_SPEED"`
	MoveTolerance   float64 `toml:"move_tolerance" env:"MOVE_TOLERANCE"`
	// MaxMoveDt caps the seconds one move may claim. Zero derives the cap
	// from the tick budget and the catch-up window.
	MaxMoveDt float64 `toml:"max_move_dt" env:"MAX_MOVE_DT"`
	// SnapshotPath names the SQLite snapshot store. Empty keeps snapshots
	// in memory only.
	SnapshotPath string `toml:"snapshot_path" env:"SNAPSHOT_PATH"`
	Pprof        bool   `toml:"pprof" env:"PPROF"`
}

type ClientConfig struct {
	URL       string        `toml:"url" env:"URL"`
	FrameRate int           `toml:"frame_rate" env:"FRAME_RATE"`
	Predict   bool          `toml:"predict" env:"PREDICT"`
	Bot       bool          `toml:"bot" env:"BOT"`
	BotTurn   time.Duration `toml:"bot_turn" env:"BOT_TURN"`
	Duration  time.Duration `toml:"duration" env:"DURATION"`
}

type LoggingConfig struct {
	Sinks      []string `toml:"sinks" env:"SINKS" envSeparator:","`
	Level      string   `toml:"level" env:"LEVEL"`
	BufferSize int      `toml:"buffer_size" env:"BUFFER_SIZE"`
	JSONPath   string   `toml:"json_path" env:"JSON_PATH"`
}

func Default() Config {
	movement := world.DefaultConfig()
	return Config{
		Host: HostConfig{
			Addr:            ":8080",
			TickRate:        15,
			CatchupMaxTicks: 2,
			CommandCapacity: 1024,
			PerSessionLimit: 64,
			Coalesce:        true,
			RateLimit:       60,
			RateBurst:       30,
			SpawnKind:       "wanderer",
			MoveSpeed:       movement.MoveSpeed,
			MoveTolerance:   movement.MoveTolerance,
		},
		Client: ClientConfig{
			URL:       "ws://localhost:8080/ws",
			FrameRate: 30,
			Predict:   true,
			BotTurn:   2 * time.Second,
		},
		Logging: LoggingConfig{
			Sinks:      []string{"console"},
			Level:      "info",
			BufferSize: 512,
		},
	}
}

// Load builds the configuration. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	h := c.Host
	switch {
	case strings.TrimSpace(h.Addr) == "":
		return fmt.Errorf("%w: addr is required", ErrInvalidHost)
	case h.TickRate <= 0:
		return fmt.Errorf("%w: tick_rate must be positive, got %d", ErrInvalidHost, h.TickRate)
	case h.CommandCapacity <= 0:
		return fmt.Errorf("%w: command_capacity must be positive, got %d", ErrInvalidHost, h.CommandCapacity)
	case h.PerSessionLimit < 0:
		return fmt.Errorf("%w: per_session_limit must not be negative, got %d", ErrInvalidHost, h.PerSessionLimit)
	case h.RateLimit < 0:
		return fmt.Errorf("%w: rate_limit must not be negative, got %v", ErrInvalidHost, h.RateLimit)
	case h.MoveSpeed <= 0:
		return fmt.Errorf("%w: move_speed must be positive, got %v", ErrInvalidHost, h.MoveSpeed)
	case h.MaxMoveDt < 0:
		return fmt.Errorf("%w: max_move_dt must not be negative, got %v", ErrInvalidHost, h.MaxMoveDt)
	case h.MoveTolerance < 0:
		return fmt.Errorf("%w: move_tolerance must not be negative, got %v", ErrInvalidHost, h.MoveTolerance)
	}

	cl := c.Client
	switch {
	case !strings.HasPrefix(cl.URL, "ws://") && !strings.HasPrefix(cl.URL, "wss://"):
		return fmt.Errorf("%w: url must use ws or wss, got %q", ErrInvalidClient, cl.URL)
	case cl.FrameRate <= 0:
		return fmt.Errorf("%w: frame_rate must be positive, got %d", ErrInvalidClient, cl.FrameRate)
	case cl.Duration < 0:
		return fmt.Errorf("%w: duration must not be negative, got %v", ErrInvalidClient, cl.Duration)
	}

	if _, ok := logging.ParseSeverity(c.Logging.Level); !ok {
		return fmt.Errorf("%w: unknown level %q", ErrInvalidLogging, c.Logging.Level)
	}
	for _, sink := range c.Logging.Sinks {
		switch sink {
		case "console", "json", "zerolog":
		default:
			return fmt.Errorf("%w: unknown sink %q", ErrInvalidLogging, sink)
		}
	}
	return nil
}

// Movement returns the movement settings shared by host and client scenes.
func (c Config) Movement() world.Config {
	return world.Config{
		MoveSpeed:     c.Host.MoveSpeed,
		MoveTolerance: c.Host.MoveTolerance,
		MaxMoveDt:     c.Host.MoveDtCap(),
		Predict:       c.Client.Predict,
	}
}

// MoveDtCap returns the longest dt a move may claim. Coalescing folds one
// tick of client frames into a move, and a late tick may carry up to
// CatchupMaxTicks more.
func (h HostConfig) MoveDtCap() float64 {
	if h.MaxMoveDt > 0 {
		return h.MaxMoveDt
	}
	if h.TickRate <= 0 {
		return world.DefaultMaxMoveDt
	}
	catchup := h.CatchupMaxTicks
	if catchup < 1 {
		catchup = 1
	}
	return float64(catchup+1) / float64(h.TickRate)
}

// Spawn returns the configured spawn hex.
func (h HostConfig) Spawn() hex.Hx {
	return hex.Hx{Q: h.SpawnQ, R: h.SpawnR}
}

// Router maps the logging section onto the router configuration.
func (l LoggingConfig) Router() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = append([]string(nil), l.Sinks...)
	if severity, ok := logging.ParseSeverity(l.Level); ok {
		cfg.MinimumSeverity = severity
	}
	if l.BufferSize > 0 {
		cfg.BufferSize = l.BufferSize
	}
	cfg.JSON.FilePath = l.JSONPath
	return cfg
}
