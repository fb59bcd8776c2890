package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ThePuug/closed-economy/internal/hex"
	"github.com/ThePuug/closed-economy/logging"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
[host]
addr = ":9000"
tick_rate = 20
spawn_q = 2
spawn_r = -1

[client]
bot = true
bot_turn = "500ms"

[logging]
sinks = ["console", "zerolog"]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Host.Addr != ":9000" || cfg.Host.TickRate != 20 {
		t.Fatalf("expected file host values, got %+v", cfg.Host)
	}
	if cfg.Host.CommandCapacity != Default().Host.CommandCapacity {
		t.Fatalf("expected unset keys to keep defaults, got %d", cfg.Host.CommandCapacity)
	}
	if got := cfg.Host.Spawn(); got != (hex.Hx{Q: 2, R: -1}) {
		t.Fatalf("unexpected spawn %+v", got)
	}
	if !cfg.Client.Bot || cfg.Client.BotTurn != 500*time.Millisecond {
		t.Fatalf("unexpected client values %+v", cfg.Client)
	}
	router := cfg.Logging.Router()
	if router.MinimumSeverity != logging.SeverityDebug || !router.HasSink("zerolog") {
		t.Fatalf("unexpected router config %+v", router)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "[host]\naddr = \":9000\"\n")
	t.Setenv("CLOSED_ECONOMY_HOST_ADDR", ":7000")
	t.Setenv("CLOSED_ECONOMY_HOST_COALESCE", "false")
	t.Setenv("CLOSED_ECONOMY_LOGGING_SINKS", "json,console")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Host.Addr != ":7000" {
		t.Fatalf("expected env addr, got %q", cfg.Host.Addr)
	}
	if cfg.Host.Coalesce {
		t.Fatalf("expected env to disable coalescing")
	}
	if want := []string{"json", "console"}; !reflect.DeepEqual(cfg.Logging.Sinks, want) {
		t.Fatalf("expected sinks %v, got %v", want, cfg.Logging.Sinks)
	}
}

func TestLoadReportsBadInput(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file to fail")
	}
	if _, err := Load(writeFile(t, "[host\n")); err == nil {
		t.Fatalf("expected malformed toml to fail")
	}
	t.Setenv("CLOSED_ECONOMY_HOST_TICK_RATE", "fast")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected unparsable env value to fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"tick rate", func(c *Config) { c.Host.TickRate = 0 }, ErrInvalidHost},
		{"move speed", func(c *Config) { c.Host.MoveSpeed = -1 }, ErrInvalidHost},
		{"client url", func(c *Config) { c.Client.URL = "http://localhost" }, ErrInvalidClient},
		{"frame rate", func(c *Config) { c.Client.FrameRate = 0 }, ErrInvalidClient},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, ErrInvalidLogging},
		{"sink", func(c *Config) { c.Logging.Sinks = []string{"syslog"} }, ErrInvalidLogging},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMovement(t *testing.T) {
	cfg := Default()
	cfg.Host.MoveSpeed = 4
	cfg.Client.Predict = false
	got := cfg.Movement()
	if got.MoveSpeed != 4 || got.Predict {
		t.Fatalf("unexpected movement config %+v", got)
	}
	if want := 3.0 / 15; got.MaxMoveDt != want {
		t.Fatalf("expected derived dt cap %v, got %v", want, got.MaxMoveDt)
	}

	cfg.Host.MaxMoveDt = 0.5
	if got := cfg.Movement().MaxMoveDt; got != 0.5 {
		t.Fatalf("expected configured dt cap 0.5, got %v", got)
	}
}
