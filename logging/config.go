package logging

import (
	"strings"
	"time"
)

type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}

// ParseSeverity maps a configured level name onto a Severity.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return SeverityDebug, true
	case "info":
		return SeverityInfo, true
	case "warn", "warning":
		return SeverityWarn, true
	case "error":
		return SeverityError, true
	default:
		return SeverityInfo, false
	}
}
