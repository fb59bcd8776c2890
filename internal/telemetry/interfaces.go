package telemetry

import (
	"log"

	"github.com/ThePuug/closed-economy/logging"
)

// Logger exposes the plain-text logging required by protocol components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// StandardLogger exposes the wrapped logger for components that need one.
func (l *loggerAdapter) StandardLogger() *log.Logger {
	if l == nil {
		return nil
	}
	return l.logger
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return LoggerFunc(func(string, ...any) {})
}

// Metrics exposes the counters and gauges recorded by protocol components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// WrapMetrics adapts logging.Metrics into the Metrics interface.
func WrapMetrics(metrics *logging.Metrics) Metrics {
	return &metricsAdapter{metrics: metrics}
}

type metricsAdapter struct {
	metrics *logging.Metrics
}

func (m *metricsAdapter) Add(key string, delta uint64) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.TelemetryAdd(key, delta)
}

func (m *metricsAdapter) Store(key string, value uint64) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.TelemetryStore(key, value)
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}
