package logging

import (
	"sort"
	"sync"
)

// Metrics is a concurrency-safe set of named counters and gauges.
type Metrics struct {
	mu     sync.Mutex
	values map[string]uint64
}

// TelemetryAdd increments key by delta.
func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]uint64)
	}
	m.values[key] += delta
}

// TelemetryStore overwrites key with value.
func (m *Metrics) TelemetryStore(key string, value uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]uint64)
	}
	m.values[key] = value
}

// Snapshot copies the current values.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Keys returns the recorded metric names in sorted order.
func (m *Metrics) Keys() []string {
	snapshot := m.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
