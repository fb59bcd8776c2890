package authority

import (
	"fmt"
	"sort"

	"github.com/ThePuug/closed-economy/internal/dispatch"
)

const (
	KeyScene     = "scene"
	KeyOverlay   = "overlay"
	KeyActionBar = "action_bar"
)

// Component is anything the registry can hold: an object exposing a
// dispatch listener.
type Component interface {
	Listener() *dispatch.Listener
}

// Registry maps fixed keys to components owned by the surrounding
// application. It is populated during bootstrap and only read afterwards.
type Registry struct {
	entries map[string]Component
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Component)}
}

// Register stores c under key, replacing any previous entry.
func (r *Registry) Register(key string, c Component) *Registry {
	if c == nil {
		panic(fmt.Sprintf("authority: register of nil component %q", key))
	}
	r.entries[key] = c
	return r
}

// Lookup returns the component stored under key. A missing key means the
// application dispatched before bootstrap completed, and panics.
func (r *Registry) Lookup(key string) Component {
	c, ok := r.entries[key]
	if !ok {
		panic(fmt.Sprintf("authority: registry has no %q component", key))
	}
	return c
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.entries[key]
	return ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
