package dispatch

import "github.com/ThePuug/closed-economy/internal/event"

// Handler processes an event and reports whether it was consumed. A consumed
// event stops propagating to earlier layers.
type Handler func(tid event.TID, evt event.Event) bool

type handlerKey struct {
	family event.Family
	kind   event.Kind
}

// Listener is an explicit handler table keyed by family and kind. A kind with
// no registered handler is simply not handled by this listener.
type Listener struct {
	name     string
	handlers map[handlerKey]Handler
}

// NewListener constructs an empty listener. The name appears in diagnostics
// and in Stack.Layers.
func NewListener(name string) *Listener {
	return &Listener{name: name, handlers: make(map[handlerKey]Handler)}
}

// Name returns the listener's diagnostic name.
func (l *Listener) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// On registers h for the given family and kind, replacing any previous
// handler. It returns l so registrations can be chained.
func (l *Listener) On(family event.Family, kind event.Kind, h Handler) *Listener {
	if h == nil {
		delete(l.handlers, handlerKey{family, kind})
		return l
	}
	l.handlers[handlerKey{family, kind}] = h
	return l
}

// Handles reports whether l has a handler for the family and kind.
func (l *Listener) Handles(family event.Family, kind event.Kind) bool {
	if l == nil {
		return false
	}
	_, ok := l.handlers[handlerKey{family, kind}]
	return ok
}

// Offer invokes the matching handler, if any, and reports whether the event
// was consumed.
func (l *Listener) Offer(family event.Family, tid event.TID, evt event.Event) bool {
	if l == nil {
		return false
	}
	h, ok := l.handlers[handlerKey{family, evt.Kind}]
	if !ok {
		return false
	}
	return h(tid, evt)
}

// Consume wraps fn into a Handler that always consumes.
func Consume(fn func(tid event.TID, evt event.Event)) Handler {
	return func(tid event.TID, evt event.Event) bool {
		fn(tid, evt)
		return true
	}
}

// Observe wraps fn into a Handler that never consumes.
func Observe(fn func(tid event.TID, evt event.Event)) Handler {
	return func(tid event.TID, evt event.Event) bool {
		fn(tid, evt)
		return false
	}
}
