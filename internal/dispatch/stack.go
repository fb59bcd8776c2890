package dispatch

import (
	"fmt"

	"github.com/ThePuug/closed-economy/internal/event"
)

// Handle names one pushed layer. It must be handed back to Pop in exact
// reverse push order.
type Handle struct {
	stack    *Stack
	listener *Listener
	depth    int
}

// Listener returns the listener the handle was pushed with.
func (h Handle) Listener() *Listener {
	return h.listener
}

// Valid reports whether h was returned by Push.
func (h Handle) Valid() bool {
	return h.stack != nil
}

// Stack is an ordered stack of listeners. Events are offered from the most
// recently pushed listener toward the earliest until one consumes them.
//
// A Stack is not safe for concurrent use.
type Stack struct {
	name   string
	layers []*Listener
}

func NewStack(name string) *Stack {
	return &Stack{name: name}
}

// Push adds l on top of the stack.
func (s *Stack) Push(l *Listener) Handle {
	if l == nil {
		panic(fmt.Sprintf("dispatch: push of nil listener on %s", s.name))
	}
	s.layers = append(s.layers, l)
	return Handle{stack: s, listener: l, depth: len(s.layers)}
}

// Pop removes the layer named by h, which must be the top of the stack.
// Popping out of order is a programming error and panics.
func (s *Stack) Pop(h Handle) {
	if h.stack != s {
		panic(fmt.Sprintf("dispatch: pop of foreign handle on %s", s.name))
	}
	top := len(s.layers)
	if top == 0 || top != h.depth || s.layers[top-1] != h.listener {
		panic(fmt.Sprintf("dispatch: pop of %q on %s out of order (depth %d, top %d)", h.listener.Name(), s.name, h.depth, top))
	}
	s.layers[top-1] = nil
	s.layers = s.layers[:top-1]
}

// Scope pushes l and returns the matching release, for use with defer.
func (s *Stack) Scope(l *Listener) func() {
	h := s.Push(l)
	return func() { s.Pop(h) }
}

// Publish offers evt to the family handler of each layer, top first, and
// reports whether any layer consumed it. Handlers may push or pop layers;
// the walk uses the layers present when Publish was called.
func (s *Stack) Publish(family event.Family, tid event.TID, evt event.Event) bool {
	if len(s.layers) == 0 {
		return false
	}
	layers := make([]*Listener, len(s.layers))
	copy(layers, s.layers)
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i].Offer(family, tid, evt) {
			return true
		}
	}
	return false
}

// Depth reports the number of pushed layers.
func (s *Stack) Depth() int {
	return len(s.layers)
}

// Layers returns the listener names from bottom to top.
func (s *Stack) Layers() []string {
	names := make([]string, len(s.layers))
	for i, l := range s.layers {
		names[i] = l.Name()
	}
	return names
}

// Name returns the stack's diagnostic name.
func (s *Stack) Name() string {
	return s.name
}
