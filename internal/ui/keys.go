// Package ui holds the input-routing listeners a client layers on its window
// stack: raw movement input, the action bar and the modal overlay.
package ui

import (
	"github.com/ThePuug/closed-economy/internal/dispatch"
	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
)

const (
	KeyEscape  = "escape"
	KeyOverlay = "i"
)

// Requester is the session UI components emit requests through.
type Requester interface {
	RequestAction(evt event.Event, sync bool)
	TID() event.TID
}

// movementKeys maps keys onto the six planar directions.
var movementKeys = map[string]hex.Hx{
	"d": hex.Directions[0],
	"e": hex.Directions[1],
	"w": hex.Directions[2],
	"a": hex.Directions[3],
	"z": hex.Directions[4],
	"s": hex.Directions[5],
}

// MovementKeys returns the movement key for each direction in hex.Directions order.
func MovementKeys() []string {
	return []string{"d", "e", "w", "a", "z", "s"}
}

// KeyState tracks held movement keys. The most recently pressed key that is
// still held decides the heading.
type KeyState struct {
	held     []string
	listener *dispatch.Listener
}

func NewKeyState() *KeyState {
	k := &KeyState{}
	k.listener = dispatch.NewListener("raw_input").
		On(event.FamilyInput, event.KeyInput, k.onKey)
	return k
}

func (k *KeyState) Listener() *dispatch.Listener {
	return k.listener
}

func (k *KeyState) onKey(_ event.TID, evt event.Event) bool {
	key := evt.Key.Key
	if _, ok := movementKeys[key]; !ok {
		return false
	}
	k.release(key)
	if evt.Key.Down {
		k.held = append(k.held, key)
	}
	return true
}

func (k *KeyState) release(key string) {
	for i, held := range k.held {
		if held == key {
			k.held = append(k.held[:i], k.held[i+1:]...)
			return
		}
	}
}

// Heading returns the direction of travel, or the zero Hx when idle.
func (k *KeyState) Heading() hex.Hx {
	if len(k.held) == 0 {
		return hex.Hx{}
	}
	return movementKeys[k.held[len(k.held)-1]]
}

// Reset forgets every held key.
func (k *KeyState) Reset() {
	k.held = k.held[:0]
}
