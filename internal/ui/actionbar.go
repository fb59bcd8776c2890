package ui

import (
	"github.com/ThePuug/closed-economy/internal/dispatch"
	"github.com/ThePuug/closed-economy/internal/event"
)

// DefaultPanel is the overlay panel the action bar opens.
const DefaultPanel = "inventory"

// ActionBar selects slots with the number keys and opens the overlay.
type ActionBar struct {
	slot      int
	panel     string
	requester Requester
	listener  *dispatch.Listener
}

func NewActionBar(panel string) *ActionBar {
	if panel == "" {
		panel = DefaultPanel
	}
	b := &ActionBar{panel: panel}
	b.listener = dispatch.NewListener("action_bar").
		On(event.FamilyInput, event.KeyInput, b.onKey)
	return b
}

func (b *ActionBar) Listener() *dispatch.Listener {
	return b.listener
}

// Bind sets the session overlay requests are sent through.
func (b *ActionBar) Bind(r Requester) {
	b.requester = r
}

// Slot returns the selected slot, 0 when nothing was selected.
func (b *ActionBar) Slot() int {
	return b.slot
}

func (b *ActionBar) onKey(_ event.TID, evt event.Event) bool {
	key := evt.Key.Key
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		if evt.Key.Down {
			b.slot = int(key[0] - '0')
		}
		return true
	}
	if key != KeyOverlay {
		return false
	}
	if evt.Key.Down && b.requester != nil {
		b.requester.RequestAction(event.NewSelectOverlay(true, b.panel), false)
	}
	return true
}
