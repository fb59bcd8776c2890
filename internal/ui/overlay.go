package ui

import (
	"github.com/ThePuug/closed-economy/internal/dispatch"
	"github.com/ThePuug/closed-economy/internal/event"
)

// Overlay is a modal panel. While it is on the window stack it swallows all
// key input; escape asks the host to close it. On the protocol stack it
// watches confirmed select_overlay events without consuming them.
type Overlay struct {
	open      bool
	panel     string
	opened    int
	requester Requester
	listener  *dispatch.Listener
}

func NewOverlay() *Overlay {
	o := &Overlay{}
	o.listener = dispatch.NewListener("overlay").
		On(event.FamilyInput, event.KeyInput, dispatch.Consume(o.onKey)).
		On(event.FamilyNotify, event.OverlayOpened, dispatch.Consume(func(event.TID, event.Event) {
			o.opened++
		})).
		On(event.FamilyDo, event.SelectOverlay, dispatch.Observe(func(_ event.TID, evt event.Event) {
			o.open = evt.Overlay.Open
			if evt.Overlay.Open {
				o.panel = evt.Overlay.Panel
			}
		}))
	return o
}

func (o *Overlay) Listener() *dispatch.Listener {
	return o.listener
}

// Bind sets the session close requests are sent through.
func (o *Overlay) Bind(r Requester) {
	o.requester = r
}

func (o *Overlay) onKey(_ event.TID, evt event.Event) {
	if evt.Key.Key == KeyEscape && evt.Key.Down && o.requester != nil {
		o.requester.RequestAction(event.NewSelectOverlay(false, ""), false)
	}
}

// Opened returns how many opened notifications the overlay received.
func (o *Overlay) Opened() int {
	return o.opened
}

// Panel returns the last confirmed panel.
func (o *Overlay) Panel() string {
	return o.panel
}

// Open reports whether the last confirmed select_overlay opened the panel.
func (o *Overlay) Open() bool {
	return o.open
}
