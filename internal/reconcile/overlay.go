package reconcile

import (
	"context"

	"github.com/ThePuug/closed-economy/internal/authority"
	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/logging/protocol"
)

// ActivateOverlay swaps the raw input and action bar layers for the overlay
// and publishes overlay_opened once. It does nothing unless the client is
// Playing without an active overlay; a second activation would pop layers
// that are no longer on top.
func (c *Client) ActivateOverlay() {
	if !c.state.fire(c.state.openEvt) {
		return
	}
	c.window.Publish(event.FamilyNotify, c.tid, event.NewOverlayOpened())
	protocol.OverlayToggled(context.Background(), c.publisher, c.tick, c.ref(), protocol.OverlayPayload{Open: true})
}

// DeactivateOverlay pops the overlay and restores raw input and the action
// bar. Playing stays set.
func (c *Client) DeactivateOverlay() {
	if !c.state.fire(c.state.closeEvt) {
		return
	}
	protocol.OverlayToggled(context.Background(), c.publisher, c.tick, c.ref(), protocol.OverlayPayload{Open: false})
}

func (c *Client) pushPlayInput() {
	bar := c.core.Registry().Lookup(authority.KeyActionBar)
	c.keysHandle = c.window.Push(c.keys.Listener())
	c.barHandle = c.window.Push(bar.Listener())
}

func (c *Client) popPlayInput() {
	c.window.Pop(c.barHandle)
	c.window.Pop(c.keysHandle)
}

func (c *Client) pushOverlay() {
	overlay := c.core.Registry().Lookup(authority.KeyOverlay)
	c.keys.Reset()
	c.overlayHandle = c.window.Push(overlay.Listener())
}

func (c *Client) popOverlay() {
	c.window.Pop(c.overlayHandle)
}
