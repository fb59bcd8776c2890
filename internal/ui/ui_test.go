package ui

import (
	"testing"

	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
)

type fakeRequester struct {
	requests []event.Event
}

func (f *fakeRequester) RequestAction(evt event.Event, _ bool) {
	f.requests = append(f.requests, evt)
}

func (f *fakeRequester) TID() event.TID { return "c1" }

func key(k string, down bool) event.Event {
	return event.NewKeyInput(k, down)
}

func TestKeyStateHeading(t *testing.T) {
	keys := NewKeyState()
	l := keys.Listener()

	if !l.Offer(event.FamilyInput, "", key("w", true)) {
		t.Fatalf("expected movement key to be consumed")
	}
	if keys.Heading() != hex.Directions[2] {
		t.Fatalf("expected north-west heading, got %+v", keys.Heading())
	}
	l.Offer(event.FamilyInput, "", key("d", true))
	if keys.Heading() != hex.Directions[0] {
		t.Fatalf("expected latest key to win, got %+v", keys.Heading())
	}
	l.Offer(event.FamilyInput, "", key("d", false))
	if keys.Heading() != hex.Directions[2] {
		t.Fatalf("expected release to fall back to held key, got %+v", keys.Heading())
	}
	if l.Offer(event.FamilyInput, "", key("1", true)) {
		t.Fatalf("expected non-movement key to pass through")
	}
	keys.Reset()
	if !keys.Heading().IsZero() {
		t.Fatalf("expected reset to clear heading")
	}
}

func TestMovementKeysCoverDirections(t *testing.T) {
	for i, k := range MovementKeys() {
		if movementKeys[k] != hex.Directions[i] {
			t.Fatalf("expected %s to map to direction %d", k, i)
		}
	}
}

func TestActionBar(t *testing.T) {
	bar := NewActionBar("")
	requester := &fakeRequester{}
	bar.Bind(requester)
	l := bar.Listener()

	if !l.Offer(event.FamilyInput, "", key("3", true)) || bar.Slot() != 3 {
		t.Fatalf("expected slot 3, got %d", bar.Slot())
	}
	if l.Offer(event.FamilyInput, "", key("w", true)) {
		t.Fatalf("expected movement key to pass through the action bar")
	}
	l.Offer(event.FamilyInput, "", key(KeyOverlay, true))
	l.Offer(event.FamilyInput, "", key(KeyOverlay, false))
	if len(requester.requests) != 1 {
		t.Fatalf("expected one overlay request, got %d", len(requester.requests))
	}
	got := requester.requests[0]
	if got.Kind != event.SelectOverlay || !got.Overlay.Open || got.Overlay.Panel != DefaultPanel {
		t.Fatalf("unexpected overlay request %+v", got.Overlay)
	}
}

func TestOverlay(t *testing.T) {
	overlay := NewOverlay()
	requester := &fakeRequester{}
	overlay.Bind(requester)
	l := overlay.Listener()

	if !l.Offer(event.FamilyInput, "", key("w", true)) {
		t.Fatalf("expected overlay to swallow key input")
	}
	l.Offer(event.FamilyInput, "", key(KeyEscape, true))
	if len(requester.requests) != 1 || requester.requests[0].Overlay.Open {
		t.Fatalf("expected one close request, got %+v", requester.requests)
	}

	if !l.Offer(event.FamilyNotify, "", event.NewOverlayOpened()) || overlay.Opened() != 1 {
		t.Fatalf("expected opened notification to be counted")
	}

	if l.Offer(event.FamilyDo, "c1", event.NewSelectOverlay(true, "map")) {
		t.Fatalf("expected do_select_overlay to be observed, not consumed")
	}
	if !overlay.Open() || overlay.Panel() != "map" {
		t.Fatalf("expected open map panel, got open=%v panel=%q", overlay.Open(), overlay.Panel())
	}
}
