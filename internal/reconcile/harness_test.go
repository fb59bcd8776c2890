package reconcile

import (
	"context"
	"testing"

	"github.com/ThePuug/closed-economy/internal/authority"
	"github.com/ThePuug/closed-economy/internal/dispatch"
	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
	"github.com/ThePuug/closed-economy/internal/terrain"
	"github.com/ThePuug/closed-economy/internal/ui"
	"github.com/ThePuug/closed-economy/internal/world"
	"github.com/ThePuug/closed-economy/logging"
)

type outbound struct {
	tid event.TID
	evt event.Event
	seq event.Seq
}

type harness struct {
	client  *Client
	scene   *world.Scene
	overlay *ui.Overlay
	bar     *ui.ActionBar
	sent    []outbound
	events  []logging.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	cfg := world.DefaultConfig()
	cfg.Predict = true
	h.scene = world.New(cfg, world.Deps{Field: terrain.New(5)})
	h.overlay = ui.NewOverlay()
	h.bar = ui.NewActionBar("")
	registry := authority.NewRegistry().
		Register(authority.KeyScene, h.scene).
		Register(authority.KeyOverlay, h.overlay).
		Register(authority.KeyActionBar, h.bar)
	h.client = New(Config{}, Deps{
		Registry: registry,
		Transmitter: authority.TransmitFunc(func(tid event.TID, evt event.Event, seq event.Seq, _ bool) {
			h.sent = append(h.sent, outbound{tid: tid, evt: evt, seq: seq})
		}),
		Publisher: logging.PublisherFunc(func(_ context.Context, evt logging.Event) {
			h.events = append(h.events, evt)
		}),
	})
	return h
}

// join begins the client and answers its bootstrap the way a host would,
// leaving it Playing as tid with one owned actor "a" at the origin.
func (h *harness) join(t *testing.T, tid event.TID) {
	t.Helper()
	h.client.Begin()
	h.client.ReceiveConfirmation(tid, event.NewConnectionInit(tid), false, event.NoSeq)
	if h.client.TID() != tid {
		t.Fatalf("expected assigned tid %q, got %q", tid, h.client.TID())
	}
	h.client.ReceiveConfirmation(tid, event.NewActorLoad(event.ActorState{ID: "a", Owner: tid}), true, event.NoSeq)
	h.sent = nil
	h.events = nil
}

func (h *harness) move(x, dt float64) event.Event {
	return event.NewActorMove("a", hex.Px{X: x}, hex.Hx{Q: 1}, dt)
}

func (h *harness) ofType(eventType logging.EventType) []logging.Event {
	var out []logging.Event
	for _, evt := range h.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// probe records the dt of every do_actor_move that reaches the top of the
// protocol stack.
func (h *harness) probe() *[]float64 {
	var dts []float64
	h.client.Protocol().Push(dispatch.NewListener("probe").
		On(event.FamilyDo, event.ActorMove, dispatch.Observe(func(_ event.TID, evt event.Event) {
			dts = append(dts, evt.Dt)
		})))
	return &dts
}
