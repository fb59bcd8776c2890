package reconcile

import (
	"context"
	"fmt"

	"github.com/comalice/statechartx"
)

const (
	stateIdle    = "idle"
	statePlaying = "playing"
	stateBase    = "playing.base"
	stateOverlay = "playing.overlay"

	eventBegin = "begin"
	eventEnd   = "end"
	eventOpen  = "open"
	eventClose = "close"
)

// sessionHooks are the layer swaps run on entering and leaving each state.
type sessionHooks struct {
	enterPlaying func()
	exitPlaying  func()
	enterBase    func()
	exitBase     func()
	enterOverlay func()
	exitOverlay  func()
}

// sessionChart drives Idle, Playing and Playing with overlay. Playing is a
// compound state so leaving it from either child unwinds both layers of
// swaps in order. Events a state does not handle are ignored, which makes
// every transition guarded by the current state alone.
//
// Hooks run while the runtime holds its lock and must not query the chart.
type sessionChart struct {
	rt *statechartx.Runtime

	base, overlay statechartx.StateID

	beginEvt, endEvt, openEvt, closeEvt statechartx.EventID
}

func newSessionChart(hooks sessionHooks) *sessionChart {
	b := statechartx.NewMachineBuilder("session", stateIdle)
	b.State(stateIdle).On(eventBegin, statePlaying, nil, nil)
	b.State(statePlaying).
		Compound(stateBase).
		Entry(run(hooks.enterPlaying)).
		Exit(run(hooks.exitPlaying)).
		On(eventEnd, stateIdle, nil, nil)
	b.State(stateBase).
		Entry(run(hooks.enterBase)).
		Exit(run(hooks.exitBase)).
		On(eventOpen, stateOverlay, nil, nil)
	b.State(stateOverlay).
		Entry(run(hooks.enterOverlay)).
		Exit(run(hooks.exitOverlay)).
		On(eventClose, stateBase, nil, nil)

	machine, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("reconcile: invalid session chart: %v", err))
	}
	rt := statechartx.NewRuntime(machine, nil)
	rt.SetContext(context.Background())
	return &sessionChart{
		rt:       rt,
		base:     b.GetID(stateBase),
		overlay:  b.GetID(stateOverlay),
		beginEvt: eventID(b, eventBegin),
		endEvt:   eventID(b, eventEnd),
		openEvt:  eventID(b, eventOpen),
		closeEvt: eventID(b, eventClose),
	}
}

// eventID resolves the id the builder assigned to a named event.
func eventID(b *statechartx.MachineBuilder, name string) statechartx.EventID {
	return statechartx.EventID(b.GetID("event:" + name))
}

// fire processes id synchronously and reports whether the state changed.
func (s *sessionChart) fire(id statechartx.EventID) bool {
	before := s.rt.GetCurrentState()
	s.rt.ProcessEvent(statechartx.Event{ID: id})
	return s.rt.GetCurrentState() != before
}

func (s *sessionChart) flags() Flags {
	switch s.rt.GetCurrentState() {
	case s.base:
		return Playing
	case s.overlay:
		return Playing | OverlayActive
	default:
		return 0
	}
}

func run(hook func()) statechartx.Action {
	return func(context.Context, *statechartx.Event, statechartx.StateID, statechartx.StateID) error {
		if hook != nil {
			hook()
		}
		return nil
	}
}
