package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
)

type recordingExecutor struct {
	mu      sync.Mutex
	tries   []Command
	leaves  []event.TID
	ticks   []uint64
	removed int
}

func (r *recordingExecutor) RequestTry(tid event.TID, evt event.Event, seq event.Seq) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tries = append(r.tries, NewTry(tid, evt, seq))
}

func (r *recordingExecutor) Disconnect(tid event.TID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaves = append(r.leaves, tid)
	return r.removed
}

func (r *recordingExecutor) SetTick(tick uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, tick)
}

func (r *recordingExecutor) tryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tries)
}

func TestAdvanceExecutesInOrder(t *testing.T) {
	exec := &recordingExecutor{removed: 2}
	var disconnected int
	loop := NewLoop(exec, LoopConfig{CommandCapacity: 8}, LoopHooks{
		OnDisconnect: func(_ uint64, _ Command, unloaded int) { disconnected = unloaded },
	}, Deps{})

	loop.Enqueue(NewTry("c1", event.NewSceneLoad(), event.NoSeq))
	loop.Enqueue(NewTry("c1", event.NewDiscoverTile(hex.Hx{}), 0))
	loop.Enqueue(NewDisconnect("c1", "closed"))

	result := loop.Advance(LoopTickContext{Tick: 4})
	if result.Executed != 3 {
		t.Fatalf("expected 3 executed commands, got %d", result.Executed)
	}
	if len(exec.tries) != 2 || exec.tries[0].Event.Kind != event.SceneLoad || exec.tries[1].Seq != 0 {
		t.Fatalf("unexpected tries %+v", exec.tries)
	}
	if len(exec.leaves) != 1 || disconnected != 2 {
		t.Fatalf("expected disconnect hook with 2 unloads, got %v %d", exec.leaves, disconnected)
	}
	if len(exec.ticks) != 1 || exec.ticks[0] != 4 || loop.Tick() != 4 {
		t.Fatalf("expected tick 4 to be stamped, got %v", exec.ticks)
	}
	if loop.Pending() != 0 {
		t.Fatalf("expected drained buffer")
	}
}

func TestAdvanceCoalescesMoves(t *testing.T) {
	exec := &recordingExecutor{}
	loop := NewLoop(exec, LoopConfig{CommandCapacity: 8, Coalesce: true}, LoopHooks{}, Deps{})
	loop.Enqueue(move("c1", "a", 0.3, 0.1))
	loop.Enqueue(move("c1", "a", 0.6, 0.1))

	result := loop.Advance(LoopTickContext{Tick: 1})
	if result.Coalesced != 1 || len(exec.tries) != 1 {
		t.Fatalf("expected one coalesced move, got %+v with %d tries", result, len(exec.tries))
	}
	if exec.tries[0].Event.Move.Pos.X != 0.6 {
		t.Fatalf("expected latest move executed, got %+v", exec.tries[0].Event.Move)
	}
}

func TestEnqueuePerSessionLimit(t *testing.T) {
	exec := &recordingExecutor{}
	var drops []string
	loop := NewLoop(exec, LoopConfig{CommandCapacity: 8, PerSessionLimit: 2}, LoopHooks{
		OnCommandDrop: func(reason string, _ Command) { drops = append(drops, reason) },
	}, Deps{})

	for i := 0; i < 3; i++ {
		loop.Enqueue(NewTry("c1", event.NewSceneLoad(), event.NoSeq))
	}
	if ok, reason := loop.Enqueue(NewDisconnect("c1", "closed")); !ok {
		t.Fatalf("expected disconnect to bypass the session limit, got %s", reason)
	}
	if len(drops) != 1 || drops[0] != CommandRejectQueueLimit {
		t.Fatalf("expected one queue_limit drop, got %v", drops)
	}

	loop.Advance(LoopTickContext{Tick: 1})
	if ok, _ := loop.Enqueue(NewTry("c1", event.NewSceneLoad(), event.NoSeq)); !ok {
		t.Fatalf("expected limit to reset after a tick")
	}
}

func TestEnqueueQueueFull(t *testing.T) {
	loop := NewLoop(&recordingExecutor{}, LoopConfig{CommandCapacity: 1}, LoopHooks{}, Deps{})
	loop.Enqueue(NewTry("c1", event.NewSceneLoad(), event.NoSeq))
	ok, reason := loop.Enqueue(NewTry("c2", event.NewSceneLoad(), event.NoSeq))
	if ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue_full, got ok=%v reason=%s", ok, reason)
	}
}

func TestEnqueueWarningStep(t *testing.T) {
	var warnings []int
	loop := NewLoop(&recordingExecutor{}, LoopConfig{CommandCapacity: 8, WarningStep: 2}, LoopHooks{
		OnQueueWarning: func(length int) { warnings = append(warnings, length) },
	}, Deps{})
	for i := 0; i < 5; i++ {
		loop.Enqueue(NewTry("c1", event.NewSceneLoad(), event.NoSeq))
	}
	if len(warnings) != 2 || warnings[0] != 2 || warnings[1] != 4 {
		t.Fatalf("expected warnings at 2 and 4, got %v", warnings)
	}
}

func TestRunStopsOnSignal(t *testing.T) {
	exec := &recordingExecutor{}
	loop := NewLoop(exec, LoopConfig{TickRate: 200, CommandCapacity: 8}, LoopHooks{}, Deps{})
	loop.Enqueue(NewTry("c1", event.NewSceneLoad(), event.NoSeq))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		loop.Run(stop)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for exec.tryCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected the loop to execute the staged command")
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Run to return after stop")
	}
}

func TestNilLoop(t *testing.T) {
	if NewLoop(nil, LoopConfig{}, LoopHooks{}, Deps{}) != nil {
		t.Fatalf("expected nil loop without executor")
	}
	var loop *Loop
	if ok, reason := loop.Enqueue(Command{}); ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected nil loop to reject")
	}
}
