package dispatch

import (
	"reflect"
	"testing"

	"github.com/ThePuug/closed-economy/internal/event"
)

func recordingListener(name string, consume bool, calls *[]string) *Listener {
	return NewListener(name).On(event.FamilyDo, event.TileChange, func(event.TID, event.Event) bool {
		*calls = append(*calls, name)
		return consume
	})
}

func TestPublishTopFirstStopsWhenConsumed(t *testing.T) {
	var calls []string
	stack := NewStack("test")
	stack.Push(recordingListener("bottom", true, &calls))
	stack.Push(recordingListener("middle", true, &calls))
	stack.Push(recordingListener("top", false, &calls))

	if !stack.Publish(event.FamilyDo, "", event.NewTileChange(event.TileState{})) {
		t.Fatalf("expected publish to be consumed")
	}
	if want := []string{"top", "middle"}; !reflect.DeepEqual(calls, want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
}

func TestPublishUnhandledIsDropped(t *testing.T) {
	var calls []string
	stack := NewStack("test")
	stack.Push(recordingListener("only", true, &calls))

	if stack.Publish(event.FamilyTry, "", event.NewTileChange(event.TileState{})) {
		t.Fatalf("expected try family to be unhandled")
	}
	if stack.Publish(event.FamilyDo, "", event.NewSceneLoad()) {
		t.Fatalf("expected scene_load to be unhandled")
	}
	if len(calls) != 0 {
		t.Fatalf("expected no handler calls, got %v", calls)
	}
	if NewStack("empty").Publish(event.FamilyDo, "", event.NewSceneLoad()) {
		t.Fatalf("expected empty stack to drop the event")
	}
}

func TestPublishPassesOrigin(t *testing.T) {
	var got event.TID
	stack := NewStack("test")
	stack.Push(NewListener("l").On(event.FamilyTry, event.SceneLoad, Consume(func(tid event.TID, _ event.Event) {
		got = tid
	})))
	stack.Publish(event.FamilyTry, "client-1", event.NewSceneLoad())
	if got != "client-1" {
		t.Fatalf("expected tid client-1, got %q", got)
	}
}

func TestPopOrder(t *testing.T) {
	stack := NewStack("test")
	a := stack.Push(NewListener("a"))
	b := stack.Push(NewListener("b"))

	t.Run("out of order panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected out-of-order pop to panic")
			}
		}()
		stack.Pop(a)
	})

	stack.Pop(b)
	stack.Pop(a)
	if stack.Depth() != 0 {
		t.Fatalf("expected empty stack, got depth %d", stack.Depth())
	}
}

func TestPopForeignHandlePanics(t *testing.T) {
	first := NewStack("first")
	second := NewStack("second")
	h := first.Push(NewListener("a"))
	second.Push(NewListener("a"))
	defer func() {
		if recover() == nil {
			t.Fatalf("expected foreign handle pop to panic")
		}
	}()
	second.Pop(h)
}

func TestScopeReleases(t *testing.T) {
	stack := NewStack("test")
	stack.Push(NewListener("base"))
	func() {
		release := stack.Scope(NewListener("scoped"))
		defer release()
		if got := stack.Layers(); !reflect.DeepEqual(got, []string{"base", "scoped"}) {
			t.Fatalf("unexpected layers inside scope: %v", got)
		}
	}()
	if got := stack.Layers(); !reflect.DeepEqual(got, []string{"base"}) {
		t.Fatalf("unexpected layers after scope: %v", got)
	}
}

func TestPublishUsesLayersAtCallTime(t *testing.T) {
	var calls []string
	stack := NewStack("test")
	stack.Push(recordingListener("bottom", true, &calls))
	swapper := NewListener("swapper")
	swapHandle := stack.Push(swapper)
	swapper.On(event.FamilyDo, event.TileChange, func(event.TID, event.Event) bool {
		calls = append(calls, "swapper")
		stack.Pop(swapHandle)
		stack.Push(recordingListener("late", true, &calls))
		return false
	})

	stack.Publish(event.FamilyDo, "", event.NewTileChange(event.TileState{}))
	if want := []string{"swapper", "bottom"}; !reflect.DeepEqual(calls, want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	if got := stack.Layers(); !reflect.DeepEqual(got, []string{"bottom", "late"}) {
		t.Fatalf("unexpected layers after publish: %v", got)
	}
}

func TestListenerHandles(t *testing.T) {
	l := NewListener("l").On(event.FamilyDo, event.ActorMove, Observe(func(event.TID, event.Event) {}))
	if !l.Handles(event.FamilyDo, event.ActorMove) {
		t.Fatalf("expected do_actor_move to be handled")
	}
	if l.Handles(event.FamilyTry, event.ActorMove) {
		t.Fatalf("expected try_actor_move to be unhandled")
	}
	l.On(event.FamilyDo, event.ActorMove, nil)
	if l.Handles(event.FamilyDo, event.ActorMove) {
		t.Fatalf("expected nil handler to unregister")
	}
}
