package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
	"github.com/ThePuug/closed-economy/internal/sim"
	"github.com/ThePuug/closed-economy/internal/telemetry"
	"github.com/ThePuug/closed-economy/logging"
)

type recordingEnqueuer struct {
	mu   sync.Mutex
	cmds []sim.Command
}

func (r *recordingEnqueuer) Enqueue(cmd sim.Command) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return true, ""
}

func (r *recordingEnqueuer) snapshot() []sim.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sim.Command(nil), r.cmds...)
}

type fixture struct {
	server  *Server
	queue   *recordingEnqueuer
	metrics *logging.Metrics
	url     string
}

func newFixture(t *testing.T, cfg ServerConfig) *fixture {
	t.Helper()
	queue := &recordingEnqueuer{}
	metrics := &logging.Metrics{}
	var mu sync.Mutex
	next := 0
	cfg.Metrics = telemetry.WrapMetrics(metrics)
	cfg.NewTID = func() event.TID {
		mu.Lock()
		defer mu.Unlock()
		next++
		return event.TID(fmt.Sprintf("s-%d", next))
	}
	server := NewServer(queue, cfg)
	srv := httptest.NewServer(http.HandlerFunc(server.Handle))
	t.Cleanup(srv.Close)
	return &fixture{
		server:  server,
		queue:   queue,
		metrics: metrics,
		url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (f *fixture) dial(t *testing.T, sessions int) *Client {
	t.Helper()
	client, err := Dial(context.Background(), f.url, ClientConfig{})
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	waitFor(t, func() bool { return f.server.Sessions() == sessions })
	return client
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, client *Client) event.Event {
	t.Helper()
	select {
	case msg, ok := <-client.Inbox():
		if !ok {
			t.Fatalf("inbox closed: %v", client.Err())
		}
		return msg.Event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for confirmation")
	}
	return event.Event{}
}

func TestTryIsStampedWithConnectionTID(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	client := f.dial(t, 1)

	move := event.NewActorMove("a", hex.Px{X: 1}, hex.Directions[0], 0.1)
	if err := client.Send("spoofed", move, 3); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	waitFor(t, func() bool { return len(f.queue.snapshot()) == 1 })

	cmd := f.queue.snapshot()[0]
	if cmd.Type != sim.CommandTry || cmd.TID != "s-1" {
		t.Fatalf("expected try from s-1, got %+v", cmd)
	}
	if cmd.Seq != 3 || cmd.Event.Kind != event.ActorMove || cmd.Event.Dt != 0.1 {
		t.Fatalf("unexpected staged try: %+v", cmd)
	}
}

func TestBroadcastReachesOnlyJoinedSessions(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	first := f.dial(t, 1)
	second := f.dial(t, 2)

	f.server.Transmit("s-1", event.NewConnectionInit("s-1"), event.NoSeq, false)
	if evt := receive(t, first); evt.Kind != event.ConnectionInit {
		t.Fatalf("expected connection_init, got %s", evt.Kind)
	}

	f.server.Transmit("s-1", event.NewUnloadActor("a"), event.NoSeq, true)
	if evt := receive(t, first); evt.Kind != event.UnloadActor {
		t.Fatalf("expected broadcast unload_actor, got %s", evt.Kind)
	}

	f.server.Transmit("s-2", event.NewConnectionInit("s-2"), event.NoSeq, false)
	if evt := receive(t, second); evt.Kind != event.ConnectionInit {
		t.Fatalf("expected second session to see its connection_init first, got %s", evt.Kind)
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	f.dial(t, 1)

	conn, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		t.Fatalf("failed to dial raw connection: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	frames := []string{
		`not json`,
		`{"ver":1,"type":"do","event":{"kind":"scene_load"}}`,
		`{"ver":1,"type":"try","event":{"kind":"key_input","key":{"key":"w","down":true}}}`,
	}
	for _, frame := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	waitFor(t, func() bool { return f.metrics.Snapshot()[droppedMetricKey] == uint64(len(frames)) })
	if got := len(f.queue.snapshot()); got != 0 {
		t.Fatalf("expected nothing staged, got %d commands", got)
	}
}

func TestRateLimitDropsExcessTries(t *testing.T) {
	f := newFixture(t, ServerConfig{RateLimit: 0.001, Burst: 1})
	client := f.dial(t, 1)

	for i := 0; i < 3; i++ {
		if err := client.Send("", event.NewSceneLoad(), event.NoSeq); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}
	waitFor(t, func() bool { return f.metrics.Snapshot()[droppedMetricKey] == 2 })
	if got := len(f.queue.snapshot()); got != 1 {
		t.Fatalf("expected one staged try, got %d", got)
	}
}

func TestCloseStagesDisconnect(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	client := f.dial(t, 1)

	client.Close()
	waitFor(t, func() bool { return f.server.Sessions() == 0 })
	waitFor(t, func() bool { return len(f.queue.snapshot()) == 1 })

	cmd := f.queue.snapshot()[0]
	if cmd.Type != sim.CommandDisconnect || cmd.TID != "s-1" {
		t.Fatalf("expected disconnect for s-1, got %+v", cmd)
	}
	if err := client.Send("", event.NewSceneLoad(), event.NoSeq); err == nil {
		t.Fatalf("expected send after close to fail")
	}
}
