// Package reconcile implements the client side of the protocol. Requests are
// predicted locally, queued by sequence and reconciled against the host's
// confirmations.
package reconcile

import (
	"context"

	"github.com/ThePuug/closed-economy/internal/authority"
	"github.com/ThePuug/closed-economy/internal/dispatch"
	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/telemetry"
	"github.com/ThePuug/closed-economy/internal/ui"
	"github.com/ThePuug/closed-economy/internal/world"
	"github.com/ThePuug/closed-economy/logging"
	"github.com/ThePuug/closed-economy/logging/protocol"
)

const (
	pendingMetricKey    = "reconcile_pending"
	skippedMetricKey    = "reconcile_skipped_total"
	reconciledMetricKey = "reconcile_confirmations_total"
	replayedMetricKey   = "reconcile_replayed_total"

	// DefaultPendingWarnStep is the queue length interval at which backlog
	// warnings are published.
	DefaultPendingWarnStep = 64
)

// Flags is a bitset view of the session state.
type Flags uint8

const (
	Playing Flags = 1 << iota
	OverlayActive
)

// Pending is a speculative request awaiting confirmation.
type Pending struct {
	Seq   event.Seq
	Event event.Event
}

// Config tunes the client.
type Config struct {
	PendingWarnStep int
}

// Deps bundles the collaborators the client drives. Registry must hold the
// scene, overlay and action bar components before Begin is called.
type Deps struct {
	Registry    *authority.Registry
	Keys        *ui.KeyState
	Transmitter authority.Transmitter
	Logger      telemetry.Logger
	Publisher   logging.Publisher
	Metrics     telemetry.Metrics
}

// Client is a reconciling session. It delegates protocol publishing and the
// registry to an authority.Host without rules, and overrides how requests
// leave and how confirmations arrive.
//
// A Client is not safe for concurrent use; callers confine it to one goroutine.
type Client struct {
	config      Config
	core        *authority.Host
	window      *dispatch.Stack
	keys        *ui.KeyState
	transmitter authority.Transmitter
	logger      telemetry.Logger
	publisher   logging.Publisher
	metrics     telemetry.Metrics

	tid     event.TID
	seq     event.Seq
	pending []Pending
	state   *sessionChart
	tick    uint64

	session *dispatch.Listener
	input   *dispatch.Listener

	inputHandle   dispatch.Handle
	keysHandle    dispatch.Handle
	barHandle     dispatch.Handle
	overlayHandle dispatch.Handle
	sessionHandle dispatch.Handle
	protoOverlay  dispatch.Handle
}

// New constructs an idle client.
func New(cfg Config, deps Deps) *Client {
	if cfg.PendingWarnStep <= 0 {
		cfg.PendingWarnStep = DefaultPendingWarnStep
	}
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	keys := deps.Keys
	if keys == nil {
		keys = ui.NewKeyState()
	}
	c := &Client{
		config: cfg,
		core: authority.New(authority.Config{}, authority.Deps{
			Registry: deps.Registry,
			Logger:   logger,
			Metrics:  metrics,
		}),
		window:      dispatch.NewStack("window"),
		keys:        keys,
		transmitter: deps.Transmitter,
		logger:      logger,
		publisher:   publisher,
		metrics:     metrics,
		seq:         event.NoSeq,
	}
	c.session = dispatch.NewListener("session").
		On(event.FamilyDo, event.ConnectionInit, dispatch.Consume(c.doConnectionInit)).
		On(event.FamilyDo, event.SelectOverlay, dispatch.Consume(c.doSelectOverlay))
	c.input = dispatch.NewListener("client").
		On(event.FamilyInput, event.OverlayRequest, dispatch.Consume(func(event.TID, event.Event) {
			c.RequestAction(event.NewSelectOverlay(true, ui.DefaultPanel), false)
		}))
	c.state = newSessionChart(sessionHooks{
		enterPlaying: c.mountSession,
		exitPlaying:  c.unmountSession,
		enterBase:    c.pushPlayInput,
		exitBase:     c.popPlayInput,
		enterOverlay: c.pushOverlay,
		exitOverlay:  c.popOverlay,
	})
	return c
}

// TID returns the identity the host assigned, empty until connection_init
// is confirmed.
func (c *Client) TID() event.TID {
	return c.tid
}

// Seq returns the last allocated sequence.
func (c *Client) Seq() event.Seq {
	return c.seq
}

// Flags returns the session state bits.
func (c *Client) Flags() Flags {
	return c.state.flags()
}

func (c *Client) Playing() bool {
	return c.Flags()&Playing != 0
}

func (c *Client) OverlayActive() bool {
	return c.Flags()&OverlayActive != 0
}

// Pending returns a copy of the pending queue.
func (c *Client) Pending() []Pending {
	return append([]Pending(nil), c.pending...)
}

// Window returns the input routing stack.
func (c *Client) Window() *dispatch.Stack {
	return c.window
}

// Protocol returns the stack confirmations are applied on.
func (c *Client) Protocol() *dispatch.Stack {
	return c.core.Stack()
}

// Keys returns the raw input listener.
func (c *Client) Keys() *ui.KeyState {
	return c.keys
}

// SetTransmitter replaces the send boundary.
func (c *Client) SetTransmitter(t authority.Transmitter) {
	c.transmitter = t
}

// SetTick records the tick stamped on diagnostics.
func (c *Client) SetTick(tick uint64) {
	c.tick = tick
}

// Begin moves the client from Idle to Playing. It layers the window stack,
// mounts the scene and overlay on the protocol stack, binds them as peers
// and starts the bootstrap with a sync connection_init.
func (c *Client) Begin() {
	if !c.state.fire(c.state.beginEvt) {
		return
	}
	c.RequestAction(event.NewConnectionInit(""), true)
}

// End returns the client to Idle and removes every layer Begin pushed.
func (c *Client) End() {
	c.state.fire(c.state.endEvt)
}

func (c *Client) mountSession() {
	registry := c.core.Registry()
	scene := registry.Lookup(authority.KeyScene)
	overlay := registry.Lookup(authority.KeyOverlay)
	bar := registry.Lookup(authority.KeyActionBar)

	c.inputHandle = c.window.Push(c.input)

	proto := c.core.Stack()
	c.sessionHandle = proto.Push(c.session)
	c.core.Mount()
	c.protoOverlay = proto.Push(overlay.Listener())

	for _, peer := range []authority.Component{scene, overlay, bar} {
		c.bind(peer)
	}
}

func (c *Client) unmountSession() {
	c.window.Pop(c.inputHandle)

	proto := c.core.Stack()
	proto.Pop(c.protoOverlay)
	c.core.End()
	proto.Pop(c.sessionHandle)
}

func (c *Client) bind(peer authority.Component) {
	switch p := peer.(type) {
	case interface{ Bind(world.Requester) }:
		p.Bind(c)
	case interface{ Bind(ui.Requester) }:
		p.Bind(c)
	}
}

// RequestAction issues evt. A sync request is predicted and sent without a
// sequence and never queued. Otherwise the next sequence is allocated, the
// request is queued, predicted and sent.
func (c *Client) RequestAction(evt event.Event, sync bool) {
	if sync {
		c.core.RequestTry(c.tid, evt, event.NoSeq)
		c.transmit(evt, event.NoSeq)
		return
	}
	c.seq++
	seq := c.seq
	c.pending = append(c.pending, Pending{Seq: seq, Event: evt})
	c.observeBacklog()
	c.core.RequestTry(c.tid, evt, seq)
	c.transmit(evt, seq)
}

func (c *Client) transmit(evt event.Event, seq event.Seq) {
	if c.transmitter == nil {
		return
	}
	c.transmitter.Transmit(c.tid, evt, seq, false)
}

// ReceiveConfirmation applies a confirmation from the host. Events without a
// sequence or originating from another session are applied directly. A
// confirmation of this client's own request discards every earlier pending
// entry, applies the confirmed event as the new baseline and replays what is
// still pending on top of it.
func (c *Client) ReceiveConfirmation(tid event.TID, evt event.Event, broadcast bool, seq event.Seq) {
	if !seq.Valid() || c.tid == event.SystemTID || tid != c.tid {
		c.core.Commit(tid, evt, broadcast)
		return
	}

	skipped := c.dropThrough(seq, evt.Kind)

	evt.Dt = 0
	c.core.Commit(tid, evt, broadcast)

	replay := len(c.pending)
	for i := 0; i < replay && i < len(c.pending); i++ {
		if c.pending[i].Event.Kind.Motion() {
			c.pending[i].Event.Dt = 0
		}
		c.core.Commit(c.tid, c.pending[i].Event, false)
	}

	c.metrics.Add(reconciledMetricKey, 1)
	c.metrics.Add(replayedMetricKey, uint64(replay))
	c.metrics.Store(pendingMetricKey, uint64(len(c.pending)))
	protocol.Reconciled(context.Background(), c.publisher, c.tick, c.ref(), protocol.ReconcilePayload{
		Confirmed: int64(seq),
		Kind:      string(evt.Kind),
		Skipped:   skipped,
		Replayed:  replay,
	})
}

// dropThrough pops pending entries until the one carrying seq is removed.
// Every other entry popped on the way is reported as skipped, so a seq that
// is no longer queued drains the whole queue.
func (c *Client) dropThrough(seq event.Seq, kind event.Kind) int {
	skipped := 0
	for len(c.pending) > 0 {
		head := c.pending[0]
		c.pending[0] = Pending{}
		c.pending = c.pending[1:]
		if head.Seq == seq {
			break
		}
		skipped++
		c.metrics.Add(skippedMetricKey, 1)
		protocol.SequenceSkipped(context.Background(), c.publisher, c.tick, c.ref(), protocol.SkipPayload{
			Skipped:   int64(head.Seq),
			Confirmed: int64(seq),
			Kind:      string(head.Event.Kind),
		})
	}
	if len(c.pending) == 0 {
		c.pending = nil
	}
	return skipped
}

func (c *Client) observeBacklog() {
	length := len(c.pending)
	c.metrics.Store(pendingMetricKey, uint64(length))
	step := c.config.PendingWarnStep
	if length < step || length%step != 0 {
		return
	}
	c.logger.Printf("[reconcile] %d requests awaiting confirmation", length)
	protocol.PendingBacklog(context.Background(), c.publisher, c.tick, c.ref(), protocol.BacklogPayload{Pending: length})
}

func (c *Client) ref() logging.EntityRef {
	return logging.SessionRef(string(c.tid))
}

func (c *Client) doConnectionInit(_ event.TID, evt event.Event) {
	if evt.Connection != nil && evt.Connection.Assigned != event.SystemTID {
		c.tid = evt.Connection.Assigned
	}
	c.RequestAction(event.NewSceneLoad(), true)
}

func (c *Client) doSelectOverlay(_ event.TID, evt event.Event) {
	if evt.Overlay.Open {
		c.ActivateOverlay()
		return
	}
	c.DeactivateOverlay()
}

// HandleKey routes a key press or release through the window stack.
func (c *Client) HandleKey(key string, down bool) bool {
	return c.window.Publish(event.FamilyInput, c.tid, event.NewKeyInput(key, down))
}

// RequestOverlay asks for the overlay to be opened.
func (c *Client) RequestOverlay() bool {
	return c.window.Publish(event.FamilyInput, c.tid, event.NewOverlayRequest())
}
