// Package authority implements the host side of the protocol: requested
// changes are tried against the canonical scene, committed through the do
// handlers and transmitted to the sessions that need to learn about them.
package authority

import (
	"context"
	"fmt"

	"github.com/ThePuug/closed-economy/internal/dispatch"
	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
	"github.com/ThePuug/closed-economy/internal/telemetry"
	"github.com/ThePuug/closed-economy/internal/world"
	"github.com/ThePuug/closed-economy/logging"
	"github.com/ThePuug/closed-economy/logging/lifecycle"
)

const (
	commitsMetricKey     = "authority_commits_total"
	broadcastsMetricKey  = "authority_broadcasts_total"
	rejectsMetricKey     = "authority_rejects_total"
	correctionsMetricKey = "authority_move_corrections_total"

	// DefaultSpawnKind is the kind of actor created for a joining session.
	DefaultSpawnKind = "wanderer"
)

// Config tunes the host rules.
type Config struct {
	SpawnKind string
	Spawn     hex.Hx
	Movement  world.Config
}

// Deps bundles the capabilities the host drives.
type Deps struct {
	Registry    *Registry
	Scene       SceneProvider
	Actors      ActorFactory
	Persister   Persister
	Transmitter Transmitter
	Logger      telemetry.Logger
	Publisher   logging.Publisher
	Metrics     telemetry.Metrics
}

// Host is the authoritative protocol engine. Its only protocol state is the
// sequence of the request being tried, which every commit made while trying
// it carries back to the requester.
//
// A Host is not safe for concurrent use; callers confine it to one goroutine.
type Host struct {
	config      Config
	stack       *dispatch.Stack
	registry    *Registry
	scene       SceneProvider
	actors      ActorFactory
	persister   Persister
	transmitter Transmitter
	logger      telemetry.Logger
	publisher   logging.Publisher
	metrics     telemetry.Metrics

	seq  event.Seq
	tick uint64

	rules   *dispatch.Listener
	handles []dispatch.Handle
}

// New constructs a host over the given capabilities. Nil logging and metrics
// dependencies are replaced with no-op implementations.
func New(cfg Config, deps Deps) *Host {
	if cfg.SpawnKind == "" {
		cfg.SpawnKind = DefaultSpawnKind
	}
	// Moves carry the dt the client claims, so it is always capped here.
	if cfg.Movement.MaxMoveDt <= 0 {
		cfg.Movement.MaxMoveDt = world.DefaultMaxMoveDt
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewRegistry()
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
	h := &Host{
		config:      cfg,
		stack:       dispatch.NewStack("protocol"),
		registry:    registry,
		scene:       deps.Scene,
		actors:      deps.Actors,
		persister:   deps.Persister,
		transmitter: deps.Transmitter,
		logger:      logger,
		publisher:   publisher,
		metrics:     metrics,
		seq:         event.NoSeq,
	}
	h.rules = h.buildRules()
	return h
}

// Stack returns the protocol stack the host publishes on.
func (h *Host) Stack() *dispatch.Stack {
	return h.stack
}

// Registry returns the component registry.
func (h *Host) Registry() *Registry {
	return h.registry
}

// Seq returns the sequence recorded by the latest RequestTry.
func (h *Host) Seq() event.Seq {
	return h.seq
}

// SetTick records the tick stamped on diagnostics.
func (h *Host) SetTick(tick uint64) {
	h.tick = tick
}

// SetTransmitter replaces the send boundary.
func (h *Host) SetTransmitter(t Transmitter) {
	h.transmitter = t
}

// Begin pushes the host rules and mounts the registered scene.
func (h *Host) Begin() {
	h.handles = append(h.handles, h.stack.Push(h.rules))
	h.Mount()
}

// Mount pushes the registered scene's listener onto the protocol stack.
func (h *Host) Mount() dispatch.Handle {
	handle := h.stack.Push(h.registry.Lookup(KeyScene).Listener())
	h.handles = append(h.handles, handle)
	return handle
}

// End pops every layer pushed by Begin or Mount.
func (h *Host) End() {
	for i := len(h.handles) - 1; i >= 0; i-- {
		h.stack.Pop(h.handles[i])
	}
	h.handles = nil
}

// RequestTry records seq as the latest observed confirmation sequence and
// offers evt to the try handlers.
func (h *Host) RequestTry(tid event.TID, evt event.Event, seq event.Seq) {
	h.seq = seq
	h.stack.Publish(event.FamilyTry, tid, evt)
}

// Commit applies evt through the do handlers and transmits it with the
// current sequence.
func (h *Host) Commit(tid event.TID, evt event.Event, broadcast bool) {
	evt.Origin = tid
	h.stack.Publish(event.FamilyDo, tid, evt)
	h.metrics.Add(commitsMetricKey, 1)
	if broadcast {
		h.metrics.Add(broadcastsMetricKey, 1)
	}
	if h.transmitter != nil {
		h.transmitter.Transmit(tid, evt, h.seq, broadcast)
	}
}

// Bootstrap answers a session's first contact by committing its
// connection_init, carrying the identity the session was assigned.
func (h *Host) Bootstrap(tid event.TID, evt event.Event) {
	evt.Origin = tid
	evt.Connection = &event.ConnectionPayload{Assigned: tid}
	h.Commit(tid, evt, false)
}

// LoadScene streams the current scene to tid as committed events, then
// spawns an actor for it and announces the actor to every session.
func (h *Host) LoadScene(tid event.TID) {
	for _, tile := range h.scene.Tiles() {
		h.Commit(tid, event.NewTileChange(tile), false)
	}
	for _, actor := range h.scene.Actors() {
		h.Commit(tid, event.NewActorLoad(actor), false)
	}
	spawn := h.config.Spawn.Flat()
	spawn.Z = h.scene.Elevation(spawn)
	actor := h.actors.Create(tid, h.config.SpawnKind, spawn.Center())
	h.Commit(tid, event.NewActorLoad(actor), true)
}

// Disconnect unloads every actor owned by tid and reports how many were
// removed. The unloads are system commits and carry no sequence.
func (h *Host) Disconnect(tid event.TID) int {
	h.seq = event.NoSeq
	unloaded := 0
	for _, actor := range h.scene.Actors() {
		if actor.Owner != tid {
			continue
		}
		h.Commit(event.SystemTID, event.NewUnloadActor(actor.ID), true)
		unloaded++
	}
	return unloaded
}

// OnSessionEnd persists the canonical scene and returns the terminal outcome.
// It never exits the process; the caller decides how to shut down.
func (h *Host) OnSessionEnd(ctx context.Context) (SessionEnd, error) {
	state := h.scene.State()
	if h.persister == nil {
		return SessionEnd{Code: ExitOK}, nil
	}
	blob, err := h.persister.Save(ctx, state)
	if err != nil {
		return SessionEnd{Code: ExitPersistFail}, fmt.Errorf("authority: save scene: %w", err)
	}
	lifecycle.SessionEnded(ctx, h.publisher, lifecycle.SessionEndedPayload{
		Tiles:  len(state.Tiles),
		Actors: len(state.Actors),
		Bytes:  len(blob),
	})
	return SessionEnd{Blob: blob, Code: ExitOK}, nil
}
