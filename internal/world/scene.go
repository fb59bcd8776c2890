// Package world holds the scene registry: the tiles and actors a session
// knows about, and the handlers that apply protocol events to them.
package world

import (
	"sort"

	"github.com/ThePuug/closed-economy/internal/dispatch"
	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
	"github.com/ThePuug/closed-economy/internal/telemetry"
	"github.com/ThePuug/closed-economy/internal/terrain"
)

// Requester is the session the scene emits requests through.
type Requester interface {
	RequestAction(evt event.Event, sync bool)
	TID() event.TID
}

// Deps bundles the collaborators a Scene needs.
type Deps struct {
	Field  *terrain.Field
	Logger telemetry.Logger
}

type actor struct {
	state event.ActorState
	tween float64
}

// Scene is the tile and actor registry of one session. It is mutated only by
// its listener's handlers and by Restore, and is not safe for concurrent use.
type Scene struct {
	config Config
	field  *terrain.Field
	logger telemetry.Logger

	tiles     map[hex.Hx]event.TileState
	actors    map[event.ActorID]*actor
	requested map[hex.Hx]struct{}

	requester Requester
	listener  *dispatch.Listener
}

// New constructs an empty scene.
func New(cfg Config, deps Deps) *Scene {
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	s := &Scene{
		config:    cfg.normalized(),
		field:     deps.Field,
		logger:    logger,
		tiles:     make(map[hex.Hx]event.TileState),
		actors:    make(map[event.ActorID]*actor),
		requested: make(map[hex.Hx]struct{}),
	}
	s.listener = s.buildListener()
	return s
}

func (s *Scene) buildListener() *dispatch.Listener {
	l := dispatch.NewListener("scene").
		On(event.FamilyDo, event.TileChange, dispatch.Consume(s.doTileChange)).
		On(event.FamilyDo, event.ActorLoad, dispatch.Consume(s.doActorLoad)).
		On(event.FamilyDo, event.ActorMove, dispatch.Consume(s.doActorMove)).
		On(event.FamilyDo, event.UnloadActor, dispatch.Consume(s.doUnloadActor))
	if s.config.Predict {
		l.On(event.FamilyTry, event.ActorMove, dispatch.Consume(s.tryActorMove)).
			On(event.FamilyTry, event.TileChange, dispatch.Consume(s.doTileChange))
	}
	return l
}

// Listener returns the scene's protocol listener.
func (s *Scene) Listener() *dispatch.Listener {
	return s.listener
}

// Config returns the normalized movement settings.
func (s *Scene) Config() Config {
	return s.config
}

// Bind sets the session that Update emits requests through.
func (s *Scene) Bind(r Requester) {
	s.requester = r
}

func (s *Scene) doTileChange(_ event.TID, evt event.Event) {
	tile := evt.Tile.Tile
	tile.Hx = tile.Hx.Flat()
	s.tiles[tile.Hx] = tile
	delete(s.requested, tile.Hx)
}

func (s *Scene) doActorLoad(_ event.TID, evt event.Event) {
	state := evt.Actor.Actor
	s.actors[state.ID] = &actor{state: state}
}

func (s *Scene) doActorMove(_ event.TID, evt event.Event) {
	a, ok := s.actors[evt.Move.Actor]
	if !ok {
		s.logger.Printf("[scene] move for unknown actor %s", evt.Move.Actor)
		return
	}
	a.state.Pos = evt.Move.Pos
	a.state.Heading = evt.Move.Heading
	a.tween = evt.Dt
}

func (s *Scene) doUnloadActor(_ event.TID, evt event.Event) {
	delete(s.actors, evt.Unload.Actor)
}

func (s *Scene) tryActorMove(_ event.TID, evt event.Event) {
	a, ok := s.actors[evt.Move.Actor]
	if !ok {
		return
	}
	if err := CheckMove(a.state.Pos, evt.Move.Pos, evt.Dt, s.config, s.knownSolid); err != nil {
		s.logger.Printf("[scene] not predicting move of %s: %v", evt.Move.Actor, err)
		return
	}
	a.state.Pos = evt.Move.Pos
	a.state.Heading = evt.Move.Heading
	a.tween = evt.Dt
}

// knownSolid treats undiscovered tiles as open; the host corrects if needed.
func (s *Scene) knownSolid(h hex.Hx) bool {
	tile, ok := s.tiles[h.Flat()]
	return ok && tile.Solid
}

// Update advances the local actor along heading and requests discovery of
// the tiles around it. It does nothing until the scene is bound and the
// session owns an actor.
func (s *Scene) Update(dt float64, heading hex.Hx) {
	if s.requester == nil {
		return
	}
	local, ok := s.local()
	if !ok {
		return
	}
	dt = s.config.ClampDt(dt)
	if !heading.IsZero() && dt > 0 {
		next := Step(local.state.Pos, heading, dt, s.config)
		s.requester.RequestAction(event.NewActorMove(local.state.ID, next, heading.Flat(), dt), false)
	}
	s.discoverAround(local.state.Pos.Hx().Flat())
}

func (s *Scene) discoverAround(center hex.Hx) {
	neighbors := center.Neighbors()
	candidates := append([]hex.Hx{center}, neighbors[:]...)
	for _, h := range candidates {
		if _, known := s.tiles[h]; known {
			continue
		}
		if _, pending := s.requested[h]; pending {
			continue
		}
		s.requested[h] = struct{}{}
		s.requester.RequestAction(event.NewDiscoverTile(h), false)
	}
}

func (s *Scene) local() (*actor, bool) {
	tid := s.requester.TID()
	if tid == event.SystemTID {
		return nil, false
	}
	var found *actor
	for _, a := range s.actors {
		if a.state.Owner != tid {
			continue
		}
		if found == nil || a.state.ID < found.state.ID {
			found = a
		}
	}
	return found, found != nil
}

// Local returns the first actor owned by the bound session.
func (s *Scene) Local() (event.ActorState, bool) {
	if s.requester == nil {
		return event.ActorState{}, false
	}
	a, ok := s.local()
	if !ok {
		return event.ActorState{}, false
	}
	return a.state, true
}

// Elevation returns the terrain elevation at h.
func (s *Scene) Elevation(h hex.Hx) int {
	return s.field.Elevation(h.Flat())
}

// Tile returns the known tile at h.
func (s *Scene) Tile(h hex.Hx) (event.TileState, bool) {
	tile, ok := s.tiles[h.Flat()]
	return tile, ok
}

// Actor returns the actor with id.
func (s *Scene) Actor(id event.ActorID) (event.ActorState, bool) {
	a, ok := s.actors[id]
	if !ok {
		return event.ActorState{}, false
	}
	return a.state, true
}

// Tween returns the interpolation time of the actor's last applied move.
func (s *Scene) Tween(id event.ActorID) float64 {
	if a, ok := s.actors[id]; ok {
		return a.tween
	}
	return 0
}

// Tiles returns the known tiles ordered by coordinate.
func (s *Scene) Tiles() []event.TileState {
	tiles := make([]event.TileState, 0, len(s.tiles))
	for _, tile := range s.tiles {
		tiles = append(tiles, tile)
	}
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Hx.Q != tiles[j].Hx.Q {
			return tiles[i].Hx.Q < tiles[j].Hx.Q
		}
		return tiles[i].Hx.R < tiles[j].Hx.R
	})
	return tiles
}

// Actors returns the actors ordered by id.
func (s *Scene) Actors() []event.ActorState {
	actors := make([]event.ActorState, 0, len(s.actors))
	for _, a := range s.actors {
		actors = append(actors, a.state)
	}
	sort.Slice(actors, func(i, j int) bool { return actors[i].ID < actors[j].ID })
	return actors
}

// State returns the canonical content of the scene.
func (s *Scene) State() event.SceneState {
	return event.SceneState{Tiles: s.Tiles(), Actors: s.Actors()}
}

// Restore replaces the scene content with state.
func (s *Scene) Restore(state event.SceneState) {
	s.tiles = make(map[hex.Hx]event.TileState, len(state.Tiles))
	for _, tile := range state.Tiles {
		tile.Hx = tile.Hx.Flat()
		s.tiles[tile.Hx] = tile
	}
	s.actors = make(map[event.ActorID]*actor, len(state.Actors))
	for _, a := range state.Actors {
		s.actors[a.ID] = &actor{state: a}
	}
	s.requested = make(map[hex.Hx]struct{})
}
