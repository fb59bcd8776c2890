package authority

import (
	"context"

	"github.com/ThePuug/closed-economy/internal/dispatch"
	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
	"github.com/ThePuug/closed-economy/internal/terrain"
	"github.com/ThePuug/closed-economy/internal/world"
	"github.com/ThePuug/closed-economy/logging"
	"github.com/ThePuug/closed-economy/logging/protocol"
)

const (
	rejectNotOwner     = "not_owner"
	rejectUnknownActor = "unknown_actor"
	rejectUnknownTile  = "unknown_tile"
)

func (h *Host) buildRules() *dispatch.Listener {
	return dispatch.NewListener("rules").
		On(event.FamilyTry, event.ConnectionInit, dispatch.Consume(h.Bootstrap)).
		On(event.FamilyTry, event.SceneLoad, dispatch.Consume(func(tid event.TID, _ event.Event) {
			h.LoadScene(tid)
		})).
		On(event.FamilyTry, event.ActorMove, dispatch.Consume(h.tryActorMove)).
		On(event.FamilyTry, event.DiscoverTile, dispatch.Consume(h.tryDiscoverTile)).
		On(event.FamilyTry, event.TileChange, dispatch.Consume(h.tryTileChange)).
		On(event.FamilyTry, event.SelectOverlay, dispatch.Consume(func(tid event.TID, evt event.Event) {
			h.Commit(tid, evt, false)
		})).
		On(event.FamilyTry, event.UnloadActor, dispatch.Consume(h.tryUnloadActor))
}

// tryActorMove accepts plausible moves of the requester's own actors. An
// implausible move is answered with the authoritative position so the
// requester reconciles back to it.
func (h *Host) tryActorMove(tid event.TID, evt event.Event) {
	actor, ok := h.scene.Actor(evt.Move.Actor)
	if !ok {
		h.reject(tid, evt, rejectUnknownActor)
		return
	}
	if actor.Owner != tid {
		h.reject(tid, evt, rejectNotOwner)
		return
	}
	if err := world.CheckMove(actor.Pos, evt.Move.Pos, evt.Dt, h.config.Movement, h.solidAt); err != nil {
		h.logger.Printf("[authority] correcting move of %s for %s: %v", actor.ID, tid, err)
		h.metrics.Add(correctionsMetricKey, 1)
		h.Commit(tid, event.NewActorMove(actor.ID, actor.Pos, actor.Heading, 0), false)
		return
	}
	evt.Dt = h.config.Movement.ClampDt(evt.Dt)
	h.Commit(tid, evt, true)
}

// tryDiscoverTile reveals a tile. New tiles are announced to everyone; a
// tile that is already known is resent to the requester only.
func (h *Host) tryDiscoverTile(tid event.TID, evt event.Event) {
	at := evt.Discover.Hx.Flat()
	if tile, ok := h.scene.Tile(at); ok {
		h.Commit(tid, event.NewTileChange(tile), false)
		return
	}
	h.Commit(tid, event.NewTileChange(h.generateTile(at)), true)
}

func (h *Host) tryTileChange(tid event.TID, evt event.Event) {
	if _, ok := h.scene.Tile(evt.Tile.Tile.Hx); !ok {
		h.reject(tid, evt, rejectUnknownTile)
		return
	}
	h.Commit(tid, evt, true)
}

func (h *Host) tryUnloadActor(tid event.TID, evt event.Event) {
	actor, ok := h.scene.Actor(evt.Unload.Actor)
	if !ok {
		h.reject(tid, evt, rejectUnknownActor)
		return
	}
	if actor.Owner != tid {
		h.reject(tid, evt, rejectNotOwner)
		return
	}
	h.Commit(tid, evt, true)
}

func (h *Host) generateTile(at hex.Hx) event.TileState {
	elevation := h.scene.Elevation(at)
	kind, solid := terrain.Classify(elevation)
	return event.TileState{Hx: at, Kind: kind, Solid: solid, Elevation: elevation}
}

// solidAt consults known tiles first and falls back to the terrain for tiles
// nobody has discovered yet.
func (h *Host) solidAt(at hex.Hx) bool {
	if tile, ok := h.scene.Tile(at); ok {
		return tile.Solid
	}
	return h.generateTile(at).Solid
}

func (h *Host) reject(tid event.TID, evt event.Event, reason string) {
	h.metrics.Add(rejectsMetricKey, 1)
	protocol.TryRejected(context.Background(), h.publisher, h.tick, logging.SessionRef(string(tid)), int64(h.seq), protocol.RejectPayload{
		Kind:   string(evt.Kind),
		Reason: reason,
	})
}
