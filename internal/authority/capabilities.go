package authority

import (
	"context"

	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
)

// Transmitter is the send boundary. With broadcast false the confirmation
// goes to tid only; with broadcast true it goes to every connected session.
// seq is event.NoSeq when the confirmation carries no sequence.
type Transmitter interface {
	Transmit(tid event.TID, evt event.Event, seq event.Seq, broadcast bool)
}

// TransmitFunc adapts a function into a Transmitter.
type TransmitFunc func(tid event.TID, evt event.Event, seq event.Seq, broadcast bool)

func (f TransmitFunc) Transmit(tid event.TID, evt event.Event, seq event.Seq, broadcast bool) {
	if f == nil {
		return
	}
	f(tid, evt, seq, broadcast)
}

// SceneProvider gives read access to the canonical scene and to terrain
// elevation.
type SceneProvider interface {
	Elevation(h hex.Hx) int
	Tile(h hex.Hx) (event.TileState, bool)
	Actor(id event.ActorID) (event.ActorState, bool)
	Tiles() []event.TileState
	Actors() []event.ActorState
	State() event.SceneState
}

// ActorFactory creates new actors owned by a session.
type ActorFactory interface {
	Create(tid event.TID, kind string, pos hex.Px) event.ActorState
}

// Persister serializes canonical scene state into an opaque blob.
type Persister interface {
	Save(ctx context.Context, state event.SceneState) ([]byte, error)
}

// SessionEnd is the terminal outcome handed back to the host application.
type SessionEnd struct {
	Blob []byte
	Code int
}

const (
	ExitOK          = 0
	ExitPersistFail = 1
)
