package event

import (
	"errors"
	"fmt"

	"github.com/ThePuug/closed-economy/internal/hex"
)

// TID identifies the session that originated an event. SystemTID marks
// events raised by the host itself.
type TID string

const SystemTID TID = ""

// Seq names a client's speculative action. NoSeq marks an unsequenced
// message; the first allocated sequence is NoSeq+1 == 0.
type Seq int64

const NoSeq Seq = -1

// Valid reports whether s names an allocated sequence.
func (s Seq) Valid() bool {
	return s >= 0
}

// ActorID identifies an actor inside a scene.
type ActorID string

// TileState is the shape of a tile crossing the protocol boundary.
type TileState struct {
	Hx        hex.Hx `json:"hx"`
	Kind      string `json:"kind"`
	Solid     bool   `json:"solid,omitempty"`
	Elevation int    `json:"elevation"`
}

// ActorState is the shape of an actor crossing the protocol boundary.
type ActorState struct {
	ID      ActorID `json:"id"`
	Owner   TID     `json:"owner,omitempty"`
	Kind    string  `json:"kind"`
	Pos     hex.Px  `json:"pos"`
	Heading hex.Hx  `json:"heading"`
}

// SceneState is the canonical scene content handed to persistence.
type SceneState struct {
	Tiles  []TileState  `json:"tiles"`
	Actors []ActorState `json:"actors"`
}

type ConnectionPayload struct {
	Assigned TID `json:"assigned,omitempty"`
}

type TilePayload struct {
	Tile TileState `json:"tile"`
}

type DiscoverPayload struct {
	Hx hex.Hx `json:"hx"`
}

type ActorPayload struct {
	Actor ActorState `json:"actor"`
}

// MovePayload carries the resulting position of a move and the heading the
// actor was travelling along.
type MovePayload struct {
	Actor   ActorID `json:"actor"`
	Pos     hex.Px  `json:"pos"`
	Heading hex.Hx  `json:"heading"`
}

type OverlayPayload struct {
	Open  bool   `json:"open"`
	Panel string `json:"panel,omitempty"`
}

type UnloadPayload struct {
	Actor ActorID `json:"actor"`
}

type KeyPayload struct {
	Key  string `json:"key"`
	Down bool   `json:"down"`
}

// Event is a tagged variant: Kind selects which payload pointer is set.
// Payloads are shared between copies and must be treated as read-only.
type Event struct {
	Kind       Kind               `json:"kind"`
	Origin     TID                `json:"tid,omitempty"`
	Dt         float64            `json:"dt,omitempty"`
	Connection *ConnectionPayload `json:"connection,omitempty"`
	Tile       *TilePayload       `json:"tile,omitempty"`
	Discover   *DiscoverPayload   `json:"discover,omitempty"`
	Actor      *ActorPayload      `json:"actor,omitempty"`
	Move       *MovePayload       `json:"move,omitempty"`
	Overlay    *OverlayPayload    `json:"overlay,omitempty"`
	Unload     *UnloadPayload     `json:"unload,omitempty"`
	Key        *KeyPayload        `json:"key,omitempty"`
}

var (
	ErrUnknownKind    = errors.New("event: unknown kind")
	ErrMissingPayload = errors.New("event: missing payload")
	ErrUnexpectedDt   = errors.New("event: dt on a kind without motion")
)

// Validate checks that the kind belongs to the catalog, that its payload is
// present and that only motion kinds carry dt.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if e.Dt != 0 && !e.Kind.Motion() {
		return fmt.Errorf("%w: %s", ErrUnexpectedDt, e.Kind)
	}
	var missing bool
	switch e.Kind {
	case TileChange:
		missing = e.Tile == nil
	case DiscoverTile:
		missing = e.Discover == nil
	case ActorLoad:
		missing = e.Actor == nil
	case ActorMove:
		missing = e.Move == nil
	case SelectOverlay:
		missing = e.Overlay == nil
	case UnloadActor:
		missing = e.Unload == nil
	case KeyInput:
		missing = e.Key == nil
	}
	if missing {
		return fmt.Errorf("%w for %s", ErrMissingPayload, e.Kind)
	}
	return nil
}

func NewConnectionInit(assigned TID) Event {
	return Event{Kind: ConnectionInit, Connection: &ConnectionPayload{Assigned: assigned}}
}

func NewSceneLoad() Event {
	return Event{Kind: SceneLoad}
}

func NewTileChange(tile TileState) Event {
	return Event{Kind: TileChange, Tile: &TilePayload{Tile: tile}}
}

func NewDiscoverTile(hx hex.Hx) Event {
	return Event{Kind: DiscoverTile, Discover: &DiscoverPayload{Hx: hx}}
}

func NewActorLoad(actor ActorState) Event {
	return Event{Kind: ActorLoad, Actor: &ActorPayload{Actor: actor}}
}

func NewActorMove(id ActorID, pos hex.Px, heading hex.Hx, dt float64) Event {
	return Event{Kind: ActorMove, Dt: dt, Move: &MovePayload{Actor: id, Pos: pos, Heading: heading}}
}

func NewSelectOverlay(open bool, panel string) Event {
	return Event{Kind: SelectOverlay, Overlay: &OverlayPayload{Open: open, Panel: panel}}
}

func NewUnloadActor(id ActorID) Event {
	return Event{Kind: UnloadActor, Unload: &UnloadPayload{Actor: id}}
}

func NewKeyInput(key string, down bool) Event {
	return Event{Kind: KeyInput, Key: &KeyPayload{Key: key, Down: down}}
}

func NewOverlayRequest() Event {
	return Event{Kind: OverlayRequest}
}

func NewOverlayOpened() Event {
	return Event{Kind: OverlayOpened}
}
