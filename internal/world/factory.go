package world

import (
	"github.com/google/uuid"

	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
)

// Factory creates actors with random identifiers.
type Factory struct {
	// NewID overrides identifier generation, mainly for tests.
	NewID func() string
}

// Create builds a new actor of kind owned by tid at pos.
func (f Factory) Create(tid event.TID, kind string, pos hex.Px) event.ActorState {
	var id string
	if f.NewID != nil {
		id = f.NewID()
	} else {
		id = uuid.NewString()
	}
	return event.ActorState{
		ID:      event.ActorID(id),
		Owner:   tid,
		Kind:    kind,
		Pos:     pos,
		Heading: hex.Directions[0],
	}
}
