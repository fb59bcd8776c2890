package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ThePuug/closed-economy/internal/event"
)

// Archive encodes scene state and, when a Store is attached, keeps every
// encoded blob. It satisfies authority.Persister.
type Archive struct {
	Store *Store
	Now   func() time.Time
}

func (a Archive) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Save encodes state and stores the blob.
func (a Archive) Save(ctx context.Context, state event.SceneState) ([]byte, error) {
	blob, err := EncodeScene(state)
	if err != nil {
		return nil, err
	}
	if a.Store == nil {
		return blob, nil
	}
	_, err = a.Store.SaveSnapshot(ctx, Snapshot{
		SavedAt: a.now(),
		Tiles:   len(state.Tiles),
		Actors:  len(state.Actors),
		Blob:    blob,
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Latest decodes the newest stored snapshot. ok is false when nothing has
// been stored yet.
func (a Archive) Latest(ctx context.Context) (state event.SceneState, ok bool, err error) {
	if a.Store == nil {
		return state, false, nil
	}
	snap, err := a.Store.LatestSnapshot(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return state, false, nil
	}
	if err != nil {
		return state, false, err
	}
	state, err = DecodeScene(snap.Blob)
	if err != nil {
		return state, false, err
	}
	return state, true, nil
}
