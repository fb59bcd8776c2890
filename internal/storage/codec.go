// Package storage persists canonical scene snapshots. Snapshots are JSON
// compressed into an lz4 frame and kept in a SQLite table.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/ThePuug/closed-economy/internal/event"
)

// ErrEmptyBlob is returned when decoding a zero-length snapshot.
var ErrEmptyBlob = errors.New("storage: empty snapshot")

// EncodeScene renders state into a compressed snapshot blob.
func EncodeScene(state event.SceneState) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal scene: %w", err)
	}
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("storage: compress scene: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("storage: compress scene: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeScene reverses EncodeScene.
func DecodeScene(blob []byte) (event.SceneState, error) {
	var state event.SceneState
	if len(blob) == 0 {
		return state, ErrEmptyBlob
	}
	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(blob)))
	if err != nil {
		return state, fmt.Errorf("storage: decompress scene: %w", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("storage: unmarshal scene: %w", err)
	}
	return state, nil
}
