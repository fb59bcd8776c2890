package lifecycle

import (
	"context"

	"github.com/ThePuug/closed-economy/logging"
)

const (
	// EventSessionJoined is emitted when a transport connection is assigned a session.
	EventSessionJoined logging.EventType = "lifecycle.session_joined"
	// EventSessionLeft is emitted when a session disconnects.
	EventSessionLeft logging.EventType = "lifecycle.session_left"
	// EventSessionEnded is emitted when the host persists its scene on shutdown.
	EventSessionEnded logging.EventType = "lifecycle.session_ended"
)

// SessionJoinedPayload captures the transport address of a new session.
type SessionJoinedPayload struct {
	Remote string `json:"remote,omitempty"`
}

// SessionLeftPayload captures why a session left.
type SessionLeftPayload struct {
	Reason   string `json:"reason"`
	Unloaded int    `json:"unloaded"`
}

// SessionEndedPayload captures the persisted snapshot summary.
type SessionEndedPayload struct {
	Tiles  int `json:"tiles"`
	Actors int `json:"actors"`
	Bytes  int `json:"bytes"`
}

// SessionJoined publishes a session join event.
func SessionJoined(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SessionJoinedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionJoined,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// SessionLeft publishes a session disconnect event.
func SessionLeft(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionLeftPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionLeft,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// SessionEnded publishes the host shutdown event.
func SessionEnded(ctx context.Context, pub logging.Publisher, payload SessionEndedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionEnded,
		Actor:    logging.EntityRef{Kind: logging.EntityKindHost},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
