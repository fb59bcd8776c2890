package protocol

import (
	"context"

	"github.com/ThePuug/closed-economy/logging"
)

const (
	// EventSequenceSkipped is emitted when reconciliation discards a pending
	// entry that the host never confirmed individually.
	EventSequenceSkipped logging.EventType = "protocol.sequence_skipped"
	// EventReconciled is emitted after a confirmation of the client's own
	// request has been applied and the remaining entries replayed.
	EventReconciled logging.EventType = "protocol.reconciled"
	// EventPendingBacklog is emitted when the pending queue crosses a warning step.
	EventPendingBacklog logging.EventType = "protocol.pending_backlog"
	// EventTryRejected is emitted when the host declines a requested change.
	EventTryRejected logging.EventType = "protocol.try_rejected"
	// EventMessageDropped is emitted when the transport discards an inbound message.
	EventMessageDropped logging.EventType = "protocol.message_dropped"
	// EventOverlayToggled is emitted when the client opens or closes the overlay.
	EventOverlayToggled logging.EventType = "protocol.overlay_toggled"
)

type SkipPayload struct {
	Skipped   int64  `json:"skipped"`
	Confirmed int64  `json:"confirmed"`
	Kind      string `json:"kind"`
}

type ReconcilePayload struct {
	Confirmed int64  `json:"confirmed"`
	Kind      string `json:"kind"`
	Skipped   int    `json:"skipped"`
	Replayed  int    `json:"replayed"`
}

type BacklogPayload struct {
	Pending int `json:"pending"`
}

type RejectPayload struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

type DropPayload struct {
	Reason string `json:"reason"`
}

type OverlayPayload struct {
	Open  bool   `json:"open"`
	Panel string `json:"panel,omitempty"`
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryProtocol
	pub.Publish(ctx, event)
}

func seqPtr(seq int64) *int64 {
	return &seq
}

// SequenceSkipped publishes a warning for a discarded pending entry.
func SequenceSkipped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SkipPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventSequenceSkipped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Payload:  payload,
		Seq:      seqPtr(payload.Skipped),
	})
}

// Reconciled publishes a debug event summarising one reconciliation pass.
func Reconciled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ReconcilePayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventReconciled,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Payload:  payload,
		Seq:      seqPtr(payload.Confirmed),
	})
}

// PendingBacklog publishes a warning when the pending queue keeps growing.
func PendingBacklog(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BacklogPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPendingBacklog,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Payload:  payload,
	})
}

// TryRejected publishes a warning for a request the host declined.
func TryRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, seq int64, payload RejectPayload) {
	event := logging.Event{
		Type:     EventTryRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Payload:  payload,
	}
	if seq >= 0 {
		event.Seq = seqPtr(seq)
	}
	publish(ctx, pub, event)
}

// MessageDropped publishes a warning for an inbound message the transport discarded.
func MessageDropped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload DropPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventMessageDropped,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Payload:  payload,
	})
}

// OverlayToggled publishes an info event when the overlay opens or closes.
func OverlayToggled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload OverlayPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventOverlayToggled,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}
