package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThePuug/closed-economy/internal/event"
)

const (
	// Version tracks the wire-protocol revision expected by both roles.
	Version = 1

	// TypeTry carries a client request to the host.
	TypeTry = "try"
	// TypeDo carries a host confirmation to a client.
	TypeDo = "do"
)

var (
	ErrUnsupportedVersion = errors.New("proto: unsupported protocol version")
	ErrUnknownType        = errors.New("proto: unknown message type")
	ErrLocalKind          = errors.New("proto: kind does not cross the wire")
	ErrInvalidSeq         = errors.New("proto: invalid sequence")
)

// Message is the envelope for every websocket frame. Seq is omitted when the
// message carries no sequence.
type Message struct {
	Ver       int         `json:"ver"`
	Type      string      `json:"type"`
	TID       event.TID   `json:"tid,omitempty"`
	Seq       *int64      `json:"seq,omitempty"`
	Broadcast bool        `json:"broadcast,omitempty"`
	Event     event.Event `json:"event"`
}

// Sequence returns the message sequence, event.NoSeq when absent.
func (m Message) Sequence() event.Seq {
	if m.Seq == nil {
		return event.NoSeq
	}
	return event.Seq(*m.Seq)
}

func seqField(seq event.Seq) *int64 {
	if !seq.Valid() {
		return nil
	}
	value := int64(seq)
	return &value
}

// EncodeTry renders a client request.
func EncodeTry(tid event.TID, evt event.Event, seq event.Seq) ([]byte, error) {
	return encode(Message{
		Ver:   Version,
		Type:  TypeTry,
		TID:   tid,
		Seq:   seqField(seq),
		Event: evt,
	})
}

// EncodeDo renders a host confirmation.
func EncodeDo(tid event.TID, evt event.Event, seq event.Seq, broadcast bool) ([]byte, error) {
	return encode(Message{
		Ver:       Version,
		Type:      TypeDo,
		TID:       tid,
		Seq:       seqField(seq),
		Broadcast: broadcast,
		Event:     evt,
	})
}

func encode(msg Message) ([]byte, error) {
	if !msg.Event.Kind.Protocol() {
		return nil, fmt.Errorf("%w: %s", ErrLocalKind, msg.Event.Kind)
	}
	return json.Marshal(msg)
}

// Decode parses and validates an inbound frame. A missing version is read
// as the current one.
func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, fmt.Errorf("proto: decode: %w", err)
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("%w %d", ErrUnsupportedVersion, msg.Ver)
	}
	if msg.Type != TypeTry && msg.Type != TypeDo {
		return msg, fmt.Errorf("%w %q", ErrUnknownType, msg.Type)
	}
	if msg.Seq != nil && *msg.Seq < 0 {
		return msg, fmt.Errorf("%w %d", ErrInvalidSeq, *msg.Seq)
	}
	if err := msg.Event.Validate(); err != nil {
		return msg, err
	}
	if !msg.Event.Kind.Protocol() {
		return msg, fmt.Errorf("%w: %s", ErrLocalKind, msg.Event.Kind)
	}
	return msg, nil
}
