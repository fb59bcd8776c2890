package proto

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/hex"
)

func TestEncodeTry(t *testing.T) {
	t.Run("sequenced", func(t *testing.T) {
		data, err := EncodeTry("c1", event.NewActorMove("a", hex.Px{X: 1}, hex.Hx{Q: 1}, 0.1), 4)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("expected valid json: %v", err)
		}
		if raw["type"] != TypeTry || raw["seq"] != float64(4) || raw["ver"] != float64(Version) {
			t.Fatalf("unexpected envelope %v", raw)
		}
	})

	t.Run("sync omits seq", func(t *testing.T) {
		data, err := EncodeTry("", event.NewConnectionInit(""), event.NoSeq)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if strings.Contains(string(data), `"seq"`) {
			t.Fatalf("expected seq to be omitted, got %s", data)
		}
	})

	t.Run("rejects local kinds", func(t *testing.T) {
		if _, err := EncodeTry("c1", event.NewKeyInput("w", true), 0); !errors.Is(err, ErrLocalKind) {
			t.Fatalf("expected ErrLocalKind, got %v", err)
		}
	})
}

func TestDecodeRoundTrip(t *testing.T) {
	data, err := EncodeDo("c1", event.NewTileChange(event.TileState{Hx: hex.Hx{Q: 2, R: -1}, Kind: "grass", Elevation: 3}), 0, true)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != TypeDo || msg.TID != "c1" || !msg.Broadcast {
		t.Fatalf("unexpected envelope %+v", msg)
	}
	if msg.Sequence() != 0 {
		t.Fatalf("expected seq 0 to survive the round trip, got %d", msg.Sequence())
	}
	if tile := msg.Event.Tile.Tile; tile.Hx != (hex.Hx{Q: 2, R: -1}) || tile.Elevation != 3 {
		t.Fatalf("unexpected tile %+v", tile)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"version", `{"ver":9,"type":"try","event":{"kind":"scene_load"}}`, ErrUnsupportedVersion},
		{"type", `{"type":"ack","event":{"kind":"scene_load"}}`, ErrUnknownType},
		{"seq", `{"type":"try","seq":-3,"event":{"kind":"scene_load"}}`, ErrInvalidSeq},
		{"kind", `{"type":"try","event":{"kind":"teleport"}}`, event.ErrUnknownKind},
		{"payload", `{"type":"try","event":{"kind":"actor_move"}}`, event.ErrMissingPayload},
		{"local", `{"type":"try","event":{"kind":"overlay_opened"}}`, ErrLocalKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.payload)); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if _, err := Decode([]byte("{")); err == nil {
		t.Fatalf("expected malformed json to fail")
	}
}

func TestDecodeDefaultsVersion(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"try","event":{"kind":"scene_load"}}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Ver != Version || msg.Sequence() != event.NoSeq {
		t.Fatalf("unexpected defaults %+v", msg)
	}
}
