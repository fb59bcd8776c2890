// Package intake turns decoded wire messages into loop commands.
package intake

import (
	"time"

	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/net/proto"
	"github.com/ThePuug/closed-economy/internal/sim"
)

const (
	RejectUnexpectedType = "unexpected_type"
	RejectNotRequestable = "not_requestable"
)

// requestable lists the kinds a session may try. actor_load is only ever
// committed by the host.
var requestable = map[event.Kind]bool{
	event.ConnectionInit: true,
	event.SceneLoad:      true,
	event.TileChange:     true,
	event.DiscoverTile:   true,
	event.ActorMove:      true,
	event.SelectOverlay:  true,
	event.UnloadActor:    true,
}

type CommandContext struct {
	Now func() time.Time
}

// StageTry builds the try command for msg received from tid. The origin is
// always the connection's tid, whatever the envelope claims.
func StageTry(ctx CommandContext, tid event.TID, msg proto.Message) (sim.Command, bool, string) {
	var zero sim.Command
	if msg.Type != proto.TypeTry {
		return zero, false, RejectUnexpectedType
	}
	if !requestable[msg.Event.Kind] {
		return zero, false, RejectNotRequestable
	}
	cmd := sim.NewTry(tid, msg.Event, msg.Sequence())
	if ctx.Now != nil {
		cmd.IssuedAt = ctx.Now()
	}
	return cmd, true, ""
}
