package sim

import (
	"time"

	"github.com/ThePuug/closed-economy/internal/event"
)

// CommandType enumerates the work the host loop executes.
type CommandType string

const (
	// CommandTry offers a decoded client request to the host rules.
	CommandTry CommandType = "Try"
	// CommandDisconnect unloads everything a session owned.
	CommandDisconnect CommandType = "Disconnect"
)

// Command represents an inbound request captured for processing on the next
// tick.
type Command struct {
	OriginTick uint64      `json:"originTick"`
	TID        event.TID   `json:"tid"`
	Type       CommandType `json:"type"`
	IssuedAt   time.Time   `json:"issuedAt"`
	Seq        event.Seq   `json:"seq"`
	Event      event.Event `json:"event"`
	Reason     string      `json:"reason,omitempty"`
}

// NewTry wraps a client request.
func NewTry(tid event.TID, evt event.Event, seq event.Seq) Command {
	return Command{TID: tid, Type: CommandTry, Seq: seq, Event: evt}
}

// NewDisconnect wraps a session departure.
func NewDisconnect(tid event.TID, reason string) Command {
	return Command{TID: tid, Type: CommandDisconnect, Seq: event.NoSeq, Reason: reason}
}

// moveKey identifies a stream of moves that supersede each other.
type moveKey struct {
	tid   event.TID
	actor event.ActorID
}

// Coalesce keeps only the last actor_move try of each session and actor in
// cmds. The elapsed time of superseded moves is folded into the surviving
// one so it stays within the speed budget of the ground it covers. It
// returns the kept commands in their original order and the number dropped.
func Coalesce(cmds []Command) ([]Command, int) {
	last := make(map[moveKey]int)
	folded := make(map[moveKey]float64)
	for i, cmd := range cmds {
		key, ok := moveKeyOf(cmd)
		if !ok {
			continue
		}
		if _, seen := last[key]; seen {
			folded[key] += cmds[last[key]].Event.Dt
		}
		last[key] = i
	}
	if len(folded) == 0 {
		return cmds, 0
	}
	kept := make([]Command, 0, len(cmds))
	for i, cmd := range cmds {
		key, ok := moveKeyOf(cmd)
		if ok && last[key] != i {
			continue
		}
		if ok {
			cmd.Event.Dt += folded[key]
		}
		kept = append(kept, cmd)
	}
	return kept, len(cmds) - len(kept)
}

func moveKeyOf(cmd Command) (moveKey, bool) {
	if cmd.Type != CommandTry || cmd.Event.Kind != event.ActorMove || cmd.Event.Move == nil {
		return moveKey{}, false
	}
	return moveKey{tid: cmd.TID, actor: cmd.Event.Move.Actor}, true
}
