package world

import (
	"errors"
	"fmt"

	"github.com/ThePuug/closed-economy/internal/hex"
)

const moveEpsilon = 1e-9

var (
	// ErrMoveTooFar reports a move that exceeds the speed budget for its dt.
	ErrMoveTooFar = errors.New("world: move exceeds speed budget")
	// ErrMoveBlocked reports a move that ends inside a solid tile.
	ErrMoveBlocked = errors.New("world: move ends in solid tile")
)

// SolidFunc reports whether the tile at a planar coordinate blocks movement.
type SolidFunc func(hex.Hx) bool

// CheckMove validates a move from one position to another over dt seconds.
// Host validation and client prediction share it so both sides agree on
// which moves stand. A dt beyond cfg.MaxMoveDt only earns the capped budget.
func CheckMove(from, to hex.Px, dt float64, cfg Config, solid SolidFunc) error {
	cfg = cfg.normalized()
	dt = cfg.ClampDt(dt)
	budget := cfg.MoveSpeed * dt * (1 + cfg.MoveTolerance)
	if distance := to.Sub(from).Length(); distance > budget+moveEpsilon {
		return fmt.Errorf("%w: moved %.3f with budget %.3f", ErrMoveTooFar, distance, budget)
	}
	if solid != nil {
		target := to.Hx().Flat()
		if target != from.Hx().Flat() && solid(target) {
			return fmt.Errorf("%w at %d,%d", ErrMoveBlocked, target.Q, target.R)
		}
	}
	return nil
}

// Step returns the position reached from pos after travelling along heading
// for dt seconds.
func Step(pos hex.Px, heading hex.Hx, dt float64, cfg Config) hex.Px {
	cfg = cfg.normalized()
	if heading.IsZero() || dt <= 0 {
		return pos
	}
	return pos.Add(hex.Direction(heading).Scale(cfg.MoveSpeed * dt))
}
