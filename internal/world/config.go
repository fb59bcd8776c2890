package world

const (
	// DefaultMoveSpeed is the planar speed of an actor in hex radii per second.
	DefaultMoveSpeed = 3.0
	// DefaultMoveTolerance is the fraction by which a move may exceed its
	// speed budget before the host rejects it.
	DefaultMoveTolerance = 0.25
	// DefaultMaxMoveDt bounds the elapsed time a host accepts for one move
	// when no cap is configured.
	DefaultMaxMoveDt = 0.25
)

// Config tunes movement and prediction for a Scene.
type Config struct {
	// MoveSpeed bounds how far an actor travels per second.
	MoveSpeed float64
	// MoveTolerance widens the speed budget to absorb timing jitter.
	MoveTolerance float64
	// MaxMoveDt caps the seconds a single move may claim. Zero leaves the
	// claim unbounded.
	MaxMoveDt float64
	// Predict enables the try handlers that apply requested changes locally
	// before they are confirmed.
	Predict bool
}

// DefaultConfig returns the movement settings shared by host and client.
func DefaultConfig() Config {
	return Config{
		MoveSpeed:     DefaultMoveSpeed,
		MoveTolerance: DefaultMoveTolerance,
	}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.MoveSpeed <= 0 {
		normalized.MoveSpeed = DefaultMoveSpeed
	}
	if normalized.MoveTolerance < 0 {
		normalized.MoveTolerance = 0
	}
	if normalized.MaxMoveDt < 0 {
		normalized.MaxMoveDt = 0
	}
	return normalized
}

// ClampDt bounds a claimed move duration to [0, MaxMoveDt].
func (cfg Config) ClampDt(dt float64) float64 {
	if dt < 0 {
		return 0
	}
	if cfg.MaxMoveDt > 0 && dt > cfg.MaxMoveDt {
		return cfg.MaxMoveDt
	}
	return dt
}
