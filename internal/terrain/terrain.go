// Package terrain generates deterministic elevation for hex coordinates.
package terrain

import "github.com/ThePuug/closed-economy/internal/hex"

const (
	// MaxElevation is the highest value Elevation returns.
	MaxElevation = 8
	// SolidElevation is the elevation at and above which tiles block movement.
	SolidElevation = 7

	cellSize = 4
)

// Field maps hex coordinates to elevations. The same seed always produces the
// same field.
type Field struct {
	seed uint64
}

func New(seed uint64) *Field {
	return &Field{seed: seed}
}

// Seed returns the seed the field was built with.
func (f *Field) Seed() uint64 {
	if f == nil {
		return 0
	}
	return f.seed
}

// Elevation returns the elevation at h in [0, MaxElevation]. Lattice values are
// blended across cells so adjacent tiles differ by small steps.
func (f *Field) Elevation(h hex.Hx) int {
	if f == nil {
		return 0
	}
	cq, fq := split(h.Q)
	cr, fr := split(h.R)

	v00 := f.lattice(cq, cr)
	v10 := f.lattice(cq+1, cr)
	v01 := f.lattice(cq, cr+1)
	v11 := f.lattice(cq+1, cr+1)

	top := lerp(v00, v10, fq)
	bottom := lerp(v01, v11, fq)
	value := lerp(top, bottom, fr)

	elevation := int(value * float64(MaxElevation+1)) // value in [0, 1)
	if elevation > MaxElevation {
		elevation = MaxElevation
	}
	return elevation
}

// Classify returns the tile kind and solidity for an elevation.
func Classify(elevation int) (kind string, solid bool) {
	switch {
	case elevation >= SolidElevation:
		return "rock", true
	case elevation >= 5:
		return "hill", false
	case elevation >= 2:
		return "grass", false
	default:
		return "water", false
	}
}

func (f *Field) lattice(q, r int) float64 {
	x := f.seed ^ (uint64(uint32(q)) << 32) ^ uint64(uint32(r))
	return float64(mix(x)>>11) / float64(1<<53)
}

// split returns the lattice cell containing v and the fractional offset inside it.
func split(v int) (int, float64) {
	cell := v / cellSize
	offset := v % cellSize
	if offset < 0 {
		cell--
		offset += cellSize
	}
	return cell, float64(offset) / cellSize
}

func lerp(a, b, t float64) float64 {
	t = t * t * (3 - 2*t)
	return a + (b-a)*t
}

// mix is the splitmix64 finaliser.
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
