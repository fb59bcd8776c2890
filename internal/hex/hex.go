package hex

import "math"

var sqrt3 = math.Sqrt(3)

// Hx is an axial hex coordinate with an integer elevation layer.
type Hx struct {
	Q int `json:"q"`
	R int `json:"r"`
	Z int `json:"z"`
}

// Directions lists the six planar neighbour offsets in clockwise order
// starting east.
var Directions = [6]Hx{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Add returns the component-wise sum of two coordinates.
func (h Hx) Add(o Hx) Hx {
	return Hx{Q: h.Q + o.Q, R: h.R + o.R, Z: h.Z + o.Z}
}

// Flat drops the elevation component.
func (h Hx) Flat() Hx {
	return Hx{Q: h.Q, R: h.R}
}

// IsZero reports whether h is the planar origin offset.
func (h Hx) IsZero() bool {
	return h.Q == 0 && h.R == 0
}

// Distance returns the planar hex distance between two coordinates.
func (h Hx) Distance(o Hx) int {
	dq := h.Q - o.Q
	dr := h.R - o.R
	ds := -dq - dr
	return (abs(dq) + abs(dr) + abs(ds)) / 2
}

// Neighbors returns the six planar neighbours of h, keeping its elevation.
func (h Hx) Neighbors() [6]Hx {
	var out [6]Hx
	for i, dir := range Directions {
		out[i] = h.Add(dir)
	}
	return out
}

// Center converts the coordinate to the continuous position of its centre.
func (h Hx) Center() Px {
	return Px{
		X: sqrt3*float64(h.Q) + sqrt3/2*float64(h.R),
		Y: 1.5 * float64(h.R),
		Z: float64(h.Z),
	}
}

// Px is a continuous world position measured in hex radii.
type Px struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p Px) Add(o Px) Px {
	return Px{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Px) Sub(o Px) Px {
	return Px{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

func (p Px) Scale(s float64) Px {
	return Px{X: p.X * s, Y: p.Y * s, Z: p.Z * s}
}

// Length returns the planar length of p.
func (p Px) Length() float64 {
	return math.Hypot(p.X, p.Y)
}

// Hx returns the hex containing p using cube rounding.
func (p Px) Hx() Hx {
	q := sqrt3/3*p.X - p.Y/3
	r := 2.0 / 3.0 * p.Y
	s := -q - r

	rq, rr, rs := math.Round(q), math.Round(r), math.Round(s)
	dq, dr, ds := math.Abs(rq-q), math.Abs(rr-r), math.Abs(rs-s)
	if dq > dr && dq > ds {
		rq = -rr - rs
	} else if dr > ds {
		rr = -rq - rs
	}
	return Hx{Q: int(rq), R: int(rr), Z: int(math.Round(p.Z))}
}

// Direction returns the unit planar vector pointing along h.
func Direction(h Hx) Px {
	c := h.Flat().Center()
	length := c.Length()
	if length == 0 {
		return Px{}
	}
	return c.Scale(1 / length)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
