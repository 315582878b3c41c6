package stroke

import (
	"math"
	"math/rand"
)

// GridColumns is the number of beat subdivisions in one bar.
const GridColumns = 32

// EraseRadius is the pointer distance within which the eraser removes a stroke.
const EraseRadius = 20.0

// Snap moves x to the nearest grid column of a canvas of the given width.
func Snap(x, width float64) float64 {
	if !(width > 0) {
		return x
	}
	col := width / GridColumns
	return math.Round(x/col) * col
}

// Transform maps raw device coordinates onto canvas space: the canvas element
// sits at (Left, Top) and is displayed scaled relative to its backing size.
type Transform struct {
	Left, Top      float64
	ScaleX, ScaleY float64
}

// Identity is the transform for a canvas displayed at its backing size.
var Identity = Transform{ScaleX: 1, ScaleY: 1}

// ForDisplay builds the transform for a canvas of backing size (w, h) shown in
// a rectangle of displayed size (dw, dh) at (left, top).
func ForDisplay(left, top, w, h, dw, dh float64) Transform {
	t := Transform{Left: left, Top: top, ScaleX: 1, ScaleY: 1}
	if dw > 0 {
		t.ScaleX = w / dw
	}
	if dh > 0 {
		t.ScaleY = h / dh
	}
	return t
}

// Apply converts device coordinates to canvas coordinates.
func (t Transform) Apply(clientX, clientY float64) (x, y float64) {
	return (clientX - t.Left) * t.ScaleX, (clientY - t.Top) * t.ScaleY
}

// Jitter is the half-range of the per-point random offsets of a brush.
type Jitter struct {
	X, Y float64
}

// Jitterer rolls point offsets from a private random source.
type Jitterer struct {
	rng *rand.Rand
}

// NewJitterer returns a Jitterer seeded with seed.
func NewJitterer(seed int64) *Jitterer {
	return &Jitterer{rng: rand.New(rand.NewSource(seed))}
}

// Point creates a point at (x, y) with offsets drawn uniformly from
// [-j.X, j.X) and [-j.Y, j.Y). A zero Jitter produces no offset.
func (g *Jitterer) Point(x, y float64, j Jitter) Point {
	p := Point{X: x, Y: y}
	if j.X != 0 {
		p.JitterX = g.rng.Float64()*2*j.X - j.X
	}
	if j.Y != 0 {
		p.JitterY = g.rng.Float64()*2*j.Y - j.Y
	}
	return p
}
