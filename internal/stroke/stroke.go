package stroke

import (
	"math"
	"sort"
	"strings"
)

// Brush selects both the visual style and the synthesis recipe of a stroke.
type Brush string

const (
	BrushStandard    Brush = "standard"
	BrushVariable    Brush = "variable"
	BrushCalligraphy Brush = "calligraphy"
	BrushParticles   Brush = "particles"
	BrushFractal     Brush = "fractal"
	BrushChord       Brush = "chord"
	BrushBristle     Brush = "bristle"
)

// Brushes lists the brushes in palette order.
func Brushes() []Brush {
	return []Brush{BrushStandard, BrushVariable, BrushCalligraphy, BrushParticles, BrushFractal, BrushChord, BrushBristle}
}

// ParseBrush resolves a brush name; unknown names map to BrushStandard.
func ParseBrush(name string) Brush {
	for _, b := range Brushes() {
		if strings.EqualFold(string(b), strings.TrimSpace(name)) {
			return b
		}
	}
	return BrushStandard
}

// Chord names a chord voicing used by BrushChord.
type Chord string

const (
	ChordMajor      Chord = "major"
	ChordMinor      Chord = "minor"
	ChordDiminished Chord = "diminished"
	ChordAugmented  Chord = "augmented"
	ChordSus2       Chord = "sus2"
	ChordSus4       Chord = "sus4"
)

var chordIntervals = map[Chord][]int{
	ChordMajor:      {0, 4, 7},
	ChordMinor:      {0, 3, 7},
	ChordDiminished: {0, 3, 6},
	ChordAugmented:  {0, 4, 8},
	ChordSus2:       {0, 2, 7},
	ChordSus4:       {0, 5, 7},
}

// Chords lists the chord kinds in palette order.
func Chords() []Chord {
	return []Chord{ChordMajor, ChordMinor, ChordDiminished, ChordAugmented, ChordSus2, ChordSus4}
}

// Intervals returns the semitone offsets of c. Unknown or empty chords yield
// a single root voice.
func (c Chord) Intervals() []int {
	if iv, ok := chordIntervals[c]; ok {
		out := make([]int, len(iv))
		copy(out, iv)
		return out
	}
	return []int{0}
}

// Point is one sample of a gesture in canvas coordinates. JitterX/JitterY are
// rolled once when the point is captured and never again.
type Point struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	JitterX float64 `json:"jX,omitempty"`
	JitterY float64 `json:"jY,omitempty"`
}

// Stroke is one continuous gesture. Points keep drawing order.
type Stroke struct {
	Points    []Point `json:"points"`
	Brush     Brush   `json:"brush"`
	Thickness float64 `json:"thickness"`
	Chord     Chord   `json:"chordType,omitempty"`
}

const (
	MinThickness = 1.0
	MaxThickness = 20.0
)

// New starts a stroke with its first point. Thickness is clamped to
// [MinThickness, MaxThickness]; the chord kind is kept only for chord strokes.
func New(brush Brush, thickness float64, chord Chord, first Point) *Stroke {
	if !(thickness >= MinThickness) {
		thickness = MinThickness
	}
	if thickness > MaxThickness {
		thickness = MaxThickness
	}
	if brush != BrushChord {
		chord = ""
	}
	return &Stroke{Points: []Point{first}, Brush: brush, Thickness: thickness, Chord: chord}
}

// Append adds a point in drawing order.
func (s *Stroke) Append(p Point) {
	s.Points = append(s.Points, p)
}

// Continuous reports whether the stroke plays as one sustained voice (as
// opposed to a cloud of grains).
func (s *Stroke) Continuous() bool {
	return s.Brush != BrushParticles
}

// Playable reports whether the stroke has enough points for its brush.
func (s *Stroke) Playable() bool {
	if !s.Continuous() {
		return len(s.Points) > 0
	}
	return len(s.Points) >= 2
}

// SortedByX returns a copy of the points stable-sorted by X. Scheduling reads
// points in this order so automation timestamps never decrease.
func (s *Stroke) SortedByX() []Point {
	out := make([]Point, len(s.Points))
	copy(out, s.Points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].X < out[j].X })
	return out
}

// Bounds returns the minimum and maximum X of the stroke.
func (s *Stroke) Bounds() (minX, maxX float64) {
	if len(s.Points) == 0 {
		return 0, 0
	}
	minX, maxX = math.Inf(1), math.Inf(-1)
	for _, p := range s.Points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
	}
	return minX, maxX
}

// Near reports whether any point of s lies within radius of (x, y).
func (s *Stroke) Near(x, y, radius float64) bool {
	for _, p := range s.Points {
		if math.Hypot(p.X-x, p.Y-y) < radius {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of s.
func (s *Stroke) Clone() *Stroke {
	c := *s
	c.Points = make([]Point, len(s.Points))
	copy(c.Points, s.Points)
	return &c
}
