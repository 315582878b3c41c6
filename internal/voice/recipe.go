// Package voice describes how each brush sounds. A Recipe is a declarative
// description of a brush's subgraph and envelopes; Build turns it into graph
// nodes. Live gestures and scheduled playback both go through here.
package voice

import (
	"math"

	"github.com/cbegin/pigeon-go/internal/graph"
	"github.com/cbegin/pigeon-go/internal/lfo"
	"github.com/cbegin/pigeon-go/internal/stroke"
)

// Envelope is the scheduled amplitude shape of a continuous voice: a linear
// attack to Peak, a plateau held until the stroke ends, then a linear
// release. Sources run Tail seconds past the end of the release.
type Envelope struct {
	Attack  float64
	Peak    float64
	Release float64
	Tail    float64
}

// Grain is the percussive one-shot shape: linear attack to Peak, exponential
// decay to Floor at Decay seconds after the onset, source stopped at Stop.
type Grain struct {
	Attack float64
	Peak   float64
	Floor  float64
	Decay  float64
	Stop   float64
}

// Live is the envelope of a voice played while drawing. The release is an
// exponential approach with time constant ReleaseTC; nodes are torn down
// Teardown seconds after the release starts.
type Live struct {
	Attack      float64
	Peak        float64
	ReleaseTC   float64
	Teardown    float64
	Glide       float64
	FilterGlide float64
}

// Texture is a noise layer mixed in parallel with the oscillators: colored
// noise through a band-pass whose center follows the pitch, optionally
// wavered by an LFO on the center frequency.
type Texture struct {
	Color       graph.NoiseColor
	Level       float64
	Q           float64
	CenterRatio float64
	LFOShape    lfo.Shape
	LFORate     float64
	LFODepth    float64
}

// Recipe is the full description of a brush's voice.
type Recipe struct {
	Brush     stroke.Brush
	Intervals []int
	Distort   bool
	Lowpass   float64
	Texture   *Texture
	Grained   bool
	Envelope  Envelope
	Grain     Grain
	Live      Live
	Jitter    stroke.Jitter
	// JitterPitch adds each point's captured JitterY to Y before mapping.
	JitterPitch bool
}

var (
	defaultEnvelope = Envelope{Attack: 0.02, Peak: 0.3, Release: 0.1, Tail: 0.05}
	defaultLive     = Live{Attack: 0.01, Peak: 0.3, ReleaseTC: 0.05, Teardown: 0.25, Glide: 0.01, FilterGlide: 0.05}
)

// FractalJitter is the per-point offset range rolled for fractal strokes.
var FractalJitter = stroke.Jitter{X: 7.5, Y: 15}

// For returns the recipe for a stroke.
func For(s *stroke.Stroke) Recipe {
	return ForBrush(s.Brush, s.Chord, s.Thickness)
}

// ForBrush returns the recipe for a brush. The chord kind only matters for
// BrushChord; thickness only for BrushCalligraphy.
func ForBrush(b stroke.Brush, chord stroke.Chord, thickness float64) Recipe {
	r := Recipe{
		Brush:     b,
		Intervals: []int{0},
		Envelope:  defaultEnvelope,
		Live:      defaultLive,
	}
	switch b {
	case stroke.BrushCalligraphy:
		r.Lowpass = CalligraphyCutoff(thickness)
		r.Envelope.Attack = 0.06
		r.Live.Attack = 0.08
	case stroke.BrushFractal:
		r.Distort = true
		r.Jitter = FractalJitter
		r.JitterPitch = true
	case stroke.BrushChord:
		r.Intervals = chord.Intervals()
		r.Envelope = Envelope{Attack: 0.005, Peak: 0.2, Release: 0.05, Tail: 0.05}
		r.Live.Attack = 0.005
		r.Live.Peak = 0.2
		r.Live.ReleaseTC = 0.02
		r.Live.Teardown = 0.1
	case stroke.BrushParticles:
		r.Grained = true
		r.Grain = Grain{Attack: 0.01, Peak: 0.4, Floor: 0.01, Decay: 0.1, Stop: 0.15}
	case stroke.BrushBristle:
		r.Texture = &Texture{
			Color:       graph.Pink,
			Level:       0.5,
			Q:           4,
			CenterRatio: 2,
			LFOShape:    lfo.Sine,
			LFORate:     5,
			LFODepth:    150,
		}
	}
	return r
}

// CalligraphyCutoff maps brush thickness to a lowpass cutoff: thick strokes
// sound dull, thin ones bright.
func CalligraphyCutoff(thickness float64) float64 {
	if math.IsNaN(thickness) {
		thickness = stroke.MinThickness
	}
	return math.Max(200, 6000-thickness*200)
}

// PitchY returns the vertical coordinate that drives the pitch of p.
func (r Recipe) PitchY(p stroke.Point) float64 {
	if r.JitterPitch {
		return p.Y + p.JitterY
	}
	return p.Y
}

// Stop returns when the sources of a continuous voice ending at end stop.
func (e Envelope) Stop(end float64) float64 {
	return end + e.Release + e.Tail
}
