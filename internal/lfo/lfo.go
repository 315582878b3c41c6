package lfo

import "math"

// Shape selects the LFO waveform.
type Shape int

const (
	Sine Shape = iota
	Triangle
	Square
	Saw
	Random
)

// String returns the directive name of the shape.
func (s Shape) String() string {
	switch s {
	case Triangle:
		return "triangle"
	case Square:
		return "square"
	case Saw:
		return "saw"
	case Random:
		return "random"
	}
	return "sine"
}

// LFO is a low-frequency oscillator producing one modulation value per frame.
// The output is in [-depth, +depth]; units are whatever the modulated
// parameter uses (Hz for a filter cutoff, linear gain for a volume).
type LFO struct {
	depth  float64
	rateHz float64
	shape  Shape
	phase  float64 // [0, 1)
	held   float64 // sample-and-hold value for Random
	seed   uint32
}

// New returns a configured LFO.
func New(depth, rateHz float64, shape Shape) *LFO {
	l := &LFO{}
	l.Set(depth, rateHz, shape)
	return l
}

// Set configures the LFO parameters. Unknown shapes fall back to Sine.
func (l *LFO) Set(depth, rateHz float64, shape Shape) {
	l.depth = depth
	l.rateHz = rateHz
	if shape < Sine || shape > Random {
		shape = Sine
	}
	l.shape = shape
}

// Depth returns the configured modulation depth.
func (l *LFO) Depth() float64 { return l.depth }

// Rate returns the configured rate in Hz.
func (l *LFO) Rate() float64 { return l.rateHz }

// Sample returns the value at the current phase and advances one frame.
// Returns 0 if depth or rate is zero.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate <= 0 {
		return 0
	}

	var v float64
	switch l.shape {
	case Triangle:
		if l.phase < 0.5 {
			v = 4.0*l.phase - 1.0
		} else {
			v = 3.0 - 4.0*l.phase
		}
	case Square:
		if l.phase < 0.5 {
			v = 1.0
		} else {
			v = -1.0
		}
	case Saw:
		v = 1.0 - 2.0*l.phase
	case Random:
		v = l.held
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}

	prev := l.phase
	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)

	if l.shape == Random && l.phase < prev {
		l.held = l.next()
	}
	return v * l.depth
}

// next draws a value in [-1, 1) from an xorshift32 generator.
func (l *LFO) next() float64 {
	if l.seed == 0 {
		l.seed = 0x9e3779b9
	}
	x := l.seed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	l.seed = x
	return float64(x)/float64(1<<31) - 1.0
}

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Reset zeros the phase and the random generator state.
func (l *LFO) Reset() {
	l.phase = 0
	l.held = 0
	l.seed = 0
}
