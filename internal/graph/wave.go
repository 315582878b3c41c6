package graph

import (
	"math"
	"strings"
)

// Waveform is an oscillator shape.
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

var waveformNames = [...]string{"sine", "square", "sawtooth", "triangle"}

func (w Waveform) String() string {
	if w < 0 || int(w) >= len(waveformNames) {
		return "sine"
	}
	return waveformNames[w]
}

// ParseWaveform maps a name to a Waveform. "saw" is accepted for sawtooth and
// unknown names fall back to sine.
func ParseWaveform(s string) Waveform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "square":
		return Square
	case "sawtooth", "saw":
		return Sawtooth
	case "triangle":
		return Triangle
	}
	return Sine
}

// sample returns the waveform at phase p in [0,1) with phase increment dt.
// Every shape starts at zero except square, which starts high.
func (w Waveform) sample(p, dt float64) float64 {
	switch w {
	case Square:
		out := -1.0
		if p < 0.5 {
			out = 1
		}
		out += polyBLEP(p, dt)
		out -= polyBLEP(math.Mod(p+0.5, 1), dt)
		return out
	case Sawtooth:
		q := math.Mod(p+0.5, 1)
		return 2*q - 1 - polyBLEP(q, dt)
	case Triangle:
		q := math.Mod(p+0.25, 1)
		return 1 - 4*math.Abs(q-0.5)
	}
	return math.Sin(2 * math.Pi * p)
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

// NoiseColor selects the spectrum of a Noise source.
type NoiseColor int

const (
	White NoiseColor = iota
	Pink
	Brown
)

func (c NoiseColor) String() string {
	switch c {
	case Pink:
		return "pink"
	case Brown:
		return "brown"
	}
	return "white"
}

// generateNoise fills n samples from an xorshift32 generator.
func generateNoise(color NoiseColor, n int, seed uint32) []float64 {
	if seed == 0 {
		seed = 1
	}
	x := seed
	white := func() float64 {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		return float64(x)/float64(1<<31) - 1
	}
	buf := make([]float64, n)
	switch color {
	case Pink:
		// Paul Kellet's refined filter.
		var b0, b1, b2, b3, b4, b5, b6 float64
		for i := range buf {
			w := white()
			b0 = 0.99886*b0 + w*0.0555179
			b1 = 0.99332*b1 + w*0.0750759
			b2 = 0.96900*b2 + w*0.1538520
			b3 = 0.86650*b3 + w*0.3104856
			b4 = 0.55000*b4 + w*0.5329522
			b5 = -0.7616*b5 - w*0.0168980
			buf[i] = (b0 + b1 + b2 + b3 + b4 + b5 + b6 + w*0.5362) * 0.11
			b6 = w * 0.115926
		}
	case Brown:
		var last float64
		for i := range buf {
			last = (last + 0.02*white()) / 1.02
			buf[i] = last * 3.5
		}
	default:
		for i := range buf {
			buf[i] = white()
		}
	}
	return buf
}
