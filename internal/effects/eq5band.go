package effects

import (
	"math"
	"sync/atomic"
)

// EQ5Band is a 5-band master equalizer with gains adjustable from the
// control thread while the audio thread renders.
// Bands are split at 200Hz, 800Hz, 2.5kHz, and 8kHz.
type EQ5Band struct {
	gains  [5]atomic.Uint64 // float64 bit patterns; 1.0 = unity
	alphas [4]float64
	lpL    [4]float64
	lpR    [4]float64
}

var defaultCrossovers = [4]float64{200, 800, 2500, 8000}

// NewEQ5Band creates a 5-band EQ with all gains at unity.
func NewEQ5Band(sampleRate int) *EQ5Band {
	eq := &EQ5Band{}
	dt := 1.0 / float64(sampleRate)
	for i, freq := range defaultCrossovers {
		rc := 1.0 / (2.0 * math.Pi * freq)
		eq.alphas[i] = dt / (rc + dt)
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float64bits(1.0))
	}
	return eq
}

// SetGain sets the gain for band (0-4). 1.0 = unity, 0.0 = silence.
func (eq *EQ5Band) SetGain(band int, gain float64) {
	if band >= 0 && band < 5 && gain >= 0 {
		eq.gains[band].Store(math.Float64bits(gain))
	}
}

// Gain returns the current gain for band (0-4).
func (eq *EQ5Band) Gain(band int) float64 {
	if band >= 0 && band < 5 {
		return math.Float64frombits(eq.gains[band].Load())
	}
	return 1.0
}

func (eq *EQ5Band) Process(l, r float64) (float64, float64) {
	remL, remR := l, r
	var outL, outR float64
	for i := 0; i < 4; i++ {
		eq.lpL[i] += eq.alphas[i] * (remL - eq.lpL[i])
		eq.lpR[i] += eq.alphas[i] * (remR - eq.lpR[i])
		g := eq.Gain(i)
		outL += eq.lpL[i] * g
		outR += eq.lpR[i] * g
		remL -= eq.lpL[i]
		remR -= eq.lpR[i]
	}
	g := eq.Gain(4)
	return outL + remL*g, outR + remR*g
}

func (eq *EQ5Band) Reset() {
	eq.lpL = [4]float64{}
	eq.lpR = [4]float64{}
}
