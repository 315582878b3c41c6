package effects

// Delay is a ping-pong echo. The dry signal is the mono mix of a single
// graph output, so spread decides how much of each echo crosses to the
// opposite side instead of repeating in place. Feedback passes through a
// one-pole lowpass so repeats darken.
type Delay struct {
	bufL, bufR []float64
	pos        int
	feedback   float64
	spread     float64
	damp       float64
	wet        float64
	lpL, lpR   float64
}

// NewDelay creates an echo of delayMs with feedback, spread and wet in
// [0, 1]. damp is the feedback lowpass amount; 0 leaves repeats untouched.
func NewDelay(sampleRate int, delayMs, feedback, spread, wet, damp float64) *Delay {
	samples := int(delayMs * float64(sampleRate) / 1000.0)
	if samples < 1 {
		samples = 1
	}
	return &Delay{
		bufL:     make([]float64, samples),
		bufR:     make([]float64, samples),
		feedback: clamp(feedback, 0, 0.95),
		spread:   clamp(spread, 0, 1),
		damp:     clamp(damp, 0, 0.99),
		wet:      clamp(wet, 0, 1),
	}
}

func (d *Delay) Process(l, r float64) (float64, float64) {
	outL := d.bufL[d.pos]
	outR := d.bufR[d.pos]
	d.lpL += (outL - d.lpL) * (1 - d.damp)
	d.lpR += (outR - d.lpR) * (1 - d.damp)

	mono := (l + r) * 0.5
	inL := l*(1-d.spread) + mono*d.spread
	inR := r * (1 - d.spread)
	d.bufL[d.pos] = inL + d.feedback*((1-d.spread)*d.lpL+d.spread*d.lpR)
	d.bufR[d.pos] = inR + d.feedback*((1-d.spread)*d.lpR+d.spread*d.lpL)
	d.pos++
	if d.pos >= len(d.bufL) {
		d.pos = 0
	}
	return l*(1-d.wet) + outL*d.wet, r*(1-d.wet) + outR*d.wet
}

func (d *Delay) Reset() {
	clear(d.bufL)
	clear(d.bufR)
	d.pos = 0
	d.lpL, d.lpR = 0, 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
