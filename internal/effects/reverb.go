package effects

// Reverb is a Schroeder-style reverb: four parallel combs into two allpasses.
type Reverb struct {
	combs   [4]delayLine
	allpass [2]delayLine
	wet     float64
}

type delayLine struct {
	buf []float64
	pos int
	fb  float64
}

// NewReverb creates a reverb effect.
// roomSize: 0..1 controls delay lengths
// feedback: 0..1 controls decay time
// wet: wet/dry mix 0..1
func NewReverb(sampleRate int, roomSize, feedback, wet float64) *Reverb {
	base := max(int(float64(sampleRate)*roomSize*0.05), 10)
	fb := clamp(feedback, 0, 0.95)
	r := &Reverb{wet: clamp(wet, 0, 1)}
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range r.combs {
		r.combs[i] = delayLine{buf: make([]float64, combLens[i]), fb: fb}
	}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for i := range r.allpass {
		r.allpass[i] = delayLine{buf: make([]float64, max(apLens[i], 1)), fb: 0.5}
	}
	return r
}

func (r *Reverb) Process(l, rr float64) (float64, float64) {
	mono := (l + rr) * 0.5
	var out float64
	for i := range r.combs {
		out += r.combs[i].comb(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].allpass(out)
	}
	return l*(1-r.wet) + out*r.wet, rr*(1-r.wet) + out*r.wet
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		r.combs[i].reset()
	}
	for i := range r.allpass {
		r.allpass[i].reset()
	}
}

func (d *delayLine) comb(in float64) float64 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.fb
	d.advance()
	return out
}

func (d *delayLine) allpass(in float64) float64 {
	bufOut := d.buf[d.pos]
	d.buf[d.pos] = in + bufOut*d.fb
	d.advance()
	return bufOut - in
}

func (d *delayLine) advance() {
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
}

func (d *delayLine) reset() {
	clear(d.buf)
	d.pos = 0
}
