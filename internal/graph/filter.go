package graph

import (
	"math"
	"sync"
)

// FilterType selects the biquad response.
type FilterType int

const (
	Lowpass FilterType = iota
	Bandpass
	Highpass
)

func (t FilterType) String() string {
	switch t {
	case Bandpass:
		return "bandpass"
	case Highpass:
		return "highpass"
	}
	return "lowpass"
}

// Filter is an RBJ biquad with automatable cutoff/center and Q.
type Filter struct {
	nodeBase
	in        inputSet
	typ       FilterType
	frequency *Param
	q         *Param

	lastF, lastQ       float64
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

// NewFilter creates a filter. Lowpass starts fully open at the Nyquist
// frequency; the others at 1 kHz.
func (c *Context) NewFilter(typ FilterType) *Filter {
	nyq := float64(c.sampleRate) / 2
	f := &Filter{typ: typ, lastF: -1}
	f.init(c, "filter."+typ.String(), f)
	start := 1000.0
	if typ == Lowpass {
		start = nyq
	}
	f.frequency = newParam(c, "filter.frequency", start, 10, nyq)
	f.q = newParam(c, "filter.q", math.Sqrt2/2, 1e-4, 1000)
	return f
}

// Frequency returns the cutoff (or center) frequency parameter in Hz.
func (f *Filter) Frequency() *Param { return f.frequency }

// Q returns the resonance parameter.
func (f *Filter) Q() *Param { return f.q }

func (f *Filter) inputs() *inputSet { return &f.in }

func (f *Filter) process(frame int64) float64 {
	x := f.in.sum(frame)
	freq := f.frequency.valueAt(frame)
	q := f.q.valueAt(frame)
	if freq != f.lastF || q != f.lastQ {
		f.coefficients(freq, q)
	}
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

func (f *Filter) coefficients(freq, q float64) {
	f.lastF, f.lastQ = freq, q
	w := 2 * math.Pi * math.Min(freq, float64(f.ctx.sampleRate)*0.4999) / float64(f.ctx.sampleRate)
	cosw := math.Cos(w)
	alpha := math.Sin(w) / (2 * q)
	var b0, b1, b2 float64
	switch f.typ {
	case Bandpass:
		b0, b1, b2 = alpha, 0, -alpha
	case Highpass:
		b0 = (1 + cosw) / 2
		b1 = -(1 + cosw)
		b2 = (1 + cosw) / 2
	default:
		b0 = (1 - cosw) / 2
		b1 = 1 - cosw
		b2 = (1 - cosw) / 2
	}
	a0 := 1 + alpha
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = -2*cosw/a0, (1-alpha)/a0
}

func (f *Filter) ended(int64) bool { return f.in.drained() }

// Shaper maps its input through a transfer curve spanning [-1, 1].
type Shaper struct {
	nodeBase
	in    inputSet
	curve []float64
}

// NewShaper creates a waveshaper. The curve is shared, not copied, and must
// not be modified afterwards. An empty curve passes the signal through.
func (c *Context) NewShaper(curve []float64) *Shaper {
	s := &Shaper{curve: curve}
	s.init(c, "shaper", s)
	return s
}

func (s *Shaper) inputs() *inputSet { return &s.in }

func (s *Shaper) process(frame int64) float64 {
	return shape(s.curve, s.in.sum(frame))
}

func (s *Shaper) ended(int64) bool { return s.in.drained() }

func shape(curve []float64, x float64) float64 {
	n := len(curve)
	if n == 0 {
		return x
	}
	v := float64(n-1) / 2 * (x + 1)
	if v <= 0 {
		return curve[0]
	}
	if v >= float64(n-1) {
		return curve[n-1]
	}
	k := int(v)
	frac := v - float64(k)
	return (1-frac)*curve[k] + frac*curve[k+1]
}

// DistortionCurve returns an n-point soft-clipping curve; larger amounts
// drive harder.
func DistortionCurve(amount float64, n int) []float64 {
	if n < 2 {
		n = 2
	}
	curve := make([]float64, n)
	for i := range curve {
		x := float64(i)*2/float64(n) - 1
		curve[i] = (3 + amount) * x * 20 * (math.Pi / 180) / (math.Pi + amount*math.Abs(x))
	}
	return curve
}

var (
	defaultCurveOnce sync.Once
	defaultCurve     []float64
)

// DefaultDistortion returns the shared curve used by the fractal brush.
func DefaultDistortion() []float64 {
	defaultCurveOnce.Do(func() {
		defaultCurve = DistortionCurve(80, 22050)
	})
	return defaultCurve
}
