package graph

import (
	"math"

	intlfo "github.com/cbegin/pigeon-go/internal/lfo"
)

// source is the scheduling half shared by oscillators, noise and LFOs.
type source struct {
	nodeBase
	started    bool
	startFrame int64
	stopFrame  int64
}

func (s *source) initSource(ctx *Context, kind string, self processor) {
	s.init(ctx, kind, self)
	s.stopFrame = math.MaxInt64
}

// Start schedules the source to begin at t. Only the first call counts.
func (s *source) Start(t float64) {
	t = SanitizeTime(t)
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.startFrame = s.ctx.frameAt(t)
}

// Stop schedules the source to end at t. The earliest stop wins; a stop at
// or before the start means the source never sounds.
func (s *source) Stop(t float64) {
	t = SanitizeTime(t)
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	if f := s.ctx.frameAt(t); f < s.stopFrame {
		s.stopFrame = f
	}
}

// StartTime returns the scheduled start in seconds, or -1 if not started.
func (s *source) StartTime() float64 {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	if !s.started {
		return -1
	}
	return s.ctx.timeOf(s.startFrame)
}

// StopTime returns the scheduled stop in seconds, +Inf if none.
func (s *source) StopTime() float64 {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	if s.stopFrame == math.MaxInt64 {
		return math.Inf(1)
	}
	return s.ctx.timeOf(s.stopFrame)
}

func (s *source) playing(frame int64) bool {
	return s.started && frame >= s.startFrame && frame < s.stopFrame
}

func (s *source) ended(frame int64) bool {
	return frame+1 >= s.stopFrame
}

// Oscillator is a periodic source with an automatable frequency.
type Oscillator struct {
	source
	wave      Waveform
	frequency *Param
	phase     float64
}

// NewOscillator creates an oscillator at freq Hz. It is silent until started.
func (c *Context) NewOscillator(wave Waveform, freq float64) *Oscillator {
	if !finite(freq) {
		freq = 440
	}
	o := &Oscillator{wave: wave}
	o.initSource(c, "osc."+wave.String(), o)
	o.frequency = newParam(c, "osc.frequency", freq, 0, float64(c.sampleRate)/2)
	return o
}

// Frequency returns the frequency parameter in Hz.
func (o *Oscillator) Frequency() *Param { return o.frequency }

// Waveform returns the oscillator shape.
func (o *Oscillator) Waveform() Waveform { return o.wave }

func (o *Oscillator) process(frame int64) float64 {
	if !o.playing(frame) {
		return 0
	}
	dt := o.frequency.valueAt(frame) / float64(o.ctx.sampleRate)
	out := o.wave.sample(o.phase, dt)
	o.phase += dt
	o.phase -= math.Floor(o.phase)
	return out
}

// Noise loops a two second buffer of colored noise.
type Noise struct {
	source
	color NoiseColor
	buf   []float64
	pos   int
}

// NewNoise creates a looping noise source. Buffers are generated once per
// context from a fixed seed so renders are repeatable.
func (c *Context) NewNoise(color NoiseColor) *Noise {
	n := &Noise{color: color}
	n.initSource(c, "noise."+color.String(), n)
	c.mu.Lock()
	n.buf = c.noiseBuffer(color)
	c.mu.Unlock()
	return n
}

func (n *Noise) process(frame int64) float64 {
	if !n.playing(frame) || len(n.buf) == 0 {
		return 0
	}
	v := n.buf[n.pos]
	n.pos++
	if n.pos >= len(n.buf) {
		n.pos = 0
	}
	return v
}

func (c *Context) noiseBuffer(color NoiseColor) []float64 {
	if buf, ok := c.noise[color]; ok {
		return buf
	}
	buf := generateNoise(color, 2*c.sampleRate, 0x2545f491)
	c.noise[color] = buf
	return buf
}

// LFO is a low-frequency modulation source, usually connected to a Param.
type LFO struct {
	source
	osc *intlfo.LFO
}

// NewLFO creates an LFO swinging ±depth around zero at rate Hz.
func (c *Context) NewLFO(shape intlfo.Shape, rate, depth float64) *LFO {
	l := &LFO{osc: intlfo.New(depth, rate, shape)}
	l.initSource(c, "lfo."+shape.String(), l)
	return l
}

func (l *LFO) process(frame int64) float64 {
	if !l.playing(frame) {
		return 0
	}
	return l.osc.Sample(float64(l.ctx.sampleRate))
}
