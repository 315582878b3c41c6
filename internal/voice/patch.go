package voice

import (
	"github.com/cbegin/pigeon-go/internal/graph"
	"github.com/cbegin/pigeon-go/internal/lfo"
	"github.com/cbegin/pigeon-go/internal/pitch"
)

// Destination is the node factory voices are built against. A realtime
// context and an offline one both satisfy it, so the same recipe renders
// identically in either.
type Destination interface {
	SampleRate() int
	CurrentTime() float64
	NewOscillator(wave graph.Waveform, freq float64) *graph.Oscillator
	NewGain(initial float64) *graph.Gain
	NewBus(initial float64) *graph.Gain
	NewFilter(typ graph.FilterType) *graph.Filter
	NewShaper(curve []float64) *graph.Shaper
	NewNoise(color graph.NoiseColor) *graph.Noise
	NewLFO(shape lfo.Shape, rate, depth float64) *graph.LFO
}

var _ Destination = (*graph.Context)(nil)

// Level is an envelope gain together with the factor its automation values
// are scaled by.
type Level struct {
	Gain  *graph.Param
	Scale float64
}

// Patch is the built subgraph of one voice.
type Patch struct {
	Recipe      Recipe
	Oscillators []*graph.Oscillator
	Intervals   []int
	Envelope    *graph.Gain
	Lowpass     *graph.Filter
	Shaper      *graph.Shaper

	Noise     *graph.Noise
	Band      *graph.Filter
	NoiseGain *graph.Gain
	LFO       *graph.LFO

	outputs []graph.Node
}

// Build creates the nodes of r at base Hz and connects the patch to out.
// Initial parameter values take effect at time at. Oscillators whose
// frequency would be unusable are not created; if none remain Build returns
// false and creates nothing.
func Build(dst Destination, r Recipe, wave graph.Waveform, base, at float64, out graph.Sink) (*Patch, bool) {
	var freqs []float64
	var intervals []int
	for _, iv := range r.Intervals {
		f := pitch.Interval(base, iv)
		if !pitch.Valid(f) {
			continue
		}
		freqs = append(freqs, f)
		intervals = append(intervals, iv)
	}
	if len(freqs) == 0 {
		return nil, false
	}

	p := &Patch{Recipe: r, Intervals: intervals}
	p.Envelope = dst.NewGain(0)
	var into graph.Sink = p.Envelope
	if r.Lowpass > 0 {
		p.Lowpass = dst.NewFilter(graph.Lowpass)
		p.Lowpass.Frequency().SetValueAtTime(r.Lowpass, at)
		p.Lowpass.Connect(p.Envelope)
		into = p.Lowpass
	}
	for _, f := range freqs {
		osc := dst.NewOscillator(wave, f)
		osc.Frequency().SetValueAtTime(f, at)
		osc.Connect(into)
		p.Oscillators = append(p.Oscillators, osc)
	}

	var last graph.Node = p.Envelope
	if r.Distort {
		p.Shaper = dst.NewShaper(graph.DefaultDistortion())
		p.Envelope.Connect(p.Shaper)
		last = p.Shaper
	}
	last.Connect(out)
	p.outputs = append(p.outputs, last)

	if tx := r.Texture; tx != nil {
		center := base * tx.CenterRatio
		p.Noise = dst.NewNoise(tx.Color)
		p.Band = dst.NewFilter(graph.Bandpass)
		p.Band.Frequency().SetValueAtTime(center, at)
		p.Band.Q().SetValueAtTime(tx.Q, at)
		p.NoiseGain = dst.NewGain(0)
		p.Noise.Connect(p.Band)
		p.Band.Connect(p.NoiseGain)
		if tx.LFORate > 0 && tx.LFODepth != 0 {
			p.LFO = dst.NewLFO(tx.LFOShape, tx.LFORate, tx.LFODepth)
			p.LFO.Connect(p.Band.Frequency())
		}
		p.NoiseGain.Connect(out)
		p.outputs = append(p.outputs, p.NoiseGain)
	}
	return p, true
}

// Levels returns the envelope gains to automate. The oscillator envelope has
// scale 1; a texture layer is scaled by its level.
func (p *Patch) Levels() []Level {
	levels := []Level{{Gain: p.Envelope.Gain(), Scale: 1}}
	if p.NoiseGain != nil {
		levels = append(levels, Level{Gain: p.NoiseGain.Gain(), Scale: p.Recipe.Texture.Level})
	}
	return levels
}

// Start starts every source at t.
func (p *Patch) Start(t float64) {
	for _, o := range p.Oscillators {
		o.Start(t)
	}
	if p.Noise != nil {
		p.Noise.Start(t)
	}
	if p.LFO != nil {
		p.LFO.Start(t)
	}
}

// Stop stops every source at t.
func (p *Patch) Stop(t float64) {
	for _, o := range p.Oscillators {
		o.Stop(t)
	}
	if p.Noise != nil {
		p.Noise.Stop(t)
	}
	if p.LFO != nil {
		p.LFO.Stop(t)
	}
}

// DisconnectAt cuts the patch from its destination at t.
func (p *Patch) DisconnectAt(t float64) {
	for _, n := range p.outputs {
		n.DisconnectAt(t)
	}
}

// Disconnect cuts the patch from its destination now.
func (p *Patch) Disconnect() {
	for _, n := range p.outputs {
		n.Disconnect()
	}
}

// RampPitch schedules a linear ramp of every pitch-following parameter so
// that the root reaches base Hz at t.
func (p *Patch) RampPitch(base, t float64) {
	for i, o := range p.Oscillators {
		o.Frequency().LinearRampToValueAtTime(pitch.Interval(base, p.Intervals[i]), t)
	}
	if p.Band != nil {
		p.Band.Frequency().LinearRampToValueAtTime(base*p.Recipe.Texture.CenterRatio, t)
	}
}

// GlidePitch moves every pitch-following parameter toward base Hz starting at
// t with time constant tc.
func (p *Patch) GlidePitch(base, t, tc float64) {
	for i, o := range p.Oscillators {
		o.Frequency().SetTargetAtTime(pitch.Interval(base, p.Intervals[i]), t, tc)
	}
	if p.Band != nil {
		p.Band.Frequency().SetTargetAtTime(base*p.Recipe.Texture.CenterRatio, t, tc)
	}
}

// Sources returns the number of oscillator voices.
func (p *Patch) Sources() int { return len(p.Oscillators) }

// Pluck schedules the percussive grain envelope of the recipe at t and
// stops the sources once it has decayed.
func (p *Patch) Pluck(t float64) {
	g := p.Recipe.Grain
	for _, l := range p.Levels() {
		l.Gain.SetValueAtTime(0, t)
		l.Gain.LinearRampToValueAtTime(g.Peak*l.Scale, t+g.Attack)
		l.Gain.ExponentialRampToValueAtTime(g.Floor*l.Scale, t+g.Decay)
	}
	p.Start(t)
	p.Stop(t + g.Stop)
}

// Release fades every level toward zero from now with the live release time
// constant, then stops and disconnects the patch once the fade is inaudible.
func (p *Patch) Release(now float64) {
	live := p.Recipe.Live
	for _, l := range p.Levels() {
		l.Gain.CancelScheduledValues(now)
		l.Gain.SetTargetAtTime(0, now, live.ReleaseTC)
	}
	p.Stop(now + live.Teardown)
	p.DisconnectAt(now + live.Teardown)
}
