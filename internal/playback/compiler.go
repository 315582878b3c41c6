// Package playback compiles a composition into a fully time-stamped audio
// graph. Every start, stop and automation time of a pass is computed up
// front relative to a single playback start.
package playback

import (
	"math"

	"github.com/cbegin/pigeon-go/internal/debug"
	"github.com/cbegin/pigeon-go/internal/graph"
	"github.com/cbegin/pigeon-go/internal/pattern"
	"github.com/cbegin/pigeon-go/internal/pitch"
	"github.com/cbegin/pigeon-go/internal/stroke"
	"github.com/cbegin/pigeon-go/internal/voice"
)

// Options fixes the canvas geometry a composition was drawn on.
type Options struct {
	Width  float64
	Height float64
	Mapper pitch.Mapper
}

// Compiler schedules strokes against an injected destination.
type Compiler struct {
	dst  voice.Destination
	opts Options
}

// New returns a compiler scheduling into dst.
func New(dst voice.Destination, opts Options) *Compiler {
	if opts.Mapper == (pitch.Mapper{}) {
		opts.Mapper = pitch.DefaultMapper()
	}
	return &Compiler{dst: dst, opts: opts}
}

// Report counts oscillator voices that were scheduled and those suppressed
// because a time or frequency was unusable.
type Report struct {
	Scheduled int
	Skipped   int
}

func (r *Report) add(o Report) {
	r.Scheduled += o.Scheduled
	r.Skipped += o.Skipped
}

// Timeline maps canvas x to schedule time for one pass.
type Timeline struct {
	Start    float64
	Duration float64
	Width    float64
}

// At returns the time of x, clamped to be non-negative. ok is false when the
// result is not finite.
func (tl Timeline) At(x float64) (float64, bool) {
	if !(tl.Width > 0) {
		return 0, false
	}
	t := tl.Start + (x/tl.Width)*tl.Duration
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, false
	}
	return math.Max(0, t), true
}

// Compile schedules one pass of comp starting at start. Every track gets a
// fresh bus connected to master whose gain is the track level, so stopping
// the pass is a matter of disconnecting those buses. Muted tracks are
// compiled at gain zero.
func (c *Compiler) Compile(comp *pattern.Composition, start float64, master graph.Sink) *Pass {
	duration := comp.Settings.Duration()
	pass := &Pass{Start: start, Duration: duration}
	tl := Timeline{Start: start, Duration: duration, Width: c.opts.Width}
	pt := pitch.Pitcher{
		Mapper:    c.opts.Mapper,
		Height:    c.opts.Height,
		Harmonize: comp.Settings.Harmonize,
		Scale:     comp.Settings.Scale,
	}
	for i := range comp.Tracks {
		tr := &comp.Tracks[i]
		bus := c.dst.NewBus(tr.Gain())
		bus.Connect(master)
		pass.Buses = append(pass.Buses, bus)
		wave := graph.ParseWaveform(tr.Wave)
		for _, s := range tr.Strokes {
			voices, rep := c.Stroke(s, wave, tl, pt, bus)
			for _, v := range voices {
				v.Track = i
			}
			pass.Voices = append(pass.Voices, voices...)
			pass.Report.add(rep)
		}
	}
	debug.Log("playback", "pass at %.3fs: %d voices, %d scheduled, %d skipped",
		start, len(pass.Voices), pass.Report.Scheduled, pass.Report.Skipped)
	return pass
}

// Stroke schedules one stroke of a track into out and returns its voices.
func (c *Compiler) Stroke(s *stroke.Stroke, wave graph.Waveform, tl Timeline, pt pitch.Pitcher, out graph.Sink) ([]*Voice, Report) {
	r := voice.For(s)
	if r.Grained {
		return c.grains(s, r, wave, tl, pt, out)
	}
	return c.continuous(s, r, wave, tl, pt, out)
}

func (c *Compiler) grains(s *stroke.Stroke, r voice.Recipe, wave graph.Waveform, tl Timeline, pt pitch.Pitcher, out graph.Sink) ([]*Voice, Report) {
	var rep Report
	var voices []*Voice
	g := r.Grain
	for _, p := range s.Points {
		t, ok := tl.At(p.X)
		f := pt.Frequency(r.PitchY(p))
		if !ok || !pitch.Valid(f) {
			rep.Skipped++
			debug.Log("playback", "grain skipped: x=%v y=%v", p.X, p.Y)
			continue
		}
		patch, ok := voice.Build(c.dst, r, wave, f, t, out)
		if !ok {
			rep.Skipped++
			continue
		}
		patch.Pluck(t)
		rep.Scheduled += patch.Sources()
		voices = append(voices, &Voice{
			Stroke:    s,
			Brush:     s.Brush,
			Patch:     patch,
			Start:     t,
			AttackEnd: t + g.Attack,
			End:       t + g.Decay,
			StopAt:    t + g.Stop,
		})
	}
	return voices, rep
}

func (c *Compiler) continuous(s *stroke.Stroke, r voice.Recipe, wave graph.Waveform, tl Timeline, pt pitch.Pitcher, out graph.Sink) ([]*Voice, Report) {
	var rep Report
	pts := s.SortedByX()
	if len(pts) < 2 {
		return nil, rep
	}
	sT, okS := tl.At(pts[0].X)
	eT, okE := tl.At(pts[len(pts)-1].X)
	f0 := pt.Frequency(r.PitchY(pts[0]))
	if !okS || !okE || !pitch.Valid(f0) {
		rep.Skipped += len(r.Intervals)
		debug.Log("playback", "%s stroke skipped: start=%v end=%v f0=%v", s.Brush, sT, eT, f0)
		return nil, rep
	}
	if eT < sT {
		eT = sT
	}

	patch, ok := voice.Build(c.dst, r, wave, f0, sT, out)
	if !ok {
		rep.Skipped += len(r.Intervals)
		return nil, rep
	}
	rep.Skipped += len(r.Intervals) - patch.Sources()

	env := r.Envelope
	attackEnd := sT + env.Attack
	sustainEnd := math.Max(eT, attackEnd)
	for _, l := range patch.Levels() {
		peak := env.Peak * l.Scale
		l.Gain.SetValueAtTime(0, sT)
		l.Gain.LinearRampToValueAtTime(peak, attackEnd)
		l.Gain.SetValueAtTime(peak, sustainEnd)
		l.Gain.LinearRampToValueAtTime(0, sustainEnd+env.Release)
	}

	last := sT
	for _, p := range pts {
		t, ok := tl.At(p.X)
		f := pt.Frequency(r.PitchY(p))
		if !ok || !pitch.Valid(f) {
			debug.Log("playback", "ramp point skipped: x=%v y=%v", p.X, p.Y)
			continue
		}
		if t < last {
			t = last
		}
		patch.RampPitch(f, t)
		last = t
	}

	stop := env.Stop(sustainEnd)
	patch.Start(sT)
	patch.Stop(stop)
	rep.Scheduled += patch.Sources()
	return []*Voice{{
		Stroke:    s,
		Brush:     s.Brush,
		Patch:     patch,
		Start:     sT,
		AttackEnd: attackEnd,
		End:       eT,
		StopAt:    stop,
	}}, rep
}
