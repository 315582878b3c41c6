// Package live synthesizes strokes while they are being drawn. A gesture
// builds its voice once at pointer-down, retargets it on every sample and
// releases it at pointer-up; particle strokes fire independent grains.
package live

import (
	"sync"

	"github.com/cbegin/pigeon-go/internal/debug"
	"github.com/cbegin/pigeon-go/internal/graph"
	"github.com/cbegin/pigeon-go/internal/pattern"
	"github.com/cbegin/pigeon-go/internal/pitch"
	"github.com/cbegin/pigeon-go/internal/stroke"
	"github.com/cbegin/pigeon-go/internal/voice"
)

// Engine owns at most one active gesture.
type Engine struct {
	mu      sync.Mutex
	dst     voice.Destination
	pitcher pitch.Pitcher
	active  *Gesture
	grains  int
}

// New returns an engine building voices against dst. pt maps pointer
// coordinates to pitch until SetPitcher replaces it.
func New(dst voice.Destination, pt pitch.Pitcher) *Engine {
	if pt.Mapper == (pitch.Mapper{}) {
		pt.Mapper = pitch.DefaultMapper()
	}
	return &Engine{dst: dst, pitcher: pt}
}

// SetPitcher changes the pitch mapping used by later gestures and samples.
func (e *Engine) SetPitcher(pt pitch.Pitcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pt.Mapper == (pitch.Mapper{}) {
		pt.Mapper = pitch.DefaultMapper()
	}
	e.pitcher = pt
}

// Gesture is the voice of one stroke being drawn.
type Gesture struct {
	Track     int
	Brush     stroke.Brush
	Thickness float64
	Started   float64
	Patch     *voice.Patch

	released bool
}

// Released reports whether the gesture has been released.
func (g *Gesture) Released() bool { return g.released }

// Start begins a gesture for stroke s on track i, pitched from its latest
// point and connected to out. It does nothing for a muted or near-silent
// track, and for a particle brush it fires a single grain instead of opening
// a gesture. A gesture still active from an earlier Start is released first.
func (e *Engine) Start(i int, tr *pattern.Track, out graph.Sink, s *stroke.Stroke) *Gesture {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		e.release(e.active)
	}
	if tr.Silent() || len(s.Points) == 0 {
		return nil
	}
	p := s.Points[len(s.Points)-1]
	r := voice.For(s)
	if r.Grained {
		e.grain(r, tr, out, p)
		return nil
	}

	now := e.dst.CurrentTime()
	f := e.pitcher.Frequency(r.PitchY(p))
	patch, ok := voice.Build(e.dst, r, graph.ParseWaveform(tr.Wave), f, now, out)
	if !ok {
		debug.Log("live", "gesture on track %d skipped: frequency %v", i, f)
		return nil
	}
	for _, l := range patch.Levels() {
		l.Gain.SetValueAtTime(0, now)
		l.Gain.LinearRampToValueAtTime(r.Live.Peak*l.Scale, now+r.Live.Attack)
	}
	patch.Start(now)
	g := &Gesture{Track: i, Brush: s.Brush, Thickness: s.Thickness, Started: now, Patch: patch}
	e.active = g
	debug.Log("live", "gesture %s on track %d at %.1f Hz", s.Brush, i, f)
	return g
}

// Sample retargets the active gesture to p. Frequencies glide rather than
// step; a calligraphy cutoff follows the brush thickness. Without an active
// gesture Sample does nothing.
func (e *Engine) Sample(p stroke.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.active
	if g == nil {
		return
	}
	now := e.dst.CurrentTime()
	live := g.Patch.Recipe.Live
	g.Patch.GlidePitch(e.pitcher.Frequency(g.Patch.Recipe.PitchY(p)), now, live.Glide)
	if g.Patch.Lowpass != nil {
		g.Patch.Lowpass.Frequency().SetTargetAtTime(voice.CalligraphyCutoff(g.Thickness), now, live.FilterGlide)
	}
}

// Grain fires one grain of stroke s at point p. It does nothing for a
// silent track.
func (e *Engine) Grain(tr *pattern.Track, out graph.Sink, s *stroke.Stroke, p stroke.Point) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tr.Silent() {
		return false
	}
	return e.grain(voice.For(s), tr, out, p)
}

func (e *Engine) grain(r voice.Recipe, tr *pattern.Track, out graph.Sink, p stroke.Point) bool {
	now := e.dst.CurrentTime()
	patch, ok := voice.Build(e.dst, r, graph.ParseWaveform(tr.Wave), e.pitcher.Frequency(r.PitchY(p)), now, out)
	if !ok {
		return false
	}
	patch.Pluck(now)
	patch.DisconnectAt(now + r.Grain.Stop)
	e.grains++
	debug.LogEvery(16, "live", "%d grains fired", e.grains)
	return true
}

// End releases the active gesture, if any.
func (e *Engine) End() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		e.release(e.active)
	}
}

// Active returns the gesture in progress, or nil.
func (e *Engine) Active() *Gesture {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Release ends g. Teardown is scheduled on the audio clock after the release
// fade, never immediately. Releasing twice is a no-op.
func (e *Engine) Release(g *Gesture) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.release(g)
}

func (e *Engine) release(g *Gesture) {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.Patch.Release(e.dst.CurrentTime())
	if e.active == g {
		e.active = nil
	}
	debug.Log("live", "gesture %s on track %d released", g.Brush, g.Track)
}
