package playback

import (
	"math"

	"github.com/cbegin/pigeon-go/internal/graph"
	"github.com/cbegin/pigeon-go/internal/stroke"
	"github.com/cbegin/pigeon-go/internal/voice"
)

// Voice is the scheduled subgraph of one stroke, or of one grain of a grained
// stroke. It owns its nodes; Release is the only way to end it early.
type Voice struct {
	Track     int
	Stroke    *stroke.Stroke
	Brush     stroke.Brush
	Start     float64
	AttackEnd float64
	End       float64
	StopAt    float64
	Patch     *voice.Patch

	released bool
}

// Release fades the voice out from now and tears it down once the fade has
// completed. Releasing twice is a no-op.
func (v *Voice) Release(now float64) {
	if v.released {
		return
	}
	v.released = true
	v.Patch.Release(now)
}

// Released reports whether Release was called.
func (v *Voice) Released() bool { return v.released }

// Pass is one compiled cycle of a composition.
type Pass struct {
	Start    float64
	Duration float64
	Buses    []*graph.Gain
	Voices   []*Voice
	Report   Report

	stopped bool
}

// End returns the time the pass wraps.
func (p *Pass) End() float64 { return p.Start + p.Duration }

// Stop disconnects every track bus of the pass. Voices that have not started
// yet never sound. Stop is idempotent.
func (p *Pass) Stop() {
	if p == nil || p.stopped {
		return
	}
	p.stopped = true
	for _, b := range p.Buses {
		b.Disconnect()
	}
}

// Retire disconnects the track buses once the last voice of the pass has
// stopped, leaving the pass to play out on its own.
func (p *Pass) Retire() {
	if p == nil || p.stopped {
		return
	}
	at := p.End()
	for _, v := range p.Voices {
		at = math.Max(at, v.StopAt)
	}
	for _, b := range p.Buses {
		b.DisconnectAt(at)
	}
}

// Stopped reports whether Stop was called.
func (p *Pass) Stopped() bool { return p == nil || p.stopped }

// SetTrackGain moves the bus of track i toward g with time constant tc.
func (p *Pass) SetTrackGain(i int, g, now, tc float64) {
	if p == nil || i < 0 || i >= len(p.Buses) {
		return
	}
	gain := p.Buses[i].Gain()
	gain.CancelScheduledValues(now)
	gain.SetTargetAtTime(g, now, tc)
}

// ReleaseStroke releases every voice scheduled for s and returns how many
// were released.
func (p *Pass) ReleaseStroke(s *stroke.Stroke, now float64) int {
	if p == nil {
		return 0
	}
	n := 0
	for _, v := range p.Voices {
		if v.Stroke == s && !v.released {
			v.Release(now)
			n++
		}
	}
	return n
}
