// Package pattern holds the composition model: tracks of strokes plus
// transport settings, their JSON document form and the persisted pattern bank.
package pattern

import (
	"math"
	"strconv"
	"strings"

	"github.com/cbegin/pigeon-go/internal/pitch"
	"github.com/cbegin/pigeon-go/internal/stroke"
)

const (
	DefaultBPM    = 120.0
	// MinBPM is exclusive: tempos at or below it are rejected.
	MinBPM        = 10.0
	DefaultTracks = 4
	// BeatsPerPass is the number of beats one pass of the canvas spans.
	BeatsPerPass = 32
	// SilentVolume is the level under which a track counts as silent.
	SilentVolume = 0.01
)

// Track is one lane of the canvas.
type Track struct {
	Strokes []*stroke.Stroke
	Volume  float64
	Muted   bool
	Wave    string
	Snap    bool
}

// DefaultVolume is the level of a fresh track.
const DefaultVolume = 0.8

// NewTrack returns an empty track playing a sine.
func NewTrack() Track {
	return Track{Volume: DefaultVolume, Wave: "sine"}
}

// Gain returns the effective track level: zero when muted.
func (t *Track) Gain() float64 {
	if t.Muted {
		return 0
	}
	return t.Volume
}

// Silent reports whether nothing drawn on the track would be heard.
func (t *Track) Silent() bool {
	return t.Muted || t.Volume < SilentVolume
}

// Clone returns a deep copy of t.
func (t Track) Clone() Track {
	c := t
	c.Strokes = make([]*stroke.Stroke, len(t.Strokes))
	for i, s := range t.Strokes {
		c.Strokes[i] = s.Clone()
	}
	return c
}

// Settings are the transport settings saved with a pattern.
type Settings struct {
	BPM       float64
	Loop      bool
	Scale     pitch.Scale
	Harmonize bool
}

// DefaultSettings returns 120 BPM, looping, pentatonic, no harmonizing.
func DefaultSettings() Settings {
	return Settings{BPM: DefaultBPM, Loop: true, Scale: pitch.ScalePentatonic}
}

// Duration returns the length of one pass in seconds.
func (s Settings) Duration() float64 {
	return 60 / SanitizeBPM(s.BPM) * BeatsPerPass
}

// SanitizeBPM returns bpm if it is usable, DefaultBPM otherwise.
func SanitizeBPM(bpm float64) float64 {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= MinBPM {
		return DefaultBPM
	}
	return bpm
}

// ParseBPM parses user input such as "96" or " 128.5 ". Unusable input
// yields DefaultBPM.
func ParseBPM(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return DefaultBPM
	}
	return SanitizeBPM(v)
}

// Composition is everything that plays: tracks plus settings.
type Composition struct {
	Settings Settings
	Tracks   []Track
}

// NewComposition returns n empty tracks with default settings.
func NewComposition(n int) *Composition {
	if n <= 0 {
		n = DefaultTracks
	}
	c := &Composition{Settings: DefaultSettings(), Tracks: make([]Track, n)}
	for i := range c.Tracks {
		c.Tracks[i] = NewTrack()
	}
	return c
}

// Empty reports whether no track has a playable stroke.
func (c *Composition) Empty() bool {
	for i := range c.Tracks {
		for _, s := range c.Tracks[i].Strokes {
			if s.Playable() {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of c.
func (c *Composition) Clone() *Composition {
	out := &Composition{Settings: c.Settings, Tracks: make([]Track, len(c.Tracks))}
	for i, t := range c.Tracks {
		out.Tracks[i] = t.Clone()
	}
	return out
}
