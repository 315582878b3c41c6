package pitch

import (
	"math"
	"strings"
)

// Scale names a fixed set of pitch classes.
type Scale string

const (
	ScaleMajor           Scale = "major"
	ScaleMinor           Scale = "minor"
	ScalePentatonic      Scale = "pentatonic"
	ScaleMajorPentatonic Scale = "majorPentatonic"
	ScaleDorian          Scale = "dorian"
	ScaleBlues           Scale = "blues"
	ScaleChromatic       Scale = "chromatic"
)

// Pitch classes per scale. Order matters: Quantize breaks ties in favour of
// the earlier entry.
var scaleClasses = map[Scale][]int{
	ScaleMajor:           {0, 2, 4, 5, 7, 9, 11},
	ScaleMinor:           {0, 2, 3, 5, 7, 8, 10},
	ScalePentatonic:      {0, 3, 5, 7, 10},
	ScaleMajorPentatonic: {0, 2, 4, 7, 9},
	ScaleDorian:          {0, 2, 3, 5, 7, 9, 10},
	ScaleBlues:           {0, 3, 5, 6, 7, 10},
	ScaleChromatic:       {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// Scales lists the known scales in display order.
func Scales() []Scale {
	return []Scale{ScaleMajor, ScaleMinor, ScalePentatonic, ScaleMajorPentatonic, ScaleDorian, ScaleBlues, ScaleChromatic}
}

// ParseScale resolves a scale name case-insensitively. Unknown names fall
// back to the minor pentatonic scale.
func ParseScale(name string) Scale {
	name = strings.TrimSpace(name)
	for s := range scaleClasses {
		if strings.EqualFold(string(s), name) {
			return s
		}
	}
	return ScalePentatonic
}

// Classes returns the pitch classes of s.
func (s Scale) Classes() []int {
	if pcs, ok := scaleClasses[s]; ok {
		return pcs
	}
	return scaleClasses[ScalePentatonic]
}

// Contains reports whether pitch class pc (0..11) belongs to s.
func (s Scale) Contains(pc int) bool {
	for _, c := range s.Classes() {
		if c == pc {
			return true
		}
	}
	return false
}

// Quantize snaps freq to the nearest pitch class of scale. The distance is
// measured within the octave of the rounded MIDI note; equidistant candidates
// resolve to the first one listed. Unusable input returns Reference.
func Quantize(freq float64, scale Scale) float64 {
	if !Valid(freq) {
		return Reference
	}
	r := int(math.Round(FrequencyToMIDI(freq)))
	pc := ((r % 12) + 12) % 12
	pcs := scale.Classes()
	best, bestDist := pcs[0], math.MaxInt
	for _, c := range pcs {
		d := c - pc
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	out := MIDIToFrequency(float64(r - pc + best))
	if !Valid(out) {
		return Reference
	}
	return out
}

// Pitcher maps canvas coordinates to oscillator frequencies for one canvas
// height, optionally snapping to a scale.
type Pitcher struct {
	Mapper    Mapper
	Height    float64
	Harmonize bool
	Scale     Scale
}

// Frequency returns the frequency for vertical coordinate y.
func (p Pitcher) Frequency(y float64) float64 {
	f := p.Mapper.Frequency(y, p.Height)
	if p.Harmonize {
		f = Quantize(f, p.Scale)
	}
	return f
}
