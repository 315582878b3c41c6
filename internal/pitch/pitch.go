package pitch

import "math"

const (
	// DefaultMax is the frequency at the top edge of a track canvas.
	DefaultMax = 1000.0
	// DefaultMin is the frequency at the bottom edge of a track canvas.
	DefaultMin = 80.0
	// Floor and Ceiling bound every frequency handed to an oscillator.
	Floor   = 20.0
	Ceiling = 20000.0
	// Reference is returned by Quantize when its input is unusable.
	Reference = 440.0
)

// Mapper converts a vertical canvas coordinate to a frequency.
// The mapping is linear: y=0 yields Max, y=height yields Min.
type Mapper struct {
	Min     float64
	Max     float64
	Floor   float64
	Ceiling float64
}

// DefaultMapper returns the 80Hz..1kHz mapping clamped to [20Hz, 20kHz].
func DefaultMapper() Mapper {
	return Mapper{Min: DefaultMin, Max: DefaultMax, Floor: Floor, Ceiling: Ceiling}
}

// Frequency maps y on a canvas of the given height. The result is always
// finite and inside [Floor, Ceiling]; a degenerate height or a NaN coordinate
// yields Floor.
func (m Mapper) Frequency(y, height float64) float64 {
	lo, hi := m.bounds()
	if !(height > 0) || math.IsInf(height, 0) || math.IsNaN(y) {
		return lo
	}
	f := m.Max - (y/height)*(m.Max-m.Min)
	if math.IsNaN(f) {
		return lo
	}
	return clamp(f, lo, hi)
}

func (m Mapper) bounds() (float64, float64) {
	lo, hi := m.Floor, m.Ceiling
	if !(lo > 0) || math.IsInf(lo, 0) {
		lo = Floor
	}
	if !(hi > lo) || math.IsInf(hi, 0) {
		hi = math.Max(Ceiling, lo)
	}
	return lo, hi
}

// MapYToFrequency maps y with the default mapper.
func MapYToFrequency(y, height float64) float64 {
	return DefaultMapper().Frequency(y, height)
}

// Valid reports whether f can safely drive an oscillator.
func Valid(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Interval transposes f by a number of semitones.
func Interval(f float64, semitones int) float64 {
	return f * math.Pow(2, float64(semitones)/12)
}

// FrequencyToMIDI returns the fractional MIDI note number of f.
func FrequencyToMIDI(f float64) float64 {
	return 69 + 12*math.Log2(f/440)
}

// MIDIToFrequency converts a (possibly fractional) MIDI note number to Hz.
func MIDIToFrequency(midi float64) float64 {
	return 440 * math.Pow(2, (midi-69)/12)
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
