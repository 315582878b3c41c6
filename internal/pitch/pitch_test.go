package pitch

import (
	"math"
	"testing"
)

func TestMapperEdges(t *testing.T) {
	const h = 100.0
	if got := MapYToFrequency(0, h); got != DefaultMax {
		t.Fatalf("mapY(0) = %v, want %v", got, DefaultMax)
	}
	if got := MapYToFrequency(h, h); math.Abs(got-DefaultMin) > 1e-9 {
		t.Fatalf("mapY(h) = %v, want %v", got, DefaultMin)
	}
	if got := MapYToFrequency(h/2, h); math.Abs(got-540) > 1e-9 {
		t.Fatalf("mapY(h/2) = %v, want 540", got)
	}
}

func TestMapperAlwaysClamped(t *testing.T) {
	ys := []float64{
		math.Inf(-1), -1e12, -500, -15, 0, 37.5, 100, 115, 1e6, math.Inf(1), math.NaN(),
	}
	for _, h := range []float64{100, 1, 0.001} {
		for _, y := range ys {
			f := MapYToFrequency(y, h)
			if !Valid(f) || f < Floor || f > Ceiling {
				t.Fatalf("mapY(%v, %v) = %v, want finite within [%v,%v]", y, h, f, Floor, Ceiling)
			}
		}
	}
}

func TestMapperDegenerateHeight(t *testing.T) {
	for _, h := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if got := MapYToFrequency(50, h); got != Floor {
			t.Fatalf("mapY(50, %v) = %v, want floor", h, got)
		}
	}
}

func TestMapperJitterOvershoot(t *testing.T) {
	// A fractal jitter of +15px below the bottom edge must not go negative.
	f := MapYToFrequency(100+15, 100)
	if !Valid(f) || f < Floor {
		t.Fatalf("overshoot frequency = %v", f)
	}
	if f >= DefaultMin {
		t.Fatalf("overshoot frequency = %v, want below %v", f, DefaultMin)
	}
}

func TestIntervalAndMIDI(t *testing.T) {
	if got := Interval(440, 12); math.Abs(got-880) > 1e-9 {
		t.Fatalf("octave = %v", got)
	}
	if got := MIDIToFrequency(69); got != 440 {
		t.Fatalf("A4 = %v", got)
	}
	if got := FrequencyToMIDI(880); math.Abs(got-81) > 1e-9 {
		t.Fatalf("midi(880) = %v", got)
	}
}
