package lfo

import (
	"math"
	"testing"
)

func TestSineShape(t *testing.T) {
	l := New(10, 1, Sine)
	sr := 100.0
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = l.Sample(sr)
	}
	if math.Abs(samples[0]) > 1e-9 {
		t.Errorf("sine at phase 0: got %f, want 0", samples[0])
	}
	if math.Abs(samples[25]-10) > 1e-6 {
		t.Errorf("sine at phase 0.25: got %f, want 10", samples[25])
	}
	if math.Abs(samples[75]+10) > 1e-6 {
		t.Errorf("sine at phase 0.75: got %f, want -10", samples[75])
	}
}

func TestTriangleShape(t *testing.T) {
	l := New(1, 1, Triangle)
	sr := 100.0
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = l.Sample(sr)
	}
	if math.Abs(samples[0]+1) > 0.05 {
		t.Errorf("triangle at phase 0: got %f, want -1", samples[0])
	}
	if math.Abs(samples[25]) > 0.05 {
		t.Errorf("triangle at phase 0.25: got %f, want ~0", samples[25])
	}
	if math.Abs(samples[50]-1) > 0.05 {
		t.Errorf("triangle at phase 0.5: got %f, want 1", samples[50])
	}
}

func TestSquareShape(t *testing.T) {
	l := New(2, 1, Square)
	sr := 100.0
	if v := l.Sample(sr); math.Abs(v-2) > 0.01 {
		t.Errorf("square first half: got %f, want 2", v)
	}
	for i := 1; i < 50; i++ {
		l.Sample(sr)
	}
	if v := l.Sample(sr); math.Abs(v+2) > 0.01 {
		t.Errorf("square second half: got %f, want -2", v)
	}
}

func TestSawShape(t *testing.T) {
	l := New(1, 1, Saw)
	if v := l.Sample(100); math.Abs(v-1) > 0.05 {
		t.Errorf("saw at phase 0: got %f, want 1", v)
	}
}

func TestZeroDepthOrRateIsSilent(t *testing.T) {
	if v := New(0, 5, Sine).Sample(44100); v != 0 {
		t.Errorf("zero depth should return 0, got %f", v)
	}
	if v := New(1, 0, Sine).Sample(44100); v != 0 {
		t.Errorf("zero rate should return 0, got %f", v)
	}
}

func TestActive(t *testing.T) {
	l := &LFO{}
	if l.Active() {
		t.Error("default LFO should not be active")
	}
	l.Set(1, 5, Triangle)
	if !l.Active() {
		t.Error("configured LFO should be active")
	}
}

func TestUnknownShapeFallsBackToSine(t *testing.T) {
	l := New(1, 1, Shape(42))
	if l.shape != Sine {
		t.Fatalf("shape = %v, want sine", l.shape)
	}
}

func TestRandomIsBoundedAndRepeatable(t *testing.T) {
	run := func() []float64 {
		l := New(1, 10, Random)
		out := make([]float64, 500)
		for i := range out {
			out[i] = l.Sample(1000)
		}
		return out
	}
	a, b := run(), run()
	var changed bool
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs between runs: %f vs %f", i, a[i], b[i])
		}
		if math.Abs(a[i]) > 1 {
			t.Fatalf("sample %d exceeds depth: %f", i, a[i])
		}
		if a[i] != 0 {
			changed = true
		}
	}
	if !changed {
		t.Fatal("random LFO never left zero")
	}
}
