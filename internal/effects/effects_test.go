package effects

import (
	"math"
	"testing"
)

func TestDelayProducesOutput(t *testing.T) {
	d := NewDelay(44100, 100, 0.5, 0, 0.5, 0)
	// Feed a pulse and check delayed output appears
	d.Process(1.0, 1.0)
	for i := 0; i < 4409; i++ { // ~100ms at 44100Hz
		d.Process(0, 0)
	}
	l, r := d.Process(0, 0)
	if math.Abs(l) < 0.01 || math.Abs(r) < 0.01 {
		t.Errorf("expected delayed output, got l=%f r=%f", l, r)
	}
}

func TestDelayPingPongAlternatesSides(t *testing.T) {
	d := NewDelay(1000, 10, 0.5, 1, 1, 0)
	d.Process(1, 1)
	for i := 0; i < 9; i++ {
		d.Process(0, 0)
	}
	l, r := d.Process(0, 0)
	if math.Abs(l-1) > 1e-9 || r != 0 {
		t.Fatalf("first echo = %f / %f, want left only", l, r)
	}
	for i := 0; i < 9; i++ {
		d.Process(0, 0)
	}
	l, r = d.Process(0, 0)
	if l != 0 || math.Abs(r-0.5) > 1e-9 {
		t.Fatalf("second echo = %f / %f, want right at half level", l, r)
	}
}

func TestDelayDampingDarkensRepeats(t *testing.T) {
	d := NewDelay(1000, 1, 0.9, 0, 1, 0.5)
	d.Process(1, 1)
	first, _ := d.Process(0, 0)
	second, _ := d.Process(0, 0)
	if first != 1 || second <= 0 || second >= 0.9 {
		t.Fatalf("repeats = %f, %f", first, second)
	}
}

func TestReverbProducesOutput(t *testing.T) {
	r := NewReverb(44100, 0.5, 0.7, 0.5)
	r.Process(1.0, 1.0)
	var maxOut float64
	for i := 0; i < 10000; i++ {
		l, _ := r.Process(0, 0)
		maxOut = math.Max(maxOut, math.Abs(l))
	}
	if maxOut < 0.001 {
		t.Error("expected reverb tail")
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(
		NewCompressor(44100, -24, 12, 3, 250, 0, 30),
		NewDelay(44100, 10, 0, 0, 0.5, 0),
	)
	l, r := c.Process(0.5, 0.5)
	if l == 0 || r == 0 {
		t.Error("chain should produce output")
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}

func TestEQ5BandUnityGain(t *testing.T) {
	eq := NewEQ5Band(44100)
	for i := 0; i < 1000; i++ {
		eq.Process(0.5, 0.5)
	}
	l, r := eq.Process(0.5, 0.5)
	if math.Abs(l-0.5) > 1e-9 || math.Abs(r-0.5) > 1e-9 {
		t.Errorf("expected 0.5 with unity gains, got l=%f r=%f", l, r)
	}
}

func TestEQ5BandMutesBand(t *testing.T) {
	eq := NewEQ5Band(44100)
	for band := 0; band < 5; band++ {
		eq.SetGain(band, 0)
	}
	var l float64
	for i := 0; i < 100; i++ {
		l, _ = eq.Process(0.5, 0.5)
	}
	if l != 0 {
		t.Fatalf("all bands muted, got %f", l)
	}
	eq.SetGain(9, 2)
	if eq.Gain(9) != 1 {
		t.Fatalf("out of range band gain = %f, want 1", eq.Gain(9))
	}
}

func TestCompressorReducesLoud(t *testing.T) {
	c := NewCompressor(44100, -10, 4, 1, 50, 0, 0)
	var out float64
	for i := 0; i < 1000; i++ {
		out, _ = c.Process(1.0, 1.0)
	}
	if out >= 1.0 {
		t.Errorf("compressor should reduce loud signals, got %f", out)
	}
}

func TestCompressorLeavesQuietAlone(t *testing.T) {
	c := NewCompressor(44100, -24, 12, 3, 250, 0, 30)
	var out float64
	for i := 0; i < 1000; i++ {
		out, _ = c.Process(0.001, 0.001)
	}
	if math.Abs(out-0.001) > 1e-9 {
		t.Errorf("quiet signal should pass unchanged, got %g", out)
	}
}

func TestCompressorKneeIsContinuous(t *testing.T) {
	c := NewCompressor(44100, -24, 12, 3, 250, 0, 30)
	prev := c.gain(math.Pow(10, -60.0/20))
	for db := -60.0; db <= 0; db += 0.5 {
		g := c.gain(math.Pow(10, db/20))
		if g > prev+1e-12 {
			t.Fatalf("gain rose at %.1f dB: %f > %f", db, g, prev)
		}
		if math.Abs(g-prev) > 0.05 {
			t.Fatalf("gain jumps at %.1f dB: %f -> %f", db, prev, g)
		}
		prev = g
	}
}

func TestBuildParsesDirectives(t *testing.T) {
	chain, err := Build([]string{"comp -20,4", " ", "{delay 120,0.3}", "reverb", "eq 1,1,0.5,1,1"}, 44100)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if chain.Len() != 4 {
		t.Fatalf("Len = %d, want 4", chain.Len())
	}
	if _, err := Build([]string{"flanger 1"}, 44100); err == nil {
		t.Fatal("expected error for unknown effect")
	}
	if _, err := Build([]string{"delay abc"}, 44100); err == nil {
		t.Fatal("expected error for bad parameter")
	}
}

func TestDefaultDirectivesBuild(t *testing.T) {
	chain, err := Build(DefaultDirectives, 48000)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if chain.Len() != 1 {
		t.Fatalf("Len = %d, want 1", chain.Len())
	}
}
