package graph

import (
	"math"
	"testing"

	intfx "github.com/cbegin/pigeon-go/internal/effects"
	intlfo "github.com/cbegin/pigeon-go/internal/lfo"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestParamLinearRamp(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain()
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)

	for _, tc := range []struct {
		frame int64
		want  float64
	}{{0, 0}, {250, 0.25}, {500, 0.5}, {1000, 1}, {2000, 1}} {
		if got := p.valueAt(tc.frame); !near(got, tc.want, 1e-9) {
			t.Fatalf("frame %d: got %f, want %f", tc.frame, got, tc.want)
		}
	}
}

func TestParamExponentialRamp(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain()
	p.SetValueAtTime(1, 0)
	p.ExponentialRampToValueAtTime(0.01, 1)
	if got := p.valueAt(500); !near(got, 0.1, 1e-9) {
		t.Fatalf("midpoint = %f, want 0.1", got)
	}
	if got := p.valueAt(1000); !near(got, 0.01, 1e-12) {
		t.Fatalf("end = %f, want 0.01", got)
	}
}

func TestParamExponentialRampToZeroIsLinear(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain()
	p.SetValueAtTime(1, 0)
	p.ExponentialRampToValueAtTime(0, 1)
	evs := p.Events()
	if evs[len(evs)-1].Kind != LinearRamp {
		t.Fatalf("kind = %v, want linearRamp", evs[len(evs)-1].Kind)
	}
}

func TestParamSetTarget(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(1).Gain()
	p.SetTargetAtTime(0, 0, 0.1)
	if got := p.valueAt(100); !near(got, math.Exp(-1), 1e-9) {
		t.Fatalf("after one time constant = %f, want %f", got, math.Exp(-1))
	}
}

func TestParamRampAfterTargetStartsFromTarget(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(1).Gain()
	p.SetTargetAtTime(0, 0, 0.1)
	p.LinearRampToValueAtTime(1, 1)

	mid := p.valueAt(500)
	if !near(mid, math.Exp(-5), 1e-9) {
		t.Fatalf("ramp start = %f, want %f", mid, math.Exp(-5))
	}
	prev := mid
	for f := int64(501); f <= 1000; f++ {
		v := p.valueAt(f)
		if v < prev {
			t.Fatalf("ramp not rising at frame %d", f)
		}
		prev = v
	}
	if !near(prev, 1, 1e-9) {
		t.Fatalf("ramp end = %f, want 1", prev)
	}
}

func TestParamEventsKeptInTimeOrder(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain()
	p.LinearRampToValueAtTime(3, 3)
	p.SetValueAtTime(1, 1)
	p.LinearRampToValueAtTime(2, 2)
	p.SetValueAtTime(9, 2)
	evs := p.Events()
	want := []float64{1, 2, 9, 3}
	for i, e := range evs {
		if e.Value != want[i] {
			t.Fatalf("event %d value = %f, want %f (%+v)", i, e.Value, want[i], evs)
		}
	}
}

func TestParamPastEventsApplyNow(t *testing.T) {
	ctx := NewContext(1000)
	ctx.Render(100)
	p := ctx.NewGain(0).Gain()
	p.SetValueAtTime(0.7, 0.01)
	if got := p.Value(); got != 0.7 {
		t.Fatalf("Value = %f, want 0.7", got)
	}
}

func TestParamDropsNonFiniteValuesAndClampsTimes(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain()
	p.SetValueAtTime(math.NaN(), 0)
	p.LinearRampToValueAtTime(math.Inf(1), 1)
	if n := len(p.Events()); n != 0 {
		t.Fatalf("non-finite values scheduled %d events", n)
	}
	p.SetValueAtTime(0.5, -3)
	p.SetValueAtTime(0.25, math.NaN())
	for _, e := range p.Events() {
		if e.Time != 0 {
			t.Fatalf("time not clamped: %+v", e)
		}
	}
}

func TestCancelScheduledValuesHolds(t *testing.T) {
	ctx := NewContext(1000)
	p := ctx.NewGain(0).Gain()
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)
	ctx.Render(500)

	p.CancelScheduledValues(0)
	if got := p.Value(); !near(got, 0.5, 1e-9) {
		t.Fatalf("held value = %f, want 0.5", got)
	}
	if got := p.valueAt(900); !near(got, 0.5, 1e-9) {
		t.Fatalf("value after cancel = %f, want 0.5", got)
	}
	for _, e := range p.Events() {
		if e.Time > 0.5+1e-9 {
			t.Fatalf("event after cancel time survived: %+v", e)
		}
	}
}

func TestOscillatorStartStopWindow(t *testing.T) {
	ctx := NewContext(1000, WithMasterGain(1))
	osc := ctx.NewOscillator(Square, 10)
	osc.Connect(ctx.Destination())
	osc.Start(0.2)
	osc.Stop(0.5)
	out := ctx.Render(1000)

	var inside int
	for f := 0; f < 1000; f++ {
		v := out[f*2]
		switch {
		case f < 200 || f >= 500:
			if v != 0 {
				t.Fatalf("frame %d: got %f outside the start/stop window", f, v)
			}
		case v != 0:
			inside++
		}
	}
	if inside < 250 {
		t.Fatalf("only %d sounding frames inside the window", inside)
	}
	if got := osc.StartTime(); !near(got, 0.2, 1e-9) {
		t.Fatalf("StartTime = %f", got)
	}
}

func TestSourceTimesAreSanitized(t *testing.T) {
	ctx := NewContext(1000, WithMasterGain(1))

	neg := ctx.NewOscillator(Square, 10)
	neg.Start(-5)
	if got := neg.StartTime(); got != 0 {
		t.Fatalf("negative start = %f, want 0", got)
	}

	nan := ctx.NewOscillator(Square, 10)
	nan.Start(math.NaN())
	if got := nan.StartTime(); got != 0 {
		t.Fatalf("NaN start = %f, want 0", got)
	}

	never := ctx.NewOscillator(Square, 10)
	never.Start(0)
	never.Stop(math.Inf(1))
	if !math.IsInf(never.StopTime(), 1) {
		t.Fatalf("+Inf stop = %f", never.StopTime())
	}

	early := ctx.NewOscillator(Square, 10)
	early.Start(0.5)
	early.Stop(0.1)
	early.Stop(0.9)
	if got := early.StopTime(); !near(got, 0.1, 1e-9) {
		t.Fatalf("earliest stop should win, got %f", got)
	}
	early.Connect(ctx.Destination())
	for i, v := range ctx.Render(1000) {
		if v != 0 {
			t.Fatalf("stop before start sounded at sample %d", i)
		}
	}
}

func TestDisconnectSilencesSubtree(t *testing.T) {
	ctx := NewContext(1000, WithMasterGain(1))
	bus := ctx.NewBus(1)
	bus.Connect(ctx.Destination())
	osc := ctx.NewOscillator(Square, 10)
	osc.Connect(bus)
	osc.Start(0.2)
	osc.Stop(0.8)

	bus.Disconnect()
	bus.Disconnect()
	for i, v := range ctx.Render(1000) {
		if v != 0 {
			t.Fatalf("disconnected bus leaked sound at sample %d", i)
		}
	}
}

func TestDisconnectAt(t *testing.T) {
	ctx := NewContext(1000, WithMasterGain(1))
	g := ctx.NewGain(1)
	g.Connect(ctx.Destination())
	osc := ctx.NewOscillator(Square, 10)
	osc.Connect(g)
	osc.Start(0)
	g.DisconnectAt(0.6)
	g.DisconnectAt(0.3)
	out := ctx.Render(1000)
	for f := 300; f < 1000; f++ {
		if out[f*2] != 0 {
			t.Fatalf("frame %d sounded after DisconnectAt", f)
		}
	}
	if g.Connected() {
		t.Fatal("gain still connected after cut frame")
	}
}

func TestEndedNodesArePruned(t *testing.T) {
	ctx := NewContext(1000)
	bus := ctx.NewBus(1)
	bus.Connect(ctx.Destination())
	g := ctx.NewGain(1)
	g.Connect(ctx.Destination())
	osc := ctx.NewOscillator(Sine, 100)
	osc.Connect(g)
	osc.Start(0)
	osc.Stop(0.1)

	ctx.Render(50)
	if n := ctx.Destination().Inputs(); n != 2 {
		t.Fatalf("inputs while sounding = %d, want 2", n)
	}
	ctx.Render(100)
	if n := ctx.Destination().Inputs(); n != 1 {
		t.Fatalf("inputs after stop = %d, want only the bus", n)
	}
}

func TestLFOModulatesParam(t *testing.T) {
	ctx := NewContext(1000)
	g := ctx.NewGain(1)
	g.Connect(ctx.Destination())
	noise := ctx.NewNoise(White)
	noise.Connect(g)
	noise.Start(0)
	l := ctx.NewLFO(intlfo.Square, 1, 0.5)
	l.Connect(g.Gain())
	l.Start(0)

	ctx.Render(300)
	if got := g.Gain().memo; got != 1.5 {
		t.Fatalf("modulated gain in first half = %f, want 1.5", got)
	}
	ctx.Render(300)
	if got := g.Gain().memo; got != 0.5 {
		t.Fatalf("modulated gain in second half = %f, want 0.5", got)
	}
	if got := g.Gain().Value(); got != 1 {
		t.Fatalf("Value should exclude modulation, got %f", got)
	}
}

func TestShaperCurveLookup(t *testing.T) {
	curve := []float64{-1, 0, 1}
	for _, tc := range []struct{ in, want float64 }{
		{-2, -1}, {-1, -1}, {0, 0}, {0.5, 0.5}, {1, 1}, {3, 1},
	} {
		if got := shape(curve, tc.in); !near(got, tc.want, 1e-12) {
			t.Fatalf("shape(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
	if got := shape(nil, 0.3); got != 0.3 {
		t.Fatalf("empty curve should pass through, got %f", got)
	}
}

func TestDistortionCurveIsBoundedAndRising(t *testing.T) {
	curve := DefaultDistortion()
	if len(curve) != 22050 {
		t.Fatalf("len = %d", len(curve))
	}
	if curve[len(curve)/2] != 0 {
		t.Fatalf("centre = %f, want 0", curve[len(curve)/2])
	}
	for i := 1; i < len(curve); i++ {
		if curve[i] < curve[i-1] {
			t.Fatalf("curve falls at %d", i)
		}
		if math.Abs(curve[i]) >= 1 {
			t.Fatalf("curve escapes [-1,1] at %d: %f", i, curve[i])
		}
	}
}

func TestWaveformsStartAtZero(t *testing.T) {
	for _, w := range []Waveform{Sine, Sawtooth, Triangle} {
		if got := w.sample(0, 0.01); !near(got, 0, 1e-12) {
			t.Fatalf("%s at phase 0 = %f", w, got)
		}
	}
	if ParseWaveform("SAW") != Sawtooth || ParseWaveform("nope") != Sine {
		t.Fatal("ParseWaveform mismatch")
	}
}

func TestNoiseBuffersAreRepeatable(t *testing.T) {
	for _, c := range []NoiseColor{White, Pink, Brown} {
		a := generateNoise(c, 4096, 7)
		b := generateNoise(c, 4096, 7)
		var energy float64
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%s noise differs at %d", c, i)
			}
			energy += a[i] * a[i]
		}
		if energy == 0 {
			t.Fatalf("%s noise is silent", c)
		}
	}
}

func buildSchedule(ctx *Context) {
	bus := ctx.NewBus(0.8)
	bus.Connect(ctx.Destination())

	osc := ctx.NewOscillator(Sawtooth, 220)
	env := ctx.NewGain(0)
	osc.Connect(env)
	env.Connect(bus)
	env.Gain().SetValueAtTime(0, 0.01)
	env.Gain().LinearRampToValueAtTime(0.3, 0.03)
	env.Gain().SetValueAtTime(0.3, 0.2)
	env.Gain().LinearRampToValueAtTime(0, 0.3)
	osc.Frequency().SetValueAtTime(220, 0.01)
	osc.Frequency().LinearRampToValueAtTime(880, 0.25)
	osc.Start(0.01)
	osc.Stop(0.35)

	noise := ctx.NewNoise(Pink)
	bp := ctx.NewFilter(Bandpass)
	bp.Q().SetValueAtTime(4, 0)
	ng := ctx.NewGain(0.2)
	noise.Connect(bp)
	bp.Connect(ng)
	ng.Connect(bus)
	l := ctx.NewLFO(intlfo.Sine, 5, 300)
	l.Connect(bp.Frequency())
	bp.Frequency().SetValueAtTime(1200, 0)
	noise.Start(0.05)
	l.Start(0.05)
	noise.Stop(0.4)
	l.Stop(0.4)
}

func TestChunkedProcessMatchesRender(t *testing.T) {
	const sr, frames = 8000, 4000
	newChain := func() *intfx.Chain {
		chain, err := intfx.Build(intfx.DefaultDirectives, sr)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return chain
	}

	offline := NewContext(sr, WithEffects(newChain()))
	buildSchedule(offline)
	want := offline.Render(frames)

	live := NewContext(sr, WithEffects(newChain()))
	buildSchedule(live)
	got := make([]float32, 0, frames*2)
	chunks := []int{7, 64, 513, 1, 128}
	for i := 0; len(got) < frames*2; i++ {
		n := chunks[i%len(chunks)]
		if rem := frames - len(got)/2; n > rem {
			n = rem
		}
		buf := make([]float32, n*2)
		live.Process(buf)
		got = append(got, buf...)
	}

	var energy float64
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d differs: chunked %v, offline %v", i, got[i], want[i])
		}
		energy += float64(want[i] * want[i])
	}
	if energy == 0 {
		t.Fatal("schedule rendered silence")
	}
}

func BenchmarkRender(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ctx := NewContext(44100)
		buildSchedule(ctx)
		ctx.Render(44100 / 2)
	}
}
