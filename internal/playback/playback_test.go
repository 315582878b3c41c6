package playback

import (
	"math"
	"testing"

	"github.com/cbegin/pigeon-go/internal/graph"
	"github.com/cbegin/pigeon-go/internal/pattern"
	"github.com/cbegin/pigeon-go/internal/pitch"
	"github.com/cbegin/pigeon-go/internal/stroke"
)

const (
	testWidth  = 700
	testHeight = 100
)

func line(b stroke.Brush, chord stroke.Chord, pts ...stroke.Point) *stroke.Stroke {
	s := stroke.New(b, 5, chord, pts[0])
	for _, p := range pts[1:] {
		s.Append(p)
	}
	return s
}

func oneTrack(strokes ...*stroke.Stroke) *pattern.Composition {
	comp := pattern.NewComposition(1)
	comp.Tracks[0].Strokes = strokes
	return comp
}

func newCompiler(sr int, opts ...graph.Option) (*graph.Context, *Compiler) {
	ctx := graph.NewContext(sr, opts...)
	return ctx, New(ctx, Options{Width: testWidth, Height: testHeight})
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func rampEvents(p *graph.Param) []graph.Event {
	var out []graph.Event
	for _, e := range p.Events() {
		if e.Kind == graph.LinearRamp {
			out = append(out, e)
		}
	}
	return out
}

func TestStandardStrokeSpansPass(t *testing.T) {
	ctx, c := newCompiler(8000)
	s := line(stroke.BrushStandard, "", stroke.Point{X: 0, Y: 0}, stroke.Point{X: testWidth, Y: testHeight})
	pass := c.Compile(oneTrack(s), 1, ctx.Destination())

	if pass.Duration != 16 {
		t.Fatalf("duration = %f, want 16", pass.Duration)
	}
	if len(pass.Voices) != 1 {
		t.Fatalf("voices = %d, want 1", len(pass.Voices))
	}
	v := pass.Voices[0]
	if !near(v.Start, 1) || !near(v.End, 17) {
		t.Fatalf("voice spans %f..%f, want 1..17", v.Start, v.End)
	}
	if len(v.Patch.Oscillators) != 1 {
		t.Fatalf("oscillators = %d", len(v.Patch.Oscillators))
	}
	osc := v.Patch.Oscillators[0]
	ramps := rampEvents(osc.Frequency())
	if len(ramps) != 2 {
		t.Fatalf("frequency ramps = %+v", ramps)
	}
	if !near(ramps[0].Time, 1) || ramps[0].Value != pitch.DefaultMax {
		t.Fatalf("first ramp = %+v, want %v at 1", ramps[0], pitch.DefaultMax)
	}
	if !near(ramps[1].Time, 17) || ramps[1].Value != pitch.DefaultMin {
		t.Fatalf("last ramp = %+v, want %v at 17", ramps[1], pitch.DefaultMin)
	}
	if got := osc.StartTime(); !near(got, 1) {
		t.Fatalf("oscillator start = %f", got)
	}
	if got, want := osc.StopTime(), 17+0.1+0.05; math.Abs(got-want) > 2.0/8000 {
		t.Fatalf("oscillator stop = %f, want %f", got, want)
	}
	if pass.Report.Scheduled != 1 || pass.Report.Skipped != 0 {
		t.Fatalf("report = %+v", pass.Report)
	}
}

func TestEnvelopeSustainsUntilStrokeEnd(t *testing.T) {
	ctx, c := newCompiler(8000)
	s := line(stroke.BrushVariable, "", stroke.Point{X: 0, Y: 50}, stroke.Point{X: testWidth, Y: 50})
	pass := c.Compile(oneTrack(s), 0, ctx.Destination())
	evs := pass.Voices[0].Patch.Envelope.Gain().Events()
	var hold *graph.Event
	for i := range evs {
		if evs[i].Kind == graph.SetValue && evs[i].Value > 0 {
			hold = &evs[i]
		}
	}
	if hold == nil || !near(hold.Time, 16) || hold.Value != 0.3 {
		t.Fatalf("no plateau held to the stroke end: %+v", evs)
	}
	last := evs[len(evs)-1]
	if last.Value != 0 || !near(last.Time, 16.1) {
		t.Fatalf("release = %+v, want 0 at 16.1", last)
	}
}

func TestRampsFollowSortedX(t *testing.T) {
	ctx, c := newCompiler(8000)
	s := line(stroke.BrushStandard, "",
		stroke.Point{X: testWidth, Y: 100},
		stroke.Point{X: 0, Y: 0},
		stroke.Point{X: testWidth / 2, Y: 50},
	)
	pass := c.Compile(oneTrack(s), 2, ctx.Destination())
	v := pass.Voices[0]
	if v.Start > v.End || v.Start < 0 {
		t.Fatalf("voice spans %f..%f", v.Start, v.End)
	}
	ramps := rampEvents(v.Patch.Oscillators[0].Frequency())
	wantT := []float64{2, 10, 18}
	wantF := []float64{1000, 540, 80}
	if len(ramps) != 3 {
		t.Fatalf("ramps = %+v", ramps)
	}
	for i, e := range ramps {
		if !near(e.Time, wantT[i]) || !near(e.Value, wantF[i]) {
			t.Fatalf("ramp %d = %+v, want %f at %f", i, e, wantF[i], wantT[i])
		}
		if i > 0 && e.Time < ramps[i-1].Time {
			t.Fatalf("ramp %d goes back in time", i)
		}
	}
}

func TestNegativeTimesClamp(t *testing.T) {
	ctx, c := newCompiler(8000)
	s := line(stroke.BrushStandard, "", stroke.Point{X: -500, Y: 10}, stroke.Point{X: -100, Y: 20})
	pass := c.Compile(oneTrack(s), 0, ctx.Destination())
	v := pass.Voices[0]
	if v.Start != 0 || v.End != 0 {
		t.Fatalf("voice spans %f..%f, want clamped to 0", v.Start, v.End)
	}
	for _, e := range v.Patch.Oscillators[0].Frequency().Events() {
		if e.Time < 0 {
			t.Fatalf("negative event time %+v", e)
		}
	}
}

func TestChordCompilesOneOscillatorPerInterval(t *testing.T) {
	ctx, c := newCompiler(8000)
	s := line(stroke.BrushChord, stroke.ChordMajor, stroke.Point{X: 70, Y: 50}, stroke.Point{X: 140, Y: 40})
	pass := c.Compile(oneTrack(s), 0.5, ctx.Destination())
	if len(pass.Voices) != 1 {
		t.Fatalf("voices = %d", len(pass.Voices))
	}
	v := pass.Voices[0]
	if n := len(v.Patch.Oscillators); n != 3 {
		t.Fatalf("oscillators = %d, want 3", n)
	}
	if v.AttackEnd-v.Start >= 0.01 {
		t.Fatalf("chord attack = %f, want < 10ms", v.AttackEnd-v.Start)
	}
	start := v.Patch.Oscillators[0].StartTime()
	for i, o := range v.Patch.Oscillators {
		if o.StartTime() != start {
			t.Fatalf("osc %d starts at %f, want %f", i, o.StartTime(), start)
		}
		ramps := rampEvents(o.Frequency())
		root := rampEvents(v.Patch.Oscillators[0].Frequency())
		ratio := math.Pow(2, float64(v.Patch.Intervals[i])/12)
		for j := range ramps {
			if !near(ramps[j].Value, root[j].Value*ratio) {
				t.Fatalf("osc %d ramp %d = %f, want %f", i, j, ramps[j].Value, root[j].Value*ratio)
			}
		}
	}
	if pass.Report.Scheduled != 3 {
		t.Fatalf("scheduled = %d, want 3", pass.Report.Scheduled)
	}
}

func TestGrainsOnePerPoint(t *testing.T) {
	ctx, c := newCompiler(8000)
	pts := []stroke.Point{{X: 10, Y: 10}, {X: 10, Y: 90}, {X: 300, Y: 50}, {X: 20, Y: 30}, {X: 699, Y: 1}}
	s := line(stroke.BrushParticles, "", pts...)
	pass := c.Compile(oneTrack(s), 0, ctx.Destination())
	if len(pass.Voices) != len(pts) {
		t.Fatalf("grains = %d, want %d", len(pass.Voices), len(pts))
	}
	for i, v := range pass.Voices {
		if !(v.AttackEnd < v.End) {
			t.Fatalf("grain %d attack %f not before decay end %f", i, v.AttackEnd, v.End)
		}
		want := pts[i].X / testWidth * 16
		if !near(v.Start, want) {
			t.Fatalf("grain %d at %f, want %f", i, v.Start, want)
		}
		evs := v.Patch.Envelope.Gain().Events()
		if last := evs[len(evs)-1]; last.Kind != graph.ExponentialRamp {
			t.Fatalf("grain %d decay = %+v", i, last)
		}
	}
}

func TestSingleGrainIsPlayable(t *testing.T) {
	ctx, c := newCompiler(8000)
	s := stroke.New(stroke.BrushParticles, 5, "", stroke.Point{X: 350, Y: 50})
	cont := stroke.New(stroke.BrushStandard, 5, "", stroke.Point{X: 350, Y: 50})
	pass := c.Compile(oneTrack(s, cont), 0, ctx.Destination())
	if len(pass.Voices) != 1 || pass.Voices[0].Brush != stroke.BrushParticles {
		t.Fatalf("voices = %+v", pass.Voices)
	}
}

func TestLoopPassesOffsetConsistently(t *testing.T) {
	ctx, c := newCompiler(8000)
	comp := oneTrack(
		line(stroke.BrushStandard, "", stroke.Point{X: 10, Y: 10}, stroke.Point{X: 400, Y: 80}),
		line(stroke.BrushParticles, "", stroke.Point{X: 100, Y: 10}, stroke.Point{X: 200, Y: 20}),
	)
	t0, t1 := 0.1, 16.1
	a := c.Compile(comp, t0, ctx.Destination())
	b := c.Compile(comp, t1, ctx.Destination())
	if len(a.Voices) != len(b.Voices) {
		t.Fatalf("voice counts differ: %d vs %d", len(a.Voices), len(b.Voices))
	}
	for i := range a.Voices {
		va, vb := a.Voices[i], b.Voices[i]
		for _, d := range []float64{vb.Start - va.Start, vb.End - va.End, vb.StopAt - va.StopAt} {
			if math.Abs(d-(t1-t0)) > 1e-9 {
				t.Fatalf("voice %d offset %f, want %f", i, d, t1-t0)
			}
		}
		ea := va.Patch.Oscillators[0].Frequency().Events()
		eb := vb.Patch.Oscillators[0].Frequency().Events()
		for j := range ea {
			if math.Abs((eb[j].Time-ea[j].Time)-(t1-t0)) > 1e-9 || ea[j].Value != eb[j].Value {
				t.Fatalf("voice %d event %d: %+v vs %+v", i, j, ea[j], eb[j])
			}
		}
	}
}

func TestHarmonizedRampsStayInScale(t *testing.T) {
	ctx, c := newCompiler(8000)
	comp := oneTrack(line(stroke.BrushStandard, "",
		stroke.Point{X: 0, Y: 3}, stroke.Point{X: 100, Y: 27}, stroke.Point{X: 200, Y: 61}, stroke.Point{X: 300, Y: 88}))
	comp.Settings.Harmonize = true
	comp.Settings.Scale = pitch.ScaleMajor
	pass := c.Compile(comp, 0, ctx.Destination())
	for _, e := range rampEvents(pass.Voices[0].Patch.Oscillators[0].Frequency()) {
		midi := int(math.Round(pitch.FrequencyToMIDI(e.Value)))
		if !pitch.ScaleMajor.Contains(((midi % 12) + 12) % 12) {
			t.Fatalf("ramp to %f Hz (midi %d) is outside the major scale", e.Value, midi)
		}
	}
}

func TestFractalReplaysCapturedJitter(t *testing.T) {
	ctx, c := newCompiler(8000)
	s := line(stroke.BrushFractal, "",
		stroke.Point{X: 0, Y: 50, JitterY: 10}, stroke.Point{X: 700, Y: 50, JitterY: -10})
	a := c.Compile(oneTrack(s), 0, ctx.Destination())
	b := c.Compile(oneTrack(s), 0, ctx.Destination())
	ra := rampEvents(a.Voices[0].Patch.Oscillators[0].Frequency())
	rb := rampEvents(b.Voices[0].Patch.Oscillators[0].Frequency())
	if !near(ra[0].Value, 448) || !near(ra[1].Value, 632) {
		t.Fatalf("fractal ramps = %+v, want 448 then 632", ra)
	}
	for i := range ra {
		if ra[i] != rb[i] {
			t.Fatalf("replay differs at %d: %+v vs %+v", i, ra[i], rb[i])
		}
	}
	if a.Voices[0].Patch.Shaper == nil {
		t.Fatal("fractal voice has no distortion stage")
	}
}

func TestBristleTextureFollowsPitch(t *testing.T) {
	ctx, c := newCompiler(8000)
	s := line(stroke.BrushBristle, "", stroke.Point{X: 0, Y: 0}, stroke.Point{X: 700, Y: 100})
	pass := c.Compile(oneTrack(s), 0, ctx.Destination())
	p := pass.Voices[0].Patch
	if p.Noise == nil || p.Band == nil {
		t.Fatal("bristle voice has no texture layer")
	}
	ramps := rampEvents(p.Band.Frequency())
	if len(ramps) != 2 || ramps[0].Value != 2000 || ramps[1].Value != 160 {
		t.Fatalf("band ramps = %+v", ramps)
	}
	if p.Noise.StopTime() != p.Oscillators[0].StopTime() {
		t.Fatalf("noise stops at %f, oscillator at %f", p.Noise.StopTime(), p.Oscillators[0].StopTime())
	}
	levels := p.Levels()
	if len(levels) != 2 {
		t.Fatalf("levels = %d", len(levels))
	}
	for _, l := range levels {
		evs := l.Gain.Events()
		if last := evs[len(evs)-1]; last.Value != 0 || !near(last.Time, 16.1) {
			t.Fatalf("texture envelope not synchronized: %+v", evs)
		}
	}
}

func TestBadStrokeIsIsolated(t *testing.T) {
	ctx, c := newCompiler(8000)
	bad := line(stroke.BrushStandard, "", stroke.Point{X: 0, Y: 10}, stroke.Point{X: math.Inf(1), Y: 20})
	good := line(stroke.BrushStandard, "", stroke.Point{X: 0, Y: 10}, stroke.Point{X: 100, Y: 20})
	grains := line(stroke.BrushParticles, "", stroke.Point{X: math.NaN(), Y: 10}, stroke.Point{X: 50, Y: 20})
	comp := pattern.NewComposition(2)
	comp.Tracks[0].Strokes = []*stroke.Stroke{bad, good}
	comp.Tracks[1].Strokes = []*stroke.Stroke{grains}
	pass := c.Compile(comp, 0, ctx.Destination())
	if len(pass.Voices) != 2 {
		t.Fatalf("voices = %d, want 2", len(pass.Voices))
	}
	if pass.Voices[0].Stroke != good || pass.Voices[1].Track != 1 {
		t.Fatalf("wrong voices survived: %+v", pass.Voices)
	}
	if pass.Report.Scheduled != 2 || pass.Report.Skipped != 2 {
		t.Fatalf("report = %+v, want 2 scheduled, 2 skipped", pass.Report)
	}
}

func TestMutedTrackCompiledSilent(t *testing.T) {
	ctx, c := newCompiler(8000)
	comp := pattern.NewComposition(2)
	comp.Tracks[0].Volume = 0.7
	comp.Tracks[1].Muted = true
	pass := c.Compile(comp, 0, ctx.Destination())
	if len(pass.Buses) != 2 {
		t.Fatalf("buses = %d", len(pass.Buses))
	}
	if g := pass.Buses[0].Gain().Value(); g != 0.7 {
		t.Fatalf("track 0 gain = %f", g)
	}
	if g := pass.Buses[1].Gain().Value(); g != 0 {
		t.Fatalf("muted track gain = %f", g)
	}
}

func renderPeak(out []float32) float64 {
	var peak float64
	for _, v := range out {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	return peak
}

func TestStopSilencesPendingVoices(t *testing.T) {
	comp := oneTrack(line(stroke.BrushStandard, "", stroke.Point{X: 0, Y: 50}, stroke.Point{X: 700, Y: 50}))
	comp.Settings.BPM = 960 // two-second pass

	ctx, c := newCompiler(8000, graph.WithMasterGain(1))
	c.Compile(comp, 0.5, ctx.Destination())
	ctx.Render(1600)
	if renderPeak(ctx.Render(16000)) == 0 {
		t.Fatal("pass never sounded")
	}

	ctx, c = newCompiler(8000, graph.WithMasterGain(1))
	pass := c.Compile(comp, 0.5, ctx.Destination())
	ctx.Render(1600)
	pass.Stop()
	pass.Stop()
	if peak := renderPeak(ctx.Render(16000)); peak != 0 {
		t.Fatalf("stopped pass still sounds: peak %f", peak)
	}
	if !pass.Stopped() {
		t.Fatal("pass not marked stopped")
	}
	var nilPass *Pass
	nilPass.Stop()
}

func TestVoiceReleaseTearsDownAfterFade(t *testing.T) {
	ctx, c := newCompiler(8000)
	s := line(stroke.BrushStandard, "", stroke.Point{X: 0, Y: 50}, stroke.Point{X: 700, Y: 50})
	pass := c.Compile(oneTrack(s), 0, ctx.Destination())
	if n := pass.ReleaseStroke(s, 2); n != 1 {
		t.Fatalf("released %d voices, want 1", n)
	}
	v := pass.Voices[0]
	teardown := v.Patch.Recipe.Live.Teardown
	if got := v.Patch.Oscillators[0].StopTime(); math.Abs(got-(2+teardown)) > 2.0/8000 {
		t.Fatalf("stop = %f, want %f", got, 2+teardown)
	}
	evs := v.Patch.Envelope.Gain().Events()
	if last := evs[len(evs)-1]; last.Kind != graph.SetTarget || last.Value != 0 {
		t.Fatalf("release = %+v", last)
	}
	if n := pass.ReleaseStroke(s, 3); n != 0 {
		t.Fatalf("second release touched %d voices", n)
	}
}

func BenchmarkCompileAndRender(b *testing.B) {
	comp := pattern.NewComposition(4)
	for i := range comp.Tracks {
		for j := 0; j < 8; j++ {
			x := float64(j * 80)
			brush := stroke.Brushes()[(i+j)%len(stroke.Brushes())]
			comp.Tracks[i].Strokes = append(comp.Tracks[i].Strokes,
				line(brush, stroke.ChordMinor,
					stroke.Point{X: x, Y: float64(10 + j*5)},
					stroke.Point{X: x + 30, Y: float64(20 + i*10)},
					stroke.Point{X: x + 60, Y: float64(40 + j)}))
		}
	}
	comp.Settings.BPM = 480
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ctx, c := newCompiler(22050)
		c.Compile(comp, 0, ctx.Destination())
		ctx.Render(22050)
	}
}
