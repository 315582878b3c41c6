// Package pigeon is a drawing instrument: strokes drawn on per-track canvases
// sound while they are drawn and are replayed, looped, by a scheduled
// synthesis pass. A Session owns all mutable state of one instrument.
package pigeon

import (
	"errors"
	"math"

	intaudio "github.com/cbegin/pigeon-go/internal/audio"
	"github.com/cbegin/pigeon-go/internal/config"
	"github.com/cbegin/pigeon-go/internal/debug"
	intfx "github.com/cbegin/pigeon-go/internal/effects"
	"github.com/cbegin/pigeon-go/internal/graph"
	intlive "github.com/cbegin/pigeon-go/internal/live"
	"github.com/cbegin/pigeon-go/internal/pattern"
	"github.com/cbegin/pigeon-go/internal/pitch"
	"github.com/cbegin/pigeon-go/internal/playback"
	"github.com/cbegin/pigeon-go/internal/stroke"
	"github.com/cbegin/pigeon-go/internal/transport"
	"github.com/cbegin/pigeon-go/internal/voice"
)

const (
	DefaultSampleRate   = 44100
	DefaultCanvasWidth  = 700.0
	DefaultCanvasHeight = 100.0
	// MixTimeConstant smooths volume and mute changes.
	MixTimeConstant = 0.05
)

// Tool is what a pointer gesture does on the canvas.
type Tool int

const (
	ToolDraw Tool = iota
	ToolErase
)

type SessionOption func(*sessionConfig)

type sessionConfig struct {
	tracks     int
	width      float64
	height     float64
	bpm        float64
	lookahead  float64
	masterGain float64
	effects    []string
	seed       int64
	sampleTap  func([]float32)
	noDevice   bool
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		tracks:     pattern.DefaultTracks,
		width:      DefaultCanvasWidth,
		height:     DefaultCanvasHeight,
		bpm:        pattern.DefaultBPM,
		lookahead:  transport.DefaultLookahead,
		masterGain: graph.DefaultMasterGain,
		effects:    intfx.DefaultDirectives,
		seed:       1,
	}
}

func WithTracks(n int) SessionOption {
	return func(cfg *sessionConfig) {
		if n > 0 {
			cfg.tracks = n
		}
	}
}

// WithCanvasSize sets the backing size of each track canvas.
func WithCanvasSize(width, height float64) SessionOption {
	return func(cfg *sessionConfig) {
		if width > 0 && height > 0 {
			cfg.width, cfg.height = width, height
		}
	}
}

func WithBPM(bpm float64) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.bpm = pattern.SanitizeBPM(bpm)
	}
}

// WithLookahead sets the delay between Play and the first scheduled sound.
func WithLookahead(sec float64) SessionOption {
	return func(cfg *sessionConfig) {
		if sec >= 0 {
			cfg.lookahead = sec
		}
	}
}

func WithMasterGain(g float64) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.masterGain = g
	}
}

// WithEffects sets the master chain directives. An empty list disables the
// chain.
func WithEffects(directives []string) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.effects = append([]string{}, directives...)
	}
}

// WithSeed seeds the random source behind fractal jitter.
func WithSeed(seed int64) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.seed = seed
	}
}

// WithSampleTap installs a callback invoked with each rendered stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.sampleTap = tap
	}
}

// WithoutAudioDevice leaves the graph unattached; the caller drives it
// through Session.Context.
func WithoutAudioDevice() SessionOption {
	return func(cfg *sessionConfig) {
		cfg.noDevice = true
	}
}

// WithConfig applies a loaded configuration. Options after it override it.
func WithConfig(c *config.Config) SessionOption {
	return func(cfg *sessionConfig) {
		if c == nil {
			return
		}
		WithTracks(c.Tracks)(cfg)
		WithCanvasSize(c.Canvas.Width, c.Canvas.Height)(cfg)
		WithBPM(c.BPM)(cfg)
		WithLookahead(c.Lookahead)(cfg)
		WithMasterGain(c.MasterGain)(cfg)
		if c.Effects != nil {
			WithEffects(c.Effects)(cfg)
		}
	}
}

type edit struct {
	track  int
	stroke *stroke.Stroke
}

// Session is one instrument: the composition, the live and scheduled
// synthesis built from it, and the editing state. Its methods are meant to
// be called from a single control goroutine (the UI loop); the audio device
// pulls samples on its own thread.
type Session struct {
	cfg       sessionConfig
	ctx       *graph.Context
	device    *intaudio.Device
	comp      *pattern.Composition
	monitors  []*graph.Gain
	live      *intlive.Engine
	transport *transport.Transport
	jitter    *stroke.Jitterer

	tool      Tool
	brush     stroke.Brush
	thickness float64
	chord     stroke.Chord

	drawing *edit
	erasing int
	history []edit
}

// NewSession creates a session rendering at sampleRate.
func NewSession(sampleRate int, opts ...SessionOption) (*Session, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	chain, err := intfx.Build(cfg.effects, sampleRate)
	if err != nil {
		return nil, err
	}
	ctxOpts := []graph.Option{graph.WithMasterGain(cfg.masterGain), graph.WithSampleTap(cfg.sampleTap)}
	if chain.Len() > 0 {
		ctxOpts = append(ctxOpts, graph.WithEffects(chain))
	}
	ctx := graph.NewContext(sampleRate, ctxOpts...)

	comp := pattern.NewComposition(cfg.tracks)
	comp.Settings.BPM = cfg.bpm
	s := &Session{
		cfg:       cfg,
		ctx:       ctx,
		comp:      comp,
		jitter:    stroke.NewJitterer(cfg.seed),
		brush:     stroke.BrushStandard,
		thickness: 5,
		chord:     stroke.ChordMajor,
		erasing:   -1,
	}
	s.monitors = make([]*graph.Gain, len(comp.Tracks))
	for i := range comp.Tracks {
		s.monitors[i] = ctx.NewBus(comp.Tracks[i].Gain())
		s.monitors[i].Connect(ctx.Destination())
	}
	s.live = intlive.New(ctx, s.pitcher())
	compiler := playback.New(ctx, playback.Options{Width: cfg.width, Height: cfg.height})
	s.transport = transport.New(ctx, compiler, ctx.Destination(), comp,
		transport.WithLookahead(cfg.lookahead),
		transport.WithHooks(transport.Hooks{OnSwap: s.patternLoaded}))

	if !cfg.noDevice {
		dev, err := intaudio.Open(sampleRate, ctx, 0)
		if err != nil {
			return nil, err
		}
		s.device = dev
	}
	return s, nil
}

func (s *Session) pitcher() pitch.Pitcher {
	return pitch.Pitcher{
		Mapper:    pitch.DefaultMapper(),
		Height:    s.cfg.height,
		Harmonize: s.comp.Settings.Harmonize,
		Scale:     s.comp.Settings.Scale,
	}
}

// Context returns the audio graph. Without a device, render it to advance
// the clock.
func (s *Session) Context() *graph.Context { return s.ctx }

// Composition returns the live composition. Treat it as read-only; edit
// through the Session.
func (s *Session) Composition() *pattern.Composition { return s.comp }

// CanvasSize returns the backing size of a track canvas.
func (s *Session) CanvasSize() (width, height float64) { return s.cfg.width, s.cfg.height }

// Resume starts the audio device. Pointer and transport actions call it, so
// the device wakes on the first user gesture.
func (s *Session) Resume() {
	if s.device != nil && !s.device.Running() {
		s.device.Resume()
	}
}

func (s *Session) track(i int) (*pattern.Track, bool) {
	if i < 0 || i >= len(s.comp.Tracks) {
		return nil, false
	}
	return &s.comp.Tracks[i], true
}

// SetTool selects drawing or erasing.
func (s *Session) SetTool(t Tool) { s.tool = t }

func (s *Session) Tool() Tool { return s.tool }

// SetBrush selects the brush, thickness and chord of later strokes.
func (s *Session) SetBrush(b stroke.Brush, thickness float64, chord stroke.Chord) {
	s.brush = stroke.ParseBrush(string(b))
	s.thickness = thickness
	if chord != "" {
		s.chord = chord
	}
}

func (s *Session) Brush() (stroke.Brush, float64, stroke.Chord) {
	return s.brush, s.thickness, s.chord
}

func (s *Session) point(tr *pattern.Track, x, y float64) stroke.Point {
	if tr.Snap {
		x = stroke.Snap(x, s.cfg.width)
	}
	return s.jitter.Point(x, y, voice.ForBrush(s.brush, s.chord, s.thickness).Jitter)
}

// PointerDown begins a gesture on track i at canvas coordinates (x, y).
func (s *Session) PointerDown(i int, x, y float64) {
	tr, ok := s.track(i)
	if !ok {
		return
	}
	s.Resume()
	if s.drawing != nil {
		s.PointerUp()
	}
	if s.tool == ToolErase {
		s.erasing = i
		s.Erase(i, x, y)
		return
	}
	st := stroke.New(s.brush, s.thickness, s.chord, s.point(tr, x, y))
	tr.Strokes = append(tr.Strokes, st)
	s.drawing = &edit{track: i, stroke: st}
	s.live.Start(i, tr, s.monitors[i], st)
}

// PointerMove extends the gesture in progress. Moves without a preceding
// PointerDown are ignored.
func (s *Session) PointerMove(x, y float64) {
	if s.erasing >= 0 {
		s.Erase(s.erasing, x, y)
		return
	}
	d := s.drawing
	if d == nil {
		return
	}
	tr := &s.comp.Tracks[d.track]
	p := s.point(tr, x, y)
	d.stroke.Append(p)
	if d.stroke.Continuous() {
		s.live.Sample(p)
	} else {
		s.live.Grain(tr, s.monitors[d.track], d.stroke, p)
	}
}

// PointerUp commits the stroke to the undo history and releases its sound.
func (s *Session) PointerUp() {
	s.erasing = -1
	d := s.drawing
	if d == nil {
		return
	}
	s.drawing = nil
	s.live.End()
	s.history = append(s.history, *d)
	s.edited()
}

// edited recompiles the pending next pass so edits made just before a wrap
// are heard on the following loop.
func (s *Session) edited() { s.transport.Reschedule() }

// Drawing returns the stroke being drawn, if any.
func (s *Session) Drawing() (track int, st *stroke.Stroke, ok bool) {
	if s.drawing == nil {
		return 0, nil, false
	}
	return s.drawing.track, s.drawing.stroke, true
}

// releaseScheduled fades out any scheduled voices of st.
func (s *Session) releaseScheduled(st *stroke.Stroke) {
	now := s.ctx.CurrentTime()
	for _, p := range s.transport.Passes() {
		p.ReleaseStroke(st, now)
	}
}

func (s *Session) forget(st *stroke.Stroke) {
	kept := s.history[:0]
	for _, e := range s.history {
		if e.stroke != st {
			kept = append(kept, e)
		}
	}
	s.history = kept
}

// Erase removes every stroke of track i with a point within
// stroke.EraseRadius of (x, y) and returns how many were removed.
func (s *Session) Erase(i int, x, y float64) int {
	tr, ok := s.track(i)
	if !ok {
		return 0
	}
	kept := tr.Strokes[:0]
	n := 0
	for _, st := range tr.Strokes {
		if st.Near(x, y, stroke.EraseRadius) {
			s.releaseScheduled(st)
			s.forget(st)
			n++
			continue
		}
		kept = append(kept, st)
	}
	tr.Strokes = kept
	if n > 0 {
		s.edited()
	}
	return n
}

// Undo removes the most recently committed stroke. It reports false when
// there is nothing to undo.
func (s *Session) Undo() bool {
	for len(s.history) > 0 {
		e := s.history[len(s.history)-1]
		s.history = s.history[:len(s.history)-1]
		tr := &s.comp.Tracks[e.track]
		for j, st := range tr.Strokes {
			if st == e.stroke {
				tr.Strokes = append(tr.Strokes[:j], tr.Strokes[j+1:]...)
				s.releaseScheduled(st)
				s.edited()
				return true
			}
		}
	}
	return false
}

// Clear empties every track and the undo history.
func (s *Session) Clear() {
	s.live.End()
	s.drawing = nil
	for i := range s.comp.Tracks {
		for _, st := range s.comp.Tracks[i].Strokes {
			s.releaseScheduled(st)
		}
		s.comp.Tracks[i].Strokes = nil
	}
	s.history = nil
	s.edited()
}

// CanUndo reports whether Undo would remove a stroke.
func (s *Session) CanUndo() bool { return len(s.history) > 0 }

func (s *Session) applyGain(i int) {
	g := s.comp.Tracks[i].Gain()
	now := s.ctx.CurrentTime()
	bus := s.monitors[i].Gain()
	bus.CancelScheduledValues(now)
	bus.SetTargetAtTime(g, now, MixTimeConstant)
	for _, p := range s.transport.Passes() {
		p.SetTrackGain(i, g, now, MixTimeConstant)
	}
}

// SetTrackWave sets the oscillator waveform of track i. Unknown names
// select sine.
func (s *Session) SetTrackWave(i int, wave string) {
	if tr, ok := s.track(i); ok {
		tr.Wave = graph.ParseWaveform(wave).String()
		s.edited()
	}
}

// SetTrackVolume sets the level of track i, clamped to [0, 1].
func (s *Session) SetTrackVolume(i int, v float64) {
	tr, ok := s.track(i)
	if !ok || math.IsNaN(v) {
		return
	}
	tr.Volume = math.Max(0, math.Min(1, v))
	s.applyGain(i)
}

func (s *Session) SetTrackMuted(i int, muted bool) {
	if tr, ok := s.track(i); ok {
		tr.Muted = muted
		s.applyGain(i)
	}
}

func (s *Session) SetTrackSnap(i int, snap bool) {
	if tr, ok := s.track(i); ok {
		tr.Snap = snap
		s.edited()
	}
}

// SetBPM sets the tempo of the next pass. Unusable values select the
// default tempo.
func (s *Session) SetBPM(bpm float64) {
	s.comp.Settings.BPM = pattern.SanitizeBPM(bpm)
	s.edited()
}

// SetBPMString parses user input such as "96".
func (s *Session) SetBPMString(v string) {
	s.comp.Settings.BPM = pattern.ParseBPM(v)
	s.edited()
}

func (s *Session) SetLoop(loop bool) {
	s.comp.Settings.Loop = loop
}

// SetQuantize turns scale quantization on or off.
func (s *Session) SetQuantize(on bool) {
	s.comp.Settings.Harmonize = on
	s.live.SetPitcher(s.pitcher())
	s.edited()
}

// SetScale selects the quantization scale; unknown names select the
// pentatonic scale.
func (s *Session) SetScale(name string) {
	s.comp.Settings.Scale = pitch.ParseScale(name)
	s.live.SetPitcher(s.pitcher())
	s.edited()
}

// Play starts the transport. It reports false when already playing or when
// nothing is drawn.
func (s *Session) Play() bool {
	s.Resume()
	return s.transport.Play()
}

// Stop stops the transport. It is safe to call at any time.
func (s *Session) Stop() {
	s.transport.Stop()
}

func (s *Session) Playing() bool { return s.transport.Playing() }

// Step advances the transport; call it once per displayed frame.
func (s *Session) Step() {
	s.transport.Step()
}

// Playhead returns the playhead x on a track canvas. ok is false when
// stopped.
func (s *Session) Playhead() (x float64, ok bool) {
	return s.transport.Playhead(s.cfg.width)
}

// Watch returns a channel receiving transport events.
func (s *Session) Watch() <-chan transport.Event {
	return s.transport.Watch()
}

// Snapshot returns the composition as a document.
func (s *Session) Snapshot() pattern.Document {
	return pattern.NewDocument(s.comp)
}

// QueuePattern loads doc at the next pass boundary while playing, or at once
// when stopped.
func (s *Session) QueuePattern(doc pattern.Document) {
	if !s.transport.Playing() {
		s.LoadPattern(doc)
		return
	}
	next := s.comp.Clone()
	doc.Apply(next)
	s.transport.Queue(next)
	debug.Log("session", "pattern queued for next pass")
}

// LoadPattern replaces the composition contents with doc immediately. A pass
// that is already sounding keeps playing what it was compiled from.
func (s *Session) LoadPattern(doc pattern.Document) {
	doc.Apply(s.comp)
	s.patternLoaded(s.comp)
	s.edited()
}

func (s *Session) patternLoaded(*pattern.Composition) {
	s.live.End()
	s.drawing = nil
	s.history = nil
	s.live.SetPitcher(s.pitcher())
	for i := range s.comp.Tracks {
		s.applyGain(i)
	}
}

// Export encodes the composition as a JSON document.
func (s *Session) Export() ([]byte, error) {
	return pattern.Export(s.comp)
}

// Import loads a JSON document. On error nothing changes.
func (s *Session) Import(data []byte) error {
	doc, err := pattern.Decode(data)
	if err != nil {
		return err
	}
	s.LoadPattern(doc)
	return nil
}

func (s *Session) renderOptions() RenderOptions {
	return RenderOptions{
		SampleRate: s.ctx.SampleRate(),
		Width:      s.cfg.width,
		Height:     s.cfg.height,
		MasterGain: s.cfg.masterGain,
		Effects:    s.cfg.effects,
	}
}

// Render renders one pass of the composition offline.
func (s *Session) Render() ([]float32, playback.Report, error) {
	return RenderSamples(s.comp, s.renderOptions())
}

// RenderWAV renders one pass of the composition as 16-bit PCM WAV bytes.
func (s *Session) RenderWAV() ([]byte, error) {
	return RenderWAV(s.comp, s.renderOptions())
}

// Close stops playback and releases the audio device.
func (s *Session) Close() error {
	s.transport.Stop()
	s.live.End()
	if s.device == nil {
		return nil
	}
	err := s.device.Close()
	s.device = nil
	return err
}
