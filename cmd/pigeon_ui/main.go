package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"github.com/Southclaws/fault/fmsg"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/mitchellh/go-homedir"

	"github.com/cbegin/pigeon-go"
	"github.com/cbegin/pigeon-go/internal/config"
	"github.com/cbegin/pigeon-go/internal/debug"
	"github.com/cbegin/pigeon-go/internal/graph"
	"github.com/cbegin/pigeon-go/internal/pattern"
	"github.com/cbegin/pigeon-go/internal/pitch"
	"github.com/cbegin/pigeon-go/internal/stroke"
	"github.com/cbegin/pigeon-go/internal/transport"
)

const (
	windowW = 1000

	textScale = 1
	charW     = 7 * textScale
	lineH     = 14 * textScale

	toolbarY = 8
	buttonH  = 24
	canvasX  = 170
	canvasW  = 700
	canvasH  = 100
	trackGap = 14
	tracksY  = toolbarY + 2*(buttonH+6) + 8
	sideX    = 8
	sideW    = canvasX - sideX - 12
	scopeH   = 60
)

var (
	configPath = flag.String("config", "", "config file (default ~/.config/pigeon/config.yaml)")
	patternArg = flag.String("pattern", "", "pattern JSON used by Import/Export (default ~/pigeon-pattern.json)")
	wavArg     = flag.String("wav", "~/pigeon.wav", "render target")
)

var waves = []string{"sine", "square", "sawtooth", "triangle"}

type control struct {
	rect   image.Rectangle
	label  string
	active bool
	action func()
}

type game struct {
	session *pigeon.Session
	events  <-chan transport.Event
	scope   *scope
	bank    *pattern.Bank

	bankIdx     int
	activeTrack int
	dragVolume  int
	lastX       int
	lastY       int

	patternPath string
	wavPath     string

	status    string
	statusErr bool

	textCache map[string]*ebiten.Image
	viewH     int
}

func newGame(cfg *config.Config) (*game, error) {
	sc := newScope()
	s, err := pigeon.NewSession(cfg.SampleRate, pigeon.WithConfig(cfg), pigeon.WithSampleTap(sc.Tap))
	if err != nil {
		return nil, err
	}
	bankPath, err := cfg.ResolveBankPath()
	if err != nil {
		return nil, err
	}
	bank, notice, err := pattern.OpenBank(bankPath)
	if err != nil {
		return nil, err
	}
	patternPath, err := homedir.Expand(*patternArg)
	if err != nil {
		return nil, err
	}
	if patternPath == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		patternPath = filepath.Join(home, "pigeon-pattern.json")
	}
	g := &game{
		session:     s,
		events:      s.Watch(),
		scope:       sc,
		bank:        bank,
		activeTrack: -1,
		dragVolume:  -1,
		patternPath: patternPath,
		wavPath:     *wavArg,
		status:      "Ready",
		textCache:   make(map[string]*ebiten.Image, 256),
	}
	if notice != nil {
		g.setError(notice.String())
	}
	g.viewH = g.windowH()
	return g, nil
}

func (g *game) tracks() int { return len(g.session.Composition().Tracks) }

func (g *game) windowH() int {
	return tracksY + g.tracks()*(canvasH+trackGap) + scopeH + 2*buttonH + 40
}

func (g *game) Update() error {
	g.session.Step()
	g.pollEvents()
	g.handleKeys()
	g.handleMouse()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	for _, c := range g.controls() {
		fill := buttonColor
		if c.active {
			fill = activeColor
		}
		g.drawButton(screen, c.rect, c.label, fill)
	}
	for i := 0; i < g.tracks(); i++ {
		g.drawTrack(screen, i)
	}
	g.drawScope(screen, g.scopeRect())
	g.drawStatus(screen, g.statusRect())
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	return windowW, g.viewH
}

func (g *game) Close() { _ = g.session.Close() }

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) report(err error) {
	if issue := fmsg.GetIssue(err); issue != "" {
		g.setError(issue)
		return
	}
	g.setError(err.Error())
}

func (g *game) pollEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case transport.EventLoopCompleted:
				g.setStatus(fmt.Sprintf("Loop %d", ev.Cycle))
			case transport.EventPatternSwapped:
				g.setStatus("Pattern loaded")
			case transport.EventPlaybackEnded:
				g.setStatus("Playback ended")
			}
		default:
			return
		}
	}
}

func (g *game) trackRect(i int) image.Rectangle {
	y := tracksY + i*(canvasH+trackGap)
	return image.Rect(canvasX, y, canvasX+canvasW, y+canvasH)
}

func (g *game) scopeRect() image.Rectangle {
	y := tracksY + g.tracks()*(canvasH+trackGap)
	return image.Rect(canvasX, y, canvasX+canvasW, y+scopeH)
}

func (g *game) statusRect() image.Rectangle {
	y := g.scopeRect().Max.Y + buttonH + 16
	return image.Rect(sideX, y, windowW-sideX, y+buttonH)
}

// canvasPoint maps screen coordinates onto the backing canvas of track i.
func (g *game) canvasPoint(i, mx, my int) (float64, float64) {
	r := g.trackRect(i)
	w, h := g.session.CanvasSize()
	t := stroke.ForDisplay(float64(r.Min.X), float64(r.Min.Y), w, h, float64(r.Dx()), float64(r.Dy()))
	x, y := t.Apply(float64(mx), float64(my))
	return clamp(x, 0, w), clamp(y, 0, h)
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		for _, c := range g.controls() {
			if pointInRect(mx, my, c.rect) {
				c.action()
				return
			}
		}
		for i := 0; i < g.tracks(); i++ {
			if pointInRect(mx, my, g.volumeRect(i)) {
				g.dragVolume = i
				g.updateVolumeFromMouse(i, mx)
				return
			}
			if pointInRect(mx, my, g.trackRect(i)) {
				g.activeTrack = i
				g.lastX, g.lastY = mx, my
				x, y := g.canvasPoint(i, mx, my)
				g.session.PointerDown(i, x, y)
				return
			}
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		if g.activeTrack >= 0 {
			g.session.PointerUp()
			g.activeTrack = -1
		}
		g.dragVolume = -1
		return
	}
	if g.dragVolume >= 0 {
		g.updateVolumeFromMouse(g.dragVolume, mx)
	}
	if g.activeTrack >= 0 && (mx != g.lastX || my != g.lastY) {
		g.lastX, g.lastY = mx, my
		x, y := g.canvasPoint(g.activeTrack, mx, my)
		g.session.PointerMove(x, y)
	}
}

func (g *game) handleKeys() {
	shift := ebiten.IsKeyPressed(ebiten.KeyShift)
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.togglePlay()
	case inpututil.IsKeyJustPressed(ebiten.KeyZ):
		g.undo()
	case inpututil.IsKeyJustPressed(ebiten.KeyB):
		g.cycleBrush()
	case inpututil.IsKeyJustPressed(ebiten.KeyE):
		g.toggleTool()
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		g.nudgeBPM(5)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		g.nudgeBPM(-5)
	case inpututil.IsKeyJustPressed(ebiten.KeyDelete):
		g.clear()
	}
	digits := []ebiten.Key{
		ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4,
		ebiten.KeyDigit5, ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8,
	}
	for slot, k := range digits {
		if inpututil.IsKeyJustPressed(k) {
			g.slot(slot, shift)
		}
	}
}

// controls lays out every clickable button for the current state.
func (g *game) controls() []control {
	s := g.session
	comp := s.Composition()
	brush, _, chord := s.Brush()
	var out []control
	x, y := sideX, toolbarY
	add := func(label string, active bool, action func()) {
		w := len([]rune(label))*charW + 16
		if x+w > windowW-sideX {
			x, y = sideX, y+buttonH+6
		}
		out = append(out, control{rect: image.Rect(x, y, x+w, y+buttonH), label: label, active: active, action: action})
		x += w + 6
	}

	playLabel := "Play"
	if s.Playing() {
		playLabel = "Stop"
	}
	add(playLabel, s.Playing(), g.togglePlay)
	add("Brush: "+string(brush), false, g.cycleBrush)
	add("Chord: "+string(chord), brush == stroke.BrushChord, g.cycleChord)
	tool := "Draw"
	if s.Tool() == pigeon.ToolErase {
		tool = "Erase"
	}
	add("Tool: "+tool, s.Tool() == pigeon.ToolErase, g.toggleTool)
	add("Undo", false, g.undo)
	add("Clear", false, g.clear)
	add("-", false, func() { g.nudgeBPM(-5) })
	add(fmt.Sprintf("%g BPM", comp.Settings.BPM), false, func() {})
	add("+", false, func() { g.nudgeBPM(5) })
	add("Scale: "+string(comp.Settings.Scale), false, g.cycleScale)
	add("Quantize", comp.Settings.Harmonize, func() { s.SetQuantize(!comp.Settings.Harmonize) })
	add("Loop", comp.Settings.Loop, func() { s.SetLoop(!comp.Settings.Loop) })
	add("Import", false, g.importPattern)
	add("Export", false, g.exportPattern)
	add("Render", false, g.renderWAV)

	for i := range comp.Tracks {
		tr := comp.Tracks[i]
		r := g.trackRect(i)
		bx := sideX
		by := r.Min.Y
		side := func(label string, active bool, action func()) {
			w := len([]rune(label))*charW + 12
			out = append(out, control{rect: image.Rect(bx, by, bx+w, by+buttonH), label: label, active: active, action: action})
			bx += w + 4
		}
		side("M", tr.Muted, func() { s.SetTrackMuted(i, !tr.Muted) })
		side("S", tr.Snap, func() { s.SetTrackSnap(i, !tr.Snap) })
		side(tr.Wave, false, func() { s.SetTrackWave(i, nextWave(tr.Wave)) })
	}

	by := g.scopeRect().Max.Y + 8
	bx := sideX
	bankName := pattern.BankNames[g.bankIdx]
	out = append(out, control{rect: image.Rect(bx, by, bx+70, by+buttonH), label: "Bank " + bankName, action: g.cycleBank})
	bx = canvasX
	filled := g.bank.Filled(bankName)
	for slot := 0; slot < pattern.SlotsPerBank; slot++ {
		slot := slot
		w := 60
		out = append(out, control{
			rect:   image.Rect(bx, by, bx+w, by+buttonH),
			label:  fmt.Sprintf("%s%d", bankName, slot+1),
			active: filled[slot],
			action: func() { g.slot(slot, ebiten.IsKeyPressed(ebiten.KeyShift)) },
		})
		bx += w + 6
	}
	return out
}

func (g *game) volumeRect(i int) image.Rectangle {
	r := g.trackRect(i)
	y := r.Min.Y + buttonH + 12
	return image.Rect(sideX, y, sideX+sideW, y+14)
}

func (g *game) updateVolumeFromMouse(i, mx int) {
	r := g.volumeRect(i)
	g.session.SetTrackVolume(i, clamp(float64(mx-r.Min.X)/float64(r.Dx()), 0, 1))
}

func (g *game) togglePlay() {
	if g.session.Playing() {
		g.session.Stop()
		g.setStatus("Stopped")
		return
	}
	if !g.session.Play() {
		g.setError("Nothing to play: draw something first")
		return
	}
	g.setStatus("Playing")
}

func (g *game) undo() {
	if !g.session.Undo() {
		g.setStatus("Nothing to undo")
	}
}

func (g *game) clear() {
	g.session.Clear()
	g.setStatus("Cleared")
}

func (g *game) cycleBrush() {
	b, th, ch := g.session.Brush()
	all := stroke.Brushes()
	g.session.SetBrush(all[(indexOf(all, b)+1)%len(all)], th, ch)
}

func (g *game) cycleChord() {
	b, th, ch := g.session.Brush()
	all := stroke.Chords()
	g.session.SetBrush(b, th, all[(indexOf(all, ch)+1)%len(all)])
}

func (g *game) cycleScale() {
	all := pitch.Scales()
	cur := g.session.Composition().Settings.Scale
	g.session.SetScale(string(all[(indexOf(all, cur)+1)%len(all)]))
}

func (g *game) cycleBank() {
	g.bankIdx = (g.bankIdx + 1) % len(pattern.BankNames)
}

func (g *game) toggleTool() {
	if g.session.Tool() == pigeon.ToolErase {
		g.session.SetTool(pigeon.ToolDraw)
		return
	}
	g.session.SetTool(pigeon.ToolErase)
}

func (g *game) nudgeBPM(d float64) {
	bpm := g.session.Composition().Settings.BPM + d
	if bpm < 20 {
		bpm = 20
	}
	g.session.SetBPM(bpm)
}

// slot loads a bank slot, or stores the current pattern into it when save
// is set.
func (g *game) slot(slot int, save bool) {
	name := pattern.BankNames[g.bankIdx]
	if save {
		if err := g.bank.Save(name, slot, g.session.Snapshot()); err != nil {
			g.report(err)
			return
		}
		g.setStatus(fmt.Sprintf("Saved %s%d", name, slot+1))
		return
	}
	doc, err := g.bank.Load(name, slot)
	if err != nil {
		g.report(err)
		return
	}
	g.session.QueuePattern(doc)
	if g.session.Playing() {
		g.setStatus(fmt.Sprintf("%s%d queued", name, slot+1))
		return
	}
	g.setStatus(fmt.Sprintf("Loaded %s%d", name, slot+1))
}

func (g *game) importPattern() {
	data, err := os.ReadFile(g.patternPath)
	if err != nil {
		g.report(err)
		return
	}
	if err := g.session.Import(data); err != nil {
		g.report(err)
		return
	}
	g.setStatus("Imported " + g.patternPath)
}

func (g *game) exportPattern() {
	data, err := g.session.Export()
	if err != nil {
		g.report(err)
		return
	}
	if err := os.WriteFile(g.patternPath, data, 0o644); err != nil {
		g.report(err)
		return
	}
	g.setStatus("Exported " + g.patternPath)
}

func (g *game) renderWAV() {
	samples, rep, err := g.session.Render()
	if err != nil {
		g.report(err)
		return
	}
	pigeon.ClampSamples(samples)
	if err := pigeon.WriteWAV(g.wavPath, samples, g.session.Context().SampleRate()); err != nil {
		g.report(err)
		return
	}
	g.setStatus(fmt.Sprintf("Rendered %d strokes to %s", rep.Scheduled, g.wavPath))
}

func nextWave(cur string) string {
	name := graph.ParseWaveform(cur).String()
	return waves[(indexOf(waves, name)+1)%len(waves)]
}

func indexOf[T comparable](all []T, v T) int {
	for i, x := range all {
		if x == v {
			return i
		}
	}
	return -1
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadFile(*configPath)
	}
	return config.Load()
}

func main() {
	flag.Parse()
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logPath, err := cfg.ResolveDebugLog()
	if err != nil {
		log.Fatal(err)
	}
	if logPath != "" {
		if err := debug.Enable(logPath); err != nil {
			log.Fatal(err)
		}
		defer debug.Disable()
	}

	g, err := newGame(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	ebiten.SetWindowSize(windowW, g.viewH)
	ebiten.SetWindowTitle("pigeon")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
