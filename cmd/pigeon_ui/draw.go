package main

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/cbegin/pigeon-go/internal/stroke"
)

var (
	bgColor     = color.RGBA{192, 192, 192, 255}
	borderColor = color.RGBA{128, 128, 128, 255}
	buttonColor = color.RGBA{192, 192, 192, 255}
	activeColor = color.RGBA{0, 0, 128, 255}
	errorColor  = color.RGBA{160, 0, 0, 255}

	// 3D bevel colors for old-school embossed look.
	bevelLight  = color.RGBA{255, 255, 255, 255}
	bevelDarker = color.RGBA{64, 64, 64, 255}

	sunkenBgColor = color.RGBA{24, 24, 32, 255}
	gridColor     = color.RGBA{40, 40, 56, 255}
	beatColor     = color.RGBA{60, 60, 84, 255}
	playheadColor = color.RGBA{255, 80, 80, 255}
	scopeColor    = color.RGBA{0, 255, 128, 255}
)

var brushColors = map[stroke.Brush]color.RGBA{
	stroke.BrushStandard:    {125, 249, 255, 255},
	stroke.BrushVariable:    {255, 176, 0, 255},
	stroke.BrushCalligraphy: {255, 255, 255, 255},
	stroke.BrushParticles:   {255, 120, 200, 255},
	stroke.BrushFractal:     {140, 255, 120, 255},
	stroke.BrushChord:       {180, 140, 255, 255},
	stroke.BrushBristle:     {230, 200, 150, 255},
}

func (g *game) drawTrack(screen *ebiten.Image, i int) {
	r := g.trackRect(i)
	tr := g.session.Composition().Tracks[i]
	fillRect(screen, r, sunkenBgColor)
	for col := 1; col < stroke.GridColumns; col++ {
		x := float64(r.Min.X) + float64(col)*float64(r.Dx())/stroke.GridColumns
		c := gridColor
		if col%4 == 0 {
			c = beatColor
		}
		ebitenutil.DrawLine(screen, x, float64(r.Min.Y), x, float64(r.Max.Y), c)
	}

	w, h := g.session.CanvasSize()
	sx := float64(r.Dx()) / w
	sy := float64(r.Dy()) / h
	for _, st := range tr.Strokes {
		c := brushColors[st.Brush]
		if tr.Silent() {
			c = color.RGBA{c.R / 3, c.G / 3, c.B / 3, 255}
		}
		drawStroke(screen, st, float64(r.Min.X), float64(r.Min.Y), sx, sy, c)
	}
	if x, ok := g.session.Playhead(); ok {
		px := float64(r.Min.X) + x*sx
		ebitenutil.DrawLine(screen, px, float64(r.Min.Y), px, float64(r.Max.Y), playheadColor)
	}
	drawSunkenBorder(screen, r)

	g.drawText(screen, fmt.Sprintf("Track %d", i+1), sideX, g.volumeRect(i).Max.Y+6)
	g.drawVolume(screen, g.volumeRect(i), tr.Volume)
}

// drawStroke renders st scaled from canvas space into the display rectangle
// at (ox, oy).
func drawStroke(screen *ebiten.Image, st *stroke.Stroke, ox, oy, sx, sy float64, c color.Color) {
	at := func(p stroke.Point) (float64, float64) {
		return ox + (p.X+p.JitterX)*sx, oy + (p.Y+p.JitterY)*sy
	}
	size := st.Thickness * sy
	if size < 1 {
		size = 1
	}
	if !st.Continuous() {
		for _, p := range st.Points {
			x, y := at(p)
			ebitenutil.DrawRect(screen, x-size/2, y-size/2, size, size, c)
		}
		return
	}
	offsets := []float64{0}
	switch st.Brush {
	case stroke.BrushBristle:
		offsets = []float64{-size / 3, 0, size / 3}
	case stroke.BrushChord:
		offsets = []float64{-size / 4, size / 4}
	}
	for j := 1; j < len(st.Points); j++ {
		x0, y0 := at(st.Points[j-1])
		x1, y1 := at(st.Points[j])
		for _, o := range offsets {
			ebitenutil.DrawLine(screen, x0, y0+o, x1, y1+o, c)
		}
		if st.Brush == stroke.BrushCalligraphy {
			ebitenutil.DrawLine(screen, x0+size/3, y0-size/3, x1+size/3, y1-size/3, c)
		}
	}
	if len(st.Points) == 1 {
		x, y := at(st.Points[0])
		ebitenutil.DrawRect(screen, x-size/2, y-size/2, size, size, c)
	}
}

func (g *game) drawVolume(screen *ebiten.Image, rect image.Rectangle, v float64) {
	fillRect(screen, rect, sunkenBgColor)
	fill := rect
	fill.Max.X = rect.Min.X + int(float64(rect.Dx())*clamp(v, 0, 1))
	fillRect(screen, fill, activeColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawScope(screen *ebiten.Image, rect image.Rectangle) {
	fillRect(screen, rect, color.RGBA{0, 0, 0, 255})
	samples := g.scope.Snapshot(rect.Dx())
	mid := float64(rect.Min.Y) + float64(rect.Dy())/2
	half := float64(rect.Dy())/2 - 2
	for x := 1; x < len(samples); x++ {
		y0 := mid - clamp(float64(samples[x-1]), -1, 1)*half
		y1 := mid - clamp(float64(samples[x]), -1, 1)*half
		ebitenutil.DrawLine(screen, float64(rect.Min.X+x-1), y0, float64(rect.Min.X+x), y1, scopeColor)
	}
	drawSunkenBorder(screen, rect)
}

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	bg := sunkenBgColor
	if g.statusErr {
		bg = errorColor
	}
	fillRect(screen, rect, bg)
	drawSunkenBorder(screen, rect)
	g.drawText(screen, g.status, rect.Min.X+8, rect.Min.Y+(rect.Dy()-lineH)/2)
}

func (g *game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string, fill color.Color) {
	fillRect(screen, rect, fill)
	drawBorder(screen, rect)
	labelW := len([]rune(label)) * charW
	x := rect.Min.X + (rect.Dx()-labelW)/2
	y := rect.Min.Y + (rect.Dy()-lineH)/2
	g.drawText(screen, label, x, y)
}

func fillRect(screen *ebiten.Image, rect image.Rectangle, c color.Color) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), c)
}

// drawBorder draws a raised 3D bevel (highlight top/left, shadow bottom/right).
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws a sunken 3D bevel (shadow top/left, highlight bottom/right).
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		w := max(1, len([]rune(msg))*7)
		img = ebiten.NewImage(w, 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 1000 {
			g.textCache = make(map[string]*ebiten.Image, 256)
		}
		g.textCache[msg] = img
	}
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+1), float64(y+1))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}
