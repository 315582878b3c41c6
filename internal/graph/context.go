// Package graph is a small pull-based audio node graph with sample-accurate
// parameter automation. The same per-frame code path serves a realtime device
// (Process) and offline rendering (Render), so a schedule renders to identical
// samples either way.
package graph

import (
	"math"
	"sync"

	intfx "github.com/cbegin/pigeon-go/internal/effects"
)

// DefaultMasterGain is the gain of the destination bus.
const DefaultMasterGain = 0.5

// Option configures a Context.
type Option func(*Context)

// WithMasterGain sets the initial destination bus gain.
func WithMasterGain(g float64) Option {
	return func(c *Context) {
		if !math.IsNaN(g) && !math.IsInf(g, 0) && g >= 0 {
			c.masterGain = g
		}
	}
}

// WithEffects installs a stereo chain after the destination bus.
func WithEffects(chain *intfx.Chain) Option {
	return func(c *Context) {
		c.effects = chain
	}
}

// WithSampleTap installs a callback invoked with each rendered buffer.
// The callback runs with the context locked; keep work brief.
func WithSampleTap(tap func([]float32)) Option {
	return func(c *Context) {
		c.tap = tap
	}
}

// Context owns the frame clock and the destination bus.
type Context struct {
	mu         sync.Mutex
	sampleRate int
	frame      int64
	masterGain float64
	dest       *Gain
	effects    *intfx.Chain
	tap        func([]float32)
	noise      map[NoiseColor][]float64
	nextID     int
}

// NewContext creates a context rendering at sampleRate frames per second.
func NewContext(sampleRate int, opts ...Option) *Context {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	c := &Context{
		sampleRate: sampleRate,
		masterGain: DefaultMasterGain,
		noise:      make(map[NoiseColor][]float64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dest = newGain(c, c.masterGain, true)
	c.dest.kind = "destination"
	return c
}

// SampleRate returns frames per second.
func (c *Context) SampleRate() int { return c.sampleRate }

// CurrentTime returns the time in seconds of the next frame to be rendered.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

// Frame returns the index of the next frame to be rendered.
func (c *Context) Frame() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Destination returns the master bus every audible chain ends in.
func (c *Context) Destination() *Gain { return c.dest }

// Process renders interleaved stereo frames into dst.
func (c *Context) Process(dst []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render(dst)
}

// Render renders the next frames offline and returns them interleaved.
func (c *Context) Render(frames int) []float32 {
	if frames <= 0 {
		return nil
	}
	out := make([]float32, frames*2)
	c.Process(out)
	return out
}

func (c *Context) render(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		v := c.dest.pull(c.frame)
		l, r := v, v
		if c.effects != nil {
			l, r = c.effects.Process(l, r)
		}
		dst[i] = float32(l)
		dst[i+1] = float32(r)
		c.frame++
	}
	if c.tap != nil {
		c.tap(dst)
	}
}

func (c *Context) now() float64 {
	return float64(c.frame) / float64(c.sampleRate)
}

func (c *Context) timeOf(frame int64) float64 {
	return float64(frame) / float64(c.sampleRate)
}

// frameAt converts a sanitized time to the first frame at or after it.
func (c *Context) frameAt(t float64) int64 {
	if math.IsInf(t, 1) {
		return math.MaxInt64
	}
	f := math.Ceil(t*float64(c.sampleRate) - 1e-6)
	if f >= math.MaxInt64/2 {
		return math.MaxInt64
	}
	return int64(f)
}

func (c *Context) newID() int {
	c.nextID++
	return c.nextID
}

// SanitizeTime maps a requested schedule time onto the timeline: NaN and
// negative times become 0, +Inf is kept and means "never".
func SanitizeTime(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	return t
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
