package graph

import (
	"math"

	"github.com/cbegin/pigeon-go/internal/debug"
)

// Sink is anything a node can be connected to: a Gain, Filter, Shaper or a
// Param (for modulation).
type Sink interface {
	inputs() *inputSet
}

// Node is a mono signal producer with a single destination.
type Node interface {
	// Connect routes the node's output to dst, replacing any previous
	// destination.
	Connect(dst Sink)
	// Disconnect detaches the node immediately. Safe to call repeatedly.
	Disconnect()
	// DisconnectAt detaches the node at time t. The earliest request wins.
	DisconnectAt(t float64)
	core() *nodeBase
}

type processor interface {
	// process renders one frame. It is called at most once per frame.
	process(frame int64) float64
	// ended reports whether the node will output only silence after frame.
	ended(frame int64) bool
}

type nodeBase struct {
	ctx      *Context
	id       int
	kind     string
	self     processor
	dest     *inputSet
	cutFrame int64
	memoAt   int64
	memo     float64
}

func (n *nodeBase) init(ctx *Context, kind string, self processor) {
	n.ctx = ctx
	n.id = ctx.newID()
	n.kind = kind
	n.self = self
	n.cutFrame = -1
	n.memoAt = -1
}

func (n *nodeBase) core() *nodeBase { return n }

func (n *nodeBase) pull(frame int64) float64 {
	if n.memoAt == frame {
		return n.memo
	}
	n.memo = n.self.process(frame)
	n.memoAt = frame
	return n.memo
}

func (n *nodeBase) Connect(dst Sink) {
	if dst == nil {
		n.Disconnect()
		return
	}
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	set := dst.inputs()
	n.dest = set
	n.cutFrame = -1
	set.add(n)
}

func (n *nodeBase) Disconnect() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if n.dest != nil {
		debug.Log("graph", "%s#%d disconnected", n.kind, n.id)
	}
	n.dest = nil
	n.cutFrame = -1
}

func (n *nodeBase) DisconnectAt(t float64) {
	t = SanitizeTime(t)
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if n.dest == nil {
		return
	}
	f := n.ctx.frameAt(t)
	if f <= n.ctx.frame {
		n.dest = nil
		n.cutFrame = -1
		return
	}
	if n.cutFrame < 0 || f < n.cutFrame {
		n.cutFrame = f
	}
}

// Connected reports whether the node currently has a destination.
func (n *nodeBase) Connected() bool {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.dest != nil
}

// inputSet is the fan-in of a sink. Links are dropped lazily while summing:
// a node that moved elsewhere, was cut, or has ended no longer counts.
type inputSet struct {
	nodes []*nodeBase
	seen  bool
}

func (s *inputSet) add(n *nodeBase) {
	s.seen = true
	for _, m := range s.nodes {
		if m == n {
			return
		}
	}
	s.nodes = append(s.nodes, n)
}

func (s *inputSet) sum(frame int64) float64 {
	var acc float64
	live := s.nodes[:0]
	for _, n := range s.nodes {
		if n.dest != s {
			continue
		}
		if n.cutFrame >= 0 && frame >= n.cutFrame {
			n.dest = nil
			n.cutFrame = -1
			continue
		}
		acc += n.pull(frame)
		if n.self.ended(frame) {
			continue
		}
		live = append(live, n)
	}
	clear(s.nodes[len(live):])
	s.nodes = live
	return acc
}

// drained reports whether the set had inputs and all of them are gone.
func (s *inputSet) drained() bool {
	return s.seen && len(s.nodes) == 0
}

// Gain multiplies the sum of its inputs by an automatable gain.
// A bus never ends; a plain gain ends once all of its inputs have ended.
type Gain struct {
	nodeBase
	in   inputSet
	gain *Param
	bus  bool
}

// NewGain creates a transient gain node with the given initial gain.
func (c *Context) NewGain(initial float64) *Gain {
	return newGain(c, initial, false)
}

// NewBus creates a gain node that stays alive without inputs, suitable as a
// long-lived mix point.
func (c *Context) NewBus(initial float64) *Gain {
	return newGain(c, initial, true)
}

func newGain(c *Context, initial float64, bus bool) *Gain {
	if !finite(initial) {
		initial = 0
	}
	g := &Gain{bus: bus}
	kind := "gain"
	if bus {
		kind = "bus"
	}
	g.init(c, kind, g)
	g.gain = newParam(c, kind+".gain", initial, math.Inf(-1), math.Inf(1))
	return g
}

// Gain returns the gain parameter.
func (g *Gain) Gain() *Param { return g.gain }

func (g *Gain) inputs() *inputSet { return &g.in }

func (g *Gain) process(frame int64) float64 {
	x := g.in.sum(frame)
	return x * g.gain.valueAt(frame)
}

func (g *Gain) ended(int64) bool {
	return !g.bus && g.in.drained()
}

// Inputs returns the number of live inputs as of the last rendered frame.
func (g *Gain) Inputs() int {
	g.ctx.mu.Lock()
	defer g.ctx.mu.Unlock()
	n := 0
	for _, in := range g.in.nodes {
		if in.dest == &g.in {
			n++
		}
	}
	return n
}
