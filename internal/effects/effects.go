package effects

import (
	"fmt"
	"strconv"
	"strings"
)

// Effector processes one stereo frame of the master bus.
type Effector interface {
	Process(l, r float64) (float64, float64)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float64) (float64, float64) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int {
	return len(c.effects)
}

// DefaultDirectives is the master chain used when nothing is configured: a
// compressor tuned like a browser dynamics compressor.
var DefaultDirectives = []string{"comp -24,12,3,250,0,30"}

// Build parses directives of the form "type p1,p2,..." and returns the
// resulting chain. Supported types: comp, delay, reverb, eq.
// Missing parameters take their defaults.
func Build(directives []string, sampleRate int) (*Chain, error) {
	chain := NewChain()
	for _, raw := range directives {
		eff, err := Parse(raw, sampleRate)
		if err != nil {
			return nil, err
		}
		if eff != nil {
			chain.Add(eff)
		}
	}
	return chain, nil
}

// Parse builds a single effect from a directive. Blank directives yield nil.
func Parse(directive string, sampleRate int) (Effector, error) {
	raw := strings.TrimSpace(directive)
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.SplitN(raw, " ", 2)
	kind := strings.ToLower(strings.TrimSpace(parts[0]))
	var params []float64
	if len(parts) > 1 {
		for _, p := range strings.Split(parts[1], ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, fmt.Errorf("effect %q: bad parameter %q: %w", kind, p, err)
			}
			params = append(params, v)
		}
	}
	param := func(idx int, def float64) float64 {
		if idx < len(params) {
			return params[idx]
		}
		return def
	}
	switch kind {
	case "comp", "compressor":
		return NewCompressor(sampleRate,
			param(0, -24), // threshold dB
			param(1, 12),  // ratio
			param(2, 3),   // attack ms
			param(3, 250), // release ms
			param(4, 0),   // makeup dB
			param(5, 30),  // knee dB
		), nil
	case "delay":
		return NewDelay(sampleRate,
			param(0, 250), // delay ms
			param(1, 0.4), // feedback
			param(2, 0.5), // spread
			param(3, 0.3), // wet
			param(4, 0.3), // damp
		), nil
	case "reverb":
		return NewReverb(sampleRate,
			param(0, 0.5),  // room size
			param(1, 0.7),  // feedback
			param(2, 0.25), // wet
		), nil
	case "eq":
		eq := NewEQ5Band(sampleRate)
		for band := 0; band < 5; band++ {
			eq.SetGain(band, param(band, 1))
		}
		return eq, nil
	}
	return nil, fmt.Errorf("unknown effect %q", kind)
}
