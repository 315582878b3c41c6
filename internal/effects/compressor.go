package effects

import "math"

// Compressor is a stereo-linked feed-forward compressor with a soft knee.
type Compressor struct {
	thresholdDB float64
	ratio       float64
	kneeDB      float64
	attack      float64 // coefficient
	release     float64 // coefficient
	makeup      float64
	env         float64
}

// NewCompressor creates a compressor effect.
// thresholdDB: threshold in dB (e.g., -24)
// ratio: compression ratio (e.g., 12 for 12:1)
// attackMs, releaseMs: envelope follower times
// makeupDB: makeup gain in dB
// kneeDB: width of the soft knee in dB (0 = hard knee)
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB, kneeDB float64) *Compressor {
	sr := float64(sampleRate)
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		thresholdDB: thresholdDB,
		ratio:       ratio,
		kneeDB:      math.Max(0, kneeDB),
		attack:      timeCoeff(attackMs, sr),
		release:     timeCoeff(releaseMs, sr),
		makeup:      math.Pow(10, makeupDB/20),
	}
}

func timeCoeff(ms, sr float64) float64 {
	if ms <= 0 {
		return 1
	}
	return 1.0 - math.Exp(-1.0/(ms*sr/1000.0))
}

func (c *Compressor) Process(l, r float64) (float64, float64) {
	level := math.Max(math.Abs(l), math.Abs(r))
	if level > c.env {
		c.env += c.attack * (level - c.env)
	} else {
		c.env += c.release * (level - c.env)
	}
	g := c.gain(c.env) * c.makeup
	return l * g, r * g
}

// gain returns the linear gain reduction for an envelope level.
func (c *Compressor) gain(env float64) float64 {
	if env <= 1e-9 {
		return 1
	}
	in := 20 * math.Log10(env)
	over := in - c.thresholdDB
	var reduction float64
	switch {
	case c.kneeDB > 0 && math.Abs(over) <= c.kneeDB/2:
		x := over + c.kneeDB/2
		reduction = (1/c.ratio - 1) * x * x / (2 * c.kneeDB)
	case over > 0:
		reduction = (1/c.ratio - 1) * over
	default:
		return 1
	}
	return math.Pow(10, reduction/20)
}

func (c *Compressor) Reset() {
	c.env = 0
}
