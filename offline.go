package pigeon

import (
	"encoding/binary"
	"errors"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mitchellh/go-homedir"
	"github.com/viterin/vek/vek32"

	intfx "github.com/cbegin/pigeon-go/internal/effects"
	"github.com/cbegin/pigeon-go/internal/graph"
	"github.com/cbegin/pigeon-go/internal/pattern"
	"github.com/cbegin/pigeon-go/internal/playback"
)

// RenderOptions describe the offline target. Zero fields take the defaults
// of a live session.
type RenderOptions struct {
	SampleRate int
	Width      float64
	Height     float64
	MasterGain float64
	// Effects are master chain directives; nil means the default chain and
	// an empty slice means none.
	Effects []string
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if !(o.Width > 0) {
		o.Width = DefaultCanvasWidth
	}
	if !(o.Height > 0) {
		o.Height = DefaultCanvasHeight
	}
	if !(o.MasterGain >= 0) || math.IsInf(o.MasterGain, 0) {
		o.MasterGain = graph.DefaultMasterGain
	}
	if o.Effects == nil {
		o.Effects = intfx.DefaultDirectives
	}
	return o
}

// RenderSamples renders one pass of comp, starting at time zero, into
// interleaved stereo float32 samples. The pass is compiled exactly as the
// live transport would compile it.
func RenderSamples(comp *pattern.Composition, opts RenderOptions) ([]float32, playback.Report, error) {
	opts = opts.withDefaults()
	chain, err := intfx.Build(opts.Effects, opts.SampleRate)
	if err != nil {
		return nil, playback.Report{}, err
	}
	ctx := graph.NewContext(opts.SampleRate, graph.WithMasterGain(opts.MasterGain), graph.WithEffects(chain))
	c := playback.New(ctx, playback.Options{Width: opts.Width, Height: opts.Height})
	pass := c.Compile(comp, 0, ctx.Destination())
	frames := int(float64(opts.SampleRate) * pass.Duration)
	return ctx.Render(frames), pass.Report, nil
}

// RenderWAV renders comp and packs it as 16-bit PCM WAV.
func RenderWAV(comp *pattern.Composition, opts RenderOptions) ([]byte, error) {
	opts = opts.withDefaults()
	samples, _, err := RenderSamples(comp, opts)
	if err != nil {
		return nil, err
	}
	ClampSamples(samples)
	return EncodeWAVPCM16LE(samples, opts.SampleRate, 2), nil
}

// ClampSamples limits samples to [-1, 1] in place. NaN becomes silence.
func ClampSamples(samples []float32) {
	for i, s := range samples {
		if s != s {
			samples[i] = 0
		}
	}
	vek32.MinimumNumber_Inplace(samples, 1)
	vek32.MaximumNumber_Inplace(samples, -1)
}

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	return vek32.Max(vek32.Abs(samples))
}

// Normalize scales samples so the peak reaches target. Silence is left
// alone.
func Normalize(samples []float32, target float32) {
	p := Peak(samples)
	if p == 0 || target <= 0 {
		return
	}
	vek32.MulNumber_Inplace(samples, target/p)
}

func pcm16(s float32) int16 {
	if s != s {
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(float64(s) * 32767))
}

// EncodeWAVPCM16LE packs interleaved samples into a 44-byte-header WAV with
// little-endian 16-bit PCM data. Samples are clamped to [-1, 1] first.
func EncodeWAVPCM16LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 2
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[44+i*2:], uint16(pcm16(s)))
	}
	return out
}

// WriteWAV writes interleaved stereo samples to path as 16-bit PCM. A
// leading ~ in path is expanded.
func WriteWAV(path string, samples []float32, sampleRate int) (err error) {
	if sampleRate <= 0 {
		return errors.New("sampleRate must be positive")
	}
	path, err = homedir.Expand(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(pcm16(s))
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
