// Package audio connects the graph to the sound card through ebiten's audio
// context. The device pulls stereo float32 frames; it never pushes.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source renders interleaved stereo frames into dst. graph.Context
// implements it.
type Source interface {
	Process(dst []float32)
}

// Stream adapts a Source to the little-endian float32 byte stream ebiten
// reads. It never reports EOF: the instrument is silent, not finished, when
// nothing plays.
type Stream struct {
	mu     sync.Mutex
	source Source
	buf    []float32
}

func NewStream(source Source) *Stream {
	return &Stream{source: source}
}

// Read fills p with whole frames. A p shorter than one frame reads nothing.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	s.buf = s.buf[:need]
	s.source.Process(s.buf)
	for i, v := range s.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return frames * 8, nil
}

func (s *Stream) Close() error { return nil }

// DefaultBufferSize keeps device latency below the transport lookahead.
const DefaultBufferSize = 50 * time.Millisecond

// Device is the realtime output.
type Device struct {
	player *ebitaudio.Player
	stream io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// ebiten allows one audio context per process.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// Open creates a suspended device pulling from source. A bufferSize of zero
// uses DefaultBufferSize.
func Open(sampleRate int, source Source, bufferSize time.Duration) (*Device, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	stream := NewStream(source)
	pl, err := ctx.NewPlayerF32(stream)
	if err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	pl.SetBufferSize(bufferSize)
	return &Device{player: pl, stream: stream}, nil
}

// Resume starts pulling audio. Browsers and some hosts keep the device
// suspended until the first user gesture; call Resume from one.
func (d *Device) Resume() { d.player.Play() }

// Suspend stops pulling audio; the graph clock stops with it.
func (d *Device) Suspend() { d.player.Pause() }

func (d *Device) Running() bool {
	return d.player.IsPlaying()
}

// Position returns what the listener has actually heard.
func (d *Device) Position() time.Duration {
	return d.player.Position()
}

func (d *Device) Close() error {
	d.player.Pause()
	if err := d.player.Close(); err != nil {
		return err
	}
	return d.stream.Close()
}
