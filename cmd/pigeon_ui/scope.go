package main

import "sync"

const ringBufLen = 16384

// scope keeps the most recent output in a mono ring buffer for display.
type scope struct {
	mu       sync.Mutex
	ring     []float32
	writePos int
}

func newScope() *scope {
	return &scope{ring: make([]float32, ringBufLen)}
}

// Tap is called from the audio thread. Keep it minimal: just copy into ring.
func (s *scope) Tap(samples []float32) {
	s.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		s.ring[s.writePos] = (samples[i] + samples[i+1]) * 0.5
		s.writePos = (s.writePos + 1) % ringBufLen
	}
	s.mu.Unlock()
}

// Snapshot copies the last n samples, oldest first.
func (s *scope) Snapshot(n int) []float32 {
	if n > ringBufLen {
		n = ringBufLen
	}
	if n < 0 {
		n = 0
	}
	out := make([]float32, n)
	s.mu.Lock()
	start := (s.writePos - n + ringBufLen) % ringBufLen
	for i := range out {
		out[i] = s.ring[(start+i)%ringBufLen]
	}
	s.mu.Unlock()
	return out
}
