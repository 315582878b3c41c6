// Package transport is the play/stop/loop state machine. It maps composition
// time onto the audio clock, hands each pass to the compiler ahead of time
// and swaps queued patterns in at pass boundaries.
package transport

import (
	"math"
	"sync"

	"github.com/cbegin/pigeon-go/internal/debug"
	"github.com/cbegin/pigeon-go/internal/graph"
	"github.com/cbegin/pigeon-go/internal/pattern"
	"github.com/cbegin/pigeon-go/internal/playback"
)

// State is the transport state.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

const (
	// DefaultLookahead is the gap between Play and the first scheduled
	// sound.
	DefaultLookahead = 0.1
	// DefaultScheduleAhead is how long before a pass ends the next one is
	// compiled.
	DefaultScheduleAhead = 0.25
)

// Event kinds reported through Watch and Hooks.
const (
	EventPlay int = iota
	EventStop
	EventLoopCompleted
	EventPlaybackEnded
	EventPatternSwapped
)

// Event is a transport notification.
type Event struct {
	Kind  int
	Time  float64
	Cycle int
}

// Clock is the audio device clock in seconds.
type Clock interface {
	CurrentTime() float64
}

// Compiler schedules one pass of a composition.
type Compiler interface {
	Compile(comp *pattern.Composition, start float64, master graph.Sink) *playback.Pass
}

// Hooks are invoked synchronously from Play, Stop and Step.
type Hooks struct {
	OnEvent func(Event)
	// OnSwap runs after a queued pattern has replaced the composition.
	OnSwap func(*pattern.Composition)
}

// Option configures a Transport.
type Option func(*Transport)

// WithLookahead sets the delay between Play and the first pass.
func WithLookahead(sec float64) Option {
	return func(t *Transport) {
		if sec >= 0 && !math.IsInf(sec, 0) {
			t.lookahead = sec
		}
	}
}

// WithScheduleAhead sets how early the next pass is compiled.
func WithScheduleAhead(sec float64) Option {
	return func(t *Transport) {
		if sec >= 0 && !math.IsInf(sec, 0) {
			t.scheduleAhead = sec
		}
	}
}

// WithHooks installs synchronous callbacks.
func WithHooks(h Hooks) Option {
	return func(t *Transport) {
		t.hooks = h
	}
}

// Transport drives playback of a shared composition.
type Transport struct {
	mu            sync.Mutex
	clock         Clock
	compiler      Compiler
	master        graph.Sink
	comp          *pattern.Composition
	lookahead     float64
	scheduleAhead float64
	hooks         Hooks

	state   State
	prev    *playback.Pass
	current *playback.Pass
	next    *playback.Pass
	queued  *pattern.Composition
	cycle   int

	eventCh   chan Event
	eventChMu sync.Mutex
}

// New returns a stopped transport playing comp. comp is shared with the
// caller; a pattern swap replaces its contents in place.
func New(clock Clock, compiler Compiler, master graph.Sink, comp *pattern.Composition, opts ...Option) *Transport {
	t := &Transport{
		clock:         clock,
		compiler:      compiler,
		master:        master,
		comp:          comp,
		lookahead:     DefaultLookahead,
		scheduleAhead: DefaultScheduleAhead,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Watch returns a channel receiving transport events. The channel is
// buffered (cap 8) and events are dropped when it is full. Only the most
// recent Watch channel receives events.
func (t *Transport) Watch() <-chan Event {
	ch := make(chan Event, 8)
	t.eventChMu.Lock()
	t.eventCh = ch
	t.eventChMu.Unlock()
	return ch
}

func (t *Transport) emit(ev Event) {
	if t.hooks.OnEvent != nil {
		t.hooks.OnEvent(ev)
	}
	t.eventChMu.Lock()
	ch := t.eventCh
	t.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}

// State returns the current state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Playing reports whether the transport is playing.
func (t *Transport) Playing() bool { return t.State() == Playing }

// Play starts playback a lookahead from now. It reports false when already
// playing or when nothing is drawn.
func (t *Transport) Play() bool {
	t.mu.Lock()
	if t.state == Playing {
		t.mu.Unlock()
		return false
	}
	if t.comp.Empty() {
		t.mu.Unlock()
		debug.Log("transport", "play ignored: empty composition")
		return false
	}
	start := t.clock.CurrentTime() + t.lookahead
	t.state = Playing
	t.cycle = 0
	t.current = t.compiler.Compile(t.comp, start, t.master)
	t.next = nil
	t.mu.Unlock()
	debug.Log("transport", "play at %.3fs, pass %.3fs", start, t.current.Duration)
	t.emit(Event{Kind: EventPlay, Time: start})
	return true
}

// Stop disconnects every scheduled pass. Stopping a stopped transport is a
// no-op.
func (t *Transport) Stop() {
	t.mu.Lock()
	if t.state == Stopped {
		t.mu.Unlock()
		return
	}
	t.state = Stopped
	t.prev.Stop()
	t.current.Stop()
	t.next.Stop()
	t.prev, t.current, t.next = nil, nil, nil
	now := t.clock.CurrentTime()
	t.mu.Unlock()
	debug.Log("transport", "stop at %.3fs", now)
	t.emit(Event{Kind: EventStop, Time: now})
}

// Queue schedules comp to replace the composition at the next pass
// boundary. A later Queue replaces an earlier one.
func (t *Transport) Queue(comp *pattern.Composition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queued = comp
}

// Queued returns the pattern waiting for the next boundary, or nil.
func (t *Transport) Queued() *pattern.Composition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queued
}

// Step advances the transport. Call it once per displayed frame.
func (t *Transport) Step() {
	t.mu.Lock()
	if t.state != Playing {
		t.mu.Unlock()
		return
	}
	now := t.clock.CurrentTime()
	var events []Event
	var swapped *pattern.Composition

	for t.state == Playing {
		cur := t.current
		end := cur.End()
		if t.next == nil && t.comp.Settings.Loop && now >= end-t.scheduleAhead {
			if t.swap() {
				swapped = t.comp
				events = append(events, Event{Kind: EventPatternSwapped, Time: end, Cycle: t.cycle + 1})
			}
			start := end
			if start < now {
				start = now + t.lookahead
			}
			t.next = t.compiler.Compile(t.comp, start, t.master)
		}
		if now < end {
			break
		}
		if !t.comp.Settings.Loop && t.next != nil {
			t.next.Stop()
			t.next = nil
		}
		if t.next == nil {
			if t.swap() {
				swapped = t.comp
				events = append(events, Event{Kind: EventPatternSwapped, Time: end, Cycle: t.cycle})
			}
			t.state = Stopped
			cur.Stop()
			t.current = nil
			events = append(events, Event{Kind: EventPlaybackEnded, Time: end, Cycle: t.cycle})
			break
		}
		cur.Retire()
		t.prev, t.current, t.next = cur, t.next, nil
		t.cycle++
		events = append(events, Event{Kind: EventLoopCompleted, Time: t.current.Start, Cycle: t.cycle})
	}
	t.mu.Unlock()

	if swapped != nil && t.hooks.OnSwap != nil {
		t.hooks.OnSwap(swapped)
	}
	for _, ev := range events {
		debug.Log("transport", "event %d at %.3fs (cycle %d)", ev.Kind, ev.Time, ev.Cycle)
		t.emit(ev)
	}
}

// Reschedule drops the pre-scheduled next pass if it has not started, so the
// following Step compiles it again from the current composition. Call it
// after editing the composition while playing.
func (t *Transport) Reschedule() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Playing || t.next == nil {
		return
	}
	if t.clock.CurrentTime() >= t.next.Start {
		return
	}
	t.next.Stop()
	t.next = nil
	debug.Log("transport", "next pass dropped for recompile")
}

// swap loads the queued pattern into the shared composition.
func (t *Transport) swap() bool {
	if t.queued == nil {
		return false
	}
	*t.comp = *t.queued.Clone()
	t.queued = nil
	return true
}

// Elapsed returns the time since the current pass started, clamped to
// [0, duration], and the pass duration. Both are zero when stopped.
func (t *Transport) Elapsed() (elapsed, duration float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Playing || t.current == nil {
		return 0, 0
	}
	d := t.current.Duration
	e := t.clock.CurrentTime() - t.current.Start
	return math.Max(0, math.Min(e, d)), d
}

// Playhead returns the x position of the playhead on a track of the given
// width. ok is false when stopped.
func (t *Transport) Playhead(width float64) (x float64, ok bool) {
	e, d := t.Elapsed()
	if d <= 0 {
		return 0, false
	}
	return e / d * width, true
}

// Passes returns the scheduled passes, current first.
func (t *Transport) Passes() []*playback.Pass {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*playback.Pass
	if t.current != nil {
		out = append(out, t.current)
	}
	if t.next != nil {
		out = append(out, t.next)
	}
	return out
}

// Cycle returns the number of completed loops since Play.
func (t *Transport) Cycle() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cycle
}
