package graph

import (
	"math"

	"github.com/cbegin/pigeon-go/internal/debug"
)

// EventKind identifies a scheduled automation event.
type EventKind int

const (
	SetValue EventKind = iota
	LinearRamp
	ExponentialRamp
	SetTarget
)

func (k EventKind) String() string {
	switch k {
	case LinearRamp:
		return "linearRamp"
	case ExponentialRamp:
		return "exponentialRamp"
	case SetTarget:
		return "setTarget"
	}
	return "setValue"
}

// Event is one automation step. For ramps Time is the end of the ramp; for
// SetTarget it is the moment the approach starts.
type Event struct {
	Kind         EventKind
	Time         float64
	Value        float64
	TimeConstant float64
}

func (e Event) ramp() bool {
	return e.Kind == LinearRamp || e.Kind == ExponentialRamp
}

// automation is the cursor over a Param's pending events. Consumed events
// fold into (cur, curTime); an active SetTarget keeps approaching tgt.
type automation struct {
	cur     float64
	curTime float64
	tgt     Event
	active  bool
	events  []Event
}

func (a *automation) targetValue(t float64) float64 {
	if a.tgt.TimeConstant <= 0 {
		return a.tgt.Value
	}
	return a.tgt.Value + (a.cur-a.tgt.Value)*math.Exp(-(t-a.curTime)/a.tgt.TimeConstant)
}

// advance consumes every event at or before t and returns the value at t.
// Calls must use non-decreasing t.
func (a *automation) advance(t float64) float64 {
	for len(a.events) > 0 {
		e := a.events[0]
		if e.Time > t {
			if !e.ramp() {
				break
			}
			if a.active {
				// A ramp following a target starts from wherever the target got to.
				a.cur, a.curTime, a.active = a.targetValue(t), t, false
			}
			return interpolate(a.cur, a.curTime, e, t)
		}
		switch e.Kind {
		case SetTarget:
			if a.active {
				a.cur = a.targetValue(e.Time)
			}
			a.curTime, a.tgt, a.active = e.Time, e, true
		default:
			a.cur, a.curTime, a.active = e.Value, e.Time, false
		}
		a.events = a.events[1:]
	}
	if a.active {
		return a.targetValue(t)
	}
	return a.cur
}

func interpolate(v0, t0 float64, e Event, t float64) float64 {
	span := e.Time - t0
	if span <= 0 || math.IsInf(span, 1) {
		return v0
	}
	frac := (t - t0) / span
	if e.Kind == ExponentialRamp {
		if v0 == 0 || (v0 > 0) != (e.Value > 0) {
			return v0
		}
		return v0 * math.Pow(e.Value/v0, frac)
	}
	return v0 + (e.Value-v0)*frac
}

// Param is an automatable node parameter. Its value at a frame is the
// automation value plus the sum of any modulator nodes connected to it,
// clamped to [min, max].
type Param struct {
	ctx      *Context
	name     string
	min, max float64
	auto     automation
	mods     inputSet
	memoAt   int64
	memo     float64
}

func newParam(ctx *Context, name string, value, min, max float64) *Param {
	return &Param{
		ctx:    ctx,
		name:   name,
		min:    min,
		max:    max,
		auto:   automation{cur: value},
		memoAt: -1,
	}
}

func (p *Param) inputs() *inputSet { return &p.mods }

func (p *Param) valueAt(frame int64) float64 {
	if p.memoAt == frame {
		return p.memo
	}
	v := p.auto.advance(p.ctx.timeOf(frame))
	if len(p.mods.nodes) > 0 {
		v += p.mods.sum(frame)
	}
	v = math.Max(p.min, math.Min(p.max, v))
	p.memoAt, p.memo = frame, v
	return v
}

// peek evaluates the automation at t without consuming events.
func (p *Param) peek(t float64) float64 {
	a := p.auto
	return a.advance(t)
}

// Value returns the automation value at the context's current time.
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.peek(p.ctx.now())
}

// Events returns a copy of the events that have not yet been reached.
func (p *Param) Events() []Event {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return append([]Event(nil), p.auto.events...)
}

// SetValueAtTime jumps to v at t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.schedule(Event{Kind: SetValue, Time: t, Value: v})
}

// LinearRampToValueAtTime ramps linearly from the previous event to v at t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.schedule(Event{Kind: LinearRamp, Time: t, Value: v})
}

// ExponentialRampToValueAtTime ramps exponentially from the previous event to
// v at t. A zero target cannot be reached exponentially and ramps linearly.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	kind := ExponentialRamp
	if v == 0 {
		kind = LinearRamp
	}
	p.schedule(Event{Kind: kind, Time: t, Value: v})
}

// SetTargetAtTime starts an exponential approach to v at t with the given
// time constant in seconds.
func (p *Param) SetTargetAtTime(v, t, timeConstant float64) {
	if !finite(timeConstant) || timeConstant < 0 {
		timeConstant = 0
	}
	p.schedule(Event{Kind: SetTarget, Time: t, Value: v, TimeConstant: timeConstant})
}

func (p *Param) schedule(e Event) {
	if !finite(e.Value) {
		debug.Log("graph", "%s: dropped %s with non-finite value", p.name, e.Kind)
		return
	}
	e.Time = SanitizeTime(e.Time)
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.insert(e)
}

func (p *Param) insert(e Event) {
	evs := p.auto.events
	i := len(evs)
	for i > 0 && evs[i-1].Time > e.Time {
		i--
	}
	evs = append(evs, Event{})
	copy(evs[i+1:], evs[i:])
	evs[i] = e
	p.auto.events = evs
}

// CancelScheduledValues removes every event at or after t and holds the value
// the automation would have had at t. An in-flight ramp is cut short at t
// rather than dropped.
func (p *Param) CancelScheduledValues(t float64) {
	t = SanitizeTime(t)
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	if now := p.ctx.now(); t < now {
		t = now
	}
	if math.IsInf(t, 1) {
		return
	}
	held := p.peek(t)
	evs := p.auto.events
	cut := len(evs)
	for cut > 0 && evs[cut-1].Time >= t {
		cut--
	}
	var interrupted *Event
	if cut < len(evs) && evs[cut].ramp() {
		e := evs[cut]
		interrupted = &e
	}
	p.auto.events = evs[:cut:cut]
	if interrupted != nil {
		kind := interrupted.Kind
		if held == 0 {
			kind = LinearRamp
		}
		p.insert(Event{Kind: kind, Time: t, Value: held})
		return
	}
	p.insert(Event{Kind: SetValue, Time: t, Value: held})
}
