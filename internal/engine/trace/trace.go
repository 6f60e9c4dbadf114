// Package trace records nested, timed process events and aggregates the
// traces of repeated runs.
package trace

import (
	"strings"
	"sync"
	"time"

	"metadesc/internal/core/errors"
)

// ProcessTrace collects events. Start and end calls nest: an event started
// while another is open becomes its sub-event when it ends. A disabled trace
// ignores every call.
type ProcessTrace struct {
	mu      sync.Mutex
	enabled bool
	timer   Timer
	open    []*Event
	events  []*Event
}

type Option func(*ProcessTrace)

func WithTimer(t Timer) Option {
	return func(p *ProcessTrace) {
		if t != nil {
			p.timer = t
		}
	}
}

func New(enabled bool, opts ...Option) *ProcessTrace {
	p := &ProcessTrace{enabled: enabled, timer: WallTimer}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Disabled returns a trace that records nothing.
func Disabled() *ProcessTrace {
	return New(false)
}

func (p *ProcessTrace) Enabled() bool {
	return p.enabled
}

// StartEvent opens an event.
func (p *ProcessTrace) StartEvent(component, typ, description string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = append(p.open, &Event{
		Component:   component,
		Type:        typ,
		Description: description,
		Start:       p.timer.Now(),
	})
}

// EndEvent closes the innermost open event with the given component and
// type, together with any events opened after it. Each closed event gets the
// result message and its duration, and is nested under the event opened
// before it. Without a matching open event nothing changes and a
// REQUIRED_METHOD_CALL error is returned.
func (p *ProcessTrace) EndEvent(component, typ, resultMessage string) error {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	match := -1
	for i := len(p.open) - 1; i >= 0; i-- {
		if p.open[i].matches(component, typ) {
			match = i
			break
		}
	}
	if match < 0 {
		err := errors.Newf(errors.CodeRequiredMethodCall, "EndEvent(%q, %q) without a matching StartEvent", component, typ)
		return errors.AddContext(err, errors.CtxOperation, "EndEvent")
	}

	now := p.timer.Now()
	closing := p.open[match:]
	p.open = p.open[:match]
	for i := len(closing) - 1; i >= 0; i-- {
		evt := closing[i]
		evt.ResultMessage = resultMessage
		evt.Duration = now.Sub(evt.Start)
		switch {
		case i > 0:
			closing[i-1].addSubEvent(evt)
		case len(p.open) > 0:
			p.open[len(p.open)-1].addSubEvent(evt)
		default:
			p.events = append(p.events, evt)
		}
	}
	return nil
}

// AddEvent records a completed event under the innermost open event, or at
// top level when none is open.
func (p *ProcessTrace) AddEvent(component, typ, description string, duration time.Duration, resultMessage string) {
	if !p.enabled {
		return
	}
	p.AddEventRecord(&Event{
		Component:     component,
		Type:          typ,
		Description:   description,
		Duration:      duration,
		ResultMessage: resultMessage,
	})
}

func (p *ProcessTrace) AddEventRecord(evt *Event) {
	if !p.enabled || evt == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(evt)
}

func (p *ProcessTrace) addLocked(evt *Event) {
	if n := len(p.open); n > 0 {
		p.open[n-1].addSubEvent(evt)
		return
	}
	p.events = append(p.events, evt)
}

// AddAll records each event as AddEventRecord does.
func (p *ProcessTrace) AddAll(events []*Event) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, evt := range events {
		if evt != nil {
			p.addLocked(evt)
		}
	}
}

// Events returns the completed top-level events.
func (p *ProcessTrace) Events() []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Event(nil), p.events...)
}

// EventsByComponentName returns events of component in depth-first order.
// With recurseAfterMatch the sub-events of a match are searched too.
func (p *ProcessTrace) EventsByComponentName(component string, recurseAfterMatch bool) []*Event {
	return p.find(func(e *Event) bool { return e.Component == component }, recurseAfterMatch)
}

// EventsByType is EventsByComponentName for event types.
func (p *ProcessTrace) EventsByType(typ string, recurseAfterMatch bool) []*Event {
	return p.find(func(e *Event) bool { return e.Type == typ }, recurseAfterMatch)
}

func (p *ProcessTrace) find(match func(*Event) bool, recurse bool) []*Event {
	var out []*Event
	var walk func(e *Event)
	walk = func(e *Event) {
		if match(e) {
			out = append(out, e)
			if !recurse {
				return
			}
		}
		for _, sub := range e.SubEvents {
			walk(sub)
		}
	}
	for _, e := range p.Events() {
		walk(e)
	}
	return out
}

// Event returns the first event, searched depth first, with the given
// component and type.
func (p *ProcessTrace) Event(component, typ string) *Event {
	return firstMatch(p.Events(), component, typ)
}

func firstMatch(events []*Event, component, typ string) *Event {
	for _, e := range events {
		if e.matches(component, typ) {
			return e
		}
		if sub := firstMatch(e.SubEvents, component, typ); sub != nil {
			return sub
		}
	}
	return nil
}

// Clear drops the completed events. Open events are kept.
func (p *ProcessTrace) Clear() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

// Aggregate folds the events of other into p. Events with the same
// component and type are merged: durations add up, the result message is
// taken from other, and sub-events are merged the same way. Unmatched
// events are appended as copies.
func (p *ProcessTrace) Aggregate(other *ProcessTrace) {
	if !p.enabled || other == nil || other == p {
		return
	}
	incoming := other.Events()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, src := range incoming {
		if dst := findCorresponding(p.events, src); dst != nil {
			aggregateEvent(dst, src)
			continue
		}
		p.events = append(p.events, src.Clone())
	}
}

func findCorresponding(events []*Event, evt *Event) *Event {
	for _, e := range events {
		if e.matches(evt.Component, evt.Type) {
			return e
		}
	}
	return nil
}

func aggregateEvent(dst, src *Event) {
	dst.Duration += src.Duration
	dst.ResultMessage = src.ResultMessage

	var added []*Event
	for _, s := range src.SubEvents {
		if d := findCorresponding(dst.SubEvents, s); d != nil {
			aggregateEvent(d, s)
			continue
		}
		added = append(added, s.Clone())
	}
	dst.SubEvents = append(dst.SubEvents, added...)
}

// String renders the event tree with each event's share of the total
// top-level duration.
func (p *ProcessTrace) String() string {
	events := p.Events()
	var total time.Duration
	for _, e := range events {
		total += e.Duration
	}
	var b strings.Builder
	for _, e := range events {
		e.write(&b, 0, total)
	}
	return b.String()
}
