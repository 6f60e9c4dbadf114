package trace

import (
	"fmt"
	"strings"
	"time"
)

// Event is one timed step of a process. Events opened while another is open
// become its sub-events.
type Event struct {
	Component     string
	Type          string
	Description   string
	Start         time.Time
	Duration      time.Duration
	ResultMessage string
	SubEvents     []*Event
}

// DurationExcludingSubEvents is the time spent in the event itself. It is
// never negative.
func (e *Event) DurationExcludingSubEvents() time.Duration {
	d := e.Duration
	for _, sub := range e.SubEvents {
		d -= sub.Duration
	}
	if d < 0 {
		return 0
	}
	return d
}

func (e *Event) addSubEvent(sub *Event) {
	e.SubEvents = append(e.SubEvents, sub)
}

func (e *Event) matches(component, typ string) bool {
	return e.Component == component && e.Type == typ
}

// Clone returns a deep copy of the event tree.
func (e *Event) Clone() *Event {
	c := *e
	if len(e.SubEvents) > 0 {
		c.SubEvents = make([]*Event, len(e.SubEvents))
		for i, sub := range e.SubEvents {
			c.SubEvents[i] = sub.Clone()
		}
	}
	return &c
}

func (e *Event) String() string {
	var b strings.Builder
	e.write(&b, 0, e.Duration)
	return b.String()
}

// write renders the event at the given depth. total is the duration that
// percentages are relative to; zero omits them.
func (e *Event) write(b *strings.Builder, depth int, total time.Duration) {
	pad := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%sComponent: %s\n", pad, e.Component)
	fmt.Fprintf(b, "%sEvent Type: %s\n", pad, e.Type)
	if e.Description != "" {
		fmt.Fprintf(b, "%sDescription: %s\n", pad, e.Description)
	}
	if total > 0 {
		pct := float64(e.Duration) * 100 / float64(total)
		fmt.Fprintf(b, "%sDuration: %s (%.2f%%)\n", pad, e.Duration, pct)
	} else {
		fmt.Fprintf(b, "%sDuration: %s\n", pad, e.Duration)
	}
	if e.ResultMessage != "" {
		fmt.Fprintf(b, "%sResult: %s\n", pad, e.ResultMessage)
	}
	if len(e.SubEvents) > 0 {
		fmt.Fprintf(b, "%sSub-events:\n", pad)
		for _, sub := range e.SubEvents {
			sub.write(b, depth+1, total)
		}
	}
}
