package trace

import (
	"testing"
	"time"

	"metadesc/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestProcessTrace_NestedEvents(t *testing.T) {
	clock := NewManualTimer(epoch)
	pt := New(true, WithTimer(clock))

	pt.StartEvent("engine", "process", "whole run")
	clock.Advance(10 * time.Millisecond)
	pt.StartEvent("tokenizer", "analysis", "")
	clock.Advance(30 * time.Millisecond)
	require.NoError(t, pt.EndEvent("tokenizer", "analysis", "ok"))
	clock.Advance(5 * time.Millisecond)
	require.NoError(t, pt.EndEvent("engine", "process", "done"))

	events := pt.Events()
	require.Len(t, events, 1)
	root := events[0]
	assert.Equal(t, 45*time.Millisecond, root.Duration)
	assert.Equal(t, "done", root.ResultMessage)
	require.Len(t, root.SubEvents, 1)
	assert.Equal(t, 30*time.Millisecond, root.SubEvents[0].Duration)
	assert.Equal(t, "ok", root.SubEvents[0].ResultMessage)
	assert.Equal(t, 15*time.Millisecond, root.DurationExcludingSubEvents())
}

func TestProcessTrace_EndEventClosesUnclosedSubEvents(t *testing.T) {
	clock := NewManualTimer(epoch)
	pt := New(true, WithTimer(clock))

	pt.StartEvent("outer", "t", "")
	pt.StartEvent("middle", "t", "")
	pt.StartEvent("inner", "t", "")
	clock.Advance(time.Second)
	require.NoError(t, pt.EndEvent("outer", "t", "closed"))

	events := pt.Events()
	require.Len(t, events, 1)
	outer := events[0]
	require.Len(t, outer.SubEvents, 1)
	middle := outer.SubEvents[0]
	assert.Equal(t, "middle", middle.Component)
	require.Len(t, middle.SubEvents, 1)
	inner := middle.SubEvents[0]
	assert.Equal(t, "inner", inner.Component)
	for _, e := range []*Event{outer, middle, inner} {
		assert.Equal(t, "closed", e.ResultMessage)
		assert.Equal(t, time.Second, e.Duration)
	}
}

func TestProcessTrace_EndEventWithoutStart(t *testing.T) {
	pt := New(true, WithTimer(NewManualTimer(epoch)))
	pt.StartEvent("a", "t", "")

	err := pt.EndEvent("b", "t", "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeRequiredMethodCall))

	// The open event survived the failed call.
	require.NoError(t, pt.EndEvent("a", "t", ""))
	assert.Len(t, pt.Events(), 1)
}

func TestProcessTrace_AddEventNestsUnderOpenEvent(t *testing.T) {
	pt := New(true, WithTimer(NewManualTimer(epoch)))
	pt.AddEvent("top", "t", "", time.Millisecond, "")
	pt.StartEvent("open", "t", "")
	pt.AddEvent("child", "t", "", 2*time.Millisecond, "r")
	require.NoError(t, pt.EndEvent("open", "t", ""))

	events := pt.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "top", events[0].Component)
	require.Len(t, events[1].SubEvents, 1)
	assert.Equal(t, "child", events[1].SubEvents[0].Component)
}

func TestProcessTrace_Queries(t *testing.T) {
	pt := New(true)
	pt.AddAll([]*Event{
		{Component: "a", Type: "x", SubEvents: []*Event{
			{Component: "a", Type: "y"},
			{Component: "b", Type: "x"},
		}},
		{Component: "b", Type: "y"},
	})

	assert.Len(t, pt.EventsByComponentName("a", false), 1)
	assert.Len(t, pt.EventsByComponentName("a", true), 2)
	assert.Len(t, pt.EventsByType("x", false), 1)
	assert.Len(t, pt.EventsByType("x", true), 2)
	assert.Len(t, pt.EventsByComponentName("b", false), 2)

	assert.Equal(t, "y", pt.Event("a", "y").Type)
	assert.Same(t, pt.Events()[0].SubEvents[1], pt.Event("b", "x"))
	assert.Nil(t, pt.Event("c", "x"))

	pt.Clear()
	assert.Empty(t, pt.Events())
}

func TestProcessTrace_Aggregate(t *testing.T) {
	first := New(true)
	first.AddEventRecord(&Event{Component: "engine", Type: "process", Duration: 100 * time.Millisecond, ResultMessage: "one",
		SubEvents: []*Event{{Component: "tok", Type: "analysis", Duration: 40 * time.Millisecond}}})

	second := New(true)
	second.AddEventRecord(&Event{Component: "engine", Type: "process", Duration: 50 * time.Millisecond, ResultMessage: "two",
		SubEvents: []*Event{
			{Component: "tok", Type: "analysis", Duration: 10 * time.Millisecond},
			{Component: "pos", Type: "analysis", Duration: 20 * time.Millisecond},
		}})
	second.AddEventRecord(&Event{Component: "writer", Type: "output", Duration: time.Millisecond})

	first.Aggregate(second)

	events := first.Events()
	require.Len(t, events, 2)
	engine := events[0]
	assert.Equal(t, 150*time.Millisecond, engine.Duration)
	assert.Equal(t, "two", engine.ResultMessage)
	require.Len(t, engine.SubEvents, 2)
	assert.Equal(t, 50*time.Millisecond, engine.SubEvents[0].Duration)
	assert.Equal(t, "pos", engine.SubEvents[1].Component)
	assert.Equal(t, "writer", events[1].Component)

	// Merged events are copies.
	engine.SubEvents[1].Duration = 0
	assert.Equal(t, 20*time.Millisecond, second.Events()[0].SubEvents[1].Duration)
}

func TestProcessTrace_Disabled(t *testing.T) {
	pt := Disabled()
	pt.StartEvent("a", "t", "")
	assert.NoError(t, pt.EndEvent("nothing", "open", ""))
	pt.AddEvent("a", "t", "", time.Second, "")
	other := New(true)
	other.AddEvent("b", "t", "", time.Second, "")
	pt.Aggregate(other)

	assert.Empty(t, pt.Events())
	assert.Empty(t, pt.String())
}

func TestProcessTrace_String(t *testing.T) {
	pt := New(true)
	pt.AddEventRecord(&Event{Component: "engine", Type: "process", Description: "run", Duration: 300 * time.Millisecond,
		SubEvents: []*Event{{Component: "tok", Type: "analysis", Duration: 100 * time.Millisecond, ResultMessage: "ok"}}})
	pt.AddEvent("writer", "output", "", 100*time.Millisecond, "")

	out := pt.String()
	assert.Contains(t, out, "Component: engine\n")
	assert.Contains(t, out, "Description: run\n")
	assert.Contains(t, out, "Duration: 300ms (75.00%)\n")
	assert.Contains(t, out, "Sub-events:\n  Component: tok\n")
	assert.Contains(t, out, "  Duration: 100ms (25.00%)\n")
	assert.Contains(t, out, "  Result: ok\n")
}
