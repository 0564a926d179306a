package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/core"
	"github.com/castellan/castellan/events"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()

	a := make(chan events.Event, 1)
	b := make(chan events.Event, 1)
	bus.Subscribe(a)
	bus.Subscribe(b)

	bus.Publish(events.Event{
		Type:   events.TypeStateChanged,
		Module: "db",
		From:   core.StateLoaded,
		To:     core.StateStarted,
	})

	for _, ch := range []chan events.Event{a, b} {
		select {
		case evt := <-ch:
			assert.Equal(t, events.TypeStateChanged, evt.Type)
			assert.Equal(t, "db", evt.Module)
			assert.Equal(t, core.StateStarted, evt.To)
			assert.False(t, evt.Time.IsZero(), "publish stamps the time")
		case <-time.After(time.Second):
			t.Fatal("expected event delivery")
		}
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()

	ch := make(chan events.Event, 1)
	bus.Subscribe(ch)

	bus.Publish(events.Event{Type: events.TypeLoaded, Module: "first"})
	bus.Publish(events.Event{Type: events.TypeLoaded, Module: "second"})

	evt := <-ch
	require.Equal(t, "first", evt.Module)
	select {
	case extra := <-ch:
		t.Fatalf("expected the second event to be dropped, got %v", extra)
	default:
	}
}

func TestBusKeepsExplicitTimestamp(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()

	ch := make(chan events.Event, 1)
	bus.Subscribe(ch)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bus.Publish(events.Event{Type: events.TypeRemoved, Module: "db", Time: at})
	assert.Equal(t, at, (<-ch).Time)
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()
	events.NewBus().Publish(events.Event{Type: events.TypeFailed, Module: "db", Op: "start"})
}
