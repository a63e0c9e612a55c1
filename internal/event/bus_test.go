package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tacband/skirmish/pkg/core"
)

func TestFeedSubscribePublish(t *testing.T) {
	bus := NewBus()

	var got []core.MovementStartedEvent
	bus.MovementStarted.Subscribe(func(ev core.MovementStartedEvent) {
		got = append(got, ev)
	})

	bus.MovementStarted.Publish(core.MovementStartedEvent{UnitID: 1, Tick: 10})
	bus.MovementStarted.Publish(core.MovementStartedEvent{UnitID: 2, Tick: 11})

	assert.Len(t, got, 2)
	assert.Equal(t, core.UnitID(1), got[0].UnitID)
	assert.Equal(t, uint64(11), got[1].Tick)
}

func TestFeedUnsubscribe(t *testing.T) {
	var feed Feed[int]

	count := 0
	unsub := feed.Subscribe(func(int) { count++ })
	feed.Publish(1)
	unsub()
	feed.Publish(2)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, feed.Len())

	// Unsubscribing twice is harmless.
	unsub()
}

func TestFeedMultipleSubscribers(t *testing.T) {
	var feed Feed[string]

	a, b := 0, 0
	feed.Subscribe(func(string) { a++ })
	feed.Subscribe(func(string) { b++ })
	feed.Publish("x")

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestFeedPublishWithNoSubscribers(t *testing.T) {
	var feed Feed[int]
	feed.Publish(42) // must not panic
}

// A handler that subscribes during delivery must not deadlock the feed.
func TestFeedSubscribeDuringPublish(t *testing.T) {
	var feed Feed[int]

	fired := false
	feed.Subscribe(func(int) {
		feed.Subscribe(func(int) { fired = true })
	})
	feed.Publish(1)
	feed.Publish(2)

	assert.True(t, fired)
}
