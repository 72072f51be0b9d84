package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishDropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)

	assert.True(t, bus.Publish("a", 1))
	assert.False(t, bus.Publish("a", 2))
}

func TestEventBus_DispatchesBySubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewEventBus(4)
	got := make(chan Event, 2)
	bus.Subscribe("wanted", func(e Event) { got <- e })
	go bus.Run(ctx)

	require.True(t, bus.Publish("ignored", "x"))
	require.True(t, bus.Publish("wanted", "y"))

	select {
	case e := <-got:
		assert.Equal(t, "wanted", e.Event)
		assert.Equal(t, "y", e.Data)
	case <-time.After(time.Second):
		t.Fatal("event not dispatched")
	}
	assert.Empty(t, got)
}
