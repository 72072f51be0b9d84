package relay

import (
	"context"
	"testing"
	"time"

	"messenger/internal/app/notification"
	"messenger/internal/utils"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubscriber_HandleForwardsToBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := utils.NewEventBus(8)
	received := make(chan *notification.Envelope, 1)
	Forward(bus, func(env *notification.Envelope) bool {
		received <- env
		return true
	})
	go bus.Run(ctx)

	s := NewSubscriber(nil, "notification", bus, zap.NewNop())
	ok := s.Handle(&goredis.Message{
		Channel: "notification",
		Payload: `{"data":{"token":"abc","toAll":false,"message":"hi"}}`,
	})
	require.True(t, ok)

	select {
	case env := <-received:
		assert.Equal(t, "room:abc", env.Data.Room())
	case <-time.After(time.Second):
		t.Fatal("envelope not forwarded")
	}
}

func TestSubscriber_HandleRejectsBadPayloads(t *testing.T) {
	bus := utils.NewEventBus(8)
	s := NewSubscriber(nil, "notification", bus, zap.NewNop())

	assert.False(t, s.Handle(&goredis.Message{Channel: "notification", Payload: `{`}))
	assert.False(t, s.Handle(&goredis.Message{Channel: "notification", Payload: `{"data":{"toAll":false,"message":"hi"}}`}))
}

func TestSubscriber_HandleDropsWhenBusFull(t *testing.T) {
	bus := utils.NewEventBus(1)
	s := NewSubscriber(nil, "notification", bus, zap.NewNop())
	msg := &goredis.Message{Channel: "notification", Payload: `{"data":{"token":null,"toAll":true,"message":"hi"}}`}

	assert.True(t, s.Handle(msg))
	assert.False(t, s.Handle(msg))
}
