// Package relay moves notification envelopes from the pub/sub channel onto the
// in-process event bus.
package relay

import (
	"context"
	"fmt"

	"messenger/internal/app/notification"
	"messenger/internal/providers/redis"
	"messenger/internal/utils"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event is the bus event name envelopes are published under.
const Event = "notification"

type Subscriber struct {
	redisP  *redis.RedisProvider
	channel string
	bus     *utils.EventBus
	logger  *zap.SugaredLogger
}

func NewSubscriber(redisP *redis.RedisProvider, channel string, bus *utils.EventBus, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		redisP:  redisP,
		channel: channel,
		bus:     bus,
		logger:  logger.Sugar(),
	}
}

// Run blocks until ctx is cancelled or the subscription channel closes.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub, err := s.redisP.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	defer pubsub.Close()

	s.logger.Infow("Relay subscribed", "channel", s.channel)
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.Handle(msg)
		}
	}
}

func (s *Subscriber) Handle(msg *goredis.Message) bool {
	env, err := notification.Decode([]byte(msg.Payload))
	if err != nil {
		s.logger.Warnw("Dropping undecodable notification", "channel", msg.Channel, "error", err)
		return false
	}
	if !env.Data.ToAll && env.Data.Token == nil {
		s.logger.Warnw("Dropping notification without recipient", "channel", msg.Channel)
		return false
	}
	if !s.bus.Publish(Event, env) {
		s.logger.Warnw("Event bus full, notification dropped", "channel", msg.Channel)
		return false
	}
	return true
}

// Forward subscribes fn to envelopes relayed onto the bus.
func Forward(bus *utils.EventBus, fn func(*notification.Envelope) bool) {
	bus.Subscribe(Event, func(e utils.Event) {
		if env, ok := e.Data.(*notification.Envelope); ok {
			fn(env)
		}
	})
}
