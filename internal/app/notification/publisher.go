package notification

import (
	"context"

	"messenger/internal/metrics"
	"messenger/internal/providers/redis"

	"go.uber.org/zap"
)

// Publisher pushes events to the gateway channel. Delivery is at most once and
// failures are never reported to the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Transport is the pub/sub primitive a Publisher writes to.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type publisher struct {
	transport Transport
	channel   string
	logger    *zap.SugaredLogger
}

func NewPublisher(transport Transport, channel string, logger *zap.Logger) Publisher {
	if channel == "" {
		channel = "notification"
	}
	return &publisher{
		transport: transport,
		channel:   channel,
		logger:    logger.Sugar(),
	}
}

func NewRedisPublisher(redisP *redis.RedisProvider, channel string, logger *zap.Logger) Publisher {
	return NewPublisher(redisP, channel, logger)
}

func (p *publisher) Publish(ctx context.Context, event Event) {
	payload, err := Encode(event)
	if err != nil {
		metrics.NotificationsPublished.WithLabelValues("error").Inc()
		p.logger.Errorw("Failed to encode notification", "to_all", event.ToAll, "error", err)
		return
	}

	if err := p.transport.Publish(ctx, p.channel, payload); err != nil {
		metrics.NotificationsPublished.WithLabelValues("error").Inc()
		p.logger.Warnw("Failed to publish notification",
			"channel", p.channel,
			"to_all", event.ToAll,
			"thread_id", event.Message.ThreadID,
			"error", err,
		)
		return
	}

	metrics.NotificationsPublished.WithLabelValues("ok").Inc()
	p.logger.Debugw("Notification published", "channel", p.channel, "to_all", event.ToAll)
}
