package thread

import (
	"context"
	"fmt"

	"messenger/internal/providers/redis"
)

// BroadcastCursor remembers, per user, the newest broadcast thread already materialized
// into a participant row.
type BroadcastCursor interface {
	Get(ctx context.Context, userID uint64) (threadID uint64, found bool, err error)
	Set(ctx context.Context, userID uint64, threadID uint64) error
}

type redisCursor struct {
	redisP *redis.RedisProvider
	prefix string
}

func NewRedisCursor(redisP *redis.RedisProvider) BroadcastCursor {
	return &redisCursor{redisP: redisP, prefix: "messenger:latestid:user"}
}

func (c *redisCursor) key(userID uint64) string {
	return fmt.Sprintf("%s:%d", c.prefix, userID)
}

func (c *redisCursor) Get(ctx context.Context, userID uint64) (uint64, bool, error) {
	return c.redisP.GetUint64(ctx, c.key(userID))
}

func (c *redisCursor) Set(ctx context.Context, userID uint64, threadID uint64) error {
	return c.redisP.SetForever(ctx, c.key(userID), threadID)
}
