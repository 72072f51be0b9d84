package middleware

import (
	"fmt"
	"net/http"
	"sync"

	"messenger/internal/httputil"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const maxLimiterKeys = 10000

type keyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (k *keyedLimiter) allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	limiter, ok := k.limiters[key]
	if !ok {
		if len(k.limiters) >= maxLimiterKeys {
			k.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(k.limit, k.burst)
		k.limiters[key] = limiter
	}
	return limiter.Allow()
}

// RateLimit throttles per authenticated user, falling back to the client IP.
// A non-positive perMinute disables limiting.
func RateLimit(perMinute, burst int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := &keyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, ok := httputil.UserID(c); ok {
			key = fmt.Sprintf("user:%d", userID)
		}
		if !limiter.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
