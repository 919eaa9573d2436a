package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key (user id when authenticated,
// client IP otherwise).
type RateLimiter struct {
	log      *logger.Logger
	rps      rate.Limit
	burst    int
	mu       sync.Mutex
	visitors map[string]*visitor
	swept    time.Time
	now      func() time.Time
}

func NewRateLimiter(log *logger.Logger, rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		log:      log.With("Middleware", "RateLimiter"),
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow reports whether key may proceed and forgets idle keys on the way.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	if now.Sub(rl.swept) > time.Minute {
		rl.swept = now
		for k, other := range rl.visitors {
			if now.Sub(other.lastSeen) > limiterIdleTTL {
				delete(rl.visitors, k)
			}
		}
	}
	return v.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rps <= 0 {
			c.Next()
			return
		}
		key := c.GetString("userID")
		if key == "" {
			key = c.ClientIP()
		}
		if !rl.Allow(key) {
			rl.log.Debug("Rate limited", "key", key, "path", c.FullPath())
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
