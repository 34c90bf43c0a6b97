package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/medscan/scangate/internal/config"
	"golang.org/x/time/rate"
)

// principalLimiters holds one token bucket per authenticated user, with a
// shared bucket for anonymous traffic keyed by client IP.
type principalLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newPrincipalLimiters(cfg *config.Config) *principalLimiters {
	rps := rate.Limit(20)
	burst := 40
	if cfg != nil {
		if cfg.RateLimit.RPS > 0 {
			rps = rate.Limit(cfg.RateLimit.RPS)
		}
		if cfg.RateLimit.Burst > 0 {
			burst = cfg.RateLimit.Burst
		}
	}
	return &principalLimiters{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (p *principalLimiters) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	limiter, ok := p.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(p.rps, p.burst)
		p.limiters[key] = limiter
	}
	return limiter
}

// RateLimit throttles per principal. Place after the auth middleware so
// authenticated users get their own bucket.
func RateLimit(cfg *config.Config) gin.HandlerFunc {
	limiters := newPrincipalLimiters(cfg)
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if user := CurrentUser(c); user != nil {
			key = "user:" + strconv.FormatInt(user.ID, 10)
		}
		if !limiters.get(key).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"detail": "请求过于频繁，请稍后重试"})
			c.Abort()
			return
		}
		c.Next()
	}
}
