package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"owlet/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterStore keeps per-key token buckets for the single-node
// fallback path.
type rateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(s.rate, s.burst)
		s.limiters[key] = limiter
	}
	return limiter
}

// clientIP extracts the IP part from the request's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := net.ParseIP(xff); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimitKey prefers the authenticated identity so one user cannot
// burn another's budget behind a shared NAT.
func rateLimitKey(c *gin.Context) string {
	if identity, ok := IdentityFrom(c); ok {
		return "ratelimit:user:" + string(identity.UserID)
	}
	return "ratelimit:ip:" + clientIP(c.Request)
}

// RateLimitMiddleware applies a fixed-window request budget per user
// (or per IP before authentication). With a redis client the window is
// shared across gateway instances; without one each instance counts on
// its own. Redis trouble fails open, a limiter outage must not become
// an API outage.
//
// Websocket upgrades are exempt: a long-lived connection is one request,
// and the socket layer carries its own per-connection frame limiter.
func RateLimitMiddleware(cfg *config.Config, rdb *redis.Client, logger *zap.SugaredLogger) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limit := cfg.RateLimiting.RequestsPerWindow
	window := cfg.RateLimiting.Window

	var store *rateLimiterStore
	if rdb == nil {
		perSecond := float64(limit) / window.Seconds()
		store = newRateLimiterStore(rate.Limit(perSecond), limit)
	}

	return func(c *gin.Context) {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			c.Next()
			return
		}

		key := rateLimitKey(c)

		if rdb == nil {
			if !store.getLimiter(key).Allow() {
				tooManyRequests(c, window)
				return
			}
			c.Next()
			return
		}

		ctx := c.Request.Context()
		pipe := rdb.Pipeline()
		count := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warnw("rate limiter unavailable, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		if count.Val() > int64(limit) {
			tooManyRequests(c, window)
			return
		}
		c.Next()
	}
}

func tooManyRequests(c *gin.Context, window time.Duration) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       "RATE_LIMIT_EXCEEDED",
		"message":     "rate limit exceeded",
		"retry_after": int(window.Seconds()),
	})
}
