package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/careercopilot/internal/pkg/errcode"
	"github.com/xxxsen/careercopilot/internal/pkg/response"
)

const rateLimitKeys = 10000

// rateLimiter admits one request per key per window. Keys expire from the
// LRU once their window has passed, so memory stays bounded.
type rateLimiter struct {
	window time.Duration
	last   *expirable.LRU[string, time.Time]
	now    func() time.Time
}

func newRateLimiter(window time.Duration) *rateLimiter {
	return &rateLimiter{
		window: window,
		last:   expirable.NewLRU[string, time.Time](rateLimitKeys, nil, window),
		now:    time.Now,
	}
}

// RateLimit keys on client ip, user and route. A non positive window
// disables it.
func RateLimit(window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return newRateLimiter(window).handle
}

func (l *rateLimiter) handle(c *gin.Context) {
	ip := c.ClientIP()
	uid := "0"
	if id := c.GetString(ContextUserIDKey); id != "" {
		uid = id
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	key := strings.Join([]string{ip, uid, path}, "|")

	now := l.now()
	if last, ok := l.last.Get(key); ok && now.Sub(last) < l.window {
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("ip", ip),
			zap.String("user_id", uid),
			zap.String("path", path),
		)
		response.Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
		c.Abort()
		return
	}
	l.last.Add(key, now)
	c.Next()
}
