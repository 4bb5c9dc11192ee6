package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"newsletter-go/internal/logging"
	"newsletter-go/internal/ratelimit"
)

// RateLimit applies a fixed-window limit per client IP and reports it with
// the RateLimit-* headers.
func RateLimit(limiter *ratelimit.FixedWindow, logger *logging.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}

		d := limiter.Allow(key)
		resetSecs := int(math.Ceil(time.Until(d.ResetAt).Seconds()))
		if resetSecs < 0 {
			resetSecs = 0
		}

		h := c.Writer.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(resetSecs))

		if !d.Allowed {
			h.Set("Retry-After", strconv.Itoa(resetSecs))
			logger.WarnWithTracing(c.Request.Context(), "Rate limit exceeded", logrus.Fields{
				"client_ip": key,
				"path":      c.Request.URL.Path,
			})
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"error": "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}
