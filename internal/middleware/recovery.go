package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"newsletter-go/internal/logging"
)

// Recovery turns a panic into a generic 500 JSON body. The panic value is
// only logged.
func Recovery(logger *logging.ContextLogger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.ErrorWithTracing(c.Request.Context(), "Recovered from panic", fmt.Errorf("%v", recovered), logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": "internal server error",
		})
	})
}
