package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "requestId"
)

// RequestLogger tags each request with an id and logs it once it completes.
func RequestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"ip":         c.ClientIP(),
		})
		if p := CurrentPrincipal(c); !p.IsAnonymous() {
			entry = entry.WithField("user", p.Username)
		}
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Error("Request failed")
			return
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request completed")
		case status >= 400:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

// RequestID returns the id assigned by RequestLogger.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
