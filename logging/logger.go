package logging

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ginKey = "logger"

// New builds the process logger: JSON in production, console output in development.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// WithRequestID returns a child logger tagged with the request id.
func WithRequestID(log *zap.Logger, requestID string) *zap.Logger {
	return log.With(zap.String("request_id", requestID))
}

// Set stores a request scoped logger on the gin context.
func Set(c *gin.Context, log *zap.Logger) {
	c.Set(ginKey, log)
}

// From returns the request scoped logger, or fallback when none was set.
func From(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if v, ok := c.Get(ginKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}
