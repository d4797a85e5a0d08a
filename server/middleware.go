package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/logging"
)

const requestIDKey = "request_id"

// RequestLogger assigns a request id and logs one line per request.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNoOp(logger)

	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = core.NewID()
		}

		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"request_id", id,
			"duration_ms", time.Since(start).Milliseconds(),
		}

		if status >= 500 {
			logger.Error("server.request", args...)
		} else {
			logger.Info("server.request", args...)
		}
	}
}
