package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

type Handler = gin.HandlerFunc

// RequestID propagates an inbound request ID or mints one, echoing it on
// the response so lifecycle operations can be traced through the logs.
func RequestID() Handler {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, id)
		c.Set("request_id", id)
		c.Next()
	}
}

// AccessLog writes one structured line per request. Paths in skip are not
// logged; health and scrape traffic would otherwise drown out the module
// operations the log exists for. The module route parameter, when
// present, is promoted to its own field.
func AccessLog(l *slog.Logger, skip ...string) Handler {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if _, ok := skipped[path]; ok {
			return
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client", c.ClientIP(),
			"req_id", c.GetString("request_id"),
		}
		if module := c.Param("name"); module != "" {
			attrs = append(attrs, "module", module)
		}
		l.Info("http_access", attrs...)
	}
}

// RecoveryProblem converts panics into the same problem+json shape the
// handlers use for coordinator errors.
func RecoveryProblem(l *slog.Logger) Handler {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				l.Error("panic recovered",
					"error", rec,
					"path", c.Request.URL.Path,
					"req_id", c.GetString("request_id"),
				)
				writeProblem(c, http.StatusInternalServerError, "unexpected server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
