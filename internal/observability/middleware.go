// Package observability carries the gin request logging and metrics
// middleware shared by host routers.
package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/metrics"
)

// ContextKeyConnID is the gin context key holding a bridge connection id.
const ContextKeyConnID = "conn_id"

// RequestLogger logs one line per request once the handler returns. A bridge
// upgrade returns when its socket closes, so it is logged as a session with
// the connection id and the time the socket was open.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := routeOf(c)
		connID := c.GetString(ContextKeyConnID)

		if connID != "" {
			logger.Info().
				Str("conn_id", connID).
				Str("route", route).
				Dur("open_for", time.Since(start)).
				Str("client_ip", c.ClientIP()).
				Msg("bridge_session")
			return
		}

		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http_request")
	}
}

// RequestMetricsMiddleware records request counts and latency per route.
// Bridge sessions are counted by the connection gauge instead.
func RequestMetricsMiddleware(component string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.GetString(ContextKeyConnID) != "" {
			return
		}
		metrics.RecordHTTPRequest(component, c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
