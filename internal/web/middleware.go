package web

import (
	"strconv"
	"time"

	"github.com/nconklindev/sheet2xml/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SecurityHeaders sets the browser hardening headers on every response.
// apiOrigin is allowed as a connect-src next to 'self'.
func SecurityHeaders(apiOrigin string) gin.HandlerFunc {
	csp := "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'"
	if apiOrigin != "" {
		csp += " " + apiOrigin
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", csp)
		c.Next()
	}
}

// LoggingMiddleware logs each request once it has been served and records
// it in the HTTP metrics.
func LoggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		event := log.Info()
		if status >= 500 {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}
