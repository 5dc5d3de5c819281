// Package middleware provides the gin middleware shared by every route:
// request IDs, access logging, CORS and span enrichment.
package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryMiddleware annotates the server span started by otelgin with the
// analytics-specific request details and sets its status from the response
// code. Handler errors reach the span through RecordError. It must be
// registered after otelgin.Middleware.
func TelemetryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		attrs := []attribute.KeyValue{
			attribute.String("http.client_ip", c.ClientIP()),
		}
		if asset := c.Param("asset"); asset != "" {
			attrs = append(attrs, attribute.String("analytics.asset", asset))
		}
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			attrs = append(attrs, attribute.String("http.request_id", requestID))
		}
		span.SetAttributes(attrs...)

		start := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		span.SetAttributes(
			attribute.Int64("http.response.time_ms", time.Since(start).Milliseconds()),
			attribute.Int64("http.response.size_bytes", int64(c.Writer.Size())),
		)
		if c.FullPath() == "/health" {
			span.SetAttributes(attribute.String("health.status", getHealthStatusFromCode(statusCode)))
		}

		if statusCode >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
		}
	}
}

// RecordError attaches err to the request span as an event carrying the
// response status. Server errors also mark the span failed.
func RecordError(c *gin.Context, err error, status int) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.Int("http.response.status_code", status)))
	if status >= 500 {
		span.SetStatus(codes.Error, err.Error())
	}
}

// getHealthStatusFromCode returns a human-readable status based on HTTP code
func getHealthStatusFromCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "healthy"
	case code >= 400 && code < 500:
		return "client_error"
	case code >= 500:
		return "server_error"
	default:
		return "unknown"
	}
}
