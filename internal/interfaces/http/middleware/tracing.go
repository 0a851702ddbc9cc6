package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request via otelgin. Span names follow
// "METHOD /route/:pattern". otelgin runs the rest of the chain inside the span,
// so SpanAttributes and SpanErrorMarker must come after it.
func Tracing(serviceName string, opts ...otelgin.Option) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, opts...)
}

// SpanAttributes tags the server span with the request and actor IDs
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		enrichSpan(c)
		c.Next()
	}
}

func enrichSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}
	if id := GetRequestID(c); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}
	if actor := GetActorID(c); actor != "" {
		span.SetAttributes(attribute.String("actor_id", actor))
	}
}

// SpanErrorMarker marks the span as failed for 4xx/5xx responses.
// Place it after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if code, ok := c.Get(errorCodeKey); ok {
			span.SetAttributes(attribute.String("error.code", code.(string)))
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

const errorCodeKey = "error_code"

// SetErrorCode records the API error code so SpanErrorMarker can attach it
func SetErrorCode(c *gin.Context, code string) {
	c.Set(errorCodeKey, code)
}
