package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader is the header used to carry the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key the id is stored under.
const RequestIDKey = "request_id"

// RequestID assigns every request a correlation id. An id supplied by the
// caller is kept so upstream gateways can stitch their own traces together;
// otherwise a fresh UUID is minted. The id is echoed on the response and
// attached to the active span.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			span.SetAttributes(attribute.String("http.request_id", requestID))
		}

		c.Next()
	}
}

// GetRequestID returns the correlation id for the current request, or an
// empty string when the middleware is not installed.
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get(RequestIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
