package middleware

import (
	"context"
	"time"

	"owlet/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestLoggerMiddleware assigns each request an id, plants the
// request-scoped identifiers the context logger reads, and logs the
// request with its timing once it finishes.
func RequestLoggerMiddleware(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		ctx := context.WithValue(c.Request.Context(), logger.CtxKeyRequestID, requestID)
		if identity, ok := IdentityFrom(c); ok {
			ctx = context.WithValue(ctx, logger.CtxKeyUserID, string(identity.UserID))
		}
		if span := trace.SpanFromContext(ctx); span.SpanContext().HasTraceID() {
			ctx = context.WithValue(ctx, logger.CtxKeyTraceID, span.SpanContext().TraceID().String())
		}
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		cl.LogRequest(ctx, c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Milliseconds())
	}
}
