package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"

	"github.com/customeros/violationstack/internal/tracing"
)

const TraceIdHeader = "X-Trace-Id"

// TracingMiddleware creates a new span for each request and adds common tags
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(
			c.Request.Context(),
			c.Request.Method+" "+c.FullPath(),
			c.Request.Header,
		)
		defer span.Finish()

		tracing.TagComponentRest(span)
		tracing.SetDefaultRestSpanTags(ctx, span)

		if id := c.Param("id"); id != "" {
			tracing.TagEntity(span, id)
		}

		if traceId := tracing.GetTraceId(span); traceId != "" {
			c.Header(TraceIdHeader, traceId)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetTag("http.status_code", c.Writer.Status())
		if c.Writer.Status() >= 500 {
			ext.Error.Set(span, true)
			span.LogFields(log.String("event", "error"))
		}
	}
}
