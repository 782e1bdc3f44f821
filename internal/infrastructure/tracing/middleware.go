package tracing

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/relay/internal/infrastructure/monitoring"
)

// HTTPMiddleware opens a request span per API call. An incoming X-Trace-ID
// is adopted so a caller can follow its request into module invocations;
// the trace and span IDs are echoed back on the response.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := withSpan(c.Request.Context(),
			TraceID(c.GetHeader(HeaderTraceID)),
			SpanID(c.GetHeader(HeaderSpanID)),
		)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		span, ctx := tracer.StartRequest(ctx, c.Request.Method, route)
		c.Request = c.Request.WithContext(ctx)
		if span != nil {
			c.Header(HeaderTraceID, string(span.TraceID))
			c.Header(HeaderSpanID, string(span.SpanID))
		}

		c.Next()

		if span == nil {
			return
		}
		status := c.Writer.Status()
		span.Status = status

		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		span.End(monitoring.StatusClass(status), err)
		tracer.Submit(span)
	}
}
