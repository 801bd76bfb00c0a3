package middleware

import (
	"fmt"

	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware starts a server span per request and exposes its trace ID
// in the X-Trace-ID response header.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
				attribute.String("http.ip", c.IP()),
				attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		if requestID := c.Locals("requestid"); requestID != nil {
			span.SetAttributes(attribute.String("request.id", fmt.Sprintf("%v", requestID)))
		}
		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Set("X-Trace-ID", sc.TraceID().String())
		}
		c.SetUserContext(ctx)

		err := c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Response().StatusCode()))
		if userID, ok := c.Locals("userID").(uint); ok {
			span.SetAttributes(attribute.Int64("user.id", int64(userID)))
		}
		observability.RecordError(span, err)
		return err
	}
}
