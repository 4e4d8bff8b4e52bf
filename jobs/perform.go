package jobs

import (
	"context"

	"github.com/GriffinCanCode/tracekit/tracing"
)

// Perform runs fn as job name inside a consumer span.
//
// The span continues the envelope's trace, or starts a new one when the
// envelope has no valid context; the caller's active span is never used as
// parent. Its namespace is the configured job namespace. Errors and panics from fn are recorded
// and passed through unchanged.
func Perform(ctx context.Context, client *tracing.Client, name string, env Envelope, fn func(ctx context.Context, span *tracing.Span) error, opts ...tracing.SpanOption) error {
	traceID, parentSpanID, _ := env.Parent()

	spanOpts := make([]tracing.SpanOption, 0, len(opts)+2)
	spanOpts = append(spanOpts,
		tracing.WithKind(tracing.KindConsumer),
		tracing.WithRemoteParent(traceID, parentSpanID))
	spanOpts = append(spanOpts, opts...)

	return client.Trace(ctx, name, fn, spanOpts...)
}
