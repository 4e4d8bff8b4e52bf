package transport

import "context"

// Kind names the buffer a batch came from and selects its endpoint.
type Kind string

const (
	KindSpans   Kind = "spans"
	KindLogs    Kind = "logs"
	KindMetrics Kind = "metrics"
)

// Kinds lists every batch kind in flush order.
var Kinds = []Kind{KindSpans, KindLogs, KindMetrics}

// Sender delivers one batch. Implementations must not block past ctx and
// must swallow every error.
type Sender interface {
	Send(ctx context.Context, kind Kind, records any)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, kind Kind, records any)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, kind Kind, records any) {
	f(ctx, kind, records)
}

// Discard is a Sender that drops everything.
var Discard Sender = SenderFunc(func(context.Context, Kind, any) {})
