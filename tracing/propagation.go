package tracing

import (
	"context"
	"net/http"
	"strings"

	"github.com/GriffinCanCode/tracekit/internal/shared/id"
)

// TraceparentHeader is the W3C Trace Context header name.
const TraceparentHeader = "traceparent"

const (
	traceparentVersion = "00"
	traceparentSampled = "01"
)

// FormatTraceparent encodes a trace and span ID as a version 00, sampled
// traceparent value.
func FormatTraceparent(traceID, spanID string) string {
	return traceparentVersion + "-" + traceID + "-" + spanID + "-" + traceparentSampled
}

// ParseTraceparent decodes a traceparent value. It is stricter than a bare
// four-field split: a value with four fields is still rejected when the IDs
// are not hex of 32 and 16 characters, either ID is all zeros, the version
// is ff or not two hex digits, or the flags are not two hex digits.
// Every rejection reports ok=false, meaning "no incoming context".
func ParseTraceparent(header string) (traceID, parentSpanID string, ok bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 {
		return "", "", false
	}

	version, traceID, parentSpanID, flags := parts[0], parts[1], parts[2], parts[3]
	if !isHex(version, 2) || strings.EqualFold(version, "ff") || !isHex(flags, 2) {
		return "", "", false
	}
	if !id.IsTraceID(traceID) || !id.IsSpanID(parentSpanID) {
		return "", "", false
	}
	return strings.ToLower(traceID), strings.ToLower(parentSpanID), true
}

func isHex(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// Inject writes span's traceparent into header. Nil and inert spans are
// skipped.
func Inject(span *Span, header http.Header) {
	if span == nil || span.IsInert() {
		return
	}
	header.Set(TraceparentHeader, FormatTraceparent(span.TraceID(), span.SpanID()))
}

// InjectContext injects the active span of ctx.
func InjectContext(ctx context.Context, header http.Header) {
	Inject(ActiveSpan(ctx), header)
}

// Extract reads the incoming trace context from header.
func Extract(header http.Header) (traceID, parentSpanID string, ok bool) {
	value := header.Get(TraceparentHeader)
	if value == "" {
		return "", "", false
	}
	return ParseTraceparent(value)
}

// remoteParent turns an extracted context into span options
func remoteParent(traceID, parentSpanID string, ok bool) []SpanOption {
	if !ok {
		return nil
	}
	return []SpanOption{WithRemoteParent(traceID, parentSpanID)}
}
