package tracing

import (
	"strconv"
	"time"

	"github.com/GriffinCanCode/tracekit/transport"
)

// SDK identity merged into every span record
const (
	SDKName     = "tracekit-go"
	SDKLanguage = "go"
)

// TimeLayout is RFC 3339 with a fixed nine-digit fraction.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SpanRecord is the wire form of a finished span. Empty fields are omitted.
type SpanRecord struct {
	TraceID    string            `json:"trace_id"`
	SpanID     string            `json:"span_id"`
	ParentID   string            `json:"parent_id,omitempty"`
	Namespace  string            `json:"namespace,omitempty"`
	Name       string            `json:"name,omitempty"`
	Kind       Kind              `json:"kind,omitempty"`
	StartTime  string            `json:"start_time,omitempty"`
	Duration   string            `json:"duration,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	ErrorData  string            `json:"error_data,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Record returns the span's transport form. The duration is a decimal
// string of nanoseconds so 64-bit float JSON consumers do not lose precision.
func (s *Span) Record() SpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs := make(map[string]string, len(s.attributes)+3)
	for k, v := range s.attributes {
		attrs[k] = v
	}
	attrs["telemetry.sdk.name"] = SDKName
	attrs["telemetry.sdk.version"] = transport.Version
	attrs["telemetry.sdk.language"] = SDKLanguage

	rec := SpanRecord{
		TraceID:    s.traceID,
		SpanID:     s.spanID,
		ParentID:   s.parentID,
		Namespace:  s.namespace,
		Name:       s.name,
		Kind:       s.kind,
		Duration:   strconv.FormatInt(int64(s.duration), 10),
		StatusCode: s.statusCode,
		ErrorData:  s.errorData,
		Attributes: attrs,
	}
	if !s.start.IsZero() {
		rec.StartTime = formatTime(s.start)
	}
	return rec
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
