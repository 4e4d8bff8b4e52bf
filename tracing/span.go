package tracing

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Reserved attribute keys
const (
	AttrMetricValue = "metric.value"
	AttrInstanceID  = "service.instance.id"
)

// Span is one timed operation in a trace.
//
// Identity (trace, span and parent IDs, kind, start time) never changes after
// creation. Everything else is guarded by the span's own mutex, so a span may
// be shared between goroutines. Finish is idempotent: the first call fixes the
// duration and hands the span to its client, later calls do nothing.
//
// A disabled client hands out inert spans. Every method works on them and
// none has an effect, so call sites never check whether tracing is on.
type Span struct {
	traceID  string
	spanID   string
	parentID string
	kind     Kind
	start    time.Time
	client   *Client

	mu         sync.Mutex
	name       string
	namespace  string
	statusCode int
	errorData  string
	attributes map[string]string
	ended      bool
	duration   time.Duration
}

// inertSpan returns a span that ignores every mutation.
func inertSpan(name string) *Span {
	return &Span{
		kind:       KindInternal,
		name:       name,
		statusCode: http.StatusOK,
		ended:      true,
	}
}

// TraceID returns the 32-character hex trace ID, empty for inert spans
func (s *Span) TraceID() string { return s.traceID }

// SpanID returns the 16-character hex span ID, empty for inert spans
func (s *Span) SpanID() string { return s.spanID }

// ParentID returns the parent span ID, empty for root spans
func (s *Span) ParentID() string { return s.parentID }

// Kind returns the span kind
func (s *Span) Kind() Kind { return s.kind }

// StartTime returns when the span started
func (s *Span) StartTime() time.Time { return s.start }

// IsRoot reports whether the span has no parent
func (s *Span) IsRoot() bool { return s.parentID == "" }

// IsInert reports whether the span came from a disabled client
func (s *Span) IsInert() bool { return s.spanID == "" }

// Name returns the span name
func (s *Span) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Namespace returns the logical service the span belongs to
func (s *Span) Namespace() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namespace
}

// StatusCode returns the HTTP-style status, 200 unless changed
func (s *Span) StatusCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCode
}

// ErrorData returns the recorded error string, empty if none
func (s *Span) ErrorData() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorData
}

// Attribute returns one attribute value
func (s *Span) Attribute(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attributes[key]
	return v, ok
}

// Attributes returns a copy of the attributes
func (s *Span) Attributes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// Ended reports whether Finish has been called
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Duration returns the duration fixed by Finish, zero while running
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// SetAttribute stores key=value. The last write for a key wins.
func (s *Span) SetAttribute(key, value string) {
	if s.IsInert() {
		return
	}
	s.mu.Lock()
	s.attributes[key] = value
	s.mu.Unlock()
}

// SetAttributeValue stores the fmt.Sprint form of value.
func (s *Span) SetAttributeValue(key string, value any) {
	s.SetAttribute(key, fmt.Sprint(value))
}

// MergeAttributes stores every pair in attrs. A nil map is a no-op.
func (s *Span) MergeAttributes(attrs map[string]string) {
	if s.IsInert() || len(attrs) == 0 {
		return
	}
	s.mu.Lock()
	for k, v := range attrs {
		s.attributes[k] = v
	}
	s.mu.Unlock()
}

// RecordError stores "<type>: <message>" for err and raises the status to
// 500 unless it already reports a failure. A nil error is ignored.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.RecordErrorMessage(fmt.Sprintf("%T: %s", err, err.Error()))
}

// RecordErrorMessage stores msg verbatim with the same status rule as
// RecordError.
func (s *Span) RecordErrorMessage(msg string) {
	if s.IsInert() {
		return
	}
	s.mu.Lock()
	s.errorData = msg
	if s.statusCode < http.StatusBadRequest {
		s.statusCode = http.StatusInternalServerError
	}
	s.mu.Unlock()
}

// recordPanic records a recovered panic value
func (s *Span) recordPanic(v any) {
	if err, ok := v.(error); ok {
		s.RecordError(err)
		return
	}
	s.RecordErrorMessage(fmt.Sprintf("panic: %v", v))
}

// SetStatus sets the status code
func (s *Span) SetStatus(code int) {
	if s.IsInert() {
		return
	}
	s.mu.Lock()
	s.statusCode = code
	s.mu.Unlock()
}

// SetName renames the span
func (s *Span) SetName(name string) {
	if s.IsInert() {
		return
	}
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// SetNamespace changes the span's namespace
func (s *Span) SetNamespace(namespace string) {
	if s.IsInert() {
		return
	}
	s.mu.Lock()
	s.namespace = namespace
	s.mu.Unlock()
}

// Finish ends the span and queues it for delivery. Only the first call has
// any effect.
func (s *Span) Finish() {
	s.end(false)
}

// end marks the span finished. instant records a zero duration.
func (s *Span) end(instant bool) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	if !instant {
		s.duration = time.Since(s.start)
	}
	s.mu.Unlock()

	// Queue outside the span lock: a size-triggered flush serializes this span
	if s.client != nil {
		s.client.queueSpan(s)
	}
}
