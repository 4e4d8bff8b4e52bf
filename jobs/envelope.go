package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/tracekit/internal/shared/id"
	"github.com/GriffinCanCode/tracekit/tracing"
	"github.com/bytedance/sonic"
)

// Envelope is a job payload tagged with the trace context it was enqueued
// under. Empty IDs mean the job was enqueued outside any span.
type Envelope struct {
	TraceID      string          `json:"trace_id,omitempty"`
	ParentSpanID string          `json:"parent_span_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

// Wrap encodes payload and captures ctx's active span.
func Wrap(ctx context.Context, payload any) (Envelope, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode job payload: %w", err)
	}

	env := Envelope{Payload: data}
	if span := tracing.ActiveSpan(ctx); span != nil && !span.IsInert() {
		env.TraceID = span.TraceID()
		env.ParentSpanID = span.SpanID()
	}
	return env, nil
}

// Unwrap decodes the original payload into v.
func (e Envelope) Unwrap(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("failed to decode job payload: empty payload")
	}
	if err := sonic.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode job payload: %w", err)
	}
	return nil
}

// Marshal serializes the envelope for a queue.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := sonic.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job envelope: %w", err)
	}
	return data, nil
}

// Decode restores an envelope written by Marshal. Data that is not an
// envelope becomes the payload of an envelope without trace context.
func Decode(data []byte) Envelope {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil || len(env.Payload) == 0 {
		return Envelope{Payload: json.RawMessage(data)}
	}
	return env
}

// Parent returns the captured trace context, ok=false when it is absent or
// malformed.
func (e Envelope) Parent() (traceID, parentSpanID string, ok bool) {
	if !id.IsTraceID(e.TraceID) || !id.IsSpanID(e.ParentSpanID) {
		return "", "", false
	}
	return strings.ToLower(e.TraceID), strings.ToLower(e.ParentSpanID), true
}
