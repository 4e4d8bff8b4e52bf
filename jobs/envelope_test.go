package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/tracekit/config"
	"github.com/GriffinCanCode/tracekit/tracing"
	"github.com/GriffinCanCode/tracekit/transport"
	"github.com/GriffinCanCode/tracekit/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	requestTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	requestSpanID  = "00f067aa0ba902b7"
)

type emailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

func newTestClient(t *testing.T) (*tracing.Client, *transporttest.Recorder) {
	t.Helper()

	cfg := config.Default()
	cfg.APIKey = "test-key"
	cfg.ServiceName = "web"
	cfg.JobNamespace = "web-jobs"
	cfg.FlushInterval = time.Hour

	rec := transporttest.NewRecorder()
	client := tracing.New(cfg, tracing.WithSender(rec), tracing.WithLogger(zap.NewNop()))
	t.Cleanup(func() { _ = client.Shutdown(context.Background()) })
	return client, rec
}

func sentSpans(t *testing.T, client *tracing.Client, rec *transporttest.Recorder) []tracing.SpanRecord {
	t.Helper()
	client.Flush(context.Background())

	var out []tracing.SpanRecord
	for _, b := range rec.Of(transport.KindSpans) {
		out = append(out, b.Records.([]tracing.SpanRecord)...)
	}
	return out
}

func TestWrapCapturesActiveSpan(t *testing.T) {
	client, _ := newTestClient(t)
	ctx, span := client.StartSpan(context.Background(), "POST /signup")

	env, err := Wrap(ctx, emailJob{To: "a@example.com"})
	require.NoError(t, err)

	assert.Equal(t, span.TraceID(), env.TraceID)
	assert.Equal(t, span.SpanID(), env.ParentSpanID)

	var job emailJob
	require.NoError(t, env.Unwrap(&job))
	assert.Equal(t, "a@example.com", job.To)
}

func TestWrapOutsideSpan(t *testing.T) {
	env, err := Wrap(context.Background(), []int{1, 2, 3})
	require.NoError(t, err)

	assert.Empty(t, env.TraceID)
	assert.Empty(t, env.ParentSpanID)
	_, _, ok := env.Parent()
	assert.False(t, ok)
}

func TestWrapUnencodablePayload(t *testing.T) {
	_, err := Wrap(context.Background(), make(chan int))
	assert.Error(t, err)
}

func TestEnvelopeSurvivesSerialization(t *testing.T) {
	env := Envelope{TraceID: requestTraceID, ParentSpanID: requestSpanID, Payload: []byte(`{"to":"b@example.com"}`)}

	data, err := env.Marshal()
	require.NoError(t, err)
	restored := Decode(data)

	traceID, parentID, ok := restored.Parent()
	require.True(t, ok)
	assert.Equal(t, requestTraceID, traceID)
	assert.Equal(t, requestSpanID, parentID)

	var job emailJob
	require.NoError(t, restored.Unwrap(&job))
	assert.Equal(t, "b@example.com", job.To)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `definitely not json`},
		{"bare payload", `{"to":"c@example.com"}`},
		{"bad ids", `{"trace_id":"t1","parent_span_id":"s1","payload":{"to":"c@example.com"}}`},
		{"zero ids", `{"trace_id":"00000000000000000000000000000000","parent_span_id":"0000000000000000","payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Decode([]byte(tt.data))
			_, _, ok := env.Parent()
			assert.False(t, ok)
			assert.NotEmpty(t, env.Payload)
		})
	}
}

func TestUnwrapErrors(t *testing.T) {
	var job emailJob
	assert.Error(t, Envelope{}.Unwrap(&job))
	assert.Error(t, Envelope{Payload: []byte(`[1,2]`)}.Unwrap(&job))
}

func TestPerformContinuesEnqueuingTrace(t *testing.T) {
	web, _ := newTestClient(t)
	worker, rec := newTestClient(t)

	ctx, request := web.StartSpan(context.Background(), "POST /signup")
	env, err := Wrap(ctx, emailJob{To: "a@example.com"})
	require.NoError(t, err)
	data, err := env.Marshal()
	require.NoError(t, err)
	request.Finish()

	// another process picks the job up later
	var seen emailJob
	err = Perform(context.Background(), worker, "send_email", Decode(data), func(ctx context.Context, span *tracing.Span) error {
		assert.Same(t, span, tracing.ActiveSpan(ctx))
		return Decode(data).Unwrap(&seen)
	})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", seen.To)

	spans := sentSpans(t, worker, rec)
	require.Len(t, spans, 1)
	consumer := spans[0]
	assert.Equal(t, request.TraceID(), consumer.TraceID)
	assert.Equal(t, request.SpanID(), consumer.ParentID)
	assert.Equal(t, tracing.KindConsumer, consumer.Kind)
	assert.Equal(t, "web-jobs", consumer.Namespace)
	assert.Equal(t, "send_email", consumer.Name)
}

func TestPerformWithoutContextStartsTrace(t *testing.T) {
	client, rec := newTestClient(t)

	// an active span in the worker's ctx must not become the parent
	ctx, unrelated := client.StartSpan(context.Background(), "poll")
	err := Perform(ctx, client, "job", Decode([]byte("garbage")), func(ctx context.Context, span *tracing.Span) error {
		return nil
	})
	require.NoError(t, err)
	unrelated.Finish()

	consumer, ok := findSpan(sentSpans(t, client, rec), "job")
	require.True(t, ok)
	assert.NotEqual(t, unrelated.TraceID(), consumer.TraceID)
	assert.Empty(t, consumer.ParentID)
}

func TestPerformRecordsError(t *testing.T) {
	client, rec := newTestClient(t)
	boom := errors.New("smtp down")

	err := Perform(context.Background(), client, "send_email", Envelope{}, func(ctx context.Context, span *tracing.Span) error {
		return boom
	})
	assert.Same(t, boom, err)

	spans := sentSpans(t, client, rec)
	require.Len(t, spans, 1)
	assert.Equal(t, 500, spans[0].StatusCode)
	assert.Contains(t, spans[0].ErrorData, "smtp down")
}

func TestPerformRepanics(t *testing.T) {
	client, rec := newTestClient(t)

	assert.PanicsWithValue(t, "handler bug", func() {
		_ = Perform(context.Background(), client, "job", Envelope{}, func(ctx context.Context, span *tracing.Span) error {
			panic("handler bug")
		})
	})

	spans := sentSpans(t, client, rec)
	require.Len(t, spans, 1)
	assert.Equal(t, "panic: handler bug", spans[0].ErrorData)
}

func findSpan(spans []tracing.SpanRecord, name string) (tracing.SpanRecord, bool) {
	for _, s := range spans {
		if s.Name == name {
			return s, true
		}
	}
	return tracing.SpanRecord{}, false
}
