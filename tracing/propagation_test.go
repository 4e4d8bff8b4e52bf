package tracing

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sampleTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	sampleSpanID  = "00f067aa0ba902b7"
)

func TestFormatTraceparent(t *testing.T) {
	assert.Equal(t,
		"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		FormatTraceparent(sampleTraceID, sampleSpanID))
}

func TestTraceparentRoundTrip(t *testing.T) {
	client, _ := newTestClient(t, nil)

	for i := 0; i < 20; i++ {
		_, span := client.StartSpan(context.Background(), "op")

		traceID, parentID, ok := ParseTraceparent(FormatTraceparent(span.TraceID(), span.SpanID()))

		require.True(t, ok)
		assert.Equal(t, span.TraceID(), traceID)
		assert.Equal(t, span.SpanID(), parentID)
	}
}

func TestParseTraceparent(t *testing.T) {
	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"valid", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", true},
		{"unsampled", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-00", true},
		{"future version", "01-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", true},
		{"surrounding space", "  00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01 ", true},
		{"empty", "", false},
		{"garbage", "not-a-header", false},
		{"three fields", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7", false},
		{"five fields", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01-extra", false},
		{"short trace", "00-4bf92f3577b34da6a3ce929d0e0e47-00f067aa0ba902b7-01", false},
		{"short span", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902-01", false},
		{"zero trace", "00-00000000000000000000000000000000-00f067aa0ba902b7-01", false},
		{"zero span", "00-4bf92f3577b34da6a3ce929d0e0e4736-0000000000000000-01", false},
		{"non hex trace", "00-4bf92f3577b34da6a3ce929d0e0e47zz-00f067aa0ba902b7-01", false},
		{"non hex flags", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-zz", false},
		{"version ff", "ff-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", false},
		{"long version", "000-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traceID, parentID, ok := ParseTraceparent(tt.header)

			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, sampleTraceID, traceID)
				assert.Equal(t, sampleSpanID, parentID)
			} else {
				assert.Empty(t, traceID)
				assert.Empty(t, parentID)
			}
		})
	}
}

func TestParseTraceparentLowercases(t *testing.T) {
	traceID, parentID, ok := ParseTraceparent("00-4BF92F3577B34DA6A3CE929D0E0E4736-00F067AA0BA902B7-01")

	require.True(t, ok)
	assert.Equal(t, sampleTraceID, traceID)
	assert.Equal(t, sampleSpanID, parentID)
}

func TestInjectExtract(t *testing.T) {
	client, _ := newTestClient(t, nil)
	ctx, span := client.StartSpan(context.Background(), "op")

	header := http.Header{}
	Inject(span, header)
	traceID, parentID, ok := Extract(header)
	require.True(t, ok)
	assert.Equal(t, span.TraceID(), traceID)
	assert.Equal(t, span.SpanID(), parentID)

	fromCtx := http.Header{}
	InjectContext(ctx, fromCtx)
	assert.Equal(t, header.Get(TraceparentHeader), fromCtx.Get(TraceparentHeader))
}

func TestInjectSkipsInertAndNil(t *testing.T) {
	header := http.Header{}

	Inject(nil, header)
	Inject(inertSpan("x"), header)
	InjectContext(context.Background(), header)

	assert.Empty(t, header)
	_, _, ok := Extract(header)
	assert.False(t, ok)
}
