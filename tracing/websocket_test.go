package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialWebsocketInjectsTraceparent(t *testing.T) {
	client, rec := newTestClient(t, nil)

	received := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get(TraceparentHeader)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	header := http.Header{"X-Request-Id": []string{"abc"}}

	conn, resp, err := DialWebsocket(context.Background(), client, nil, url, header)
	require.NoError(t, err)
	conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.Empty(t, header.Get(TraceparentHeader))

	client.Flush(context.Background())
	spans := sentSpans(t, rec)
	require.Len(t, spans, 1)
	assert.Equal(t, KindClient, spans[0].Kind)
	assert.Equal(t, "WS "+url, spans[0].Name)

	traceID, spanID, ok := ParseTraceparent(<-received)
	require.True(t, ok)
	assert.Equal(t, spans[0].TraceID, traceID)
	assert.Equal(t, spans[0].SpanID, spanID)
}

func TestDialWebsocketFailure(t *testing.T) {
	client, rec := newTestClient(t, nil)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := DialWebsocket(context.Background(), client, nil, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)

	client.Flush(context.Background())
	spans := sentSpans(t, rec)
	require.Len(t, spans, 1)
	assert.Equal(t, http.StatusNotFound, spans[0].StatusCode)
	assert.NotEmpty(t, spans[0].ErrorData)
}
