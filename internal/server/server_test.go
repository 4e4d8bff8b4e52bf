package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/tracekit/config"
	"github.com/GriffinCanCode/tracekit/tracing"
	"github.com/GriffinCanCode/tracekit/transport"
	"github.com/GriffinCanCode/tracekit/transport/transporttest"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestServer(t *testing.T, rateLimit *RateLimitConfig) (*Server, *tracing.Client, *transporttest.Recorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.APIKey = "test-key"
	cfg.ServiceName = "shop"
	cfg.JobNamespace = "shop-jobs"
	cfg.FlushInterval = time.Hour

	rec := transporttest.NewRecorder()
	client := tracing.New(cfg, tracing.WithSender(rec), tracing.WithLogger(zap.NewNop()))
	srv := NewServer(Config{Development: true, RateLimit: rateLimit}, client, zap.NewNop())
	srv.Queue().Start()

	t.Cleanup(func() {
		_ = srv.Queue().Close(context.Background())
		_ = client.Shutdown(context.Background())
	})
	return srv, client, rec
}

func spans(t *testing.T, client *tracing.Client, rec *transporttest.Recorder) map[string]tracing.SpanRecord {
	t.Helper()
	client.Flush(context.Background())

	out := make(map[string]tracing.SpanRecord)
	for _, b := range rec.Of(transport.KindSpans) {
		for _, s := range b.Records.([]tracing.SpanRecord) {
			out[s.Name] = s
		}
	}
	return out
}

func TestCreateOrderTraceReachesJob(t *testing.T) {
	srv, client, rec := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"item":"book","quantity":2}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "job_")
	require.NoError(t, srv.Queue().Close(context.Background()))

	got := spans(t, client, rec)
	request, ok := got["POST /orders"]
	require.True(t, ok)
	reserve, ok := got["reserve inventory"]
	require.True(t, ok)
	confirm, ok := got[JobConfirmOrder]
	require.True(t, ok)

	assert.Equal(t, request.SpanID, reserve.ParentID)
	assert.Equal(t, request.TraceID, confirm.TraceID)
	assert.Equal(t, request.SpanID, confirm.ParentID)
	assert.Equal(t, tracing.KindConsumer, confirm.Kind)
	assert.Equal(t, "shop-jobs", confirm.Namespace)
	assert.Equal(t, http.StatusAccepted, request.StatusCode)

	assert.Equal(t, 1, rec.Calls(transport.KindMetrics))
	assert.Equal(t, 1, rec.Calls(transport.KindLogs))
}

func TestCreateOrderOutOfStock(t *testing.T) {
	srv, client, rec := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"item":"book","quantity":1000}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)

	got := spans(t, client, rec)
	assert.Equal(t, http.StatusInternalServerError, got["reserve inventory"].StatusCode)
	assert.Equal(t, http.StatusConflict, got["POST /orders"].StatusCode)
	assert.Contains(t, got["POST /orders"].ErrorData, ErrOutOfStock.Error())
	assert.Equal(t, int64(0), srv.Queue().Stats().Enqueued)
}

func TestCreateOrderInvalidBody(t *testing.T) {
	srv, _, _ := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"item":""}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthNotTraced(t *testing.T) {
	srv, client, rec := setupTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, spans(t, client, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := setupTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tracekit_items_queued_total")
}

func TestRateLimit(t *testing.T) {
	srv, client, rec := setupTestServer(t, &RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	event, ok := spans(t, client, rec)["rate_limited"]
	require.True(t, ok)
	assert.Equal(t, tracing.KindEvent, event.Kind)
}

func TestCORSAllowsTraceparent(t *testing.T) {
	srv, _, _ := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "traceparent")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "traceparent")
}

func TestStreamEcho(t *testing.T) {
	srv, client, rec := setupTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, _, err := tracing.DialWebsocket(context.Background(), client, nil, url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(msg))
	conn.Close()

	require.Eventually(t, func() bool {
		_, ok := spans(t, client, rec)["GET /stream"]
		return ok
	}, time.Second, 10*time.Millisecond)

	got := spans(t, client, rec)
	server := got["GET /stream"]
	dial := got["WS "+url]
	event := got["ws.message"]
	assert.Equal(t, dial.SpanID, server.ParentID)
	assert.Equal(t, server.SpanID, event.ParentID)
	assert.Equal(t, "4", event.Attributes["ws.bytes"])
}

func TestRun(t *testing.T) {
	srv, _, _ := setupTestServer(t, nil)
	srv.cfg.HTTPAddr = "127.0.0.1:0"
	srv.http.Addr = "127.0.0.1:0"
	srv.cfg.GRPCAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, srv.Close(context.Background()))
}
