package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}

func TestRecordBufferActivity(t *testing.T) {
	m := NewMetrics()

	m.RecordQueued("spans", 1)
	m.RecordQueued("spans", 2)
	m.RecordDropped("spans")
	m.RecordFlush("spans", TriggerSize, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Queued.WithLabelValues("spans")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped.WithLabelValues("spans")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues("spans", TriggerSize)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Buffered.WithLabelValues("spans")))

	snap := m.Snapshot("spans")
	assert.Equal(t, int64(2), snap.Queued)
	assert.Equal(t, int64(1), snap.Dropped)
	assert.Equal(t, int64(2), snap.Flushed)

	assert.Equal(t, BufferSnapshot{}, m.Snapshot("logs"))
}

func TestRecordSend(t *testing.T) {
	m := NewMetrics()

	m.RecordSend("spans", ResultOK, 10*time.Millisecond)
	m.RecordSend("spans", ResultRejected, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sends.WithLabelValues("spans", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sends.WithLabelValues("spans", ResultRejected)))
}

func TestGinHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := NewMetrics()
	m.RecordDropped("logs")

	router := gin.New()
	router.GET("/metrics", GinHandler(m.Registry()))

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `tracekit_items_dropped_total{buffer="logs"} 1`))
}
