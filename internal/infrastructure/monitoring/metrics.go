package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flush triggers
const (
	TriggerSize     = "size"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
	TriggerShutdown = "shutdown"
)

// Send results
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultRejected = "rejected"
)

// Metrics holds the agent's self-observation metrics
type Metrics struct {
	// Buffer metrics
	Queued   *prometheus.CounterVec
	Dropped  *prometheus.CounterVec
	Buffered *prometheus.GaugeVec

	// Flush metrics
	Flushes   *prometheus.CounterVec
	BatchSize *prometheus.HistogramVec

	// Transport metrics
	Sends        *prometheus.CounterVec
	SendDuration *prometheus.HistogramVec
	BreakerState prometheus.Gauge

	registry *prometheus.Registry

	// Snapshot for Client.Dropped and tests
	snapshot map[string]*BufferSnapshot
	mu       sync.RWMutex
}

// BufferSnapshot holds running totals for one buffer
type BufferSnapshot struct {
	Queued  int64
	Dropped int64
	Flushed int64
}

// NewMetrics creates metrics on a private registry, so several clients
// can live in one process without registration conflicts.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

// NewMetricsWith creates metrics on the given registry.
func NewMetricsWith(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		snapshot: make(map[string]*BufferSnapshot),

		Queued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracekit_items_queued_total",
				Help: "Items accepted into an agent buffer",
			},
			[]string{"buffer"},
		),
		Dropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracekit_items_dropped_total",
				Help: "Items dropped because an agent buffer was full",
			},
			[]string{"buffer"},
		),
		Buffered: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tracekit_items_buffered",
				Help: "Items currently held in an agent buffer",
			},
			[]string{"buffer"},
		),
		Flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracekit_flushes_total",
				Help: "Non-empty buffer flushes by trigger",
			},
			[]string{"buffer", "trigger"},
		),
		BatchSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracekit_batch_size",
				Help:    "Items per flushed batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"buffer"},
		),
		Sends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracekit_sends_total",
				Help: "Batches handed to the transport by result",
			},
			[]string{"kind", "result"},
		),
		SendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracekit_send_duration_seconds",
				Help:    "Transport request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		BreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracekit_breaker_state",
				Help: "Ingest circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),
	}

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordQueued records an item accepted into a buffer
func (m *Metrics) RecordQueued(buffer string, size int) {
	m.Queued.WithLabelValues(buffer).Inc()
	m.Buffered.WithLabelValues(buffer).Set(float64(size))

	m.mu.Lock()
	m.entry(buffer).Queued++
	m.mu.Unlock()
}

// RecordDropped records an item rejected by a full buffer
func (m *Metrics) RecordDropped(buffer string) {
	m.Dropped.WithLabelValues(buffer).Inc()

	m.mu.Lock()
	m.entry(buffer).Dropped++
	m.mu.Unlock()
}

// RecordFlush records a non-empty batch leaving a buffer
func (m *Metrics) RecordFlush(buffer, trigger string, items int) {
	m.Flushes.WithLabelValues(buffer, trigger).Inc()
	m.BatchSize.WithLabelValues(buffer).Observe(float64(items))
	m.Buffered.WithLabelValues(buffer).Set(0)

	m.mu.Lock()
	m.entry(buffer).Flushed += int64(items)
	m.mu.Unlock()
}

// RecordSend records one transport call
func (m *Metrics) RecordSend(kind, result string, duration time.Duration) {
	m.Sends.WithLabelValues(kind, result).Inc()
	if result != ResultRejected {
		m.SendDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// SetBreakerState records the breaker state as a number
func (m *Metrics) SetBreakerState(state int) {
	m.BreakerState.Set(float64(state))
}

// Snapshot returns a copy of the running totals for a buffer
func (m *Metrics) Snapshot(buffer string) BufferSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.snapshot[buffer]; ok {
		return *s
	}
	return BufferSnapshot{}
}

// entry must be called with mu held
func (m *Metrics) entry(buffer string) *BufferSnapshot {
	s, ok := m.snapshot[buffer]
	if !ok {
		s = &BufferSnapshot{}
		m.snapshot[buffer] = s
	}
	return s
}
