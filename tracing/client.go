package tracing

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/GriffinCanCode/tracekit/config"
	"github.com/GriffinCanCode/tracekit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tracekit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracekit/internal/shared/id"
	"github.com/GriffinCanCode/tracekit/transport"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Client creates spans, buffers finished telemetry and ships it in batches.
//
// One mutex guards the three buffers and the stopped flag. Network I/O never
// happens under it: a flush swaps a buffer out, releases the lock and then
// sends. A Client built from an invalid or disabled config is still usable;
// it hands out inert spans and never touches the network.
type Client struct {
	cfg      *config.Config
	logger   *zap.Logger
	limited  *logging.Limited
	sender   transport.Sender
	metrics  *monitoring.Metrics
	filter   *Filter
	ids      *id.Generator
	hostname string

	mu      sync.Mutex
	spans   boundedQueue[*Span]
	logs    boundedQueue[LogRecord]
	samples boundedQueue[sample]
	stopped bool

	stop chan struct{}
	done chan struct{}
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	logger   *zap.Logger
	sender   transport.Sender
	registry *prometheus.Registry
	hostname string
}

// WithLogger sets the agent's logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithSender replaces the HTTP transport
func WithSender(sender transport.Sender) Option {
	return func(o *clientOptions) { o.sender = sender }
}

// WithRegistry registers the agent's self-metrics on registry
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *clientOptions) { o.registry = registry }
}

// WithHostname overrides the service.instance.id reported with gauges
func WithHostname(hostname string) Option {
	return func(o *clientOptions) { o.hostname = hostname }
}

// New creates a client. It never fails; a nil or invalid config yields a
// disabled client. The client keeps a normalized copy of cfg, so zero
// batching knobs fall back to their defaults.
func New(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.Default()
		cfg.Enabled = false
	}
	cfg = cfg.Normalized()

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.ForAgent(cfg.Log.Level, cfg.Log.Development, cfg.Debug).Logger
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	if o.hostname == "" {
		o.hostname = hostname()
	}

	metrics := monitoring.NewMetricsWith(o.registry)
	if o.sender == nil {
		o.sender = transport.NewHTTP(cfg,
			transport.WithLogger(o.logger),
			transport.WithMetrics(metrics))
	}

	c := &Client{
		cfg:      cfg,
		logger:   o.logger,
		limited:  logging.NewLimited(o.logger, time.Second, 5),
		sender:   o.sender,
		metrics:  metrics,
		filter:   NewFilter(cfg.Ignore),
		ids:      id.Default(),
		hostname: o.hostname,
		spans:    boundedQueue[*Span]{limit: cfg.BufferSize},
		logs:     boundedQueue[LogRecord]{limit: cfg.BufferSize},
		samples:  boundedQueue[sample]{limit: cfg.BufferSize},
	}

	if !cfg.Enabled || !cfg.Valid() {
		c.logger.Debug("tracing disabled",
			zap.Bool("enabled", cfg.Enabled),
			zap.Bool("api_key_set", cfg.Valid()))
		return c
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(cfg.FlushInterval)

	c.logger.Debug("tracing started",
		zap.String("service", cfg.ServiceName),
		zap.String("ingest_url", cfg.IngestURL),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("flush_interval", cfg.FlushInterval),
		zap.Int("buffer_size", cfg.BufferSize))
	return c
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return uuid.NewString()
}

// Config returns the client's configuration
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Logger returns the agent's logger
func (c *Client) Logger() *zap.Logger {
	return c.logger
}

// Enabled reports whether the client records anything
func (c *Client) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Enabled && c.cfg.Valid() && !c.stopped
}

// Ignored reports whether requests for path are excluded from tracing
func (c *Client) Ignored(path string) bool {
	return c.filter.Ignore(path)
}

// Metrics returns the gatherer for the agent's self-metrics
func (c *Client) Metrics() prometheus.Gatherer {
	return c.metrics.Registry()
}

// Dropped returns how many items each buffer has dropped because it was full
func (c *Client) Dropped() map[transport.Kind]int64 {
	out := make(map[transport.Kind]int64, len(transport.Kinds))
	for _, kind := range transport.Kinds {
		out[kind] = c.metrics.Snapshot(string(kind)).Dropped
	}
	return out
}

// Buffered returns how many items each buffer currently holds
func (c *Client) Buffered() map[transport.Kind]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[transport.Kind]int{
		transport.KindSpans:   c.spans.len(),
		transport.KindLogs:    c.logs.len(),
		transport.KindMetrics: c.samples.len(),
	}
}

// ============================================================================
// Buffering
// ============================================================================

// boundedQueue is an append-only queue that rejects items past limit.
// Callers hold Client.mu.
type boundedQueue[T any] struct {
	items []T
	limit int
}

func (q *boundedQueue[T]) push(item T) (size int, ok bool) {
	if len(q.items) >= q.limit {
		return len(q.items), false
	}
	q.items = append(q.items, item)
	return len(q.items), true
}

func (q *boundedQueue[T]) drain() []T {
	items := q.items
	q.items = nil
	return items
}

func (q *boundedQueue[T]) len() int {
	return len(q.items)
}

// enqueue runs push under the lock and applies the shared drop and
// size-trigger policy. It reports whether the buffer reached the batch size.
func enqueue[T any](c *Client, kind transport.Kind, q *boundedQueue[T], item T) bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	size, ok := q.push(item)
	c.mu.Unlock()

	if !ok {
		c.metrics.RecordDropped(string(kind))
		c.limited.Debug("buffer full, dropping item",
			zap.String("buffer", string(kind)),
			zap.Int("buffer_size", c.cfg.BufferSize))
		return false
	}
	c.metrics.RecordQueued(string(kind), size)
	return size >= c.cfg.BatchSize
}

// queueSpan buffers a finished span. Reaching the batch size flushes the
// span buffer on the caller's goroutine.
func (c *Client) queueSpan(span *Span) {
	if enqueue(c, transport.KindSpans, &c.spans, span) {
		c.flushSpans(context.Background(), monitoring.TriggerSize)
	}
}

func (c *Client) queueLog(rec LogRecord) {
	if enqueue(c, transport.KindLogs, &c.logs, rec) {
		c.flushLogs(context.Background(), monitoring.TriggerSize)
	}
}

func (c *Client) queueSample(s sample) {
	if enqueue(c, transport.KindMetrics, &c.samples, s) {
		c.flushMetrics(context.Background(), monitoring.TriggerSize)
	}
}
