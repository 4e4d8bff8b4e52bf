package tracing

import (
	"context"
	"strconv"
	"time"
)

// Log levels accepted by RecordLog
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LogRecord is the wire form of a log entry
type LogRecord struct {
	Timestamp  string            `json:"timestamp"`
	Level      string            `json:"level"`
	Message    string            `json:"message"`
	TraceID    string            `json:"trace_id,omitempty"`
	SpanID     string            `json:"span_id,omitempty"`
	Namespace  string            `json:"namespace,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// RecordEvent records a discrete occurrence as a zero-duration event span.
func (c *Client) RecordEvent(ctx context.Context, name string, attrs map[string]string) {
	_, span := c.start(ctx, name, []SpanOption{WithKind(KindEvent)})
	if span.IsInert() {
		return
	}
	span.MergeAttributes(attrs)
	span.end(true)
}

// RecordGauge records value as an event carrying metric.value. The host
// name is added as service.instance.id unless attrs already names one.
func (c *Client) RecordGauge(ctx context.Context, name string, value float64, attrs map[string]string) {
	merged := make(map[string]string, len(attrs)+2)
	for k, v := range attrs {
		merged[k] = v
	}
	merged[AttrMetricValue] = strconv.FormatFloat(value, 'f', -1, 64)
	if _, ok := merged[AttrInstanceID]; !ok {
		merged[AttrInstanceID] = c.hostname
	}
	c.RecordEvent(ctx, name, merged)
}

// RecordLog buffers a log entry tagged with the active trace and span.
func (c *Client) RecordLog(ctx context.Context, level, message string, attrs map[string]string) {
	if !c.Enabled() {
		return
	}

	rec := LogRecord{
		Timestamp:  formatTime(time.Now()),
		Level:      level,
		Message:    message,
		Namespace:  c.cfg.ServiceName,
		Attributes: copyAttrs(attrs),
	}
	if span := ActiveSpan(ctx); span != nil && !span.IsInert() {
		rec.TraceID = span.TraceID()
		rec.SpanID = span.SpanID()
		rec.Namespace = span.Namespace()
	}
	c.queueLog(rec)
}

// RecordCount adds delta to a counter. Counters with the same name and
// attributes are summed per flush.
func (c *Client) RecordCount(name string, delta float64, attrs map[string]string) {
	c.recordSample(MetricCounter, name, delta, attrs)
}

// RecordHistogram observes value. Observations with the same name and
// attributes are summarized per flush.
func (c *Client) RecordHistogram(name string, value float64, attrs map[string]string) {
	c.recordSample(MetricHistogram, name, value, attrs)
}

func (c *Client) recordSample(typ, name string, value float64, attrs map[string]string) {
	if !c.Enabled() {
		return
	}
	c.queueSample(sample{
		typ:   typ,
		name:  name,
		value: value,
		attrs: copyAttrs(attrs),
		at:    time.Now(),
	})
}

func copyAttrs(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
