package tracing

import (
	"context"
	"net/http"
	"time"
)

// SpanOption configures StartSpan and Trace
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind         Kind
	namespace    string
	attributes   map[string]string
	parent       *Span
	remoteTrace  string
	remoteParent string
	remote       bool
}

// WithKind sets the span kind (default internal)
func WithKind(kind Kind) SpanOption {
	return func(c *spanConfig) { c.kind = kind }
}

// WithNamespace overrides the namespace, which defaults to the service
// name or, for consumer spans, the job namespace
func WithNamespace(namespace string) SpanOption {
	return func(c *spanConfig) { c.namespace = namespace }
}

// WithAttributes sets initial attributes
func WithAttributes(attrs map[string]string) SpanOption {
	return func(c *spanConfig) { c.attributes = attrs }
}

// WithParent makes parent the parent span instead of the active one
func WithParent(parent *Span) SpanOption {
	return func(c *spanConfig) { c.parent = parent }
}

// WithRemoteParent continues a trace received from another process. An
// empty trace ID starts a fresh trace.
func WithRemoteParent(traceID, parentSpanID string) SpanOption {
	return func(c *spanConfig) {
		c.remote = true
		c.remoteTrace = traceID
		c.remoteParent = parentSpanID
	}
}

// StartSpan starts a span. The returned ctx carries the span and a new
// scope in which it is current; the scope bound to the incoming ctx is left
// untouched, so goroutines sharing ctx never see each other's spans. The
// caller must Finish the span.
//
// The parent is, in order: WithParent, WithRemoteParent, the scope's current
// span, the span carried by ctx. With no parent a new trace starts.
func (c *Client) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	ctx, span := c.start(ctx, name, opts)
	if span.IsInert() {
		return ctx, span
	}

	scope := NewScope(nil)
	scope.SetCurrent(span)
	return WithScope(ctx, scope), span
}

// Trace runs fn inside a new span that is current for fn's duration.
// fn's ctx carries its own scope, as with StartSpan.
// An error from fn is recorded on the span and returned unchanged; a panic
// is recorded and re-raised with the same value. The span is finished on
// every path.
func (c *Client) Trace(ctx context.Context, name string, fn func(ctx context.Context, span *Span) error, opts ...SpanOption) error {
	ctx, span := c.start(ctx, name, opts)
	if span.IsInert() {
		return fn(ctx, span)
	}

	scope := NewScope(nil)
	ctx = WithScope(ctx, scope)

	return scope.WithSpan(span, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				span.recordPanic(r)
				span.Finish()
				panic(r)
			}
		}()

		if err = fn(ctx, span); err != nil {
			span.RecordError(err)
		}
		span.Finish()
		return err
	})
}

// start builds a span without touching any scope
func (c *Client) start(ctx context.Context, name string, opts []SpanOption) (context.Context, *Span) {
	if !c.Enabled() {
		return ctx, inertSpan(name)
	}

	cfg := spanConfig{kind: KindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.kind.Valid() {
		cfg.kind = KindInternal
	}

	traceID, parentID := c.resolveParent(ctx, cfg)
	if traceID == "" {
		traceID = c.ids.TraceID()
		parentID = ""
	}

	namespace := cfg.namespace
	if namespace == "" {
		namespace = c.cfg.Namespace(cfg.kind == KindConsumer)
	}

	attrs := make(map[string]string, len(cfg.attributes))
	for k, v := range cfg.attributes {
		attrs[k] = v
	}

	span := &Span{
		traceID:    traceID,
		spanID:     c.ids.SpanID(),
		parentID:   parentID,
		kind:       cfg.kind,
		start:      time.Now(),
		client:     c,
		name:       name,
		namespace:  namespace,
		statusCode: http.StatusOK,
		attributes: attrs,
	}
	return ContextWithSpan(ctx, span), span
}

func (c *Client) resolveParent(ctx context.Context, cfg spanConfig) (traceID, parentID string) {
	switch {
	case cfg.parent != nil && !cfg.parent.IsInert():
		return cfg.parent.TraceID(), cfg.parent.SpanID()
	case cfg.remote:
		return cfg.remoteTrace, cfg.remoteParent
	}

	if parent := ActiveSpan(ctx); parent != nil && !parent.IsInert() {
		return parent.TraceID(), parent.SpanID()
	}
	return "", ""
}
