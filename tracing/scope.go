package tracing

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
)

// Store is the storage slot behind a Scope. Each execution unit (request,
// job, span started with StartSpan or Trace) gets its own Store.
type Store interface {
	Load() *Span
	Store(span *Span)
}

// cellStore is the default Store: a single mutex-guarded cell
type cellStore struct {
	mu   sync.Mutex
	span *Span
}

// NewCellStore returns a Store holding one span.
func NewCellStore() Store {
	return &cellStore{}
}

func (c *cellStore) Load() *Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.span
}

func (c *cellStore) Store(span *Span) {
	c.mu.Lock()
	c.span = span
	c.mu.Unlock()
}

// ginSpanKey is the gin.Context key GinStore uses
const ginSpanKey = "tracekit.span"

type ginStore struct {
	c *gin.Context
}

// GinStore keeps the current span in the gin request's key/value slot.
func GinStore(c *gin.Context) Store {
	return ginStore{c: c}
}

func (g ginStore) Load() *Span {
	v, ok := g.c.Get(ginSpanKey)
	if !ok {
		return nil
	}
	span, _ := v.(*Span)
	return span
}

func (g ginStore) Store(span *Span) {
	g.c.Set(ginSpanKey, span)
}

// Scope tracks the current span of one execution unit. All methods are safe
// on a nil Scope, which never has a current span.
type Scope struct {
	store Store
}

// NewScope creates a scope over store, or over a new cell when store is nil.
func NewScope(store Store) *Scope {
	if store == nil {
		store = NewCellStore()
	}
	return &Scope{store: store}
}

// Current returns the current span or nil
func (s *Scope) Current() *Span {
	if s == nil {
		return nil
	}
	return s.store.Load()
}

// SetCurrent replaces the current span
func (s *Scope) SetCurrent(span *Span) {
	if s == nil {
		return
	}
	s.store.Store(span)
}

// WithSpan runs fn with span current and restores the previous span when fn
// returns, fails or panics.
func (s *Scope) WithSpan(span *Span, fn func() error) error {
	if s == nil {
		return fn()
	}

	prev := s.store.Load()
	s.store.Store(span)
	defer s.store.Store(prev)

	return fn()
}

// CurrentTraceID returns the current trace ID, empty when no span is active
func (s *Scope) CurrentTraceID() string {
	if span := s.Current(); span != nil {
		return span.TraceID()
	}
	return ""
}

// CurrentSpanID returns the current span ID, empty when no span is active
func (s *Scope) CurrentSpanID() string {
	if span := s.Current(); span != nil {
		return span.SpanID()
	}
	return ""
}

// Clear forgets the current span. Adapters call it when a request or job ends.
func (s *Scope) Clear() {
	s.SetCurrent(nil)
}

// ============================================================================
// Context carriage
// ============================================================================

type scopeKey struct{}

type spanKey struct{}

// WithScope binds scope to ctx.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the scope bound to ctx, or nil.
func ScopeFromContext(ctx context.Context) *Scope {
	scope, _ := ctx.Value(scopeKey{}).(*Scope)
	return scope
}

// EnsureScope returns ctx's scope, binding a fresh one when there is none.
func EnsureScope(ctx context.Context) (context.Context, *Scope) {
	if scope := ScopeFromContext(ctx); scope != nil {
		return ctx, scope
	}
	scope := NewScope(nil)
	return WithScope(ctx, scope), scope
}

// ContextWithSpan returns a copy of ctx carrying span.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanKey{}, span)
}

// SpanFromContext returns the span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

// ActiveSpan returns the scope's current span, falling back to the span
// carried by ctx.
func ActiveSpan(ctx context.Context) *Span {
	if span := ScopeFromContext(ctx).Current(); span != nil {
		return span
	}
	return SpanFromContext(ctx)
}
