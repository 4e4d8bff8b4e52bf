package tracing

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// HTTP attribute keys set by the adapters
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPTarget     = "http.target"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPURL        = "http.url"
)

// ============================================================================
// Gin
// ============================================================================

// Middleware traces gin requests. Each request gets a server span named
// "<METHOD> <route>" that is current for the rest of the handler chain and
// continues any incoming traceparent. Ignored paths pass through untouched.
func Middleware(client *Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !client.Enabled() || client.Ignored(c.Request.URL.Path) {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		opts := append([]SpanOption{
			WithKind(KindServer),
			WithAttributes(requestAttributes(c.Request, route)),
		}, remoteParent(Extract(c.Request.Header))...)

		ctx, span := client.StartSpan(c.Request.Context(), c.Request.Method+" "+route, opts...)
		scope := NewScope(GinStore(c))
		scope.SetCurrent(span)
		c.Request = c.Request.WithContext(ctx)

		defer func() {
			if r := recover(); r != nil {
				span.recordPanic(r)
				span.SetAttribute(AttrHTTPStatusCode, strconv.Itoa(http.StatusInternalServerError))
				span.Finish()
				scope.Clear()
				panic(r)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		span.SetStatus(status)
		span.SetAttribute(AttrHTTPStatusCode, strconv.Itoa(status))
		if err := c.Errors.Last(); err != nil {
			span.RecordError(err.Err)
		}
		span.Finish()
		scope.Clear()
	}
}

// ============================================================================
// net/http
// ============================================================================

// Handler wraps next with the same tracing Middleware applies to gin. The
// route is the request path.
func Handler(client *Client, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !client.Enabled() || client.Ignored(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		opts := append([]SpanOption{
			WithKind(KindServer),
			WithAttributes(requestAttributes(r, r.URL.Path)),
		}, remoteParent(Extract(r.Header))...)

		ctx, span := client.StartSpan(r.Context(), r.Method+" "+r.URL.Path, opts...)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if v := recover(); v != nil {
				span.recordPanic(v)
				span.SetAttribute(AttrHTTPStatusCode, strconv.Itoa(http.StatusInternalServerError))
				span.Finish()
				panic(v)
			}
		}()

		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetStatus(rec.status)
		span.SetAttribute(AttrHTTPStatusCode, strconv.Itoa(rec.status))
		span.Finish()
	})
}

func requestAttributes(r *http.Request, route string) map[string]string {
	return map[string]string{
		AttrHTTPMethod: r.Method,
		AttrHTTPTarget: r.URL.RequestURI(),
		AttrHTTPRoute:  route,
	}
}

// statusRecorder captures the response status
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// ============================================================================
// Outbound
// ============================================================================

type roundTripper struct {
	client *Client
	base   http.RoundTripper
}

// RoundTripper wraps base (http.DefaultTransport when nil) so every
// outbound request runs in a client span and carries its traceparent.
func RoundTripper(client *Client, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &roundTripper{client: client, base: base}
}

func (t *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.client.Enabled() {
		return t.base.RoundTrip(req)
	}

	ctx, span := t.client.start(req.Context(), req.Method+" "+req.URL.Host, []SpanOption{
		WithKind(KindClient),
		WithAttributes(map[string]string{
			AttrHTTPMethod: req.Method,
			AttrHTTPURL:    req.URL.Redacted(),
		}),
	})
	defer span.Finish()

	// RoundTrippers must not modify the caller's request
	out := req.Clone(ctx)
	Inject(span, out.Header)

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetStatus(resp.StatusCode)
	span.SetAttribute(AttrHTTPStatusCode, strconv.Itoa(resp.StatusCode))
	return resp, nil
}
