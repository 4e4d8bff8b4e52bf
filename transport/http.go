package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GriffinCanCode/tracekit/config"
	"github.com/GriffinCanCode/tracekit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tracekit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracekit/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// UserAgent is sent with every ingest request.
const UserAgent = "tracekit-go/" + Version

// Version is the agent version reported to the ingest endpoint.
const Version = "1.0.0"

// ErrUnexpectedStatus wraps non-2xx ingest responses.
var ErrUnexpectedStatus = errors.New("unexpected ingest status")

// HTTPSender posts batches to the ingest endpoints.
type HTTPSender struct {
	resty     *resty.Client
	endpoints map[Kind]string
	compress  bool

	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	logger  *zap.Logger
	limited *logging.Limited
}

// Option configures an HTTPSender
type Option func(*options)

type options struct {
	logger          *zap.Logger
	metrics         *monitoring.Metrics
	breaker         resilience.Settings
	rootCAs         *x509.CertPool
	checkRevocation bool
	timeout         time.Duration
}

// WithLogger sets the logger used for debug output
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records send results on m
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithBreaker overrides the circuit breaker settings
func WithBreaker(settings resilience.Settings) Option {
	return func(o *options) { o.breaker = settings }
}

// WithRootCAs trusts pool instead of the system roots, for private ingest
// deployments
func WithRootCAs(pool *x509.CertPool) Option {
	return func(o *options) { o.rootCAs = pool }
}

// NewHTTP creates a sender for cfg. It never fails: a bad URL surfaces as
// debug-logged send errors.
func NewHTTP(cfg *config.Config, opts ...Option) *HTTPSender {
	cfg = cfg.Normalized()
	o := options{
		logger:          zap.NewNop(),
		breaker:         resilience.DefaultSettings(),
		checkRevocation: cfg.CheckRevocation,
		timeout:         cfg.Timeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = monitoring.NewMetrics()
	}

	s := &HTTPSender{
		endpoints: map[Kind]string{
			KindSpans:   Endpoint(cfg.IngestURL, KindSpans),
			KindLogs:    Endpoint(cfg.IngestURL, KindLogs),
			KindMetrics: Endpoint(cfg.IngestURL, KindMetrics),
		},
		compress: cfg.Compress,
		metrics:  o.metrics,
		logger:   o.logger,
		limited:  logging.NewLimited(o.logger, time.Second, 5),
	}

	settings := o.breaker
	settings.ObserveOnly = !cfg.CircuitBreaker
	settings.OnStateChange = func(name string, from, to resilience.State) {
		s.metrics.SetBreakerState(int(to))
		s.logger.Debug("ingest breaker state changed",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
	}
	s.breaker = resilience.New("ingest", settings)

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    o.rootCAs,
	}
	if o.checkRevocation {
		checker := newRevocationChecker(o.timeout, o.logger)
		tlsConfig.VerifyConnection = checker.VerifyConnection
	}

	s.resty = newRestyClient(cfg, tlsConfig, o.logger)
	return s
}

// newRestyClient builds a resty client on the pooled transport from
// retryablehttp. Retries stay off: a failed batch is dropped.
func newRestyClient(cfg *config.Config, tlsConfig *tls.Config, logger *zap.Logger) *resty.Client {
	pooled := retryablehttp.NewClient()
	pooled.RetryMax = 0
	pooled.Logger = nil

	transport, ok := pooled.HTTPClient.Transport.(*http.Transport)
	if !ok {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	transport.TLSClientConfig = tlsConfig

	return resty.New().
		SetTransport(transport).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", UserAgent).
		SetDisableWarn(true).
		SetLogger(logger.Sugar())
}

// Endpoint returns the URL batches of kind are posted to
func (s *HTTPSender) Endpoint(kind Kind) string {
	return s.endpoints[kind]
}

// Send encodes and posts one batch. Errors are logged at debug and dropped.
func (s *HTTPSender) Send(ctx context.Context, kind Kind, records any) {
	body, err := encode(records, s.compress)
	if err != nil {
		s.limited.Debug("dropping batch", zap.String("kind", string(kind)), zap.Error(err))
		return
	}

	start := time.Now()
	err = s.breaker.Execute(func() error {
		return s.post(ctx, kind, body)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.metrics.RecordSend(string(kind), monitoring.ResultOK, elapsed)
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrProbeInFlight):
		s.metrics.RecordSend(string(kind), monitoring.ResultRejected, elapsed)
		s.limited.Debug("ingest circuit open, dropping batch", zap.String("kind", string(kind)))
	default:
		s.metrics.RecordSend(string(kind), monitoring.ResultError, elapsed)
		s.limited.Debug("ingest request failed",
			zap.String("kind", string(kind)),
			zap.String("endpoint", s.endpoints[kind]),
			zap.Error(err))
	}
}

func (s *HTTPSender) post(ctx context.Context, kind Kind, body []byte) error {
	req := s.resty.R().SetContext(ctx).SetBody(body)
	if s.compress {
		req.SetHeader("Content-Encoding", "gzip")
	}

	resp, err := req.Post(s.endpoints[kind])
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
	}
	return nil
}

// Breaker exposes the ingest circuit breaker state
func (s *HTTPSender) Breaker() *resilience.Breaker {
	return s.breaker
}
