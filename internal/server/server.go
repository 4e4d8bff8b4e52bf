package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/GriffinCanCode/tracekit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracekit/jobs"
	"github.com/GriffinCanCode/tracekit/tracing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Config contains server configuration
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	Workers     int
	Development bool
	RateLimit   *RateLimitConfig
}

// Server is the demo service: a traced gin API, a traced gRPC health
// service and a job queue whose jobs continue the enqueuing request's trace.
type Server struct {
	cfg      Config
	client   *tracing.Client
	logger   *zap.Logger
	router   *gin.Engine
	queue    *jobs.Queue
	http     *http.Server
	grpc     *grpc.Server
	health   *health.Server
	handlers *Handlers
}

// NewServer wires the routes, interceptors and job queue around client.
// The caller owns client and shuts it down after Close.
func NewServer(cfg Config, client *tracing.Client, logger *zap.Logger) *Server {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	queue := jobs.NewQueue(client,
		jobs.WithName("orders"),
		jobs.WithWorkers(cfg.Workers),
		jobs.WithLogger(logger))
	handlers := NewHandlers(client, queue, logger)
	queue.Register(JobConfirmOrder, handlers.ConfirmOrder)

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.Middleware(client))
	router.Use(CORS(DefaultCORSConfig()))
	if cfg.RateLimit != nil {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst))
		router.Use(RateLimit(client, *cfg.RateLimit))
	}

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.POST("/orders", handlers.CreateOrder)
	router.GET("/stream", handlers.Stream)
	router.GET("/metrics", monitoring.GinHandler(client.Metrics()))

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(tracing.UnaryServerInterceptor(client)),
		grpc.StreamInterceptor(tracing.StreamServerInterceptor(client)),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		cfg:      cfg,
		client:   client,
		logger:   logger,
		router:   router,
		queue:    queue,
		http:     &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second},
		grpc:     grpcServer,
		health:   healthServer,
		handlers: handlers,
	}
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Queue returns the job queue
func (s *Server) Queue() *jobs.Queue {
	return s.queue
}

// Run starts the job workers and both listeners, and blocks until ctx is
// cancelled or a listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.queue.Start()

	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.cfg.HTTPAddr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if s.cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCAddr, err)
		}
		go func() {
			s.logger.Info("Starting gRPC server", zap.String("addr", s.cfg.GRPCAddr))
			if err := s.grpc.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the listeners and drains the job queue, bounded by ctx.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	s.health.Shutdown()
	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
	}

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpc.Stop()
	}

	if err := s.queue.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
