package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/tracekit/config"
	"github.com/GriffinCanCode/tracekit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tracekit/internal/server"
	"github.com/GriffinCanCode/tracekit/tracing"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Parse flags
	httpAddr := flag.String("http", ":8000", "HTTP listen address")
	grpcAddr := flag.String("grpc", ":50051", "gRPC listen address (empty disables)")
	workers := flag.Int("workers", 2, "Job queue workers")
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment is read")
	configFile := flag.String("config", "", "YAML or TOML agent config overriding the environment")
	dev := flag.Bool("dev", false, "Development mode (console logs, debug level)")
	rps := flag.Int("rate", 0, "Per-IP requests per second (0 disables rate limiting)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}

	cfg := config.LoadOrDefault()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	logCfg := logging.DefaultConfig()
	if *dev {
		logCfg = logging.DevelopmentConfig()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// The one process-wide client; everything else receives it explicitly
	client := tracing.New(cfg)
	logger.Info("Tracing initialized",
		zap.String("service", cfg.ServiceName),
		zap.Bool("enabled", client.Enabled()))

	srvCfg := server.Config{
		HTTPAddr:    *httpAddr,
		GRPCAddr:    *grpcAddr,
		Workers:     *workers,
		Development: *dev,
	}
	if *rps > 0 {
		srvCfg.RateLimit = &server.RateLimitConfig{RequestsPerSecond: *rps, Burst: 2 * *rps}
	}
	srv := server.NewServer(srvCfg, client, logger.Logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := srv.Run(ctx)
	if runErr != nil {
		logger.Error("Server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Close(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := client.Shutdown(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown incomplete", zap.Error(err))
	}

	if runErr != nil {
		os.Exit(1)
	}
}
