// Package main runs the tracekit demo service.
//
// The service is a small order API instrumented end to end: HTTP requests,
// gRPC calls, websocket messages and background jobs all report to the
// ingest endpoint configured through TRACEKIT_* environment variables.
//
// Configuration:
//   - .env file (optional, loaded first)
//   - Environment variables (TRACEKIT_API_KEY, TRACEKIT_INGEST_URL, ...)
//   - -config file (YAML or TOML) overriding both
//
// Usage:
//
//	# Production mode
//	TRACEKIT_API_KEY=... ./server -http :8000 -grpc :50051
//
//	# Development mode (console logs, debug level)
//	./server -dev -config tracekit.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, final telemetry flush
package main
