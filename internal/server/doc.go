// Package server is a small demo service instrumented with tracekit.
//
// It shows every adapter working together:
//   - gin middleware with CORS and per-IP rate limiting
//   - POST /orders: a child span, a metric sample and a queued job that
//     continues the request's trace in a consumer span
//   - GET /stream: websocket echo recording an event per message
//   - GET /metrics: the agent's own Prometheus metrics
//   - a gRPC health service behind the tracing interceptors
//
// Example Usage:
//
//	client := tracing.New(config.LoadOrDefault())
//	srv := server.NewServer(server.Config{HTTPAddr: ":8000"}, client, logger)
//	go srv.Run(ctx)
//	<-ctx.Done()
//	srv.Close(shutdownCtx)
//	client.Shutdown(shutdownCtx)
package server
