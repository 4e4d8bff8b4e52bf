/*
Package tracing is the in-process tracing agent.

# Overview

A Client creates spans, keeps the current span of each execution unit in a
Scope, buffers finished spans, logs and metric samples, and ships them to the
ingest service in batches from one background worker. Instrumented code never
sees an agent failure: a disabled client hands out inert spans, full buffers
drop new items, and transport errors are logged at debug level and discarded.

StartSpan and Trace leave the Scope of the ctx they are given alone and hand
back a ctx with a Scope of its own, so one ctx can be passed to several
goroutines and each of them parents its spans to the span that ctx carries.

# Usage

	cfg := config.LoadOrDefault()
	client := tracing.New(cfg)
	defer client.Shutdown(context.Background())

	// gin
	router.Use(tracing.Middleware(client))

	// net/http
	http.Handle("/", tracing.Handler(client, mux))

	// outbound HTTP
	httpClient := &http.Client{Transport: tracing.RoundTripper(client, nil)}

	// gRPC
	server := grpc.NewServer(
		grpc.UnaryInterceptor(tracing.UnaryServerInterceptor(client)),
		grpc.StreamInterceptor(tracing.StreamServerInterceptor(client)),
	)

	// Scoped span
	err := client.Trace(ctx, "charge card", func(ctx context.Context, span *tracing.Span) error {
		span.SetAttribute("order.id", id)
		return charge(ctx, id)
	})

# Propagation

Traces cross process boundaries in the W3C traceparent header
("00-<trace id>-<parent span id>-01"), in gRPC metadata under the same key,
and in job envelopes (package jobs). A malformed header is treated as absent
and starts a new trace.

# Delivery

Each buffer holds at most BufferSize items. Reaching BatchSize flushes that
buffer on the producing goroutine; the worker flushes everything every
FlushInterval. Shutdown stops the worker and performs a final flush.
*/
package tracing
