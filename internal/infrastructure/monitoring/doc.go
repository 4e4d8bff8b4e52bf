/*
Package monitoring provides the agent's self-observation metrics.

# Overview

Every client owns a private Prometheus registry describing what the agent
itself is doing: how many items each buffer accepted and dropped, how often
and why it flushed, and how the ingest transport is behaving.

# Metrics

  - tracekit_items_queued_total{buffer}
  - tracekit_items_dropped_total{buffer}
  - tracekit_items_buffered{buffer}
  - tracekit_flushes_total{buffer,trigger}
  - tracekit_batch_size{buffer}
  - tracekit_sends_total{kind,result}
  - tracekit_send_duration_seconds{kind}
  - tracekit_breaker_state

# Metrics Endpoint

	router.GET("/metrics", monitoring.GinHandler(prometheus.DefaultGatherer, client.Metrics()))
*/
package monitoring
