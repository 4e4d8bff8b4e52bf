package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/tracekit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracekit/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// run is the background worker. It flushes every buffer once per interval
// until stop is closed.
func (c *Client) run(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick is one worker iteration; a panic ends the iteration, not the worker
func (c *Client) tick() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("flush iteration failed", zap.Any("panic", r))
		}
	}()
	c.flushAll(context.Background(), monitoring.TriggerInterval)
}

// Flush sends everything currently buffered.
func (c *Client) Flush(ctx context.Context) {
	c.flushAll(ctx, monitoring.TriggerManual)
}

func (c *Client) flushAll(ctx context.Context, trigger string) {
	c.flushSpans(ctx, trigger)
	c.flushLogs(ctx, trigger)
	c.flushMetrics(ctx, trigger)
}

// Shutdown stops the worker and flushes what is left. It waits for the
// worker only until ctx is done; the final flush runs regardless, bounded
// by the transport timeout. Calls after the first return nil immediately.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	var err error
	if c.stop != nil {
		close(c.stop)
		select {
		case <-c.done:
		case <-ctx.Done():
			err = fmt.Errorf("tracing worker still running: %w", ctx.Err())
			c.logger.Debug("shutdown deadline reached before worker stopped")
		}
	}

	flushCtx := context.WithoutCancel(ctx)
	g, gctx := errgroup.WithContext(flushCtx)
	g.Go(func() error {
		c.flushSpans(gctx, monitoring.TriggerShutdown)
		return nil
	})
	g.Go(func() error {
		c.flushLogs(gctx, monitoring.TriggerShutdown)
		return nil
	})
	g.Go(func() error {
		c.flushMetrics(gctx, monitoring.TriggerShutdown)
		return nil
	})
	_ = g.Wait()

	return err
}

func (c *Client) flushSpans(ctx context.Context, trigger string) {
	c.mu.Lock()
	batch := c.spans.drain()
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	records := make([]SpanRecord, 0, len(batch))
	for _, span := range batch {
		records = append(records, span.Record())
	}
	c.send(ctx, transport.KindSpans, trigger, len(records), records)
}

func (c *Client) flushLogs(ctx context.Context, trigger string) {
	c.mu.Lock()
	batch := c.logs.drain()
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	c.send(ctx, transport.KindLogs, trigger, len(batch), batch)
}

func (c *Client) flushMetrics(ctx context.Context, trigger string) {
	c.mu.Lock()
	batch := c.samples.drain()
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	records := aggregate(batch)
	c.send(ctx, transport.KindMetrics, trigger, len(batch), records)
}

// send hands a batch to the sender. A panicking sender loses the batch but
// never reaches the instrumented code.
func (c *Client) send(ctx context.Context, kind transport.Kind, trigger string, items int, records any) {
	defer func() {
		if r := recover(); r != nil {
			c.limited.Debug("sender panicked, batch dropped",
				zap.String("kind", string(kind)),
				zap.Any("panic", r))
		}
	}()

	c.metrics.RecordFlush(string(kind), trigger, items)
	c.sender.Send(ctx, kind, records)
}
