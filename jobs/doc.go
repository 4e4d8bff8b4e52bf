/*
Package jobs carries trace context across background job queues.

# Overview

A job enqueued while a span is active should produce a consumer span in the
same trace when it runs, possibly in another process. Wrap captures the
active trace and span IDs in an Envelope next to the encoded payload; the
envelope is what gets serialized onto the queue. On the worker side Decode
restores it, Perform starts a consumer span whose remote parent is the
captured span, and Unwrap decodes the original payload for the handler.

An envelope that fails to decode, or that carries malformed IDs, runs its
job in a fresh trace.

# Queue

Queue is a small in-process job system built on the same contract: named
handlers, a fixed number of worker goroutines and a bounded channel of
serialized envelopes.

	queue := jobs.NewQueue(client, jobs.WithWorkers(4))
	queue.Register("send_email", func(ctx context.Context, env jobs.Envelope) error {
		var msg Email
		if err := env.Unwrap(&msg); err != nil {
			return err
		}
		return send(ctx, msg)
	})
	queue.Start()
	defer queue.Close(ctx)

	jobID, err := queue.Enqueue(ctx, "send_email", Email{To: "a@example.com"})
*/
package jobs
