// Package transporttest provides an in-memory Sender for tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/tracekit/transport"
)

// Batch is one recorded Send call
type Batch struct {
	Kind    transport.Kind
	Records any
}

// Recorder is a transport.Sender that keeps every batch it is given.
type Recorder struct {
	mu      sync.Mutex
	batches []Batch
	sent    chan struct{}
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{sent: make(chan struct{}, 1024)}
}

// Send records the batch
func (r *Recorder) Send(_ context.Context, kind transport.Kind, records any) {
	r.mu.Lock()
	r.batches = append(r.batches, Batch{Kind: kind, Records: records})
	r.mu.Unlock()

	select {
	case r.sent <- struct{}{}:
	default:
	}
}

// Batches returns every recorded batch in send order
func (r *Recorder) Batches() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Batch, len(r.batches))
	copy(out, r.batches)
	return out
}

// Of returns the recorded batches of one kind
func (r *Recorder) Of(kind transport.Kind) []Batch {
	var out []Batch
	for _, b := range r.Batches() {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}

// Calls returns the number of Send calls for kind
func (r *Recorder) Calls(kind transport.Kind) int {
	return len(r.Of(kind))
}

// Sent is signalled after every Send
func (r *Recorder) Sent() <-chan struct{} {
	return r.sent
}

// Reset forgets every recorded batch
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.batches = nil
	r.mu.Unlock()
}
