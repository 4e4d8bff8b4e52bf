// Package id generates identifiers for the agent.
//
// Trace and span identifiers use the W3C Trace Context sizes:
//   - Trace ID: 16 random bytes, 32 lowercase hex characters
//   - Span ID: 8 random bytes, 16 lowercase hex characters
//
// Job identifiers are prefixed ULIDs (job_01H...) so queued work sorts by
// enqueue time in logs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Sizes and Prefixes
// ============================================================================

const (
	// TraceIDSize is the number of random bytes in a trace ID
	TraceIDSize = 16
	// SpanIDSize is the number of random bytes in a span ID
	SpanIDSize = 8

	JobPrefix = "job"
)

// JobID identifies a job submitted to a queue
type JobID string

func (id JobID) String() string { return string(id) }

// ============================================================================
// Generator
// ============================================================================

// Generator produces trace IDs, span IDs and ULIDs from one entropy source
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// TraceID returns a new 32-character hex trace ID
func (g *Generator) TraceID() string {
	return g.hexID(TraceIDSize)
}

// SpanID returns a new 16-character hex span ID
func (g *Generator) SpanID() string {
	return g.hexID(SpanIDSize)
}

func (g *Generator) hexID(size int) string {
	buf := make([]byte, size)

	g.entropyMu.Lock()
	_, err := io.ReadFull(g.entropy, buf)
	g.entropyMu.Unlock()

	if err != nil {
		// A broken custom source must not stop tracing
		_, _ = rand.Read(buf)
	}

	// The all-zero ID is invalid on the wire
	if isZero(buf) {
		buf[size-1] = 1
	}

	return hex.EncodeToString(buf)
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// ============================================================================
// Package-level helpers
// ============================================================================

// NewTraceID generates a trace ID with the default generator
func NewTraceID() string {
	return Default().TraceID()
}

// NewSpanID generates a span ID with the default generator
func NewSpanID() string {
	return Default().SpanID()
}

// NewJobID generates a new job ID
func NewJobID() JobID {
	return JobID(Default().GenerateWithPrefix(JobPrefix))
}

// ============================================================================
// Validation
// ============================================================================

// IsTraceID reports whether s is a well-formed, non-zero trace ID
func IsTraceID(s string) bool {
	return isHexID(s, TraceIDSize*2)
}

// IsSpanID reports whether s is a well-formed, non-zero span ID
func IsSpanID(s string) bool {
	return isHexID(s, SpanIDSize*2)
}

func isHexID(s string, length int) bool {
	if len(s) != length {
		return false
	}
	zero := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '0':
		case c >= '1' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			zero = false
		default:
			return false
		}
	}
	return !zero
}

func isZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
