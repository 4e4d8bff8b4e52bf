// Package logging provides the agent's structured logging using uber/zap.
//
// The agent runs inside a host application, so its logger:
//   - Writes to stderr by default, leaving stdout to the host
//   - Is named "tracekit" so its lines are easy to filter
//   - Logs delivery problems at debug level only
//
// Two encodings are available:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Hot paths (buffer overflow, failed sends) go through Limited, which caps
// how often a message is written.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Debug("batch sent", zap.Int("spans", 12))
package logging
