// Package config holds the agent's configuration.
//
// Values come from three places, later ones winning:
//   - Defaults declared in struct tags (see Default)
//   - TRACEKIT_* environment variables, read with envconfig
//   - An optional YAML or TOML file passed to LoadFile
//
// A Config is consumed read-only by the rest of the agent. A Config without an
// API key is not Valid, and a client built from it stays disabled.
//
// Environment Variables:
//
//	TRACEKIT_API_KEY            bearer token for the ingest endpoint
//	TRACEKIT_SERVICE_NAME       namespace stamped on spans
//	TRACEKIT_JOB_NAMESPACE      namespace for job consumer spans
//	TRACEKIT_INGEST_URL         spans endpoint; logs/metrics are derived from it
//	TRACEKIT_ENABLED            master switch
//	TRACEKIT_DEBUG              verbose agent logging
//	TRACEKIT_IGNORE_PATHS       comma-separated exact paths or globs
//	TRACEKIT_IGNORE_PREFIXES    comma-separated path prefixes
//	TRACEKIT_IGNORE_EXTENSIONS  comma-separated extensions (".css")
//	TRACEKIT_BATCH_SIZE         buffered items that trigger a flush
//	TRACEKIT_FLUSH_INTERVAL     timer flush period (Go duration)
//	TRACEKIT_BUFFER_SIZE        max items held per buffer
//	TRACEKIT_TIMEOUT            per-request transport timeout
//	TRACEKIT_COMPRESS           gzip request bodies
//	TRACEKIT_CHECK_REVOCATION   tolerant OCSP/CRL checks on the ingest TLS chain
//	TRACEKIT_LOG_LEVEL          agent log level
//	TRACEKIT_LOG_DEVELOPMENT    console log encoding
package config
