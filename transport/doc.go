/*
Package transport delivers finished batches to the ingest endpoints.

# Overview

A Sender receives one batch per flush and a Kind naming the buffer it came
from. Sending is fire-and-forget: every failure (connection, TLS, non-2xx
response, open circuit) is logged at debug level and the batch is discarded.
There is no retry, no backoff and no persistence.

# Endpoints

The configured ingest URL is the spans endpoint. The logs and metrics
endpoints replace its trailing path segment:

	https://ingest.example.com/v1/spans    spans
	https://ingest.example.com/v1/logs     logs
	https://ingest.example.com/v1/metrics  metrics

# Wire Format

	POST <endpoint>
	Authorization: Bearer <api key>
	Content-Type: application/json
	Content-Encoding: gzip            (when compression is enabled)

	[ {record}, {record}, ... ]

# TLS

Certificate chains are always verified. When revocation checking is enabled
the leaf certificate is also checked against a stapled OCSP response, its
OCSP responders and its CRL distribution points. Only a definitive "revoked"
answer fails the handshake; a responder that cannot be reached or returns
garbage is ignored.
*/
package transport
