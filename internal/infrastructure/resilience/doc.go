/*
Package resilience provides the circuit breaker that guards the ingest endpoints.

# Overview

When the ingest endpoint is down every flush would otherwise pay the full
request timeout. The breaker notices consecutive failures and short-circuits
sends for a cooldown period, after which a single probe decides whether to
close the circuit again.

Rejected sends are dropped by the caller. The breaker never queues or retries.
With Settings.ObserveOnly the breaker still tracks state and fires
OnStateChange but admits every call.

# Usage

	breaker := resilience.New("ingest", resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Debug("breaker state", zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	err := breaker.Execute(func() error {
		return send(batch)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// batch dropped
	}

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[probe ok]-> Closed
	                                  ^                    |
	                                  +----[probe failed]--+
*/
package resilience
