/*
Package resilience provides a circuit breaker for outbound calls.

# Overview

This package implements the circuit breaker pattern so a host that keeps
failing or timing out stops consuming fetch slots. It guards the page
fetcher and the PageSpeed client.

# Usage

	// Create a circuit breaker
	breaker := resilience.New("page-fetch", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
	})

	// Execute request through breaker
	result, err := breaker.Execute(func() (interface{}, error) {
		return client.Get(url)
	})

# States

- Closed: Normal operation, requests pass through
- Open: Upstream unavailable, requests fail immediately
- Half-Open: Testing if upstream recovered, limited requests allowed

# Pattern

The circuit breaker transitions between states based on success/failure rates:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
