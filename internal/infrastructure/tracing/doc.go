/*
Package tracing provides lightweight request tracing.

# Overview

This package implements span-based tracing for the HTTP surface. It follows
OpenTelemetry concepts but with a minimal implementation: spans are logged
through zap rather than exported to a collector.

# Usage

	// Create tracer
	tracer := tracing.New("backend", logger)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	span.SetTag("key", "value")

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation

# Performance

Spans are buffered (1000 entries) and processed asynchronously; a full
buffer drops spans rather than blocking the request path.
*/
package tracing
