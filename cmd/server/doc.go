// Package main is the entry point for the PageLift backend server.
//
// The server fetches target pages, strips heavy resources (images, video,
// CSS, fonts), and serves lightweight snapshots with before/after metrics.
//
// The server provides:
//   - REST API for page optimization and metrics
//   - HTML endpoint serving the optimized page directly
//   - WebSocket stream for state and optimization events
//   - PageSpeed Insights proxy
//   - Prometheus metrics
//
// Configuration:
//   - Environment variables (12-factor), optional .env file
//   - Optional YAML config file (-config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# With a config file
//	./server -config config.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
