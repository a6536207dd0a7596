// Package observability provides structured logging and Prometheus metrics
// for the admin portal.
//
// This package implements:
//   - zap logger construction from configuration
//   - Token verification and key fetch counters
//   - HTTP request counters and latency histograms
package observability
