// Package server provides the optional HTTP server exposing recent polling
// output.
//
// This package is internal to uptrends and handles all HTTP concerns:
//
//   - REST API: "/api/operations" returns the latest status per operation and
//     "/api/records" the most recent records
//   - Server-Sent Events: live status and record events at "/api/sse"
//   - Health: "/healthz"
//   - Metrics: Prometheus exposition at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the uptrends library should not need to interact with this
// package directly. The server is started by [uptrends.Poller.Run] when a
// port is configured.
package server
