// Package server exposes calendarchat over HTTP.
//
// # Key Components
//
// Server owns the route table. Every route is declared once in routes(),
// which drives the ServeMux registration, the method checks, the metrics
// path allow-list and the availableEndpoints listing returned for unknown
// paths:
//   - OAuth: /oauth/start redirects to Google, /oauth/callback renders the
//     connection status page
//   - Connections: setup, listing, diagnostics, revoke and refresh
//   - Chat: /send-message runs the dispatcher, /notifications returns the
//     per-user notification feed
//   - MCP: /mcp serves the calendar tools over streamable HTTP
//   - Operations: /stats, /healthz, /readyz, /healthz/detailed
//
// HealthChecker answers Kubernetes probes. MetricsServer serves Prometheus
// metrics on a dedicated port so operational data stays off the public
// listener.
//
// # Cross-Origin Requests
//
// CORS headers are only emitted for the configured allowed origin. Preflight
// requests from any other origin are rejected with 403.
package server
