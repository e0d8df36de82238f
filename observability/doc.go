// Package observability provides an OpenTelemetry metrics extension for
// distask. MetricsExtension implements the ext lifecycle hooks to count
// task submissions, completions, failures and cancellations, and cluster
// membership changes.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
