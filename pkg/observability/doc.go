// Package observability bundles the operational surface: structured JSON
// logging over slog, Prometheus metrics, OpenTelemetry trace/metric export,
// health probes, and graceful shutdown.
package observability
