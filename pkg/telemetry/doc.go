// Package telemetry wires OpenTelemetry tracing and metrics for the
// storefront client.
//
// New reads config.TelemetryConfig: when enabled it exports spans over OTLP
// gRPC (or pretty-prints them to stdout for local debugging) and installs the
// W3C trace context propagator, so every backend request carries a
// traceparent header. When disabled every call is a no-op and costs nothing.
//
// # Instruments
//
//	storefront_cart_mutations_total              operation, mode, status
//	storefront_availability_checks_total         kind, pinned, available
//	storefront_cart_refresh_dropped_total
//	storefront_poll_runs_total                   task, status
//	storefront_backend_request_duration_seconds  operation, http.status_code
//
// # Correlation
//
// A correlation id groups every request made for one user action; each
// backend request also gets its own X-Request-ID. EnrichLogFields copies
// both, plus trace and span ids, into structured log fields.
package telemetry
