// Package telemetry groups the cleaner's observability packages.
//
//   - logging: slog construction with credential redaction
//   - metrics: Prometheus collectors, /metrics endpoint and Pushgateway
//   - health: liveness and readiness probes for schedule mode
package telemetry
