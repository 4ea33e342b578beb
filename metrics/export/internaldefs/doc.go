// Package internaldefs holds the metric names and bucket bounds shared by
// the exporters, so the Prometheus and OpenTelemetry views never drift.
package internaldefs
