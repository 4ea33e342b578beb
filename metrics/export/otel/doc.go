// Package otel publishes engine metrics through OpenTelemetry observable
// instruments.
//
// [New] registers one Int64ObservableCounter per engine counter and an
// Int64ObservableGauge for the cumulative Authorize latency buckets, keyed
// by an "le" attribute. A single callback reads the snapshot on every
// collection. The caller owns the MeterProvider.
package otel
