// Package prometheus renders engine metrics in the Prometheus text
// exposition format.
//
// [New] wraps a [Source], usually a *meowauth.Engine, and [Exporter.Handler]
// serves the current snapshot. Counters are named meowauth_*_total and the
// Authorize latency histogram is meowauth_authorize_latency_seconds. When
// the source can be pinged, meowauth_storage_up reports Redis reachability.
//
// Nothing is registered globally; callers mount the handler themselves.
package prometheus
