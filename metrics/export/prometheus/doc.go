// Package prometheus exposes goSession metrics through prometheus/client_golang.
//
// [Collector] implements prometheus.Collector; register it on any registry, or mount
// [Collector.Handler], which serves it from a private registry. Counter names are
// gosession_*_total; the guard latency histogram is gosession_guard_latency_seconds.
//
// # What this package must NOT do
//
//   - Register on prometheus.DefaultRegisterer behind the caller's back.
//   - Mutate engine state.
package prometheus
