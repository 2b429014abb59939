// Package internaldefs holds the metric names and bucket helpers shared by the
// Prometheus and OpenTelemetry exporters, so both publish the same series.
package internaldefs
