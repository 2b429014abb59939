package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful login calls."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Rejected or failed login calls."},
	{ID: goSession.MetricRegisterSuccess, Name: "gosession_register_success_total", Help: "Successful registrations."},
	{ID: goSession.MetricRegisterFailure, Name: "gosession_register_failure_total", Help: "Rejected or failed registrations."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Client logouts."},
	{ID: goSession.MetricRefreshStarted, Name: "gosession_refresh_started_total", Help: "Token exchanges sent to the API."},
	{ID: goSession.MetricRefreshShared, Name: "gosession_refresh_shared_total", Help: "Refresh callers served by an exchange already in flight."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Token exchanges that returned a pair."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Token exchanges that failed."},
	{ID: goSession.MetricGuardAuthenticated, Name: "gosession_guard_authenticated_total", Help: "Guard checks accepted with the presented access token."},
	{ID: goSession.MetricGuardRefreshed, Name: "gosession_guard_refreshed_total", Help: "Guard checks accepted after a refresh."},
	{ID: goSession.MetricGuardUnauthenticated, Name: "gosession_guard_unauthenticated_total", Help: "Guard checks that ended unauthenticated."},
	{ID: goSession.MetricGuardNonAuthError, Name: "gosession_guard_non_auth_error_total", Help: "Guard checks ended by an error unrelated to authentication."},
	{ID: goSession.MetricClassifyAuth, Name: "gosession_classify_auth_total", Help: "Errors classified as auth failures."},
	{ID: goSession.MetricSessionRestored, Name: "gosession_session_restored_total", Help: "Client sessions restored from the token store."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricGuardLatency, Name: "gosession_guard_latency_seconds", Help: "Guard check latency."},
}

// AuditDroppedName is the counter of audit events dropped under backpressure.
const AuditDroppedName = "gosession_audit_dropped_total"

// HistogramBoundSuffix names each bucket for backends without labelled buckets.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(goSession.HistogramBounds))
	for i, d := range goSession.HistogramBounds {
		out[i] = d.Seconds()
	}
	return out
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
