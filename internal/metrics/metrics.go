// Package metrics holds the SDK and host Prometheus collectors. It has no
// HTTP dependencies so plugin binaries can link it.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Permission check outcomes.
const (
	OutcomeGranted   = "granted"
	OutcomeDenied    = "denied"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// InvalidCapabilityLabel replaces capability names outside the catalog so
// peers cannot mint label values.
const InvalidCapabilityLabel = "invalid"

// Registry is private to this module; nothing is added to the process-wide
// default registry.
var Registry = prometheus.NewRegistry()

var (
	registerOnce sync.Once

	permissionChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uoma",
			Subsystem: "plugin",
			Name:      "permission_checks_total",
			Help:      "Capability checks issued by the plugin client.",
		},
		[]string{"capability", "outcome"},
	)
	permissionCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uoma",
			Subsystem: "plugin",
			Name:      "permission_check_duration_seconds",
			Help:      "Time from request to resolution of a capability check.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2},
		},
		[]string{"outcome"},
	)
	subscriptionChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uoma",
			Subsystem: "plugin",
			Name:      "subscription_changes_total",
			Help:      "Subscribe/unsubscribe attempts by event and result.",
		},
		[]string{"event", "op", "success"},
	)
	hostPermissionRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uoma",
			Subsystem: "host",
			Name:      "permission_requests_total",
			Help:      "Capability requests answered by the host.",
		},
		[]string{"capability", "granted"},
	)
	hostBridgeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "uoma",
			Subsystem: "host",
			Name:      "bridge_connections",
			Help:      "Open plugin bridge connections.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uoma",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"component", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uoma",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component", "method", "route", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			permissionChecks,
			permissionCheckDuration,
			subscriptionChanges,
			hostPermissionRequests,
			hostBridgeConnections,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordPermissionCheck(capability, outcome string, duration time.Duration) {
	RegisterMetrics()
	permissionChecks.WithLabelValues(capability, outcome).Inc()
	permissionCheckDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordSubscriptionChange(event, op string, success bool) {
	RegisterMetrics()
	subscriptionChanges.WithLabelValues(event, op, strconv.FormatBool(success)).Inc()
}

func RecordHostPermissionRequest(capability string, granted bool) {
	RegisterMetrics()
	hostPermissionRequests.WithLabelValues(capability, strconv.FormatBool(granted)).Inc()
}

func TrackBridgeConnection(delta int) {
	RegisterMetrics()
	hostBridgeConnections.Add(float64(delta))
}

func RecordHTTPRequest(component, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(component, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(component, method, route, statusLabel).Observe(duration.Seconds())
}
