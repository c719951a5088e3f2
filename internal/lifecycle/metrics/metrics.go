// Package metrics exposes Prometheus collectors for the donation lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds lifecycle counters and the per-operation latency histogram.
type Metrics struct {
	UsersRegistered  prometheus.Counter
	UsersVerified    *prometheus.CounterVec
	RequestsCreated  prometheus.Counter
	RequestsResolved *prometheus.CounterVec
	MirrorMissing    prometheus.Counter
	MirrorFailures   prometheus.Counter
	MirrorRepaired   prometheus.Counter
	MirrorDropped    prometheus.Counter
	PublishFailures  *prometheus.CounterVec
	OpDuration       *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_users_registered_total",
			Help: "Users created through registration",
		}),
		UsersVerified: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_users_verified_total",
			Help: "Admin verification decisions by resulting status",
		}, []string{"status"}),
		RequestsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_requests_created_total",
			Help: "Blood requests filed by hospitals",
		}),
		RequestsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_requests_resolved_total",
			Help: "Blood requests resolved by action",
		}, []string{"action"}),
		MirrorMissing: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_mirror_missing_requester_total",
			Help: "Resolutions whose hospital user no longer exists",
		}),
		MirrorFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_mirror_write_failures_total",
			Help: "Hospital mirror writes that failed after the request was resolved",
		}),
		MirrorRepaired: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_mirror_repaired_total",
			Help: "Mirror writes completed by the repair worker",
		}),
		MirrorDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_mirror_repair_dropped_total",
			Help: "Mirror repairs abandoned because the queue was full or retries ran out",
		}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_event_publish_failures_total",
			Help: "Events that could not be delivered to the notification channel",
		}, []string{"event"}),
		OpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifeline_operation_duration_seconds",
			Help:    "Lifecycle operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
	}
}

// ObserveOp records how long op took since start.
func (m *Metrics) ObserveOp(op string, start time.Time) {
	m.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
