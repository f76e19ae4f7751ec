// Package metrics holds the Prometheus collectors of the order engine.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "grouporder"

// Metrics is the set of collectors shared by the gateway, sessions and the
// live merge controller.
type Metrics struct {
	StoreOps        *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec
	Toggles         prometheus.Counter
	DebouncedWrites *prometheus.CounterVec
	Notifications   prometheus.Counter
	MergeSkips      prometheus.Counter
	OpenSessions    prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StoreOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Order store calls by operation and result.",
		}, []string{"op", "result"}),
		StoreLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_seconds",
			Help:      "Order store call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Toggles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_toggles_total",
			Help:      "Local product toggles.",
		}),
		DebouncedWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounced_writes_total",
			Help:      "Selection writes issued after the debounce window, by result.",
		}, []string{"result"}),
		Notifications: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_notifications_total",
			Help:      "Change feed notifications processed.",
		}),
		MergeSkips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_skips_total",
			Help:      "Remote selections not applied over a pending local edit.",
		}),
		OpenSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Edit sessions currently open.",
		}),
	}
}

// ObserveStore records one store call.
func (m *Metrics) ObserveStore(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOps.WithLabelValues(op, result).Inc()
	m.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Toggled counts a local toggle.
func (m *Metrics) Toggled() {
	if m == nil {
		return
	}
	m.Toggles.Inc()
}

// Wrote counts a debounced write with its result label.
func (m *Metrics) Wrote(result string) {
	if m == nil {
		return
	}
	m.DebouncedWrites.WithLabelValues(result).Inc()
}

// Notified counts a processed change notification.
func (m *Metrics) Notified() {
	if m == nil {
		return
	}
	m.Notifications.Inc()
}

// SkippedMerge counts a remote selection held back by the merge guard.
func (m *Metrics) SkippedMerge() {
	if m == nil {
		return
	}
	m.MergeSkips.Inc()
}

// SessionOpened and SessionClosed track the open session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.OpenSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.OpenSessions.Dec()
}
