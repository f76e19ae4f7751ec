package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveStore("get", time.Now(), nil)
	m.ObserveStore("get", time.Now(), errors.New("boom"))
	m.ObserveStore("get", time.Now(), nil)
	m.Toggled()
	m.Toggled()
	m.Wrote("ok")
	m.Notified()
	m.SkippedMerge()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"store ok", m.StoreOps.WithLabelValues("get", "ok"), 2},
		{"store error", m.StoreOps.WithLabelValues("get", "error"), 1},
		{"toggles", m.Toggles, 2},
		{"writes", m.DebouncedWrites.WithLabelValues("ok"), 1},
		{"notifications", m.Notifications, 1},
		{"merge skips", m.MergeSkips, 1},
		{"open sessions", m.OpenSessions, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(m.StoreLatency); n != 1 {
		t.Errorf("expected one latency series, got %d", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	// None of these may panic.
	m.ObserveStore("get", time.Now(), nil)
	m.Toggled()
	m.Wrote("ok")
	m.Notified()
	m.SkippedMerge()
	m.SessionOpened()
	m.SessionClosed()
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected panic registering collectors twice")
		}
	}()
	New(reg)
}
