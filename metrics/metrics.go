// Package metrics exposes Prometheus collectors for the host.
//
// A nil *Metrics is valid and records nothing, so components take one
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wippyai/framehost/registry"
)

const namespace = "framehost"

// Read outcomes.
const (
	ReadOK       = "ok"
	ReadFailed   = "fetch_failed"
	ReadOverflow = "overflow"
	ReadRejected = "rejected"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Instance metrics
	Instances prometheus.Gauge
	Loads     *prometheus.CounterVec

	// Scheduler metrics
	Frames       prometheus.Counter
	TickDuration prometheus.Histogram
	Updates      prometheus.Counter
	UpdateTraps  prometheus.Counter

	// Resource metrics
	Reads        *prometheus.CounterVec
	ReadBytes    prometheus.Counter
	PendingReads prometheus.Gauge

	// Guest output
	GuestLogs *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Instances: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances",
			Help:      "Number of registered guest instances",
		}),
		Loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Guest load attempts by result",
		}, []string{"result"}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Scheduler ticks executed",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent updating all active guests in one tick",
			Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .0166, .033, .1},
		}),
		Updates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Guest update calls",
		}),
		UpdateTraps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_traps_total",
			Help:      "Guest update calls that failed",
		}),
		Reads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Settled guest resource reads by result",
		}, []string{"result"}),
		ReadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_bytes_total",
			Help:      "Bytes copied into guest memory",
		}),
		PendingReads: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_reads",
			Help:      "Guest resource reads in flight",
		}),
		GuestLogs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guest_logs_total",
			Help:      "Guest console messages by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveLoad records a load attempt.
func (m *Metrics) ObserveLoad(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Loads.WithLabelValues("error").Inc()
		return
	}
	m.Loads.WithLabelValues("ok").Inc()
}

// ObserveTick records one scheduler tick.
func (m *Metrics) ObserveTick(d time.Duration, updated, trapped int) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	m.TickDuration.Observe(d.Seconds())
	m.Updates.Add(float64(updated))
	m.UpdateTraps.Add(float64(trapped))
}

// ReadStarted records a read entering flight.
func (m *Metrics) ReadStarted() {
	if m == nil {
		return
	}
	m.PendingReads.Inc()
}

// ReadSettled records a read leaving flight with result and n bytes copied.
func (m *Metrics) ReadSettled(result string, n int) {
	if m == nil {
		return
	}
	m.PendingReads.Dec()
	m.Reads.WithLabelValues(result).Inc()
	m.ReadBytes.Add(float64(n))
}

// GuestLog records a guest console message.
func (m *Metrics) GuestLog(dropped bool) {
	if m == nil {
		return
	}
	if dropped {
		m.GuestLogs.WithLabelValues("dropped").Inc()
		return
	}
	m.GuestLogs.WithLabelValues("emitted").Inc()
}

// OnRegistryEvent tracks the instance gauge from registry lifecycle events.
func (m *Metrics) OnRegistryEvent(e registry.Event) {
	if m == nil {
		return
	}
	switch e.Type {
	case registry.EventInserted:
		m.Instances.Inc()
	case registry.EventRemoved:
		m.Instances.Dec()
	}
}
