package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/wippyai/framehost/registry"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLoad(nil)
	m.ObserveLoad(errors.New("boom"))
	m.ObserveTick(2*time.Millisecond, 3, 1)
	m.ReadStarted()
	m.ReadStarted()
	m.ReadSettled(ReadOK, 42)
	m.GuestLog(false)
	m.GuestLog(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Updates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdateTraps))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingReads))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.ReadBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reads.WithLabelValues(ReadOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuestLogs.WithLabelValues("dropped")))
}

func TestMetrics_TracksRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	table := registry.NewTable[string]()
	table.Subscribe(m)

	a := table.Insert("a")
	table.Insert("b")
	_, _ = table.Remove(a)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Instances))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLoad(nil)
		m.ObserveTick(time.Second, 1, 0)
		m.ReadStarted()
		m.ReadSettled(ReadFailed, 0)
		m.GuestLog(true)
		m.OnRegistryEvent(registry.Event{Type: registry.EventInserted})
	})
}
