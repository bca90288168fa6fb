package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/metric/noop"
)

func waitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	start := time.Now()
	for {
		if condition() {
			return
		}
		if time.Since(start) > timeout {
			t.Fatalf("Timeout waiting for condition")
		}
		time.Sleep(50 * time.Microsecond)
	}
}

func TestMetrics_EventRate(t *testing.T) {
	m := NewMetrics(2 * time.Millisecond)
	defer m.Stop()

	m.AddDelivered(time.Millisecond)
	m.AddDelivered(time.Millisecond)

	waitForCondition(t, func() bool {
		return m.GetEventRate() > 0
	}, time.Second)

	assert.Equal(t, uint64(2), m.Delivered())
}

func TestMetrics_AvgDepth(t *testing.T) {
	m := NewMetrics(2 * time.Millisecond)
	defer m.Stop()

	m.AddSample(10)
	m.AddSample(20)
	m.AddSample(30)

	waitForCondition(t, func() bool {
		return m.GetAvgDepth() == 20
	}, time.Second)

	assert.Equal(t, uint64(20), m.GetAvgDepth())
}

func TestMetrics_EmptyAvgDepth(t *testing.T) {
	m := NewMetrics(2 * time.Millisecond)
	defer m.Stop()

	waitForCondition(t, func() bool {
		return m.GetAvgDepth() == 0
	}, time.Second)

	assert.Equal(t, uint64(0), m.GetAvgDepth())
}

func TestMetrics_Stop(t *testing.T) {
	m := NewMetrics(time.Millisecond)
	m.AddSample(10)

	waitForCondition(t, func() bool {
		return m.GetAvgDepth() > 0
	}, time.Second)

	m.Stop()
	time.Sleep(5 * time.Millisecond)
	expected := m.GetAvgDepth()

	// After stopping, further operations should still be safe
	m.AddSample(500)
	m.AddPublished(1)
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, expected, m.GetAvgDepth())
	assert.Equal(t, uint64(1), m.Published())
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(time.Second)
	defer m.Stop()

	m.AddPublished(3)
	m.AddDropped(2)
	m.AddError(1)

	s := m.Snapshot()
	assert.Equal(t, uint64(3), s.Published)
	assert.Equal(t, uint64(2), s.Dropped)
	assert.Equal(t, uint64(1), s.Errors)
	assert.Equal(t, uint64(0), s.Delivered)
}

func TestMetrics_Quantile(t *testing.T) {
	m := NewMetrics(time.Second)
	defer m.Stop()

	assert.Equal(t, time.Duration(0), m.Quantile(0.5), "no deliveries yet")

	for i := 1; i <= 100; i++ {
		m.AddDelivered(time.Duration(i) * time.Millisecond)
	}

	p50 := m.Quantile(0.5)
	assert.InDelta(t, float64(50*time.Millisecond), float64(p50), float64(5*time.Millisecond))
	assert.GreaterOrEqual(t, m.Quantile(0.99), p50)
}

func TestMetrics_RegisterObservers(t *testing.T) {
	m := NewMetrics(time.Second)
	defer m.Stop()

	reg, err := RegisterObservers(noop.NewMeterProvider().Meter("test"), m)
	assert.NoError(t, err)
	assert.NotNil(t, reg)
	assert.NoError(t, reg.Unregister())
}

func TestMetrics_NonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		var m *Metrics
		assert.NotPanics(t, func() { m = NewMetrics(interval) })
		m.AddDelivered(time.Millisecond)
		assert.Equal(t, uint64(1), m.Delivered())
		m.Stop()
	}
}
