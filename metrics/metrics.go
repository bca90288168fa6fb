package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caio/go-tdigest/v4"
)

type Metrics struct {
	published uint64
	delivered uint64
	dropped   uint64
	errors    uint64

	window    uint64 // deliveries since the last tick
	eventRate uint64
	avgDepth  uint64

	samples     []uint64
	sampleMutex sync.Mutex // protects samples

	digest      *tdigest.TDigest
	digestCount uint64
	digestMutex sync.Mutex // protects digest and digestCount

	cancel context.CancelFunc
}

type Snapshot struct {
	Published  uint64
	Delivered  uint64
	Dropped    uint64
	Errors     uint64
	EventRate  uint64
	AvgDepth   uint64
	LatencyP50 time.Duration
	LatencyP99 time.Duration
}

// DefaultInterval is used when NewMetrics is given a non-positive interval.
const DefaultInterval = time.Second

// NewMetrics creates a new Metrics instance and starts a goroutine that
// updates the event rate and average queue depth every interval.
func NewMetrics(tickerInterval time.Duration) *Metrics {
	if tickerInterval <= 0 {
		tickerInterval = DefaultInterval
	}
	digest, _ := tdigest.New()
	m := &Metrics{
		samples: make([]uint64, 0),
		digest:  digest,
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	intervalNanoseconds := tickerInterval.Nanoseconds()

	go func() {
		ticker := time.NewTicker(tickerInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				window := atomic.SwapUint64(&m.window, 0)

				// events per second = (window * 1e9) / intervalNanoseconds
				atomic.StoreUint64(&m.eventRate, (window*1_000_000_000)/uint64(intervalNanoseconds))

				m.sampleMutex.Lock()
				if len(m.samples) > 0 {
					var sum uint64
					for _, v := range m.samples {
						sum += v
					}
					atomic.StoreUint64(&m.avgDepth, sum/uint64(len(m.samples)))
					m.samples = m.samples[:0]
				} else {
					atomic.StoreUint64(&m.avgDepth, 0)
				}
				m.sampleMutex.Unlock()

			case <-ctx.Done():
				return
			}
		}
	}()

	return m
}

// Stop ends the ticker goroutine. Counters stay readable and writable.
func (m *Metrics) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Metrics) AddPublished(n uint64) {
	atomic.AddUint64(&m.published, n)
}

// AddDelivered counts one delivery and records how long the event waited
// between publish and delivery.
func (m *Metrics) AddDelivered(latency time.Duration) {
	atomic.AddUint64(&m.delivered, 1)
	atomic.AddUint64(&m.window, 1)

	m.digestMutex.Lock()
	if m.digest != nil && m.digest.Add(float64(latency)) == nil {
		m.digestCount++
	}
	m.digestMutex.Unlock()
}

func (m *Metrics) AddDropped(n uint64) {
	atomic.AddUint64(&m.dropped, n)
}

func (m *Metrics) AddError(n uint64) {
	atomic.AddUint64(&m.errors, n)
}

// AddSample records the depth of a queue at one point in time.
func (m *Metrics) AddSample(sample uint64) {
	m.sampleMutex.Lock()
	m.samples = append(m.samples, sample)
	m.sampleMutex.Unlock()
}

func (m *Metrics) Published() uint64 {
	return atomic.LoadUint64(&m.published)
}

func (m *Metrics) Delivered() uint64 {
	return atomic.LoadUint64(&m.delivered)
}

func (m *Metrics) Dropped() uint64 {
	return atomic.LoadUint64(&m.dropped)
}

func (m *Metrics) Errors() uint64 {
	return atomic.LoadUint64(&m.errors)
}

func (m *Metrics) GetEventRate() uint64 {
	return atomic.LoadUint64(&m.eventRate)
}

func (m *Metrics) GetAvgDepth() uint64 {
	return atomic.LoadUint64(&m.avgDepth)
}

// Quantile returns the q-th delivery latency quantile, or zero before the
// first delivery.
func (m *Metrics) Quantile(q float64) time.Duration {
	m.digestMutex.Lock()
	defer m.digestMutex.Unlock()
	if m.digest == nil || m.digestCount == 0 {
		return 0
	}
	return time.Duration(m.digest.Quantile(q))
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Published:  m.Published(),
		Delivered:  m.Delivered(),
		Dropped:    m.Dropped(),
		Errors:     m.Errors(),
		EventRate:  m.GetEventRate(),
		AvgDepth:   m.GetAvgDepth(),
		LatencyP50: m.Quantile(0.5),
		LatencyP99: m.Quantile(0.99),
	}
}
