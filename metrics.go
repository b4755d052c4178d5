package recorder

import (
	"sync/atomic"
	"time"
)

// Metrics tracks producer-side throughput and drop counts for one
// process. A single Metrics is shared across every Session.
type Metrics struct {
	RecordsEmitted atomic.Uint64
	FramesSent     atomic.Uint64
	BytesSent      atomic.Uint64
	DroppedBatches atomic.Uint64
	EdgesEmitted   atomic.Uint64

	started time.Time
}

// NewMetrics returns a ready-to-use Metrics, timestamped at construction
// for the derived rates in Snapshot.
func NewMetrics() *Metrics {
	return &Metrics{started: time.Now()}
}

// MetricsSnapshot is a point-in-time, non-atomic copy suitable for
// logging or a status endpoint.
type MetricsSnapshot struct {
	RecordsEmitted uint64
	FramesSent     uint64
	BytesSent      uint64
	DroppedBatches uint64
	EdgesEmitted   uint64
	Uptime         time.Duration
	RecordsPerSec  float64
	MiBPerSec      float64
}

// Snapshot computes a MetricsSnapshot from the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.started)
	records := m.RecordsEmitted.Load()
	bytes := m.BytesSent.Load()

	var recordsPerSec, mibPerSec float64
	if secs := uptime.Seconds(); secs > 0 {
		recordsPerSec = float64(records) / secs
		mibPerSec = float64(bytes) / (1024 * 1024) / secs
	}

	return MetricsSnapshot{
		RecordsEmitted: records,
		FramesSent:     m.FramesSent.Load(),
		BytesSent:      bytes,
		DroppedBatches: m.DroppedBatches.Load(),
		EdgesEmitted:   m.EdgesEmitted.Load(),
		Uptime:         uptime,
		RecordsPerSec:  recordsPerSec,
		MiBPerSec:      mibPerSec,
	}
}

// Reset zeroes every counter and restarts the uptime clock.
func (m *Metrics) Reset() {
	m.RecordsEmitted.Store(0)
	m.FramesSent.Store(0)
	m.BytesSent.Store(0)
	m.DroppedBatches.Store(0)
	m.EdgesEmitted.Store(0)
	m.started = time.Now()
}

// Observer receives notifications as a Session emits frames. A Session
// accepts one via WithObserver so callers can wire in custom telemetry
// without subclassing this package's types.
type Observer interface {
	OnFrameSent(frameBytes int)
	OnBatchDropped()
}

// NoOpObserver discards every notification.
type NoOpObserver struct{}

func (NoOpObserver) OnFrameSent(int) {}
func (NoOpObserver) OnBatchDropped() {}

// MetricsObserver adapts a Metrics into an Observer.
type MetricsObserver struct {
	M *Metrics
}

func (o MetricsObserver) OnFrameSent(frameBytes int) {
	o.M.FramesSent.Add(1)
	o.M.BytesSent.Add(uint64(frameBytes))
}

func (o MetricsObserver) OnBatchDropped() {
	o.M.DroppedBatches.Add(1)
}

var (
	_ Observer = NoOpObserver{}
	_ Observer = MetricsObserver{}
)
