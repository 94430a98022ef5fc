package rhi

import "sync/atomic"

// Metrics tracks device/queue activity with lock-free atomic counters,
// matching the task package's Metrics shape so both feed one Prometheus
// exporter.
type Metrics struct {
	SubmitCount     atomic.Int64
	PresentCount    atomic.Int64
	CallbacksFired  atomic.Int64
	SurfaceStale    atomic.Int64
}

// MetricsSnapshot is a point-in-time copy safe to hand to a caller.
type MetricsSnapshot struct {
	SubmitCount    int64
	PresentCount   int64
	CallbacksFired int64
	SurfaceStale   int64
	TimelineValue  uint64
}

// Snapshot copies the current counters plus the device's timeline value.
func (m *Metrics) Snapshot(d *Device) MetricsSnapshot {
	s := MetricsSnapshot{
		SubmitCount:    m.SubmitCount.Load(),
		PresentCount:   m.PresentCount.Load(),
		CallbacksFired: m.CallbacksFired.Load(),
		SurfaceStale:   m.SurfaceStale.Load(),
	}
	if d != nil {
		s.TimelineValue = d.TimelineValue()
	}
	return s
}
