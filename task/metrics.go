package task

import "sync/atomic"

// Metrics tracks executor activity with lock-free atomic counters, in the
// style of the ambient metrics.go pattern shared with the rhi package.
type Metrics struct {
	TasksRun        atomic.Int64
	TasksDropped    atomic.Int64
	PanicsRecovered atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics safe to hand to a
// caller (or a Prometheus collector) without aliasing the live counters.
type MetricsSnapshot struct {
	TasksRun        int64
	TasksDropped    int64
	PanicsRecovered int64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TasksRun:        m.TasksRun.Load(),
		TasksDropped:    m.TasksDropped.Load(),
		PanicsRecovered: m.PanicsRecovered.Load(),
	}
}
