// Package promexport adapts task.Metrics and rhi.Metrics onto one
// prometheus.Collector, so both subsystems feed a single /metrics
// endpoint without either package importing prometheus directly.
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dohjohansson/forge/rhi"
	"github.com/dohjohansson/forge/task"
)

// Collector implements prometheus.Collector over a task executor's
// Metrics and, optionally, a device's Metrics. Device may be nil for
// processes that only run the task graph.
type Collector struct {
	taskMetrics *task.Metrics
	device      *rhi.Device

	tasksRun        *prometheus.Desc
	tasksDropped    *prometheus.Desc
	panicsRecovered *prometheus.Desc

	submitCount    *prometheus.Desc
	presentCount   *prometheus.Desc
	callbacksFired *prometheus.Desc
	surfaceStale   *prometheus.Desc
	timelineValue  *prometheus.Desc
}

// New builds a Collector over taskMetrics and, if device is non-nil, its
// rhi.Metrics as well.
func New(taskMetrics *task.Metrics, device *rhi.Device) *Collector {
	return &Collector{
		taskMetrics: taskMetrics,
		device:      device,

		tasksRun:        prometheus.NewDesc("forge_task_run_total", "Tasks executed.", nil, nil),
		tasksDropped:    prometheus.NewDesc("forge_task_dropped_total", "Tasks dropped without running (closed executor).", nil, nil),
		panicsRecovered: prometheus.NewDesc("forge_task_panics_recovered_total", "Worker panics recovered and converted to task failures.", nil, nil),

		submitCount:    prometheus.NewDesc("forge_rhi_submit_total", "Queue submissions issued.", nil, nil),
		presentCount:   prometheus.NewDesc("forge_rhi_present_total", "Queue present calls issued.", nil, nil),
		callbacksFired: prometheus.NewDesc("forge_rhi_timeline_callbacks_fired_total", "Deferred-destroy callbacks fired.", nil, nil),
		surfaceStale:   prometheus.NewDesc("forge_rhi_surface_stale_total", "Acquire/present calls reporting OutOfDate or Suboptimal.", nil, nil),
		timelineValue:  prometheus.NewDesc("forge_rhi_timeline_value", "Last timeline value allocated by a submission.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tasksRun
	ch <- c.tasksDropped
	ch <- c.panicsRecovered
	if c.device != nil {
		ch <- c.submitCount
		ch <- c.presentCount
		ch <- c.callbacksFired
		ch <- c.surfaceStale
		ch <- c.timelineValue
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.taskMetrics != nil {
		snap := c.taskMetrics.Snapshot()
		ch <- prometheus.MustNewConstMetric(c.tasksRun, prometheus.CounterValue, float64(snap.TasksRun))
		ch <- prometheus.MustNewConstMetric(c.tasksDropped, prometheus.CounterValue, float64(snap.TasksDropped))
		ch <- prometheus.MustNewConstMetric(c.panicsRecovered, prometheus.CounterValue, float64(snap.PanicsRecovered))
	}
	if c.device != nil {
		snap := c.device.Metrics().Snapshot(c.device)
		ch <- prometheus.MustNewConstMetric(c.submitCount, prometheus.CounterValue, float64(snap.SubmitCount))
		ch <- prometheus.MustNewConstMetric(c.presentCount, prometheus.CounterValue, float64(snap.PresentCount))
		ch <- prometheus.MustNewConstMetric(c.callbacksFired, prometheus.CounterValue, float64(snap.CallbacksFired))
		ch <- prometheus.MustNewConstMetric(c.surfaceStale, prometheus.CounterValue, float64(snap.SurfaceStale))
		ch <- prometheus.MustNewConstMetric(c.timelineValue, prometheus.GaugeValue, float64(snap.TimelineValue))
	}
}
