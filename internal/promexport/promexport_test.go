package promexport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dohjohansson/forge/internal/vkb"
	"github.com/dohjohansson/forge/rhi"
	"github.com/dohjohansson/forge/task"
)

func collect(t *testing.T, c *Collector) map[string]*dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 32)
	c.Collect(ch)
	close(ch)

	out := make(map[string]*dto.Metric)
	for m := range ch {
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			t.Fatalf("Write: %v", err)
		}
		out[m.Desc().String()] = &pb
	}
	return out
}

func TestCollectorReportsTaskMetricsOnly(t *testing.T) {
	executor := task.NewExecutor(task.Config{Workers: 1})
	defer executor.Close()

	c := New(executor.Metrics(), nil)
	metrics := collect(t, c)
	if len(metrics) != 3 {
		t.Fatalf("expected 3 metrics with no device, got %d", len(metrics))
	}
}

func TestCollectorReportsDeviceMetricsWhenPresent(t *testing.T) {
	driver := vkb.NewFakeDriver()
	inst, err := rhi.NewInstance(driver, rhi.InstanceConfig{ApplicationName: "promexport-test"})
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	dev, err := rhi.NewDevice(inst, rhi.DeviceConfig{ReapInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	defer func() {
		dev.Close()
		inst.Close()
	}()

	executor := task.NewExecutor(task.Config{Workers: 1})
	defer executor.Close()

	c := New(executor.Metrics(), dev)
	metrics := collect(t, c)
	if len(metrics) != 8 {
		t.Fatalf("expected 8 metrics with a device attached, got %d", len(metrics))
	}
}

func TestCollectorRegistersCleanly(t *testing.T) {
	executor := task.NewExecutor(task.Config{Workers: 1})
	defer executor.Close()

	reg := prometheus.NewRegistry()
	if err := reg.Register(New(executor.Metrics(), nil)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather: %v", err)
	}
}
