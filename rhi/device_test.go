package rhi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dohjohansson/forge/internal/vkb"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	driver := vkb.NewFakeDriver()
	inst, err := NewInstance(driver, InstanceConfig{ApplicationName: "test"})
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	dev, err := NewDevice(inst, DeviceConfig{ReapInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	t.Cleanup(func() {
		dev.Close()
		inst.Close()
	})
	return dev
}

func TestTimelineCallbackFiresOnceAcrossRepeatedReap(t *testing.T) {
	dev := newTestDevice(t)

	var fired int
	var mu sync.Mutex
	if err := dev.AddTimelineCallback(1, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("AddTimelineCallback: %v", err)
	}

	vkb.SignalFakeSemaphore(dev.driver, dev.timelineSem, 1)

	// reap is called many times concurrently with the value already
	// satisfied; removing a callback before invoking it must make this
	// safe regardless of how many times reap runs.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dev.reap()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Fatalf("callback fired %d times, want exactly 1", fired)
	}
}

func TestTimelineCallbackNotFiredBeforeDeadline(t *testing.T) {
	dev := newTestDevice(t)

	fired := false
	if err := dev.AddTimelineCallback(5, func() { fired = true }); err != nil {
		t.Fatalf("AddTimelineCallback: %v", err)
	}
	vkb.SignalFakeSemaphore(dev.driver, dev.timelineSem, 4)
	dev.reap()
	if fired {
		t.Fatal("callback fired before its deadline was signalled")
	}

	vkb.SignalFakeSemaphore(dev.driver, dev.timelineSem, 5)
	dev.reap()
	if !fired {
		t.Fatal("callback did not fire once its deadline was signalled")
	}
}

func TestCloseDrainsAllPendingCallbacksRegardlessOfDeadline(t *testing.T) {
	driver := vkb.NewFakeDriver()
	inst, err := NewInstance(driver, InstanceConfig{ApplicationName: "test"})
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	dev, err := NewDevice(inst, DeviceConfig{ReapInterval: time.Hour})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}

	var fired []uint64
	var mu sync.Mutex
	for _, deadline := range []uint64{1, 2, 100} {
		d := deadline
		if err := dev.AddTimelineCallback(d, func() {
			mu.Lock()
			fired = append(fired, d)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("AddTimelineCallback: %v", err)
		}
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	inst.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 3 {
		t.Fatalf("Close drained %d callbacks, want 3 (even the one past the signalled value)", len(fired))
	}
}

func TestAddTimelineCallbackRejectedAfterClose(t *testing.T) {
	driver := vkb.NewFakeDriver()
	inst, err := NewInstance(driver, InstanceConfig{ApplicationName: "test"})
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	dev, err := NewDevice(inst, DeviceConfig{})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	defer inst.Close()

	if err := dev.AddTimelineCallback(1, func() {}); err == nil {
		t.Fatal("AddTimelineCallback after Close should fail")
	}
}

func TestWaitTimelineValueRespectsContextCancellation(t *testing.T) {
	dev := newTestDevice(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := dev.WaitTimelineValue(ctx, 999); err == nil {
		t.Fatal("WaitTimelineValue should time out waiting for an unsignalled value")
	}
}
