package rhi

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dohjohansson/forge/internal/logging"
	"github.com/dohjohansson/forge/internal/vkb"
)

// deviceState is the one-directional Active->Draining transition.
type deviceState int32

const (
	deviceActive deviceState = iota
	deviceDraining
)

// DeviceConfig selects a physical device and the queue families to create
// queues against.
type DeviceConfig struct {
	PhysicalDeviceIndex int
	QueueFamilyIndices  []uint32
	// ReapInterval controls how often the background reaper polls the
	// timeline semaphore. Zero selects a 1ms default.
	ReapInterval time.Duration
}

type timelineCallback struct {
	deadline uint64
	fn       func()
}

// Device owns the driver device handle, the monotonic submission timeline,
// and the deferred-destructor callback list every DeviceObject schedules
// against on drop.
type Device struct {
	instance *Instance
	driver   vkb.Driver
	handle   vkb.Handle
	name     string

	timelineSem   vkb.Handle
	timelineValue atomic.Uint64

	callbacksMu sync.Mutex
	callbacks   []timelineCallback

	state        atomic.Int32
	reaperStop   chan struct{}
	reaperDone   chan struct{}
	reapInterval time.Duration

	metrics Metrics
	logger  *logging.Logger
}

// NewDevice creates a logical device over instance's physical device at
// cfg.PhysicalDeviceIndex, creating one queue per requested family and a
// timeline semaphore starting at 0.
func NewDevice(instance *Instance, cfg DeviceConfig) (*Device, error) {
	if cfg.PhysicalDeviceIndex < 0 || cfg.PhysicalDeviceIndex >= len(instance.devices) {
		return nil, NewError("NewDevice", ErrCodeInvalidState, "physical device index out of range")
	}
	pdInfo := instance.devices[cfg.PhysicalDeviceIndex]

	handle, err := instance.driver.CreateDevice(instance.handle, vkb.DeviceCreateInfo{
		PhysicalDeviceIndex: cfg.PhysicalDeviceIndex,
		QueueFamilyIndices:  cfg.QueueFamilyIndices,
	})
	if err != nil {
		return nil, WrapError("NewDevice", err)
	}

	timelineSem, err := instance.driver.CreateTimelineSemaphore(handle, 0)
	if err != nil {
		instance.driver.DestroyDevice(handle)
		return nil, WrapError("NewDevice", err)
	}

	interval := cfg.ReapInterval
	if interval <= 0 {
		interval = time.Millisecond
	}

	d := &Device{
		instance:     instance,
		driver:       instance.driver,
		handle:       handle,
		name:         pdInfo.Name,
		timelineSem:  timelineSem,
		reaperStop:   make(chan struct{}),
		reaperDone:   make(chan struct{}),
		reapInterval: interval,
		logger:       instance.logger,
	}
	go d.reaperLoop()
	return d, nil
}

// Name returns the underlying physical device's name, used in error
// context.
func (d *Device) Name() string { return d.name }

// TimelineValue returns the last timeline value allocated by a submission
// (not necessarily yet signalled by the GPU).
func (d *Device) TimelineValue() uint64 { return d.timelineValue.Load() }

// nextTimelineValue allocates the next submission's signal target.
func (d *Device) nextTimelineValue() uint64 { return d.timelineValue.Add(1) }

// SignalledValue returns the timeline value the GPU has actually completed
// up to, as observed through the timeline semaphore.
func (d *Device) SignalledValue() (uint64, error) {
	v, err := d.driver.SemaphoreCounterValue(d.handle, d.timelineSem)
	if err != nil {
		return 0, NewDeviceError("SignalledValue", d.name, ErrCodeDeviceLost, err.Error())
	}
	return v, nil
}

// AddTimelineCallback schedules fn to run, exactly once, once the device
// has signalled deadline. Rejected once the device has started draining.
func (d *Device) AddTimelineCallback(deadline uint64, fn func()) error {
	if deviceState(d.state.Load()) == deviceDraining {
		return NewDeviceError("AddTimelineCallback", d.name, ErrCodeInvalidState, "device is draining")
	}
	d.callbacksMu.Lock()
	d.callbacks = append(d.callbacks, timelineCallback{deadline: deadline, fn: fn})
	d.callbacksMu.Unlock()
	return nil
}

// reap fires (exactly once each) every callback whose deadline is at or
// below the currently signalled timeline value. Removing a callback from
// the pending list before invoking it is what makes firing idempotent
// under arbitrarily many reap calls.
func (d *Device) reap() {
	value, err := d.SignalledValue()
	if err != nil {
		return
	}
	d.callbacksMu.Lock()
	remaining := d.callbacks[:0]
	var fired []func()
	for _, cb := range d.callbacks {
		if cb.deadline <= value {
			fired = append(fired, cb.fn)
		} else {
			remaining = append(remaining, cb)
		}
	}
	d.callbacks = remaining
	d.callbacksMu.Unlock()

	for _, fn := range fired {
		fn()
		d.metrics.CallbacksFired.Add(1)
	}
}

// drainAll runs every still-pending callback regardless of deadline,
// draining the list completely. Used by Close: the device is shutting
// down, so there is no later reap to rely on.
func (d *Device) drainAll() {
	for {
		d.callbacksMu.Lock()
		if len(d.callbacks) == 0 {
			d.callbacksMu.Unlock()
			return
		}
		cb := d.callbacks[0]
		d.callbacks = d.callbacks[1:]
		d.callbacksMu.Unlock()

		cb.fn()
		d.metrics.CallbacksFired.Add(1)
	}
}

func (d *Device) reaperLoop() {
	defer close(d.reaperDone)
	ticker := time.NewTicker(d.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.reap()
		case <-d.reaperStop:
			return
		}
	}
}

// WaitIdle blocks until the device has completed all outstanding work,
// then synchronously reaps every callback that became eligible as a
// result.
func (d *Device) WaitIdle() error {
	if err := d.driver.DeviceWaitIdle(d.handle); err != nil {
		d.state.Store(int32(deviceDraining))
		return NewDeviceError("WaitIdle", d.name, ErrCodeDeviceLost, err.Error())
	}
	d.reap()
	return nil
}

// WaitTimelineValue blocks (honoring ctx) until the device has signalled
// at least value.
func (d *Device) WaitTimelineValue(ctx context.Context, value uint64) error {
	if err := d.driver.WaitSemaphore(ctx, d.handle, d.timelineSem, value); err != nil {
		return NewDeviceError("WaitTimelineValue", d.name, ErrCodeDeviceLost, err.Error())
	}
	return nil
}

// Close transitions the device into Draining (idempotent), waits for the
// GPU to go idle, fully drains every pending timeline callback regardless
// of deadline, and destroys the device handle. Re-entrant submission after
// Close is rejected by Queue.
func (d *Device) Close() error {
	if !d.state.CompareAndSwap(int32(deviceActive), int32(deviceDraining)) {
		return nil
	}
	close(d.reaperStop)
	<-d.reaperDone

	err := d.driver.DeviceWaitIdle(d.handle)
	d.drainAll()

	d.driver.DestroySemaphore(d.handle, d.timelineSem)
	d.driver.DestroyDevice(d.handle)

	if err != nil {
		return NewDeviceError("Close", d.name, ErrCodeDeviceLost, err.Error())
	}
	return nil
}

// Draining reports whether the device has started (or finished) shutdown.
func (d *Device) Draining() bool {
	return deviceState(d.state.Load()) == deviceDraining
}

// Metrics returns the device's live counters.
func (d *Device) Metrics() *Metrics { return &d.metrics }
