package rhi

import "github.com/dohjohansson/forge/internal/vkb"

// Semaphore is a binary GPU semaphore used for acquire/present and
// queue-to-queue synchronization, as distinct from the device's own
// internal timeline semaphore.
type Semaphore struct {
	DeviceObjectHeader
	handle vkb.Handle
}

// NewSemaphore creates a binary semaphore.
func NewSemaphore(device *Device, name string) (*Semaphore, error) {
	h, err := device.driver.CreateBinarySemaphore(device.handle)
	if err != nil {
		return nil, NewDeviceError("NewSemaphore", device.name, ErrCodeOutOfMemory, err.Error())
	}
	return &Semaphore{DeviceObjectHeader: newDeviceObjectHeader(device, name), handle: h}, nil
}

func (s *Semaphore) handleValue() vkb.Handle { return s.handle }

// Close schedules the semaphore's GPU handle for destruction once the
// device has signalled past its current timeline value, rather than
// destroying it immediately.
func (s *Semaphore) Close() error {
	device, handle := s.device, s.handle
	return deferDestroy(device, func() {
		device.driver.DestroySemaphore(device.handle, handle)
	})
}
