package rhi

import (
	"github.com/google/uuid"
)

// DeviceObjectHeader is embedded by value in every GPU-owning type,
// replacing the source's CRTP/virtual-inheritance DeviceObject base with
// composition (see SPEC_FULL.md 4.E).
type DeviceObjectHeader struct {
	device *Device
	uid    uuid.UUID
	name   string
}

func newDeviceObjectHeader(device *Device, name string) DeviceObjectHeader {
	return DeviceObjectHeader{device: device, uid: uuid.New(), name: name}
}

// Device returns the owning device.
func (h *DeviceObjectHeader) Device() *Device { return h.device }

// UID returns the object's debug-tagging UUID.
func (h *DeviceObjectHeader) UID() uuid.UUID { return h.uid }

// Name returns the object's debug name.
func (h *DeviceObjectHeader) Name() string { return h.name }

// deferDestroy schedules destroy to run once the device has signalled
// past its currently allocated timeline value — the "no handle is
// destroyed while a queue might still reference it" discipline every
// DeviceObject drop path follows.
func deferDestroy(device *Device, destroy func()) error {
	deadline := device.TimelineValue() + 1
	return device.AddTimelineCallback(deadline, destroy)
}
