package rhi

import "github.com/dohjohansson/forge/internal/vkb"

// BufferArena carves many small suballocations out of one large device
// buffer, rather than paying a driver CreateBuffer/AllocateMemory round
// trip per small allocation — the discipline a real allocator budget
// forces once per-allocation counts matter.
type BufferArena struct {
	DeviceObjectHeader
	handle vkb.Handle
	memory vkb.Handle
	sub    *vkb.SubAllocator
}

// NewBufferArena creates a single backing buffer of blockSize bytes and
// wraps it with a best-fit suballocator.
func NewBufferArena(device *Device, name string, blockSize uint64, usageFlags uint32) (*BufferArena, error) {
	handle, memory, err := device.driver.CreateBuffer(device.handle, vkb.BufferCreateInfo{
		Size:        blockSize,
		UsageFlags:  usageFlags,
		MemoryFlags: MemoryDeviceLocal,
	})
	if err != nil {
		return nil, NewDeviceError("NewBufferArena", device.name, ErrCodeOutOfMemory, err.Error())
	}
	return &BufferArena{
		DeviceObjectHeader: newDeviceObjectHeader(device, name),
		handle:             handle,
		memory:             memory,
		sub:                vkb.NewSubAllocator(memory, blockSize),
	}, nil
}

// Alloc carves out size bytes aligned to alignment from the arena's
// backing buffer.
func (a *BufferArena) Alloc(size, alignment uint64) (vkb.Allocation, error) {
	alloc, err := a.sub.Alloc(size, alignment)
	if err != nil {
		return vkb.Allocation{}, NewDeviceError("BufferArena.Alloc", a.device.name, ErrCodePoolExhausted, err.Error())
	}
	return alloc, nil
}

// Free returns alloc's range to the arena's free list.
func (a *BufferArena) Free(alloc vkb.Allocation) {
	a.sub.Free(alloc)
}

// Handle returns the backing buffer handle every suballocation shares;
// callers bind against (Handle(), alloc.Offset).
func (a *BufferArena) Handle() vkb.Handle { return a.handle }

// Close schedules the arena's backing buffer for destruction once the
// device has signalled past its current timeline value.
func (a *BufferArena) Close() error {
	device, handle, memory := a.device, a.handle, a.memory
	return deferDestroy(device, func() {
		device.driver.DestroyBuffer(device.handle, handle, memory)
	})
}
