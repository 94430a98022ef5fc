package rhi

import (
	"fmt"

	cpupool "github.com/dohjohansson/forge/internal/pool"
	"github.com/dohjohansson/forge/internal/vkb"
)

// BufferUsage mirrors VkBufferUsageFlagBits bit positions callers care
// about; the rest pass through to the driver untouched.
const (
	BufferUsageTransferSrc uint32 = 1 << 0
	BufferUsageTransferDst uint32 = 1 << 1
	BufferUsageStorage     uint32 = 1 << 5
	BufferUsageUniform     uint32 = 1 << 4
	BufferUsageVertex      uint32 = 1 << 7
	BufferUsageIndex       uint32 = 1 << 6
)

// MemoryHostVisible and MemoryDeviceLocal mirror VkMemoryPropertyFlagBits.
const (
	MemoryDeviceLocal uint32 = 1 << 0
	MemoryHostVisible uint32 = 1 << 1
)

// Buffer is a GPU buffer plus its backing memory allocation.
type Buffer struct {
	DeviceObjectHeader
	handle vkb.Handle
	memory vkb.Handle
	size   uint64
}

// NewBuffer creates an uninitialized buffer of size bytes.
func NewBuffer(device *Device, name string, size uint64, usageFlags, memoryFlags uint32) (*Buffer, error) {
	handle, memory, err := device.driver.CreateBuffer(device.handle, vkb.BufferCreateInfo{
		Size:        size,
		UsageFlags:  usageFlags,
		MemoryFlags: memoryFlags,
	})
	if err != nil {
		return nil, NewDeviceError("NewBuffer", device.name, ErrCodeOutOfMemory, err.Error())
	}
	return &Buffer{
		DeviceObjectHeader: newDeviceObjectHeader(device, name),
		handle:             handle,
		memory:             memory,
		size:               size,
	}, nil
}

// Size returns the buffer's byte size.
func (b *Buffer) Size() uint64 { return b.size }

func (b *Buffer) handleValue() vkb.Handle { return b.handle }

// Map returns the buffer's mapped host-visible memory. Only valid for
// buffers created with MemoryHostVisible.
func (b *Buffer) Map() ([]byte, error) {
	mapped, err := b.device.driver.MapMemory(b.device.handle, b.memory, b.size)
	if err != nil {
		return nil, NewDeviceError("Map", b.device.name, ErrCodeInvalidState, err.Error())
	}
	return mapped, nil
}

// Unmap releases the mapping obtained from Map.
func (b *Buffer) Unmap() {
	b.device.driver.UnmapMemory(b.device.handle, b.memory)
}

// Close schedules the buffer's GPU handle and memory for destruction once
// the device has signalled past its current timeline value.
func (b *Buffer) Close() error {
	device, handle, memory := b.device, b.handle, b.memory
	return deferDestroy(device, func() {
		device.driver.DestroyBuffer(device.handle, handle, memory)
	})
}

// NewBufferFromBytes creates a device-local buffer and populates it with
// data via a host-visible staging buffer and a recorded copy command. The
// copy command is recorded and enqueued onto queue but not submitted —
// the caller still calls queue.Submit(). Once the submission's timeline
// value is signalled, the staging buffer's driver handle is destroyed and
// its CPU-side scratch slice is returned to the staging pool: this is the
// mechanism a staging upload's teardown rides on end to end.
//
// A bucketed internal staging slice (internal/pool) is used as scratch
// while assembling the upload; like the GPU-side staging buffer, it is
// only returned to the pool once the copy's timeline callback fires.
func NewBufferFromBytes(device *Device, queue *Queue, cmdPool *CommandPoolContext, name string, usageFlags uint32, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("rhi: NewBufferFromBytes requires non-empty data")
	}
	size := uint64(len(data))

	dst, err := NewBuffer(device, name, size, usageFlags|BufferUsageTransferDst, MemoryDeviceLocal)
	if err != nil {
		return nil, err
	}

	staging, err := NewBuffer(device, name+".staging", size, BufferUsageTransferSrc, MemoryHostVisible)
	if err != nil {
		dst.Close()
		return nil, err
	}

	scratch := cpupool.GetStagingBuffer(len(data))
	n := copy(scratch, data)
	mapped, err := staging.Map()
	if err != nil {
		staging.Close()
		dst.Close()
		cpupool.PutStagingBuffer(scratch)
		return nil, err
	}
	copy(mapped, scratch[:n])
	staging.Unmap()

	cmd, end, err := cmdPool.Commands(CommandScopeDesc{Level: 0, ScopedBeginEnd: true})
	if err != nil {
		staging.Close()
		dst.Close()
		cpupool.PutStagingBuffer(scratch)
		return nil, err
	}
	device.driver.CmdCopyBuffer(cmd, staging.handle, dst.handle, size)
	if err := end(); err != nil {
		staging.Close()
		dst.Close()
		cpupool.PutStagingBuffer(scratch)
		return nil, err
	}

	queue.EnqueueSubmit(QueueSubmitInfo{CommandBuffers: []vkb.Handle{cmd}})
	if err := cmdPool.AddCommandsFinishedCallback(func() {
		device.driver.DestroyBuffer(device.handle, staging.handle, staging.memory)
		cpupool.PutStagingBuffer(scratch)
	}); err != nil {
		staging.Close()
		dst.Close()
		cpupool.PutStagingBuffer(scratch)
		return nil, err
	}

	return dst, nil
}
