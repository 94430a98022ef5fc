package vkb

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeDriver is an in-memory stand-in for a real GPU, letting rhi be
// exercised in tests without a Vulkan-capable machine. Every resource is
// backed by a plain Go allocation, and all of them are guarded by the one
// driver-wide mutex mu: no finer locking is needed here since test
// workloads are small.
type fakeDriver struct {
	mu         sync.Mutex
	next       uint64
	buffers    map[Handle][]byte
	images     map[Handle][]byte
	memToBytes map[Handle][]byte // memory handle -> aliased buffer/image bytes, for MapMemory
	semaphores map[Handle]*atomic.Uint64
	pools      map[Handle]map[Handle]bool // pool -> live command buffers
	swapchains map[Handle][]Handle
}

// NewFakeDriver returns a Driver with no GPU behind it, suitable for tests.
func NewFakeDriver() Driver {
	return &fakeDriver{
		buffers:    make(map[Handle][]byte),
		images:     make(map[Handle][]byte),
		memToBytes: make(map[Handle][]byte),
		semaphores: make(map[Handle]*atomic.Uint64),
		pools:      make(map[Handle]map[Handle]bool),
		swapchains: make(map[Handle][]Handle),
	}
}

func (d *fakeDriver) alloc() Handle {
	d.next++
	return Handle(d.next)
}

func (d *fakeDriver) CreateInstance(InstanceCreateInfo) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc(), nil
}

func (d *fakeDriver) DestroyInstance(Handle) {}

func (d *fakeDriver) EnumeratePhysicalDevices(Handle) ([]PhysicalDeviceInfo, error) {
	return []PhysicalDeviceInfo{
		{
			Index: 0,
			Name:  "fake-gpu-0",
			QueueFamilies: []QueueFamilyInfo{
				{Index: 0, QueueCount: 1, Flags: 0b111},
			},
		},
	}, nil
}

func (d *fakeDriver) CreateDevice(Handle, DeviceCreateInfo) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc(), nil
}

func (d *fakeDriver) DestroyDevice(Handle) {}
func (d *fakeDriver) DeviceWaitIdle(Handle) error { return nil }

func (d *fakeDriver) GetDeviceQueue(device Handle, familyIndex, queueIndex uint32) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc(), nil
}

func (d *fakeDriver) CreateTimelineSemaphore(device Handle, initialValue uint64) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc()
	v := &atomic.Uint64{}
	v.Store(initialValue)
	d.semaphores[h] = v
	return h, nil
}

func (d *fakeDriver) CreateBinarySemaphore(Handle) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc()
	d.semaphores[h] = &atomic.Uint64{}
	return h, nil
}

func (d *fakeDriver) DestroySemaphore(device, semaphore Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, semaphore)
}

func (d *fakeDriver) SemaphoreCounterValue(device, semaphore Handle) (uint64, error) {
	d.mu.Lock()
	v, ok := d.semaphores[semaphore]
	d.mu.Unlock()
	if !ok {
		return 0, NewError("SemaphoreCounterValue", ErrCodeInvalidArgument, "unknown semaphore")
	}
	return v.Load(), nil
}

// SignalSemaphore is a test-only helper (not part of Driver) letting tests
// simulate the device completing a submission without a real GPU.
func (d *fakeDriver) SignalSemaphore(semaphore Handle, value uint64) {
	d.mu.Lock()
	v, ok := d.semaphores[semaphore]
	d.mu.Unlock()
	if ok {
		v.Store(value)
	}
}

// SignalFakeSemaphore is the exported entry point for SignalSemaphore, for
// callers outside this package (rhi's tests) that only hold a Driver.
// A no-op if drv isn't a fake driver.
func SignalFakeSemaphore(drv Driver, semaphore Handle, value uint64) {
	if fd, ok := drv.(*fakeDriver); ok {
		fd.SignalSemaphore(semaphore, value)
	}
}

func (d *fakeDriver) WaitSemaphore(ctx context.Context, device, semaphore Handle, value uint64) error {
	d.mu.Lock()
	v, ok := d.semaphores[semaphore]
	d.mu.Unlock()
	if !ok {
		return NewError("WaitSemaphore", ErrCodeInvalidArgument, "unknown semaphore")
	}
	for v.Load() < value {
		select {
		case <-ctx.Done():
			return NewError("WaitSemaphore", ErrCodeTimeout, ctx.Err().Error())
		default:
		}
	}
	return nil
}

func (d *fakeDriver) CreateBuffer(device Handle, info BufferCreateInfo) (Handle, Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc()
	mem := d.alloc()
	bytes := make([]byte, info.Size)
	d.buffers[h] = bytes
	d.memToBytes[mem] = bytes
	return h, mem, nil
}

func (d *fakeDriver) DestroyBuffer(device, buffer, memory Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, buffer)
}

func (d *fakeDriver) MapMemory(device, memory Handle, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.memToBytes[memory]
	if !ok {
		return nil, NewError("MapMemory", ErrCodeInvalidArgument, "unknown memory handle")
	}
	return b, nil
}

func (d *fakeDriver) UnmapMemory(device, memory Handle) {}

// FakeBufferBytes exposes a fake-backed buffer's storage directly, keyed
// by the buffer handle rather than its memory handle, for tests that only
// retained the buffer handle.
func FakeBufferBytes(drv Driver, buffer Handle) []byte {
	fd, ok := drv.(*fakeDriver)
	if !ok {
		return nil
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.buffers[buffer]
}

func (d *fakeDriver) CreateImage(device Handle, info ImageCreateInfo) (Handle, Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc()
	mem := d.alloc()
	bytes := make([]byte, int(info.Width)*int(info.Height)*4)
	d.images[h] = bytes
	d.memToBytes[mem] = bytes
	return h, mem, nil
}

func (d *fakeDriver) DestroyImage(device, image, memory Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.images, image)
}

func (d *fakeDriver) CreateImageView(device Handle, info ImageViewCreateInfo) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc(), nil
}

func (d *fakeDriver) DestroyImageView(device, view Handle) {}

func (d *fakeDriver) CreateCommandPool(device Handle, info CommandPoolCreateInfo) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc()
	d.pools[h] = make(map[Handle]bool)
	return h, nil
}

func (d *fakeDriver) DestroyCommandPool(device, pool Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pools, pool)
}

func (d *fakeDriver) ResetCommandPool(device, pool Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pools[pool] = make(map[Handle]bool)
	return nil
}

func (d *fakeDriver) AllocateCommandBuffers(device, pool Handle, count int, secondary bool) ([]Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	live, ok := d.pools[pool]
	if !ok {
		return nil, NewError("AllocateCommandBuffers", ErrCodeInvalidArgument, "unknown pool")
	}
	out := make([]Handle, count)
	for i := range out {
		h := d.alloc()
		live[h] = true
		out[i] = h
	}
	return out, nil
}

func (d *fakeDriver) FreeCommandBuffers(device, pool Handle, buffers []Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	live, ok := d.pools[pool]
	if !ok {
		return
	}
	for _, h := range buffers {
		delete(live, h)
	}
}

func (d *fakeDriver) BeginCommandBuffer(Handle) error { return nil }
func (d *fakeDriver) EndCommandBuffer(Handle) error   { return nil }

func (d *fakeDriver) CmdCopyBuffer(cmd, src, dst Handle, size uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, sok := d.buffers[src]
	t, tok := d.buffers[dst]
	if sok && tok {
		copy(t, s[:min64(size, uint64(len(s)))])
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func (d *fakeDriver) CmdClearColorImage(cmd, image Handle, color [4]float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	bytes, ok := d.images[image]
	if !ok {
		return
	}
	for i := 0; i+4 <= len(bytes); i += 4 {
		bytes[i] = byte(color[0] * 255)
		bytes[i+1] = byte(color[1] * 255)
		bytes[i+2] = byte(color[2] * 255)
		bytes[i+3] = byte(color[3] * 255)
	}
}

func (d *fakeDriver) CmdBlitImage(cmd, src, dst Handle, srcW, srcH, dstW, dstH uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, sok := d.images[src]
	t, tok := d.images[dst]
	if sok && tok {
		copy(t, s[:min64(uint64(len(s)), uint64(len(t)))])
	}
}

func (d *fakeDriver) CmdPipelineBarrierImage(cmd, image Handle, oldLayout, newLayout uint32) {}

func (d *fakeDriver) QueueSubmit(queue Handle, batches []SubmitBatch, fence Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range batches {
		for i, sem := range b.SignalSemaphores {
			if v, ok := d.semaphores[sem]; ok && i < len(b.SignalValues) {
				v.Store(b.SignalValues[i])
			}
		}
	}
	return nil
}

func (d *fakeDriver) CreateSwapchain(device, surface Handle, imageCount int) (Handle, []Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := d.alloc()
	images := make([]Handle, imageCount)
	for i := range images {
		images[i] = d.alloc()
	}
	d.swapchains[sc] = images
	return sc, images, nil
}

func (d *fakeDriver) DestroySwapchain(device, swapchain Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.swapchains, swapchain)
}

func (d *fakeDriver) AcquireNextImage(ctx context.Context, device, swapchain, signalSemaphore Handle) (uint32, PresentResult, error) {
	d.mu.Lock()
	images, ok := d.swapchains[swapchain]
	d.mu.Unlock()
	if !ok || len(images) == 0 {
		return 0, PresentResult{}, NewError("AcquireNextImage", ErrCodeInvalidArgument, "unknown swapchain")
	}
	return 0, PresentResult{}, nil
}

func (d *fakeDriver) QueuePresent(queue Handle, batch PresentBatch) ([]PresentResult, error) {
	return make([]PresentResult, len(batch.Swapchains)), nil
}
