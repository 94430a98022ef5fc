// Package vkb adapts the Vulkan C ABI, via github.com/goki/vulkan, to the
// narrow Driver surface the rhi package needs. Swapping Driver for the fake
// implementation in fake.go lets rhi be tested without a GPU.
package vkb

import "context"

// Handle is an opaque device-object handle (buffer, image, view, semaphore,
// command pool, command buffer, swapchain...). Its zero value is invalid.
type Handle uint64

// NullHandle is the invalid Handle sentinel.
const NullHandle Handle = 0

type InstanceCreateInfo struct {
	ApplicationName    string
	EngineName         string
	ApplicationVersion uint32
	EngineVersion      uint32
	APIVersion         uint32
	Validation         bool
}

type PhysicalDeviceInfo struct {
	Index         int
	Name          string
	QueueFamilies []QueueFamilyInfo
}

type QueueFamilyInfo struct {
	Index      uint32
	QueueCount uint32
	Flags      uint32
}

type DeviceCreateInfo struct {
	PhysicalDeviceIndex int
	QueueFamilyIndices  []uint32
}

type BufferCreateInfo struct {
	Size        uint64
	UsageFlags  uint32
	MemoryFlags uint32
}

type ImageCreateInfo struct {
	Width, Height uint32
	Format        uint32
	UsageFlags    uint32
	MemoryFlags   uint32
}

type ImageViewCreateInfo struct {
	Image  Handle
	Format uint32
}

type CommandPoolCreateInfo struct {
	QueueFamilyIndex uint32
	ResetIndividual  bool
}

type SubmitBatch struct {
	WaitSemaphores      []Handle
	WaitDstStageMasks   []uint32
	WaitValues          []uint64
	CommandBuffers      []Handle
	SignalSemaphores    []Handle
	SignalValues        []uint64
}

type PresentBatch struct {
	WaitSemaphores []Handle
	Swapchains     []Handle
	ImageIndices   []uint32
}

// PresentResult carries the per-swapchain present outcome so callers can
// distinguish a hard failure from SurfaceOutOfDate/Suboptimal.
type PresentResult struct {
	OutOfDate  bool
	Suboptimal bool
}

// Driver is the seam between rhi's device-object lifecycle management and
// an actual graphics backend. It is intentionally call-oriented (not
// object-oriented): rhi owns all lifetime/ownership bookkeeping, Driver just
// executes the underlying API calls and reports results.
type Driver interface {
	CreateInstance(info InstanceCreateInfo) (Handle, error)
	DestroyInstance(instance Handle)
	EnumeratePhysicalDevices(instance Handle) ([]PhysicalDeviceInfo, error)

	CreateDevice(instance Handle, info DeviceCreateInfo) (Handle, error)
	DestroyDevice(device Handle)
	DeviceWaitIdle(device Handle) error
	GetDeviceQueue(device Handle, familyIndex, queueIndex uint32) (Handle, error)

	CreateTimelineSemaphore(device Handle, initialValue uint64) (Handle, error)
	CreateBinarySemaphore(device Handle) (Handle, error)
	DestroySemaphore(device, semaphore Handle)
	SemaphoreCounterValue(device, semaphore Handle) (uint64, error)
	WaitSemaphore(ctx context.Context, device, semaphore Handle, value uint64) error

	CreateBuffer(device Handle, info BufferCreateInfo) (buffer, memory Handle, err error)
	DestroyBuffer(device, buffer, memory Handle)
	MapMemory(device, memory Handle, size uint64) ([]byte, error)
	UnmapMemory(device, memory Handle)

	CreateImage(device Handle, info ImageCreateInfo) (image, memory Handle, err error)
	DestroyImage(device, image, memory Handle)
	CreateImageView(device Handle, info ImageViewCreateInfo) (Handle, error)
	DestroyImageView(device, view Handle)

	CreateCommandPool(device Handle, info CommandPoolCreateInfo) (Handle, error)
	DestroyCommandPool(device, pool Handle)
	ResetCommandPool(device, pool Handle) error
	AllocateCommandBuffers(device, pool Handle, count int, secondary bool) ([]Handle, error)
	FreeCommandBuffers(device, pool Handle, buffers []Handle)
	BeginCommandBuffer(buffer Handle) error
	EndCommandBuffer(buffer Handle) error
	CmdCopyBuffer(cmd, src, dst Handle, size uint64)
	CmdClearColorImage(cmd, image Handle, color [4]float32)
	CmdBlitImage(cmd, src, dst Handle, srcW, srcH, dstW, dstH uint32)
	CmdPipelineBarrierImage(cmd, image Handle, oldLayout, newLayout uint32)

	QueueSubmit(queue Handle, batches []SubmitBatch, fence Handle) error

	CreateSwapchain(device Handle, surface Handle, imageCount int) (Handle, []Handle, error)
	DestroySwapchain(device, swapchain Handle)
	AcquireNextImage(ctx context.Context, device, swapchain, signalSemaphore Handle) (imageIndex uint32, result PresentResult, err error)
	QueuePresent(queue Handle, batch PresentBatch) ([]PresentResult, error)
}
