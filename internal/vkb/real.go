package vkb

import (
	"context"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// realDriver is the production Driver backed by github.com/goki/vulkan.
// Every Vulkan handle is stored boxed inside a Handle (a pointer value
// reinterpreted as uint64) so the rhi package never imports vk directly.
type realDriver struct {
	allocator *vk.AllocationCallbacks
}

// NewRealDriver returns a Driver that issues real Vulkan calls. allocHooks
// may be nil; non-nil hooks are not installed either, so every call uses
// Vulkan's default host allocator.
func NewRealDriver(allocHooks *AllocHooks) Driver {
	d := &realDriver{}
	if allocHooks != nil {
		d.allocator = allocHooks.toVK()
	}
	if ret := vk.Init(); ret != vk.Success {
		panic(fmt.Sprintf("vkb: vk.Init failed: %v", ret))
	}
	return d
}

// AllocHooks mirrors the four host-allocation function pointers the
// platform boundary exposes. The real driver does not route allocations
// through them: toVK returns nil, so Vulkan's own allocator is used
// whichever fields are set.
type AllocHooks struct {
	Alloc               func(size, alignment uint64, scope int) unsafe.Pointer
	Realloc             func(original unsafe.Pointer, size, alignment uint64, scope int) unsafe.Pointer
	Free                func(ptr unsafe.Pointer)
	InternalAllocNotify func(size uint64, allocationType, scope int)
}

func (h *AllocHooks) toVK() *vk.AllocationCallbacks {
	// goki/vulkan callback registration requires cgo-exported trampolines,
	// which this package does not provide, so no callbacks are built and
	// the default allocator is always used.
	return nil
}

func handleOf(h uintptr) Handle { return Handle(h) }

func (d *realDriver) CreateInstance(info InstanceCreateInfo) (Handle, error) {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   info.ApplicationName + "\x00",
		ApplicationVersion: info.ApplicationVersion,
		PEngineName:        info.EngineName + "\x00",
		EngineVersion:      info.EngineVersion,
		ApiVersion:         info.APIVersion,
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	var instance vk.Instance
	if ret := vk.CreateInstance(&createInfo, d.allocator, &instance); ret != vk.Success {
		return NullHandle, NewVkError("CreateInstance", ret)
	}
	return handleOf(uintptr(unsafe.Pointer(instance))), nil
}

func (d *realDriver) DestroyInstance(instance Handle) {
	vk.DestroyInstance(vk.Instance(unsafe.Pointer(uintptr(instance))), d.allocator)
}

func (d *realDriver) EnumeratePhysicalDevices(instance Handle) ([]PhysicalDeviceInfo, error) {
	inst := vk.Instance(unsafe.Pointer(uintptr(instance)))
	var count uint32
	if ret := vk.EnumeratePhysicalDevices(inst, &count, nil); ret != vk.Success {
		return nil, NewVkError("EnumeratePhysicalDevices", ret)
	}
	devices := make([]vk.PhysicalDevice, count)
	if ret := vk.EnumeratePhysicalDevices(inst, &count, devices); ret != vk.Success {
		return nil, NewVkError("EnumeratePhysicalDevices", ret)
	}

	infos := make([]PhysicalDeviceInfo, 0, count)
	for i, pd := range devices {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()

		var famCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &famCount, nil)
		fams := make([]vk.QueueFamilyProperties, famCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &famCount, fams)

		families := make([]QueueFamilyInfo, famCount)
		for j, f := range fams {
			f.Deref()
			families[j] = QueueFamilyInfo{Index: uint32(j), QueueCount: f.QueueCount, Flags: uint32(f.QueueFlags)}
		}

		infos = append(infos, PhysicalDeviceInfo{
			Index:         i,
			Name:          vk.ToString(props.DeviceName[:]),
			QueueFamilies: families,
		})
	}
	return infos, nil
}

func (d *realDriver) CreateDevice(instance Handle, info DeviceCreateInfo) (Handle, error) {
	physicalDevices, err := d.EnumeratePhysicalDevices(instance)
	if err != nil {
		return NullHandle, err
	}
	if info.PhysicalDeviceIndex >= len(physicalDevices) {
		return NullHandle, NewError("CreateDevice", ErrCodeInvalidArgument, "physical device index out of range")
	}

	queuePriority := float32(1.0)
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(info.QueueFamilyIndices))
	for i, fam := range info.QueueFamilyIndices {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: fam,
			QueueCount:       1,
			PQueuePriorities: []float32{queuePriority},
		}
	}
	timelineFeature := vk.PhysicalDeviceTimelineSemaphoreFeatures{
		SType:             vk.StructureTypePhysicalDeviceTimelineSemaphoreFeatures,
		TimelineSemaphore: vk.True,
	}
	createInfo := vk.DeviceCreateInfo{
		SType:                 vk.StructureTypeDeviceCreateInfo,
		PNext:                 unsafe.Pointer(&timelineFeature),
		QueueCreateInfoCount:  uint32(len(queueInfos)),
		PQueueCreateInfos:     queueInfos,
	}

	// goki/vulkan requires the raw vk.PhysicalDevice, not the index, so the
	// instance's devices are enumerated again and selected by index.
	inst := vk.Instance(unsafe.Pointer(uintptr(instance)))
	pdCount := uint32(len(physicalDevices))
	pds := make([]vk.PhysicalDevice, pdCount)
	if ret := vk.EnumeratePhysicalDevices(inst, &pdCount, pds); ret != vk.Success {
		return NullHandle, NewVkError("EnumeratePhysicalDevices", ret)
	}
	if info.PhysicalDeviceIndex >= int(pdCount) {
		return NullHandle, NewError("CreateDevice", ErrCodeInvalidArgument, "physical device index out of range")
	}
	var device vk.Device
	pd := pds[info.PhysicalDeviceIndex]
	if ret := vk.CreateDevice(pd, &createInfo, d.allocator, &device); ret != vk.Success {
		return NullHandle, NewVkError("CreateDevice", ret)
	}
	return handleOf(uintptr(unsafe.Pointer(device))), nil
}

func (d *realDriver) DestroyDevice(device Handle) {
	vk.DestroyDevice(vk.Device(unsafe.Pointer(uintptr(device))), d.allocator)
}

func (d *realDriver) DeviceWaitIdle(device Handle) error {
	if ret := vk.DeviceWaitIdle(vk.Device(unsafe.Pointer(uintptr(device)))); ret != vk.Success {
		return NewVkError("DeviceWaitIdle", ret)
	}
	return nil
}

func (d *realDriver) GetDeviceQueue(device Handle, familyIndex, queueIndex uint32) (Handle, error) {
	var queue vk.Queue
	vk.GetDeviceQueue(vk.Device(unsafe.Pointer(uintptr(device))), familyIndex, queueIndex, &queue)
	return handleOf(uintptr(unsafe.Pointer(queue))), nil
}

func (d *realDriver) CreateTimelineSemaphore(device Handle, initialValue uint64) (Handle, error) {
	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  initialValue,
	}
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&typeInfo),
	}
	var sem vk.Semaphore
	if ret := vk.CreateSemaphore(vk.Device(unsafe.Pointer(uintptr(device))), &createInfo, d.allocator, &sem); ret != vk.Success {
		return NullHandle, NewVkError("CreateTimelineSemaphore", ret)
	}
	return handleOf(uintptr(unsafe.Pointer(sem))), nil
}

func (d *realDriver) CreateBinarySemaphore(device Handle) (Handle, error) {
	createInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var sem vk.Semaphore
	if ret := vk.CreateSemaphore(vk.Device(unsafe.Pointer(uintptr(device))), &createInfo, d.allocator, &sem); ret != vk.Success {
		return NullHandle, NewVkError("CreateBinarySemaphore", ret)
	}
	return handleOf(uintptr(unsafe.Pointer(sem))), nil
}

func (d *realDriver) DestroySemaphore(device, semaphore Handle) {
	vk.DestroySemaphore(vk.Device(unsafe.Pointer(uintptr(device))), vk.Semaphore(unsafe.Pointer(uintptr(semaphore))), d.allocator)
}

func (d *realDriver) SemaphoreCounterValue(device, semaphore Handle) (uint64, error) {
	var value uint64
	if ret := vk.GetSemaphoreCounterValue(vk.Device(unsafe.Pointer(uintptr(device))), vk.Semaphore(unsafe.Pointer(uintptr(semaphore))), &value); ret != vk.Success {
		return 0, NewVkError("GetSemaphoreCounterValue", ret)
	}
	return value, nil
}

func (d *realDriver) WaitSemaphore(ctx context.Context, device, semaphore Handle, value uint64) error {
	sem := vk.Semaphore(unsafe.Pointer(uintptr(semaphore)))
	waitInfo := vk.SemaphoreWaitInfo{
		SType:          vk.StructureTypeSemaphoreWaitInfo,
		SemaphoreCount: 1,
		PSemaphores:    []vk.Semaphore{sem},
		PValues:        []uint64{value},
	}
	deadline := uint64(^uint64(0))
	if dl, ok := ctx.Deadline(); ok {
		deadline = uint64(timeUntil(dl))
	}
	if ret := vk.WaitSemaphores(vk.Device(unsafe.Pointer(uintptr(device))), &waitInfo, deadline); ret != vk.Success {
		return NewVkError("WaitSemaphores", ret)
	}
	return nil
}

func (d *realDriver) CreateBuffer(device Handle, info BufferCreateInfo) (Handle, Handle, error) {
	createInfo := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  vk.DeviceSize(info.Size),
		Usage: vk.BufferUsageFlags(info.UsageFlags),
	}
	dev := vk.Device(unsafe.Pointer(uintptr(device)))
	var buf vk.Buffer
	if ret := vk.CreateBuffer(dev, &createInfo, d.allocator, &buf); ret != vk.Success {
		return NullHandle, NullHandle, NewVkError("CreateBuffer", ret)
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buf, &req)
	req.Deref()

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: 0, // always memory type 0; info.MemoryFlags is not consulted
	}
	var mem vk.DeviceMemory
	if ret := vk.AllocateMemory(dev, &allocInfo, d.allocator, &mem); ret != vk.Success {
		vk.DestroyBuffer(dev, buf, d.allocator)
		return NullHandle, NullHandle, NewVkError("AllocateMemory", ret)
	}
	if ret := vk.BindBufferMemory(dev, buf, mem, 0); ret != vk.Success {
		vk.FreeMemory(dev, mem, d.allocator)
		vk.DestroyBuffer(dev, buf, d.allocator)
		return NullHandle, NullHandle, NewVkError("BindBufferMemory", ret)
	}
	return handleOf(uintptr(unsafe.Pointer(buf))), handleOf(uintptr(unsafe.Pointer(mem))), nil
}

func (d *realDriver) DestroyBuffer(device, buffer, memory Handle) {
	dev := vk.Device(unsafe.Pointer(uintptr(device)))
	vk.DestroyBuffer(dev, vk.Buffer(unsafe.Pointer(uintptr(buffer))), d.allocator)
	vk.FreeMemory(dev, vk.DeviceMemory(unsafe.Pointer(uintptr(memory))), d.allocator)
}

func (d *realDriver) MapMemory(device, memory Handle, size uint64) ([]byte, error) {
	dev := vk.Device(unsafe.Pointer(uintptr(device)))
	var ptr unsafe.Pointer
	if ret := vk.MapMemory(dev, vk.DeviceMemory(unsafe.Pointer(uintptr(memory))), 0, vk.DeviceSize(size), 0, &ptr); ret != vk.Success {
		return nil, NewVkError("MapMemory", ret)
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (d *realDriver) UnmapMemory(device, memory Handle) {
	vk.UnmapMemory(vk.Device(unsafe.Pointer(uintptr(device))), vk.DeviceMemory(unsafe.Pointer(uintptr(memory))))
}

func (d *realDriver) CreateImage(device Handle, info ImageCreateInfo) (Handle, Handle, error) {
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(info.Format),
		Extent:    vk.Extent3D{Width: info.Width, Height: info.Height, Depth: 1},
		MipLevels: 1, ArrayLayers: 1,
		Samples: vk.SampleCount1Bit,
		Tiling:  vk.ImageTilingOptimal,
		Usage:   vk.ImageUsageFlags(info.UsageFlags),
	}
	dev := vk.Device(unsafe.Pointer(uintptr(device)))
	var img vk.Image
	if ret := vk.CreateImage(dev, &createInfo, d.allocator, &img); ret != vk.Success {
		return NullHandle, NullHandle, NewVkError("CreateImage", ret)
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, img, &req)
	req.Deref()
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: req.Size}
	var mem vk.DeviceMemory
	if ret := vk.AllocateMemory(dev, &allocInfo, d.allocator, &mem); ret != vk.Success {
		vk.DestroyImage(dev, img, d.allocator)
		return NullHandle, NullHandle, NewVkError("AllocateMemory", ret)
	}
	if ret := vk.BindImageMemory(dev, img, mem, 0); ret != vk.Success {
		vk.FreeMemory(dev, mem, d.allocator)
		vk.DestroyImage(dev, img, d.allocator)
		return NullHandle, NullHandle, NewVkError("BindImageMemory", ret)
	}
	return handleOf(uintptr(unsafe.Pointer(img))), handleOf(uintptr(unsafe.Pointer(mem))), nil
}

func (d *realDriver) DestroyImage(device, image, memory Handle) {
	dev := vk.Device(unsafe.Pointer(uintptr(device)))
	vk.DestroyImage(dev, vk.Image(unsafe.Pointer(uintptr(image))), d.allocator)
	vk.FreeMemory(dev, vk.DeviceMemory(unsafe.Pointer(uintptr(memory))), d.allocator)
}

func (d *realDriver) CreateImageView(device Handle, info ImageViewCreateInfo) (Handle, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vk.Image(unsafe.Pointer(uintptr(info.Image))),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(info.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1, LayerCount: 1,
		},
	}
	var view vk.ImageView
	if ret := vk.CreateImageView(vk.Device(unsafe.Pointer(uintptr(device))), &createInfo, d.allocator, &view); ret != vk.Success {
		return NullHandle, NewVkError("CreateImageView", ret)
	}
	return handleOf(uintptr(unsafe.Pointer(view))), nil
}

func (d *realDriver) DestroyImageView(device, view Handle) {
	vk.DestroyImageView(vk.Device(unsafe.Pointer(uintptr(device))), vk.ImageView(unsafe.Pointer(uintptr(view))), d.allocator)
}

func (d *realDriver) CreateCommandPool(device Handle, info CommandPoolCreateInfo) (Handle, error) {
	var flags vk.CommandPoolCreateFlags
	if info.ResetIndividual {
		flags = vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit)
	}
	createInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            flags,
		QueueFamilyIndex: info.QueueFamilyIndex,
	}
	var pool vk.CommandPool
	if ret := vk.CreateCommandPool(vk.Device(unsafe.Pointer(uintptr(device))), &createInfo, d.allocator, &pool); ret != vk.Success {
		return NullHandle, NewVkError("CreateCommandPool", ret)
	}
	return handleOf(uintptr(unsafe.Pointer(pool))), nil
}

func (d *realDriver) DestroyCommandPool(device, pool Handle) {
	vk.DestroyCommandPool(vk.Device(unsafe.Pointer(uintptr(device))), vk.CommandPool(unsafe.Pointer(uintptr(pool))), d.allocator)
}

func (d *realDriver) ResetCommandPool(device, pool Handle) error {
	if ret := vk.ResetCommandPool(vk.Device(unsafe.Pointer(uintptr(device))), vk.CommandPool(unsafe.Pointer(uintptr(pool))), 0); ret != vk.Success {
		return NewVkError("ResetCommandPool", ret)
	}
	return nil
}

func (d *realDriver) AllocateCommandBuffers(device, pool Handle, count int, secondary bool) ([]Handle, error) {
	level := vk.CommandBufferLevelPrimary
	if secondary {
		level = vk.CommandBufferLevelSecondary
	}
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        vk.CommandPool(unsafe.Pointer(uintptr(pool))),
		Level:              level,
		CommandBufferCount: uint32(count),
	}
	buffers := make([]vk.CommandBuffer, count)
	if ret := vk.AllocateCommandBuffers(vk.Device(unsafe.Pointer(uintptr(device))), &allocInfo, buffers); ret != vk.Success {
		return nil, NewVkError("AllocateCommandBuffers", ret)
	}
	out := make([]Handle, count)
	for i, cb := range buffers {
		out[i] = handleOf(uintptr(unsafe.Pointer(cb)))
	}
	return out, nil
}

func (d *realDriver) FreeCommandBuffers(device, pool Handle, buffers []Handle) {
	vkBuffers := make([]vk.CommandBuffer, len(buffers))
	for i, h := range buffers {
		vkBuffers[i] = vk.CommandBuffer(unsafe.Pointer(uintptr(h)))
	}
	vk.FreeCommandBuffers(vk.Device(unsafe.Pointer(uintptr(device))), vk.CommandPool(unsafe.Pointer(uintptr(pool))), uint32(len(vkBuffers)), vkBuffers)
}

func (d *realDriver) BeginCommandBuffer(buffer Handle) error {
	beginInfo := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if ret := vk.BeginCommandBuffer(vk.CommandBuffer(unsafe.Pointer(uintptr(buffer))), &beginInfo); ret != vk.Success {
		return NewVkError("BeginCommandBuffer", ret)
	}
	return nil
}

func (d *realDriver) EndCommandBuffer(buffer Handle) error {
	if ret := vk.EndCommandBuffer(vk.CommandBuffer(unsafe.Pointer(uintptr(buffer)))); ret != vk.Success {
		return NewVkError("EndCommandBuffer", ret)
	}
	return nil
}

func (d *realDriver) CmdCopyBuffer(cmd, src, dst Handle, size uint64) {
	region := vk.BufferCopy{Size: vk.DeviceSize(size)}
	vk.CmdCopyBuffer(
		vk.CommandBuffer(unsafe.Pointer(uintptr(cmd))),
		vk.Buffer(unsafe.Pointer(uintptr(src))),
		vk.Buffer(unsafe.Pointer(uintptr(dst))),
		1, []vk.BufferCopy{region},
	)
}

func (d *realDriver) CmdClearColorImage(cmd, image Handle, color [4]float32) {
	value := vk.ClearColorValue{}
	value.SetFloat32(color[:])
	rng := vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1, LayerCount: 1,
	}
	vk.CmdClearColorImage(
		vk.CommandBuffer(unsafe.Pointer(uintptr(cmd))),
		vk.Image(unsafe.Pointer(uintptr(image))),
		vk.ImageLayoutTransferDstOptimal,
		&value,
		1, []vk.ImageSubresourceRange{rng},
	)
}

func (d *realDriver) CmdBlitImage(cmd, src, dst Handle, srcW, srcH, dstW, dstH uint32) {
	subresource := vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), LayerCount: 1}
	region := vk.ImageBlit{
		SrcSubresource: subresource,
		SrcOffsets:     [2]vk.Offset3D{{}, {X: int32(srcW), Y: int32(srcH), Z: 1}},
		DstSubresource: subresource,
		DstOffsets:     [2]vk.Offset3D{{}, {X: int32(dstW), Y: int32(dstH), Z: 1}},
	}
	vk.CmdBlitImage(
		vk.CommandBuffer(unsafe.Pointer(uintptr(cmd))),
		vk.Image(unsafe.Pointer(uintptr(src))), vk.ImageLayoutTransferSrcOptimal,
		vk.Image(unsafe.Pointer(uintptr(dst))), vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{region},
		vk.FilterLinear,
	)
}

func (d *realDriver) CmdPipelineBarrierImage(cmd, image Handle, oldLayout, newLayout uint32) {
	barrier := vk.ImageMemoryBarrier{
		SType:     vk.StructureTypeImageMemoryBarrier,
		OldLayout: vk.ImageLayout(oldLayout),
		NewLayout: vk.ImageLayout(newLayout),
		Image:     vk.Image(unsafe.Pointer(uintptr(image))),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1, LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(
		vk.CommandBuffer(unsafe.Pointer(uintptr(cmd))),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		0, 0, nil, 0, nil,
		1, []vk.ImageMemoryBarrier{barrier},
	)
}

func (d *realDriver) QueueSubmit(queue Handle, batches []SubmitBatch, fence Handle) error {
	submits := make([]vk.SubmitInfo, len(batches))
	timelineInfos := make([]vk.TimelineSemaphoreSubmitInfo, len(batches))
	for i, b := range batches {
		waitSems := toVkSemaphores(b.WaitSemaphores)
		sigSems := toVkSemaphores(b.SignalSemaphores)
		cmds := toVkCommandBuffers(b.CommandBuffers)
		timelineInfos[i] = vk.TimelineSemaphoreSubmitInfo{
			SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
			WaitSemaphoreValueCount:   uint32(len(b.WaitValues)),
			PWaitSemaphoreValues:      b.WaitValues,
			SignalSemaphoreValueCount: uint32(len(b.SignalValues)),
			PSignalSemaphoreValues:    b.SignalValues,
		}
		submits[i] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			PNext:                unsafe.Pointer(&timelineInfos[i]),
			WaitSemaphoreCount:   uint32(len(waitSems)),
			PWaitSemaphores:      waitSems,
			PWaitDstStageMask:    b.WaitDstStageMasks,
			CommandBufferCount:   uint32(len(cmds)),
			PCommandBuffers:      cmds,
			SignalSemaphoreCount: uint32(len(sigSems)),
			PSignalSemaphores:    sigSems,
		}
	}
	f := vk.Fence(unsafe.Pointer(uintptr(fence)))
	if ret := vk.QueueSubmit(vk.Queue(unsafe.Pointer(uintptr(queue))), uint32(len(submits)), submits, f); ret != vk.Success {
		return NewVkError("QueueSubmit", ret)
	}
	return nil
}

func (d *realDriver) CreateSwapchain(device Handle, surface Handle, imageCount int) (Handle, []Handle, error) {
	createInfo := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         vk.Surface(unsafe.Pointer(uintptr(surface))),
		MinImageCount:   uint32(imageCount),
		ImageArrayLayers: 1,
		ImageUsage:      vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
	}
	dev := vk.Device(unsafe.Pointer(uintptr(device)))
	var sc vk.Swapchain
	if ret := vk.CreateSwapchain(dev, &createInfo, d.allocator, &sc); ret != vk.Success {
		return NullHandle, nil, NewVkError("CreateSwapchain", ret)
	}
	var count uint32
	vk.GetSwapchainImages(dev, sc, &count, nil)
	images := make([]vk.Image, count)
	vk.GetSwapchainImages(dev, sc, &count, images)
	out := make([]Handle, count)
	for i, img := range images {
		out[i] = handleOf(uintptr(unsafe.Pointer(img)))
	}
	return handleOf(uintptr(unsafe.Pointer(sc))), out, nil
}

func (d *realDriver) DestroySwapchain(device, swapchain Handle) {
	vk.DestroySwapchain(vk.Device(unsafe.Pointer(uintptr(device))), vk.Swapchain(unsafe.Pointer(uintptr(swapchain))), d.allocator)
}

func (d *realDriver) AcquireNextImage(ctx context.Context, device, swapchain, signalSemaphore Handle) (uint32, PresentResult, error) {
	var index uint32
	ret := vk.AcquireNextImage(
		vk.Device(unsafe.Pointer(uintptr(device))),
		vk.Swapchain(unsafe.Pointer(uintptr(swapchain))),
		^uint64(0),
		vk.Semaphore(unsafe.Pointer(uintptr(signalSemaphore))),
		vk.NullFence,
		&index,
	)
	switch ret {
	case vk.Success:
		return index, PresentResult{}, nil
	case vk.Suboptimal:
		return index, PresentResult{Suboptimal: true}, nil
	case vk.ErrorOutOfDate:
		return index, PresentResult{OutOfDate: true}, nil
	default:
		return 0, PresentResult{}, NewVkError("AcquireNextImage", ret)
	}
}

func (d *realDriver) QueuePresent(queue Handle, batch PresentBatch) ([]PresentResult, error) {
	waitSems := toVkSemaphores(batch.WaitSemaphores)
	swapchains := make([]vk.Swapchain, len(batch.Swapchains))
	for i, h := range batch.Swapchains {
		swapchains[i] = vk.Swapchain(unsafe.Pointer(uintptr(h)))
	}
	results := make([]vk.Result, len(swapchains))
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waitSems)),
		PWaitSemaphores:    waitSems,
		SwapchainCount:     uint32(len(swapchains)),
		PSwapchains:        swapchains,
		PImageIndices:      batch.ImageIndices,
		PResults:           results,
	}
	ret := vk.QueuePresent(vk.Queue(unsafe.Pointer(uintptr(queue))), &presentInfo)
	out := make([]PresentResult, len(results))
	for i, r := range results {
		out[i] = PresentResult{
			OutOfDate:  r == vk.ErrorOutOfDate,
			Suboptimal: r == vk.Suboptimal,
		}
	}
	if ret != vk.Success && ret != vk.Suboptimal {
		return out, NewVkError("QueuePresent", ret)
	}
	return out, nil
}

func toVkSemaphores(hs []Handle) []vk.Semaphore {
	out := make([]vk.Semaphore, len(hs))
	for i, h := range hs {
		out[i] = vk.Semaphore(unsafe.Pointer(uintptr(h)))
	}
	return out
}

func toVkCommandBuffers(hs []Handle) []vk.CommandBuffer {
	out := make([]vk.CommandBuffer, len(hs))
	for i, h := range hs {
		out[i] = vk.CommandBuffer(unsafe.Pointer(uintptr(h)))
	}
	return out
}
