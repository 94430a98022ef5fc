package rhi

import "github.com/dohjohansson/forge/internal/vkb"

// ImageUsage mirrors VkImageUsageFlagBits bit positions callers care about.
const (
	ImageUsageTransferSrc uint32 = 1 << 0
	ImageUsageTransferDst uint32 = 1 << 1
	ImageUsageSampled     uint32 = 1 << 2
	ImageUsageStorage     uint32 = 1 << 3
	ImageUsageColorAttach uint32 = 1 << 4
)

// Image is a GPU image plus its backing memory allocation.
type Image struct {
	DeviceObjectHeader
	handle        vkb.Handle
	memory        vkb.Handle
	width, height uint32
	format        uint32
}

// NewImage creates an uninitialized 2D image.
func NewImage(device *Device, name string, width, height, format, usageFlags, memoryFlags uint32) (*Image, error) {
	handle, memory, err := device.driver.CreateImage(device.handle, vkb.ImageCreateInfo{
		Width:       width,
		Height:      height,
		Format:      format,
		UsageFlags:  usageFlags,
		MemoryFlags: memoryFlags,
	})
	if err != nil {
		return nil, NewDeviceError("NewImage", device.name, ErrCodeOutOfMemory, err.Error())
	}
	return &Image{
		DeviceObjectHeader: newDeviceObjectHeader(device, name),
		handle:             handle,
		memory:             memory,
		width:              width,
		height:             height,
		format:             format,
	}, nil
}

// Extent returns the image's width and height in texels.
func (img *Image) Extent() (width, height uint32) { return img.width, img.height }

// Format returns the image's pixel format.
func (img *Image) Format() uint32 { return img.format }

func (img *Image) handleValue() vkb.Handle { return img.handle }

// Close schedules the image's GPU handle and memory for destruction once
// the device has signalled past its current timeline value.
func (img *Image) Close() error {
	device, handle, memory := img.device, img.handle, img.memory
	return deferDestroy(device, func() {
		device.driver.DestroyImage(device.handle, handle, memory)
	})
}

// ImageView is a view over an Image (or a swapchain-owned image), the unit
// render targets and samplers bind against.
type ImageView struct {
	DeviceObjectHeader
	handle vkb.Handle
	format uint32
}

// NewImageView creates a view over image.
func NewImageView(device *Device, name string, image vkb.Handle, format uint32) (*ImageView, error) {
	handle, err := device.driver.CreateImageView(device.handle, vkb.ImageViewCreateInfo{
		Image:  image,
		Format: format,
	})
	if err != nil {
		return nil, NewDeviceError("NewImageView", device.name, ErrCodeOutOfMemory, err.Error())
	}
	return &ImageView{DeviceObjectHeader: newDeviceObjectHeader(device, name), handle: handle, format: format}, nil
}

func (v *ImageView) handleValue() vkb.Handle { return v.handle }

// Close schedules the image view's GPU handle for destruction once the
// device has signalled past its current timeline value.
func (v *ImageView) Close() error {
	device, handle := v.device, v.handle
	return deferDestroy(device, func() {
		device.driver.DestroyImageView(device.handle, handle)
	})
}
