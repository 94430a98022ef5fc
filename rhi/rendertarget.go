package rhi

import "github.com/dohjohansson/forge/internal/vkb"

// ImageLayout mirrors the VkImageLayout values Transition cares about.
const (
	ImageLayoutUndefined     uint32 = 0
	ImageLayoutColorAttach   uint32 = 2
	ImageLayoutTransferSrc   uint32 = 6
	ImageLayoutTransferDst   uint32 = 7
	ImageLayoutPresentSource uint32 = 1000001002
)

// ClearColor is an RGBA clear value in [0,1].
type ClearColor [4]float32

// RenderTarget is the capability every drawable surface (a swapchain
// Frame, or an offscreen RenderImageSet) exposes uniformly to recording
// code: begin/end a render pass scope, clear, blit to another target, and
// transition the underlying image's layout.
type RenderTarget interface {
	Begin(cmdPool *CommandPoolContext) (vkb.Handle, func() error, error)
	Clear(cmd vkb.Handle, color ClearColor)
	Blit(cmd vkb.Handle, dst RenderTarget)
	Transition(cmd vkb.Handle, newLayout uint32)
	ColorView() *ImageView
	Extent() (width, height uint32)
	colorImage() vkb.Handle
}

// Frame is a RenderTarget backed by one swapchain image: the per-frame
// render target a presentation loop acquires, draws into, and presents.
type Frame struct {
	swapchain  *Swapchain
	imageIndex uint32
	width      uint32
	height     uint32
	layout     uint32
}

// NewFrame wraps the image at imageIndex (as returned by
// Swapchain.AcquireNextImage) as a RenderTarget.
func NewFrame(swapchain *Swapchain, imageIndex, width, height uint32) *Frame {
	return &Frame{swapchain: swapchain, imageIndex: imageIndex, width: width, height: height, layout: ImageLayoutUndefined}
}

func (f *Frame) colorImage() vkb.Handle { return f.swapchain.images[f.imageIndex] }

// Begin opens a primary command buffer scope on cmdPool to record into.
func (f *Frame) Begin(cmdPool *CommandPoolContext) (vkb.Handle, func() error, error) {
	return cmdPool.Commands(CommandScopeDesc{Level: 0, ScopedBeginEnd: true})
}

// Clear records a clear of the frame's color image to color.
func (f *Frame) Clear(cmd vkb.Handle, color ClearColor) {
	f.swapchain.device.driver.CmdClearColorImage(cmd, f.colorImage(), [4]float32(color))
}

// Blit records a copy from this frame into dst's color image, sized by
// each target's own extent.
func (f *Frame) Blit(cmd vkb.Handle, dst RenderTarget) {
	sw, sh := f.Extent()
	dw, dh := dst.Extent()
	f.swapchain.device.driver.CmdBlitImage(cmd, f.colorImage(), dst.colorImage(), sw, sh, dw, dh)
}

// Transition records a layout transition barrier from the frame's tracked
// layout and then tracks newLayout, which the next Transition uses as its
// old layout.
func (f *Frame) Transition(cmd vkb.Handle, newLayout uint32) {
	f.swapchain.device.driver.CmdPipelineBarrierImage(cmd, f.colorImage(), f.layout, newLayout)
	f.layout = newLayout
}

// ColorView returns the view over this frame's swapchain image.
func (f *Frame) ColorView() *ImageView { return f.swapchain.imageViews[f.imageIndex] }

// Extent returns the swapchain's image extent.
func (f *Frame) Extent() (uint32, uint32) { return f.width, f.height }

// RenderImageSet is a RenderTarget backed by an offscreen Image, used for
// shadow maps, post-process passes, or any render target that is not a
// swapchain's own presentable image.
type RenderImageSet struct {
	DeviceObjectHeader
	color  *Image
	view   *ImageView
	layout uint32
}

// NewRenderImageSet creates an offscreen color target of the given extent
// and format.
func NewRenderImageSet(device *Device, name string, width, height, format uint32) (*RenderImageSet, error) {
	img, err := NewImage(device, name, width, height, format,
		ImageUsageColorAttach|ImageUsageTransferSrc|ImageUsageTransferDst, MemoryDeviceLocal)
	if err != nil {
		return nil, err
	}
	view, err := NewImageView(device, name, img.handleValue(), format)
	if err != nil {
		img.Close()
		return nil, err
	}
	return &RenderImageSet{
		DeviceObjectHeader: newDeviceObjectHeader(device, name),
		color:              img,
		view:               view,
		layout:             ImageLayoutUndefined,
	}, nil
}

func (r *RenderImageSet) colorImage() vkb.Handle { return r.color.handleValue() }

// Begin opens a primary command buffer scope on cmdPool to record into.
func (r *RenderImageSet) Begin(cmdPool *CommandPoolContext) (vkb.Handle, func() error, error) {
	return cmdPool.Commands(CommandScopeDesc{Level: 0, ScopedBeginEnd: true})
}

// Clear records a clear of the target's color image to color.
func (r *RenderImageSet) Clear(cmd vkb.Handle, color ClearColor) {
	r.device.driver.CmdClearColorImage(cmd, r.colorImage(), [4]float32(color))
}

// Blit records a copy from this target into dst's color image.
func (r *RenderImageSet) Blit(cmd vkb.Handle, dst RenderTarget) {
	sw, sh := r.Extent()
	dw, dh := dst.Extent()
	r.device.driver.CmdBlitImage(cmd, r.colorImage(), dst.colorImage(), sw, sh, dw, dh)
}

// Transition records a layout transition barrier.
func (r *RenderImageSet) Transition(cmd vkb.Handle, newLayout uint32) {
	r.device.driver.CmdPipelineBarrierImage(cmd, r.colorImage(), r.layout, newLayout)
	r.layout = newLayout
}

// ColorView returns the view over this target's color image.
func (r *RenderImageSet) ColorView() *ImageView { return r.view }

// Extent returns the color image's extent.
func (r *RenderImageSet) Extent() (uint32, uint32) { return r.color.Extent() }

// Close schedules the target's view and backing image for destruction
// once the device has signalled past its current timeline value.
func (r *RenderImageSet) Close() error {
	if err := r.view.Close(); err != nil {
		return err
	}
	return r.color.Close()
}
