package rhi

import (
	"context"

	"github.com/dohjohansson/forge/internal/vkb"
)

// Swapchain wraps a presentable image chain bound to a platform surface.
// Acquire/present failures are surfaced as PresentOutcome fields, not hard
// errors, matching the present failure-model table: SurfaceOutOfDate and
// Suboptimal both mean "keep presenting, but recreate the swapchain when
// convenient".
type Swapchain struct {
	DeviceObjectHeader
	handle     vkb.Handle
	surface    vkb.Handle
	images     []vkb.Handle
	imageViews []*ImageView
	format     uint32
	width      uint32
	height     uint32
}

// NewSwapchain creates a swapchain of imageCount images over surface, and a
// view over every image.
func NewSwapchain(device *Device, name string, surface vkb.Handle, imageCount int, format uint32) (*Swapchain, error) {
	return NewSwapchainWithExtent(device, name, surface, imageCount, format, 0, 0)
}

// NewSwapchainWithExtent is NewSwapchain but also records the swapchain's
// image extent, so AcquireFrame can hand callers a RenderTarget with a
// correct Extent() without an extra query.
func NewSwapchainWithExtent(device *Device, name string, surface vkb.Handle, imageCount int, format uint32, width, height uint32) (*Swapchain, error) {
	handle, images, err := device.driver.CreateSwapchain(device.handle, surface, imageCount)
	if err != nil {
		return nil, NewDeviceError("NewSwapchain", device.name, ErrCodeOutOfMemory, err.Error())
	}
	views := make([]*ImageView, len(images))
	for i, img := range images {
		v, err := NewImageView(device, name, img, format)
		if err != nil {
			for _, created := range views[:i] {
				if created != nil {
					created.Close()
				}
			}
			device.driver.DestroySwapchain(device.handle, handle)
			return nil, err
		}
		views[i] = v
	}
	return &Swapchain{
		DeviceObjectHeader: newDeviceObjectHeader(device, name),
		handle:             handle,
		surface:            surface,
		images:             images,
		imageViews:         views,
		format:             format,
		width:              width,
		height:             height,
	}, nil
}

// ImageCount returns the number of images in the chain.
func (s *Swapchain) ImageCount() int { return len(s.images) }

// ImageView returns the view over image index.
func (s *Swapchain) ImageView(index uint32) *ImageView { return s.imageViews[index] }

// AcquireNextImage acquires the next presentable image index, signalling
// signal (a binary semaphore) on completion.
func (s *Swapchain) AcquireNextImage(ctx context.Context, signal *Semaphore) (uint32, PresentOutcome, error) {
	idx, result, err := s.device.driver.AcquireNextImage(ctx, s.device.handle, s.handle, signal.handleValue())
	if err != nil {
		return 0, PresentOutcome{}, NewDeviceError("AcquireNextImage", s.device.name, ErrCodeDeviceLost, err.Error())
	}
	outcome := PresentOutcome{OutOfDate: result.OutOfDate, Suboptimal: result.Suboptimal}
	if outcome.OutOfDate || outcome.Suboptimal {
		s.device.metrics.SurfaceStale.Add(1)
	}
	return idx, outcome, nil
}

// AcquireFrame is AcquireNextImage wrapped as a RenderTarget: it acquires
// the next presentable image and hands recording code a Frame over it,
// ready for Begin/Clear/Blit/Transition.
func (s *Swapchain) AcquireFrame(ctx context.Context, signal *Semaphore) (*Frame, PresentOutcome, error) {
	idx, outcome, err := s.AcquireNextImage(ctx, signal)
	if err != nil {
		return nil, outcome, err
	}
	return NewFrame(s, idx, s.width, s.height), outcome, nil
}

// Close schedules the swapchain's image views and the swapchain handle
// itself for destruction once the device has signalled past its current
// timeline value. The swapchain-owned images themselves are not destroyed here —
// the driver owns their lifetime via DestroySwapchain.
func (s *Swapchain) Close() error {
	for _, v := range s.imageViews {
		if err := v.Close(); err != nil {
			return err
		}
	}
	device, handle := s.device, s.handle
	return deferDestroy(device, func() {
		device.driver.DestroySwapchain(device.handle, handle)
	})
}
