package rhi

import (
	"sync"

	"github.com/dohjohansson/forge/internal/vkb"
)

// QueueSubmitInfo describes one batch of work to enqueue. Submit() patches
// the device's own timeline semaphore into every batch's signal list with
// the timeline value it allocates, in addition to whatever the caller
// specified here.
type QueueSubmitInfo struct {
	WaitSemaphores        []*Semaphore
	WaitDstStageMasks     []uint32
	WaitSemaphoreValues   []uint64
	CommandBuffers        []vkb.Handle
	SignalSemaphores      []*Semaphore
	SignalSemaphoreValues []uint64
}

// QueuePresentInfo describes one present batch.
type QueuePresentInfo struct {
	WaitSemaphores []*Semaphore
	Swapchains     []*Swapchain
	ImageIndices   []uint32
}

// Queue wraps a device queue with a pending-submit list and pending-present
// list, serializing submit/present calls with a queue-local mutex held
// only for the duration of the underlying driver call.
type Queue struct {
	device      *Device
	handle      vkb.Handle
	familyIndex uint32
	queueIndex  uint32

	mu              sync.Mutex
	pendingSubmits  []QueueSubmitInfo
	pendingPresent  QueuePresentInfo
	lastSubmitValue uint64
}

// NewQueue retrieves the device queue at (familyIndex, queueIndex).
func NewQueue(device *Device, familyIndex, queueIndex uint32) (*Queue, error) {
	h, err := device.driver.GetDeviceQueue(device.handle, familyIndex, queueIndex)
	if err != nil {
		return nil, NewQueueError("NewQueue", device.name, int(queueIndex), ErrCodeInvalidState, err.Error())
	}
	return &Queue{device: device, handle: h, familyIndex: familyIndex, queueIndex: queueIndex}, nil
}

// LastSubmitTimelineValue returns the timeline value of this queue's most
// recent successful Submit, or 0 if none has occurred.
func (q *Queue) LastSubmitTimelineValue() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastSubmitValue
}

// EnqueueSubmit appends a submission description to the pending list; the
// order submissions are enqueued in matches the order they are issued to
// the device when Submit runs.
func (q *Queue) EnqueueSubmit(info QueueSubmitInfo) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pendingSubmits = append(q.pendingSubmits, info)
}

// Submit allocates the next device timeline value, patches it into every
// pending batch's signal list, and issues one batched driver submit call.
// On success the pending list is cleared and the new timeline value is
// returned; on failure the pending list is left intact.
func (q *Queue) Submit() (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pendingSubmits) == 0 {
		return q.device.TimelineValue(), nil
	}
	if q.device.Draining() {
		return 0, NewQueueError("Submit", q.device.name, int(q.queueIndex), ErrCodeInvalidState, "device is draining")
	}

	timelineValue := q.device.nextTimelineValue()
	batches := make([]vkb.SubmitBatch, len(q.pendingSubmits))
	for i, info := range q.pendingSubmits {
		signalSems := append(semaphoreHandles(info.SignalSemaphores), q.device.timelineSem)
		signalVals := append(append([]uint64{}, info.SignalSemaphoreValues...), timelineValue)
		batches[i] = vkb.SubmitBatch{
			WaitSemaphores:    semaphoreHandles(info.WaitSemaphores),
			WaitDstStageMasks: info.WaitDstStageMasks,
			WaitValues:        info.WaitSemaphoreValues,
			CommandBuffers:    info.CommandBuffers,
			SignalSemaphores:  signalSems,
			SignalValues:      signalVals,
		}
	}

	if err := q.device.driver.QueueSubmit(q.handle, batches, vkb.NullHandle); err != nil {
		return 0, NewQueueError("Submit", q.device.name, int(q.queueIndex), ErrCodeDeviceLost, err.Error())
	}

	q.pendingSubmits = nil
	q.lastSubmitValue = timelineValue
	q.device.metrics.SubmitCount.Add(1)
	return timelineValue, nil
}

// EnqueuePresent merges another present batch into the pending one.
func (q *Queue) EnqueuePresent(info QueuePresentInfo) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pendingPresent.WaitSemaphores = append(q.pendingPresent.WaitSemaphores, info.WaitSemaphores...)
	q.pendingPresent.Swapchains = append(q.pendingPresent.Swapchains, info.Swapchains...)
	q.pendingPresent.ImageIndices = append(q.pendingPresent.ImageIndices, info.ImageIndices...)
}

// PresentOutcome reports the per-swapchain result of a Present call.
type PresentOutcome struct {
	OutOfDate  bool
	Suboptimal bool
}

// Present issues the accumulated present batch. SurfaceOutOfDate and
// Suboptimal are returned as per-swapchain info, not as the call's error:
// callers inspect the returned outcomes to decide whether to recreate a
// swapchain.
func (q *Queue) Present() ([]PresentOutcome, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pendingPresent.Swapchains) == 0 {
		return nil, nil
	}

	swapchainHandles := make([]vkb.Handle, len(q.pendingPresent.Swapchains))
	for i, sc := range q.pendingPresent.Swapchains {
		swapchainHandles[i] = sc.handle
	}
	batch := vkb.PresentBatch{
		WaitSemaphores: semaphoreHandles(q.pendingPresent.WaitSemaphores),
		Swapchains:     swapchainHandles,
		ImageIndices:   q.pendingPresent.ImageIndices,
	}

	results, err := q.device.driver.QueuePresent(q.handle, batch)
	if err != nil {
		return nil, NewQueueError("Present", q.device.name, int(q.queueIndex), ErrCodeDeviceLost, err.Error())
	}

	outcomes := make([]PresentOutcome, len(results))
	for i, r := range results {
		outcomes[i] = PresentOutcome{OutOfDate: r.OutOfDate, Suboptimal: r.Suboptimal}
		if r.OutOfDate || r.Suboptimal {
			q.device.metrics.SurfaceStale.Add(1)
		}
	}
	q.device.metrics.PresentCount.Add(1)
	q.pendingPresent = QueuePresentInfo{}
	return outcomes, nil
}

func semaphoreHandles(sems []*Semaphore) []vkb.Handle {
	out := make([]vkb.Handle, len(sems))
	for i, s := range sems {
		out[i] = s.handleValue()
	}
	return out
}
