package rhi

import (
	"fmt"
	"sync"

	"github.com/dohjohansson/forge/internal/vkb"
)

// commandBufferArrayCapacity is the hard cap the recording-flags bitmask
// assumes (spec's Open Question (b)): a uint8 bitmask can track at most 8
// slots, and this runtime fixes the array at 4.
const commandBufferArrayCapacity = 4

// CommandBufferArray is a batch of command buffers allocated together from
// one command pool at one level. Its head advances monotonically as
// buffers are opened for recording; once head reaches capacity the array
// is full and is handed off to the pool's pending lane.
type CommandBufferArray struct {
	handles        [commandBufferArrayCapacity]vkb.Handle
	head           uint8
	recordingFlags uint8
	timelineValue  uint64 // 0 until submitted
}

func (a *CommandBufferArray) capacity() uint8 { return commandBufferArrayCapacity }
func (a *CommandBufferArray) full() bool      { return a.head >= a.capacity() }

func (a *CommandBufferArray) begin(driver vkb.Driver) (uint8, error) {
	if a.full() {
		return 0, fmt.Errorf("rhi: command buffer array is full")
	}
	idx := a.head
	if a.recordingFlags&(1<<idx) != 0 {
		return 0, fmt.Errorf("rhi: command buffer slot %d already recording", idx)
	}
	if err := driver.BeginCommandBuffer(a.handles[idx]); err != nil {
		return 0, err
	}
	a.recordingFlags |= 1 << idx
	a.head++
	return idx, nil
}

func (a *CommandBufferArray) end(driver vkb.Driver, idx uint8) error {
	if err := driver.EndCommandBuffer(a.handles[idx]); err != nil {
		return err
	}
	a.recordingFlags &^= 1 << idx
	return nil
}

func (a *CommandBufferArray) reset() {
	a.head = 0
	a.recordingFlags = 0
	a.timelineValue = 0
}

// recordedHandles returns the handles of every slot that has been begun
// (and, normally, ended) so far — the ones ready to submit.
func (a *CommandBufferArray) recordedHandles() []vkb.Handle {
	return a.handles[:a.head]
}

// CommandScopeDesc selects the recording level and whether Commands returns
// a working End closure (ScopedBeginEnd=true, the common case — callers
// `defer end()`). With ScopedBeginEnd=false the returned closure does
// nothing and this context never ends the command buffer.
type CommandScopeDesc struct {
	Level          uint8 // 0: primary, >=1: secondary
	ScopedBeginEnd bool
}

type commandLevelState struct {
	cursor    *CommandBufferArray
	free      []*CommandBufferArray
	pending   []*CommandBufferArray
	submitted []*CommandBufferArray
}

// CommandPoolContext owns one GPU command pool plus, per level, the
// free/pending/submitted lanes of CommandBufferArray and that level's
// currently-open recording cursor. Not safe for concurrent Commands calls
// from more than one goroutine — command pools are single-owner per
// (thread x frame x level) by convention, not by mutex.
type CommandPoolContext struct {
	DeviceObjectHeader
	handle           vkb.Handle
	queueFamilyIndex uint32
	resetIndividual  bool
	levels           map[uint8]*commandLevelState
	mu               sync.Mutex // guards only the free/pending/submitted bookkeeping, not recording itself
}

// NewCommandPoolContext creates a command pool for queueFamilyIndex.
// resetIndividual mirrors RESET_COMMAND_BUFFER: when true, Reset() resets
// the whole driver pool in addition to reclaiming submitted arrays.
func NewCommandPoolContext(device *Device, name string, queueFamilyIndex uint32, resetIndividual bool) (*CommandPoolContext, error) {
	h, err := device.driver.CreateCommandPool(device.handle, vkb.CommandPoolCreateInfo{
		QueueFamilyIndex: queueFamilyIndex,
		ResetIndividual:  resetIndividual,
	})
	if err != nil {
		return nil, NewDeviceError("NewCommandPoolContext", device.name, ErrCodeOutOfMemory, err.Error())
	}
	return &CommandPoolContext{
		DeviceObjectHeader: newDeviceObjectHeader(device, name),
		handle:             h,
		queueFamilyIndex:   queueFamilyIndex,
		resetIndividual:    resetIndividual,
		levels:             make(map[uint8]*commandLevelState),
	}, nil
}

func (c *CommandPoolContext) levelState(level uint8) *commandLevelState {
	s, ok := c.levels[level]
	if !ok {
		s = &commandLevelState{}
		c.levels[level] = s
	}
	return s
}

func (c *CommandPoolContext) newArray(level uint8) (*CommandBufferArray, error) {
	secondary := level > 0
	handles, err := c.device.driver.AllocateCommandBuffers(c.device.handle, c.handle, commandBufferArrayCapacity, secondary)
	if err != nil {
		return nil, err
	}
	arr := &CommandBufferArray{}
	copy(arr.handles[:], handles)
	return arr, nil
}

// Commands obtains (creating or reusing as needed) a recording cursor for
// desc.Level and begins one command buffer in it, returning the buffer
// handle and an End closure the caller is expected to defer.
func (c *CommandPoolContext) Commands(desc CommandScopeDesc) (vkb.Handle, func() error, error) {
	c.mu.Lock()
	state := c.levelState(desc.Level)
	if state.cursor == nil || state.cursor.full() {
		if state.cursor != nil && state.cursor.full() {
			state.pending = append(state.pending, state.cursor)
		}
		if len(state.free) > 0 {
			state.cursor = state.free[len(state.free)-1]
			state.free = state.free[:len(state.free)-1]
		} else {
			arr, err := c.newArray(desc.Level)
			if err != nil {
				c.mu.Unlock()
				return vkb.NullHandle, nil, NewDeviceError("Commands", c.device.name, ErrCodeOutOfMemory, err.Error())
			}
			state.cursor = arr
		}
	}
	cursor := state.cursor
	c.mu.Unlock()

	idx, err := cursor.begin(c.device.driver)
	if err != nil {
		return vkb.NullHandle, nil, NewDeviceError("Commands", c.device.name, ErrCodeInvalidState, err.Error())
	}
	handle := cursor.handles[idx]

	ended := false
	end := func() error {
		if ended {
			return nil
		}
		ended = true
		if err := cursor.end(c.device.driver, idx); err != nil {
			return NewDeviceError("Commands.End", c.device.name, ErrCodeInvalidState, err.Error())
		}
		c.mu.Lock()
		if cursor.full() {
			state := c.levelState(desc.Level)
			if state.cursor == cursor {
				state.pending = append(state.pending, cursor)
				state.cursor = nil
			}
		}
		c.mu.Unlock()
		return nil
	}
	if !desc.ScopedBeginEnd {
		return handle, func() error { return nil }, nil
	}
	return handle, end, nil
}

// PendingCommandBuffers returns every recorded-but-not-submitted command
// buffer handle at level, including the still-open cursor's recorded
// slots, in the order they should be submitted.
func (c *CommandPoolContext) PendingCommandBuffers(level uint8) []vkb.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.levelState(level)
	var out []vkb.Handle
	for _, arr := range state.pending {
		out = append(out, arr.recordedHandles()...)
	}
	if state.cursor != nil {
		out = append(out, state.cursor.recordedHandles()...)
	}
	return out
}

// MarkSubmitted tags every pending array at level with timelineValue and
// splices the pending lane into the submitted lane. Called after
// Queue.Submit succeeds with the value it returned.
func (c *CommandPoolContext) MarkSubmitted(level uint8, timelineValue uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.levelState(level)
	for _, arr := range state.pending {
		arr.timelineValue = timelineValue
	}
	state.submitted = append(state.submitted, state.pending...)
	state.pending = nil
	if state.cursor != nil && state.cursor.head > 0 {
		state.cursor.timelineValue = timelineValue
		state.submitted = append(state.submitted, state.cursor)
		state.cursor = nil
	}
}

// AddCommandsFinishedCallback schedules fn against the device's timeline
// at the next submit boundary — the mechanism staging-buffer teardown (S3)
// rides on.
func (c *CommandPoolContext) AddCommandsFinishedCallback(fn func()) error {
	return c.device.AddTimelineCallback(c.device.TimelineValue()+1, fn)
}

// Reset reclaims every submitted array whose timeline value has been
// signalled back onto the free lane, resetting each one. If the pool was
// created with resetIndividual, the driver pool itself is also reset.
// reset() followed by Commands() yields a pool equivalent to a fresh one.
func (c *CommandPoolContext) Reset() error {
	signalled, err := c.device.SignalledValue()
	if err != nil {
		return err
	}
	if c.resetIndividual {
		if err := c.device.driver.ResetCommandPool(c.device.handle, c.handle); err != nil {
			return NewDeviceError("Reset", c.device.name, ErrCodeInvalidState, err.Error())
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, state := range c.levels {
		var stillSubmitted []*CommandBufferArray
		for _, arr := range state.submitted {
			if arr.timelineValue <= signalled {
				arr.reset()
				state.free = append(state.free, arr)
			} else {
				stillSubmitted = append(stillSubmitted, arr)
			}
		}
		state.submitted = stillSubmitted
	}
	return nil
}

// Close destroys the underlying driver command pool immediately: command
// pools are not DeviceObjects whose destruction needs to wait on the
// timeline, since Reset/drain above already ensures nothing submitted
// against it is still outstanding.
func (c *CommandPoolContext) Close() {
	c.device.driver.DestroyCommandPool(c.device.handle, c.handle)
}
