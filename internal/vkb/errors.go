package vkb

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
)

// Code categorizes a driver-level failure, one layer below rhi.ErrCode.
type Code string

const (
	ErrCodeInvalidArgument Code = "invalid argument"
	ErrCodeVulkan          Code = "vulkan error"
	ErrCodeTimeout         Code = "timeout"
)

// Error is a structured driver error; rhi wraps these into *rhi.Error via
// its own WrapError, attaching device/queue context the driver doesn't
// have.
type Error struct {
	Op     string
	Code   Code
	Result vk.Result
	Msg    string
}

func (e *Error) Error() string {
	if e.Result != 0 {
		return fmt.Sprintf("vkb: %s: %s (vk result=%d)", e.Op, e.Msg, e.Result)
	}
	return fmt.Sprintf("vkb: %s: %s", e.Op, e.Msg)
}

// NewError builds a driver error with no underlying vk.Result.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewVkError wraps a non-success vk.Result returned by a Vulkan call.
func NewVkError(op string, result vk.Result) *Error {
	return &Error{Op: op, Code: ErrCodeVulkan, Result: result, Msg: vkResultString(result)}
}

func vkResultString(r vk.Result) string {
	switch r {
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory:
		return "out of memory"
	case vk.ErrorDeviceLost:
		return "device lost"
	case vk.ErrorOutOfDate:
		return "surface out of date"
	case vk.Suboptimal:
		return "suboptimal"
	default:
		return "vulkan call failed"
	}
}

func timeUntil(t time.Time) time.Duration {
	d := time.Until(t)
	if d < 0 {
		return 0
	}
	return d
}
