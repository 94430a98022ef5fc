package rhi

import (
	"errors"
	"fmt"
)

// ErrCode categorizes RHI failures per the device/queue/submission failure
// model: device loss and allocator exhaustion propagate, surface staleness
// is informational, validation failures trap only when validation is on.
type ErrCode string

const (
	ErrCodeDeviceLost         ErrCode = "device lost"
	ErrCodeOutOfMemory        ErrCode = "out of memory"
	ErrCodeSurfaceOutOfDate   ErrCode = "surface out of date"
	ErrCodeSuboptimal         ErrCode = "suboptimal"
	ErrCodeValidationFailure  ErrCode = "validation failure"
	ErrCodeGraphNotDAG        ErrCode = "graph not a dag"
	ErrCodeTaskStorageOverflow ErrCode = "task storage overflow"
	ErrCodePoolExhausted      ErrCode = "pool exhausted"
	ErrCodeInvalidState       ErrCode = "invalid state"
)

// Error is a structured RHI error carrying the failing operation, the
// device object involved (if any), and the high-level category.
type Error struct {
	Op     string
	Device string
	Queue  int
	Code   ErrCode
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.Device != "" && e.Queue >= 0:
		return fmt.Sprintf("rhi: %s (op=%s device=%s queue=%d)", msg, e.Op, e.Device, e.Queue)
	case e.Device != "":
		return fmt.Sprintf("rhi: %s (op=%s device=%s)", msg, e.Op, e.Device)
	case e.Op != "":
		return fmt.Sprintf("rhi: %s (op=%s)", msg, e.Op)
	default:
		return fmt.Sprintf("rhi: %s", msg)
	}
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError builds an Error with no device/queue context.
func NewError(op string, code ErrCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg, Queue: -1}
}

// NewDeviceError builds an Error scoped to a named device.
func NewDeviceError(op, device string, code ErrCode, msg string) *Error {
	return &Error{Op: op, Device: device, Code: code, Msg: msg, Queue: -1}
}

// NewQueueError builds an Error scoped to a named device and queue index.
func NewQueueError(op, device string, queue int, code ErrCode, msg string) *Error {
	return &Error{Op: op, Device: device, Queue: queue, Code: code, Msg: msg}
}

// WrapError attaches op context to inner, preserving its code if inner is
// already a structured *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if re, ok := inner.(*Error); ok {
		return &Error{
			Op: op, Device: re.Device, Queue: re.Queue,
			Code: re.Code, Msg: re.Msg, Inner: re.Inner,
		}
	}
	return &Error{Op: op, Code: ErrCodeInvalidState, Msg: inner.Error(), Inner: inner, Queue: -1}
}

// IsCode reports whether err is a structured Error with the given code.
func IsCode(err error, code ErrCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
