package rhi

import (
	"testing"

	"github.com/dohjohansson/forge/internal/vkb"
)

func TestCommandBufferArrayCapacityIsFour(t *testing.T) {
	dev := newTestDevice(t)
	pool, err := NewCommandPoolContext(dev, "pool", 0, true)
	if err != nil {
		t.Fatalf("NewCommandPoolContext: %v", err)
	}
	defer pool.Close()

	var ends []func() error
	for i := 0; i < commandBufferArrayCapacity; i++ {
		_, end, err := pool.Commands(CommandScopeDesc{Level: 0, ScopedBeginEnd: true})
		if err != nil {
			t.Fatalf("Commands() #%d: %v", i, err)
		}
		ends = append(ends, end)
	}
	for _, end := range ends {
		if err := end(); err != nil {
			t.Fatalf("end(): %v", err)
		}
	}

	// a 5th Commands() call on the same level must roll over to a new
	// array rather than overflow the bitmask.
	_, end, err := pool.Commands(CommandScopeDesc{Level: 0, ScopedBeginEnd: true})
	if err != nil {
		t.Fatalf("Commands() overflow: %v", err)
	}
	if err := end(); err != nil {
		t.Fatalf("end(): %v", err)
	}
}

func TestCommandPoolResetReclaimsSubmittedArrays(t *testing.T) {
	dev := newTestDevice(t)
	queue, err := NewQueue(dev, 0, 0)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	pool, err := NewCommandPoolContext(dev, "pool", 0, true)
	if err != nil {
		t.Fatalf("NewCommandPoolContext: %v", err)
	}
	defer pool.Close()

	cmd, end, err := pool.Commands(CommandScopeDesc{Level: 0, ScopedBeginEnd: true})
	if err != nil {
		t.Fatalf("Commands: %v", err)
	}
	if err := end(); err != nil {
		t.Fatalf("end: %v", err)
	}
	_ = cmd

	queue.EnqueueSubmit(QueueSubmitInfo{CommandBuffers: pool.PendingCommandBuffers(0)})
	value, err := queue.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	pool.MarkSubmitted(0, value)

	if err := dev.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if err := pool.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	// after Reset, Commands() should succeed by reusing the reclaimed
	// array rather than failing or allocating unboundedly.
	_, end2, err := pool.Commands(CommandScopeDesc{Level: 0, ScopedBeginEnd: true})
	if err != nil {
		t.Fatalf("Commands after Reset: %v", err)
	}
	if err := end2(); err != nil {
		t.Fatalf("end after Reset: %v", err)
	}
}

func TestAddCommandsFinishedCallbackFiresAfterTimelineSignal(t *testing.T) {
	dev := newTestDevice(t)
	queue, err := NewQueue(dev, 0, 0)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	pool, err := NewCommandPoolContext(dev, "pool", 0, true)
	if err != nil {
		t.Fatalf("NewCommandPoolContext: %v", err)
	}
	defer pool.Close()

	fired := make(chan struct{}, 1)
	if err := pool.AddCommandsFinishedCallback(func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("AddCommandsFinishedCallback: %v", err)
	}

	cmd, end, err := pool.Commands(CommandScopeDesc{Level: 0, ScopedBeginEnd: true})
	if err != nil {
		t.Fatalf("Commands: %v", err)
	}
	if err := end(); err != nil {
		t.Fatalf("end: %v", err)
	}
	queue.EnqueueSubmit(QueueSubmitInfo{CommandBuffers: []vkb.Handle{cmd}})

	if _, err := queue.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := dev.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}

	select {
	case <-fired:
	default:
		t.Fatal("commands-finished callback did not fire after timeline signal + WaitIdle")
	}
}
