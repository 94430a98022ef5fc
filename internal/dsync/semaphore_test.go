package dsync

import (
	"context"
	"testing"
	"time"
)

func TestSemaphoreTryAcquire(t *testing.T) {
	s := NewSemaphore(2)

	if !s.TryAcquire(2) {
		t.Fatal("expected to acquire full weight")
	}
	if s.TryAcquire(1) {
		t.Fatal("expected acquire to fail once exhausted")
	}
	s.Release(1)
	if !s.TryAcquire(1) {
		t.Fatal("expected acquire to succeed after release")
	}
}

func TestSemaphoreAcquireBlocksUntilRelease(t *testing.T) {
	s := NewSemaphore(1)
	if !s.TryAcquire(1) {
		t.Fatal("setup acquire failed")
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.Acquire(ctx, 1); err != nil {
			t.Errorf("Acquire returned error: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Acquire returned before Release")
	case <-time.After(20 * time.Millisecond):
	}

	s.Release(1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Acquire never unblocked after Release")
	}
}
