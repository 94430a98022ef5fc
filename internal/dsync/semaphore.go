package dsync

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Semaphore is a counting semaphore with a configurable maximum, a P/V
// wrapper over golang.org/x/sync/semaphore.Weighted. The task executor
// does not use it; it wakes workers through a buffered channel instead.
type Semaphore struct {
	w *semaphore.Weighted
}

// NewSemaphore creates a semaphore with the given maximum weight.
func NewSemaphore(max int64) *Semaphore {
	return &Semaphore{w: semaphore.NewWeighted(max)}
}

// Acquire blocks until n units are available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context, n int64) error {
	return s.w.Acquire(ctx, n)
}

// Release returns n units to the semaphore.
func (s *Semaphore) Release(n int64) {
	s.w.Release(n)
}

// TryAcquire acquires n units without blocking, reporting success.
func (s *Semaphore) TryAcquire(n int64) bool {
	return s.w.TryAcquire(n)
}
