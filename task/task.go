// Package task implements a concurrent task-graph executor: a worker pool
// that consumes directed acyclic graphs of short-lived work units,
// respecting explicit happens-before edges, with continuations,
// cancellation and futures.
package task

import (
	"context"
	"sync/atomic"

	"github.com/dohjohansson/forge/internal/dsync"
	"github.com/dohjohansson/forge/internal/pool"
)

// Handle identifies a task node in the executor's shared storage. It is the
// only thing that crosses the ready queue between goroutines; the node it
// names lives in a fixed-capacity pool so the queue never carries raw
// pointers.
type Handle = pool.Handle

// NullHandle is the distinguished handle that never names a live task.
var NullHandle = pool.NullHandle

// Func is a task's callable. Bound arguments are captured by the closure
// itself (Go's natural replacement for the source's inline bound-argument
// storage); extra values passed to Executor.Call are appended as extra.
// Tasks run by the executor's workers receive no extra values.
type Func[R any] func(ctx context.Context, extra ...any) (R, error)

// taskState is the shared, handle-independent half of a task: the part a
// Future keeps a direct pointer to even after the task's pool slot is
// freed. latch starts at 1 (self) for an independent task, or
// in-degree+1 once a graph finalizes; it is decremented once per
// completed dependency and once more when the task itself completes, so
// is_ready() / future-readiness share one counter as in the source.
type taskState struct {
	mu             dsync.UpgradableSharedMutex // guards adjacency below
	latch          atomic.Int32
	adjacency      []Handle
	isContinuation bool
	done           chan struct{}
	result         any
	err            error
}

// node is what the shared pool actually stores. fn and inDegree are only
// meaningful while the node's slot is live; state outlives it.
type node struct {
	fn       func(ctx context.Context, extra ...any) (any, error)
	state    *taskState
	inDegree int32
}
