package task

import "errors"

// ErrGraphNotDAG is returned by Graph.Finalize when a dependency cycle is
// detected; the graph is left finalized but unsubmittable, with no nodes
// scheduled.
var ErrGraphNotDAG = errors.New("task: graph is not a DAG")

// ErrTaskStorageOverflow is returned by CreateTask when the executor's
// shared task storage has no free slots.
var ErrTaskStorageOverflow = errors.New("task: shared task storage exhausted")

// ErrExecutorClosed is returned by Submit once Close has been called.
var ErrExecutorClosed = errors.New("task: executor is closed")
