package task

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/dohjohansson/forge/internal/logging"
	"github.com/dohjohansson/forge/internal/pool"
)

// Config configures an Executor.
type Config struct {
	// Workers is the worker-goroutine count. Zero selects
	// runtime.GOMAXPROCS(0) - Reserved, floored at 1.
	Workers int
	// Reserved is subtracted from GOMAXPROCS(0) when Workers is zero.
	Reserved int
	// TaskCapacity bounds the shared task pool all graphs submitted to
	// this executor allocate nodes from.
	TaskCapacity int
	// CPUAffinity optionally pins worker i to CPUAffinity[i%len(...)],
	// mirroring the queue-runner's round-robin pinning. Nil disables
	// affinity.
	CPUAffinity []int
	Logger      *logging.Logger
}

func (c Config) workerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	n := runtime.GOMAXPROCS(0) - c.Reserved
	if n < 1 {
		n = 1
	}
	return n
}

func (c Config) taskCapacity() int {
	if c.TaskCapacity > 0 {
		return c.TaskCapacity
	}
	return 4096
}

// Executor owns a fixed worker pool, a ready queue shared by every Graph
// built against it, and a wakeup channel that idle workers block on. wake
// is a 0-initialized counting signal: posting is a non-blocking buffered
// send (excess posts are dropped once every worker has something to wake
// up to), waiting is a single receive. This is deliberately not built on
// golang.org/x/sync/semaphore.Weighted: a Weighted starts with its full
// weight already available, so using it here would let every idle worker's
// wait succeed immediately (a busy spin) and would panic the moment
// cumulative releases outran acquires. done is closed once, by Close, to
// broadcast shutdown to every worker regardless of how many wake posts
// they are owed.
type Executor struct {
	nodes   *pool.Pool[node]
	nodesMu sync.Mutex // guards nodes: Pool[T] is not safe for concurrent use on its own
	ready   chan Handle
	wake    chan struct{}
	done    chan struct{}
	workers int
	wg      sync.WaitGroup
	stopped atomic.Bool
	metrics Metrics
	panics  chan any
	cpus    []int
	logger  *logging.Logger
}

// NewExecutor starts the worker pool described by cfg.
func NewExecutor(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	workers := cfg.workerCount()
	e := &Executor{
		nodes:   pool.New[node](cfg.taskCapacity()),
		ready:   make(chan Handle, cfg.taskCapacity()),
		wake:    make(chan struct{}, workers),
		done:    make(chan struct{}),
		workers: workers,
		panics:  make(chan any, workers),
		cpus:    cfg.CPUAffinity,
		logger:  logger,
	}
	e.wg.Add(e.workers)
	for i := 0; i < e.workers; i++ {
		go e.workerLoop(i)
	}
	return e
}

// poolAllocate, poolGet and poolFree serialize every access to e.nodes.
// Pool[T] threads its free list through the slot array itself and documents
// that it needs external synchronization when shared across goroutines,
// which every worker and every Graph built on this executor does.
func (e *Executor) poolAllocate() (Handle, *node, error) {
	e.nodesMu.Lock()
	defer e.nodesMu.Unlock()
	return e.nodes.Allocate()
}

func (e *Executor) poolGet(h Handle) (*node, bool) {
	e.nodesMu.Lock()
	defer e.nodesMu.Unlock()
	return e.nodes.Get(h)
}

func (e *Executor) poolFree(h Handle) {
	e.nodesMu.Lock()
	defer e.nodesMu.Unlock()
	e.nodes.Free(h)
}

// Metrics returns the executor's live counters.
func (e *Executor) Metrics() *Metrics {
	return &e.metrics
}

// NewGraph creates a graph whose tasks allocate from e's shared storage.
func (e *Executor) NewGraph() *Graph {
	return NewGraph(e)
}

// Submit enqueues the given (already-finalized, zero-in-degree) handles,
// releasing the wakeup signal once per non-continuation handle. Intended
// to be called with the slice Graph.Finalize returns.
func (e *Executor) Submit(handles ...Handle) error {
	if e.stopped.Load() {
		return ErrExecutorClosed
	}
	for _, h := range handles {
		n, ok := e.poolGet(h)
		if !ok {
			return fmt.Errorf("task: submit of unknown handle %v", h)
		}
		e.enqueue(h, n.state.isContinuation)
	}
	return nil
}

// SubmitGraph finalizes g and submits its seed tasks in one call.
// Submitting an empty graph is a no-op.
func (e *Executor) SubmitGraph(g *Graph) error {
	seeds, err := g.Finalize()
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		return nil
	}
	return e.Submit(seeds...)
}

// Call synchronously invokes handle on the calling goroutine; any
// dependents it unblocks are scheduled onto the worker pool as usual, not
// run inline.
func (e *Executor) Call(ctx context.Context, handle Handle, extra ...any) {
	e.invoke(ctx, handle, extra...)
}

// Join helps the calling goroutine drain the shared ready queue until f is
// ready or the queue runs dry, then blocks on f directly. It is a
// package-level function, not a method, because Go methods cannot carry
// their own type parameter.
func Join[R any](ctx context.Context, e *Executor, f *Future[R]) (R, error) {
	for {
		if f.IsReady() {
			return f.Get()
		}
		select {
		case h := <-e.ready:
			e.invoke(ctx, h)
		default:
			return f.Get() // blocks inside Get via Wait()
		}
	}
}

// Close stops accepting new work, wakes every worker, waits for in-flight
// tasks to finish, drops anything still queued, and returns the first
// worker panic as an error if one occurred — the panic/recover analogue
// of the source's captured thread-local exception_ptr.
func (e *Executor) Close() error {
	e.stopped.Store(true)
	close(e.done)
	e.wg.Wait()

	var dropped int64
drain:
	for {
		select {
		case <-e.ready:
			dropped++
		default:
			break drain
		}
	}
	e.metrics.TasksDropped.Add(dropped)

	close(e.panics)
	var first any
	for p := range e.panics {
		if first == nil {
			first = p
		}
	}
	if first != nil {
		return fmt.Errorf("task: worker panic: %v", first)
	}
	return nil
}

func (e *Executor) enqueue(h Handle, isContinuation bool) {
	e.ready <- h
	if !isContinuation {
		select {
		case e.wake <- struct{}{}:
		default:
		}
	}
}

func (e *Executor) workerLoop(id int) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.metrics.PanicsRecovered.Add(1)
			select {
			case e.panics <- r:
			default:
			}
		}
	}()

	if len(e.cpus) > 0 {
		pinWorkerToCPU(id, e.cpus, e.logger)
	}

	ctx := context.Background()
	for !e.stopped.Load() {
		e.drainReady(ctx)
		select {
		case <-e.wake:
		case <-e.done:
			return
		}
	}
}

func (e *Executor) drainReady(ctx context.Context) {
	for {
		select {
		case h := <-e.ready:
			e.invoke(ctx, h)
		default:
			return
		}
	}
}

// invoke runs a task's callable exactly once, stores its result, signals
// completion, schedules any dependents it unblocked, and frees the node's
// pool slot. The node's taskState outlives the slot so outstanding
// Futures stay valid.
func (e *Executor) invoke(ctx context.Context, h Handle, extra ...any) {
	n, ok := e.poolGet(h)
	if !ok {
		return
	}
	st := n.state
	fn := n.fn

	func() {
		defer func() {
			if r := recover(); r != nil {
				st.err = fmt.Errorf("task: panic: %v", r)
				e.metrics.PanicsRecovered.Add(1)
				select {
				case e.panics <- r:
				default:
				}
			}
		}()
		v, err := fn(ctx, extra...)
		st.result, st.err = v, err
	}()

	e.metrics.TasksRun.Add(1)

	if st.latch.Add(-1) == 0 {
		close(st.done)
	}

	e.scheduleAdjacent(n)
	e.poolFree(h)
}

// scheduleAdjacent decrements each dependent's latch; a dependent reaching
// 1 (all deps done, self still pending) becomes ready and is enqueued.
func (e *Executor) scheduleAdjacent(n *node) {
	n.state.mu.RLock()
	adjacency := n.state.adjacency
	n.state.mu.RUnlock()

	for _, dh := range adjacency {
		dn, ok := e.poolGet(dh)
		if !ok {
			continue
		}
		if dn.state.latch.Add(-1) == 1 {
			e.enqueue(dh, dn.state.isContinuation)
		}
	}
}

// pinWorkerToCPU pins the calling goroutine's OS thread to a CPU chosen by
// round-robin over cpus, mirroring the queue-runner's affinity block.
// Non-fatal on failure: the worker keeps running without affinity.
func pinWorkerToCPU(workerID int, cpus []int, logger *logging.Logger) {
	runtime.LockOSThread()

	cpu := cpus[workerID%len(cpus)]
	var mask unix.CPUSet
	mask.Set(cpu)
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		if logger != nil {
			logger.Warnf("worker %d: failed to set CPU affinity to %d: %v", workerID, cpu, err)
		}
		return
	}
	if logger != nil {
		logger.Debugf("worker %d: pinned to CPU %d", workerID, cpu)
	}
}
