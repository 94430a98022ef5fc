package task

import (
	"context"
	"fmt"
	"sync"
)

// Graph owns a set of task nodes allocated from its Executor's shared
// storage. Build it with CreateTask and AddDependency, then call Finalize
// (or hand it to Executor.SubmitGraph, which finalizes for you) exactly
// once.
type Graph struct {
	mu        sync.Mutex
	exec      *Executor
	handles   []Handle
	finalized bool
}

// NewGraph creates an empty graph whose nodes are allocated from e's
// shared task storage.
func NewGraph(e *Executor) *Graph {
	return &Graph{exec: e}
}

// CreateTask allocates a task node wrapping fn and returns its handle plus
// a typed future for its eventual result. Fails with ErrTaskStorageOverflow
// once the executor's shared task storage is exhausted; previously
// created tasks (in this graph or any other) are unaffected.
func CreateTask[R any](g *Graph, fn Func[R]) (Handle, *Future[R], error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finalized {
		return NullHandle, nil, fmt.Errorf("task: graph already finalized")
	}

	h, n, err := g.exec.poolAllocate()
	if err != nil {
		return NullHandle, nil, ErrTaskStorageOverflow
	}

	st := &taskState{done: make(chan struct{})}
	st.latch.Store(1) // self-count; Finalize overwrites with in-degree+1
	n.state = st
	n.fn = func(ctx context.Context, extra ...any) (any, error) {
		return fn(ctx, extra...)
	}

	g.handles = append(g.handles, h)
	return h, &Future[R]{state: st}, nil
}

// AddDependency records that a must complete before b; b's in-degree
// increments. A continuation edge marks b as not independently runnable:
// it is spawned only once a completes, and its enqueue does not release
// the executor's worker wakeup signal.
func (g *Graph) AddDependency(a, b Handle, isContinuation bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finalized {
		return fmt.Errorf("task: graph already finalized")
	}
	if a == b {
		return fmt.Errorf("task: a task cannot depend on itself")
	}

	na, ok := g.exec.poolGet(a)
	if !ok {
		return fmt.Errorf("task: unknown handle %v", a)
	}
	nb, ok := g.exec.poolGet(b)
	if !ok {
		return fmt.Errorf("task: unknown handle %v", b)
	}

	na.state.mu.Lock()
	na.state.adjacency = append(na.state.adjacency, b)
	na.state.mu.Unlock()

	nb.inDegree++
	if isContinuation {
		nb.state.isContinuation = true
	}
	return nil
}

// Finalize performs a DFS-based topological check (rejecting non-DAGs),
// seeds every node's latch to in-degree+1, and returns the handles with
// zero in-degree — the set Executor.Submit expects. Submitting an empty
// graph is a no-op: Finalize on a graph with no tasks returns a nil slice
// and no error.
//
// The source additionally physically reorders node storage into
// reverse-departure order for cache locality (see original_source's
// TaskGraph::finalize); that reorder has no effect on the correctness
// properties this package exposes (handles already resolve in O(1)
// regardless of allocation order) and the source's own remapping step
// conflates a node's original id with its departure rank rather than
// applying an explicit permutation, so it is not reproduced here — see
// DESIGN.md's Open Question (a).
func (g *Graph) Finalize() ([]Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.finalized {
		return nil, fmt.Errorf("task: graph already finalized")
	}
	g.finalized = true

	n := len(g.handles)
	if n == 0 {
		return nil, nil
	}

	index := make(map[Handle]int, n)
	for i, h := range g.handles {
		index[h] = i
	}

	visited := make([]bool, n)
	departure := make([]int, n)
	clock := 0

	var dfs func(i int)
	dfs = func(i int) {
		visited[i] = true
		nd, _ := g.exec.poolGet(g.handles[i])
		for _, adj := range nd.state.adjacency {
			j, ok := index[adj]
			if !ok || visited[j] {
				continue
			}
			dfs(j)
		}
		departure[i] = clock
		clock++
	}

	for i := 0; i < n; i++ {
		if !visited[i] {
			dfs(i)
		}
	}

	for i := 0; i < n; i++ {
		nd, _ := g.exec.poolGet(g.handles[i])
		for _, adj := range nd.state.adjacency {
			j, ok := index[adj]
			if !ok {
				continue
			}
			if departure[i] <= departure[j] {
				return nil, ErrGraphNotDAG
			}
		}
	}

	var seeds []Handle
	for i := 0; i < n; i++ {
		nd, _ := g.exec.poolGet(g.handles[i])
		nd.state.latch.Store(nd.inDegree + 1)
		if nd.inDegree == 0 {
			seeds = append(seeds, g.handles[i])
		}
	}
	return seeds, nil
}
