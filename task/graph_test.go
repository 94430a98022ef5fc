package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	e := NewExecutor(Config{Workers: 4, TaskCapacity: 64})
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("executor close: %v", err)
		}
	})
	return e
}

// S1: diamond dependency. A->B, A->C, B->D, C->D. D must observe B and C
// having already run, reading a final value in {1,2}.
func TestDiamondScenario(t *testing.T) {
	e := newTestExecutor(t)
	g := e.NewGraph()

	var shared atomic.Int32
	var bRan, cRan atomic.Bool

	hA, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	hB, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		bRan.Store(true)
		shared.Store(1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	hC, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		cRan.Store(true)
		shared.Store(2)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	hD, futD, err := CreateTask(g, func(ctx context.Context, extra ...any) (int32, error) {
		if !bRan.Load() || !cRan.Load() {
			t.Error("D invoked before both B and C completed")
		}
		return shared.Load(), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(g.AddDependency(hA, hB, false))
	must(g.AddDependency(hA, hC, false))
	must(g.AddDependency(hB, hD, false))
	must(g.AddDependency(hC, hD, false))

	if err := e.SubmitGraph(g); err != nil {
		t.Fatal(err)
	}

	got, err := Join(context.Background(), e, futD)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 && got != 2 {
		t.Fatalf("expected D to observe 1 or 2, got %d", got)
	}
}

// S2: continuation chain. Only A is submitted; B (a continuation of A)
// must still run, after A, and the executor must be quiescent afterward.
func TestContinuationChainScenario(t *testing.T) {
	e := newTestExecutor(t)
	g := e.NewGraph()

	var aDone atomic.Bool
	var bObservedADone atomic.Bool

	hA, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		aDone.Store(true)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	hB, futB, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		bObservedADone.Store(aDone.Load())
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependency(hA, hB, true); err != nil {
		t.Fatal(err)
	}

	if err := e.SubmitGraph(g); err != nil {
		t.Fatal(err)
	}

	if _, err := Join(context.Background(), e, futB); err != nil {
		t.Fatal(err)
	}
	if !bObservedADone.Load() {
		t.Fatal("continuation B ran before A completed")
	}
}

// S5: cycle detection. A->B->A must fail Finalize with ErrGraphNotDAG and
// schedule nothing.
func TestCycleDetectionScenario(t *testing.T) {
	e := newTestExecutor(t)
	g := e.NewGraph()

	hA, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		t.Error("task A must not run when the graph is cyclic")
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	hB, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		t.Error("task B must not run when the graph is cyclic")
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependency(hA, hB, false); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependency(hB, hA, false); err != nil {
		t.Fatal(err)
	}

	if _, err := g.Finalize(); err != ErrGraphNotDAG {
		t.Fatalf("expected ErrGraphNotDAG, got %v", err)
	}

	time.Sleep(20 * time.Millisecond) // give any (incorrect) scheduling a chance to surface
}

func TestFinalizeSingleNodeProducesOneReadyTask(t *testing.T) {
	e := newTestExecutor(t)
	g := e.NewGraph()

	h, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (int, error) { return 7, nil })
	if err != nil {
		t.Fatal(err)
	}

	seeds, err := g.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(seeds) != 1 || seeds[0] != h {
		t.Fatalf("expected exactly one ready task (the node itself), got %v", seeds)
	}
}

func TestSubmitEmptyGraphIsNoop(t *testing.T) {
	e := newTestExecutor(t)
	g := e.NewGraph()

	if err := e.SubmitGraph(g); err != nil {
		t.Fatalf("submitting an empty graph must be a no-op, got error: %v", err)
	}
}

func TestTaskInvokedExactlyOnce(t *testing.T) {
	e := newTestExecutor(t)
	g := e.NewGraph()

	var count atomic.Int32
	h, fut, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		count.Add(1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = h
	seeds, err := g.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Submit(seeds...); err != nil {
		t.Fatal(err)
	}

	if _, err := Join(context.Background(), e, fut); err != nil {
		t.Fatal(err)
	}
	if count.Load() != 1 {
		t.Fatalf("expected exactly one invocation, got %d", count.Load())
	}
}

func TestCreateTaskOverflow(t *testing.T) {
	e := NewExecutor(Config{Workers: 1, TaskCapacity: 2})
	defer e.Close()

	g := e.NewGraph()
	h1, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (int, error) { return 1, nil })
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = CreateTask(g, func(ctx context.Context, extra ...any) (int, error) { return 2, nil })
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = CreateTask(g, func(ctx context.Context, extra ...any) (int, error) { return 3, nil })
	if err != ErrTaskStorageOverflow {
		t.Fatalf("expected ErrTaskStorageOverflow, got %v", err)
	}

	// the previously created task must remain unaffected
	if _, ok := e.nodes.Get(h1); !ok {
		t.Fatal("earlier handle invalidated by the overflowing CreateTask")
	}
}
