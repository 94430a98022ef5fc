package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestOrderingAcrossDependencyEdge(t *testing.T) {
	e := newTestExecutor(t)
	g := e.NewGraph()

	var aReturned atomic.Bool
	hA, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		time.Sleep(5 * time.Millisecond)
		aReturned.Store(true)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	hB, futB, err := CreateTask(g, func(ctx context.Context, extra ...any) (bool, error) {
		return aReturned.Load(), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependency(hA, hB, false); err != nil {
		t.Fatal(err)
	}
	if err := e.SubmitGraph(g); err != nil {
		t.Fatal(err)
	}

	sawADone, err := Join(context.Background(), e, futB)
	if err != nil {
		t.Fatal(err)
	}
	if !sawADone {
		t.Fatal("B observed A had not returned; ordering guarantee violated")
	}
}

func TestFutureReadyAcrossObservingGoroutine(t *testing.T) {
	e := newTestExecutor(t)
	g := e.NewGraph()

	h, fut, err := CreateTask(g, func(ctx context.Context, extra ...any) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	seeds, err := g.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(seeds) != 1 || seeds[0] != h {
		t.Fatalf("expected single seed %v, got %v", h, seeds)
	}
	if err := e.Submit(seeds...); err != nil {
		t.Fatal(err)
	}

	result := make(chan int, 1)
	go func() {
		v, err := fut.Get()
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		result <- v
	}()

	select {
	case v := <-result:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("future never became ready on observing goroutine")
	}
}

func TestExecutorCallSynchronous(t *testing.T) {
	e := newTestExecutor(t)
	g := e.NewGraph()

	h, fut, err := CreateTask(g, func(ctx context.Context, extra ...any) (int, error) {
		return 9, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Finalize(); err != nil {
		t.Fatal(err)
	}
	e.Call(context.Background(), h)

	if !fut.IsReady() {
		t.Fatal("expected future to be ready immediately after synchronous Call")
	}
	v, err := fut.Get()
	if err != nil || v != 9 {
		t.Fatalf("unexpected result %d, err %v", v, err)
	}
}

func TestExecutorClosePropagatesWorkerPanic(t *testing.T) {
	e := NewExecutor(Config{Workers: 1, TaskCapacity: 8})
	g := e.NewGraph()

	_, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		panic("boom")
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SubmitGraph(g); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond) // let the panicking task run

	err = e.Close()
	if err == nil {
		t.Fatal("expected Close to report the worker panic")
	}
}

func TestExecutorSubmitAfterCloseFails(t *testing.T) {
	e := NewExecutor(Config{Workers: 1, TaskCapacity: 8})
	g := e.NewGraph()
	_, _, err := CreateTask(g, func(ctx context.Context, extra ...any) (struct{}, error) {
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	seeds, err := g.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	if err := e.Submit(seeds...); !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("expected ErrExecutorClosed, got %v", err)
	}
}
