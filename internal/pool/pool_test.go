package pool

import "testing"

type widget struct {
	id int
}

func TestPoolAllocateFreeLiveCount(t *testing.T) {
	p := New[widget](4)

	if p.Live() != 0 {
		t.Fatalf("expected 0 live, got %d", p.Live())
	}

	h1, w1, err := p.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w1.id = 1
	if p.Live() != 1 {
		t.Fatalf("expected 1 live, got %d", p.Live())
	}

	h2, w2, err := p.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w2.id = 2
	if p.Live() != 2 {
		t.Fatalf("expected 2 live, got %d", p.Live())
	}

	p.Free(h1)
	if p.Live() != 1 {
		t.Fatalf("expected 1 live after free, got %d", p.Live())
	}
	if _, ok := p.Get(h1); ok {
		t.Fatal("expected freed handle to no longer resolve")
	}
	if got, ok := p.Get(h2); !ok || got.id != 2 {
		t.Fatalf("expected h2 to still resolve to id 2, got %v ok=%v", got, ok)
	}

	p.Free(h2)
	if p.Live() != 0 {
		t.Fatalf("expected 0 live, got %d", p.Live())
	}
}

func TestPoolCapacityNeverExceeded(t *testing.T) {
	const n = 3
	p := New[widget](n)

	var handles []Handle
	for i := 0; i < n; i++ {
		h, _, err := p.Allocate()
		if err != nil {
			t.Fatalf("unexpected exhaustion at %d: %v", i, err)
		}
		handles = append(handles, h)
	}

	if _, _, err := p.Allocate(); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}

	// previously allocated handles remain valid after the overflowing call
	for i, h := range handles {
		if _, ok := p.Get(h); !ok {
			t.Fatalf("handle %d invalidated by overflowing allocate", i)
		}
	}

	if p.Live() != int64(n) {
		t.Fatalf("expected live == capacity, got %d", p.Live())
	}
}

func TestPoolFreeOfUnallocatedIsNoop(t *testing.T) {
	p := New[widget](2)
	h, _, _ := p.Allocate()
	p.Free(h)

	// stale generation: freeing again must not corrupt the free list
	p.Free(h)

	h2, _, err := p.Allocate()
	if err != nil {
		t.Fatalf("unexpected error reallocating: %v", err)
	}
	if h2.Generation == h.Generation {
		t.Fatalf("expected generation to have advanced past reused slot")
	}
}

func TestPoolHandleOf(t *testing.T) {
	p := New[widget](4)
	h, w, err := p.Allocate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.id = 99

	got, ok := p.HandleOf(w)
	if !ok {
		t.Fatal("expected HandleOf to resolve live pointer")
	}
	if got != h {
		t.Fatalf("expected handle round-trip, got %v want %v", got, h)
	}

	p.Free(h)
	if _, ok := p.HandleOf(w); ok {
		t.Fatal("expected HandleOf to fail after free")
	}
}

func TestNullHandle(t *testing.T) {
	if !NullHandle.IsNull() {
		t.Fatal("NullHandle.IsNull() should be true")
	}
	var zero Handle
	if zero.IsNull() {
		t.Fatal("zero value Handle must not equal NullHandle")
	}
}
