package rhi

import "testing"

func TestBufferArenaAllocAndFree(t *testing.T) {
	dev := newTestDevice(t)
	arena, err := NewBufferArena(dev, "arena", 4096, BufferUsageStorage)
	if err != nil {
		t.Fatalf("NewBufferArena: %v", err)
	}
	defer arena.Close()

	a, err := arena.Alloc(256, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b, err := arena.Alloc(256, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if a.Offset == b.Offset {
		t.Fatal("two live allocations should not share an offset")
	}

	arena.Free(a)
	arena.Free(b)

	// after both are freed the arena should coalesce back to one big
	// free block and satisfy a near-full-size allocation.
	c, err := arena.Alloc(4000, 16)
	if err != nil {
		t.Fatalf("Alloc after Free should succeed via coalesced free space: %v", err)
	}
	if c.Offset != 0 {
		t.Fatalf("Offset = %d, want 0 after full coalesce", c.Offset)
	}
}

func TestBufferArenaExhaustion(t *testing.T) {
	dev := newTestDevice(t)
	arena, err := NewBufferArena(dev, "arena", 256, BufferUsageStorage)
	if err != nil {
		t.Fatalf("NewBufferArena: %v", err)
	}
	defer arena.Close()

	if _, err := arena.Alloc(512, 16); err == nil {
		t.Fatal("Alloc larger than arena size should fail")
	}
}
