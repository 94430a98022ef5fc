package vkb

import (
	"fmt"
	"sync"
)

// Allocation is a sub-range of a backing device-memory block.
type Allocation struct {
	Memory Handle
	Offset uint64
	Size   uint64
}

type freeBlock struct {
	offset, size uint64
}

// SubAllocator hands out byte ranges from a single fixed-size backing
// allocation using a best-fit free list, avoiding a CreateBuffer-sized
// vkAllocateMemory call per GPU object. There is no VMA-equivalent Go
// binding in reach of this module, so this stands in for it directly.
type SubAllocator struct {
	mu     sync.Mutex
	memory Handle
	size   uint64
	free   []freeBlock
}

// NewSubAllocator creates an allocator over a backing block of the given
// size, identified by memory (a Handle already bound to real device
// memory by the caller).
func NewSubAllocator(memory Handle, size uint64) *SubAllocator {
	return &SubAllocator{
		memory: memory,
		size:   size,
		free:   []freeBlock{{offset: 0, size: size}},
	}
}

// Alloc reserves size bytes aligned to alignment, picking the smallest
// free block that fits (best-fit).
func (a *SubAllocator) Alloc(size, alignment uint64) (Allocation, error) {
	if alignment == 0 {
		alignment = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	bestIdx := -1
	var bestWaste uint64
	var bestOffset uint64
	for i, b := range a.free {
		aligned := alignUp(b.offset, alignment)
		pad := aligned - b.offset
		if pad+size > b.size {
			continue
		}
		waste := b.size - size - pad
		if bestIdx == -1 || waste < bestWaste {
			bestIdx, bestWaste, bestOffset = i, waste, aligned
		}
	}
	if bestIdx == -1 {
		return Allocation{}, fmt.Errorf("vkb: sub-allocator exhausted: no block fits %d bytes (alignment %d)", size, alignment)
	}

	b := a.free[bestIdx]
	pad := bestOffset - b.offset
	a.free = append(a.free[:bestIdx], a.free[bestIdx+1:]...)
	if pad > 0 {
		a.free = append(a.free, freeBlock{offset: b.offset, size: pad})
	}
	tailOffset := bestOffset + size
	tailSize := b.offset + b.size - tailOffset
	if tailSize > 0 {
		a.free = append(a.free, freeBlock{offset: tailOffset, size: tailSize})
	}

	return Allocation{Memory: a.memory, Offset: bestOffset, Size: size}, nil
}

// Free returns alloc's range to the free list, coalescing with adjacent
// free blocks.
func (a *SubAllocator) Free(alloc Allocation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.free = append(a.free, freeBlock{offset: alloc.Offset, size: alloc.Size})
	a.coalesce()
}

func (a *SubAllocator) coalesce() {
	if len(a.free) < 2 {
		return
	}
	merged := true
	for merged {
		merged = false
		for i := 0; i < len(a.free); i++ {
			for j := i + 1; j < len(a.free); j++ {
				bi, bj := a.free[i], a.free[j]
				if bi.offset+bi.size == bj.offset {
					a.free[i].size += bj.size
					a.free = append(a.free[:j], a.free[j+1:]...)
					merged = true
					break
				}
				if bj.offset+bj.size == bi.offset {
					a.free[j].size += bi.size
					a.free = append(a.free[:i], a.free[i+1:]...)
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
	}
}

func alignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) &^ (alignment - 1)
}
