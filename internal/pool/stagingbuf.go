package pool

import "sync"

// Staging buffers back CPU-side uploads (rhi.Buffer's byte-slice
// constructor stages through one of these before the copy command runs).
// Bucketed by power-of-two size so the hot upload path reuses backing
// arrays instead of allocating a fresh one per call, the same tradeoff the
// original queue-runner buffer pool made for I/O buffers.
const (
	stagingSize64k  = 64 * 1024
	stagingSize256k = 256 * 1024
	stagingSize1m   = 1024 * 1024
	stagingSize4m   = 4 * 1024 * 1024
)

var stagingPools = struct {
	p64k, p256k, p1m, p4m sync.Pool
}{
	p64k:  sync.Pool{New: func() any { b := make([]byte, stagingSize64k); return &b }},
	p256k: sync.Pool{New: func() any { b := make([]byte, stagingSize256k); return &b }},
	p1m:   sync.Pool{New: func() any { b := make([]byte, stagingSize1m); return &b }},
	p4m:   sync.Pool{New: func() any { b := make([]byte, stagingSize4m); return &b }},
}

// GetStagingBuffer returns a pooled byte slice of at least size bytes.
// Callers must call PutStagingBuffer when the staging upload's timeline
// callback fires and the bytes are no longer needed.
func GetStagingBuffer(size int) []byte {
	switch {
	case size <= stagingSize64k:
		return (*stagingPools.p64k.Get().(*[]byte))[:size]
	case size <= stagingSize256k:
		return (*stagingPools.p256k.Get().(*[]byte))[:size]
	case size <= stagingSize1m:
		return (*stagingPools.p1m.Get().(*[]byte))[:size]
	case size <= stagingSize4m:
		return (*stagingPools.p4m.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// PutStagingBuffer returns buf to the bucket matching its capacity. Buffers
// with a non-standard capacity (oversized uploads) are left for the
// collector.
func PutStagingBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case stagingSize64k:
		stagingPools.p64k.Put(&buf)
	case stagingSize256k:
		stagingPools.p256k.Put(&buf)
	case stagingSize1m:
		stagingPools.p1m.Put(&buf)
	case stagingSize4m:
		stagingPools.p4m.Put(&buf)
	}
}
