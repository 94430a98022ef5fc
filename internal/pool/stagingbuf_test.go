package pool

import "testing"

func TestStagingBufferRoundTrip(t *testing.T) {
	buf := GetStagingBuffer(1024)
	if len(buf) != 1024 {
		t.Fatalf("expected length 1024, got %d", len(buf))
	}
	if cap(buf) != stagingSize64k {
		t.Fatalf("expected capacity %d, got %d", stagingSize64k, cap(buf))
	}
	buf[0] = 0xAB
	PutStagingBuffer(buf)

	again := GetStagingBuffer(stagingSize64k)
	if len(again) != stagingSize64k {
		t.Fatalf("expected full bucket size, got %d", len(again))
	}
}

func TestStagingBufferOversizeBypassesPool(t *testing.T) {
	buf := GetStagingBuffer(8 * 1024 * 1024)
	if len(buf) != 8*1024*1024 {
		t.Fatalf("unexpected length %d", len(buf))
	}
	PutStagingBuffer(buf) // must not panic on a non-bucket capacity
}
