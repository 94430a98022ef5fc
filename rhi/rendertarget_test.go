package rhi

import "testing"

func TestRenderImageSetClearRecordsAndReportsExtent(t *testing.T) {
	dev := newTestDevice(t)
	target, err := NewRenderImageSet(dev, "offscreen", 4, 4, 0)
	if err != nil {
		t.Fatalf("NewRenderImageSet: %v", err)
	}
	defer target.Close()

	pool, err := NewCommandPoolContext(dev, "pool", 0, true)
	if err != nil {
		t.Fatalf("NewCommandPoolContext: %v", err)
	}
	defer pool.Close()

	cmd, end, err := target.Begin(pool)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	target.Clear(cmd, ClearColor{1, 0, 0, 1})
	if err := end(); err != nil {
		t.Fatalf("end: %v", err)
	}

	w, h := target.Extent()
	if w != 4 || h != 4 {
		t.Fatalf("Extent() = (%d,%d), want (4,4)", w, h)
	}
}

func TestRenderImageSetBlitRecordsBetweenTargets(t *testing.T) {
	dev := newTestDevice(t)
	src, err := NewRenderImageSet(dev, "src", 4, 4, 0)
	if err != nil {
		t.Fatalf("NewRenderImageSet(src): %v", err)
	}
	defer src.Close()
	dst, err := NewRenderImageSet(dev, "dst", 4, 4, 0)
	if err != nil {
		t.Fatalf("NewRenderImageSet(dst): %v", err)
	}
	defer dst.Close()

	pool, err := NewCommandPoolContext(dev, "pool", 0, true)
	if err != nil {
		t.Fatalf("NewCommandPoolContext: %v", err)
	}
	defer pool.Close()

	cmd, end, err := src.Begin(pool)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	src.Clear(cmd, ClearColor{0, 1, 0, 1})
	src.Blit(cmd, dst)
	if err := end(); err != nil {
		t.Fatalf("end: %v", err)
	}
}

func TestRenderImageSetTransitionTracksLayout(t *testing.T) {
	dev := newTestDevice(t)
	target, err := NewRenderImageSet(dev, "offscreen", 2, 2, 0)
	if err != nil {
		t.Fatalf("NewRenderImageSet: %v", err)
	}
	defer target.Close()

	pool, err := NewCommandPoolContext(dev, "pool", 0, true)
	if err != nil {
		t.Fatalf("NewCommandPoolContext: %v", err)
	}
	defer pool.Close()

	cmd, end, err := target.Begin(pool)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	target.Transition(cmd, ImageLayoutTransferSrc)
	if err := end(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if target.layout != ImageLayoutTransferSrc {
		t.Fatalf("layout = %d, want %d", target.layout, ImageLayoutTransferSrc)
	}
}
