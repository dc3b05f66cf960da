package pmm

import "testing"

func TestAllocFirstFit(t *testing.T) {
	b := NewBitmap(4)
	for i := 0; i < 4; i++ {
		f := b.Alloc()
		if !f.IsValid() {
			t.Fatalf("alloc %d: expected a valid frame", i)
		}
		if int(f) != i {
			t.Fatalf("alloc %d: got frame %d, want %d", i, f, i)
		}
	}
	if f := b.Alloc(); f.IsValid() {
		t.Fatalf("alloc on exhausted bitmap: got %d, want NoFrame", f)
	}
}

func TestFreeAndReuse(t *testing.T) {
	b := NewBitmap(3)
	a0 := b.Alloc()
	a1 := b.Alloc()
	_ = b.Alloc()
	b.Free(a1)
	if got := b.FreeCount(); got != 1 {
		t.Fatalf("free count after one free: got %d, want 1", got)
	}
	reused := b.Alloc()
	if reused != a1 {
		t.Fatalf("expected reuse of freed frame %d, got %d", a1, reused)
	}
	if b.Used(a0) != true {
		t.Fatalf("frame %d should still be used", a0)
	}
}

func TestMarkUsedReservesWithoutAlloc(t *testing.T) {
	b := NewBitmap(4)
	b.MarkUsed(Frame(2))
	if !b.Used(Frame(2)) {
		t.Fatal("frame 2 should be marked used")
	}
	if got := b.FreeCount(); got != 3 {
		t.Fatalf("free count: got %d, want 3", got)
	}
	// Alloc must skip the reserved frame.
	for i := 0; i < 3; i++ {
		f := b.Alloc()
		if f == Frame(2) {
			t.Fatal("alloc returned a frame reserved by MarkUsed")
		}
	}
}

func TestDoubleFreeIsNoOp(t *testing.T) {
	b := NewBitmap(2)
	f := b.Alloc()
	b.Free(f)
	free := b.FreeCount()
	b.Free(f)
	if b.FreeCount() != free {
		t.Fatal("freeing an already-free frame changed the free count")
	}
}
