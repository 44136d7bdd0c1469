package megabuffer

import "testing"

func TestAllocateFirstFit(t *testing.T) {
	ra := newRangeAllocator(1024)

	a, ok := ra.allocate(100, 1)
	if !ok {
		t.Fatal("allocate(100) failed on empty allocator")
	}
	b, ok := ra.allocate(200, 1)
	if !ok {
		t.Fatal("allocate(200) failed")
	}

	if a.Start != 0 || a.Size != 100 {
		t.Errorf("first allocation:\nhave %v\nwant [0,100)", a)
	}
	if b.Start != 100 || b.Size != 200 {
		t.Errorf("second allocation:\nhave %v\nwant [100,300)", b)
	}
	if free := ra.freeBytes(); free != 1024-300 {
		t.Errorf("freeBytes() = %d, want %d", free, 1024-300)
	}
}

func TestAllocateAlignment(t *testing.T) {
	ra := newRangeAllocator(1024)

	if _, ok := ra.allocate(3, 1); !ok {
		t.Fatal("allocate(3) failed")
	}
	r, ok := ra.allocate(8, 4)
	if !ok {
		t.Fatal("aligned allocate(8, 4) failed")
	}
	if r.Start%4 != 0 {
		t.Errorf("aligned allocation start = %d, want multiple of 4", r.Start)
	}
	if r.Start != 4 {
		t.Errorf("aligned allocation start = %d, want 4", r.Start)
	}
}

func TestAllocateReusesFreedGap(t *testing.T) {
	ra := newRangeAllocator(1024)

	a, _ := ra.allocate(128, 1)
	if _, ok := ra.allocate(128, 1); !ok {
		t.Fatal("allocate(128) failed")
	}
	ra.release(a)

	r, ok := ra.allocate(64, 1)
	if !ok {
		t.Fatal("allocate(64) after free failed")
	}
	if r.Start != a.Start {
		t.Errorf("reused allocation start = %d, want freed offset %d", r.Start, a.Start)
	}
}

func TestReleaseCoalesces(t *testing.T) {
	ra := newRangeAllocator(1024)

	a, _ := ra.allocate(100, 1)
	b, _ := ra.allocate(100, 1)
	c, _ := ra.allocate(100, 1)

	// Free out of order so the middle release has to merge both neighbors.
	ra.release(a)
	ra.release(c)
	ra.release(b)

	if free := ra.freeBytes(); free != 1024 {
		t.Errorf("freeBytes() after releasing all = %d, want 1024", free)
	}
	if len(ra.free) != 1 {
		t.Errorf("free span count = %d, want 1 after coalescing", len(ra.free))
	}

	r, ok := ra.allocate(1024, 1)
	if !ok || r.Start != 0 {
		t.Errorf("full-capacity allocation after coalesce:\nhave %v, %v\nwant [0,1024), true", r, ok)
	}
}

func TestReleaseDoubleFreePanics(t *testing.T) {
	ra := newRangeAllocator(1024)
	r, _ := ra.allocate(100, 1)
	ra.release(r)

	defer func() {
		if recover() == nil {
			t.Fatal("double free did not panic")
		}
	}()
	ra.release(r)
}

func TestReleasePartialOverlapPanics(t *testing.T) {
	ra := newRangeAllocator(1024)
	r, _ := ra.allocate(100, 1)
	ra.release(r)

	defer func() {
		if recover() == nil {
			t.Fatal("overlapping release did not panic")
		}
	}()
	ra.release(Range{Start: 50, Size: 100})
}

func TestAllocateExhausted(t *testing.T) {
	ra := newRangeAllocator(256)
	if _, ok := ra.allocate(200, 1); !ok {
		t.Fatal("allocate(200) failed")
	}
	if _, ok := ra.allocate(100, 1); ok {
		t.Error("allocate(100) succeeded with only 56 bytes free")
	}
}

func TestGrowExtendsTail(t *testing.T) {
	ra := newRangeAllocator(256)
	if _, ok := ra.allocate(256, 1); !ok {
		t.Fatal("allocate(256) failed")
	}

	ra.grow(1024)

	r, ok := ra.allocate(512, 1)
	if !ok {
		t.Fatal("allocate(512) after grow failed")
	}
	if r.Start != 256 {
		t.Errorf("post-grow allocation start = %d, want 256", r.Start)
	}
}

func TestGrowCoalescesWithFreeTail(t *testing.T) {
	ra := newRangeAllocator(256)
	if _, ok := ra.allocate(128, 1); !ok {
		t.Fatal("allocate(128) failed")
	}
	b, ok := ra.allocate(128, 1)
	if !ok {
		t.Fatal("allocate(128) failed")
	}
	ra.release(b)

	ra.grow(512)

	// The freed tail [128,256) and the grown span [256,512) must merge so a
	// 384-byte request fits contiguously.
	r, ok := ra.allocate(384, 1)
	if !ok {
		t.Fatal("allocate(384) spanning old tail and grown bytes failed")
	}
	if r.Start != 128 {
		t.Errorf("spanning allocation start = %d, want 128", r.Start)
	}
}

func BenchmarkAllocateRelease(b *testing.B) {
	ra := newRangeAllocator(1 << 24)
	for i := 0; i < b.N; i++ {
		r, ok := ra.allocate(256, 4)
		if !ok {
			b.Fatal("allocate(256) failed")
		}
		ra.release(r)
	}
}

func BenchmarkAllocateFragmented(b *testing.B) {
	ra := newRangeAllocator(1 << 24)

	// Leave every other block live so allocations walk a fragmented free list.
	for i := 0; i < 1024; i++ {
		r, ok := ra.allocate(1024, 1)
		if !ok {
			b.Fatal("allocate(1024) during setup failed")
		}
		if i%2 == 1 {
			ra.release(r)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, ok := ra.allocate(512, 4)
		if !ok {
			b.Fatal("allocate(512) failed")
		}
		ra.release(r)
	}
}
