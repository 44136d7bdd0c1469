package megabuffer

import (
	"bytes"
	"errors"
	"testing"
)

type fakeBuffer struct {
	data     []byte
	released bool
}

func (b *fakeBuffer) Size() uint64 { return uint64(len(b.data)) }
func (b *fakeBuffer) Release()     { b.released = true }

type fakeDevice struct {
	created  []*fakeBuffer
	failNext bool
}

func (d *fakeDevice) CreateBuffer(label string, size uint64) (Buffer, error) {
	if d.failNext {
		d.failNext = false
		return nil, errors.New("out of device memory")
	}
	buf := &fakeBuffer{data: make([]byte, size)}
	d.created = append(d.created, buf)
	return buf, nil
}

type fakeQueue struct{}

func (fakeQueue) WriteBuffer(buf Buffer, offset uint64, data []byte) {
	copy(buf.(*fakeBuffer).data[offset:], data)
}

// fakeEncoder performs recorded copies immediately, which is sufficient
// because the megabuffer records the growth copy before dropping the old
// buffer.
type fakeEncoder struct {
	copies int
}

func (e *fakeEncoder) CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) {
	if src.(*fakeBuffer).released {
		panic("copy recorded against a released source buffer")
	}
	e.copies++
	copy(dst.(*fakeBuffer).data[dstOffset:dstOffset+size], src.(*fakeBuffer).data[srcOffset:srcOffset+size])
}

func newTestMegabuffer(t *testing.T, capacity uint64) (Megabuffer, *fakeDevice) {
	t.Helper()
	dev := &fakeDevice{}
	m := NewMegabuffer(dev, fakeQueue{}, WithInitialCapacity(capacity), WithLabel("test"))
	return m, dev
}

func pattern(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = seed + byte(i)
	}
	return data
}

func TestAllocationsDoNotOverlap(t *testing.T) {
	m, _ := newTestMegabuffer(t, 4096)
	enc := &fakeEncoder{}

	var ranges []Range
	for i := 0; i < 16; i++ {
		ranges = append(ranges, m.Allocate(enc, 100))
	}

	for i, a := range ranges {
		for j, b := range ranges {
			if i == j {
				continue
			}
			if a.Start < b.End() && b.Start < a.End() {
				t.Fatalf("ranges overlap: %v and %v", a, b)
			}
		}
	}
}

func TestGrowPreservesOffsetsAndContents(t *testing.T) {
	m, dev := newTestMegabuffer(t, 256)
	enc := &fakeEncoder{}

	first := m.Allocate(enc, 64)
	data := pattern(64, 7)
	m.Write(first, data)

	if enc.copies != 0 {
		t.Fatalf("copies before growth = %d, want 0", enc.copies)
	}

	// Does not fit in the remaining 192 bytes, so the buffer must grow.
	second := m.Allocate(enc, 512)

	if enc.copies != 1 {
		t.Errorf("growth copies = %d, want 1", enc.copies)
	}
	if first.Start != 0 || first.Size != 64 {
		t.Errorf("pre-growth range changed:\nhave %v\nwant [0,64)", first)
	}
	if second.IsEmpty() {
		t.Fatal("post-growth allocation is empty")
	}
	if m.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1 after one growth", m.Generation())
	}

	backing := m.Buffer().(*fakeBuffer)
	if got := backing.data[first.Start:first.End()]; !bytes.Equal(got, data) {
		t.Errorf("contents at preserved offset:\nhave %v\nwant %v", got[:8], data[:8])
	}
	if !dev.created[0].released {
		t.Error("old backing buffer was not released after growth")
	}
}

func TestGrowCapacityIsNextPowerOfTwo(t *testing.T) {
	m, _ := newTestMegabuffer(t, 256)
	enc := &fakeEncoder{}

	m.Allocate(enc, 700)

	// NextPow2(256 + 700) = 1024.
	if got := m.Capacity(); got != 1024 {
		t.Errorf("Capacity() after growth = %d, want 1024", got)
	}
}

func TestSmallAllocationsGrowPastInitialCapacity(t *testing.T) {
	const initial = 4096
	const chunk = 256

	m, _ := newTestMegabuffer(t, initial)
	enc := &fakeEncoder{}

	var ranges []Range
	for i := 0; i < 2*initial/chunk; i++ {
		r := m.Allocate(enc, chunk)
		m.Write(r, pattern(chunk, byte(i)))
		ranges = append(ranges, r)
	}

	if m.Capacity() <= initial {
		t.Fatalf("Capacity() = %d, want growth past %d", m.Capacity(), initial)
	}
	if c := m.Capacity(); c&(c-1) != 0 {
		t.Errorf("Capacity() = %d, want a power of two", c)
	}

	backing := m.Buffer().(*fakeBuffer)
	for i, r := range ranges {
		want := pattern(chunk, byte(i))
		if got := backing.data[r.Start:r.End()]; !bytes.Equal(got, want) {
			t.Fatalf("chunk %d at %v corrupted after growth", i, r)
		}
	}
}

func TestKibibyteChunksGrowPastDefaultCapacity(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates past the 32 MiB default capacity")
	}

	dev := &fakeDevice{}
	m := NewMegabuffer(dev, fakeQueue{})
	enc := &fakeEncoder{}

	const chunk = 1 << 10
	first := m.Allocate(enc, chunk)
	sentinel := pattern(chunk, 3)
	m.Write(first, sentinel)

	demand := uint64(chunk)
	for demand <= InitialCapacity {
		m.Allocate(enc, chunk)
		demand += chunk
	}

	if got := m.Capacity(); got < demand {
		t.Errorf("Capacity() = %d, want >= demand %d", got, demand)
	}
	if c := m.Capacity(); c&(c-1) != 0 {
		t.Errorf("Capacity() = %d, want a power of two", c)
	}
	if first.Start != 0 {
		t.Errorf("first range moved to %d, want offset 0", first.Start)
	}

	backing := m.Buffer().(*fakeBuffer)
	if got := backing.data[first.Start:first.End()]; !bytes.Equal(got, sentinel) {
		t.Error("first chunk's bytes changed across growth")
	}
}

func TestAllocateAlignedHonorsAlignment(t *testing.T) {
	m, _ := newTestMegabuffer(t, 4096)
	enc := &fakeEncoder{}

	m.Allocate(enc, 3)
	r := m.AllocateAligned(enc, 600, CopyAlign)

	if r.Start%CopyAlign != 0 {
		t.Errorf("aligned allocation start = %d, want multiple of %d", r.Start, CopyAlign)
	}
}

func TestFreeThenAllocateReusesSpace(t *testing.T) {
	m, _ := newTestMegabuffer(t, 1024)
	enc := &fakeEncoder{}

	a := m.Allocate(enc, 512)
	m.Allocate(enc, 256)
	m.Free(a)

	b := m.Allocate(enc, 512)
	if b.Start != a.Start {
		t.Errorf("reallocation start = %d, want freed offset %d", b.Start, a.Start)
	}
	if m.Generation() != 0 {
		t.Errorf("Generation() = %d, want 0 without growth", m.Generation())
	}
}

func TestZeroSizeAllocateIsEmpty(t *testing.T) {
	m, _ := newTestMegabuffer(t, 1024)
	enc := &fakeEncoder{}

	r := m.Allocate(enc, 0)
	if !r.IsEmpty() {
		t.Errorf("Allocate(0) = %v, want empty range", r)
	}
	if free := m.FreeBytes(); free != 1024 {
		t.Errorf("FreeBytes() after empty allocation = %d, want 1024", free)
	}
}

func TestWriteBeyondRangePanics(t *testing.T) {
	m, _ := newTestMegabuffer(t, 1024)
	enc := &fakeEncoder{}
	r := m.Allocate(enc, 16)

	defer func() {
		if recover() == nil {
			t.Fatal("oversized write did not panic")
		}
	}()
	m.Write(r, make([]byte, 17))
}

func TestGrowDeviceFailurePanics(t *testing.T) {
	m, dev := newTestMegabuffer(t, 256)
	enc := &fakeEncoder{}
	dev.failNext = true

	defer func() {
		if recover() == nil {
			t.Fatal("growth with failing device did not panic")
		}
	}()
	m.Allocate(enc, 512)
}

func TestDefaultInitialCapacity(t *testing.T) {
	dev := &fakeDevice{}
	m := NewMegabuffer(dev, fakeQueue{})

	if got := m.Capacity(); got != InitialCapacity {
		t.Errorf("Capacity() = %d, want %d", got, InitialCapacity)
	}
	if len(dev.created) != 1 || dev.created[0].Size() != InitialCapacity {
		t.Errorf("initial buffer size = %d, want %d", dev.created[0].Size(), InitialCapacity)
	}
}
