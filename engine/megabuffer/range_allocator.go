package megabuffer

import (
	"fmt"
	"sort"
)

// Range describes a byte span inside the megabuffer's backing storage.
type Range struct {
	// Start is the byte offset of the span.
	Start uint64
	// Size is the span length in bytes.
	Size uint64
}

// End returns the first byte offset past the range.
func (r Range) End() uint64 {
	return r.Start + r.Size
}

// IsEmpty reports whether the range covers no bytes.
func (r Range) IsEmpty() bool {
	return r.Size == 0
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End())
}

// rangeAllocator hands out non-overlapping byte ranges from a linear address
// space. Free spans are kept sorted by start offset and adjacent spans are
// merged on free, so the only fragmentation is what the allocation pattern
// itself forces.
type rangeAllocator struct {
	capacity uint64
	free     []Range
}

func newRangeAllocator(capacity uint64) *rangeAllocator {
	ra := &rangeAllocator{capacity: capacity}
	if capacity > 0 {
		ra.free = append(ra.free, Range{Start: 0, Size: capacity})
	}
	return ra
}

// allocate carves size bytes out of the first free span that fits, with the
// start offset aligned to align bytes. align must be a power of two; pass 1
// for unaligned allocations. Returns false when no span fits.
func (ra *rangeAllocator) allocate(size, align uint64) (Range, bool) {
	if size == 0 {
		return Range{}, false
	}
	for i, span := range ra.free {
		start := (span.Start + align - 1) &^ (align - 1)
		pad := start - span.Start
		if span.Size < pad+size {
			continue
		}
		alloc := Range{Start: start, Size: size}
		ra.carve(i, span, alloc)
		return alloc, true
	}
	return Range{}, false
}

// carve removes alloc from the free span at index i, keeping any leading
// alignment padding and trailing remainder on the free list.
func (ra *rangeAllocator) carve(i int, span, alloc Range) {
	lead := Range{Start: span.Start, Size: alloc.Start - span.Start}
	tail := Range{Start: alloc.End(), Size: span.End() - alloc.End()}

	switch {
	case lead.Size > 0 && tail.Size > 0:
		ra.free[i] = lead
		ra.free = append(ra.free, Range{})
		copy(ra.free[i+2:], ra.free[i+1:])
		ra.free[i+1] = tail
	case lead.Size > 0:
		ra.free[i] = lead
	case tail.Size > 0:
		ra.free[i] = tail
	default:
		ra.free = append(ra.free[:i], ra.free[i+1:]...)
	}
}

// release returns r to the free list, merging with adjacent free spans.
// Releasing bytes that are already free is a caller bug and panics.
func (ra *rangeAllocator) release(r Range) {
	if r.IsEmpty() {
		return
	}
	if r.End() > ra.capacity {
		panic(fmt.Sprintf("megabuffer: release of range %v beyond capacity %d", r, ra.capacity))
	}

	i := sort.Search(len(ra.free), func(i int) bool {
		return ra.free[i].Start >= r.Start
	})
	if i < len(ra.free) && ra.free[i].Start < r.End() {
		panic(fmt.Sprintf("megabuffer: double free, range %v overlaps free span %v", r, ra.free[i]))
	}
	if i > 0 && ra.free[i-1].End() > r.Start {
		panic(fmt.Sprintf("megabuffer: double free, range %v overlaps free span %v", r, ra.free[i-1]))
	}

	mergePrev := i > 0 && ra.free[i-1].End() == r.Start
	mergeNext := i < len(ra.free) && ra.free[i].Start == r.End()

	switch {
	case mergePrev && mergeNext:
		ra.free[i-1].Size += r.Size + ra.free[i].Size
		ra.free = append(ra.free[:i], ra.free[i+1:]...)
	case mergePrev:
		ra.free[i-1].Size += r.Size
	case mergeNext:
		ra.free[i].Start = r.Start
		ra.free[i].Size += r.Size
	default:
		ra.free = append(ra.free, Range{})
		copy(ra.free[i+1:], ra.free[i:])
		ra.free[i] = r
	}
}

// grow extends the address space to newCapacity, adding the fresh tail bytes
// to the free list.
func (ra *rangeAllocator) grow(newCapacity uint64) {
	if newCapacity <= ra.capacity {
		panic(fmt.Sprintf("megabuffer: grow from %d to %d is not an increase", ra.capacity, newCapacity))
	}
	added := Range{Start: ra.capacity, Size: newCapacity - ra.capacity}
	ra.capacity = newCapacity
	ra.release(added)
}

// freeBytes returns the total number of unallocated bytes.
func (ra *rangeAllocator) freeBytes() uint64 {
	var total uint64
	for _, span := range ra.free {
		total += span.Size
	}
	return total
}
