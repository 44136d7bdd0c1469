// Package megabuffer provides a single growable GPU buffer that sub-allocates
// byte ranges for mesh attribute and index data. All geometry in a frame lives
// in one buffer, so the renderer binds it once and addresses meshes by offset.
package megabuffer

import (
	"fmt"

	"github.com/kestrelgfx/kestrel-go/common"
	"github.com/kestrelgfx/kestrel-go/engine/logger"
)

const (
	// InitialCapacity is the default backing buffer size, 32 MiB.
	InitialCapacity uint64 = 32 << 20

	// CopyAlign is the offset alignment required for buffer regions consumed
	// as index data. WebGPU buffer-to-buffer copies share the same 4-byte
	// alignment rule, which keeps grown contents copyable wholesale.
	CopyAlign uint64 = 4
)

// Megabuffer is a growable GPU buffer with sub-range allocation. Offsets
// handed out stay valid for the lifetime of the allocation; growth copies the
// existing contents into a larger buffer at identical offsets, so the buffer
// only ever gains address space at the tail.
//
// The megabuffer is owned by the render thread. Allocation, growth and
// release happen between frames or while recording a frame, never
// concurrently.
type Megabuffer interface {
	// Allocate reserves size bytes and returns their range. When the free
	// ranges cannot satisfy the request the backing buffer grows to the next
	// power of two that fits, recording the content copy into enc.
	//
	// Parameters:
	//   - enc: command encoder that receives the growth copy, if any
	//   - size: number of bytes to reserve
	//
	// Returns:
	//   - Range: the reserved byte range; empty when size is 0
	Allocate(enc Encoder, size uint64) Range

	// AllocateAligned reserves size bytes starting at an offset aligned to
	// align bytes. align must be a power of two.
	//
	// Parameters:
	//   - enc: command encoder that receives the growth copy, if any
	//   - size: number of bytes to reserve
	//   - align: required start-offset alignment in bytes
	//
	// Returns:
	//   - Range: the reserved byte range; empty when size is 0
	AllocateAligned(enc Encoder, size, align uint64) Range

	// Free returns a previously allocated range to the free list. Freeing a
	// range that is already free panics.
	//
	// Parameters:
	//   - r: the range to release
	Free(r Range)

	// Write schedules an upload of data into the allocated range r. The data
	// must fit within the range.
	//
	// Parameters:
	//   - r: destination range
	//   - data: bytes to upload, at most r.Size long
	Write(r Range, data []byte)

	// Buffer returns the current backing buffer. The returned value changes
	// after growth; callers holding GPU bindings should compare Generation
	// to detect that.
	Buffer() Buffer

	// Capacity returns the backing buffer size in bytes.
	Capacity() uint64

	// FreeBytes returns the total number of unallocated bytes.
	FreeBytes() uint64

	// Generation returns a counter that increments every time the backing
	// buffer is replaced by growth.
	Generation() uint64

	// Release frees the backing GPU buffer. The megabuffer must not be used
	// afterwards.
	Release()
}

type megabuffer struct {
	device Device
	queue  Queue
	label  string

	buffer     Buffer
	alloc      *rangeAllocator
	generation uint64
}

var _ Megabuffer = &megabuffer{}

func (m *megabuffer) Allocate(enc Encoder, size uint64) Range {
	return m.AllocateAligned(enc, size, 1)
}

func (m *megabuffer) AllocateAligned(enc Encoder, size, align uint64) Range {
	if size == 0 {
		return Range{}
	}
	if align == 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("megabuffer: alignment %d is not a power of two", align))
	}

	if r, ok := m.alloc.allocate(size, align); ok {
		return r
	}

	// Worst case an aligned fit needs align-1 spare bytes ahead of the data.
	m.grow(enc, size+align-1)

	r, ok := m.alloc.allocate(size, align)
	if !ok {
		panic(fmt.Sprintf("megabuffer: allocation of %d bytes failed after growth to %d", size, m.alloc.capacity))
	}
	return r
}

// grow replaces the backing buffer with one sized to the next power of two
// that fits the current capacity plus desired, and records a copy of the live
// contents into enc. Offsets are preserved, so existing allocations remain
// valid without relocation.
func (m *megabuffer) grow(enc Encoder, desired uint64) {
	oldCapacity := m.alloc.capacity
	newCapacity := common.NextPow2(oldCapacity + desired)

	newBuffer, err := m.device.CreateBuffer(m.label, newCapacity)
	if err != nil {
		panic(fmt.Sprintf("megabuffer: failed to grow %q from %d to %d bytes: %v", m.label, oldCapacity, newCapacity, err))
	}

	enc.CopyBufferToBuffer(m.buffer, 0, newBuffer, 0, oldCapacity)

	// The recorded copy keeps the old buffer alive until the queue executes
	// it, so it is safe to drop our reference immediately.
	m.buffer.Release()
	m.buffer = newBuffer
	m.alloc.grow(newCapacity)
	m.generation++

	logger.Debugf("megabuffer %q grown from %d to %d bytes (generation %d)", m.label, oldCapacity, newCapacity, m.generation)
}

func (m *megabuffer) Free(r Range) {
	m.alloc.release(r)
}

func (m *megabuffer) Write(r Range, data []byte) {
	if len(data) == 0 {
		return
	}
	if uint64(len(data)) > r.Size {
		panic(fmt.Sprintf("megabuffer: write of %d bytes exceeds range %v", len(data), r))
	}
	m.queue.WriteBuffer(m.buffer, r.Start, data)
}

func (m *megabuffer) Buffer() Buffer {
	return m.buffer
}

func (m *megabuffer) Capacity() uint64 {
	return m.alloc.capacity
}

func (m *megabuffer) FreeBytes() uint64 {
	return m.alloc.freeBytes()
}

func (m *megabuffer) Generation() uint64 {
	return m.generation
}

func (m *megabuffer) Release() {
	if m.buffer != nil {
		m.buffer.Release()
		m.buffer = nil
	}
	m.alloc = newRangeAllocator(0)
}
