package megabuffer

import "fmt"

// MegabufferBuilderOption is a functional option for configuring a Megabuffer.
// Use the With* functions to create options.
type MegabufferBuilderOption func(m *megabuffer)

// WithInitialCapacity sets the initial backing buffer size in bytes. Values
// below one page of copy alignment are rounded up. Default is
// InitialCapacity (32 MiB).
//
// Parameters:
//   - capacity: initial buffer size in bytes
//
// Returns:
//   - MegabufferBuilderOption: option function to apply
func WithInitialCapacity(capacity uint64) MegabufferBuilderOption {
	return func(m *megabuffer) {
		if capacity < CopyAlign {
			capacity = CopyAlign
		}
		m.alloc = newRangeAllocator(capacity)
	}
}

// WithLabel sets the debug label attached to the backing GPU buffer.
// Default is "megabuffer".
//
// Parameters:
//   - label: debug label for the buffer
//
// Returns:
//   - MegabufferBuilderOption: option function to apply
func WithLabel(label string) MegabufferBuilderOption {
	return func(m *megabuffer) {
		m.label = label
	}
}

// NewMegabuffer creates a megabuffer backed by a freshly allocated GPU
// buffer. Failure to allocate the initial buffer is fatal and panics.
//
// Parameters:
//   - device: device used to create the backing buffer, now and on growth
//   - queue: queue used for content uploads
//   - options: optional configuration
//
// Returns:
//   - Megabuffer: the initialized megabuffer
func NewMegabuffer(device Device, queue Queue, options ...MegabufferBuilderOption) Megabuffer {
	if device == nil || queue == nil {
		panic("megabuffer: device and queue are required")
	}
	m := &megabuffer{
		device: device,
		queue:  queue,
		label:  "megabuffer",
		alloc:  newRangeAllocator(InitialCapacity),
	}
	for _, opt := range options {
		opt(m)
	}

	buf, err := device.CreateBuffer(m.label, m.alloc.capacity)
	if err != nil {
		panic(fmt.Sprintf("megabuffer: failed to create initial %d byte buffer %q: %v", m.alloc.capacity, m.label, err))
	}
	m.buffer = buf
	return m
}
