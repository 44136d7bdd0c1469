package megabuffer

// The megabuffer drives the GPU through the narrow capability set below
// rather than a concrete API binding. Production code wraps a WebGPU device
// with the adapters in wgpu.go; tests substitute in-memory fakes so
// allocation and growth semantics run without a GPU.

// Device creates raw GPU buffers.
type Device interface {
	// CreateBuffer allocates a GPU buffer of the given size in bytes.
	//
	// Parameters:
	//   - label: debug label for the buffer
	//   - size: buffer size in bytes
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: device failure, typically out-of-memory
	CreateBuffer(label string, size uint64) (Buffer, error)
}

// Buffer is a GPU buffer owned by the megabuffer.
type Buffer interface {
	// Size returns the buffer capacity in bytes.
	Size() uint64

	// Release frees the GPU buffer. Work already recorded against the buffer
	// keeps it alive until the queue has executed it.
	Release()
}

// Queue uploads bytes into a buffer at an offset.
type Queue interface {
	// WriteBuffer schedules a write of data into buf starting at offset.
	//
	// Parameters:
	//   - buf: destination buffer
	//   - offset: destination byte offset
	//   - data: source bytes
	WriteBuffer(buf Buffer, offset uint64, data []byte)
}

// Encoder records buffer-to-buffer copies into the caller's command stream.
// Growth copies are recorded here so they execute in submission order with
// the rest of the frame's commands.
type Encoder interface {
	// CopyBufferToBuffer records a copy of size bytes from src to dst.
	//
	// Parameters:
	//   - src: source buffer
	//   - srcOffset: source byte offset
	//   - dst: destination buffer
	//   - dstOffset: destination byte offset
	//   - size: number of bytes to copy
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64)
}
