package megabuffer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultUsage is the buffer usage for geometry storage. CopySrc and CopyDst
// are required so growth can copy the old contents into the new buffer.
const DefaultUsage = wgpu.BufferUsageVertex | wgpu.BufferUsageIndex |
	wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

type wgpuDevice struct {
	device *wgpu.Device
	usage  wgpu.BufferUsage
}

type wgpuBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

type wgpuQueue struct {
	queue *wgpu.Queue
}

type wgpuEncoder struct {
	encoder *wgpu.CommandEncoder
}

// WrapDevice adapts a WebGPU device for megabuffer use. Buffers it creates
// carry the given usage flags.
//
// Parameters:
//   - device: the WebGPU device
//   - usage: usage flags for created buffers, typically DefaultUsage
//
// Returns:
//   - Device: the adapted device
func WrapDevice(device *wgpu.Device, usage wgpu.BufferUsage) Device {
	return &wgpuDevice{device: device, usage: usage}
}

// WrapQueue adapts a WebGPU queue for megabuffer use.
//
// Parameters:
//   - queue: the WebGPU queue
//
// Returns:
//   - Queue: the adapted queue
func WrapQueue(queue *wgpu.Queue) Queue {
	return &wgpuQueue{queue: queue}
}

// WrapEncoder adapts a WebGPU command encoder so growth copies can be
// recorded into it.
//
// Parameters:
//   - encoder: the frame's command encoder
//
// Returns:
//   - Encoder: the adapted encoder
func WrapEncoder(encoder *wgpu.CommandEncoder) Encoder {
	return &wgpuEncoder{encoder: encoder}
}

// NativeBuffer unwraps a Buffer created through WrapDevice back to the
// underlying WebGPU buffer, for binding as vertex or index data.
//
// Parameters:
//   - buf: a buffer obtained from Megabuffer.Buffer
//
// Returns:
//   - *wgpu.Buffer: the underlying WebGPU buffer
func NativeBuffer(buf Buffer) *wgpu.Buffer {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		panic(fmt.Sprintf("megabuffer: buffer %T is not backed by WebGPU", buf))
	}
	return wb.buffer
}

func (d *wgpuDevice) CreateBuffer(label string, size uint64) (Buffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            d.usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{buffer: buf, size: size}, nil
}

func (b *wgpuBuffer) Size() uint64 {
	return b.size
}

func (b *wgpuBuffer) Release() {
	b.buffer.Release()
}

func (q *wgpuQueue) WriteBuffer(buf Buffer, offset uint64, data []byte) {
	q.queue.WriteBuffer(NativeBuffer(buf), offset, data)
}

func (e *wgpuEncoder) CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) {
	if err := e.encoder.CopyBufferToBuffer(NativeBuffer(src), srcOffset, NativeBuffer(dst), dstOffset, size); err != nil {
		panic(fmt.Sprintf("megabuffer: failed to record growth copy of %d bytes: %v", size, err))
	}
}
