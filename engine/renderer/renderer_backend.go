package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; higher values (8, 16) are adapter-dependent and may not be available.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA8x MSAASampleCount = 8

	// MSAA16x enables 16× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA16x MSAASampleCount = 16
)

// VertexSlice addresses one vertex attribute stream inside a shared buffer.
// The geometry megabuffer hands out these slices, one per attribute slot.
type VertexSlice struct {
	Buffer *wgpu.Buffer
	Offset uint64
	Size   uint64
}

// IndexSlice addresses an index stream inside a shared buffer.
type IndexSlice struct {
	Buffer *wgpu.Buffer
	Offset uint64
	Size   uint64
	Format wgpu.IndexFormat
}

// BindGroupRef is a bind group to set on a pass, with optional dynamic
// offsets for bindings declared with HasDynamicOffset.
type BindGroupRef struct {
	Group          *wgpu.BindGroup
	DynamicOffsets []uint32
}

// Draw describes one instanced draw command. Vertices are bound in slot
// order; Index is nil for non-indexed meshes, in which case First and Count
// address vertices instead of indices. FirstInstance selects where in the
// locals storage buffer the instances of this draw begin.
type Draw struct {
	Pipeline      *wgpu.RenderPipeline
	BindGroups    []BindGroupRef
	Vertices      []VertexSlice
	Index         *IndexSlice
	First         uint32
	Count         uint32
	InstanceCount uint32
	FirstInstance uint32
}

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
