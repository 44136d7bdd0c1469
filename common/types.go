// package common contains plain data types shared across the engine. They are
// not interface-wrapped structs, just the common currency passed between the
// loader layer, the asset table, and the renderer.
package common

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// AttributeKind identifies a vertex attribute stream within a mesh.
type AttributeKind int

const (
	// AttributePosition is the vertex position stream (vec3<f32>).
	AttributePosition AttributeKind = iota
	// AttributeNormal is the vertex normal stream (vec3<f32>).
	AttributeNormal
	// AttributeTangent is the vertex tangent stream (vec4<f32>).
	AttributeTangent
	// AttributeTexCoord is the primary UV stream (vec2<f32>).
	AttributeTexCoord
	// AttributeColor is the vertex color stream (vec4<f32>).
	AttributeColor

	// AttributeKindCount is the number of defined attribute kinds.
	AttributeKindCount
)

// String returns the attribute kind name used in logs and debug labels.
func (k AttributeKind) String() string {
	switch k {
	case AttributePosition:
		return "position"
	case AttributeNormal:
		return "normal"
	case AttributeTangent:
		return "tangent"
	case AttributeTexCoord:
		return "texcoord"
	case AttributeColor:
		return "color"
	default:
		return "unknown"
	}
}

// Stride returns the per-vertex byte size of the attribute kind's stream.
func (k AttributeKind) Stride() uint64 {
	switch k {
	case AttributePosition, AttributeNormal:
		return 12 // vec3<f32>
	case AttributeTangent, AttributeColor:
		return 16 // vec4<f32>
	case AttributeTexCoord:
		return 8 // vec2<f32>
	default:
		return 0
	}
}

// Topology identifies how a mesh's vertices assemble into primitives.
type Topology int

const (
	// TopologyTriangleList assembles every three vertices into a triangle.
	TopologyTriangleList Topology = iota
	// TopologyTriangleStrip assembles a triangle from each vertex and its two predecessors.
	TopologyTriangleStrip
	// TopologyLineList assembles every two vertices into a line segment.
	TopologyLineList
	// TopologyLineStrip assembles a line from each vertex and its predecessor.
	TopologyLineStrip
	// TopologyPointList renders each vertex as a point.
	TopologyPointList
)

// IndexFormat identifies the width of mesh index elements.
type IndexFormat int

const (
	// IndexFormatUint16 is a 2-byte index element.
	IndexFormatUint16 IndexFormat = iota
	// IndexFormatUint32 is a 4-byte index element.
	IndexFormatUint32
)

// Bytes returns the size of one index element in bytes.
//
// Returns:
//   - int: 2 for IndexFormatUint16, 4 for IndexFormatUint32
func (f IndexFormat) Bytes() int {
	if f == IndexFormatUint16 {
		return 2
	}
	return 4
}

// VertexAttribute is one attribute stream of a mesh pending upload: the kind
// tag plus the raw bytes for every vertex in the mesh, tightly packed.
type VertexAttribute struct {
	// Kind tags which attribute stream this is.
	Kind AttributeKind
	// Data holds len(vertices) * attribute-size bytes, tightly packed.
	Data []byte
}

// SubMeshData describes one draw range within a mesh and its optional material
// binding.
type SubMeshData struct {
	// First is the first index (indexed meshes) or first vertex (non-indexed)
	// of the range.
	First uint32
	// Count is the number of indices or vertices in the range.
	Count uint32
	// Material is the index into the mesh's material list, or -1 when the
	// sub-mesh carries no material of its own.
	Material int32
}

// MeshData is the CPU-side mesh contract supplied by the loader layer. The
// engine consumes finished in-memory meshes only; it never parses files. Each
// attribute stream must describe the same vertex count.
type MeshData struct {
	// Topology selects primitive assembly for every sub-mesh of this mesh.
	Topology Topology
	// Attributes holds one entry per attribute stream present.
	Attributes []VertexAttribute
	// VertexCount is the number of vertices in every attribute stream.
	VertexCount uint32
	// Indices holds the raw index bytes, or nil for non-indexed meshes.
	Indices []byte
	// IndexFormat is the element width of Indices. Ignored when Indices is nil.
	IndexFormat IndexFormat
	// IndexCount is the number of index elements in Indices.
	IndexCount uint32
	// SubMeshes partitions the mesh into draw ranges. A mesh with no explicit
	// sub-meshes is treated as a single range covering everything.
	SubMeshes []SubMeshData
}

// MaterialData is the CPU-side material record supplied by the loader layer.
type MaterialData struct {
	// Name is the material identifier used in logs.
	Name string
	// BaseColor is the albedo RGBA color.
	BaseColor [4]float32
	// Metallic factor (0.0 = dielectric, 1.0 = metal).
	Metallic float32
	// Roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness float32
	// DiffuseTexture is the optional albedo texture, already decoded to RGBA.
	DiffuseTexture *TextureData
}

// TextureData holds decoded RGBA pixel data pending GPU upload. Decoding
// image files is the loader layer's job; the engine only ever sees pixels.
type TextureData struct {
	// Name is an identifier for this texture used in debug labels.
	Name string
	// Pixels is the RGBA pixel data, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the texture width in pixels.
	Width uint32
	// Height is the texture height in pixels.
	Height uint32
	// Sampler optionally overrides the default linear/repeat sampler.
	Sampler *SamplerData
}

// SamplerData holds the configuration for a sampler pending GPU creation.
type SamplerData struct {
	// AddressModeU, AddressModeV, AddressModeW specify texture coordinate
	// addressing outside [0, 1] in each dimension.
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify magnification and minification filtering.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies mipmap level filtering.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp bound the level of detail range.
	LodMinClamp, LodMaxClamp float32
	// Compare is the comparison function for comparison samplers (shadow maps).
	Compare wgpu.CompareFunction
	// MaxAnisotropy is the maximum anisotropic filtering level.
	MaxAnisotropy uint16
}

// DefaultSampler returns the sampler configuration used when a texture does
// not specify its own: repeat addressing with linear filtering.
func DefaultSampler() SamplerData {
	return SamplerData{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
}

// RenderTarget describes the surface texture the renderer draws into for one
// frame. The window/surface layer produces one of these per frame; the core
// never manages the surface itself.
type RenderTarget struct {
	// Width is the target width in pixels.
	Width int
	// Height is the target height in pixels.
	Height int
	// View is the texture view to attach as the color target.
	View *wgpu.TextureView
	// Format is the texture format of View.
	Format wgpu.TextureFormat
}
