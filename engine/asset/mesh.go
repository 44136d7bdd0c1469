package asset

import (
	"encoding/binary"
	"math"

	"github.com/kestrelgfx/kestrel-go/common"
	"github.com/kestrelgfx/kestrel-go/engine/megabuffer"
)

// SubMesh is a draw range within a mesh, with an optional material binding.
// For indexed meshes First and Count address indices, otherwise vertices.
type SubMesh struct {
	First       uint32
	Count       uint32
	Material    MaterialHandle
	HasMaterial bool
}

// Bounds is a bounding sphere in mesh-local space, derived from the position
// stream at upload time. The renderer tests it against the camera frustum
// before accepting an instance into a frame.
type Bounds struct {
	Center [3]float32
	Radius float32
}

// Mesh is the table entry for an uploaded mesh: where its bytes live in the
// megabuffer and how to draw them. Entries are immutable once created;
// releasing the handle frees the ranges and removes the entry.
type Mesh struct {
	Topology    common.Topology
	VertexCount uint32
	Bounds      Bounds

	// Attributes holds one byte range per attribute kind. Absent attributes
	// have an empty range.
	Attributes [common.AttributeKindCount]megabuffer.Range

	// IndexRange is empty for non-indexed meshes. Its allocation is padded
	// to the copy alignment; the padding bytes are never read.
	IndexRange  megabuffer.Range
	IndexFormat common.IndexFormat
	IndexCount  uint32

	SubMeshes []SubMesh
}

// Indexed reports whether the mesh draws through an index range.
func (m Mesh) Indexed() bool {
	return !m.IndexRange.IsEmpty()
}

// Attribute returns the byte range for the given attribute kind and whether
// the mesh carries that attribute.
func (m Mesh) Attribute(kind common.AttributeKind) (megabuffer.Range, bool) {
	if kind < 0 || kind >= common.AttributeKindCount {
		return megabuffer.Range{}, false
	}
	r := m.Attributes[kind]
	return r, !r.IsEmpty()
}

// computeBounds derives a bounding sphere from raw position bytes (three
// little-endian float32 per vertex). The sphere is centered on the midpoint
// of the axis-aligned bounding box, which keeps the radius tight for
// off-origin meshes.
func computeBounds(positions []byte) Bounds {
	count := len(positions) / 12
	if count == 0 {
		return Bounds{}
	}

	read := func(i, axis int) float32 {
		off := i*12 + axis*4
		return math.Float32frombits(binary.LittleEndian.Uint32(positions[off : off+4]))
	}

	var lo, hi [3]float32
	for axis := 0; axis < 3; axis++ {
		lo[axis] = read(0, axis)
		hi[axis] = lo[axis]
	}
	for i := 1; i < count; i++ {
		for axis := 0; axis < 3; axis++ {
			v := read(i, axis)
			if v < lo[axis] {
				lo[axis] = v
			}
			if v > hi[axis] {
				hi[axis] = v
			}
		}
	}

	b := Bounds{}
	for axis := 0; axis < 3; axis++ {
		b.Center[axis] = (lo[axis] + hi[axis]) * 0.5
	}
	maxSq := float32(0)
	for i := 0; i < count; i++ {
		var dSq float32
		for axis := 0; axis < 3; axis++ {
			d := read(i, axis) - b.Center[axis]
			dSq += d * d
		}
		if dSq > maxSq {
			maxSq = dSq
		}
	}
	b.Radius = float32(math.Sqrt(float64(maxSq)))
	return b
}

// Material is the table entry for a registered material. Texture is set when
// the material samples a diffuse texture.
type Material struct {
	Name       string
	BaseColor  [4]float32
	Metallic   float32
	Roughness  float32
	Texture    TextureHandle
	HasTexture bool
}

// Texture is the table entry for a registered texture: CPU-side pixels plus
// sampling state. The renderer uploads the pixels to the device on first use
// and caches the GPU object by handle.
type Texture struct {
	Name    string
	Width   uint32
	Height  uint32
	Pixels  []byte
	Sampler common.SamplerData
}
