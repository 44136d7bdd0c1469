// Package asset tracks GPU-resident meshes, materials and textures behind
// generation-tagged handles. Geometry bytes live in a shared megabuffer; the
// table maps each handle to the CPU-side metadata (byte ranges, counts,
// formats) the renderer needs to draw it.
package asset

import "fmt"

// Phantom tag types distinguishing handle kinds at compile time. A
// MeshHandle can never be passed where a MaterialHandle is expected even
// though both are an index and a generation.
type (
	// MeshTag marks handles for uploaded meshes.
	MeshTag struct{}
	// MaterialTag marks handles for registered materials.
	MaterialTag struct{}
	// TextureTag marks handles for registered textures.
	TextureTag struct{}
)

// Handle identifies an asset of kind T. Handles are opaque, copyable and
// comparable, and stay cheap to pass by value. A handle is valid only while
// its generation matches the generation currently stored for its index; once
// the asset is recycled and the index reused, the old handle compares
// distinct from the new one and all lookups with it fail.
type Handle[T any] struct {
	generation uint32
	index      uint32
}

// Handle aliases for the three asset kinds the table manages.
type (
	MeshHandle     = Handle[MeshTag]
	MaterialHandle = Handle[MaterialTag]
	TextureHandle  = Handle[TextureTag]
)

// Index returns the slot index the handle refers to.
func (h Handle[T]) Index() uint32 {
	return h.index
}

// Generation returns the handle's generation tag.
func (h Handle[T]) Generation() uint32 {
	return h.generation
}

func (h Handle[T]) String() string {
	return fmt.Sprintf("%d@g%d", h.index, h.generation)
}
