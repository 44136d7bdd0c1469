package material

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/kestrelgfx/kestrel-go/engine/asset"
)

// NoTexture is the TextureIndex value for materials that do not sample a
// texture.
const NoTexture = ^uint32(0)

// GPUMaterial is the GPU-aligned representation of one entry in the material
// storage array. The array is indexed by material handle index, so a draw's
// resolved material index addresses it directly.
// Size: 32 bytes (std430 / WGSL aligned).
type GPUMaterial struct {
	BaseColor    [4]float32 // offset  0: albedo RGBA
	Metallic     float32    // offset 16: 0 = dielectric, 1 = metal
	Roughness    float32    // offset 20: 0 = smooth, 1 = rough
	TextureIndex uint32     // offset 24: texture handle index, NoTexture when untextured
	HasTexture   uint32     // offset 28: 1 = sample the diffuse texture
}

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterial struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUMaterial) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.BaseColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.BaseColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.BaseColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.BaseColor[3]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Metallic))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Roughness))
	binary.LittleEndian.PutUint32(buf[24:28], g.TextureIndex)
	binary.LittleEndian.PutUint32(buf[28:32], g.HasTexture)
	return buf
}

// ToGPUMaterial converts a registered material entry into its GPU array
// representation.
//
// Parameters:
//   - m: the material entry from the asset table
//
// Returns:
//   - GPUMaterial: the GPU-aligned representation
func ToGPUMaterial(m asset.Material) GPUMaterial {
	g := GPUMaterial{
		BaseColor:    m.BaseColor,
		Metallic:     m.Metallic,
		Roughness:    m.Roughness,
		TextureIndex: NoTexture,
	}
	if m.HasTexture {
		g.TextureIndex = m.Texture.Index()
		g.HasTexture = 1
	}
	return g
}

// DefaultGPUMaterial is the entry written into array slots whose material was
// released or never registered. Matte white, untextured.
//
// Returns:
//   - GPUMaterial: the placeholder entry
func DefaultGPUMaterial() GPUMaterial {
	return GPUMaterial{
		BaseColor:    [4]float32{1, 1, 1, 1},
		Metallic:     0,
		Roughness:    1,
		TextureIndex: NoTexture,
	}
}
