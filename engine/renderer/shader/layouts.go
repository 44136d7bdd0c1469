package shader

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrelgfx/kestrel-go/common"
)

// attributeFormats maps each mesh attribute kind to its vertex format. Shader
// locations follow the common.AttributeKind order, so WGSL inputs declare
// @location(0) position, @location(1) normal, and so on.
var attributeFormats = [common.AttributeKindCount]wgpu.VertexFormat{
	common.AttributePosition: wgpu.VertexFormatFloat32x3,
	common.AttributeNormal:   wgpu.VertexFormatFloat32x3,
	common.AttributeTangent:  wgpu.VertexFormatFloat32x4,
	common.AttributeTexCoord: wgpu.VertexFormatFloat32x2,
	common.AttributeColor:    wgpu.VertexFormatFloat32x4,
}

// AttributeStride returns the per-vertex byte stride of an attribute kind.
//
// Parameters:
//   - kind: the attribute kind
//
// Returns:
//   - uint64: bytes per vertex for that attribute
func AttributeStride(kind common.AttributeKind) uint64 {
	return kind.Stride()
}

// VertexLayoutFor builds the vertex buffer layout for a single attribute
// kind. Each attribute occupies its own buffer slot because attributes live
// in separate ranges of the geometry megabuffer.
//
// Parameters:
//   - kind: the attribute kind
//
// Returns:
//   - wgpu.VertexBufferLayout: the layout for that attribute's slot
func VertexLayoutFor(kind common.AttributeKind) wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: kind.Stride(),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{{
			Format:         attributeFormats[kind],
			Offset:         0,
			ShaderLocation: uint32(kind),
		}},
	}
}

// StandardVertexLayouts returns the full attribute layout set in slot order,
// one buffer slot per attribute kind. Used by the main pass pipelines.
//
// Returns:
//   - []wgpu.VertexBufferLayout: layouts for every attribute kind
func StandardVertexLayouts() []wgpu.VertexBufferLayout {
	layouts := make([]wgpu.VertexBufferLayout, common.AttributeKindCount)
	for kind := common.AttributeKind(0); kind < common.AttributeKindCount; kind++ {
		layouts[kind] = VertexLayoutFor(kind)
	}
	return layouts
}

// PositionOnlyLayouts returns the layout set for depth-only passes, which
// read nothing but positions.
//
// Returns:
//   - []wgpu.VertexBufferLayout: a single position layout
func PositionOnlyLayouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{VertexLayoutFor(common.AttributePosition)}
}
