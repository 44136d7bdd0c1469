// Package shader wraps caller-supplied WGSL source for pipeline creation.
// The engine does not ship or generate shader text; applications provide it
// (typically via go:embed) together with the entry point names and vertex
// layouts their pipelines need.
package shader

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies a render shader stage.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	entryPoint    string
	vertexLayouts []wgpu.VertexBufferLayout
	module        *wgpu.ShaderModuleDescriptor
}

// Shader defines the interface for a WGSL shader stage. It exposes the
// shader's unique key, source code, entry point, and vertex buffer layouts
// needed for pipeline creation.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType retrieves the stage this shader serves.
	//
	// Returns:
	//   - ShaderType: vertex or fragment
	ShaderType() ShaderType

	// EntryPoint retrieves the name of the shader's entry function.
	//
	// Returns:
	//   - string: the entry point name
	EntryPoint() string

	// VertexLayouts retrieves the vertex buffer layouts the shader's inputs
	// expect, in buffer slot order. Empty for fragment shaders and for vertex
	// shaders without vertex inputs.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the vertex buffer layouts
	VertexLayouts() []wgpu.VertexBufferLayout

	// Module retrieves the shader module descriptor for pipeline creation.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: descriptor wrapping the WGSL source
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// NewShader creates a Shader from WGSL source text. The source is wrapped
// into a module descriptor labeled with the shader's key; the backend compiles
// it when the first pipeline using it is registered. NewShader panics on an
// empty source because every pipeline requires at least a vertex stage.
//
// Parameters:
//   - key: unique identifier for caching and debug labels
//   - shaderType: the stage this shader serves
//   - source: the WGSL source text
//   - opts: variadic list of ShaderBuilderOption functions to configure the shader
//
// Returns:
//   - Shader: a new Shader instance
func NewShader(key string, shaderType ShaderType, source string, opts ...ShaderBuilderOption) Shader {
	if source == "" {
		panic("shader: NewShader requires non-empty WGSL source")
	}

	s := &shader{
		key:        key,
		source:     source,
		shaderType: shaderType,
	}
	switch shaderType {
	case ShaderTypeVertex:
		s.entryPoint = "vs_main"
	case ShaderTypeFragment:
		s.entryPoint = "fs_main"
	}
	for _, opt := range opts {
		opt(s)
	}

	s.module = &wgpu.ShaderModuleDescriptor{
		Label:          s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: s.source},
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}
