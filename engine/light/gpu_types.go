package light

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/kestrelgfx/kestrel-go/common"
)

// MaxDirectionalLights is the per-frame budget of directional lights marshaled
// into the GPU light buffer. Enabled directional lights beyond the budget are
// dropped for the frame, in registration order.
const MaxDirectionalLights = 4

// MaxPointLights is the per-frame budget of positional lights (point and spot
// combined) marshaled into the GPU light buffer.
const MaxPointLights = 16

// MaxGPULights is the total light capacity of the GPU light buffer per frame.
const MaxGPULights = MaxDirectionalLights + MaxPointLights

// NoShadowLayer is the ShadowLayer value for lights that do not render a
// shadow map layer this frame.
const NoShadowLayer = ^uint32(0)

// GPULight is the GPU-aligned representation of a single light source.
// Matches the WGSL Light struct layout exactly.
// Size: 64 bytes (std430 / WGSL aligned).
type GPULight struct {
	Position    [3]float32 // offset  0: world-space position (point/spot) or unused (directional)
	LightType   uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Color       [3]float32 // offset 16: RGB color
	Intensity   float32    // offset 28: scalar multiplier
	Direction   [3]float32 // offset 32: normalized direction (directional/spot) or unused (point)
	LightRange  float32    // offset 44: attenuation cutoff distance
	InnerCone   float32    // offset 48: cos(inner half-angle) for spot
	OuterCone   float32    // offset 52: cos(outer half-angle) for spot
	CastsShadow uint32     // offset 56: 1 = casts shadows, 0 = does not
	ShadowLayer uint32     // offset 60: layer index in the shadow map array, NoShadowLayer when none
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], g.LightType)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Color[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Color[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.Color[2]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Intensity))
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(g.Direction[0]))
	binary.LittleEndian.PutUint32(buf[36:40], math.Float32bits(g.Direction[1]))
	binary.LittleEndian.PutUint32(buf[40:44], math.Float32bits(g.Direction[2]))
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.LightRange))
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.InnerCone))
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.OuterCone))
	binary.LittleEndian.PutUint32(buf[56:60], g.CastsShadow)
	binary.LittleEndian.PutUint32(buf[60:64], g.ShadowLayer)
	return buf
}

// GPULightHeader is the header prepended to the light storage buffer.
// Contains the ambient color and the active light count.
// Size: 16 bytes (vec3 + u32, std430 aligned).
type GPULightHeader struct {
	AmbientColor [3]float32 // offset 0: scene ambient RGB
	LightCount   uint32     // offset 12: number of active lights following the header
}

// Size returns the size of the GPULightHeader struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (h *GPULightHeader) Size() int {
	return int(unsafe.Sizeof(*h))
}

// Marshal serializes the GPULightHeader struct into a byte buffer suitable for
// GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (h *GPULightHeader) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(h.AmbientColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(h.AmbientColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(h.AmbientColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], h.LightCount)
	return buf
}

// GPUShadowData is the GPU-aligned per-layer shadow record. One entry is
// written into the shadow storage buffer for each shadow-casting light that
// made the frame's collection, indexed by the light's ShadowLayer.
// Size: 80 bytes (std430 / WGSL aligned).
//
// Layout:
//
//	mat4x4<f32> light_vp       (64 bytes, offset 0)
//	vec2<f32>   texel_size     ( 8 bytes, offset 64)
//	f32         bias           ( 4 bytes, offset 72)
//	f32         normal_bias    ( 4 bytes, offset 76)
type GPUShadowData struct {
	LightVP    [16]float32 // view-projection from the light's perspective
	TexelSize  [2]float32  // 1.0 / shadow_map_resolution for PCF offset calculations
	Bias       float32     // depth comparison bias to reduce shadow acne
	NormalBias float32     // world-space normal-offset distance for shadow lookup
}

// Size returns the size of the GPUShadowData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (s *GPUShadowData) Size() int {
	return int(unsafe.Sizeof(*s))
}

// ComputeDirectionalLightVP builds an orthographic view-projection matrix for a
// directional light's shadow pass and stores it in the receiver's LightVP field.
// The frustum is centered on the provided center position (typically the camera
// position) and aligned to look along the light's direction.
//
// Parameters:
//   - lightDir: normalized direction the light points (from light toward scene)
//   - centerX, centerY, centerZ: world-space center of the shadow frustum
//   - halfExtent: half-size of the orthographic frustum in world units
//   - near: near plane distance
//   - far: far plane distance
func (s *GPUShadowData) ComputeDirectionalLightVP(lightDir [3]float32, centerX, centerY, centerZ, halfExtent, near, far float32) {
	// Position the "eye" behind the center, opposite the light direction,
	// so we look from behind the scene toward the lit area.
	eyeX := centerX - lightDir[0]*far*0.5
	eyeY := centerY - lightDir[1]*far*0.5
	eyeZ := centerZ - lightDir[2]*far*0.5

	// Choose a stable up vector that isn't parallel to the light direction.
	// If the light points nearly straight up or down, use X-axis as up.
	upX, upY, upZ := float32(0), float32(1), float32(0)
	if absF32(lightDir[1]) > 0.99 {
		upX, upY, upZ = 1, 0, 0
	}

	var view [16]float32
	common.LookAt(view[:],
		eyeX, eyeY, eyeZ,
		centerX, centerY, centerZ,
		upX, upY, upZ,
	)

	var proj [16]float32
	common.Ortho(proj[:], -halfExtent, halfExtent, -halfExtent, halfExtent, near, far)

	common.Mul4(s.LightVP[:], proj[:], view[:])
}

// ComputePositionalLightVP builds a perspective view-projection matrix for a
// point or spot light's shadow pass and stores it in the receiver's LightVP
// field. The projection is a square 90° frustum looking from the light's
// position toward the shadow focus point, with the far plane clamped to the
// light's attenuation range so geometry the light cannot reach never lands in
// the map.
//
// Parameters:
//   - lightPos: world-space position of the light
//   - focusX, focusY, focusZ: world-space point the shadow frustum aims at
//   - near: near plane distance
//   - lightRange: attenuation cutoff used as the far plane (floored to near*2)
func (s *GPUShadowData) ComputePositionalLightVP(lightPos [3]float32, focusX, focusY, focusZ, near, lightRange float32) {
	far := lightRange
	if far < near*2 {
		far = near * 2
	}

	dirX := focusX - lightPos[0]
	dirY := focusY - lightPos[1]
	dirZ := focusZ - lightPos[2]
	if dirX == 0 && dirY == 0 && dirZ == 0 {
		dirY = -1
	}

	lenSq := dirX*dirX + dirY*dirY + dirZ*dirZ
	upX, upY, upZ := float32(0), float32(1), float32(0)
	if dirY*dirY > 0.98*lenSq {
		upX, upY, upZ = 1, 0, 0
	}

	var view [16]float32
	common.LookAt(view[:],
		lightPos[0], lightPos[1], lightPos[2],
		lightPos[0]+dirX, lightPos[1]+dirY, lightPos[2]+dirZ,
		upX, upY, upZ,
	)

	var proj [16]float32
	common.Perspective(proj[:], math.Pi/2, 1.0, near, far)

	common.Mul4(s.LightVP[:], proj[:], view[:])
}

// ComputeNormalBias derives the world-space normal-offset bias from the shadow
// map parameters and stores it in the receiver's NormalBias field. The result is
// the distance (in world units) that fragment positions are shifted along their
// surface normal before projecting into light clip space. This prevents
// self-shadowing on concave geometry.
//
// Parameters:
//   - halfExtent: orthographic frustum half-size in world units
//   - scale: multiplier on the per-texel world size (typically 2.0–4.0)
//   - resolution: shadow map resolution in texels (width and height)
func (s *GPUShadowData) ComputeNormalBias(halfExtent, scale float32, resolution int) {
	texelWorldSize := 2.0 * halfExtent / float32(resolution)
	s.NormalBias = texelWorldSize * scale
}

// Marshal serializes the GPUShadowData struct into a byte buffer suitable for
// GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (s *GPUShadowData) Marshal() []byte {
	buf := make([]byte, 80)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(s.LightVP[i]))
	}
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(s.TexelSize[0]))
	binary.LittleEndian.PutUint32(buf[68:72], math.Float32bits(s.TexelSize[1]))
	binary.LittleEndian.PutUint32(buf[72:76], math.Float32bits(s.Bias))
	binary.LittleEndian.PutUint32(buf[76:80], math.Float32bits(s.NormalBias))
	return buf
}

// GPUShadowUniform is the GPU-aligned representation of the shadow vertex
// shader uniform containing only the light view-projection matrix. One is
// written per shadow pass, before that light's layer is rendered.
// Size: 64 bytes (mat4x4<f32>).
type GPUShadowUniform struct {
	LightVP [16]float32 // view-projection from the light's perspective
}

// Size returns the size of the GPUShadowUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (u *GPUShadowUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the GPUShadowUniform struct into a byte buffer suitable for
// GPU uniform upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (u *GPUShadowUniform) Marshal() []byte {
	buf := make([]byte, 64)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(u.LightVP[i]))
	}
	return buf
}

// Collect filters lights down to the frame's GPU light set: enabled lights
// only, directional lights up to MaxDirectionalLights, point and spot lights
// sharing MaxPointLights. Relative order is preserved; lights beyond a budget
// are dropped for the frame, so callers that care about truncation should
// register their most important lights first.
//
// Parameters:
//   - dst: destination slice, reused across frames to avoid allocation
//   - lights: the full light list
//
// Returns:
//   - []Light: dst with the collected lights appended
func Collect(dst []Light, lights []Light) []Light {
	directional, positional := 0, 0
	for _, l := range lights {
		if !l.Enabled() {
			continue
		}
		if l.Type() == LightTypeDirectional {
			if directional >= MaxDirectionalLights {
				continue
			}
			directional++
		} else {
			if positional >= MaxPointLights {
				continue
			}
			positional++
		}
		dst = append(dst, l)
	}
	return dst
}

// ShadowCasterCount returns how many of the collected lights render a shadow
// map layer this frame. Layer indices are assigned in collection order, so
// the n-th shadow caster in collected owns layer n.
//
// Parameters:
//   - collected: the frame's collected lights (see Collect)
//
// Returns:
//   - int: the number of shadow map layers required
func ShadowCasterCount(collected []Light) int {
	count := 0
	for _, l := range collected {
		if l.CastsShadows() {
			count++
		}
	}
	return count
}

// ToGPULight converts a Light interface value into the GPU-aligned GPULight struct
// suitable for writing into the light storage buffer.
//
// Parameters:
//   - l: the Light to convert
//   - shadowLayer: the light's layer in the shadow map array, or NoShadowLayer
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l Light, shadowLayer uint32) GPULight {
	shadowVal := uint32(0)
	if l.CastsShadows() && shadowLayer != NoShadowLayer {
		shadowVal = 1
	}
	return GPULight{
		Position:    l.Position(),
		LightType:   uint32(l.Type()),
		Color:       l.Color(),
		Intensity:   l.Intensity(),
		Direction:   l.Direction(),
		LightRange:  l.Range(),
		InnerCone:   l.InnerCone(),
		OuterCone:   l.OuterCone(),
		CastsShadow: shadowVal,
		ShadowLayer: shadowLayer,
	}
}

// MarshalLightBuffer marshals the frame's collected lights into a byte buffer
// suitable for GPU upload. The buffer layout is:
//
//	[GPULightHeader (16 bytes)] [GPULight × count (64 bytes each)]
//
// Shadow layer indices are assigned here, in collection order, matching the
// layer order the shadow passes render in. The input must already be budgeted
// via Collect; entries beyond MaxGPULights are dropped.
//
// Parameters:
//   - collected: the frame's collected lights (see Collect)
//   - ambient: the scene ambient color as RGB
//
// Returns:
//   - []byte: the marshaled buffer ready for GPU upload
func MarshalLightBuffer(collected []Light, ambient [3]float32) []byte {
	headerSize := (&GPULightHeader{}).Size()
	lightSize := (&GPULight{}).Size()

	count := len(collected)
	if count > MaxGPULights {
		count = MaxGPULights
	}

	buf := make([]byte, headerSize+count*lightSize)

	// Write header.
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(ambient[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(ambient[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(ambient[2]))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(count))

	// Write each light, handing out shadow layers as they appear.
	offset := headerSize
	layer := uint32(0)
	for _, l := range collected[:count] {
		shadowLayer := NoShadowLayer
		if l.CastsShadows() {
			shadowLayer = layer
			layer++
		}
		gpu := ToGPULight(l, shadowLayer)
		copy(buf[offset:offset+lightSize], gpu.Marshal())
		offset += lightSize
	}

	return buf
}

// MarshalShadowBuffer marshals the per-layer shadow records into a byte buffer
// suitable for GPU upload, one 80-byte GPUShadowData per shadow map layer in
// layer order.
//
// Parameters:
//   - data: the frame's shadow records, indexed by layer
//
// Returns:
//   - []byte: the marshaled buffer ready for GPU upload
func MarshalShadowBuffer(data []GPUShadowData) []byte {
	entrySize := (&GPUShadowData{}).Size()
	buf := make([]byte, len(data)*entrySize)
	for i := range data {
		copy(buf[i*entrySize:(i+1)*entrySize], data[i].Marshal())
	}
	return buf
}

// absF32 returns the absolute value of a float32.
func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
