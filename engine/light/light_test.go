package light

import (
	"encoding/binary"
	"math"
	"testing"
)

// transformPoint applies a flat column-major 4x4 matrix to (x, y, z, 1).
func transformPoint(m [16]float32, x, y, z float32) (float32, float32, float32, float32) {
	ox := m[0]*x + m[4]*y + m[8]*z + m[12]
	oy := m[1]*x + m[5]*y + m[9]*z + m[13]
	oz := m[2]*x + m[6]*y + m[10]*z + m[14]
	ow := m[3]*x + m[7]*y + m[11]*z + m[15]
	return ox, oy, oz, ow
}

func TestNewLightDefaults(t *testing.T) {
	l := NewLight(LightTypePoint)
	if !l.Enabled() {
		t.Fatalf("Enabled:\nhave %v\nwant %v", l.Enabled(), true)
	}
	if l.CastsShadows() {
		t.Fatalf("CastsShadows:\nhave %v\nwant %v", l.CastsShadows(), false)
	}
	if l.Intensity() != 1.0 {
		t.Fatalf("Intensity:\nhave %v\nwant %v", l.Intensity(), 1.0)
	}
	if l.Range() != 10.0 {
		t.Fatalf("Range:\nhave %v\nwant %v", l.Range(), 10.0)
	}
}

func TestLightBuilderOptions(t *testing.T) {
	l := NewLight(LightTypeSpot,
		WithPosition(1, 2, 3),
		WithDirection(0, 0, -2),
		WithColor(0.5, 0.25, 1),
		WithIntensity(3),
		WithRange(42),
		WithSpotCone(30, 45),
		WithCastsShadows(true),
	)
	if have, want := l.Position(), ([3]float32{1, 2, 3}); have != want {
		t.Fatalf("Position:\nhave %v\nwant %v", have, want)
	}
	if have, want := l.Direction(), ([3]float32{0, 0, -1}); have != want {
		t.Fatalf("Direction (normalized):\nhave %v\nwant %v", have, want)
	}
	if have, want := l.InnerCone(), cosDeg(30); have != want {
		t.Fatalf("InnerCone:\nhave %v\nwant %v", have, want)
	}
	if have, want := l.OuterCone(), cosDeg(45); have != want {
		t.Fatalf("OuterCone:\nhave %v\nwant %v", have, want)
	}
	if !l.CastsShadows() {
		t.Fatalf("CastsShadows:\nhave %v\nwant %v", l.CastsShadows(), true)
	}
}

func TestGPULightMarshalLayout(t *testing.T) {
	g := GPULight{
		Position:    [3]float32{1, 2, 3},
		LightType:   uint32(LightTypeSpot),
		Color:       [3]float32{0.5, 0.5, 0.5},
		Intensity:   2,
		Direction:   [3]float32{0, -1, 0},
		LightRange:  25,
		InnerCone:   0.9,
		OuterCone:   0.8,
		CastsShadow: 1,
		ShadowLayer: 3,
	}
	buf := g.Marshal()
	if len(buf) != 64 {
		t.Fatalf("marshaled size:\nhave %d\nwant %d", len(buf), 64)
	}
	if g.Size() != 64 {
		t.Fatalf("Size:\nhave %d\nwant %d", g.Size(), 64)
	}
	if have := binary.LittleEndian.Uint32(buf[12:16]); have != uint32(LightTypeSpot) {
		t.Fatalf("light type at offset 12:\nhave %d\nwant %d", have, LightTypeSpot)
	}
	if have := math.Float32frombits(binary.LittleEndian.Uint32(buf[44:48])); have != 25 {
		t.Fatalf("range at offset 44:\nhave %v\nwant %v", have, 25.0)
	}
	if have := binary.LittleEndian.Uint32(buf[56:60]); have != 1 {
		t.Fatalf("casts shadow at offset 56:\nhave %d\nwant %d", have, 1)
	}
	if have := binary.LittleEndian.Uint32(buf[60:64]); have != 3 {
		t.Fatalf("shadow layer at offset 60:\nhave %d\nwant %d", have, 3)
	}
}

func TestCollectBudgets(t *testing.T) {
	var lights []Light
	for range MaxDirectionalLights + 2 {
		lights = append(lights, NewLight(LightTypeDirectional))
	}
	for range MaxPointLights {
		lights = append(lights, NewLight(LightTypePoint))
	}
	// Spot lights share the positional budget, so these must all be dropped.
	for range 3 {
		lights = append(lights, NewLight(LightTypeSpot))
	}

	collected := Collect(nil, lights)
	if len(collected) != MaxGPULights {
		t.Fatalf("collected count:\nhave %d\nwant %d", len(collected), MaxGPULights)
	}
	directional := 0
	for _, l := range collected {
		if l.Type() == LightTypeDirectional {
			directional++
		}
	}
	if directional != MaxDirectionalLights {
		t.Fatalf("directional count:\nhave %d\nwant %d", directional, MaxDirectionalLights)
	}
}

func TestCollectSkipsDisabledAndPreservesOrder(t *testing.T) {
	a := NewLight(LightTypePoint)
	b := NewLight(LightTypePoint, WithEnabled(false))
	c := NewLight(LightTypeDirectional)

	collected := Collect(nil, []Light{a, b, c})
	if len(collected) != 2 {
		t.Fatalf("collected count:\nhave %d\nwant %d", len(collected), 2)
	}
	if collected[0] != a || collected[1] != c {
		t.Fatalf("collected order:\nhave [%p %p]\nwant [%p %p]", collected[0], collected[1], a, c)
	}
}

func TestMarshalLightBufferShadowLayers(t *testing.T) {
	lights := []Light{
		NewLight(LightTypeDirectional, WithCastsShadows(true)),
		NewLight(LightTypePoint),
		NewLight(LightTypeSpot, WithCastsShadows(true)),
	}
	collected := Collect(nil, lights)
	if have, want := ShadowCasterCount(collected), 2; have != want {
		t.Fatalf("ShadowCasterCount:\nhave %d\nwant %d", have, want)
	}

	buf := MarshalLightBuffer(collected, [3]float32{0.1, 0.2, 0.3})
	headerSize := (&GPULightHeader{}).Size()
	lightSize := (&GPULight{}).Size()
	if len(buf) != headerSize+3*lightSize {
		t.Fatalf("buffer size:\nhave %d\nwant %d", len(buf), headerSize+3*lightSize)
	}
	if have := binary.LittleEndian.Uint32(buf[12:16]); have != 3 {
		t.Fatalf("header light count:\nhave %d\nwant %d", have, 3)
	}

	layerOf := func(i int) uint32 {
		off := headerSize + i*lightSize + 60
		return binary.LittleEndian.Uint32(buf[off : off+4])
	}
	if have := layerOf(0); have != 0 {
		t.Fatalf("first caster layer:\nhave %d\nwant %d", have, 0)
	}
	if have := layerOf(1); have != NoShadowLayer {
		t.Fatalf("non-caster layer:\nhave %d\nwant %d", have, NoShadowLayer)
	}
	if have := layerOf(2); have != 1 {
		t.Fatalf("second caster layer:\nhave %d\nwant %d", have, 1)
	}
}

func TestComputeDirectionalLightVPCentersFrustum(t *testing.T) {
	var s GPUShadowData
	s.ComputeDirectionalLightVP([3]float32{0, -1, 0}, 0, 0, 0, 30, 0.1, 100)

	// The frustum center must land on the projection axis.
	x, y, _, w := transformPoint(s.LightVP, 0, 0, 0)
	if absF32(x) > 1e-5 || absF32(y) > 1e-5 {
		t.Fatalf("center NDC xy:\nhave (%v, %v)\nwant (0, 0)", x/w, y/w)
	}
	for i, v := range s.LightVP {
		if math.IsNaN(float64(v)) {
			t.Fatalf("LightVP[%d] is NaN for a vertical light direction", i)
		}
	}
}

func TestComputePositionalLightVPAimsAtFocus(t *testing.T) {
	var s GPUShadowData
	s.ComputePositionalLightVP([3]float32{0, 10, 0}, 0, 0, 0, 0.1, 50)

	x, y, _, w := transformPoint(s.LightVP, 0, 0, 0)
	if w <= 0 {
		t.Fatalf("focus clip w:\nhave %v\nwant > 0", w)
	}
	if absF32(x/w) > 1e-5 || absF32(y/w) > 1e-5 {
		t.Fatalf("focus NDC xy:\nhave (%v, %v)\nwant (0, 0)", x/w, y/w)
	}
}

func TestComputePositionalLightVPClampsFar(t *testing.T) {
	var short, long GPUShadowData
	short.ComputePositionalLightVP([3]float32{0, 5, 0}, 0, 0, 0, 1.0, 0.5)
	long.ComputePositionalLightVP([3]float32{0, 5, 0}, 0, 0, 0, 1.0, 2.0)

	// A range below near must be floored to near*2, which matches the
	// explicit range of 2.0 here.
	if short.LightVP != long.LightVP {
		t.Fatalf("clamped far projection:\nhave %v\nwant %v", short.LightVP, long.LightVP)
	}
}

func TestComputeNormalBias(t *testing.T) {
	var s GPUShadowData
	s.ComputeNormalBias(30, 3, 2048)
	want := 2.0 * 30.0 / 2048.0 * 3.0
	if absF32(s.NormalBias-float32(want)) > 1e-6 {
		t.Fatalf("NormalBias:\nhave %v\nwant %v", s.NormalBias, want)
	}
}

func TestMarshalShadowBuffer(t *testing.T) {
	data := []GPUShadowData{
		{TexelSize: [2]float32{1.0 / 2048, 1.0 / 2048}, Bias: 0.0015},
		{Bias: 0.002},
	}
	buf := MarshalShadowBuffer(data)
	if len(buf) != 160 {
		t.Fatalf("buffer size:\nhave %d\nwant %d", len(buf), 160)
	}
	if have := math.Float32frombits(binary.LittleEndian.Uint32(buf[72:76])); have != 0.0015 {
		t.Fatalf("first entry bias:\nhave %v\nwant %v", have, 0.0015)
	}
	if have := math.Float32frombits(binary.LittleEndian.Uint32(buf[80+72 : 80+76])); have != 0.002 {
		t.Fatalf("second entry bias:\nhave %v\nwant %v", have, 0.002)
	}
}
