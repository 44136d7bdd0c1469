package renderer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/kestrelgfx/kestrel-go/common"
	"github.com/kestrelgfx/kestrel-go/engine/asset"
	"github.com/kestrelgfx/kestrel-go/engine/camera"
	"github.com/kestrelgfx/kestrel-go/engine/graph"
	"github.com/kestrelgfx/kestrel-go/engine/megabuffer"
	"github.com/go-gl/mathgl/mgl32"
)

type memBuffer struct {
	data []byte
}

func (b *memBuffer) Size() uint64 { return uint64(len(b.data)) }
func (b *memBuffer) Release()     {}

type memDevice struct{}

func (memDevice) CreateBuffer(label string, size uint64) (megabuffer.Buffer, error) {
	return &memBuffer{data: make([]byte, size)}, nil
}

type memQueue struct{}

func (memQueue) WriteBuffer(buf megabuffer.Buffer, offset uint64, data []byte) {
	copy(buf.(*memBuffer).data[offset:], data)
}

type memEncoder struct{}

func (memEncoder) CopyBufferToBuffer(src megabuffer.Buffer, srcOffset uint64, dst megabuffer.Buffer, dstOffset uint64, size uint64) {
	copy(dst.(*memBuffer).data[dstOffset:dstOffset+size], src.(*memBuffer).data[srcOffset:srcOffset+size])
}

func newTestTable(t *testing.T) asset.Table {
	t.Helper()
	storage := megabuffer.NewMegabuffer(memDevice{}, memQueue{}, megabuffer.WithInitialCapacity(1<<16))
	return asset.NewTable(storage)
}

// cubeData builds an 8-vertex indexed mesh centered on the origin with unit
// half-extent, optionally split into sub-meshes.
func cubeData(subMeshes ...common.SubMeshData) common.MeshData {
	positions := make([]byte, 0, 8*12)
	for _, v := range [][3]float32{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	} {
		for _, f := range v {
			positions = binary.LittleEndian.AppendUint32(positions, math.Float32bits(f))
		}
	}
	indices := make([]byte, 0, 36*2)
	for i := 0; i < 36; i++ {
		indices = binary.LittleEndian.AppendUint16(indices, uint16(i%8))
	}
	return common.MeshData{
		Topology: common.TopologyTriangleList,
		Attributes: []common.VertexAttribute{
			{Kind: common.AttributePosition, Data: positions},
		},
		VertexCount: 8,
		Indices:     indices,
		IndexFormat: common.IndexFormatUint16,
		IndexCount:  36,
		SubMeshes:   subMeshes,
	}
}

// newCollectRenderer builds a renderer with only the CPU-side collaborators
// populated, enough to exercise collection and marshaling without a GPU.
func newCollectRenderer(g graph.Graph, tbl asset.Table) *renderer {
	return &renderer{
		g:           g,
		table:       tbl,
		bundleIndex: make(map[bundleKey]int),
	}
}

func TestResolveMaterialIndicesCarriesForward(t *testing.T) {
	tbl := newTestTable(t)
	red := tbl.RegisterMaterial(common.MaterialData{Name: "red"})
	blue := tbl.RegisterMaterial(common.MaterialData{Name: "blue"})

	mesh := asset.Mesh{
		SubMeshes: []asset.SubMesh{
			{First: 0, Count: 6},
			{First: 6, Count: 6, Material: blue, HasMaterial: true},
			{First: 12, Count: 6},
			{First: 18, Count: 6, Material: red, HasMaterial: true},
		},
	}

	have := resolveMaterialIndices(mesh, asset.MaterialHandle{}, false)
	want := []uint32{0, blue.Index(), blue.Index(), red.Index()}
	for i := range want {
		if have[i] != want[i] {
			t.Fatalf("sub-mesh %d material index:\nhave %d\nwant %d", i, have[i], want[i])
		}
	}
}

func TestResolveMaterialIndicesOverrideWinsEverywhere(t *testing.T) {
	tbl := newTestTable(t)
	_ = tbl.RegisterMaterial(common.MaterialData{Name: "base"})
	override := tbl.RegisterMaterial(common.MaterialData{Name: "override"})
	bound := tbl.RegisterMaterial(common.MaterialData{Name: "bound"})

	mesh := asset.Mesh{
		SubMeshes: []asset.SubMesh{
			{First: 0, Count: 3},
			{First: 3, Count: 3, Material: bound, HasMaterial: true},
		},
	}

	have := resolveMaterialIndices(mesh, override, true)
	for i, idx := range have {
		if idx != override.Index() {
			t.Fatalf("sub-mesh %d with override:\nhave %d\nwant %d", i, idx, override.Index())
		}
	}
}

func TestCollectFrameBundlesByMeshAndOverride(t *testing.T) {
	tbl := newTestTable(t)
	g := graph.NewGraph()
	h, err := tbl.UploadMesh(memEncoder{}, cubeData())
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}
	override := tbl.RegisterMaterial(common.MaterialData{Name: "override"})

	g.Spawn(graph.Root, graph.WithMesh(h))
	g.Spawn(graph.Root, graph.WithMesh(h))
	g.Spawn(graph.Root, graph.WithMesh(h), graph.WithMaterialOverride(override))
	g.UpdateWorld()

	r := newCollectRenderer(g, tbl)
	total := r.collectFrame(nil)

	if len(r.bundles) != 2 {
		t.Fatalf("bundle count:\nhave %d\nwant 2 (plain + override)", len(r.bundles))
	}
	if n := len(r.bundles[0].instances); n != 2 {
		t.Errorf("plain bundle instances:\nhave %d\nwant 2", n)
	}
	if n := len(r.bundles[1].instances); n != 1 {
		t.Errorf("override bundle instances:\nhave %d\nwant 1", n)
	}

	// One synthesized sub-mesh per bundle, so entries == instances.
	if total != 3 {
		t.Errorf("total locals entries:\nhave %d\nwant 3", total)
	}
	if r.bundles[0].base != 0 || r.bundles[1].base != 2 {
		t.Errorf("bundle bases:\nhave %d, %d\nwant 0, 2", r.bundles[0].base, r.bundles[1].base)
	}
}

func TestCollectFrameKeepsShadowCastersFirst(t *testing.T) {
	tbl := newTestTable(t)
	g := graph.NewGraph()
	h, err := tbl.UploadMesh(memEncoder{}, cubeData())
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}

	// Interleave casters and non-casters, tagging casters by x translation.
	for i, casts := range []bool{false, true, false, true, true} {
		g.Spawn(graph.Root, graph.WithMesh(h), graph.WithShadowCasting(casts),
			graph.WithTransform(graph.Transform{
				Translation: mgl32.Vec3{float32(i), 0, 0},
				Rotation:    mgl32.QuatIdent(),
				Scale:       mgl32.Vec3{1, 1, 1},
			}))
	}
	g.UpdateWorld()

	r := newCollectRenderer(g, tbl)
	r.collectFrame(nil)

	if len(r.bundles) != 1 {
		t.Fatalf("bundle count:\nhave %d\nwant 1", len(r.bundles))
	}
	b := r.bundles[0]
	if b.shadowCount != 3 {
		t.Fatalf("shadow count:\nhave %d\nwant 3", b.shadowCount)
	}
	for i, inst := range b.instances {
		wantCaster := i < b.shadowCount
		if inst.castsShadow != wantCaster {
			t.Errorf("instance %d castsShadow:\nhave %v\nwant %v", i, inst.castsShadow, wantCaster)
		}
	}
	if len(b.instances) != 5 {
		t.Errorf("instance count:\nhave %d\nwant 5 (reorder must not drop or duplicate)", len(b.instances))
	}
}

func TestCollectFrameSkipsStaleMeshHandles(t *testing.T) {
	tbl := newTestTable(t)
	g := graph.NewGraph()
	h, err := tbl.UploadMesh(memEncoder{}, cubeData())
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}
	g.Spawn(graph.Root, graph.WithMesh(h))
	g.UpdateWorld()

	tbl.ReleaseMesh(h)

	r := newCollectRenderer(g, tbl)
	if total := r.collectFrame(nil); total != 0 {
		t.Fatalf("entries after releasing mesh:\nhave %d\nwant 0", total)
	}
	if len(r.bundles) != 0 {
		t.Fatalf("bundles after releasing mesh:\nhave %d\nwant 0", len(r.bundles))
	}
}

func TestCollectFrameDegradesStaleMaterialOverride(t *testing.T) {
	tbl := newTestTable(t)
	g := graph.NewGraph()
	h, err := tbl.UploadMesh(memEncoder{}, cubeData())
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}

	old := tbl.RegisterMaterial(common.MaterialData{Name: "old"})
	g.Spawn(graph.Root, graph.WithMesh(h))
	g.Spawn(graph.Root, graph.WithMesh(h), graph.WithMaterialOverride(old))
	g.UpdateWorld()

	// Release the override's material and reuse its slot, so a raw index
	// lookup would silently pick up the unrelated replacement.
	tbl.ReleaseMaterial(old)
	tbl.Flush()
	reused := tbl.RegisterMaterial(common.MaterialData{Name: "reused"})
	if reused.Index() != old.Index() {
		t.Fatalf("material slot reuse:\nhave index %d\nwant %d", reused.Index(), old.Index())
	}

	r := newCollectRenderer(g, tbl)
	r.collectFrame(nil)

	if len(r.bundles) != 1 {
		t.Fatalf("bundle count:\nhave %d\nwant 1 (stale override joins the plain bundle)", len(r.bundles))
	}
	b := r.bundles[0]
	if n := len(b.instances); n != 2 {
		t.Errorf("bundle instances:\nhave %d\nwant 2", n)
	}
	for i, idx := range b.materialIndices {
		if idx != 0 {
			t.Errorf("sub-mesh %d material index:\nhave %d\nwant 0 (no override)", i, idx)
		}
	}
}

func TestCollectFrameFrustumCullsBehindCamera(t *testing.T) {
	tbl := newTestTable(t)
	g := graph.NewGraph()
	h, err := tbl.UploadMesh(memEncoder{}, cubeData())
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}

	spawnAt := func(z float32) {
		g.Spawn(graph.Root, graph.WithMesh(h), graph.WithTransform(graph.Transform{
			Translation: mgl32.Vec3{0, 0, z},
			Rotation:    mgl32.QuatIdent(),
			Scale:       mgl32.Vec3{1, 1, 1},
		}))
	}
	spawnAt(-5) // in front of a -Z looking camera
	spawnAt(50) // far behind
	g.UpdateWorld()

	camEntity := g.Spawn(graph.Root)
	g.UpdateWorld()
	cam := camera.NewCamera(g, camEntity)

	r := newCollectRenderer(g, tbl)
	r.frustumCulling = true
	total := r.collectFrame(cam)

	if total != 1 {
		t.Fatalf("visible entries:\nhave %d\nwant 1 (instance behind camera culled)", total)
	}
}

func TestMarshalBundleLocalsLayout(t *testing.T) {
	b := &bundle{
		mesh: asset.Mesh{
			SubMeshes: []asset.SubMesh{
				{First: 0, Count: 18},
				{First: 18, Count: 18},
			},
		},
		materialIndices: []uint32{7, 9},
		instances: []instance{
			{world: graph.Transform{
				Translation: mgl32.Vec3{1, 2, 3},
				Rotation:    mgl32.QuatIdent(),
				Scale:       mgl32.Vec3{1, 1, 1},
			}},
			{world: graph.Transform{
				Translation: mgl32.Vec3{4, 5, 6},
				Rotation:    mgl32.QuatIdent(),
				Scale:       mgl32.Vec3{1, 1, 1},
			}},
		},
		base: 2,
	}

	dst := make([]byte, (int(b.base)+b.entryCount())*localStride)
	r := &renderer{}
	r.marshalBundleLocals(b, dst)

	readF32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(dst[off : off+4]))
	}

	n := len(b.instances)
	for s, wantMat := range b.materialIndices {
		for i := range b.instances {
			off := (int(b.base) + s*n + i) * localStride

			// Column-major model matrix: translation sits at elements 12-14.
			tx, ty, tz := readF32(off+48), readF32(off+52), readF32(off+56)
			want := b.instances[i].world.Translation
			if tx != want[0] || ty != want[1] || tz != want[2] {
				t.Errorf("entry (s=%d, i=%d) translation:\nhave (%v, %v, %v)\nwant %v", s, i, tx, ty, tz, want)
			}

			// Identity rotation and unit scale give an identity normal matrix.
			if v := readF32(off + 64); v != 1 {
				t.Errorf("entry (s=%d, i=%d) normal[0]:\nhave %v\nwant 1", s, i, v)
			}

			haveMat := binary.LittleEndian.Uint32(dst[off+128 : off+132])
			if haveMat != wantMat {
				t.Errorf("entry (s=%d, i=%d) material index:\nhave %d\nwant %d", s, i, haveMat, wantMat)
			}
		}
	}

	// Entries before the base must stay untouched.
	for i := 0; i < int(b.base)*localStride; i++ {
		if dst[i] != 0 {
			t.Fatalf("byte %d before bundle base was written", i)
		}
	}
}

func TestWorldBoundsScalesRadius(t *testing.T) {
	b := asset.Bounds{Center: [3]float32{1, 0, 0}, Radius: 2}
	tr := graph.Transform{
		Translation: mgl32.Vec3{10, 0, 0},
		Rotation:    mgl32.QuatIdent(),
		Scale:       mgl32.Vec3{3, 1, 1},
	}

	center, radius := worldBounds(b, tr)
	if want := [3]float32{13, 0, 0}; center != want {
		t.Errorf("center:\nhave %v\nwant %v", center, want)
	}
	if radius != 6 {
		t.Errorf("radius:\nhave %v\nwant 6 (largest axis scale)", radius)
	}
}

func TestNextMultiple(t *testing.T) {
	tests := []struct {
		n, step, want uint32
	}{
		{0, 256, 256},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{3, 4, 4},
		{8, 4, 8},
	}
	for _, tt := range tests {
		if have := nextMultiple(tt.n, tt.step); have != tt.want {
			t.Errorf("nextMultiple(%d, %d):\nhave %d\nwant %d", tt.n, tt.step, have, tt.want)
		}
	}
}
