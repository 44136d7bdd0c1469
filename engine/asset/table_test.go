package asset

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/kestrelgfx/kestrel-go/common"
	"github.com/kestrelgfx/kestrel-go/engine/megabuffer"
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

func newTestTable(t *testing.T) Table {
	t.Helper()
	storage := megabuffer.NewMegabuffer(memDevice{}, memQueue{}, megabuffer.WithInitialCapacity(1<<16))
	return NewTable(storage)
}

// quadMesh is 4 vertices with positions and normals, indexed as two
// triangles. 6 uint16 indices make 12 bytes of index data.
func quadMesh() common.MeshData {
	positions := make([]byte, 4*12)
	normals := make([]byte, 4*12)
	for i := range positions {
		positions[i] = byte(i)
		normals[i] = byte(255 - i)
	}
	indices := make([]byte, 0, 12)
	for _, v := range []uint16{0, 1, 2, 2, 1, 3} {
		indices = binary.LittleEndian.AppendUint16(indices, v)
	}
	return common.MeshData{
		Topology: common.TopologyTriangleList,
		Attributes: []common.VertexAttribute{
			{Kind: common.AttributePosition, Data: positions},
			{Kind: common.AttributeNormal, Data: normals},
		},
		VertexCount: 4,
		Indices:     indices,
		IndexFormat: common.IndexFormatUint16,
		IndexCount:  6,
	}
}

func TestUploadMeshRecordsEntry(t *testing.T) {
	tbl := newTestTable(t)
	data := quadMesh()

	h, err := tbl.UploadMesh(memEncoder{}, data)
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}

	mesh, ok := tbl.Mesh(h)
	if !ok {
		t.Fatal("Mesh() did not find freshly uploaded mesh")
	}
	if mesh.VertexCount != 4 {
		t.Errorf("VertexCount = %d, want 4", mesh.VertexCount)
	}
	pos, ok := mesh.Attribute(common.AttributePosition)
	if !ok || pos.Size != 48 {
		t.Errorf("position range = %v, %v, want 48-byte range", pos, ok)
	}
	if _, ok := mesh.Attribute(common.AttributeTexCoord); ok {
		t.Error("Attribute(texcoord) found, mesh has none")
	}
	if !mesh.Indexed() {
		t.Fatal("Indexed() = false for indexed mesh")
	}
	if mesh.IndexCount != 6 || mesh.IndexFormat != common.IndexFormatUint16 {
		t.Errorf("index count/format = %d/%v, want 6/uint16", mesh.IndexCount, mesh.IndexFormat)
	}
	if mesh.IndexRange.Start%megabuffer.CopyAlign != 0 {
		t.Errorf("index range start %d not aligned to %d", mesh.IndexRange.Start, megabuffer.CopyAlign)
	}

	if len(mesh.SubMeshes) != 1 {
		t.Fatalf("sub-mesh count = %d, want 1 synthesized", len(mesh.SubMeshes))
	}
	if sm := mesh.SubMeshes[0]; sm.First != 0 || sm.Count != 6 || sm.HasMaterial {
		t.Errorf("synthesized sub-mesh = %+v, want whole index range without material", sm)
	}

	backing := tbl.Storage().Buffer().(*memBuffer)
	if got := backing.data[pos.Start:pos.End()]; !bytes.Equal(got, data.Attributes[0].Data) {
		t.Error("position bytes in storage do not match upload")
	}
}

func TestUploadMeshPadsIndexAllocation(t *testing.T) {
	tbl := newTestTable(t)
	data := quadMesh()
	// 3 uint16 indices = 6 bytes, which must be padded to 8.
	data.Indices = data.Indices[:6]
	data.IndexCount = 3

	h, err := tbl.UploadMesh(memEncoder{}, data)
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}
	mesh, _ := tbl.Mesh(h)
	if mesh.IndexRange.Size != 8 {
		t.Errorf("index range size = %d, want 6 padded to 8", mesh.IndexRange.Size)
	}
}

func TestUploadMeshRejectsMalformedData(t *testing.T) {
	tbl := newTestTable(t)
	free := tbl.Storage().FreeBytes()

	cases := []struct {
		name   string
		mutate func(*common.MeshData)
	}{
		{"no vertices", func(d *common.MeshData) { d.VertexCount = 0 }},
		{"no position", func(d *common.MeshData) { d.Attributes = d.Attributes[1:] }},
		{"ragged attribute", func(d *common.MeshData) {
			// Normals are 4 vertices x 12-byte stride = 48 bytes; 44 leaves
			// the stream short of the last vertex.
			d.Attributes[1].Data = d.Attributes[1].Data[:44]
		}},
		{"short index data", func(d *common.MeshData) { d.IndexCount = 7 }},
		{"sub-mesh out of range", func(d *common.MeshData) {
			d.SubMeshes = []common.SubMeshData{{First: 4, Count: 4, Material: -1}}
		}},
		{"sub-mesh unknown material", func(d *common.MeshData) {
			d.SubMeshes = []common.SubMeshData{{First: 0, Count: 6, Material: 2}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := quadMesh()
			tc.mutate(&data)
			if _, err := tbl.UploadMesh(memEncoder{}, data); err == nil {
				t.Fatal("UploadMesh() succeeded, want error")
			}
			if got := tbl.Storage().FreeBytes(); got != free {
				t.Errorf("FreeBytes() after rejected upload = %d, want %d", got, free)
			}
		})
	}
}

func TestUploadMeshResolvesSubMeshMaterials(t *testing.T) {
	tbl := newTestTable(t)
	red := tbl.RegisterMaterial(common.MaterialData{Name: "red", BaseColor: [4]float32{1, 0, 0, 1}})
	blue := tbl.RegisterMaterial(common.MaterialData{Name: "blue", BaseColor: [4]float32{0, 0, 1, 1}})

	data := quadMesh()
	data.SubMeshes = []common.SubMeshData{
		{First: 0, Count: 3, Material: 1},
		{First: 3, Count: 3, Material: -1},
	}

	h, err := tbl.UploadMesh(memEncoder{}, data, red, blue)
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}
	mesh, _ := tbl.Mesh(h)
	if len(mesh.SubMeshes) != 2 {
		t.Fatalf("sub-mesh count = %d, want 2", len(mesh.SubMeshes))
	}
	if sm := mesh.SubMeshes[0]; !sm.HasMaterial || sm.Material != blue {
		t.Errorf("sub-mesh 0 material = %v (has %v), want %v", sm.Material, sm.HasMaterial, blue)
	}
	if mesh.SubMeshes[1].HasMaterial {
		t.Error("sub-mesh 1 has a material, want none")
	}
}

func TestReleaseMeshFreesStorageOnFlush(t *testing.T) {
	tbl := newTestTable(t)
	free := tbl.Storage().FreeBytes()

	h, err := tbl.UploadMesh(memEncoder{}, quadMesh())
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}
	if got := tbl.Storage().FreeBytes(); got >= free {
		t.Fatal("upload did not consume storage")
	}

	if !tbl.ReleaseMesh(h) {
		t.Fatal("ReleaseMesh() = false, want true")
	}
	if _, ok := tbl.Mesh(h); ok {
		t.Error("Mesh() found entry for released handle before Flush")
	}
	if got := tbl.Storage().FreeBytes(); got >= free {
		t.Error("storage freed before Flush")
	}

	released := tbl.Flush()
	if len(released.Meshes) != 1 || released.Meshes[0] != h {
		t.Errorf("Flush released %v, want [%v]", released.Meshes, h)
	}
	if got := tbl.Storage().FreeBytes(); got != free {
		t.Errorf("FreeBytes() after Flush = %d, want %d", got, free)
	}
	if tbl.MeshCount() != 0 {
		t.Errorf("MeshCount() = %d, want 0", tbl.MeshCount())
	}
}

func TestStaleMeshLookupAfterReuse(t *testing.T) {
	tbl := newTestTable(t)

	old, err := tbl.UploadMesh(memEncoder{}, quadMesh())
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}
	tbl.ReleaseMesh(old)
	tbl.Flush()

	reused, err := tbl.UploadMesh(memEncoder{}, quadMesh())
	if err != nil {
		t.Fatalf("UploadMesh() error: %v", err)
	}
	if reused.Index() != old.Index() {
		t.Fatalf("expected index reuse, have %d want %d", reused.Index(), old.Index())
	}

	if _, ok := tbl.Mesh(old); ok {
		t.Error("stale handle resolved to the new mesh")
	}
	if _, ok := tbl.Mesh(reused); !ok {
		t.Error("fresh handle did not resolve")
	}
}

func TestRegisterMaterialOwnsEmbeddedTexture(t *testing.T) {
	tbl := newTestTable(t)

	mat := tbl.RegisterMaterial(common.MaterialData{
		Name:      "bricks",
		BaseColor: [4]float32{1, 1, 1, 1},
		DiffuseTexture: &common.TextureData{
			Name:   "bricks-albedo",
			Pixels: make([]byte, 4*4*4),
			Width:  4,
			Height: 4,
		},
	})

	m, ok := tbl.Material(mat)
	if !ok || !m.HasTexture {
		t.Fatalf("Material() = %+v, %v, want entry with texture", m, ok)
	}
	tex, ok := tbl.Texture(m.Texture)
	if !ok || tex.Width != 4 {
		t.Fatalf("Texture() = %+v, %v, want registered 4x4 texture", tex, ok)
	}

	tbl.ReleaseMaterial(mat)
	released := tbl.Flush()
	if len(released.Materials) != 1 || len(released.Textures) != 1 {
		t.Errorf("Flush released %d materials, %d textures, want 1 and 1", len(released.Materials), len(released.Textures))
	}
	if _, ok := tbl.Texture(m.Texture); ok {
		t.Error("owned texture still resolvable after material release")
	}
}

func TestMaterialVersionTracksChanges(t *testing.T) {
	tbl := newTestTable(t)
	v0 := tbl.MaterialVersion()

	h := tbl.RegisterMaterial(common.MaterialData{Name: "a"})
	if tbl.MaterialVersion() == v0 {
		t.Error("MaterialVersion unchanged after register")
	}

	v1 := tbl.MaterialVersion()
	tbl.ReleaseMaterial(h)
	tbl.Flush()
	if tbl.MaterialVersion() == v1 {
		t.Error("MaterialVersion unchanged after release flush")
	}
}

func TestEachMaterialSkipsFreedSlots(t *testing.T) {
	tbl := newTestTable(t)
	a := tbl.RegisterMaterial(common.MaterialData{Name: "a"})
	b := tbl.RegisterMaterial(common.MaterialData{Name: "b"})
	tbl.ReleaseMaterial(a)
	tbl.Flush()

	var names []string
	tbl.EachMaterial(func(h MaterialHandle, m Material) {
		if h != b {
			t.Errorf("EachMaterial visited %v, want only %v", h, b)
		}
		names = append(names, m.Name)
	})
	if len(names) != 1 || names[0] != "b" {
		t.Errorf("EachMaterial visited %v, want [b]", names)
	}
	if tbl.MaterialSlots() != 2 {
		t.Errorf("MaterialSlots() = %d, want 2", tbl.MaterialSlots())
	}
}
