package asset

import (
	"fmt"
	"sync"

	"github.com/kestrelgfx/kestrel-go/common"
	"github.com/kestrelgfx/kestrel-go/engine/megabuffer"
)

// Released lists the handles whose slots were cleared by a Flush. The
// renderer uses it to drop cached GPU objects (texture views, samplers) that
// were keyed by these handles.
type Released struct {
	Meshes    []MeshHandle
	Materials []MaterialHandle
	Textures  []TextureHandle
}

// Empty reports whether the flush released nothing.
func (r Released) Empty() bool {
	return len(r.Meshes) == 0 && len(r.Materials) == 0 && len(r.Textures) == 0
}

// Table owns the asset handle space: it uploads mesh bytes into the shared
// megabuffer, registers materials and textures, and resolves handles back to
// their entries. Releasing a handle is two-phase: Release* marks the handle
// dead immediately, Flush frees the backing storage. Flush must run on the
// thread that owns GPU command submission.
type Table interface {
	// UploadMesh allocates megabuffer ranges for every attribute stream of
	// data, writes the bytes, and records the entry. Index allocations are
	// padded to the megabuffer's copy alignment. Sub-mesh material indices
	// in data resolve through the materials slice; a mesh without explicit
	// sub-meshes gets a single synthesized one covering the whole draw range.
	//
	// Parameters:
	//   - enc: command encoder that receives megabuffer growth copies, if any
	//   - data: the CPU-side mesh supplied by the loader layer
	//   - materials: registered material handles referenced by sub-mesh index
	//
	// Returns:
	//   - MeshHandle: handle to the uploaded mesh
	//   - error: when data is malformed; nothing is allocated on error
	UploadMesh(enc megabuffer.Encoder, data common.MeshData, materials ...MaterialHandle) (MeshHandle, error)

	// Mesh resolves a mesh handle to its entry.
	//
	// Parameters:
	//   - h: the handle to resolve
	//
	// Returns:
	//   - Mesh: the entry, valid only when found
	//   - bool: false when h is stale, recycled or unknown
	Mesh(h MeshHandle) (Mesh, bool)

	// ReleaseMesh marks the mesh dead and queues its storage for the next
	// Flush. Returns false when h is stale or already released.
	ReleaseMesh(h MeshHandle) bool

	// RegisterMaterial records a material entry. A diffuse texture embedded
	// in data is registered alongside it and released with it.
	//
	// Parameters:
	//   - data: the CPU-side material record
	//
	// Returns:
	//   - MaterialHandle: handle to the registered material
	RegisterMaterial(data common.MaterialData) MaterialHandle

	// Material resolves a material handle to its entry.
	Material(h MaterialHandle) (Material, bool)

	// ReleaseMaterial marks the material dead. A texture the table registered
	// on the material's behalf is released with it; explicitly registered
	// textures are left to their owner.
	ReleaseMaterial(h MaterialHandle) bool

	// RegisterTexture records a texture entry. A nil sampler in data falls
	// back to common.DefaultSampler.
	RegisterTexture(data common.TextureData) TextureHandle

	// Texture resolves a texture handle to its entry.
	Texture(h TextureHandle) (Texture, bool)

	// ReleaseTexture marks the texture dead.
	ReleaseTexture(h TextureHandle) bool

	// Flush frees the storage of every handle released since the last Flush
	// and clears their table slots. Freed indices become reusable only after
	// their slots are cleared. Must run on the GPU submission thread.
	//
	// Returns:
	//   - Released: the handles whose slots were cleared
	Flush() Released

	// MeshCount returns the number of live meshes.
	MeshCount() int

	// MaterialSlots returns the size of the handle-indexed material array,
	// counting live and free slots alike. The renderer sizes its material
	// buffer from this.
	MaterialSlots() int

	// EachMaterial calls fn for every live material in index order.
	EachMaterial(fn func(h MaterialHandle, m Material))

	// MaterialVersion returns a counter that increments whenever the set of
	// registered materials changes, so the renderer knows to rewrite its
	// material buffer.
	MaterialVersion() uint64

	// Storage returns the megabuffer holding all mesh bytes.
	Storage() megabuffer.Megabuffer

	// Release frees the underlying megabuffer. The table must not be used
	// afterwards.
	Release()
}

type materialEntry struct {
	material Material
	// ownsTexture is set when RegisterMaterial created the texture entry
	// itself, making the material responsible for releasing it.
	ownsTexture bool
}

type table struct {
	mu      *sync.RWMutex
	storage megabuffer.Megabuffer

	meshAllocator     HandleAllocator[MeshTag]
	materialAllocator HandleAllocator[MaterialTag]
	textureAllocator  HandleAllocator[TextureTag]

	meshes    map[uint32]Mesh
	materials map[uint32]materialEntry
	textures  map[uint32]Texture

	materialVersion uint64
}

var _ Table = &table{}

// NewTable creates an asset table backed by the given megabuffer. The table
// takes ownership of the storage and releases it in Release.
//
// Parameters:
//   - storage: megabuffer that will hold all mesh bytes
//
// Returns:
//   - Table: the initialized table
func NewTable(storage megabuffer.Megabuffer) Table {
	if storage == nil {
		panic("asset: table requires a megabuffer")
	}
	return &table{
		mu:        &sync.RWMutex{},
		storage:   storage,
		meshes:    make(map[uint32]Mesh),
		materials: make(map[uint32]materialEntry),
		textures:  make(map[uint32]Texture),
	}
}

func (t *table) UploadMesh(enc megabuffer.Encoder, data common.MeshData, materials ...MaterialHandle) (MeshHandle, error) {
	entry, err := t.buildMesh(enc, data, materials)
	if err != nil {
		return MeshHandle{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.meshAllocator.Reserve()
	t.meshes[h.Index()] = entry
	return h, nil
}

// buildMesh validates data, allocates and writes every range, and assembles
// the entry. On any validation failure the ranges allocated so far are freed
// again, leaving the megabuffer as it was.
func (t *table) buildMesh(enc megabuffer.Encoder, data common.MeshData, materials []MaterialHandle) (Mesh, error) {
	if data.VertexCount == 0 {
		return Mesh{}, fmt.Errorf("asset: mesh has no vertices")
	}

	var allocated []megabuffer.Range
	fail := func(err error) (Mesh, error) {
		for _, r := range allocated {
			t.storage.Free(r)
		}
		return Mesh{}, err
	}

	entry := Mesh{
		Topology:    data.Topology,
		VertexCount: data.VertexCount,
	}

	seen := [common.AttributeKindCount]bool{}
	var positions []byte
	for _, attr := range data.Attributes {
		if attr.Kind < 0 || attr.Kind >= common.AttributeKindCount {
			return fail(fmt.Errorf("asset: unknown attribute kind %d", attr.Kind))
		}
		if seen[attr.Kind] {
			return fail(fmt.Errorf("asset: duplicate %s attribute", attr.Kind))
		}
		seen[attr.Kind] = true
		if len(attr.Data) == 0 {
			return fail(fmt.Errorf("asset: %s attribute has no data", attr.Kind))
		}
		if want := attr.Kind.Stride() * uint64(data.VertexCount); uint64(len(attr.Data)) != want {
			return fail(fmt.Errorf("asset: %s attribute is %d bytes, want %d for %d vertices", attr.Kind, len(attr.Data), want, data.VertexCount))
		}

		r := t.storage.Allocate(enc, uint64(len(attr.Data)))
		allocated = append(allocated, r)
		t.storage.Write(r, attr.Data)
		entry.Attributes[attr.Kind] = r
		if attr.Kind == common.AttributePosition {
			positions = attr.Data
		}
	}
	if !seen[common.AttributePosition] {
		return fail(fmt.Errorf("asset: mesh has no position attribute"))
	}
	entry.Bounds = computeBounds(positions)

	if len(data.Indices) > 0 {
		want := int(data.IndexCount) * data.IndexFormat.Bytes()
		if len(data.Indices) != want {
			return fail(fmt.Errorf("asset: index data is %d bytes, want %d for %d indices", len(data.Indices), want, data.IndexCount))
		}
		// Index allocations are padded to copy alignment; the padding bytes
		// are never read.
		padded := common.AlignUp(uint64(len(data.Indices)), megabuffer.CopyAlign)
		r := t.storage.AllocateAligned(enc, padded, megabuffer.CopyAlign)
		allocated = append(allocated, r)
		t.storage.Write(r, data.Indices)
		entry.IndexRange = r
		entry.IndexFormat = data.IndexFormat
		entry.IndexCount = data.IndexCount
	}

	drawCount := entry.VertexCount
	if entry.Indexed() {
		drawCount = entry.IndexCount
	}

	if len(data.SubMeshes) == 0 {
		entry.SubMeshes = []SubMesh{{First: 0, Count: drawCount}}
	} else {
		entry.SubMeshes = make([]SubMesh, 0, len(data.SubMeshes))
		for i, sm := range data.SubMeshes {
			if sm.First+sm.Count > drawCount {
				return fail(fmt.Errorf("asset: sub-mesh %d range [%d,%d) exceeds draw count %d", i, sm.First, sm.First+sm.Count, drawCount))
			}
			out := SubMesh{First: sm.First, Count: sm.Count}
			if sm.Material >= 0 {
				if int(sm.Material) >= len(materials) {
					return fail(fmt.Errorf("asset: sub-mesh %d references material %d, only %d supplied", i, sm.Material, len(materials)))
				}
				out.Material = materials[sm.Material]
				out.HasMaterial = true
			}
			entry.SubMeshes = append(entry.SubMeshes, out)
		}
	}

	return entry, nil
}

func (t *table) Mesh(h MeshHandle) (Mesh, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.meshAllocator.Valid(h) {
		return Mesh{}, false
	}
	entry, ok := t.meshes[h.Index()]
	return entry, ok
}

func (t *table) ReleaseMesh(h MeshHandle) bool {
	return t.meshAllocator.Recycle(h)
}

func (t *table) RegisterMaterial(data common.MaterialData) MaterialHandle {
	entry := materialEntry{
		material: Material{
			Name:      data.Name,
			BaseColor: data.BaseColor,
			Metallic:  data.Metallic,
			Roughness: data.Roughness,
		},
	}
	if data.DiffuseTexture != nil {
		entry.material.Texture = t.RegisterTexture(*data.DiffuseTexture)
		entry.material.HasTexture = true
		entry.ownsTexture = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.materialAllocator.Reserve()
	t.materials[h.Index()] = entry
	t.materialVersion++
	return h
}

func (t *table) Material(h MaterialHandle) (Material, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.materialAllocator.Valid(h) {
		return Material{}, false
	}
	entry, ok := t.materials[h.Index()]
	return entry.material, ok
}

func (t *table) ReleaseMaterial(h MaterialHandle) bool {
	t.mu.RLock()
	entry, ok := t.materials[h.Index()]
	t.mu.RUnlock()

	if !t.materialAllocator.Recycle(h) {
		return false
	}
	if ok && entry.ownsTexture {
		t.textureAllocator.Recycle(entry.material.Texture)
	}
	return true
}

func (t *table) RegisterTexture(data common.TextureData) TextureHandle {
	entry := Texture{
		Name:    data.Name,
		Width:   data.Width,
		Height:  data.Height,
		Pixels:  data.Pixels,
		Sampler: common.DefaultSampler(),
	}
	if data.Sampler != nil {
		entry.Sampler = *data.Sampler
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.textureAllocator.Reserve()
	t.textures[h.Index()] = entry
	return h
}

func (t *table) Texture(h TextureHandle) (Texture, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.textureAllocator.Valid(h) {
		return Texture{}, false
	}
	entry, ok := t.textures[h.Index()]
	return entry, ok
}

func (t *table) ReleaseTexture(h TextureHandle) bool {
	return t.textureAllocator.Recycle(h)
}

func (t *table) Flush() Released {
	t.mu.Lock()
	defer t.mu.Unlock()

	var released Released
	t.meshAllocator.Flush(func(h MeshHandle) {
		if entry, ok := t.meshes[h.Index()]; ok {
			for _, r := range entry.Attributes {
				t.storage.Free(r)
			}
			t.storage.Free(entry.IndexRange)
			delete(t.meshes, h.Index())
		}
		released.Meshes = append(released.Meshes, h)
	})
	t.materialAllocator.Flush(func(h MaterialHandle) {
		delete(t.materials, h.Index())
		released.Materials = append(released.Materials, h)
	})
	t.textureAllocator.Flush(func(h TextureHandle) {
		delete(t.textures, h.Index())
		released.Textures = append(released.Textures, h)
	})

	if len(released.Materials) > 0 {
		t.materialVersion++
	}
	return released
}

func (t *table) MeshCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.meshes)
}

func (t *table) MaterialSlots() int {
	return t.materialAllocator.Slots()
}

func (t *table) EachMaterial(fn func(h MaterialHandle, m Material)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for index := uint32(0); index < uint32(t.materialAllocator.Slots()); index++ {
		h, ok := t.materialAllocator.At(index)
		if !ok {
			continue
		}
		if entry, ok := t.materials[index]; ok {
			fn(h, entry.material)
		}
	}
}

func (t *table) MaterialVersion() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.materialVersion
}

func (t *table) Storage() megabuffer.Megabuffer {
	return t.storage
}

func (t *table) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.storage != nil {
		t.storage.Release()
		t.storage = nil
	}
}
