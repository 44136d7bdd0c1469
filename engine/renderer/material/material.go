// Package material maintains the GPU-facing material array. The CPU-side
// material records live in the asset table; this package mirrors them into a
// densely indexed storage array the shaders address by material index.
package material

import (
	"github.com/kestrelgfx/kestrel-go/engine/asset"
)

// Array mirrors the asset table's materials into a GPU-uploadable byte
// buffer, one 32-byte GPUMaterial per handle index. It tracks the table's
// material version so the rebuild runs only on frames where a material was
// registered or released.
type Array struct {
	version uint64
	synced  bool
	count   uint32
	data    []byte
}

// Sync rebuilds the array from the table when the table's material set
// changed since the last call.
//
// Parameters:
//   - t: the asset table to mirror
//
// Returns:
//   - bool: true when the array was rebuilt and must be re-uploaded
func (a *Array) Sync(t asset.Table) bool {
	version := t.MaterialVersion()
	if a.synced && version == a.version {
		return false
	}

	slots := t.MaterialSlots()
	entrySize := (&GPUMaterial{}).Size()
	need := slots * entrySize
	if cap(a.data) < need {
		a.data = make([]byte, need)
	}
	a.data = a.data[:need]

	// Released slots keep the placeholder entry so stale indices shade
	// predictably instead of reading freed data.
	placeholder := DefaultGPUMaterial()
	for i := 0; i < slots; i++ {
		copy(a.data[i*entrySize:], placeholder.Marshal())
	}
	t.EachMaterial(func(h asset.MaterialHandle, m asset.Material) {
		gpu := ToGPUMaterial(m)
		copy(a.data[int(h.Index())*entrySize:], gpu.Marshal())
	})

	a.version = version
	a.synced = true
	a.count = uint32(slots)
	return true
}

// Data returns the marshaled array bytes as of the last Sync.
//
// Returns:
//   - []byte: the array contents, one GPUMaterial per slot
func (a *Array) Data() []byte {
	return a.data
}

// Count returns the number of material slots in the array.
//
// Returns:
//   - uint32: the slot count
func (a *Array) Count() uint32 {
	return a.count
}
