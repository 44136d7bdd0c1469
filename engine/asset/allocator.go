package asset

import "sync"

type slotState uint8

const (
	slotFree slotState = iota
	slotLive
	slotPending
)

// HandleAllocator issues generation-tagged handles and recycles freed slots
// through an explicit two-phase protocol: Recycle marks a handle dead and
// queues its index, Flush frees the backing data and only then makes the
// index available for reuse. Reserving a reused index bumps the slot's
// generation, so handles from before the recycle can never alias the new
// asset.
//
// The zero value is ready to use. Reserve and Recycle are safe for
// concurrent use; Flush must run on the thread that owns GPU command
// submission, since the free callback touches device-visible resources.
type HandleAllocator[T any] struct {
	mu          sync.Mutex
	generations []uint32
	states      []slotState
	pending     []uint32
	ready       []uint32
}

// Reserve returns a handle to an unused slot. Indices drained through Flush
// are reused first, oldest first, each at a freshly incremented generation;
// otherwise a new index is issued at generation 0.
func (a *HandleAllocator[T]) Reserve() Handle[T] {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.ready) > 0 {
		index := a.ready[0]
		a.ready = a.ready[1:]
		a.generations[index]++
		a.states[index] = slotLive
		return Handle[T]{generation: a.generations[index], index: index}
	}

	index := uint32(len(a.generations))
	a.generations = append(a.generations, 0)
	a.states = append(a.states, slotLive)
	return Handle[T]{generation: 0, index: index}
}

// Recycle marks h dead and queues its index for reuse. The backing data is
// not freed until the next Flush. Returns false when h is stale or already
// recycled, in which case nothing changes.
func (a *HandleAllocator[T]) Recycle(h Handle[T]) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.live(h) {
		return false
	}
	a.states[h.index] = slotPending
	a.pending = append(a.pending, h.index)
	return true
}

// Flush drains the pending-recycle queue, invoking free for each drained
// handle so the owner can release backing storage and clear its table slot.
// Drained indices only become reservable after their free callback has run,
// which orders every recycle strictly before the reuse of its index. free
// must not call back into the allocator.
func (a *HandleAllocator[T]) Flush(free func(h Handle[T])) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, index := range a.pending {
		if free != nil {
			free(Handle[T]{generation: a.generations[index], index: index})
		}
		a.states[index] = slotFree
		a.ready = append(a.ready, index)
	}
	a.pending = a.pending[:0]
}

// Valid reports whether h refers to a live slot at the current generation.
// Recycled handles are invalid immediately, before their index is flushed
// or reused.
func (a *HandleAllocator[T]) Valid(h Handle[T]) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live(h)
}

// At returns the live handle currently occupying index, if any.
func (a *HandleAllocator[T]) At(index uint32) (Handle[T], bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index >= uint32(len(a.states)) || a.states[index] != slotLive {
		return Handle[T]{}, false
	}
	return Handle[T]{generation: a.generations[index], index: index}, true
}

// Slots returns the total number of indices ever issued, live or not. The
// renderer sizes handle-indexed GPU arrays from this.
func (a *HandleAllocator[T]) Slots() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.generations)
}

// Live returns the number of live slots.
func (a *HandleAllocator[T]) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, s := range a.states {
		if s == slotLive {
			n++
		}
	}
	return n
}

func (a *HandleAllocator[T]) live(h Handle[T]) bool {
	return h.index < uint32(len(a.states)) &&
		a.states[h.index] == slotLive &&
		a.generations[h.index] == h.generation
}
