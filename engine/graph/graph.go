package graph

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/kestrelgfx/kestrel-go/engine/asset"
	"github.com/kestrelgfx/kestrel-go/engine/logger"
)

// Renderable is one drawable node as seen by the renderer: the mesh to
// draw, the node's world transform, and how to resolve its material.
type Renderable struct {
	Entity      Entity
	Mesh        asset.MeshHandle
	World       Transform
	Override    asset.MaterialHandle
	HasOverride bool
	CastsShadow bool
}

// Graph is the scene: an append-only arena of hierarchical transform nodes.
// Nodes are spawned directly but mutated only through queued Commands, which
// the owning thread applies once per frame. Reads are safe from any
// goroutine between mutation phases; the graph serializes mutation against
// readers internally.
type Graph interface {
	// Spawn appends a node under parent and returns its entity. Spawning
	// with a parent that does not exist is a programmer error and panics.
	//
	// Parameters:
	//   - parent: entity of the parent node
	//   - opts: initial node configuration
	//
	// Returns:
	//   - Entity: the new node's entity
	Spawn(parent Entity, opts ...NodeOption) Entity

	// Enqueue appends commands to the pending queue in order. Safe to call
	// from any goroutine.
	//
	// Parameters:
	//   - cmds: the commands to queue
	Enqueue(cmds ...Command)

	// ProcessCommands drains the queue and applies every command in enqueue
	// order. Commands naming unknown entities are logged and skipped. Must
	// be called from the thread that owns the graph.
	//
	// Returns:
	//   - int: the number of commands applied
	ProcessCommands() int

	// UpdateWorld recomputes every node's cached world transform in one
	// forward pass over the arena, parents before children.
	UpdateWorld()

	// Len returns the number of nodes, including the root.
	Len() int

	// Parent returns the parent of e. ok is false for the root and for
	// unknown entities.
	Parent(e Entity) (Entity, bool)

	// LocalTransform returns e's local transform.
	LocalTransform(e Entity) (Transform, bool)

	// WorldTransform returns e's world transform: the composition of its
	// ancestors' locals from the root down to e. Served from the cache when
	// it is current, otherwise derived on the fly.
	WorldTransform(e Entity) (Transform, bool)

	// InverseWorldTransform returns the inverse of e's world transform as a
	// matrix, the form camera view matrices need.
	InverseWorldTransform(e Entity) (mgl32.Mat4, bool)

	// Active reports e's active flag.
	Active(e Entity) (bool, bool)

	// Visible reports e's visible flag.
	Visible(e Entity) (bool, bool)

	// Renderables appends every node that should be drawn this frame, in
	// index order, to dst and returns it. A node is drawable when it is
	// active, visible and carries a mesh; excluded nodes are filtered here,
	// at collection time, never at draw time.
	//
	// Parameters:
	//   - dst: destination slice, reused across frames to avoid allocation
	//
	// Returns:
	//   - []Renderable: dst with this frame's drawables appended
	Renderables(dst []Renderable) []Renderable
}

type graph struct {
	mu    *sync.RWMutex
	nodes []node
	queue commandQueue

	// spare holds the previously drained slice for reuse by the next drain.
	// Touched only by the consumer thread.
	spare []Command

	// fresh is true while the cached world transforms match the locals.
	fresh bool
}

var _ Graph = &graph{}

func (g *graph) Spawn(parent Entity, opts ...NodeOption) Entity {
	g.mu.Lock()
	defer g.mu.Unlock()

	if int(parent) >= len(g.nodes) {
		panic(fmt.Sprintf("graph: spawn: parent %d out of range (%d nodes)", parent, len(g.nodes)))
	}

	n := node{
		parent:      int32(parent),
		local:       Identity(),
		world:       Identity(),
		active:      true,
		visible:     true,
		castsShadow: true,
	}
	for _, opt := range opts {
		opt(&n)
	}
	g.nodes = append(g.nodes, n)
	g.fresh = false
	return Entity(len(g.nodes) - 1)
}

func (g *graph) Enqueue(cmds ...Command) {
	g.queue.push(cmds...)
}

func (g *graph) ProcessCommands() int {
	cmds := g.queue.drain(g.spare)
	if len(cmds) > 0 {
		g.mu.Lock()
		for _, cmd := range cmds {
			cmd.apply(g)
		}
		g.fresh = false
		g.mu.Unlock()
	}
	g.spare = cmds
	return len(cmds)
}

func (g *graph) UpdateWorld() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes[0].world = g.nodes[0].local
	for i := 1; i < len(g.nodes); i++ {
		n := &g.nodes[i]
		n.world = compose(g.nodes[n.parent].world, n.local)
	}
	g.fresh = true
}

func (g *graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *graph) Parent(e Entity) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if int(e) >= len(g.nodes) || g.nodes[e].parent < 0 {
		return 0, false
	}
	return Entity(g.nodes[e].parent), true
}

func (g *graph) LocalTransform(e Entity) (Transform, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if int(e) >= len(g.nodes) {
		return Transform{}, false
	}
	return g.nodes[e].local, true
}

func (g *graph) WorldTransform(e Entity) (Transform, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if int(e) >= len(g.nodes) {
		return Transform{}, false
	}
	return g.worldOf(int(e)), true
}

func (g *graph) InverseWorldTransform(e Entity) (mgl32.Mat4, bool) {
	w, ok := g.WorldTransform(e)
	if !ok {
		return mgl32.Ident4(), false
	}
	return w.Mat4().Inv(), true
}

func (g *graph) Active(e Entity) (bool, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if int(e) >= len(g.nodes) {
		return false, false
	}
	return g.nodes[e].active, true
}

func (g *graph) Visible(e Entity) (bool, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if int(e) >= len(g.nodes) {
		return false, false
	}
	return g.nodes[e].visible, true
}

func (g *graph) Renderables(dst []Renderable) []Renderable {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for i := range g.nodes {
		n := &g.nodes[i]
		if !n.active || !n.visible || !n.hasMesh {
			continue
		}
		dst = append(dst, Renderable{
			Entity:      Entity(i),
			Mesh:        n.mesh,
			World:       g.worldOf(i),
			Override:    n.override,
			HasOverride: n.hasOverride,
			CastsShadow: n.castsShadow,
		})
	}
	return dst
}

// worldOf returns node i's world transform, from the cache when current or
// by walking parent links when not. Callers hold at least the read lock.
func (g *graph) worldOf(i int) Transform {
	if g.fresh {
		return g.nodes[i].world
	}
	n := &g.nodes[i]
	if n.parent < 0 {
		return n.local
	}
	return compose(g.worldOf(int(n.parent)), n.local)
}

// target resolves a command's entity to its node, logging and returning nil
// when the entity was never spawned or is the immutable root. Called with
// the write lock held.
func (g *graph) target(e Entity, op string) *node {
	if e == Root {
		logger.Warnf("graph: %s targets the immutable root", op)
		return nil
	}
	if int(e) >= len(g.nodes) {
		logger.Warnf("graph: %s targets unknown entity %d (%d nodes)", op, e, len(g.nodes))
		return nil
	}
	return &g.nodes[e]
}
