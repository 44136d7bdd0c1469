package graph

import (
	"github.com/kestrelgfx/kestrel-go/engine/asset"
)

// Entity names a node in the graph. Entities are never destroyed; the value
// stays valid for the life of the graph. The root is Entity 0.
type Entity uint32

// Root is the entity of the immutable root node every graph starts with.
const Root Entity = 0

// node is one arena slot. parent is -1 only for the root; for every other
// node parent is a smaller index than the node's own, which lets a single
// forward pass compute world transforms.
type node struct {
	parent int32
	local  Transform
	world  Transform

	active  bool
	visible bool

	mesh        asset.MeshHandle
	hasMesh     bool
	castsShadow bool

	override    asset.MaterialHandle
	hasOverride bool
}

// NodeOption configures a node at spawn time. Use the With* functions to
// create options.
type NodeOption func(n *node)

// WithTransform sets the node's initial local transform. Default is the
// identity transform.
//
// Parameters:
//   - t: the local transform
//
// Returns:
//   - NodeOption: option function to apply
func WithTransform(t Transform) NodeOption {
	return func(n *node) {
		n.local = t
	}
}

// WithMesh attaches a mesh to the node, making it renderable. Nodes without
// a mesh are pure transform joints.
//
// Parameters:
//   - h: handle of the uploaded mesh
//
// Returns:
//   - NodeOption: option function to apply
func WithMesh(h asset.MeshHandle) NodeOption {
	return func(n *node) {
		n.mesh = h
		n.hasMesh = true
	}
}

// WithActive sets the node's initial active flag. Default is active.
//
// Parameters:
//   - active: whether the node participates in the frame
//
// Returns:
//   - NodeOption: option function to apply
func WithActive(active bool) NodeOption {
	return func(n *node) {
		n.active = active
	}
}

// WithVisible sets the node's initial visible flag. Default is visible.
//
// Parameters:
//   - visible: whether the node's mesh is drawn
//
// Returns:
//   - NodeOption: option function to apply
func WithVisible(visible bool) NodeOption {
	return func(n *node) {
		n.visible = visible
	}
}

// WithMaterialOverride forces every sub-mesh of the node's mesh to draw with
// the given material instead of its own.
//
// Parameters:
//   - h: handle of the override material
//
// Returns:
//   - NodeOption: option function to apply
func WithMaterialOverride(h asset.MaterialHandle) NodeOption {
	return func(n *node) {
		n.override = h
		n.hasOverride = true
	}
}

// WithShadowCasting controls whether the node's mesh renders into shadow
// maps. Default is casting.
//
// Parameters:
//   - casts: whether the mesh casts shadows
//
// Returns:
//   - NodeOption: option function to apply
func WithShadowCasting(casts bool) NodeOption {
	return func(n *node) {
		n.castsShadow = casts
	}
}
