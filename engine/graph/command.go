package graph

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/kestrelgfx/kestrel-go/engine/asset"
)

// Mode selects how a relative transform command combines with the node's
// current local transform.
type Mode uint8

const (
	// Pre concatenates the command's transform in front of the node's local
	// transform (PreConcat): the delta acts in the parent's frame.
	Pre Mode = iota
	// Post concatenates the command's transform after the node's local
	// transform (PostConcat): the delta acts in the node's own frame.
	Post
)

// Command is one deferred graph mutation. The set of commands is closed;
// each variant carries its target entity and operands. Commands targeting an
// entity that was never spawned are logged and skipped during processing.
type Command interface {
	// apply mutates the target node. Called on the graph's owning thread
	// with the write lock held.
	apply(g *graph)
}

// Translate moves the target node by Delta.
type Translate struct {
	Entity Entity
	Delta  mgl32.Vec3
	Mode   Mode
}

// Rotate rotates the target node by Rotation.
type Rotate struct {
	Entity   Entity
	Rotation mgl32.Quat
	Mode     Mode
}

// Scale scales the target node by Factors, component-wise.
type Scale struct {
	Entity  Entity
	Factors mgl32.Vec3
	Mode    Mode
}

// SetTransform replaces the target node's local transform.
type SetTransform struct {
	Entity    Entity
	Transform Transform
}

// CameraOrbit pre-concatenates a rotation built from the target node's
// current local axes, read before the update: yaw of RotationY radians about
// the node's local Y axis combined with pitch of RotationX radians about its
// local X axis. Orbiting a node whose translation is an offset from its
// parent swings it around the parent while keeping it faced the same way
// relative to the pivot.
type CameraOrbit struct {
	Entity    Entity
	RotationX float32
	RotationY float32
}

// SetActive flips the target node's active flag. Inactive nodes are excluded
// from rendering and light collection.
type SetActive struct {
	Entity Entity
	Active bool
}

// SetVisible flips the target node's visible flag. Hidden nodes keep
// participating in the frame but are not drawn.
type SetVisible struct {
	Entity  Entity
	Visible bool
}

// SetMaterial overrides the material of every sub-mesh drawn for the target
// node.
type SetMaterial struct {
	Entity   Entity
	Material asset.MaterialHandle
}

// ClearMaterialOverride removes the target node's material override,
// returning its sub-meshes to their own materials.
type ClearMaterialOverride struct {
	Entity Entity
}

func (c Translate) apply(g *graph) {
	n := g.target(c.Entity, "Translate")
	if n == nil {
		return
	}
	n.local = concat(n.local, FromTranslation(c.Delta), c.Mode)
}

func (c Rotate) apply(g *graph) {
	n := g.target(c.Entity, "Rotate")
	if n == nil {
		return
	}
	n.local = concat(n.local, FromRotation(c.Rotation), c.Mode)
}

func (c Scale) apply(g *graph) {
	n := g.target(c.Entity, "Scale")
	if n == nil {
		return
	}
	n.local = concat(n.local, FromScale(c.Factors), c.Mode)
}

func (c SetTransform) apply(g *graph) {
	n := g.target(c.Entity, "SetTransform")
	if n == nil {
		return
	}
	n.local = c.Transform
}

func (c CameraOrbit) apply(g *graph) {
	n := g.target(c.Entity, "CameraOrbit")
	if n == nil {
		return
	}
	// Both axes come from the rotation as it is before this command.
	xAxis := n.local.Rotation.Rotate(mgl32.Vec3{1, 0, 0})
	yAxis := n.local.Rotation.Rotate(mgl32.Vec3{0, 1, 0})
	yaw := mgl32.QuatRotate(c.RotationY, yAxis)
	pitch := mgl32.QuatRotate(c.RotationX, xAxis)
	n.local = n.local.PreConcat(FromRotation(yaw.Mul(pitch)))
}

func (c SetActive) apply(g *graph) {
	n := g.target(c.Entity, "SetActive")
	if n == nil {
		return
	}
	n.active = c.Active
}

func (c SetVisible) apply(g *graph) {
	n := g.target(c.Entity, "SetVisible")
	if n == nil {
		return
	}
	n.visible = c.Visible
}

func (c SetMaterial) apply(g *graph) {
	n := g.target(c.Entity, "SetMaterial")
	if n == nil {
		return
	}
	n.override = c.Material
	n.hasOverride = true
}

func (c ClearMaterialOverride) apply(g *graph) {
	n := g.target(c.Entity, "ClearMaterialOverride")
	if n == nil {
		return
	}
	n.override = asset.MaterialHandle{}
	n.hasOverride = false
}

// concat combines the node's local transform with a command delta according
// to the command's mode.
func concat(local, delta Transform, mode Mode) Transform {
	if mode == Post {
		return local.PostConcat(delta)
	}
	return local.PreConcat(delta)
}
