package camera

import (
	"sync"

	"github.com/kestrelgfx/kestrel-go/common"
	"github.com/kestrelgfx/kestrel-go/engine/graph"
	"github.com/kestrelgfx/kestrel-go/engine/logger"
)

// Projection is the sealed set of camera projection variants. A camera is
// either perspective or orthographic; the variant carries only the parameter
// that distinguishes it, so a camera can never hold a field-of-view while
// tagged orthographic or vice versa.
type Projection interface {
	// matrix writes the projection matrix (column-major, WebGPU clip space)
	// into out.
	matrix(out []float32, aspect, near, far float32)
}

// Perspective is a perspective projection with a vertical field of view in
// radians.
type Perspective struct {
	FovY float32
}

// Orthographic is an orthographic projection with a vertical half-extent in
// world units. The horizontal half-extent follows the aspect ratio.
type Orthographic struct {
	Extent float32
}

func (p Perspective) matrix(out []float32, aspect, near, far float32) {
	common.Perspective(out, p.FovY, aspect, near, far)
}

func (o Orthographic) matrix(out []float32, aspect, near, far float32) {
	common.Ortho(out, -o.Extent*aspect, o.Extent*aspect, -o.Extent, o.Extent, near, far)
}

type cameraImpl struct {
	mu *sync.Mutex

	g      graph.Graph
	entity graph.Entity

	projection Projection
	aspect     float32
	near       float32
	far        float32

	position             [3]float32
	viewMatrix           [16]float32
	projectionMatrix     [16]float32
	viewProjectionMatrix [16]float32
}

// Camera derives view and projection matrices for a scene graph node. The
// node is the camera's mount: its world transform positions and orients the
// camera, and the view matrix is that transform's inverse. Moving a camera
// therefore means enqueueing transform commands against its node, same as any
// other node.
type Camera interface {
	// Entity returns the graph node the camera is mounted on.
	//
	// Returns:
	//   - graph.Entity: the camera's node
	Entity() graph.Entity

	// Projection returns the current projection variant.
	//
	// Returns:
	//   - Projection: Perspective or Orthographic
	Projection() Projection

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Position returns the camera's world-space position as of the last
	// Update.
	//
	// Returns:
	//   - [3]float32: position as (x, y, z)
	Position() [3]float32

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns the current combined view-projection matrix
	// as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the combined view-projection matrix
	ViewProjectionMatrix() [16]float32

	// Update recomputes the matrices from the mounted node's world transform
	// and the projection parameters. Should be called once per frame, after
	// the graph's world pass. If the mounted node no longer resolves, the
	// previous matrices are kept and a warning is logged.
	Update()

	// SetProjection replaces the projection variant.
	//
	// Parameters:
	//   - p: the new projection
	SetProjection(p Projection)

	// SetAspect sets the aspect ratio from a viewport size. Called by the
	// engine when the render target resizes.
	//
	// Parameters:
	//   - width: viewport width in pixels
	//   - height: viewport height in pixels
	SetAspect(width, height int)

	// SetNearFar sets the clipping plane distances.
	//
	// Parameters:
	//   - near: near plane distance (must be > 0)
	//   - far: far plane distance (must be > near)
	SetNearFar(near, far float32)
}

var _ Camera = &cameraImpl{}

func (c *cameraImpl) Entity() graph.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entity
}

func (c *cameraImpl) Projection() Projection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Position() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()

	world, ok := c.g.WorldTransform(c.entity)
	if !ok {
		logger.Warnf("camera: node %d no longer resolves; keeping previous matrices", c.entity)
		return
	}
	inv, _ := c.g.InverseWorldTransform(c.entity)

	c.position = [3]float32{world.Translation.X(), world.Translation.Y(), world.Translation.Z()}
	c.viewMatrix = [16]float32(inv)
	c.projection.matrix(c.projectionMatrix[:], c.aspect, c.near, c.far)
	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
}

func (c *cameraImpl) SetProjection(p Projection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == nil {
		logger.Warn("camera: ignoring nil projection")
		return
	}
	c.projection = p
}

func (c *cameraImpl) SetAspect(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width <= 0 || height <= 0 {
		return
	}
	c.aspect = float32(width) / float32(height)
}

func (c *cameraImpl) SetNearFar(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if near <= 0 || far <= near {
		logger.Warnf("camera: ignoring invalid near/far pair (%v, %v)", near, far)
		return
	}
	c.near = near
	c.far = far
}
