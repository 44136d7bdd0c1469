package camera

import (
	"math"
	"sync"

	"github.com/kestrelgfx/kestrel-go/engine/graph"
)

// CameraBuilderOption is a functional option for configuring a Camera.
// Use the With* functions to create options.
type CameraBuilderOption func(*cameraImpl)

// WithProjection sets the camera's projection variant. Default is
// Perspective with a 60° vertical field of view.
//
// Parameters:
//   - p: the projection (Perspective or Orthographic)
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's projection
func WithProjection(p Projection) CameraBuilderOption {
	return func(c *cameraImpl) {
		if p != nil {
			c.projection = p
		}
	}
}

// WithAspect sets the camera's aspect ratio (width / height). Default is
// 16:9; the engine overwrites this with the real viewport size on the first
// resize callback.
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if aspect > 0 {
			c.aspect = aspect
		}
	}
}

// WithNearFar sets the camera's clipping plane distances. Defaults are
// 0.1 and 1000.
//
// Parameters:
//   - near: near plane distance (must be > 0)
//   - far: far plane distance (must be > near)
//
// Returns:
//   - CameraBuilderOption: a function that sets the clipping planes
func WithNearFar(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if near > 0 && far > near {
			c.near = near
			c.far = far
		}
	}
}

// NewCamera creates a Camera mounted on the given scene graph node. The graph
// is required and NewCamera panics if it is nil; the entity is not checked
// here because nodes spawned after the camera may still mount it, but Update
// logs when the node does not resolve.
//
// Parameters:
//   - g: the scene graph the camera reads transforms from (must not be nil)
//   - entity: the node the camera is mounted on
//   - options: functional options to further configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(g graph.Graph, entity graph.Entity, options ...CameraBuilderOption) Camera {
	if g == nil {
		panic("camera: NewCamera requires a non-nil Graph")
	}

	c := &cameraImpl{
		mu:         &sync.Mutex{},
		g:          g,
		entity:     entity,
		projection: Perspective{FovY: float32(math.Pi / 3)},
		aspect:     16.0 / 9.0,
		near:       0.1,
		far:        1000,
	}
	for _, option := range options {
		option(c)
	}

	c.Update()
	return c
}
