package renderer

import (
	"github.com/kestrelgfx/kestrel-go/engine/config"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithConfig applies the renderer, shadow, and storage fields of a loaded
// configuration. Later options override individual fields.
//
// Parameters:
//   - cfg: the configuration to apply
//
// Returns:
//   - RendererBuilderOption: a function that applies the configuration to a renderer
func WithConfig(cfg config.Config) RendererBuilderOption {
	return func(r *renderer) {
		if cfg.Renderer.LocalsIncrement > 0 {
			r.localsIncrement = cfg.Renderer.LocalsIncrement
		}
		r.wireframe = cfg.Renderer.Wireframe
		r.backfaceCulling = cfg.Renderer.BackfaceCulling
		r.frustumCulling = cfg.Renderer.FrustumCulling
		if cfg.Renderer.Workers > 0 {
			r.workers = cfg.Renderer.Workers
		}
		if cfg.Storage.InitialCapacity > 0 {
			r.storageCapacity = cfg.Storage.InitialCapacity
		}
		if cfg.Shadow.Resolution > 0 {
			r.shadowResolution = cfg.Shadow.Resolution
		}
		if cfg.Shadow.LayerIncrement > 0 {
			r.shadowLayerIncrement = cfg.Shadow.LayerIncrement
		}
		if cfg.Shadow.HalfExtent > 0 {
			r.shadowHalfExtent = cfg.Shadow.HalfExtent
		}
		if cfg.Shadow.Near > 0 && cfg.Shadow.Far > cfg.Shadow.Near {
			r.shadowNear = cfg.Shadow.Near
			r.shadowFar = cfg.Shadow.Far
		}
		r.shadowBias = cfg.Shadow.Bias
		r.shadowNormalBiasScale = cfg.Shadow.NormalBiasScale
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count for the renderer.
// When not specified, the default is MSAA4x. Use MSAAOff to disable MSAA entirely.
// Higher values (MSAA8x, MSAA16x) are adapter-dependent and may not be supported
// by all hardware.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff, MSAA4x, MSAA8x, or MSAA16x)
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingMSAA = &count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe). Useful for benchmarking CPU vs GPU rendering performance.
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithLocalsIncrement sets the instance-capacity step for the per-instance
// locals buffer. The buffer grows in multiples of this step and never
// shrinks; larger steps trade memory for fewer mid-run reallocations.
//
// Parameters:
//   - entries: the capacity step in locals entries; ignored when zero
//
// Returns:
//   - RendererBuilderOption: a function that applies the locals increment option to a renderer
func WithLocalsIncrement(entries uint32) RendererBuilderOption {
	return func(r *renderer) {
		if entries > 0 {
			r.localsIncrement = entries
		}
	}
}

// WithStorageCapacity sets the initial size in bytes of the geometry
// megabuffer the renderer creates. The buffer grows on demand; sizing it for
// the scene up front avoids growth copies during loading.
//
// Parameters:
//   - bytes: the initial capacity in bytes; ignored when zero
//
// Returns:
//   - RendererBuilderOption: a function that applies the storage capacity option to a renderer
func WithStorageCapacity(bytes uint64) RendererBuilderOption {
	return func(r *renderer) {
		if bytes > 0 {
			r.storageCapacity = bytes
		}
	}
}

// WithShadowResolution sets the width and height in texels of each shadow map
// layer.
//
// Parameters:
//   - resolution: the per-layer resolution in texels; ignored when not positive
//
// Returns:
//   - RendererBuilderOption: a function that applies the shadow resolution option to a renderer
func WithShadowResolution(resolution int) RendererBuilderOption {
	return func(r *renderer) {
		if resolution > 0 {
			r.shadowResolution = resolution
		}
	}
}

// WithShadowLayerIncrement sets the layer-capacity step for the shadow map
// array. The array grows in multiples of this step as shadow-casting lights
// are added and never shrinks.
//
// Parameters:
//   - layers: the capacity step in layers; ignored when not positive
//
// Returns:
//   - RendererBuilderOption: a function that applies the shadow layer increment option to a renderer
func WithShadowLayerIncrement(layers int) RendererBuilderOption {
	return func(r *renderer) {
		if layers > 0 {
			r.shadowLayerIncrement = layers
		}
	}
}

// WithShadowExtent sets the orthographic half-extent and depth range of
// directional shadow frusta. The half-extent is the world-space distance from
// the frustum center to each side plane; scenes larger than the default need
// a wider extent to keep distant casters inside the map.
//
// Parameters:
//   - halfExtent: the orthographic half-extent in world units
//   - near: the near plane of the shadow projection
//   - far: the far plane of the shadow projection
//
// Returns:
//   - RendererBuilderOption: a function that applies the shadow extent option to a renderer
func WithShadowExtent(halfExtent, near, far float32) RendererBuilderOption {
	return func(r *renderer) {
		if halfExtent > 0 {
			r.shadowHalfExtent = halfExtent
		}
		if near > 0 && far > near {
			r.shadowNear = near
			r.shadowFar = far
		}
	}
}

// WithShadowBias sets the depth comparison bias and the normal-offset bias
// scale used during shadow sampling. Raising the bias reduces shadow acne at
// the cost of peter-panning.
//
// Parameters:
//   - bias: the constant depth bias applied to shadow comparisons
//   - normalBiasScale: the multiplier on the texel-derived normal-offset bias
//
// Returns:
//   - RendererBuilderOption: a function that applies the shadow bias option to a renderer
func WithShadowBias(bias, normalBiasScale float32) RendererBuilderOption {
	return func(r *renderer) {
		r.shadowBias = bias
		r.shadowNormalBiasScale = normalBiasScale
	}
}

// WithWireframe sets the initial wireframe state. The variant can be toggled
// at runtime via SetWireframe without recompiling pipelines.
//
// Parameters:
//   - enabled: true to start in wireframe mode
//
// Returns:
//   - RendererBuilderOption: a function that applies the wireframe option to a renderer
func WithWireframe(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.wireframe = enabled
	}
}

// WithBackfaceCulling sets the initial back-face culling state. Enabled by
// default; disable it for scenes with single-sided geometry viewed from both
// sides.
//
// Parameters:
//   - enabled: true to reject triangles facing away from the camera
//
// Returns:
//   - RendererBuilderOption: a function that applies the backface culling option to a renderer
func WithBackfaceCulling(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.backfaceCulling = enabled
	}
}

// WithFrustumCulling sets the initial CPU frustum culling state. Enabled by
// default.
//
// Parameters:
//   - enabled: true to skip instances outside the camera frustum at collection time
//
// Returns:
//   - RendererBuilderOption: a function that applies the frustum culling option to a renderer
func WithFrustumCulling(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.frustumCulling = enabled
	}
}

// WithWorkers sets the number of goroutines used for the parallel
// per-instance marshal phase. Defaults to NumCPU-1 with a floor of one.
//
// Parameters:
//   - n: the worker count; ignored when not positive
//
// Returns:
//   - RendererBuilderOption: a function that applies the workers option to a renderer
func WithWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithAmbient sets the initial ambient light color.
//
// Parameters:
//   - red, green, blue: the ambient RGB color
//
// Returns:
//   - RendererBuilderOption: a function that applies the ambient option to a renderer
func WithAmbient(red, green, blue float32) RendererBuilderOption {
	return func(r *renderer) {
		r.ambient = [3]float32{red, green, blue}
	}
}
