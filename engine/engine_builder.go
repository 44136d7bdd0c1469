package engine

import (
	"time"

	"github.com/kestrelgfx/kestrel-go/engine/config"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// The tick callback will be called at this rate for game logic updates.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Second / time.Duration(fps)
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Second / time.Duration(fps)
	}
}

// WithConfig applies the frame-loop fields of a loaded configuration: tick
// rate, render frame limit, and profiling. Renderer, shadow, and storage
// fields of the config are consumed by the renderer's own WithConfig option.
//
// Parameters:
//   - cfg: the configuration to apply
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		if cfg.Engine.TickRate > 0 {
			e.engineTickRate = time.Second / time.Duration(cfg.Engine.TickRate)
		}
		if cfg.Engine.RenderFrameLimit > 0 {
			e.renderFrameLimit = time.Second / time.Duration(cfg.Engine.RenderFrameLimit)
		} else {
			e.renderFrameLimit = 0
		}
		e.profilingEnabled = cfg.Engine.Profiling
	}
}
