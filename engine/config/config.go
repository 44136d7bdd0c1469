// package config loads engine configuration from TOML files and supplies the
// defaults used when no file is given. Values here feed the engine, renderer,
// and storage builders; anything not set falls back to the defaults below.
package config

import (
	"fmt"
	"os"

	"github.com/kestrelgfx/kestrel-go/engine/light"
	"github.com/kestrelgfx/kestrel-go/engine/megabuffer"
	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration document.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Renderer RendererConfig `toml:"renderer"`
	Shadow   ShadowConfig   `toml:"shadow"`
	Storage  StorageConfig  `toml:"storage"`
}

// EngineConfig configures the frame loop.
type EngineConfig struct {
	// TickRate is the fixed update rate in ticks per second.
	TickRate float64 `toml:"tick_rate"`
	// RenderFrameLimit caps rendered frames per second. Zero means uncapped.
	RenderFrameLimit float64 `toml:"render_frame_limit"`
	// Profiling enables periodic frame/heap statistics logging.
	Profiling bool `toml:"profiling"`
}

// RendererConfig configures the pass orchestrator.
type RendererConfig struct {
	// LocalsIncrement is the instance-capacity step for the per-instance
	// locals buffer. Capacity always grows to the next multiple of this.
	LocalsIncrement uint32 `toml:"locals_increment"`
	// Wireframe starts the renderer in wireframe mode.
	Wireframe bool `toml:"wireframe"`
	// BackfaceCulling starts the renderer with back-face culling enabled.
	BackfaceCulling bool `toml:"backface_culling"`
	// FrustumCulling enables CPU-side sphere-vs-frustum rejection during
	// instance collection.
	FrustumCulling bool `toml:"frustum_culling"`
	// Workers is the worker pool size for parallel per-frame marshaling.
	// Zero selects a size based on the machine's core count.
	Workers int `toml:"workers"`
}

// ShadowConfig configures shadow map rendering.
type ShadowConfig struct {
	// Resolution is the width and height of each shadow map layer in texels.
	Resolution int `toml:"resolution"`
	// LayerIncrement is the layer-capacity step for the shadow map array.
	LayerIncrement int `toml:"layer_increment"`
	// HalfExtent is the orthographic half-size for directional light shadows,
	// in world units.
	HalfExtent float32 `toml:"half_extent"`
	// Near and Far bound the shadow projection depth range.
	Near float32 `toml:"near"`
	Far  float32 `toml:"far"`
	// Bias is the depth comparison bias applied during shadow sampling.
	Bias float32 `toml:"bias"`
	// NormalBiasScale multiplies the per-texel world size to derive the
	// normal-offset bias.
	NormalBiasScale float32 `toml:"normal_bias_scale"`
}

// StorageConfig configures the megabuffer.
type StorageConfig struct {
	// InitialCapacity is the starting size of the geometry megabuffer in
	// bytes.
	InitialCapacity uint64 `toml:"initial_capacity"`
}

// Default returns the configuration used when no file is supplied.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Engine: EngineConfig{
			TickRate:         60,
			RenderFrameLimit: 0,
			Profiling:        false,
		},
		Renderer: RendererConfig{
			LocalsIncrement: 256,
			Wireframe:       false,
			BackfaceCulling: true,
			FrustumCulling:  true,
			Workers:         0,
		},
		Shadow: ShadowConfig{
			Resolution:      light.ShadowMapResolution,
			LayerIncrement:  4,
			HalfExtent:      light.DefaultShadowHalfExtent,
			Near:            light.DefaultShadowNear,
			Far:             light.DefaultShadowFar,
			Bias:            light.DefaultShadowBias,
			NormalBiasScale: light.DefaultShadowNormalBiasScale,
		},
		Storage: StorageConfig{
			InitialCapacity: megabuffer.InitialCapacity,
		},
	}
}

// Load reads a TOML configuration file. Fields absent from the file keep
// their defaults, so a partial file overrides only what it names.
//
// Parameters:
//   - path: path to the TOML file
//
// Returns:
//   - Config: the merged configuration
//   - error: read or parse failure, or a validation error
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
//
// Returns:
//   - error: description of the first invalid field, or nil
func (c *Config) Validate() error {
	if c.Engine.TickRate <= 0 {
		return fmt.Errorf("config: engine.tick_rate must be positive, got %v", c.Engine.TickRate)
	}
	if c.Engine.RenderFrameLimit < 0 {
		return fmt.Errorf("config: engine.render_frame_limit must not be negative, got %v", c.Engine.RenderFrameLimit)
	}
	if c.Renderer.LocalsIncrement == 0 {
		return fmt.Errorf("config: renderer.locals_increment must be positive")
	}
	if c.Renderer.Workers < 0 {
		return fmt.Errorf("config: renderer.workers must not be negative, got %d", c.Renderer.Workers)
	}
	if c.Shadow.Resolution <= 0 {
		return fmt.Errorf("config: shadow.resolution must be positive, got %d", c.Shadow.Resolution)
	}
	if c.Shadow.LayerIncrement <= 0 {
		return fmt.Errorf("config: shadow.layer_increment must be positive, got %d", c.Shadow.LayerIncrement)
	}
	if c.Shadow.Near <= 0 || c.Shadow.Far <= c.Shadow.Near {
		return fmt.Errorf("config: shadow near/far range invalid: near %v far %v", c.Shadow.Near, c.Shadow.Far)
	}
	if c.Storage.InitialCapacity == 0 {
		return fmt.Errorf("config: storage.initial_capacity must be positive")
	}
	return nil
}
