// Package renderer drives the per-frame pass sequence: it collects drawable
// instances from the scene graph, bundles them by mesh and resolved material,
// marshals per-instance data into a growable locals storage buffer, renders
// one shadow map layer per shadow-casting light, and draws every bundle with
// one instanced call per sub-mesh. Geometry is never copied per frame —
// vertex and index data stay in the geometry megabuffer and draws address it
// through byte offsets.
//
// The main pass binds four groups in a fixed order that supplied WGSL must
// match:
//
//	group 0: globals   — binding 0 camera uniform
//	group 1: locals    — binding 0 per-instance storage array
//	group 2: materials — binding 0 material array, binding 1 texture, binding 2 sampler
//	group 3: lights    — binding 0 header, binding 1 light array,
//	                     binding 2 shadow data array, binding 3 shadow map array,
//	                     binding 4 comparison sampler
//
// Shadow passes bind group 0 (per-layer light transform, dynamic offset) and
// group 1 (the same locals array).
package renderer

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/kestrelgfx/kestrel-go/common"
	"github.com/kestrelgfx/kestrel-go/engine/asset"
	"github.com/kestrelgfx/kestrel-go/engine/camera"
	"github.com/kestrelgfx/kestrel-go/engine/graph"
	"github.com/kestrelgfx/kestrel-go/engine/light"
	"github.com/kestrelgfx/kestrel-go/engine/logger"
	"github.com/kestrelgfx/kestrel-go/engine/megabuffer"
	"github.com/kestrelgfx/kestrel-go/engine/renderer/binding"
	"github.com/kestrelgfx/kestrel-go/engine/renderer/material"
	"github.com/kestrelgfx/kestrel-go/engine/renderer/pipeline"
	"github.com/kestrelgfx/kestrel-go/engine/renderer/shader"
	"github.com/kestrelgfx/kestrel-go/engine/window"
)

const (
	// localStride is the byte size of one locals entry: model matrix (64),
	// inverse-transpose normal matrix (64), material index (4), padding (12).
	localStride = 144

	// shadowUniformStride spaces per-layer shadow uniforms in their shared
	// buffer at the minimum WebGPU dynamic-offset alignment.
	shadowUniformStride = 256

	// shadowDataStride is the byte size of one GPUShadowData entry.
	shadowDataStride = 80

	// materialStride is the byte size of one GPUMaterial entry.
	materialStride = 32

	// gpuLightStride is the byte size of one GPULight entry.
	gpuLightStride = 64
)

const (
	// DefaultLocalsIncrement is the instance-capacity step for the locals
	// buffer when no option overrides it.
	DefaultLocalsIncrement uint32 = 256

	// DefaultShadowLayerIncrement is the layer-capacity step for the shadow
	// map array when no option overrides it.
	DefaultShadowLayerIncrement = 4
)

// bundleKey identifies one draw bundle: every instance sharing a mesh and a
// material override lands in the same bundle.
type bundleKey struct {
	mesh        asset.MeshHandle
	override    asset.MaterialHandle
	hasOverride bool
}

// instance is one collected graph node within a bundle.
type instance struct {
	world       graph.Transform
	castsShadow bool
}

// bundle groups the frame's instances of one (mesh, override) pair. Its
// locals entries are laid out as one contiguous block per sub-mesh, each
// block holding every instance, so sub-mesh s of a bundle with n instances
// draws with first instance base + s*n. Shadow-casting instances are kept at
// the front of the instance list so shadow passes draw a prefix.
type bundle struct {
	key             bundleKey
	mesh            asset.Mesh
	materialIndices []uint32 // resolved material per sub-mesh
	instances       []instance
	shadowCount     int
	base            uint32 // first locals entry of this bundle
}

// entryCount returns the number of locals entries the bundle occupies.
func (b *bundle) entryCount() int {
	return len(b.instances) * len(b.mesh.SubMeshes)
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	g       graph.Graph
	table   asset.Table
	cameras camera.Registry

	pipelineCache  map[string]pipeline.Pipeline
	shadowPipeline pipeline.Pipeline

	globalsBGP   binding.Provider
	localsBGP    binding.Provider
	materialsBGP binding.Provider
	lightsBGP    binding.Provider
	shadowBGP    binding.Provider

	materials        material.Array
	materialCapacity uint64

	lights  []light.Light
	ambient [3]float32

	wireframe       bool
	backfaceCulling bool
	frustumCulling  bool

	localsIncrement       uint32
	storageCapacity       uint64
	shadowResolution      int
	shadowLayerIncrement  int
	shadowHalfExtent      float32
	shadowNear            float32
	shadowFar             float32
	shadowBias            float32
	shadowNormalBiasScale float32

	localsCapacity uint32 // in entries of localStride bytes
	localsScratch  []byte

	shadowLayers     int
	shadowTexture    *wgpu.Texture
	shadowLayerViews []*wgpu.TextureView

	// Per-frame scratch reused across frames to keep the steady state
	// allocation-free.
	renderables []graph.Renderable
	collected   []light.Light
	shadowData  []light.GPUShadowData
	bundles     []bundle
	bundleIndex map[bundleKey]int
	writePool   []binding.BufferWrite

	// marshalPool manages a bounded set of reusable goroutines for the
	// parallel locals marshal phase. Workers persist across frames, avoiding
	// per-frame goroutine spawn/teardown overhead.
	marshalPool worker.DynamicWorkerPool
	workers     int

	warnedNoCamera bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
}

// Renderer orchestrates the frame: shadow passes for every collected
// shadow-casting light, then the main pass over every visible bundle. The
// Renderer owns the GPU-facing half of the engine — pipelines, bind groups,
// the locals and light buffers, and the shadow map array — while the scene
// graph and the asset table stay CPU-side collaborators it reads from each
// frame.
type Renderer interface {
	// Backend returns the GPU backend for device and queue access, used when
	// wrapping the device for megabuffer storage or recording upload encoders.
	//
	// Returns:
	//   - RendererBackend: the active backend
	Backend() RendererBackend

	// Table returns the asset table the renderer created on its device.
	// Meshes uploaded and materials registered through it are what RenderFrame
	// resolves handles against.
	//
	// Returns:
	//   - asset.Table: the renderer's asset table
	Table() asset.Table

	// RegisterShaders compiles the main pass shaders into all four pipeline
	// variants (solid/wireframe crossed with culling on/off) and the shadow
	// vertex shader into the depth-only shadow pipeline. Must be called once
	// before the first RenderFrame.
	//
	// Parameters:
	//   - vertex: the main pass vertex shader
	//   - fragment: the main pass fragment shader
	//   - shadowVertex: the depth-only shadow pass vertex shader
	//
	// Returns:
	//   - error: an error if any pipeline fails to compile
	RegisterShaders(vertex, fragment, shadowVertex shader.Shader) error

	// RenderFrame runs the full per-frame sequence: collect, bundle, marshal,
	// shadow passes, main pass, present. Safe to call with nothing to draw.
	//
	// Returns:
	//   - error: a surface acquisition failure; the caller decides whether to
	//     reconfigure and retry or terminate
	RenderFrame() error

	// Resize reconfigures the surface and updates the aspect ratio of every
	// registered camera.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode. A call to Resize is
	// required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// Pipeline retrieves the cached Pipeline associated with the given key,
	// or nil if not registered.
	//
	// Parameters:
	//   - key: the pipeline cache key
	//
	// Returns:
	//   - pipeline.Pipeline: the cached pipeline, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// SetWireframe selects the wireframe pipeline variant for subsequent
	// frames.
	//
	// Parameters:
	//   - enabled: true to draw edges instead of filled triangles
	SetWireframe(enabled bool)

	// Wireframe reports whether the wireframe variant is active.
	//
	// Returns:
	//   - bool: true when wireframe rendering is enabled
	Wireframe() bool

	// SetBackfaceCulling selects the back-face culling pipeline variant for
	// subsequent frames.
	//
	// Parameters:
	//   - enabled: true to reject triangles facing away from the camera
	SetBackfaceCulling(enabled bool)

	// BackfaceCulling reports whether back-face culling is active.
	//
	// Returns:
	//   - bool: true when back-face culling is enabled
	BackfaceCulling() bool

	// SetFrustumCulling toggles CPU-side sphere-versus-frustum rejection
	// during instance collection.
	//
	// Parameters:
	//   - enabled: true to skip instances outside the camera frustum
	SetFrustumCulling(enabled bool)

	// FrustumCulling reports whether collection-time frustum culling is
	// active.
	//
	// Returns:
	//   - bool: true when frustum culling is enabled
	FrustumCulling() bool

	// SetAmbient sets the ambient light color added to every lit fragment.
	//
	// Parameters:
	//   - r, g, b: the ambient RGB color
	SetAmbient(r, g, b float32)

	// AddLight adds a light to the frame's light set. Lights beyond the
	// per-type budgets are dropped at collection time in registration order.
	//
	// Parameters:
	//   - l: the light to add
	AddLight(l light.Light)

	// RemoveLight removes a previously added light. Unknown lights are
	// ignored.
	//
	// Parameters:
	//   - l: the light to remove
	RemoveLight(l light.Light)

	// Lights returns a snapshot of the registered lights.
	//
	// Returns:
	//   - []light.Light: a copy of the light list
	Lights() []light.Light

	// SetTexture binds a registered texture as the frame texture sampled by
	// materials whose HasTexture flag is set.
	//
	// Parameters:
	//   - h: handle of a texture registered with the asset table
	//
	// Returns:
	//   - error: an error if the handle is stale or GPU upload fails
	SetTexture(h asset.TextureHandle) error

	// Release frees the GPU resources owned by the renderer: bind groups,
	// buffers, and the shadow map array.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer bound to a window surface, a scene graph,
// and a camera registry. The backend is initialized immediately: surface
// configuration, bind group layouts, the initial locals and light buffers, a
// fallback 1×1 white texture, and the shadow map array all exist when
// NewRenderer returns. The renderer also creates the geometry megabuffer and
// the asset table on its own device — retrieve the table with Table() to
// upload meshes and register materials. Pipelines are compiled later via
// RegisterShaders, once the application has supplied its WGSL.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - win: the window supplying the surface descriptor and initial size
//   - g: the scene graph instances are collected from
//   - cameras: the camera registry consulted for the main camera each frame
//   - options: variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: a new Renderer instance
func NewRenderer(backendType RendererBackendType, win window.Window, g graph.Graph, cameras camera.Registry, options ...RendererBuilderOption) Renderer {
	if win == nil {
		panic("renderer: NewRenderer requires a non-nil Window")
	}
	if g == nil {
		panic("renderer: NewRenderer requires a non-nil Graph")
	}
	if cameras == nil {
		panic("renderer: NewRenderer requires a non-nil camera Registry")
	}

	r := &renderer{
		mu:                    &sync.Mutex{},
		backendType:           backendType,
		g:                     g,
		cameras:               cameras,
		pipelineCache:         make(map[string]pipeline.Pipeline),
		bundleIndex:           make(map[bundleKey]int),
		backfaceCulling:       true,
		frustumCulling:        true,
		localsIncrement:       DefaultLocalsIncrement,
		storageCapacity:       megabuffer.InitialCapacity,
		shadowResolution:      light.ShadowMapResolution,
		shadowLayerIncrement:  DefaultShadowLayerIncrement,
		shadowHalfExtent:      light.DefaultShadowHalfExtent,
		shadowNear:            light.DefaultShadowNear,
		shadowFar:             light.DefaultShadowFar,
		shadowBias:            light.DefaultShadowBias,
		shadowNormalBiasScale: light.DefaultShadowNormalBiasScale,
		workers:               max(runtime.NumCPU()-1, 1),
	}

	// Apply options first so pre-creation config (e.g. the fallback adapter
	// flag) is in place before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	msaa := MSAA4x
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(win.SurfaceDescriptor(), r.forceFallbackAdapter, msaa)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	r.backend.ConfigureSurface(win.Width(), win.Height())

	// Geometry storage and the asset table live on the renderer's device so
	// draws can address mesh bytes directly.
	storage := megabuffer.NewMegabuffer(
		megabuffer.WrapDevice(r.backend.Device(), megabuffer.DefaultUsage),
		megabuffer.WrapQueue(r.backend.Queue()),
		megabuffer.WithInitialCapacity(r.storageCapacity),
		megabuffer.WithLabel("geometry"),
	)
	r.table = asset.NewTable(storage)

	// Queue size of 256 accommodates typical bundle counts with headroom.
	r.marshalPool = worker.NewDynamicWorkerPool(r.workers, 256, 1*time.Second)

	if err := r.initGPUState(); err != nil {
		panic(fmt.Sprintf("renderer: failed to initialize GPU state: %v", err))
	}

	return r
}

// initGPUState builds the bind group providers, their initial buffers, the
// fallback texture, and the shadow map array.
func (r *renderer) initGPUState() error {
	r.globalsBGP = binding.NewProvider("Globals")
	r.localsBGP = binding.NewProvider("Locals")
	r.materialsBGP = binding.NewProvider("Materials")
	r.lightsBGP = binding.NewProvider("Lights")
	r.shadowBGP = binding.NewProvider("Shadow Pass")

	if err := r.backend.InitBindGroup(r.globalsBGP, globalsLayout(), nil, nil); err != nil {
		return fmt.Errorf("globals bind group: %w", err)
	}

	r.localsCapacity = r.localsIncrement
	r.localsScratch = make([]byte, int(r.localsCapacity)*localStride)
	if err := r.backend.InitBindGroup(r.localsBGP, localsLayout(), nil, map[int]uint64{
		0: uint64(r.localsCapacity) * localStride,
	}); err != nil {
		return fmt.Errorf("locals bind group: %w", err)
	}

	// Fallback 1×1 white texture so material bind groups are complete before
	// the application registers any texture of its own.
	white := common.TextureData{
		Name:   "fallback-white",
		Pixels: []byte{0xff, 0xff, 0xff, 0xff},
		Width:  1,
		Height: 1,
	}
	if err := r.backend.InitTextureView(r.materialsBGP, 1, white); err != nil {
		return fmt.Errorf("fallback texture: %w", err)
	}
	if err := r.backend.InitSampler(r.materialsBGP, 2, common.DefaultSampler()); err != nil {
		return fmt.Errorf("fallback sampler: %w", err)
	}
	r.materialCapacity = materialStride
	if err := r.backend.InitBindGroup(r.materialsBGP, materialsLayout(), nil, map[int]uint64{
		0: r.materialCapacity,
	}); err != nil {
		return fmt.Errorf("materials bind group: %w", err)
	}

	r.shadowLayers = r.shadowLayerIncrement
	tex, arrayView, layerViews, err := r.backend.CreateShadowDepthArray(r.shadowResolution, r.shadowLayers)
	if err != nil {
		return err
	}
	r.shadowTexture = tex
	r.shadowLayerViews = layerViews

	r.lightsBGP.SetTextureView(3, arrayView)
	comparison, err := r.backend.CreateComparisonSampler()
	if err != nil {
		return err
	}
	r.lightsBGP.SetSampler(4, comparison)
	if err := r.backend.InitBindGroup(r.lightsBGP, lightsLayout(), nil, map[int]uint64{
		1: light.MaxGPULights * gpuLightStride,
		2: uint64(r.shadowLayers) * shadowDataStride,
	}); err != nil {
		return fmt.Errorf("lights bind group: %w", err)
	}

	if err := r.backend.InitBindGroup(r.shadowBGP, shadowLayout(), nil, map[int]uint64{
		0: uint64(r.shadowLayers) * shadowUniformStride,
	}); err != nil {
		return fmt.Errorf("shadow bind group: %w", err)
	}

	return nil
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) Table() asset.Table {
	return r.table
}

func (r *renderer) RegisterShaders(vertex, fragment, shadowVertex shader.Shader) error {
	if vertex == nil || fragment == nil || shadowVertex == nil {
		return fmt.Errorf("renderer: RegisterShaders requires vertex, fragment, and shadow shaders")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	mainLayouts := []*wgpu.BindGroupLayout{
		r.globalsBGP.BindGroupLayout(),
		r.localsBGP.BindGroupLayout(),
		r.materialsBGP.BindGroupLayout(),
		r.lightsBGP.BindGroupLayout(),
	}
	for _, v := range pipeline.Variants() {
		p := pipeline.ForVariant(v, vertex, fragment)
		if err := r.backend.RegisterRenderPipeline(p, mainLayouts); err != nil {
			return fmt.Errorf("renderer: register %s pipeline: %w", p.PipelineKey(), err)
		}
		r.pipelineCache[p.PipelineKey()] = p
	}

	shadowLayouts := []*wgpu.BindGroupLayout{
		r.shadowBGP.BindGroupLayout(),
		r.localsBGP.BindGroupLayout(),
	}
	sp := pipeline.NewPipeline(pipeline.ShadowKey,
		pipeline.WithVertexShader(shadowVertex),
		pipeline.WithDepthBias(2, 2.0),
	)
	if err := r.backend.RegisterShadowPipeline(sp, shadowLayouts); err != nil {
		return fmt.Errorf("renderer: register shadow pipeline: %w", err)
	}
	r.shadowPipeline = sp
	r.pipelineCache[sp.PipelineKey()] = sp

	return nil
}

func (r *renderer) RenderFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cam := r.cameras.Main()
	if cam == nil {
		if !r.warnedNoCamera {
			logger.Warn("renderer: no camera registered; skipping frames until one is added")
			r.warnedNoCamera = true
		}
		return nil
	}
	r.warnedNoCamera = false

	variant := pipeline.Variant{Wireframe: r.wireframe, BackfaceCulling: r.backfaceCulling}
	mainPipeline := r.pipelineCache[variant.Key()]
	if mainPipeline == nil || r.shadowPipeline == nil {
		return fmt.Errorf("renderer: pipelines not registered; call RegisterShaders first")
	}

	cam.Update()

	// CPU phase: collect instances into bundles, lay out their locals
	// entries, and pick this frame's lights.
	totalEntries := r.collectFrame(cam)
	r.collected = light.Collect(r.collected[:0], r.lights)
	casters := light.ShadowCasterCount(r.collected)

	// Capacity phase: the locals buffer and the shadow map array only ever
	// grow, in fixed steps, so steady-state frames never touch the device.
	r.ensureLocalsCapacity(uint32(totalEntries))
	r.ensureShadowCapacity(casters)

	r.writePool = r.writePool[:0]
	r.stageGlobals(cam)
	r.stageLights(cam)
	r.stageMaterials()

	// Parallel phase: marshal every bundle's locals block. Workers are
	// reused across frames; a WaitGroup provides the per-frame barrier since
	// pool.Wait() blocks until workers idle-exit, which is unsuitable for
	// frame-rate workloads.
	if totalEntries > 0 {
		var wg sync.WaitGroup
		for i := range r.bundles {
			b := &r.bundles[i]
			wg.Add(1)
			r.marshalPool.SubmitTask(worker.Task{
				ID: i,
				Do: func() (any, error) {
					defer wg.Done()
					r.marshalBundleLocals(b, r.localsScratch)
					return nil, nil
				},
			})
		}
		wg.Wait()

		r.writePool = append(r.writePool, binding.BufferWrite{
			Provider: r.localsBGP,
			Binding:  0,
			Offset:   0,
			Data:     r.localsScratch[:totalEntries*localStride],
		})
	}

	// One flush for every CPU-to-GPU write of the frame.
	r.backend.WriteBuffers(r.writePool)

	if casters > 0 && len(r.bundles) > 0 {
		if err := r.backend.BeginShadowFrame(); err != nil {
			return fmt.Errorf("renderer: begin shadow frame: %w", err)
		}
		for layer := 0; layer < casters; layer++ {
			r.backend.BeginShadowPass(r.shadowLayerViews[layer])
			r.encodeShadowDraws(layer)
			r.backend.EndShadowPass()
		}
		r.backend.EndShadowFrame()
	}

	if err := r.backend.BeginFrame(); err != nil {
		return fmt.Errorf("renderer: begin frame: %w", err)
	}
	r.encodeMainDraws(mainPipeline)
	r.backend.EndFrame()
	r.backend.Present()

	return nil
}

// collectFrame gathers this frame's drawable instances into bundles and
// assigns each bundle its base offset in the locals buffer. Returns the total
// number of locals entries the frame needs.
func (r *renderer) collectFrame(cam camera.Camera) int {
	r.renderables = r.g.Renderables(r.renderables[:0])
	r.bundles = r.bundles[:0]
	clear(r.bundleIndex)

	var frustum common.Frustum
	cull := r.frustumCulling && cam != nil
	if cull {
		vp := cam.ViewProjectionMatrix()
		frustum = common.ExtractFrustumFromMatrix(vp[:])
	}

	for _, rb := range r.renderables {
		mesh, ok := r.table.Mesh(rb.Mesh)
		if !ok {
			logger.Warn("renderer: stale mesh handle; skipping instance", "mesh", rb.Mesh.String(), "entity", rb.Entity)
			continue
		}

		if cull {
			center, radius := worldBounds(mesh.Bounds, rb.World)
			if !frustum.ContainsSphere(center, radius) {
				continue
			}
		}

		override, hasOverride := rb.Override, rb.HasOverride
		if hasOverride {
			if _, ok := r.table.Material(override); !ok {
				logger.Warn("renderer: stale material override; using mesh materials", "material", override.String(), "entity", rb.Entity)
				override, hasOverride = asset.MaterialHandle{}, false
			}
		}

		key := bundleKey{mesh: rb.Mesh, override: override, hasOverride: hasOverride}
		idx, ok := r.bundleIndex[key]
		if !ok {
			idx = len(r.bundles)
			r.bundles = append(r.bundles, bundle{
				key:             key,
				mesh:            mesh,
				materialIndices: resolveMaterialIndices(mesh, override, hasOverride),
			})
			r.bundleIndex[key] = idx
		}

		b := &r.bundles[idx]
		b.instances = append(b.instances, instance{world: rb.World, castsShadow: rb.CastsShadow})
		if rb.CastsShadow {
			// Keep casters contiguous at the front so shadow passes draw a
			// prefix of the bundle's instances.
			last := len(b.instances) - 1
			b.instances[last], b.instances[b.shadowCount] = b.instances[b.shadowCount], b.instances[last]
			b.shadowCount++
		}
	}

	total := 0
	for i := range r.bundles {
		r.bundles[i].base = uint32(total)
		total += r.bundles[i].entryCount()
	}
	return total
}

// marshalBundleLocals writes the bundle's locals entries into dst. The model
// and normal matrices are computed once per instance and replicated into each
// sub-mesh block with that block's resolved material index.
func (r *renderer) marshalBundleLocals(b *bundle, dst []byte) {
	n := len(b.instances)
	var inv, normal [16]float32
	for i, inst := range b.instances {
		model := [16]float32(inst.world.Mat4())
		if !common.Invert4(inv[:], model[:]) {
			common.Identity(inv[:])
		}
		common.Transpose4(normal[:], inv[:])

		for s, mat := range b.materialIndices {
			off := (int(b.base) + s*n + i) * localStride
			putMat4(dst[off:], model)
			putMat4(dst[off+64:], normal)
			binary.LittleEndian.PutUint32(dst[off+128:off+132], mat)
			for p := off + 132; p < off+localStride; p += 4 {
				binary.LittleEndian.PutUint32(dst[p:p+4], 0)
			}
		}
	}
}

// stageGlobals appends the camera uniform write.
func (r *renderer) stageGlobals(cam camera.Camera) {
	u := camera.Uniform(cam)
	r.writePool = append(r.writePool, binding.BufferWrite{
		Provider: r.globalsBGP,
		Binding:  0,
		Offset:   0,
		Data:     u.Marshal(),
	})
}

// stageLights appends the light header, light array, shadow data array, and
// per-layer shadow uniform writes, deriving one light-space transform per
// shadow-casting light.
func (r *renderer) stageLights(cam camera.Camera) {
	lightData := light.MarshalLightBuffer(r.collected, r.ambient)
	r.writePool = append(r.writePool, binding.BufferWrite{
		Provider: r.lightsBGP,
		Binding:  0, // light header uniform
		Offset:   0,
		Data:     lightData[:16],
	})
	if len(lightData) > 16 {
		r.writePool = append(r.writePool, binding.BufferWrite{
			Provider: r.lightsBGP,
			Binding:  1, // light storage array
			Offset:   0,
			Data:     lightData[16:],
		})
	}

	// Shadow frusta focus on the camera position: directional maps center
	// their ortho volume there, positional maps aim their cone at it.
	focus := cam.Position()
	texel := 1.0 / float32(r.shadowResolution)

	r.shadowData = r.shadowData[:0]
	layer := 0
	for _, l := range r.collected {
		if !l.CastsShadows() {
			continue
		}

		sd := light.GPUShadowData{
			TexelSize: [2]float32{texel, texel},
			Bias:      r.shadowBias,
		}
		sd.ComputeNormalBias(r.shadowHalfExtent, r.shadowNormalBiasScale, r.shadowResolution)
		if l.Type() == light.LightTypeDirectional {
			sd.ComputeDirectionalLightVP(l.Direction(), focus[0], focus[1], focus[2], r.shadowHalfExtent, r.shadowNear, r.shadowFar)
		} else {
			sd.ComputePositionalLightVP(l.Position(), focus[0], focus[1], focus[2], r.shadowNear, l.Range())
		}
		r.shadowData = append(r.shadowData, sd)

		u := light.GPUShadowUniform{LightVP: sd.LightVP}
		r.writePool = append(r.writePool, binding.BufferWrite{
			Provider: r.shadowBGP,
			Binding:  0,
			Offset:   uint64(layer) * shadowUniformStride,
			Data:     u.Marshal(),
		})
		layer++
	}

	if len(r.shadowData) > 0 {
		r.writePool = append(r.writePool, binding.BufferWrite{
			Provider: r.lightsBGP,
			Binding:  2, // shadow data array
			Offset:   0,
			Data:     light.MarshalShadowBuffer(r.shadowData),
		})
	}
}

// stageMaterials re-syncs the GPU material array against the asset table and
// appends its write when anything changed. A grown array forces a buffer
// re-creation and bind group rebuild first.
func (r *renderer) stageMaterials() {
	if !r.materials.Sync(r.table) {
		return
	}
	data := r.materials.Data()
	if len(data) == 0 {
		return
	}

	if uint64(len(data)) > r.materialCapacity {
		r.materialCapacity = uint64(len(data))
		r.materialsBGP.SetBuffer(0, nil)
		if err := r.backend.InitBindGroup(r.materialsBGP, materialsLayout(), nil, map[int]uint64{
			0: r.materialCapacity,
		}); err != nil {
			logger.Error("renderer: failed to grow material array", "size", len(data), "err", err)
			return
		}
	}

	r.writePool = append(r.writePool, binding.BufferWrite{
		Provider: r.materialsBGP,
		Binding:  0,
		Offset:   0,
		Data:     data,
	})
}

// ensureLocalsCapacity grows the locals buffer to the next multiple of the
// locals increment that fits the frame. The buffer never shrinks.
func (r *renderer) ensureLocalsCapacity(entries uint32) {
	needed := nextMultiple(entries, r.localsIncrement)
	if needed <= r.localsCapacity {
		return
	}

	r.localsCapacity = needed
	r.localsScratch = make([]byte, int(needed)*localStride)
	r.localsBGP.SetBuffer(0, nil)
	if err := r.backend.InitBindGroup(r.localsBGP, localsLayout(), nil, map[int]uint64{
		0: uint64(needed) * localStride,
	}); err != nil {
		panic(fmt.Sprintf("renderer: failed to grow locals buffer to %d entries: %v", needed, err))
	}
	logger.Debug("renderer: locals buffer grown", "entries", needed)
}

// ensureShadowCapacity grows the shadow map array to the next multiple of the
// layer increment that fits the frame's shadow casters. Growth recreates the
// array texture, the per-layer shadow uniform buffer, and the shadow data
// buffer, then rebuilds the bind groups that reference them. The array never
// shrinks.
func (r *renderer) ensureShadowCapacity(casters int) {
	needed := int(nextMultiple(uint32(casters), uint32(r.shadowLayerIncrement)))
	if needed <= r.shadowLayers {
		return
	}

	tex, arrayView, layerViews, err := r.backend.CreateShadowDepthArray(r.shadowResolution, needed)
	if err != nil {
		panic(fmt.Sprintf("renderer: failed to grow shadow map array to %d layers: %v", needed, err))
	}

	for _, v := range r.shadowLayerViews {
		v.Release()
	}
	if r.shadowTexture != nil {
		r.shadowTexture.Release()
	}

	r.shadowLayers = needed
	r.shadowTexture = tex
	r.shadowLayerViews = layerViews

	// SetTextureView releases the old array view.
	r.lightsBGP.SetTextureView(3, arrayView)
	r.lightsBGP.SetBuffer(2, nil)
	if err := r.backend.InitBindGroup(r.lightsBGP, lightsLayout(), nil, map[int]uint64{
		1: light.MaxGPULights * gpuLightStride,
		2: uint64(needed) * shadowDataStride,
	}); err != nil {
		panic(fmt.Sprintf("renderer: failed to rebuild lights bind group: %v", err))
	}

	r.shadowBGP.SetBuffer(0, nil)
	if err := r.backend.InitBindGroup(r.shadowBGP, shadowLayout(), nil, map[int]uint64{
		0: uint64(needed) * shadowUniformStride,
	}); err != nil {
		panic(fmt.Sprintf("renderer: failed to rebuild shadow bind group: %v", err))
	}
	logger.Debug("renderer: shadow map array grown", "layers", needed)
}

// encodeShadowDraws records one draw per (bundle, sub-mesh) onto the current
// shadow pass, instanced over the bundle's shadow casters only.
func (r *renderer) encodeShadowDraws(layer int) {
	nb := megabuffer.NativeBuffer(r.table.Storage().Buffer())
	dynamicOffsets := []uint32{uint32(layer) * shadowUniformStride}

	for i := range r.bundles {
		b := &r.bundles[i]
		if b.shadowCount == 0 {
			continue
		}

		n := len(b.instances)
		index := indexSlice(b.mesh, nb)
		for s, sm := range b.mesh.SubMeshes {
			r.backend.ShadowDraw(Draw{
				Pipeline: r.shadowPipeline.Pipeline(),
				BindGroups: []BindGroupRef{
					{Group: r.shadowBGP.BindGroup(), DynamicOffsets: dynamicOffsets},
					{Group: r.localsBGP.BindGroup()},
				},
				Vertices:      positionSlice(b.mesh, nb),
				Index:         index,
				First:         sm.First,
				Count:         sm.Count,
				InstanceCount: uint32(b.shadowCount),
				FirstInstance: b.base + uint32(s*n),
			})
		}
	}
}

// encodeMainDraws records one draw per (bundle, sub-mesh) onto the current
// main pass, instanced over every instance of the bundle.
func (r *renderer) encodeMainDraws(p pipeline.Pipeline) {
	nb := megabuffer.NativeBuffer(r.table.Storage().Buffer())
	bindGroups := []BindGroupRef{
		{Group: r.globalsBGP.BindGroup()},
		{Group: r.localsBGP.BindGroup()},
		{Group: r.materialsBGP.BindGroup()},
		{Group: r.lightsBGP.BindGroup()},
	}

	for i := range r.bundles {
		b := &r.bundles[i]
		n := len(b.instances)
		if n == 0 {
			continue
		}

		vertices := vertexSlices(b.mesh, nb)
		index := indexSlice(b.mesh, nb)
		for s, sm := range b.mesh.SubMeshes {
			r.backend.Draw(Draw{
				Pipeline:      p.Pipeline(),
				BindGroups:    bindGroups,
				Vertices:      vertices,
				Index:         index,
				First:         sm.First,
				Count:         sm.Count,
				InstanceCount: uint32(n),
				FirstInstance: b.base + uint32(s*n),
			})
		}
	}
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
	r.cameras.Each(func(_ string, c camera.Camera) {
		c.SetAspect(width, height)
	})
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) SetWireframe(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wireframe = enabled
}

func (r *renderer) Wireframe() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wireframe
}

func (r *renderer) SetBackfaceCulling(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backfaceCulling = enabled
}

func (r *renderer) BackfaceCulling() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backfaceCulling
}

func (r *renderer) SetFrustumCulling(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frustumCulling = enabled
}

func (r *renderer) FrustumCulling() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frustumCulling
}

func (r *renderer) SetAmbient(red, green, blue float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ambient = [3]float32{red, green, blue}
}

func (r *renderer) AddLight(l light.Light) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lights = append(r.lights, l)
}

func (r *renderer) RemoveLight(l light.Light) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.lights {
		if existing == l {
			r.lights = append(r.lights[:i], r.lights[i+1:]...)
			return
		}
	}
}

func (r *renderer) Lights() []light.Light {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]light.Light, len(r.lights))
	copy(out, r.lights)
	return out
}

func (r *renderer) SetTexture(h asset.TextureHandle) error {
	tex, ok := r.table.Texture(h)
	if !ok {
		return fmt.Errorf("renderer: texture handle %s is stale", h.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data := common.TextureData{
		Name:   tex.Name,
		Pixels: tex.Pixels,
		Width:  tex.Width,
		Height: tex.Height,
	}
	if err := r.backend.InitTextureView(r.materialsBGP, 1, data); err != nil {
		return fmt.Errorf("renderer: upload texture %q: %w", tex.Name, err)
	}
	if err := r.backend.InitSampler(r.materialsBGP, 2, tex.Sampler); err != nil {
		return fmt.Errorf("renderer: create sampler for %q: %w", tex.Name, err)
	}
	if err := r.backend.InitBindGroup(r.materialsBGP, materialsLayout(), nil, map[int]uint64{
		0: r.materialCapacity,
	}); err != nil {
		return fmt.Errorf("renderer: rebuild materials bind group: %w", err)
	}
	return nil
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.shadowLayerViews {
		v.Release()
	}
	r.shadowLayerViews = nil
	if r.shadowTexture != nil {
		r.shadowTexture.Release()
		r.shadowTexture = nil
	}

	for _, p := range []binding.Provider{r.globalsBGP, r.localsBGP, r.materialsBGP, r.lightsBGP, r.shadowBGP} {
		if p != nil {
			p.Release()
		}
	}

	if r.table != nil {
		r.table.Release()
		r.table = nil
	}
}

// resolveMaterialIndices resolves the GPU material index for every sub-mesh
// of a mesh: a node override beats the sub-mesh's own material, which beats
// the previously resolved index. Sub-meshes before any material binding use
// index 0. The override, when present, must be a live handle; collection
// validates it before bundling.
func resolveMaterialIndices(mesh asset.Mesh, override asset.MaterialHandle, hasOverride bool) []uint32 {
	out := make([]uint32, len(mesh.SubMeshes))
	last := uint32(0)
	for i, sm := range mesh.SubMeshes {
		switch {
		case hasOverride:
			last = override.Index()
		case sm.HasMaterial:
			last = sm.Material.Index()
		}
		out[i] = last
	}
	return out
}

// worldBounds transforms a mesh-local bounding sphere by an instance
// transform. The radius scales by the largest axis scale, which stays
// conservative under non-uniform scaling.
func worldBounds(b asset.Bounds, t graph.Transform) ([3]float32, float32) {
	m := t.Mat4()
	var center [3]float32
	for row := 0; row < 3; row++ {
		center[row] = m[row]*b.Center[0] + m[4+row]*b.Center[1] + m[8+row]*b.Center[2] + m[12+row]
	}

	maxScale := absF32(t.Scale[0])
	if s := absF32(t.Scale[1]); s > maxScale {
		maxScale = s
	}
	if s := absF32(t.Scale[2]); s > maxScale {
		maxScale = s
	}
	return center, b.Radius * maxScale
}

// vertexSlices builds the full attribute slot set for the main pass. Absent
// streams bind the start of the megabuffer: the bytes under them are
// undefined but in-bounds, and shaders only read streams their mesh actually
// carries.
func vertexSlices(mesh asset.Mesh, nb *wgpu.Buffer) []VertexSlice {
	out := make([]VertexSlice, common.AttributeKindCount)
	for kind := common.AttributeKind(0); kind < common.AttributeKindCount; kind++ {
		rng := mesh.Attributes[kind]
		if rng.IsEmpty() {
			out[kind] = VertexSlice{
				Buffer: nb,
				Offset: 0,
				Size:   shader.AttributeStride(kind) * uint64(mesh.VertexCount),
			}
			continue
		}
		out[kind] = VertexSlice{Buffer: nb, Offset: rng.Start, Size: rng.Size}
	}
	return out
}

// positionSlice builds the single-slot layout used by depth-only passes.
func positionSlice(mesh asset.Mesh, nb *wgpu.Buffer) []VertexSlice {
	rng := mesh.Attributes[common.AttributePosition]
	return []VertexSlice{{Buffer: nb, Offset: rng.Start, Size: rng.Size}}
}

// indexSlice returns the mesh's index stream, or nil for non-indexed meshes.
func indexSlice(mesh asset.Mesh, nb *wgpu.Buffer) *IndexSlice {
	if !mesh.Indexed() {
		return nil
	}
	format := wgpu.IndexFormatUint32
	if mesh.IndexFormat == common.IndexFormatUint16 {
		format = wgpu.IndexFormatUint16
	}
	return &IndexSlice{
		Buffer: nb,
		Offset: mesh.IndexRange.Start,
		Size:   mesh.IndexRange.Size,
		Format: format,
	}
}

// nextMultiple rounds n up to the next multiple of step. Zero stays at one
// step so capacity-backed resources always exist.
func nextMultiple(n, step uint32) uint32 {
	if n == 0 {
		return step
	}
	return (n + step - 1) / step * step
}

func putMat4(dst []byte, m [16]float32) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(dst[i*4:(i+1)*4], math.Float32bits(v))
	}
}

func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// globalsLayout describes main pass group 0: the camera uniform.
func globalsLayout() wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Label: "Globals Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: 80,
				},
			},
		},
	}
}

// localsLayout describes group 1 of both passes: the per-instance storage
// array.
func localsLayout() wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Label: "Locals Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeReadOnlyStorage,
					MinBindingSize: localStride,
				},
			},
		},
	}
}

// materialsLayout describes main pass group 2: the material array, the frame
// texture, and its sampler.
func materialsLayout() wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Label: "Materials Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeReadOnlyStorage,
					MinBindingSize: materialStride,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	}
}

// lightsLayout describes main pass group 3: the light header and array, the
// per-layer shadow data, the shadow map array, and the comparison sampler.
func lightsLayout() wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Label: "Lights Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: 16,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeReadOnlyStorage,
					MinBindingSize: gpuLightStride,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeReadOnlyStorage,
					MinBindingSize: shadowDataStride,
				},
			},
			{
				Binding:    3,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeDepth,
					ViewDimension: wgpu.TextureViewDimension2DArray,
				},
			},
			{
				Binding:    4,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeComparison,
				},
			},
		},
	}
}

// shadowLayout describes shadow pass group 0: the per-layer light transform,
// bound with a dynamic offset so every layer shares one buffer.
func shadowLayout() wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Label: "Shadow Pass Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   64,
				},
			},
		},
	}
}
