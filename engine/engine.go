// Package engine owns the frame loop: a fixed-rate tick goroutine for game
// logic and an uncapped (or capped) render goroutine that applies queued
// scene commands, recomputes world transforms, and hands the frame to the
// renderer. The window message loop stays on the main OS thread.
package engine

import (
	"runtime"
	"sync"
	"time"

	"github.com/kestrelgfx/kestrel-go/engine/graph"
	"github.com/kestrelgfx/kestrel-go/engine/logger"
	"github.com/kestrelgfx/kestrel-go/engine/profiler"
	"github.com/kestrelgfx/kestrel-go/engine/renderer"
	"github.com/kestrelgfx/kestrel-go/engine/window"
)

// engine implements the Engine interface.
// Coordinates the tick, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window
	g      graph.Graph
	r      renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point. It orchestrates the tick loop, the render
// loop, and window message processing; the application supplies the window,
// scene graph, and renderer it built.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Graph returns the scene graph driven by the frame loop.
	//
	// Returns:
	//   - graph.Graph: the scene graph
	Graph() graph.Graph

	// Renderer returns the renderer driven by the frame loop.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// EnableProfiler enables periodic frame and heap statistics logging.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	// The tick callback will be called at this rate for game logic updates.
	// If the engine is running, the change takes effect immediately.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, input processing, and animation updates; queue
	// scene mutations from here via graph commands.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered
	// frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the tick and render goroutines and blocks on the window
	// message loop until the window closes or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine coordinating the given window, scene graph,
// and renderer. The window resize callback is wired to the renderer so
// surface reconfiguration and camera aspect updates happen automatically.
//
// Parameters:
//   - win: the window whose message loop Run will block on
//   - g: the scene graph ticked each frame
//   - r: the renderer handed each frame
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(win window.Window, g graph.Graph, r renderer.Renderer, options ...EngineBuilderOption) Engine {
	if win == nil {
		panic("engine: NewEngine requires a non-nil Window")
	}
	if g == nil {
		panic("engine: NewEngine requires a non-nil Graph")
	}
	if r == nil {
		panic("engine: NewEngine requires a non-nil Renderer")
	}

	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		window:          win,
		g:               g,
		r:               r,
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	e.window.SetResizeCallback(func(width, height int) {
		e.r.Resize(width, height)
	})

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Graph() graph.Graph {
	return e.g
}

func (e *engine) Renderer() renderer.Renderer {
	return e.r
}

func (e *engine) Run() {
	e.running = true
	e.handle()
	e.window.ProcessMessages()

	// Window closed (or Quit was called from a callback): stop the loops and
	// wait for them before the caller tears down GPU state.
	e.signalQuit()
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handle launches the tick, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleTick()
	go e.handleRender()
	go e.handleQuit()
}

// handleTick runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic
// rate changes via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleTick() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the render loop in its own goroutine. Each iteration
// applies queued graph commands, recomputes world transforms, and renders a
// frame. Recovers from panics to avoid crashing the process and signals quit
// on recovery.
//
// Surface acquisition failures are handled with a one-retry policy: the first
// failure reconfigures the surface at the current window size and the next
// frame retries; a second consecutive failure is treated as device loss and
// stops the engine.
func (e *engine) handleRender() {
	// Surface acquisition and presentation expect stable thread affinity, so
	// the render loop keeps one OS thread for its lifetime.
	runtime.LockOSThread()

	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("engine: render goroutine recovered from panic; shutting down", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()
	surfaceLost := false

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			// Apply mutations queued by the tick goroutine, then derive the
			// world transforms the renderer collects from.
			e.g.ProcessCommands()
			e.g.UpdateWorld()

			if err := e.r.RenderFrame(); err != nil {
				if surfaceLost {
					logger.Error("engine: surface did not recover; shutting down", "err", err)
					e.signalQuit()
					return
				}
				logger.Warn("engine: frame failed; reconfiguring surface", "err", err)
				e.r.Resize(e.window.Width(), e.window.Height())
				surfaceLost = true
			} else {
				surfaceLost = false
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if e.running {
		// Non-blocking send: if a rate change is already pending, replace it.
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called after each rendered frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}
