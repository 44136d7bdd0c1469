package camera

import (
	"sync"

	"github.com/kestrelgfx/kestrel-go/engine/logger"
)

// Registry holds the scene's cameras by name and tracks which one is the main
// camera the renderer draws from. Safe for concurrent use.
type Registry interface {
	// Add registers a camera under name, replacing any camera previously
	// registered under it. The first camera added becomes the main camera.
	//
	// Parameters:
	//   - name: the camera's name
	//   - c: the camera (must not be nil)
	Add(name string, c Camera)

	// Remove drops the named camera. Removing the main camera clears the
	// main designation; the next Main call falls back and logs.
	//
	// Parameters:
	//   - name: the camera's name
	Remove(name string)

	// Camera returns the named camera.
	//
	// Parameters:
	//   - name: the camera's name
	//
	// Returns:
	//   - Camera: the camera, or nil when not registered
	Camera(name string) Camera

	// SetMain designates the named camera as the main camera. Naming an
	// unregistered camera is logged and ignored.
	//
	// Parameters:
	//   - name: the camera's name
	SetMain(name string)

	// Main returns the main camera. When no main camera is designated it
	// falls back to the first registered camera, logging the substitution.
	// Returns nil only when the registry is empty.
	//
	// Returns:
	//   - Camera: the main camera or the logged fallback
	Main() Camera

	// Each calls fn for every registered camera. Used by the engine to push
	// viewport resizes to all cameras.
	//
	// Parameters:
	//   - fn: callback invoked per camera
	Each(fn func(name string, c Camera))
}

type registryImpl struct {
	mu      *sync.Mutex
	cameras map[string]Camera
	order   []string // registration order, for the fallback
	main    string
}

var _ Registry = &registryImpl{}

// NewRegistry creates an empty camera registry.
//
// Returns:
//   - Registry: the initialized registry
func NewRegistry() Registry {
	return &registryImpl{
		mu:      &sync.Mutex{},
		cameras: make(map[string]Camera),
	}
}

func (r *registryImpl) Add(name string, c Camera) {
	if c == nil {
		panic("camera: Add requires a non-nil Camera")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cameras[name]; !exists {
		r.order = append(r.order, name)
	}
	r.cameras[name] = c
	if r.main == "" {
		r.main = name
	}
}

func (r *registryImpl) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cameras[name]; !exists {
		return
	}
	delete(r.cameras, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.main == name {
		r.main = ""
	}
}

func (r *registryImpl) Camera(name string) Camera {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cameras[name]
}

func (r *registryImpl) SetMain(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cameras[name]; !exists {
		logger.Warnf("camera: SetMain(%q) names an unregistered camera; keeping %q", name, r.main)
		return
	}
	r.main = name
}

func (r *registryImpl) Main() Camera {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cameras[r.main]; ok {
		return c
	}
	if len(r.order) == 0 {
		return nil
	}
	logger.Warnf("camera: no main camera designated; falling back to %q", r.order[0])
	return r.cameras[r.order[0]]
}

func (r *registryImpl) Each(fn func(name string, c Camera)) {
	r.mu.Lock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.Unlock()

	for _, name := range names {
		if c := r.Camera(name); c != nil {
			fn(name, c)
		}
	}
}
