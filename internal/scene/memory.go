package scene

import (
	"sync"

	"github.com/Faultbox/venueview/pkg/geom"
)

// MemoryEngine is an in-process Engine used by tests and the demo daemon.
// It stores features and camera state without rendering anything.
type MemoryEngine struct {
	mu       sync.RWMutex
	features map[string]*Feature
	camera   geom.Vec3
	camDist  float64

	clipSet      bool
	clipNormal   geom.Vec3
	clipDistance float64
}

// NewMemoryEngine creates an empty in-memory scene.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		features: make(map[string]*Feature),
		camDist:  500,
	}
}

// AddFeature registers f with the scene and returns the live instance.
func (e *MemoryEngine) AddFeature(f *Feature) *Feature {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.features[f.ID] = f
	return f
}

// RemoveFeature removes a feature. Unknown ids are a no-op.
func (e *MemoryEngine) RemoveFeature(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.features, id)
}

// Feature returns the live feature for id, or nil.
func (e *MemoryEngine) Feature(id string) *Feature {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.features[id]
}

// Count reports the number of registered features.
func (e *MemoryEngine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.features)
}

// FlyTo records the camera target and distance.
func (e *MemoryEngine) FlyTo(target geom.Vec3, distance float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.camera = target
	e.camDist = distance
}

// CameraDistance reports the distance from the recorded camera position.
func (e *MemoryEngine) CameraDistance(target geom.Vec3) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.camera.Distance(target) + e.camDist
}

// SetClipPlane records the active clipping plane.
func (e *MemoryEngine) SetClipPlane(normal geom.Vec3, distance float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clipSet = true
	e.clipNormal = normal
	e.clipDistance = distance
}

// ClearClipPlane removes the clipping plane.
func (e *MemoryEngine) ClearClipPlane() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clipSet = false
}

// ClipPlane reports the active plane, if any. Test helper.
func (e *MemoryEngine) ClipPlane() (normal geom.Vec3, distance float64, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clipNormal, e.clipDistance, e.clipSet
}
