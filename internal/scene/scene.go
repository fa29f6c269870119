// Package scene defines the contract between the viewer core and the
// external 3D scene engine. The core never creates a viewport or draws
// anything itself; it only adds/removes features and mutates their
// per-feature Show/Position/Style fields.
package scene

import "github.com/Faultbox/venueview/pkg/geom"

// GeometryKind classifies a feature's geometry.
type GeometryKind int

const (
	GeometryPolygon GeometryKind = iota
	GeometryLine
	GeometryPoint
)

// Geometry holds a feature's vertices. Polygons are rings (implicitly
// closed), lines are open vertex chains, points carry a single vertex.
type Geometry struct {
	Kind     GeometryKind
	Vertices []geom.Vec3
}

// ScaleCurve is a two-point camera-distance interpolation: at NearDistance
// the feature renders at NearScale, at FarDistance at FarScale, with linear
// interpolation between and clamping outside.
type ScaleCurve struct {
	NearDistance float64
	NearScale    float64
	FarDistance  float64
	FarScale     float64
}

// Style holds the mutable rendering attributes the core reads and writes.
type Style struct {
	Color           string      // CSS-style color string, opaque to the core
	Opacity         float64     // 0..1
	ExtrudedHeight  float64     // vertical extrusion above Position.Z; 0 = flat
	Width           float64     // line width, line geometries only
	ClampToGround   bool        // ignore Position.Z and drape onto the surface
	DepthTest       bool        // false = draw through occluding geometry
	Scale           float64     // uniform scale for point features / labels
	ScaleByDistance *ScaleCurve // nil = constant scale

	// DisplayDistance hides the feature when the camera is farther than
	// this many scene units. 0 means no limit.
	DisplayDistance float64
}

// Feature is one scene entity. The engine owns the instance; the core
// mutates the exported fields in place and the engine picks the changes up
// on the next frame.
type Feature struct {
	ID       string
	Show     bool
	Position geom.Vec3
	Geometry Geometry
	Style    Style

	// Text is the label string for label features, empty otherwise.
	Text string
}

// Engine is the minimal surface of the external scene engine the core
// depends on.
type Engine interface {
	// AddFeature registers a feature with the scene. The returned pointer
	// is the live instance whose fields the core mutates.
	AddFeature(f *Feature) *Feature

	// RemoveFeature removes a feature from the scene. Unknown ids are a
	// no-op.
	RemoveFeature(id string)

	// Feature returns the live feature for id, or nil.
	Feature(id string) *Feature

	// FlyTo moves the camera to frame the given position.
	FlyTo(target geom.Vec3, distance float64)

	// CameraDistance reports the current camera distance to a position,
	// used for distance-scaled labels.
	CameraDistance(target geom.Vec3) float64

	// SetClipPlane installs a single clipping plane given a plane normal
	// and signed distance from the origin. ClearClipPlane removes it.
	SetClipPlane(normal geom.Vec3, distance float64)
	ClearClipPlane()
}
