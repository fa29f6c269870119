package view

import (
	"math"

	"github.com/google/uuid"

	"github.com/Faultbox/venueview/internal/config"
	"github.com/Faultbox/venueview/internal/scene"
	"github.com/Faultbox/venueview/internal/venue"
	"github.com/Faultbox/venueview/pkg/geom"
)

// displayDistancePerSqrtArea converts a unit polygon's footprint into the
// camera distance at which its label is still worth drawing: small rooms
// only get labels when the camera is close.
const displayDistancePerSqrtArea = 120.0

// LabelBuilder generates unit-name label features while the viewer is
// flattened. Labels exist only for units with a non-empty name whose
// polygon area clears the configured minimum.
type LabelBuilder struct {
	engine scene.Engine
	cfg    config.LabelConfig
}

// NewLabelBuilder creates a label builder.
func NewLabelBuilder(engine scene.Engine, cfg config.LabelConfig) *LabelBuilder {
	return &LabelBuilder{engine: engine, cfg: cfg}
}

// BuildLabels creates label features for a building's units and appends
// them to b.Labels. Units that already have a label are skipped.
func (lb *LabelBuilder) BuildLabels(b *venue.Building) {
	labeled := make(map[string]bool, len(b.Labels))
	for _, l := range b.Labels {
		labeled[l.ParentID] = true
	}

	for _, unit := range b.Units {
		if unit.Name == "" || unit.Scene == nil || labeled[unit.ID] {
			continue
		}
		area := geom.Area(unit.Scene.Geometry.Vertices)
		if area < lb.cfg.MinArea {
			continue
		}

		pos := geom.Centroid(unit.Scene.Geometry.Vertices)
		curve := scene.ScaleCurve{
			NearDistance: lb.cfg.NearDistance,
			NearScale:    lb.cfg.NearScale,
			FarDistance:  lb.cfg.FarDistance,
			FarScale:     lb.cfg.FarScale,
		}

		sf := lb.engine.AddFeature(&scene.Feature{
			ID:       "label-" + uuid.NewString(),
			Show:     true,
			Position: pos,
			Geometry: scene.Geometry{
				Kind:     scene.GeometryPoint,
				Vertices: []geom.Vec3{pos},
			},
			Style: scene.Style{
				Opacity:         1,
				DepthTest:       false,
				Scale:           evalCurve(curve, lb.engine.CameraDistance(pos)),
				ScaleByDistance: &curve,
				DisplayDistance: labelDisplayDistance(area),
			},
			Text: unit.Name,
		})

		b.Labels = append(b.Labels, &venue.Feature{
			ID:       sf.ID,
			LevelID:  unit.LevelID,
			Class:    venue.ClassLabel,
			ZValue:   unit.ZValue,
			Name:     unit.Name,
			ParentID: unit.ID,
			Scene:    sf,
		})
	}
}

// ClearLabels removes every generated label from the scene and the
// building.
func (lb *LabelBuilder) ClearLabels(b *venue.Building) {
	for _, l := range b.Labels {
		lb.engine.RemoveFeature(l.ID)
	}
	b.Labels = nil
}

// labelDisplayDistance maps polygon area to the maximum camera distance at
// which the label stays visible.
func labelDisplayDistance(area float64) float64 {
	return math.Sqrt(area) * displayDistancePerSqrtArea
}

// evalCurve evaluates the two-point scale curve at a camera distance, with
// linear interpolation between the points and clamping outside.
func evalCurve(c scene.ScaleCurve, distance float64) float64 {
	if c.FarDistance <= c.NearDistance {
		return c.NearScale
	}
	switch {
	case distance <= c.NearDistance:
		return c.NearScale
	case distance >= c.FarDistance:
		return c.FarScale
	default:
		t := (distance - c.NearDistance) / (c.FarDistance - c.NearDistance)
		return c.NearScale + t*(c.FarScale-c.NearScale)
	}
}
