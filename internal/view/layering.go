package view

import (
	"go.uber.org/zap"

	"github.com/Faultbox/venueview/internal/logger"
	"github.com/Faultbox/venueview/internal/scene"
	"github.com/Faultbox/venueview/internal/venue"
	"github.com/Faultbox/venueview/pkg/geom"
)

// Vertical offset bands assigned per feature class while flattened, lowest
// drawn first. Distinct monotonically increasing values guarantee a
// deterministic depth order: no two classes ever share an elevation.
var flatOffsets = map[venue.FeatureClass]float64{
	venue.ClassUnit:     0.0,
	venue.ClassOpening:  0.4,
	venue.ClassWindow:   0.8,
	venue.ClassAmenity:  1.2,
	venue.ClassOccupant: 1.6,
	venue.ClassLabel:    2.0,
}

// lineWidthMultiplier widens line features while flattened so they stay
// readable on top of the collapsed surface.
const lineWidthMultiplier = 2.0

// featureSnapshot captures the fields the layering manager mutates, so
// exit restores them verbatim.
type featureSnapshot struct {
	show            bool
	position        geom.Vec3
	extrudedHeight  float64
	width           float64
	clampToGround   bool
	depthTest       bool
	scale           float64
	scaleByDistance *scene.ScaleCurve
	displayDistance float64
}

// LayeringManager is a two-state machine (3D initial, 2D) that reassigns
// vertical offsets to feature classes on 2D entry to avoid
// surface-coincidence artifacts, and restores original transforms on exit.
//
// The side-table of snapshots is first-write-wins: a feature already
// snapshotted is never re-captured or re-transformed, which makes Enter2D
// idempotent and guards against double-apply.
type LayeringManager struct {
	in2D      bool
	snapshots map[string]featureSnapshot
	labels    *LabelBuilder
	log       *zap.Logger
}

// NewLayeringManager creates a manager in the 3D state.
func NewLayeringManager(labels *LabelBuilder) *LayeringManager {
	return &LayeringManager{
		snapshots: make(map[string]featureSnapshot),
		labels:    labels,
		log:       logger.Named("layering"),
	}
}

// In2D reports the current state.
func (m *LayeringManager) In2D() bool { return m.in2D }

// Enter2D flattens the given buildings. No-op if already in 2D.
func (m *LayeringManager) Enter2D(buildings []*venue.Building) {
	if m.in2D {
		return
	}
	m.in2D = true
	for _, b := range buildings {
		m.ApplyBuilding(b)
	}
}

// Apply2DMode is an alias for Enter2D.
func (m *LayeringManager) Apply2DMode(buildings []*venue.Building) {
	m.Enter2D(buildings)
}

// ApplyBuilding flattens one building. Called from Enter2D, and again for
// buildings that finish loading while 2D is already active.
func (m *LayeringManager) ApplyBuilding(b *venue.Building) {
	if !m.in2D || b == nil {
		return
	}

	if m.labels != nil {
		m.labels.BuildLabels(b)
	}

	for _, f := range b.Features() {
		if f.Scene == nil {
			continue
		}
		if _, done := m.snapshots[f.ID]; done {
			continue // first write wins; never transform twice
		}
		m.snapshots[f.ID] = snapshotFeature(f.Scene)
		m.flatten(f)
	}
}

// flatten applies the 2D transform for one feature.
func (m *LayeringManager) flatten(f *venue.Feature) {
	sf := f.Scene
	switch {
	case f.Class == venue.ClassWall || f.Class == venue.ClassDoor:
		// Flat extruded strips make no sense top-down.
		sf.Show = false

	case f.Class == venue.ClassUnit:
		// Collapse all floors onto a single ground plane.
		sf.Position = sf.Position.WithZ(flatOffsets[venue.ClassUnit])
		sf.Style.ExtrudedHeight = 0
		sf.Style.ClampToGround = true

	default:
		offset, ok := flatOffsets[f.Class]
		if !ok {
			return // window-walls and links keep their transform
		}
		sf.Position = sf.Position.WithZ(offset)
		if sf.Geometry.Kind == scene.GeometryLine {
			sf.Style.Width *= lineWidthMultiplier
			sf.Style.DepthTest = false
		}
	}
}

// ForgetBuilding drops the snapshots of an evicted building's features.
// A reload registers replacement features under the same ids; without
// this, the first-write-wins guard would treat them as already flattened
// and Exit3D would restore them from the evicted instances' snapshots.
func (m *LayeringManager) ForgetBuilding(b *venue.Building) {
	if b == nil {
		return
	}
	for _, f := range b.Features() {
		delete(m.snapshots, f.ID)
	}
}

// Exit3D restores every snapshotted feature verbatim and clears the
// side-table. No-op if already in 3D. A feature without a snapshot is
// logged and skipped, never fatal.
func (m *LayeringManager) Exit3D(buildings []*venue.Building) {
	if !m.in2D {
		return
	}
	m.in2D = false

	for _, b := range buildings {
		if b == nil {
			continue
		}
		// Generated labels have no snapshot; they simply go away.
		if m.labels != nil {
			m.labels.ClearLabels(b)
		}
		for _, f := range b.Features() {
			if f.Scene == nil {
				continue
			}
			snap, ok := m.snapshots[f.ID]
			if !ok {
				m.log.Warn("no snapshot for feature on restore",
					logger.FeatureID(f.ID))
				continue
			}
			restoreFeature(f.Scene, snap)
		}
	}

	m.snapshots = make(map[string]featureSnapshot)
}

// Restore3DMode is an alias for Exit3D.
func (m *LayeringManager) Restore3DMode(buildings []*venue.Building) {
	m.Exit3D(buildings)
}

func snapshotFeature(sf *scene.Feature) featureSnapshot {
	snap := featureSnapshot{
		show:            sf.Show,
		position:        sf.Position,
		extrudedHeight:  sf.Style.ExtrudedHeight,
		width:           sf.Style.Width,
		clampToGround:   sf.Style.ClampToGround,
		depthTest:       sf.Style.DepthTest,
		scale:           sf.Style.Scale,
		displayDistance: sf.Style.DisplayDistance,
	}
	if sf.Style.ScaleByDistance != nil {
		curve := *sf.Style.ScaleByDistance
		snap.scaleByDistance = &curve
	}
	return snap
}

func restoreFeature(sf *scene.Feature, snap featureSnapshot) {
	sf.Show = snap.show
	sf.Position = snap.position
	sf.Style.ExtrudedHeight = snap.extrudedHeight
	sf.Style.Width = snap.width
	sf.Style.ClampToGround = snap.clampToGround
	sf.Style.DepthTest = snap.depthTest
	sf.Style.Scale = snap.scale
	sf.Style.DisplayDistance = snap.displayDistance
	if snap.scaleByDistance != nil {
		curve := *snap.scaleByDistance
		sf.Style.ScaleByDistance = &curve
	} else {
		sf.Style.ScaleByDistance = nil
	}
}
