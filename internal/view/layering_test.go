package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/venueview/internal/config"
	"github.com/Faultbox/venueview/internal/scene"
	"github.com/Faultbox/venueview/internal/state"
	"github.com/Faultbox/venueview/internal/venue"
)

func testLabelConfig() config.LabelConfig {
	return config.Default().Viewer.Labels
}

func newLayering(eng scene.Engine) *LayeringManager {
	return NewLayeringManager(NewLabelBuilder(eng, testLabelConfig()))
}

// captureScene deep-copies every scene feature of the building, keyed by
// id, for verbatim-restore comparisons.
func captureScene(b *venue.Building) map[string]scene.Feature {
	out := make(map[string]scene.Feature)
	for _, f := range b.Features() {
		if f.Scene == nil {
			continue
		}
		cp := *f.Scene
		if cp.Style.ScaleByDistance != nil {
			curve := *cp.Style.ScaleByDistance
			cp.Style.ScaleByDistance = &curve
		}
		out[f.ID] = cp
	}
	return out
}

func TestEnter2DFlattens(t *testing.T) {
	eng := scene.NewMemoryEngine()
	b := newTestBuilding(eng)
	m := newLayering(eng)

	m.Enter2D([]*venue.Building{b})
	require.True(t, m.In2D())

	// Walls and doors disappear entirely.
	assert.False(t, shown(t, b, "wall-g"))
	assert.False(t, shown(t, b, "door-b1"))

	// Units collapse onto the ground plane.
	unit, _ := b.Feature("unit-l1")
	assert.Equal(t, 0.0, unit.Scene.Position.Z)
	assert.Equal(t, 0.0, unit.Scene.Style.ExtrudedHeight)
	assert.True(t, unit.Scene.Style.ClampToGround)

	// Other classes move to their band offsets.
	occ, _ := b.Feature("occ-g")
	assert.Equal(t, 1.6, occ.Scene.Position.Z)

	// Line features widen and draw through.
	open, _ := b.Feature("open-g")
	assert.Equal(t, 0.4, open.Scene.Position.Z)
	assert.Equal(t, 4.0, open.Scene.Style.Width)
	assert.False(t, open.Scene.Style.DepthTest)

	// Window-walls keep their transform (they are hidden by the filter,
	// not the layering pass).
	ww, _ := b.Feature("ww-l1")
	assert.Equal(t, 8.0, ww.Scene.Position.Z)
}

func TestEnter2DIsIdempotent(t *testing.T) {
	eng := scene.NewMemoryEngine()
	b := newTestBuilding(eng)
	m := newLayering(eng)

	m.Enter2D([]*venue.Building{b})
	after := captureScene(b)

	// Both a repeated enter and a repeated per-building apply must leave
	// every transform untouched.
	m.Enter2D([]*venue.Building{b})
	m.ApplyBuilding(b)

	open, _ := b.Feature("open-g")
	assert.Equal(t, after["open-g"].Style.Width, open.Scene.Style.Width,
		"line width must not be multiplied twice")
	for id, want := range after {
		f, _ := b.Feature(id)
		assert.Equal(t, want, *f.Scene, "feature %s changed on re-apply", id)
	}
}

func TestExit3DRestoresVerbatim(t *testing.T) {
	eng := scene.NewMemoryEngine()
	b := newTestBuilding(eng)
	m := newLayering(eng)

	before := captureScene(b)

	m.Enter2D([]*venue.Building{b})
	m.Exit3D([]*venue.Building{b})
	require.False(t, m.In2D())

	after := captureScene(b)
	assert.Equal(t, before, after, "exit must restore every mutated field bit for bit")
}

func TestRepeatedRoundTrips(t *testing.T) {
	eng := scene.NewMemoryEngine()
	b := newTestBuilding(eng)
	m := newLayering(eng)

	before := captureScene(b)
	buildings := []*venue.Building{b}

	for i := 0; i < 3; i++ {
		m.Enter2D(buildings)
		m.Exit3D(buildings)
	}

	assert.Equal(t, before, captureScene(b))
}

func TestExit3DWhenAlreadyIn3D(t *testing.T) {
	eng := scene.NewMemoryEngine()
	b := newTestBuilding(eng)
	m := newLayering(eng)

	before := captureScene(b)
	m.Exit3D([]*venue.Building{b})

	assert.False(t, m.In2D())
	assert.Equal(t, before, captureScene(b))
}

func TestExitSkipsFeatureWithoutSnapshot(t *testing.T) {
	eng := scene.NewMemoryEngine()
	b := newTestBuilding(eng)
	m := newLayering(eng)

	m.Enter2D([]*venue.Building{b})

	// A feature added behind the manager's back has no snapshot; exit
	// must skip it without touching its transform.
	late := addFeature(eng, b, "late-unit", "G", "Late", venue.ClassUnit, scene.GeometryPolygon, square(60, 0, 4, 10))
	b.Units = append(b.Units, late)
	want := *late.Scene

	m.Exit3D([]*venue.Building{b})

	assert.Equal(t, want, *late.Scene)
}

func TestApplyBuildingWhileIn3DIsNoop(t *testing.T) {
	eng := scene.NewMemoryEngine()
	b := newTestBuilding(eng)
	m := newLayering(eng)

	before := captureScene(b)
	m.ApplyBuilding(b)

	assert.Equal(t, before, captureScene(b))
}

func TestForgetBuildingAllowsReflatten(t *testing.T) {
	eng := scene.NewMemoryEngine()
	b := newTestBuilding(eng)
	m := newLayering(eng)

	m.Enter2D([]*venue.Building{b})

	// Evict and rebuild the venue: same feature ids, fresh instances at
	// their 3D transforms.
	m.ForgetBuilding(b)
	replacement := newTestBuilding(eng)
	m.ApplyBuilding(replacement)

	unit, _ := replacement.Feature("unit-l1")
	assert.Equal(t, 0.0, unit.Scene.Position.Z, "replacement flattened, not skipped")
	assert.False(t, shown(t, replacement, "wall-g"))

	// Exit restores the replacement from its own snapshot.
	m.Exit3D([]*venue.Building{replacement})
	assert.Equal(t, 8.0, unit.Scene.Position.Z)
	assert.True(t, shown(t, replacement, "wall-g"))
}

func TestKickFilterThenFlattenRoundTrip(t *testing.T) {
	eng := scene.NewMemoryEngine()
	store := state.NewStore()
	b := newTestBuilding(eng)
	f := NewFilterEngine(store)
	m := newLayering(eng)

	// First floor with kick: the ground-floor wall is on an allowed floor
	// and walls are on in 3D, so it shows.
	f.FilterByLevel(b, "L1", true)
	require.True(t, shown(t, b, "wall-g"))

	m.Enter2D([]*venue.Building{b})
	assert.False(t, shown(t, b, "wall-g"), "flattening hides walls unconditionally")

	m.Exit3D([]*venue.Building{b})
	assert.True(t, shown(t, b, "wall-g"), "restore brings the wall back")
}

func TestLabelsExistOnlyWhileFlattened(t *testing.T) {
	eng := scene.NewMemoryEngine()
	b := newTestBuilding(eng)
	m := newLayering(eng)

	base := eng.Count()
	require.Empty(t, b.Labels)

	m.Enter2D([]*venue.Building{b})

	// Every named unit above the area threshold gets exactly one label.
	require.Len(t, b.Labels, 3)
	assert.Equal(t, base+3, eng.Count())
	for _, l := range b.Labels {
		assert.Equal(t, venue.ClassLabel, l.Class)
		assert.NotNil(t, eng.Feature(l.ID))
		assert.Equal(t, 2.0, l.Scene.Position.Z, "labels sit on the top band")
	}

	m.Exit3D([]*venue.Building{b})

	assert.Empty(t, b.Labels)
	assert.Equal(t, base, eng.Count(), "labels removed from the scene")
}
