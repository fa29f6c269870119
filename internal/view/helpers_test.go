package view

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Faultbox/venueview/internal/scene"
	"github.com/Faultbox/venueview/internal/venue"
	"github.com/Faultbox/venueview/pkg/geom"
)

// square returns a square polygon ring of the given side, centered at
// (x, y), at elevation z.
func square(x, y, z, side float64) []geom.Vec3 {
	h := side / 2
	return []geom.Vec3{
		{X: x - h, Y: y - h, Z: z},
		{X: x + h, Y: y - h, Z: z},
		{X: x + h, Y: y + h, Z: z},
		{X: x - h, Y: y + h, Z: z},
	}
}

// addFeature materializes one test feature the way the loader does:
// elevation from the owning level when known, centroid position for
// polygons.
func addFeature(eng scene.Engine, b *venue.Building, id, levelID, name string, class venue.FeatureClass, kind scene.GeometryKind, verts []geom.Vec3) *venue.Feature {
	z := verts[0].Z
	if lvl, ok := b.Level(levelID); ok {
		z = lvl.ZValue
	}
	pos := verts[0]
	if kind == scene.GeometryPolygon {
		pos = geom.Centroid(verts)
	}
	pos = pos.WithZ(z)

	var width float64
	if kind == scene.GeometryLine {
		width = 2
	}
	sf := eng.AddFeature(&scene.Feature{
		ID:       id,
		Show:     true,
		Position: pos,
		Geometry: scene.Geometry{Kind: kind, Vertices: verts},
		Style:    scene.Style{Opacity: 1, Width: width, DepthTest: true, Scale: 1},
	})
	return &venue.Feature{
		ID:      id,
		LevelID: levelID,
		Class:   class,
		ZValue:  z,
		Name:    name,
		Scene:   sf,
	}
}

// newTestBuilding builds a three-floor venue: basement B1 (ordinal 0,
// z 0), ground G (ordinal 1, z 4), first floor L1 (ordinal 2, z 8).
// One feature per class of interest plus an unknown-level amenity and a
// highlight overlay tracking the ground-floor unit.
func newTestBuilding(eng scene.Engine) *venue.Building {
	b := &venue.Building{VenueID: "hq", Name: "HQ"}
	b.Levels = []*venue.Level{
		{ID: "B1", Name: "Basement", Ordinal: 0, ZValue: 0},
		{ID: "G", Name: "Ground", Ordinal: 1, ZValue: 4},
		{ID: "L1", Name: "First", Ordinal: 2, ZValue: 8},
	}
	b.Index()

	b.Units = append(b.Units,
		addFeature(eng, b, "unit-b1", "B1", "Storage", venue.ClassUnit, scene.GeometryPolygon, square(0, 0, 0, 10)),
		addFeature(eng, b, "unit-g", "G", "Cafe", venue.ClassUnit, scene.GeometryPolygon, square(20, 0, 4, 10)),
		addFeature(eng, b, "unit-l1", "L1", "Office", venue.ClassUnit, scene.GeometryPolygon, square(40, 0, 8, 10)),
	)
	b.Walls = append(b.Walls,
		addFeature(eng, b, "wall-g", "G", "", venue.ClassWall, scene.GeometryPolygon, square(20, 10, 4, 4)))
	b.Doors = append(b.Doors,
		addFeature(eng, b, "door-b1", "B1", "", venue.ClassDoor, scene.GeometryPolygon, square(0, 10, 0, 2)))
	b.WindowWalls = append(b.WindowWalls,
		addFeature(eng, b, "ww-l1", "L1", "", venue.ClassWindowWall, scene.GeometryPolygon, square(40, 10, 8, 4)))
	b.Occupants = append(b.Occupants,
		addFeature(eng, b, "occ-g", "G", "Barista", venue.ClassOccupant, scene.GeometryPoint, []geom.Vec3{{X: 20, Y: 0, Z: 4}}))
	b.Openings = append(b.Openings,
		addFeature(eng, b, "open-g", "G", "", venue.ClassOpening, scene.GeometryLine, []geom.Vec3{{X: 18, Y: 0, Z: 4}, {X: 22, Y: 0, Z: 4}}))
	b.Amenities = append(b.Amenities,
		addFeature(eng, b, "atm-x", "mystery", "ATM", venue.ClassAmenity, scene.GeometryPoint, []geom.Vec3{{X: 5, Y: 5, Z: 0}}))

	hl := addFeature(eng, b, "hl-g", "G", "", venue.ClassUnit, scene.GeometryPolygon, square(20, 0, 4, 10))
	hl.ParentID = "unit-g"
	b.Overlays = append(b.Overlays, hl)

	return b
}

// shown reports the scene show flag of a feature by id.
func shown(t *testing.T, b *venue.Building, id string) bool {
	t.Helper()
	f, ok := b.Feature(id)
	require.True(t, ok, "feature %s not found", id)
	require.NotNil(t, f.Scene)
	return f.Scene.Show
}
