package view

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/venueview/internal/config"
	"github.com/Faultbox/venueview/internal/prefs"
	"github.com/Faultbox/venueview/internal/scene"
	"github.com/Faultbox/venueview/internal/state"
	"github.com/Faultbox/venueview/internal/venue"
)

// testDocument returns the wire document matching the fixture building:
// three floors, a named unit per floor, a wall on the ground floor, and
// one network link spanning z 2 to z 10.
func testDocument(venueID string) venue.Document {
	sq := func(x, y, z float64) [][]float64 {
		return [][]float64{
			{x - 5, y - 5, z}, {x + 5, y - 5, z}, {x + 5, y + 5, z}, {x - 5, y + 5, z},
		}
	}
	return venue.Document{
		VenueID: venueID,
		Name:    "HQ",
		Levels: []venue.LevelRecord{
			{ID: "B1", Name: "Basement", Ordinal: 0, ZValue: 0},
			{ID: "G", Name: "Ground", Ordinal: 1, ZValue: 4},
			{ID: "L1", Name: "First", Ordinal: 2, ZValue: 8},
		},
		Units: []venue.FeatureRecord{
			{ID: "unit-b1", LevelID: "B1", Name: "Storage", Geometry: "polygon", Vertices: sq(0, 0, 0)},
			{ID: "unit-g", LevelID: "G", Name: "Cafe", Geometry: "polygon", Vertices: sq(20, 0, 4)},
			{ID: "unit-l1", LevelID: "L1", Name: "Office", Geometry: "polygon", Vertices: sq(40, 0, 8)},
		},
		Walls: []venue.FeatureRecord{
			{ID: "wall-g", LevelID: "G", Geometry: "polygon", Vertices: sq(20, 10, 4), Height: 3},
		},
		Networks: []venue.NetworkRecord{
			{Links: []venue.FeatureRecord{
				{ID: "link-1", Geometry: "line", Vertices: [][]float64{{0, 0, 2}, {50, 0, 10}}},
			}},
		},
	}
}

func writeDocument(t *testing.T, dir, venueID string) {
	t.Helper()
	data, err := json.Marshal(testDocument(venueID))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, venueID+".json"), data, 0o644))
}

func newTestController(t *testing.T, source string) (*Controller, *scene.MemoryEngine, *prefs.Memory) {
	t.Helper()
	eng := scene.NewMemoryEngine()
	loader := venue.NewLoader(source, time.Second, eng)
	p := prefs.NewMemory()
	c := NewController(eng, loader, p, config.Default().Viewer, time.Hour)
	t.Cleanup(c.Close)
	return c, eng, p
}

func TestControllerLoadVenue(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, p := newTestController(t, dir)

	require.NoError(t, c.LoadVenue(context.Background(), "hq"))

	b, ok := c.Store().Building("hq")
	require.True(t, ok)
	assert.Len(t, b.Levels, 3)
	assert.Equal(t, 5, eng.Count(), "4 building features + 1 link")

	// Defaults: 3D, ALL, walls on. Everything visible.
	for _, f := range b.Features() {
		assert.True(t, f.Scene.Show, "feature %s", f.ID)
	}

	assert.Equal(t, "hq", c.Store().LastActiveVenue())
	assert.Eventually(t, func() bool {
		val, err := p.Load(context.Background(), "viewer:lastVenue")
		return err == nil && val == "hq"
	}, 2*time.Second, 10*time.Millisecond, "last venue persisted in the background")
}

func TestControllerLoadVenueMissing(t *testing.T) {
	c, eng, _ := newTestController(t, t.TempDir())

	err := c.LoadVenue(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, 0, eng.Count())
	_, ok := c.Store().Building("nope")
	assert.False(t, ok)
}

func TestControllerSelectLevel(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, _ := newTestController(t, dir)
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))

	c.SelectLevel("G")

	assert.True(t, eng.Feature("unit-g").Show)
	assert.True(t, eng.Feature("wall-g").Show)
	assert.False(t, eng.Feature("unit-b1").Show)
	assert.False(t, eng.Feature("unit-l1").Show)

	c.SetKickMode(true)
	assert.True(t, eng.Feature("unit-b1").Show)
	assert.False(t, eng.Feature("unit-l1").Show)
}

func TestControllerDimensionMode(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, _ := newTestController(t, dir)
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))

	c.SelectLevel("G")
	c.SetKickMode(true)

	require.True(t, c.SetDimensionMode(state.Mode2D))

	// Entering 2D resets to ALL and disables kick; the refilter after
	// those resets shows every non-wall feature again.
	assert.Equal(t, venue.LevelAll, c.Store().SelectedLevel())
	assert.False(t, c.Store().KickMode())
	assert.False(t, eng.Feature("wall-g").Show)
	assert.True(t, eng.Feature("unit-l1").Show)
	assert.Equal(t, 0.0, eng.Feature("unit-l1").Position.Z, "units flattened")

	require.True(t, c.SetDimensionMode(state.Mode3D))
	assert.Equal(t, 8.0, eng.Feature("unit-l1").Position.Z, "transform restored")
	assert.True(t, eng.Feature("wall-g").Show)

	assert.False(t, c.SetDimensionMode(state.Mode("flat")), "invalid mode rejected")
}

func TestControllerModePersisted(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, _, p := newTestController(t, dir)

	require.True(t, c.SetDimensionMode(state.Mode2D))

	assert.Eventually(t, func() bool {
		val, err := p.Load(context.Background(), "viewer:mode")
		return err == nil && val == "2D"
	}, 2*time.Second, 10*time.Millisecond, "mode persisted in the background")
}

// slowPrefs gates every save on a release channel, standing in for an
// unresponsive backend.
type slowPrefs struct {
	*prefs.Memory
	release chan struct{}
}

func (s *slowPrefs) Save(ctx context.Context, key, value string, ttl time.Duration) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Memory.Save(ctx, key, value, ttl)
}

func TestControllerSettersDontWaitOnPrefs(t *testing.T) {
	eng := scene.NewMemoryEngine()
	loader := venue.NewLoader(t.TempDir(), time.Second, eng)
	p := &slowPrefs{Memory: prefs.NewMemory(), release: make(chan struct{})}
	c := NewController(eng, loader, p, config.Default().Viewer, time.Hour)
	t.Cleanup(c.Close)

	start := time.Now()
	require.True(t, c.SetDimensionMode(state.Mode2D))
	assert.Less(t, time.Since(start), 500*time.Millisecond,
		"setter must not wait on the prefs backend")

	close(p.release)
	assert.Eventually(t, func() bool {
		val, err := p.Load(context.Background(), "viewer:mode")
		return err == nil && val == "2D"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestControllerClip(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, _ := newTestController(t, dir)
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))

	c.SetClip(5)

	assert.True(t, eng.Feature("unit-g").Show)
	assert.False(t, eng.Feature("unit-l1").Show)
	assert.True(t, eng.Feature("link-1").Show, "one endpoint below the plane")
	_, dist, ok := eng.ClipPlane()
	require.True(t, ok)
	assert.Equal(t, 5.0, dist)

	// Clip composes with the floor filter.
	c.SelectLevel("L1")
	assert.False(t, eng.Feature("unit-l1").Show, "filtered in but clipped out")
	assert.False(t, eng.Feature("unit-g").Show, "clipped in but filtered out")

	c.DisableClip()
	assert.True(t, eng.Feature("unit-l1").Show, "filter alone decides again")
	assert.False(t, eng.Feature("unit-g").Show)
	_, _, ok = eng.ClipPlane()
	assert.False(t, ok)
}

func TestControllerNetworkToggle(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, _ := newTestController(t, dir)
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))

	c.SetNetworkVisible("hq", false)
	assert.False(t, eng.Feature("link-1").Show)

	// Clip while hidden must not bring the link back.
	c.SetClip(100)
	assert.False(t, eng.Feature("link-1").Show)

	c.SetNetworkVisible("hq", true)
	assert.True(t, eng.Feature("link-1").Show)
}

func TestControllerTilesetStyle(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, _ := newTestController(t, dir)
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))
	c.SelectLevel("G")

	c.SetTilesetStyle("hq", 0.3, true)
	assert.Equal(t, 0.3, eng.Feature("unit-g").Style.Opacity)
	assert.True(t, eng.Feature("unit-g").Show)

	c.SetTilesetStyle("hq", 0.3, false)
	assert.False(t, eng.Feature("unit-g").Show)

	// Back to visible: the floor filter decides, not a blanket show.
	c.SetTilesetStyle("hq", 1, true)
	assert.True(t, eng.Feature("unit-g").Show)
	assert.False(t, eng.Feature("unit-l1").Show)
}

func TestControllerUnloadVenue(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, _ := newTestController(t, dir)
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))
	require.NotZero(t, eng.Count())

	require.NoError(t, c.UnloadVenue("hq"))

	assert.Equal(t, 0, eng.Count(), "every scene feature destroyed")
	_, ok := c.Store().Building("hq")
	assert.False(t, ok)
	_, ok = c.Store().Network("hq")
	assert.False(t, ok)

	assert.ErrorIs(t, c.UnloadVenue("hq"), venue.ErrNotLoaded)
}

func TestControllerReloadReplaces(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, _ := newTestController(t, dir)

	require.NoError(t, c.LoadVenue(context.Background(), "hq"))
	first := eng.Count()
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))

	assert.Equal(t, first, eng.Count(), "reload must not leak scene features")
}

func TestControllerReloadWhile2D(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, _ := newTestController(t, dir)
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))

	require.True(t, c.SetDimensionMode(state.Mode2D))
	require.Equal(t, 0.0, eng.Feature("unit-g").Position.Z)

	// A reload registers replacement features under the same ids; they
	// must be flattened like the originals, not skipped as already done.
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))

	unit := eng.Feature("unit-g")
	assert.Equal(t, 0.0, unit.Position.Z, "reloaded unit must be flattened while 2D is active")
	assert.Equal(t, 0.0, unit.Style.ExtrudedHeight)
	assert.True(t, unit.Style.ClampToGround)
	assert.False(t, eng.Feature("wall-g").Show, "reloaded wall hidden while flattened")

	// Exit restores the reloaded instances from their own snapshots.
	require.True(t, c.SetDimensionMode(state.Mode3D))
	assert.Equal(t, 4.0, eng.Feature("unit-g").Position.Z)
	assert.True(t, eng.Feature("wall-g").Show)
}

func TestControllerStaleLoadDiscarded(t *testing.T) {
	doc, err := json.Marshal(testDocument("hq"))
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.Write(doc)
	}))
	defer srv.Close()

	c, eng, _ := newTestController(t, srv.URL)

	done := make(chan error, 1)
	go func() { done <- c.LoadVenue(context.Background(), "hq") }()

	<-started
	c.UnloadVenue("hq") // supersedes the in-flight load
	close(release)

	require.NoError(t, <-done)
	_, ok := c.Store().Building("hq")
	assert.False(t, ok, "stale load must not register")
	assert.Equal(t, 0, eng.Count(), "stale load's scene features destroyed")
}

func TestControllerReset(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, _ := newTestController(t, dir)
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))
	c.SelectLevel("G")
	c.SetClip(5)

	c.Reset()

	assert.Equal(t, 0, eng.Count())
	assert.Equal(t, venue.LevelAll, c.Store().SelectedLevel())
	_, _, ok := eng.ClipPlane()
	assert.False(t, ok)
}

func TestControllerRestoreSession(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, eng, p := newTestController(t, dir)

	ctx := context.Background()
	require.NoError(t, p.Save(ctx, "viewer:mode", "2D", time.Hour))
	require.NoError(t, p.Save(ctx, "viewer:lastVenue", "hq", time.Hour))

	c.RestoreSession(ctx)

	assert.True(t, c.Store().In2D())
	_, ok := c.Store().Building("hq")
	assert.True(t, ok)
	assert.Equal(t, 0.0, eng.Feature("unit-l1").Position.Z, "late-loaded building flattened")
}

func TestControllerRestoreSessionEmpty(t *testing.T) {
	c, _, _ := newTestController(t, t.TempDir())

	c.RestoreSession(context.Background())

	assert.Equal(t, state.Mode3D, c.Store().DimensionMode())
	assert.Empty(t, c.Store().Buildings())
}

func TestControllerSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeDocument(t, dir, "hq")
	c, _, _ := newTestController(t, dir)
	require.NoError(t, c.LoadVenue(context.Background(), "hq"))
	c.SelectLevel("G")
	c.SetClip(5)

	snap := c.StateSnapshot()

	assert.Equal(t, "G", snap.SelectedLevel)
	assert.Equal(t, "3D", snap.DimensionMode)
	require.NotNil(t, snap.ClipZ)
	assert.Equal(t, 5.0, *snap.ClipZ)
	require.Len(t, snap.Venues, 1)
	assert.Equal(t, "hq", snap.Venues[0].VenueID)
	assert.Len(t, snap.Venues[0].Levels, 3)
	assert.Equal(t, 4, snap.Venues[0].FeatureCount)
	assert.Less(t, snap.Venues[0].VisibleCount, snap.Venues[0].FeatureCount)
}
