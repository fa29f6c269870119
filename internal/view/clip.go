package view

import (
	"github.com/Faultbox/venueview/internal/scene"
	"github.com/Faultbox/venueview/internal/venue"
	"github.com/Faultbox/venueview/pkg/geom"
)

// ClipEngine applies a single scalar vertical cutoff across buildings and
// network overlays. Clipping composes with level filtering by ANDing into
// the current show flag, so it can never re-show a feature the filter hid.
type ClipEngine struct {
	engine scene.Engine
}

// NewClipEngine creates a clip engine bound to the scene.
func NewClipEngine(engine scene.Engine) *ClipEngine {
	return &ClipEngine{engine: engine}
}

// ApplyBuilding hides every feature whose base elevation lies above maxZ.
// Wall and door strips compare their base, not their top: a tall wall
// whose floor is below the plane stays visible even if its top pierces it
// ("clip by floor", not "clip by object extent"). Idempotent.
func (c *ClipEngine) ApplyBuilding(b *venue.Building, maxZ float64) {
	if b == nil {
		return
	}
	for _, f := range b.Features() {
		if f.Scene == nil {
			continue
		}
		f.Scene.Show = f.Scene.Show && f.ZValue <= maxZ
	}
	for _, ov := range b.Overlays {
		if ov.Scene == nil {
			continue
		}
		ov.Scene.Show = ov.Scene.Show && ov.ZValue <= maxZ
	}
}

// ApplyNetwork clips a link overlay. A link has no level elevation, so it
// samples every vertex and stays visible if any vertex lies at or below
// maxZ. A user-hidden overlay is never brought back: clip and manual hide
// compose via logical AND, manual hide wins.
func (c *ClipEngine) ApplyNetwork(n *venue.NetworkOverlay, maxZ float64) {
	if n == nil {
		return
	}
	for _, link := range n.Links {
		if link.Scene == nil {
			continue
		}
		link.Scene.Show = link.Scene.Show && !n.UserHidden && anyVertexAtOrBelow(link.Scene.Geometry.Vertices, maxZ)
	}
}

// ResetBuilding sets every feature of the building back to visible,
// unconditionally overriding the last filter decision. Callers that need
// level filtering without clipping must re-run the visibility filter
// afterwards.
func (c *ClipEngine) ResetBuilding(b *venue.Building) {
	if b == nil {
		return
	}
	for _, f := range b.Features() {
		if f.Scene != nil {
			f.Scene.Show = true
		}
	}
	for _, ov := range b.Overlays {
		if ov.Scene != nil {
			ov.Scene.Show = true
		}
	}
}

// ResetNetwork sets every link back to visible. As with ResetBuilding the
// caller re-applies the user visibility toggle afterwards.
func (c *ClipEngine) ResetNetwork(n *venue.NetworkOverlay) {
	if n == nil {
		return
	}
	for _, link := range n.Links {
		if link.Scene != nil {
			link.Scene.Show = true
		}
	}
}

// SetPlane installs the scene-level clipping plane matching maxZ: a
// downward-facing normal at signed distance maxZ cuts the massing tileset
// at the same height the per-feature pass uses.
func (c *ClipEngine) SetPlane(maxZ float64) {
	c.engine.SetClipPlane(geom.Vec3{X: 0, Y: 0, Z: -1}, maxZ)
}

// ClearPlane removes the scene-level clipping plane.
func (c *ClipEngine) ClearPlane() {
	c.engine.ClearClipPlane()
}

func anyVertexAtOrBelow(verts []geom.Vec3, maxZ float64) bool {
	for _, v := range verts {
		if v.Z <= maxZ {
			return true
		}
	}
	return false
}
