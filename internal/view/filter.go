// Package view contains the engines that turn state changes into scene
// mutations: level/mode visibility filtering, 2D layering, and vertical
// clipping.
package view

import (
	"github.com/Faultbox/venueview/internal/logger"
	"github.com/Faultbox/venueview/internal/state"
	"github.com/Faultbox/venueview/internal/venue"
)

// FilterEngine computes and applies the show/hide decision for every
// feature of a building from the current floor selection, kick mode,
// dimension mode, and walls flag.
type FilterEngine struct {
	view state.View
}

// NewFilterEngine creates a filter engine reading globals from the store.
func NewFilterEngine(v state.View) *FilterEngine {
	return &FilterEngine{view: v}
}

// FilterByLevel applies the visibility decision for one building.
//
// Policy for a feature whose levelId matches no known level: it is treated
// as building-wide — visible under the "ALL" filter, hidden under any
// specific-level filter. This is the single policy for the whole engine;
// no call site special-cases it.
func (e *FilterEngine) FilterByLevel(b *venue.Building, levelID string, kick bool) {
	if b == nil {
		return // precondition error: filtering before load is a no-op
	}

	wallsOK := e.view.DimensionMode() == state.Mode3D && e.view.WallsVisible()

	var allowed map[string]bool
	if levelID != venue.LevelAll {
		allowed = allowedLevels(b, levelID, kick)
	}

	for _, f := range b.Features() {
		if f.Scene == nil {
			logger.Debug("feature without scene binding skipped",
				logger.FeatureID(f.ID))
			continue
		}

		show := true
		if allowed != nil {
			_, known := b.Level(f.LevelID)
			show = known && allowed[f.LevelID]
		}
		if f.Class.WallLike() && !wallsOK {
			show = false
		}
		f.Scene.Show = show
	}

	e.mirrorOverlays(b)
}

// allowedLevels computes the set of visible level ids for a specific
// selection. Kick mode is cumulative: the selected floor plus every floor
// with a lower-or-equal ordinal. Equal ordinals are untouched data noise;
// the comparison keeps them deterministically by original level order.
func allowedLevels(b *venue.Building, levelID string, kick bool) map[string]bool {
	allowed := make(map[string]bool)
	sel, ok := b.Level(levelID)
	if !ok {
		return allowed // unknown selection: nothing allowed
	}
	if !kick {
		allowed[sel.ID] = true
		return allowed
	}
	for _, l := range b.Levels {
		if l.Ordinal <= sel.Ordinal {
			allowed[l.ID] = true
		}
	}
	return allowed
}

// mirrorOverlays recomputes overlay visibility after the parents settle:
// a highlight always shows exactly when its parent shows, so a selected
// feature can never outlive its parent's floor change. Parents are
// resolved through a per-pass index instead of an id scan per overlay.
func (e *FilterEngine) mirrorOverlays(b *venue.Building) {
	if len(b.Overlays) == 0 {
		return
	}
	features := b.Features()
	parents := make(map[string]*venue.Feature, len(features)+len(b.Overlays))
	for _, ov := range b.Overlays {
		parents[ov.ID] = ov
	}
	for _, f := range features {
		parents[f.ID] = f
	}
	for _, ov := range b.Overlays {
		if ov.Scene == nil {
			continue
		}
		parent, ok := parents[ov.ParentID]
		if !ok || parent.Scene == nil {
			ov.Scene.Show = false
			continue
		}
		ov.Scene.Show = parent.Scene.Show
	}
}
