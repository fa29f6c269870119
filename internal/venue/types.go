// Package venue models multi-floor indoor building data: levels, feature
// collections, and network overlays, bound to live scene features.
package venue

import (
	"errors"

	"github.com/Faultbox/venueview/internal/scene"
)

// LevelAll is the floor-selector value meaning "no level filter".
const LevelAll = "ALL"

// ErrNotLoaded marks an operation on a venue that is not registered.
var ErrNotLoaded = errors.New("venue not loaded")

// FeatureClass identifies which collection a feature belongs to. The class
// drives both filtering (wall-like classes vanish outside 3D) and 2D
// layering offsets.
type FeatureClass int

const (
	ClassUnit FeatureClass = iota
	ClassOpening
	ClassWindow
	ClassAmenity
	ClassOccupant
	ClassWall
	ClassDoor
	ClassWindowWall
	ClassLabel
	ClassLink
)

// String returns the collection name for the class.
func (c FeatureClass) String() string {
	switch c {
	case ClassUnit:
		return "unit"
	case ClassOpening:
		return "opening"
	case ClassWindow:
		return "window"
	case ClassAmenity:
		return "amenity"
	case ClassOccupant:
		return "occupant"
	case ClassWall:
		return "wall"
	case ClassDoor:
		return "door"
	case ClassWindowWall:
		return "window-wall"
	case ClassLabel:
		return "label"
	case ClassLink:
		return "link"
	default:
		return "unknown"
	}
}

// WallLike reports whether the class is an extruded wall strip (wall, door,
// window-wall). Wall-like features are only ever shown in 3D mode with
// walls enabled.
func (c FeatureClass) WallLike() bool {
	return c == ClassWall || c == ClassDoor || c == ClassWindowWall
}

// Level is one floor of a building. Ordinal is the display rank used for
// "this floor and below" comparisons; ZValue is the physical elevation.
// Within one building ordinal order follows elevation order, but the two
// are kept separate because data-entry conventions let them diverge.
type Level struct {
	ID      string
	Name    string
	Ordinal int
	ZValue  float64
}

// Feature is one spatial record of a building: a polygon, line, or point
// tagged with a class and a level. Scene points at the live scene-engine
// feature whose Show/Position/Style the view engines mutate.
type Feature struct {
	ID      string
	LevelID string // empty or unknown = building-wide
	Class   FeatureClass
	ZValue  float64 // elevation of the level the feature sits on
	Name    string

	// ParentID links highlight/selection overlays to the feature they
	// track. Overlay visibility always mirrors the parent's.
	ParentID string

	Scene *scene.Feature
}

// Building aggregates a fixed set of named feature collections for one
// venue. It is exclusively owned by the session that loaded it and is
// destroyed (scene features removed) on eviction.
type Building struct {
	VenueID string
	Name    string

	// Levels in original data order; the slice order is the deterministic
	// tie-break for equal ordinals.
	Levels []*Level

	Units       []*Feature
	Openings    []*Feature
	Windows     []*Feature
	Amenities   []*Feature
	Occupants   []*Feature
	Walls       []*Feature
	Doors       []*Feature
	WindowWalls []*Feature

	// Labels are generated unit-name labels, not part of the source data.
	Labels []*Feature

	// Overlays are highlight/selection features tracking a parent by id.
	Overlays []*Feature

	levelByID map[string]*Level
}

// Index rebuilds internal lookup tables. Must be called after the level
// slice changes.
func (b *Building) Index() {
	b.levelByID = make(map[string]*Level, len(b.Levels))
	for _, l := range b.Levels {
		if _, dup := b.levelByID[l.ID]; dup {
			continue // first one wins, stable order
		}
		b.levelByID[l.ID] = l
	}
}

// Level returns the level with the given id.
func (b *Building) Level(id string) (*Level, bool) {
	l, ok := b.levelByID[id]
	return l, ok
}

// Features returns every filterable feature of the building in stable
// collection order. Overlays are excluded: their visibility is derived from
// their parents, never decided directly.
func (b *Building) Features() []*Feature {
	out := make([]*Feature, 0,
		len(b.Units)+len(b.Openings)+len(b.Windows)+len(b.Amenities)+
			len(b.Occupants)+len(b.Walls)+len(b.Doors)+len(b.WindowWalls)+
			len(b.Labels))
	for _, group := range [][]*Feature{
		b.Units, b.Openings, b.Windows, b.Amenities, b.Occupants,
		b.Walls, b.Doors, b.WindowWalls, b.Labels,
	} {
		out = append(out, group...)
	}
	return out
}

// Feature returns the feature with the given id, searching all collections
// including overlays.
func (b *Building) Feature(id string) (*Feature, bool) {
	for _, f := range b.Features() {
		if f.ID == id {
			return f, true
		}
	}
	for _, f := range b.Overlays {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// NetworkOverlay is a set of link features (lines) connecting venues or
// floors, toggled independently of building floor filtering.
type NetworkOverlay struct {
	VenueID string
	Links   []*Feature

	// UserHidden records an explicit hide by the user. Clip application
	// must never override it back to visible.
	UserHidden bool
}
