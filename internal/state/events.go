// Package state holds the centralized view state for the indoor viewer and
// the event machinery that tells engines when a piece of it changed.
package state

// Event identifies one kind of state transition. The set is closed: every
// setter maps to exactly one event kind and dispatch switches exhaustively
// over it, so there are no stringly-typed event names anywhere.
type Event int

const (
	EventSelectedLevelChanged Event = iota
	EventKickModeChanged
	EventDimensionModeChanged
	EventWallsVisibleChanged
	EventClipChanged
	EventTilesetStyleChanged
	EventNetworkVisibleChanged
	EventActiveVenueChanged
	EventBuildingRegistered
	EventBuildingRemoved
	EventNetworkRegistered
	EventNetworkRemoved

	numEvents // sentinel, keep last
)

// String returns the event name for logs.
func (e Event) String() string {
	switch e {
	case EventSelectedLevelChanged:
		return "selectedLevelChanged"
	case EventKickModeChanged:
		return "kickModeChanged"
	case EventDimensionModeChanged:
		return "dimensionModeChanged"
	case EventWallsVisibleChanged:
		return "wallsVisibleChanged"
	case EventClipChanged:
		return "clipChanged"
	case EventTilesetStyleChanged:
		return "tilesetStyleChanged"
	case EventNetworkVisibleChanged:
		return "networkVisibleChanged"
	case EventActiveVenueChanged:
		return "activeVenueChanged"
	case EventBuildingRegistered:
		return "buildingRegistered"
	case EventBuildingRemoved:
		return "buildingRemoved"
	case EventNetworkRegistered:
		return "networkRegistered"
	case EventNetworkRemoved:
		return "networkRemoved"
	default:
		return "unknown"
	}
}

// Change describes one state transition delivered to subscribers.
type Change struct {
	Event    Event
	VenueID  string // set for per-venue events, empty for globals
	Previous any
	Current  any
}

// Mode is the dimension display mode.
type Mode string

const (
	Mode2D Mode = "2D"
	Mode3D Mode = "3D"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == Mode2D || m == Mode3D
}

// TilesetStyle is the per-venue massing tileset appearance.
type TilesetStyle struct {
	Opacity float64
	Visible bool
}

// DefaultTilesetStyle is the style applied to newly registered venues.
var DefaultTilesetStyle = TilesetStyle{Opacity: 1, Visible: true}
