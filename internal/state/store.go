package state

import (
	"go.uber.org/zap"

	"github.com/Faultbox/venueview/internal/logger"
	"github.com/Faultbox/venueview/internal/venue"
)

// View is the read side of the store. Engines and router selectors read
// through this interface; the router also uses it to probe which accessors
// a selector touches.
type View interface {
	SelectedLevel() string
	KickMode() bool
	DimensionMode() Mode
	In2D() bool
	WallsVisible() bool
	ClipZ() (float64, bool)
	TilesetStyle(venueID string) TilesetStyle
	NetworkVisible(venueID string) bool
	LastActiveVenue() string
	Building(venueID string) (*venue.Building, bool)
	Buildings() []*venue.Building
	Network(venueID string) (*venue.NetworkOverlay, bool)
	Networks() []*venue.NetworkOverlay
}

// Store is the single mutable container for all shared viewer state. It is
// single-goroutine by contract (the UI/control surface serializes calls);
// setters emit change events synchronously and are re-entrancy safe: a
// subscriber callback may call another setter, and nested emission of the
// event kind currently being dispatched is suppressed (the value still
// applies).
type Store struct {
	selectedLevel   string
	kickMode        bool
	mode            Mode
	wallsVisible    bool
	clipZ           *float64
	tilesetStyles   map[string]TilesetStyle
	networkVisible  map[string]bool
	lastActiveVenue string

	buildings map[string]*venue.Building
	networks  map[string]*venue.NetworkOverlay

	subscribers map[int]*subscriber
	nextSubID   int
	dispatching [numEvents]bool
}

type subscriber struct {
	events  [numEvents]bool
	handler func(Change)
}

// NewStore creates a store with the static defaults: 3D mode, all levels,
// walls visible, no clip.
func NewStore() *Store {
	return &Store{
		selectedLevel:  venue.LevelAll,
		mode:           Mode3D,
		wallsVisible:   true,
		tilesetStyles:  make(map[string]TilesetStyle),
		networkVisible: make(map[string]bool),
		buildings:      make(map[string]*venue.Building),
		networks:       make(map[string]*venue.NetworkOverlay),
		subscribers:    make(map[int]*subscriber),
	}
}

// subscribe registers a handler for the given event kinds and returns an
// unsubscribe func. The router is the intended caller; engines go through
// it to get change-suppression semantics.
func (s *Store) subscribe(events []Event, handler func(Change)) func() {
	sub := &subscriber{handler: handler}
	for _, e := range events {
		if e >= 0 && e < numEvents {
			sub.events[e] = true
		}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = sub
	return func() { delete(s.subscribers, id) }
}

// emit dispatches a change to every interested subscriber. The subscriber
// set is snapshotted first so callbacks may subscribe/unsubscribe during
// dispatch; re-emission of the same event kind from inside its own
// dispatch is suppressed.
func (s *Store) emit(ch Change) {
	if s.dispatching[ch.Event] {
		logger.Debug("suppressed re-entrant emission", zap.Stringer("event", ch.Event))
		return
	}
	s.dispatching[ch.Event] = true
	defer func() { s.dispatching[ch.Event] = false }()

	metricEmitted.WithLabelValues(ch.Event.String()).Inc()

	snapshot := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		snapshot = append(snapshot, sub)
	}
	for _, sub := range snapshot {
		if sub.events[ch.Event] {
			sub.handler(ch)
		}
	}
}

//==================== Global scalar state ====================//

// SelectedLevel returns the active floor selection ("ALL" = no filter).
func (s *Store) SelectedLevel() string { return s.selectedLevel }

// SetSelectedLevel changes the floor selection. Empty ids are rejected
// silently; callers detect the rejection by the getter still reporting the
// old value.
func (s *Store) SetSelectedLevel(levelID string) {
	if levelID == "" {
		logger.Debug("rejected empty level id")
		return
	}
	if levelID == s.selectedLevel {
		return
	}
	prev := s.selectedLevel
	s.selectedLevel = levelID
	s.emit(Change{Event: EventSelectedLevelChanged, Previous: prev, Current: levelID})
}

// KickMode reports whether "this floor and below" display is active.
func (s *Store) KickMode() bool { return s.kickMode }

// SetKickMode toggles cumulative floor display.
func (s *Store) SetKickMode(on bool) {
	if on == s.kickMode {
		return
	}
	prev := s.kickMode
	s.kickMode = on
	s.emit(Change{Event: EventKickModeChanged, Previous: prev, Current: on})
}

// DimensionMode returns the current display mode.
func (s *Store) DimensionMode() Mode { return s.mode }

// In2D reports whether the flattened top-down mode is active.
func (s *Store) In2D() bool { return s.mode == Mode2D }

// SetDimensionMode switches between flattened (2D) and full massing (3D)
// display. Unknown values are rejected silently. Entering 2D resets the
// floor selection to ALL and disables kick mode; both resets emit their
// own events after the mode event.
func (s *Store) SetDimensionMode(m Mode) {
	if !m.Valid() {
		logger.Debug("rejected invalid dimension mode", zap.String("value", string(m)))
		return
	}
	if m == s.mode {
		return
	}
	prev := s.mode
	s.mode = m
	s.emit(Change{Event: EventDimensionModeChanged, Previous: prev, Current: m})

	if m == Mode2D {
		s.SetSelectedLevel(venue.LevelAll)
		s.SetKickMode(false)
	}
}

// WallsVisible reports the global walls flag.
func (s *Store) WallsVisible() bool { return s.wallsVisible }

// SetWallsVisible toggles wall/door/window-wall rendering.
func (s *Store) SetWallsVisible(on bool) {
	if on == s.wallsVisible {
		return
	}
	prev := s.wallsVisible
	s.wallsVisible = on
	s.emit(Change{Event: EventWallsVisibleChanged, Previous: prev, Current: on})
}

// ClipZ returns the vertical clip threshold and whether clipping is active.
func (s *Store) ClipZ() (float64, bool) {
	if s.clipZ == nil {
		return 0, false
	}
	return *s.clipZ, true
}

// SetClipZ sets the vertical clip threshold. Passing nil disables clipping.
func (s *Store) SetClipZ(z *float64) {
	if s.clipZ == nil && z == nil {
		return
	}
	if s.clipZ != nil && z != nil && *s.clipZ == *z {
		return
	}
	prev := s.clipZ
	if z != nil {
		v := *z
		z = &v // detach from caller storage
	}
	s.clipZ = z
	s.emit(Change{Event: EventClipChanged, Previous: prev, Current: s.clipZ})
}

// LastActiveVenue returns the id of the most recently focused venue.
func (s *Store) LastActiveVenue() string { return s.lastActiveVenue }

// SetLastActiveVenue records the most recently focused venue.
func (s *Store) SetLastActiveVenue(venueID string) {
	if venueID == s.lastActiveVenue {
		return
	}
	prev := s.lastActiveVenue
	s.lastActiveVenue = venueID
	s.emit(Change{Event: EventActiveVenueChanged, Previous: prev, Current: venueID})
}

//==================== Per-venue state ====================//

// TilesetStyle returns the massing tileset style for a venue.
func (s *Store) TilesetStyle(venueID string) TilesetStyle {
	if st, ok := s.tilesetStyles[venueID]; ok {
		return st
	}
	return DefaultTilesetStyle
}

// SetTilesetStyle updates the massing tileset style for a venue.
func (s *Store) SetTilesetStyle(venueID string, st TilesetStyle) {
	if s.TilesetStyle(venueID) == st {
		return
	}
	prev := s.TilesetStyle(venueID)
	s.tilesetStyles[venueID] = st
	s.emit(Change{Event: EventTilesetStyleChanged, VenueID: venueID, Previous: prev, Current: st})
}

// NetworkVisible reports the user-facing visibility toggle of a venue's
// network overlay. Defaults to true for unknown venues.
func (s *Store) NetworkVisible(venueID string) bool {
	if v, ok := s.networkVisible[venueID]; ok {
		return v
	}
	return true
}

// SetNetworkVisible toggles a venue's network overlay.
func (s *Store) SetNetworkVisible(venueID string, on bool) {
	if s.NetworkVisible(venueID) == on {
		return
	}
	prev := s.NetworkVisible(venueID)
	s.networkVisible[venueID] = on
	s.emit(Change{Event: EventNetworkVisibleChanged, VenueID: venueID, Previous: prev, Current: on})
}

//==================== Registry ====================//

// Building returns a registered building.
func (s *Store) Building(venueID string) (*venue.Building, bool) {
	b, ok := s.buildings[venueID]
	return b, ok
}

// Buildings returns all registered buildings. Order is unspecified.
func (s *Store) Buildings() []*venue.Building {
	out := make([]*venue.Building, 0, len(s.buildings))
	for _, b := range s.buildings {
		out = append(out, b)
	}
	return out
}

// RegisterBuilding adds a fully loaded building to the registry. A
// previously registered building under the same venue id is replaced; the
// caller is responsible for destroying its scene features.
func (s *Store) RegisterBuilding(b *venue.Building) {
	prev := s.buildings[b.VenueID]
	s.buildings[b.VenueID] = b
	s.emit(Change{Event: EventBuildingRegistered, VenueID: b.VenueID, Previous: prev, Current: b})
}

// RemoveBuilding evicts a building from the registry and returns it.
func (s *Store) RemoveBuilding(venueID string) (*venue.Building, bool) {
	b, ok := s.buildings[venueID]
	if !ok {
		return nil, false
	}
	delete(s.buildings, venueID)
	delete(s.tilesetStyles, venueID)
	s.emit(Change{Event: EventBuildingRemoved, VenueID: venueID, Previous: b, Current: nil})
	return b, true
}

// Network returns a registered network overlay.
func (s *Store) Network(venueID string) (*venue.NetworkOverlay, bool) {
	n, ok := s.networks[venueID]
	return n, ok
}

// Networks returns all registered network overlays. Order is unspecified.
func (s *Store) Networks() []*venue.NetworkOverlay {
	out := make([]*venue.NetworkOverlay, 0, len(s.networks))
	for _, n := range s.networks {
		out = append(out, n)
	}
	return out
}

// RegisterNetwork adds a network overlay to the registry.
func (s *Store) RegisterNetwork(n *venue.NetworkOverlay) {
	prev := s.networks[n.VenueID]
	s.networks[n.VenueID] = n
	s.emit(Change{Event: EventNetworkRegistered, VenueID: n.VenueID, Previous: prev, Current: n})
}

// RemoveNetwork evicts a network overlay and returns it.
func (s *Store) RemoveNetwork(venueID string) (*venue.NetworkOverlay, bool) {
	n, ok := s.networks[venueID]
	if !ok {
		return nil, false
	}
	delete(s.networks, venueID)
	delete(s.networkVisible, venueID)
	s.emit(Change{Event: EventNetworkRemoved, VenueID: venueID, Previous: n, Current: nil})
	return n, true
}

// Reset evicts every building and network and restores the scalar fields
// to their defaults. Eviction events fire per venue so engines can tear
// down scene features.
func (s *Store) Reset() {
	for id := range s.buildings {
		s.RemoveBuilding(id)
	}
	for id := range s.networks {
		s.RemoveNetwork(id)
	}
	s.SetDimensionMode(Mode3D)
	s.SetSelectedLevel(venue.LevelAll)
	s.SetKickMode(false)
	s.SetWallsVisible(true)
	s.SetClipZ(nil)
	s.SetLastActiveVenue("")
}
