package state

import (
	"reflect"

	"github.com/Faultbox/venueview/internal/venue"
)

// Selector derives a value from the store. Subscribers are invoked only
// when this value actually changes (deep value equality, so composite
// results are compared structurally, not by reference).
type Selector func(View) any

// Subscription declares a consumer's event interest.
//
// Events is the primary, explicit path: the subscriber names exactly the
// event kinds it cares about. When Events is empty the router derives the
// interest set by probing the Selector once against a recording view and
// collecting which accessors it touched — a convenience, not a correctness
// mechanism. A probe that touches nothing falls back to a small broad set;
// an empty match never means "never invoked".
type Subscription struct {
	Events   []Event
	Selector Selector
	Callback func(Change)
}

// broadFallback is the event set used when neither an explicit list nor a
// probe yields any interest.
var broadFallback = []Event{
	EventSelectedLevelChanged,
	EventKickModeChanged,
	EventDimensionModeChanged,
	EventWallsVisibleChanged,
}

// Router maps state changes to the minimal set of consumers affected, so a
// consumer of the selected level never re-evaluates on a network toggle.
type Router struct {
	store *Store
}

// NewRouter creates a router over the store.
func NewRouter(store *Store) *Router {
	return &Router{store: store}
}

// Subscribe registers a subscription and returns its unsubscribe func.
// The callback fires at most once per underlying state-changing call, and
// (when a selector is present) only when the selector's value differs from
// its previous value.
func (r *Router) Subscribe(sub Subscription) func() {
	events := sub.Events
	if len(events) == 0 {
		events = r.detectEvents(sub.Selector)
	}

	var prev any
	havePrev := false
	if sub.Selector != nil {
		prev, havePrev = evalSelector(sub.Selector, r.store)
	}

	return r.store.subscribe(events, func(ch Change) {
		if sub.Selector == nil {
			metricDelivered.WithLabelValues(ch.Event.String()).Inc()
			sub.Callback(ch)
			return
		}
		cur, ok := evalSelector(sub.Selector, r.store)
		if !ok {
			// Selector cannot be evaluated against the current state;
			// deliver rather than silently drop, and restart comparison.
			havePrev = false
			metricDelivered.WithLabelValues(ch.Event.String()).Inc()
			sub.Callback(ch)
			return
		}
		if havePrev && reflect.DeepEqual(prev, cur) {
			metricSuppressed.WithLabelValues(ch.Event.String()).Inc()
			return
		}
		prev = cur
		havePrev = true
		metricDelivered.WithLabelValues(ch.Event.String()).Inc()
		sub.Callback(ch)
	})
}

// evalSelector evaluates a selector, converting a panic (typically a
// selector reading a venue that is not registered yet) into ok=false.
func evalSelector(sel Selector, v View) (val any, ok bool) {
	defer func() {
		if recover() != nil {
			val, ok = nil, false
		}
	}()
	return sel(v), true
}

// detectEvents runs the selector against a recording view and maps the
// touched accessors to event kinds.
func (r *Router) detectEvents(sel Selector) []Event {
	if sel == nil {
		return broadFallback
	}
	probe := &recordingView{store: r.store}
	func() {
		// A selector that panics on probe data still gets a safe
		// subscription out of whatever it touched before panicking.
		defer func() { _ = recover() }()
		_ = sel(probe)
	}()

	var events []Event
	for e := Event(0); e < numEvents; e++ {
		if probe.touched[e] {
			events = append(events, e)
		}
	}
	if len(events) == 0 {
		return broadFallback
	}
	return events
}

// recordingView wraps the store and records which accessors a selector
// reads. Registry accessors map to both register and remove events.
type recordingView struct {
	store   *Store
	touched [numEvents]bool
}

func (v *recordingView) mark(events ...Event) {
	for _, e := range events {
		v.touched[e] = true
	}
}

func (v *recordingView) SelectedLevel() string {
	v.mark(EventSelectedLevelChanged)
	return v.store.SelectedLevel()
}

func (v *recordingView) KickMode() bool {
	v.mark(EventKickModeChanged)
	return v.store.KickMode()
}

func (v *recordingView) DimensionMode() Mode {
	v.mark(EventDimensionModeChanged)
	return v.store.DimensionMode()
}

func (v *recordingView) In2D() bool {
	v.mark(EventDimensionModeChanged)
	return v.store.In2D()
}

func (v *recordingView) WallsVisible() bool {
	v.mark(EventWallsVisibleChanged)
	return v.store.WallsVisible()
}

func (v *recordingView) ClipZ() (float64, bool) {
	v.mark(EventClipChanged)
	return v.store.ClipZ()
}

func (v *recordingView) TilesetStyle(venueID string) TilesetStyle {
	v.mark(EventTilesetStyleChanged)
	return v.store.TilesetStyle(venueID)
}

func (v *recordingView) NetworkVisible(venueID string) bool {
	v.mark(EventNetworkVisibleChanged)
	return v.store.NetworkVisible(venueID)
}

func (v *recordingView) LastActiveVenue() string {
	v.mark(EventActiveVenueChanged)
	return v.store.LastActiveVenue()
}

func (v *recordingView) Building(venueID string) (*venue.Building, bool) {
	v.mark(EventBuildingRegistered, EventBuildingRemoved)
	return v.store.Building(venueID)
}

func (v *recordingView) Buildings() []*venue.Building {
	v.mark(EventBuildingRegistered, EventBuildingRemoved)
	return v.store.Buildings()
}

func (v *recordingView) Network(venueID string) (*venue.NetworkOverlay, bool) {
	v.mark(EventNetworkRegistered, EventNetworkRemoved)
	return v.store.Network(venueID)
}

func (v *recordingView) Networks() []*venue.NetworkOverlay {
	v.mark(EventNetworkRegistered, EventNetworkRemoved)
	return v.store.Networks()
}
