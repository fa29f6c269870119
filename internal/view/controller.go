package view

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/venueview/internal/config"
	"github.com/Faultbox/venueview/internal/logger"
	"github.com/Faultbox/venueview/internal/prefs"
	"github.com/Faultbox/venueview/internal/scene"
	"github.com/Faultbox/venueview/internal/state"
	"github.com/Faultbox/venueview/internal/venue"
	"github.com/Faultbox/venueview/pkg/geom"
)

// Preference keys persisted through the prefs collaborator.
const (
	prefKeyMode      = "viewer:mode"
	prefKeyLastVenue = "viewer:lastVenue"
)

// Controller is the owning root of the viewer core. It builds the store,
// router, and engines, declares each engine's event interest, and exposes
// the serialized methods the control surface calls.
//
// The store and engines are single-goroutine by contract; the controller's
// mutex is the single point where concurrent callers (HTTP handlers) are
// serialized. Event dispatch below the mutex stays lock-free, so
// subscriber callbacks may re-enter store setters freely.
type Controller struct {
	mu sync.Mutex

	store    *state.Store
	router   *state.Router
	engine   scene.Engine
	loader   *venue.Loader
	filter   *FilterEngine
	layering *LayeringManager
	clip     *ClipEngine
	prefs    prefs.Store
	prefsTTL time.Duration

	// loadGen guards against fetches that complete after their venue was
	// unloaded or superseded (check-after-await).
	loadGen map[string]int

	// prefCh feeds the background preference writer, keeping the slow
	// prefs backend off the dispatch path (and out from under the mutex)
	// while preserving write order per key.
	prefCh    chan prefWrite
	prefDone  chan struct{}
	closeOnce sync.Once

	unsubs []func()
	log    *zap.Logger
}

type prefWrite struct {
	key   string
	value string
}

// NewController wires the full core.
func NewController(engine scene.Engine, loader *venue.Loader, prefStore prefs.Store, cfg config.ViewerConfig, prefsTTL time.Duration) *Controller {
	store := state.NewStore()
	c := &Controller{
		store:    store,
		router:   state.NewRouter(store),
		engine:   engine,
		loader:   loader,
		filter:   NewFilterEngine(store),
		layering: NewLayeringManager(NewLabelBuilder(engine, cfg.Labels)),
		clip:     NewClipEngine(engine),
		prefs:    prefStore,
		prefsTTL: prefsTTL,
		loadGen:  make(map[string]int),
		prefCh:   make(chan prefWrite, 16),
		prefDone: make(chan struct{}),
		log:      logger.Named("controller"),
	}
	go c.prefWriter()
	c.subscribeEngines()

	// Config defaults, applied before any building loads.
	store.SetWallsVisible(cfg.WallsVisible)
	if m := state.Mode(cfg.DefaultMode); m.Valid() {
		store.SetDimensionMode(m)
	}
	if cfg.DefaultLevel != "" {
		store.SetSelectedLevel(cfg.DefaultLevel)
	}

	return c
}

// Store exposes the underlying state store, mainly for tests.
func (c *Controller) Store() *state.Store { return c.store }

// Router exposes the subscription router for additional consumers.
func (c *Controller) Router() *state.Router { return c.router }

// subscribeEngines declares each engine's event interest explicitly — the
// declared-event list is the primary path, probe detection is only a
// convenience for external consumers.
func (c *Controller) subscribeEngines() {
	sub := func(events []state.Event, fn func(state.Change)) {
		c.unsubs = append(c.unsubs, c.router.Subscribe(state.Subscription{
			Events:   events,
			Callback: fn,
		}))
	}

	sub([]state.Event{state.EventSelectedLevelChanged, state.EventKickModeChanged},
		func(state.Change) {
			c.refilterAll()
			c.reapplyClip()
		})

	sub([]state.Event{state.EventDimensionModeChanged},
		func(state.Change) { c.onModeChanged() })

	sub([]state.Event{state.EventWallsVisibleChanged},
		func(state.Change) { c.refilterAll() })

	sub([]state.Event{state.EventClipChanged},
		func(state.Change) { c.onClipChanged() })

	sub([]state.Event{state.EventNetworkVisibleChanged},
		func(ch state.Change) { c.onNetworkVisibleChanged(ch.VenueID) })

	sub([]state.Event{state.EventTilesetStyleChanged},
		func(ch state.Change) { c.onTilesetStyleChanged(ch.VenueID) })

	sub([]state.Event{state.EventBuildingRegistered},
		func(ch state.Change) {
			if b, ok := ch.Current.(*venue.Building); ok {
				c.onBuildingRegistered(b)
			}
		})

	sub([]state.Event{state.EventBuildingRemoved},
		func(ch state.Change) {
			if b, ok := ch.Previous.(*venue.Building); ok && b != nil {
				c.layering.ForgetBuilding(b)
				venue.Destroy(c.engine, b, nil)
			}
		})

	sub([]state.Event{state.EventNetworkRemoved},
		func(ch state.Change) {
			if n, ok := ch.Previous.(*venue.NetworkOverlay); ok && n != nil {
				for _, link := range n.Links {
					// Keep a replacement link a reload registered under
					// the same id.
					if link.Scene != nil && c.engine.Feature(link.ID) != link.Scene {
						continue
					}
					c.engine.RemoveFeature(link.ID)
				}
			}
		})
}

// Close unsubscribes all engines and drains the preference writer.
func (c *Controller) Close() {
	for _, u := range c.unsubs {
		u()
	}
	c.unsubs = nil
	c.closeOnce.Do(func() {
		close(c.prefCh)
		<-c.prefDone
	})
}

//==================== Event reactions ====================//

func (c *Controller) refilterAll() {
	for _, b := range c.store.Buildings() {
		c.filter.FilterByLevel(b, c.store.SelectedLevel(), c.store.KickMode())
	}
}

// reapplyClip re-establishes the clip cutoff after a filter pass. Clip
// ANDs into the filter result, so order matters: filter first, clip second.
func (c *Controller) reapplyClip() {
	z, ok := c.store.ClipZ()
	if !ok {
		return
	}
	for _, b := range c.store.Buildings() {
		c.clip.ApplyBuilding(b, z)
	}
	for _, n := range c.store.Networks() {
		c.clip.ApplyNetwork(n, z)
	}
}

func (c *Controller) onModeChanged() {
	buildings := c.store.Buildings()
	if c.store.In2D() {
		c.layering.Enter2D(buildings)
	} else {
		c.layering.Exit3D(buildings)
	}
	c.refilterAll()
	c.reapplyClip()
	c.persistPref(prefKeyMode, string(c.store.DimensionMode()))
}

func (c *Controller) onClipChanged() {
	z, ok := c.store.ClipZ()
	if !ok {
		// Clip disabled: everything back to visible, then re-establish the
		// filter and the user's network toggles, which reset clobbered.
		for _, b := range c.store.Buildings() {
			c.clip.ResetBuilding(b)
		}
		for _, n := range c.store.Networks() {
			c.clip.ResetNetwork(n)
			c.applyNetworkVisibility(n)
		}
		c.refilterAll()
		c.clip.ClearPlane()
		return
	}

	c.refilterAll()
	for _, b := range c.store.Buildings() {
		c.clip.ApplyBuilding(b, z)
	}
	for _, n := range c.store.Networks() {
		c.applyNetworkVisibility(n)
		c.clip.ApplyNetwork(n, z)
	}
	c.clip.SetPlane(z)
}

func (c *Controller) onNetworkVisibleChanged(venueID string) {
	n, ok := c.store.Network(venueID)
	if !ok {
		return
	}
	n.UserHidden = !c.store.NetworkVisible(venueID)
	c.applyNetworkVisibility(n)
	if z, active := c.store.ClipZ(); active {
		c.clip.ApplyNetwork(n, z)
	}
}

func (c *Controller) applyNetworkVisibility(n *venue.NetworkOverlay) {
	visible := !n.UserHidden
	for _, link := range n.Links {
		if link.Scene != nil {
			link.Scene.Show = visible
		}
	}
}

func (c *Controller) onTilesetStyleChanged(venueID string) {
	b, ok := c.store.Building(venueID)
	if !ok {
		return
	}
	st := c.store.TilesetStyle(venueID)
	for _, f := range b.Features() {
		if f.Scene == nil {
			continue
		}
		f.Scene.Style.Opacity = st.Opacity
	}
	if !st.Visible {
		for _, f := range b.Features() {
			if f.Scene != nil {
				f.Scene.Show = false
			}
		}
		return
	}
	// Back to visible: the filter decides which features actually show.
	c.filter.FilterByLevel(b, c.store.SelectedLevel(), c.store.KickMode())
	if z, active := c.store.ClipZ(); active {
		c.clip.ApplyBuilding(b, z)
	}
}

func (c *Controller) onBuildingRegistered(b *venue.Building) {
	c.filter.FilterByLevel(b, c.store.SelectedLevel(), c.store.KickMode())
	if c.layering.In2D() {
		c.layering.ApplyBuilding(b)
	}
	if z, active := c.store.ClipZ(); active {
		c.clip.ApplyBuilding(b, z)
	}
}

//==================== Control surface ====================//

// SelectLevel changes the floor selection.
func (c *Controller) SelectLevel(levelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.SetSelectedLevel(levelID)
}

// SetKickMode toggles "this floor and below".
func (c *Controller) SetKickMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.SetKickMode(on)
}

// SetDimensionMode switches 2D/3D. Returns false for invalid modes.
func (c *Controller) SetDimensionMode(m state.Mode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !m.Valid() {
		return false
	}
	c.store.SetDimensionMode(m)
	return true
}

// SetWallsVisible toggles wall rendering.
func (c *Controller) SetWallsVisible(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.SetWallsVisible(on)
}

// SetClip sets the vertical clip cutoff.
func (c *Controller) SetClip(maxZ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.SetClipZ(&maxZ)
}

// DisableClip removes the clip cutoff.
func (c *Controller) DisableClip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.SetClipZ(nil)
}

// SetNetworkVisible toggles a venue's network overlay.
func (c *Controller) SetNetworkVisible(venueID string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.SetNetworkVisible(venueID, on)
}

// SetTilesetStyle updates a venue's massing appearance.
func (c *Controller) SetTilesetStyle(venueID string, opacity float64, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.SetTilesetStyle(venueID, state.TilesetStyle{Opacity: opacity, Visible: visible})
}

// LoadVenue fetches a venue and registers it. Fetches that complete after
// the venue was unloaded or superseded are fully discarded: their scene
// features are destroyed and nothing is registered (check-after-await).
func (c *Controller) LoadVenue(ctx context.Context, venueID string) error {
	c.mu.Lock()
	gen := c.loadGen[venueID] + 1
	c.loadGen[venueID] = gen
	c.mu.Unlock()

	b, overlays, err := c.loader.Load(ctx, venueID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loadGen[venueID] != gen {
		c.log.Info("discarding stale venue load", logger.VenueID(venueID))
		venue.Destroy(c.engine, b, overlays)
		return nil
	}

	// Replace an already-registered building cleanly.
	if _, ok := c.store.Building(venueID); ok {
		c.store.RemoveBuilding(venueID)
	}
	if _, ok := c.store.Network(venueID); ok {
		c.store.RemoveNetwork(venueID)
	}

	c.store.RegisterBuilding(b)

	if n := mergeOverlays(venueID, overlays); n != nil {
		n.UserHidden = !c.store.NetworkVisible(venueID)
		c.store.RegisterNetwork(n)
		c.applyNetworkVisibility(n)
		if z, active := c.store.ClipZ(); active {
			c.clip.ApplyNetwork(n, z)
		}
	}

	c.store.SetLastActiveVenue(venueID)
	c.persistPref(prefKeyLastVenue, venueID)
	c.flyToBuilding(b)

	c.log.Info("venue loaded",
		logger.VenueID(venueID),
		zap.Int("levels", len(b.Levels)),
		zap.Int("features", len(b.Features())))
	return nil
}

// UnloadVenue evicts a venue and destroys its scene features. In-flight
// loads for the venue will be discarded when they complete. Returns
// venue.ErrNotLoaded when nothing was registered under the id.
func (c *Controller) UnloadVenue(venueID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadGen[venueID]++
	_, hadBuilding := c.store.RemoveBuilding(venueID)
	_, hadNetwork := c.store.RemoveNetwork(venueID)
	if !hadBuilding && !hadNetwork {
		return fmt.Errorf("unloading %s: %w", venueID, venue.ErrNotLoaded)
	}
	return nil
}

// Reset evicts everything and restores default view state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.loadGen {
		c.loadGen[id]++
	}
	c.store.Reset()
	c.clip.ClearPlane()
}

// RestoreSession applies persisted preferences: view mode first, then the
// last active venue. Missing or invalid values fall back to the static
// defaults already in the store.
func (c *Controller) RestoreSession(ctx context.Context) {
	if val, err := c.prefs.Load(ctx, prefKeyMode); err == nil {
		if m := state.Mode(val); m.Valid() {
			c.mu.Lock()
			c.store.SetDimensionMode(m)
			c.mu.Unlock()
		}
	} else if !prefs.IsNotFound(err) {
		c.log.Warn("loading view mode pref", zap.Error(err))
	}

	if val, err := c.prefs.Load(ctx, prefKeyLastVenue); err == nil && val != "" {
		if err := c.LoadVenue(ctx, val); err != nil {
			c.log.Warn("restoring last venue", logger.VenueID(val), zap.Error(err))
		}
	}
}

// mergeOverlays folds the loader's overlay list into the single per-venue
// registry entry.
func mergeOverlays(venueID string, overlays []*venue.NetworkOverlay) *venue.NetworkOverlay {
	if len(overlays) == 0 {
		return nil
	}
	merged := &venue.NetworkOverlay{VenueID: venueID}
	for _, ov := range overlays {
		merged.Links = append(merged.Links, ov.Links...)
	}
	return merged
}

// persistPref is a one-way notification handed to the background writer;
// a full queue drops the write rather than stalling the caller.
func (c *Controller) persistPref(key, value string) {
	select {
	case c.prefCh <- prefWrite{key: key, value: value}:
	default:
		c.log.Warn("preference write dropped, queue full", zap.String("key", key))
	}
}

// prefWriter drains queued preference writes in order. Failures are
// logged, never surfaced.
func (c *Controller) prefWriter() {
	defer close(c.prefDone)
	for w := range c.prefCh {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.prefs.Save(ctx, w.key, w.value, c.prefsTTL)
		cancel()
		if err != nil {
			c.log.Warn("persisting preference", zap.String("key", w.key), zap.Error(err))
		}
	}
}

// flyToBuilding frames the building: camera centered on the mean unit
// position at a distance scaled by the vertical extent.
func (c *Controller) flyToBuilding(b *venue.Building) {
	var center geom.Vec3
	n := 0
	for _, u := range b.Units {
		if u.Scene != nil {
			center = center.Add(u.Scene.Position)
			n++
		}
	}
	if n == 0 {
		return
	}
	center = center.Scale(1 / float64(n))

	distance := 400.0
	if len(b.Levels) > 0 {
		low, high := b.Levels[0].ZValue, b.Levels[0].ZValue
		for _, l := range b.Levels {
			if l.ZValue < low {
				low = l.ZValue
			}
			if l.ZValue > high {
				high = l.ZValue
			}
		}
		if span := high - low; span > 0 {
			distance += span * 4
		}
	}
	c.engine.FlyTo(center, distance)
}

// Snapshot is the read-only view of the whole session returned by the
// control surface.
type Snapshot struct {
	SelectedLevel   string          `json:"selectedLevel"`
	KickMode        bool            `json:"kickMode"`
	DimensionMode   string          `json:"dimensionMode"`
	WallsVisible    bool            `json:"wallsVisible"`
	ClipZ           *float64        `json:"clipZ"`
	LastActiveVenue string          `json:"lastActiveVenue"`
	Venues          []VenueSnapshot `json:"venues"`
}

// VenueSnapshot summarizes one registered venue.
type VenueSnapshot struct {
	VenueID        string          `json:"venueId"`
	Name           string          `json:"name"`
	Levels         []LevelSnapshot `json:"levels"`
	FeatureCount   int             `json:"featureCount"`
	VisibleCount   int             `json:"visibleCount"`
	NetworkVisible bool            `json:"networkVisible"`
	TilesetOpacity float64         `json:"tilesetOpacity"`
	TilesetVisible bool            `json:"tilesetVisible"`
}

// LevelSnapshot summarizes one floor.
type LevelSnapshot struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Ordinal int     `json:"ordinal"`
	ZValue  float64 `json:"z"`
}

// StateSnapshot captures current session state for the control surface.
func (c *Controller) StateSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SelectedLevel:   c.store.SelectedLevel(),
		KickMode:        c.store.KickMode(),
		DimensionMode:   string(c.store.DimensionMode()),
		WallsVisible:    c.store.WallsVisible(),
		LastActiveVenue: c.store.LastActiveVenue(),
		Venues:          []VenueSnapshot{},
	}
	if z, ok := c.store.ClipZ(); ok {
		snap.ClipZ = &z
	}

	for _, b := range c.store.Buildings() {
		vs := VenueSnapshot{
			VenueID:        b.VenueID,
			Name:           b.Name,
			NetworkVisible: c.store.NetworkVisible(b.VenueID),
		}
		st := c.store.TilesetStyle(b.VenueID)
		vs.TilesetOpacity = st.Opacity
		vs.TilesetVisible = st.Visible
		for _, l := range b.Levels {
			vs.Levels = append(vs.Levels, LevelSnapshot{
				ID:      l.ID,
				Name:    l.Name,
				Ordinal: l.Ordinal,
				ZValue:  l.ZValue,
			})
		}
		for _, f := range b.Features() {
			vs.FeatureCount++
			if f.Scene != nil && f.Scene.Show {
				vs.VisibleCount++
			}
		}
		snap.Venues = append(snap.Venues, vs)
	}
	return snap
}
