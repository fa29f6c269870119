package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Faultbox/venueview/internal/scene"
	"github.com/Faultbox/venueview/pkg/geom"
)

// Document is the wire format of one venue: a fixed set of named feature
// collections plus levels and optional network overlays.
type Document struct {
	VenueID     string          `json:"venueId"`
	Name        string          `json:"name"`
	Levels      []LevelRecord   `json:"levels"`
	Units       []FeatureRecord `json:"units"`
	Openings    []FeatureRecord `json:"openings"`
	Windows     []FeatureRecord `json:"windows"`
	Amenities   []FeatureRecord `json:"amenities"`
	Occupants   []FeatureRecord `json:"occupants"`
	Walls       []FeatureRecord `json:"walls"`
	Doors       []FeatureRecord `json:"doors"`
	WindowWalls []FeatureRecord `json:"windowWalls"`
	Networks    []NetworkRecord `json:"networks"`
}

// LevelRecord is one floor in the wire format.
type LevelRecord struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Ordinal int     `json:"ordinal"`
	ZValue  float64 `json:"z"`
}

// FeatureRecord is one geometry+attribute record in the wire format.
// Vertices are [x, y, z] triples.
type FeatureRecord struct {
	ID       string      `json:"id"`
	LevelID  string      `json:"levelId"`
	Name     string      `json:"name"`
	Geometry string      `json:"geometry"` // "polygon", "line", "point"
	Vertices [][]float64 `json:"vertices"`
	Color    string      `json:"color"`
	Height   float64     `json:"height"` // extrusion height, wall-like only
	Width    float64     `json:"width"`  // line width
}

// NetworkRecord is one link overlay in the wire format.
type NetworkRecord struct {
	Links []FeatureRecord `json:"links"`
}

// Loader fetches venue documents from an HTTP base URL or a local
// directory and materializes them as scene features.
type Loader struct {
	base   string
	client *http.Client
	engine scene.Engine
}

// NewLoader creates a loader. base is either an http(s) URL prefix or a
// directory containing <venueID>.json files.
func NewLoader(base string, timeout time.Duration, engine scene.Engine) *Loader {
	return &Loader{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
		engine: engine,
	}
}

// Load fetches and materializes one venue. On any error nothing is
// registered with the scene: feature creation happens only after the whole
// document decodes. The caller must discard the result if the venue was
// unloaded while the fetch was in flight.
func (l *Loader) Load(ctx context.Context, venueID string) (*Building, []*NetworkOverlay, error) {
	doc, err := l.fetch(ctx, venueID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading venue %s: %w", venueID, err)
	}
	return l.materialize(doc)
}

func (l *Loader) fetch(ctx context.Context, venueID string) (*Document, error) {
	var data []byte
	if strings.HasPrefix(l.base, "http://") || strings.HasPrefix(l.base, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+"/"+venueID+".json", nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("data source returned %s", resp.Status)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		data, err = os.ReadFile(filepath.Join(l.base, venueID+".json"))
		if err != nil {
			return nil, err
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if doc.VenueID == "" {
		doc.VenueID = venueID
	}
	return &doc, nil
}

// materialize builds the Building and its scene features from a decoded
// document. Malformed records are skipped; one bad feature must not block
// the rest of the venue.
func (l *Loader) materialize(doc *Document) (*Building, []*NetworkOverlay, error) {
	b := &Building{
		VenueID: doc.VenueID,
		Name:    doc.Name,
	}
	for _, lr := range doc.Levels {
		b.Levels = append(b.Levels, &Level{
			ID:      lr.ID,
			Name:    lr.Name,
			Ordinal: lr.Ordinal,
			ZValue:  lr.ZValue,
		})
	}
	b.Index()

	collections := []struct {
		records []FeatureRecord
		class   FeatureClass
		out     *[]*Feature
	}{
		{doc.Units, ClassUnit, &b.Units},
		{doc.Openings, ClassOpening, &b.Openings},
		{doc.Windows, ClassWindow, &b.Windows},
		{doc.Amenities, ClassAmenity, &b.Amenities},
		{doc.Occupants, ClassOccupant, &b.Occupants},
		{doc.Walls, ClassWall, &b.Walls},
		{doc.Doors, ClassDoor, &b.Doors},
		{doc.WindowWalls, ClassWindowWall, &b.WindowWalls},
	}
	for _, col := range collections {
		for i := range col.records {
			f, err := l.buildFeature(b, &col.records[i], col.class)
			if err != nil {
				continue // data shape error: skip, never fatal
			}
			*col.out = append(*col.out, f)
		}
	}

	var overlays []*NetworkOverlay
	for _, nr := range doc.Networks {
		ov := &NetworkOverlay{VenueID: doc.VenueID}
		for i := range nr.Links {
			f, err := l.buildFeature(b, &nr.Links[i], ClassLink)
			if err != nil {
				continue
			}
			ov.Links = append(ov.Links, f)
		}
		overlays = append(overlays, ov)
	}

	return b, overlays, nil
}

func (l *Loader) buildFeature(b *Building, rec *FeatureRecord, class FeatureClass) (*Feature, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("feature without id")
	}

	var kind scene.GeometryKind
	switch rec.Geometry {
	case "polygon":
		kind = scene.GeometryPolygon
	case "line":
		kind = scene.GeometryLine
	case "point", "":
		kind = scene.GeometryPoint
	default:
		return nil, fmt.Errorf("feature %s: unknown geometry %q", rec.ID, rec.Geometry)
	}

	verts := make([]geom.Vec3, 0, len(rec.Vertices))
	for _, v := range rec.Vertices {
		if len(v) < 2 {
			continue
		}
		p := geom.Vec3{X: v[0], Y: v[1]}
		if len(v) >= 3 {
			p.Z = v[2]
		}
		verts = append(verts, p)
	}
	if len(verts) == 0 {
		return nil, fmt.Errorf("feature %s: no vertices", rec.ID)
	}

	// Elevation comes from the owning level when known, else from the
	// geometry itself.
	z := verts[0].Z
	if lvl, ok := b.Level(rec.LevelID); ok {
		z = lvl.ZValue
	}

	pos := verts[0]
	if kind == scene.GeometryPolygon {
		pos = geom.Centroid(verts)
	}
	pos = pos.WithZ(z)

	sf := l.engine.AddFeature(&scene.Feature{
		ID:       rec.ID,
		Show:     true,
		Position: pos,
		Geometry: scene.Geometry{Kind: kind, Vertices: verts},
		Style: scene.Style{
			Color:          rec.Color,
			Opacity:        1,
			ExtrudedHeight: rec.Height,
			Width:          rec.Width,
			DepthTest:      true,
			Scale:          1,
		},
	})

	return &Feature{
		ID:      rec.ID,
		LevelID: rec.LevelID,
		Class:   class,
		ZValue:  z,
		Name:    rec.Name,
		Scene:   sf,
	}, nil
}

// Destroy removes every scene feature belonging to the building. A scene
// feature is only removed if the engine still maps the id to this
// building's instance: a reload registers replacement features under the
// same ids before the old building is evicted, and those must survive.
func Destroy(engine scene.Engine, b *Building, overlays []*NetworkOverlay) {
	remove := func(f *Feature) {
		if f.Scene != nil && engine.Feature(f.ID) != f.Scene {
			return
		}
		engine.RemoveFeature(f.ID)
	}
	for _, f := range b.Features() {
		remove(f)
	}
	for _, f := range b.Overlays {
		remove(f)
	}
	for _, ov := range overlays {
		for _, f := range ov.Links {
			remove(f)
		}
	}
}
