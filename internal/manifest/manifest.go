// Package manifest loads a layer's source manifest — a GeoJSON feature
// collection, one feature per input raster footprint — and resolves it into
// the (geometry, uri) records the source catalog operates on.
//
// Grounded on original_source/gfw_pixetl/sources.py's VectorSource/footprint
// handling, using the geometry stack (github.com/paulmach/orb) the
// tile-service template already depends on, newly exercising its geojson
// subpackage.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrManifestNotFound and ErrManifestMalformed are the taxonomy errors from
// spec.md §4.2 / §7.
var (
	ErrManifestNotFound  = errors.New("manifest: not found")
	ErrManifestMalformed = errors.New("manifest: malformed")
)

// Record pairs one input raster's footprint polygon (in EPSG:4326) with its
// source URI.
type Record struct {
	Geometry orb.Polygon
	URI      string
}

// Fetcher resolves a manifest URI (s3://, r2://, or a local path) to raw
// bytes. internal/storage.Client satisfies this for remote URIs; a plain
// os.ReadFile-backed implementation is used for local paths.
type Fetcher interface {
	Get(ctx context.Context, uri string) ([]byte, error)
}

// Manifest is an ordered set of source records plus a memoized footprint.
type Manifest struct {
	Records []Record

	footprint    orb.MultiPolygon
	footprintSet bool
}

// Load fetches and parses a GeoJSON FeatureCollection manifest. Each
// feature's geometry must be a Polygon in EPSG:4326 (a MultiPolygon is also
// accepted, and only its first polygon is kept); its "name" property is the
// source URI.
func Load(ctx context.Context, uri string, fetcher Fetcher) (*Manifest, error) {
	raw, err := fetcher.Get(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestNotFound, uri, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestMalformed, uri, err)
	}

	m := &Manifest{}
	for _, f := range fc.Features {
		name, _ := f.Properties["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("%w: %s: feature missing \"name\" property", ErrManifestMalformed, uri)
		}

		poly, err := asPolygon(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrManifestMalformed, uri, err)
		}

		m.Records = append(m.Records, Record{Geometry: poly, URI: name})
	}

	return m, nil
}

func asPolygon(g orb.Geometry) (orb.Polygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return v, nil
	case orb.MultiPolygon:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty multipolygon geometry")
		}
		return v[0], nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T, expected Polygon", g)
	}
}

// Footprint returns the union of all record footprints, memoized on first
// call. This module has no polygon-dissolve (boolean union) library in its
// dependency stack, so the "union" is represented as the aggregate
// MultiPolygon of all footprints rather than a dissolved single boundary —
// sufficient for this module's only consumer, Intersecting, which tests
// each ring independently.
func (m *Manifest) Footprint() orb.MultiPolygon {
	if m.footprintSet {
		return m.footprint
	}
	mp := make(orb.MultiPolygon, 0, len(m.Records))
	for _, r := range m.Records {
		mp = append(mp, r.Geometry)
	}
	m.footprint = mp
	m.footprintSet = true
	return mp
}

// Intersecting returns the URIs of records whose footprint both intersects
// tileBound and does not merely touch it (spec.md §4.2), using rectangle
// clipping since every tile geometry in this system is an axis-aligned
// bounding box.
func (m *Manifest) Intersecting(tileBound orb.Bound) []string {
	var uris []string
	for _, r := range m.Records {
		if intersectsNotTouches(r.Geometry, tileBound) {
			uris = append(uris, r.URI)
		}
	}
	return uris
}
