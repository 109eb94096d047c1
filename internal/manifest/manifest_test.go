package manifest

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

type fakeFetcher struct {
	data map[string][]byte
}

func (f fakeFetcher) Get(ctx context.Context, uri string) ([]byte, error) {
	b, ok := f.data[uri]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

const sampleFC = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "s3://bucket/a.tif"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"name": "s3://bucket/b.tif"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[20,20],[30,20],[30,30],[20,30],[20,20]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"name": "s3://bucket/touching.tif"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[10,0],[20,0],[20,10],[10,10],[10,0]]]
      }
    }
  ]
}`

func loadSample(t *testing.T) *Manifest {
	t.Helper()
	fetcher := fakeFetcher{data: map[string][]byte{"manifest.json": []byte(sampleFC)}}
	m, err := Load(context.Background(), "manifest.json", fetcher)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func TestLoadParsesRecords(t *testing.T) {
	m := loadSample(t)
	if len(m.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(m.Records))
	}
	if m.Records[0].URI != "s3://bucket/a.tif" {
		t.Errorf("Records[0].URI = %q", m.Records[0].URI)
	}
}

func TestLoadNotFound(t *testing.T) {
	fetcher := fakeFetcher{data: map[string][]byte{}}
	_, err := Load(context.Background(), "missing.json", fetcher)
	if !errors.Is(err, ErrManifestNotFound) {
		t.Fatalf("expected ErrManifestNotFound, got %v", err)
	}
}

func TestLoadMalformed(t *testing.T) {
	fetcher := fakeFetcher{data: map[string][]byte{"bad.json": []byte("not json")}}
	_, err := Load(context.Background(), "bad.json", fetcher)
	if !errors.Is(err, ErrManifestMalformed) {
		t.Fatalf("expected ErrManifestMalformed, got %v", err)
	}
}

// TestFootprintAggregatesAllRecords is testable property 11's geometry
// round-trip half: the footprint must carry forward every record's polygon.
func TestFootprintAggregatesAllRecords(t *testing.T) {
	m := loadSample(t)
	fp := m.Footprint()
	if len(fp) != len(m.Records) {
		t.Fatalf("footprint has %d polygons, want %d", len(fp), len(m.Records))
	}
}

func TestIntersectingOverlapping(t *testing.T) {
	m := loadSample(t)
	bound := orb.Bound{Min: orb.Point{5, 5}, Max: orb.Point{15, 15}}
	uris := m.Intersecting(bound)
	if len(uris) != 1 || uris[0] != "s3://bucket/a.tif" {
		t.Fatalf("Intersecting overlapping bound = %v, want [s3://bucket/a.tif]", uris)
	}
}

func TestIntersectingDisjoint(t *testing.T) {
	m := loadSample(t)
	bound := orb.Bound{Min: orb.Point{100, 100}, Max: orb.Point{110, 110}}
	uris := m.Intersecting(bound)
	if len(uris) != 0 {
		t.Fatalf("Intersecting disjoint bound = %v, want none", uris)
	}
}

// TestIntersectingExcludesTouching exercises spec.md §4.2's "does not merely
// touch" exclusion: the tile here shares exactly the edge x=10 with record a
// and record touching.tif, with no interior overlap with either.
func TestIntersectingExcludesTouching(t *testing.T) {
	m := loadSample(t)
	bound := orb.Bound{Min: orb.Point{10, 0}, Max: orb.Point{10, 10}}
	uris := m.Intersecting(bound)
	if len(uris) != 0 {
		t.Fatalf("Intersecting degenerate touching bound = %v, want none", uris)
	}
}

func TestIntersectingSharedEdgeBetweenRecords(t *testing.T) {
	m := loadSample(t)
	bound := orb.Bound{Min: orb.Point{8, 2}, Max: orb.Point{12, 8}}
	uris := m.Intersecting(bound)
	if len(uris) != 2 {
		t.Fatalf("Intersecting straddling bound = %v, want 2 records", uris)
	}
}
