package grid

import (
	"errors"
	"math"
	"testing"
)

func TestFactoryKnownGrids(t *testing.T) {
	names := []string{"1/4000", "3/33600", "10/40000", "8/32000", "90/27008", "90/9984", "zoom_0", "zoom_12", "zoom_22"}
	for _, name := range names {
		if _, err := Factory(name); err != nil {
			t.Errorf("Factory(%q) returned unexpected error: %v", name, err)
		}
	}
}

func TestFactoryUnknownGrid(t *testing.T) {
	_, err := Factory("not-a-grid")
	if !errors.Is(err, ErrUnknownGrid) {
		t.Fatalf("expected ErrUnknownGrid, got %v", err)
	}
}

func TestFactoryZoomOutOfRange(t *testing.T) {
	_, err := Factory("zoom_99")
	if !errors.Is(err, ErrUnknownGrid) {
		t.Fatalf("expected ErrUnknownGrid for out-of-range zoom, got %v", err)
	}
}

// TestSnapRounding is spec.md scenario S3: snap(9.7777, 10.1117) with
// xres=yres=0.00025 yields (9.77775, 10.1115).
func TestSnapRounding(t *testing.T) {
	g := NewLatLngGrid(10, 40000, 0) // xres = yres = 10/40000 = 0.00025
	if got := g.XRes(); math.Abs(got-0.00025) > 1e-12 {
		t.Fatalf("expected xres 0.00025, got %v", got)
	}

	lat, lng := g.Snap(9.7777, 10.1117)
	if math.Abs(lat-9.77775) > 1e-9 {
		t.Errorf("snap lat = %v, want 9.77775", lat)
	}
	if math.Abs(lng-10.1115) > 1e-9 {
		t.Errorf("snap lng = %v, want 10.1115", lng)
	}
}

func TestSnapIdempotent(t *testing.T) {
	g := NewLatLngGrid(10, 40000, 0)
	lat1, lng1 := g.Snap(9.7777, 10.1117)
	lat2, lng2 := g.Snap(lat1, lng1)
	if lat1 != lat2 || lng1 != lng2 {
		t.Errorf("snap not idempotent: (%v,%v) -> (%v,%v)", lat1, lng1, lat2, lng2)
	}
}

// TestLatLngGridRoundTrip is testable property 1: for every tile-id t,
// tile_id_of(origin_of(t)) == t.
func TestLatLngGridRoundTrip(t *testing.T) {
	g := NewLatLngGrid(10, 40000, 0)
	ids := []string{"10N_010E", "20N_010E", "30N_010E", "00N_000E", "10S_170W"}
	for _, id := range ids {
		lng, lat, err := g.OriginOf(id)
		if err != nil {
			t.Fatalf("OriginOf(%q): %v", id, err)
		}
		got, err := g.TileIDOf(lng, lat)
		if err != nil {
			t.Fatalf("TileIDOf: %v", err)
		}
		if got != id {
			t.Errorf("round trip: OriginOf(%q) -> (%v,%v) -> TileIDOf = %q", id, lng, lat, got)
		}
	}
}

func TestLatLngGridInvalidCoordinate(t *testing.T) {
	g := NewLatLngGrid(10, 40000, 0)
	_, err := g.TileIDOf(0, 95)
	if !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestWebMercatorGridRoundTrip(t *testing.T) {
	g := NewWebMercatorGrid(10, 0)
	for col := 100; col < 104; col++ {
		for row := 100; row < 104; row++ {
			id := mercatorTileID(row, col)
			lng, lat, err := g.OriginOf(id)
			if err != nil {
				t.Fatalf("OriginOf(%q): %v", id, err)
			}
			// nudge the point slightly southeast, inside the tile, to
			// avoid boundary-snap ambiguity with the corner itself.
			epsLng := lng + g.XRes()/1e6
			epsLat := lat - g.YRes()/1e6
			got, err := g.TileIDOf(toLngLat(g, epsLng, epsLat))
			if err != nil {
				t.Fatalf("TileIDOf: %v", err)
			}
			if got != id {
				t.Errorf("round trip: %q -> (%v,%v) -> %q", id, lng, lat, got)
			}
		}
	}
}

func toLngLat(g *WebMercatorGrid, lng, lat float64) (float64, float64) {
	// OriginOf returns projected meters; convert back to degrees for
	// TileIDOf, which accepts geographic coordinates.
	worldSize := 2 * math.Pi * earthRadiusMeters
	lngDeg := lng / worldSize * 360
	latRad := math.Atan(math.Sinh(lat / earthRadiusMeters))
	latDeg := latRad * 180 / math.Pi
	return lngDeg, latDeg
}

// TestVRTTransform is spec.md scenario S4: vrt_transform(9.1, 9.1, 9.2, 9.2)
// with xres=yres=0.00025 yields affine (0.00025, 0, 9.1, 0, -0.00025, 9.2)
// and width=height=400.
func TestVRTTransform(t *testing.T) {
	const xres, yres = 0.00025, 0.00025
	west, south, east, north := 9.1, 9.1, 9.2, 9.2

	transform := FromOrigin(west, north, xres, yres)
	want := Affine{A: 0.00025, B: 0, C: 9.1, D: 0, E: -0.00025, F: 9.2}
	if transform != want {
		t.Errorf("transform = %+v, want %+v", transform, want)
	}

	width := roundDim((east - west) / xres)
	height := roundDim((north - south) / yres)
	if width != 400 || height != 400 {
		t.Errorf("width=%d height=%d, want 400,400", width, height)
	}
}
