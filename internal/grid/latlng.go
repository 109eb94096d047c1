package grid

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// LatLngGrid is a fixed-step geographic grid: each cell spans stepDeg
// degrees of latitude and longitude, rendered at pixelsPerStep pixels per
// side. Resolution is therefore stepDeg/pixelsPerStep degrees per pixel.
//
// Grounded on original_source/gfw_pixetl/grids/grid_factory.py's
// LatLngGrid(step, pixels) construction.
type LatLngGrid struct {
	stepDeg       float64
	pixelsPerStep int
	blockSize     int
}

// NewLatLngGrid builds a geographic grid with the given step (in degrees)
// and pixels-per-step. blockSize defaults to 400 when 0 is given, matching
// this module's default GeoTIFF block size.
func NewLatLngGrid(stepDeg float64, pixelsPerStep int, blockSize int) *LatLngGrid {
	if blockSize <= 0 {
		blockSize = 400
	}
	return &LatLngGrid{stepDeg: stepDeg, pixelsPerStep: pixelsPerStep, blockSize: blockSize}
}

func (g *LatLngGrid) CRS() string  { return "EPSG:4326" }
func (g *LatLngGrid) XRes() float64 { return g.stepDeg / float64(g.pixelsPerStep) }
func (g *LatLngGrid) YRes() float64 { return g.stepDeg / float64(g.pixelsPerStep) }
func (g *LatLngGrid) TileWidth() int  { return g.pixelsPerStep }
func (g *LatLngGrid) TileHeight() int { return g.pixelsPerStep }

func (g *LatLngGrid) BlockShape() (int, int) {
	bx := g.blockSize
	if bx > g.pixelsPerStep {
		bx = g.pixelsPerStep
	}
	return bx, bx
}

// Snap aligns lat/lng to this grid's pixel lattice the way a north-west
// corner is aligned: lat moves up (north) and lng moves down (west) to a
// multiple of the pixel size. Grounded on original_source's
// snap_coordinates / test__snap_coordinates (spec.md S3):
// snap(9.7777, 10.1117) with xres=yres=0.00025 yields (9.77775, 10.1115).
// The pixel count is rounded to 6 decimals before ceil/floor, so a value
// already on the lattice stays put.
func (g *LatLngGrid) Snap(lat, lng float64) (float64, float64) {
	xres, yres := g.XRes(), g.YRes()
	latSteps := math.Ceil(math.Round(lat/yres*1e6) / 1e6)
	lngSteps := math.Floor(math.Round(lng/xres*1e6) / 1e6)
	return snapTo(latSteps*yres, yres), snapTo(lngSteps*xres, xres)
}

var tileIDPattern = regexp.MustCompile(`^(\d+)([NS])_(\d+)([EW])$`)

// OriginOf parses a tile id of the form "{lat}{N|S}_{lng}{E|W}" (e.g.
// "10N_010E") into the northwest corner it names.
func (g *LatLngGrid) OriginOf(tileID string) (lng, lat float64, err error) {
	m := tileIDPattern.FindStringSubmatch(tileID)
	if m == nil {
		return 0, 0, fmt.Errorf("grid: malformed tile id %q", tileID)
	}
	latAbs, _ := strconv.Atoi(m[1])
	lngAbs, _ := strconv.Atoi(m[3])

	lat = float64(latAbs)
	if m[2] == "S" {
		lat = -lat
	}
	lng = float64(lngAbs)
	if m[4] == "W" {
		lng = -lng
	}
	return lng, lat, nil
}

// TileIDOf returns the id of the cell whose bounds are
// (north-step, north] x [west, west+step) containing (lng, lat).
func (g *LatLngGrid) TileIDOf(lng, lat float64) (string, error) {
	if lat > 90 || lat < -90 || lng > 180 || lng < -180 {
		return "", fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinate, lat, lng)
	}

	step := g.stepDeg
	// Cell bounds are (north-step, north] x [west, west+step): a point lying
	// exactly on a step boundary belongs to the cell it is the corner of,
	// which keeps OriginOf -> TileIDOf a round trip (spec property 1).
	north := math.Ceil(lat/step) * step
	west := math.Floor(lng/step) * step

	latAbs := int(math.Abs(north))
	lngAbs := int(math.Abs(west))
	ns := "N"
	if north < 0 {
		ns = "S"
	}
	ew := "E"
	if west < 0 {
		ew = "W"
	}

	return fmt.Sprintf("%02d%s_%03d%s", latAbs, ns, lngAbs, ew), nil
}

func (g *LatLngGrid) DestinationProfile(tileID string, dtype string, nodata *float64, compression string) (DestinationProfile, error) {
	west, north, err := g.originOfOrdered(tileID)
	if err != nil {
		return DestinationProfile{}, err
	}
	bx, by := g.BlockShape()
	return DestinationProfile{
		CRS:         g.CRS(),
		Transform:   FromOrigin(west, north, g.XRes(), g.YRes()),
		Width:       g.TileWidth(),
		Height:      g.TileHeight(),
		BlockXSize:  bx,
		BlockYSize:  by,
		Dtype:       dtype,
		NoData:      nodata,
		Compression: compression,
		Driver:      "GTiff",
	}, nil
}

// originOfOrdered is OriginOf but returns (west, north) in the order callers
// building a transform expect.
func (g *LatLngGrid) originOfOrdered(tileID string) (west, north float64, err error) {
	lng, lat, err := g.OriginOf(tileID)
	if err != nil {
		return 0, 0, err
	}
	return lng, lat, nil
}
