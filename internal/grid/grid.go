// Package grid implements the tiling schemes a layer can be materialized
// against: fixed-step geographic grids and zoom-level web-mercator grids.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate is returned by TileIDOf when a point falls outside a
// grid's domain (for example |lat| > 90 on a geographic grid).
var ErrInvalidCoordinate = errors.New("grid: coordinate outside grid domain")

// ErrUnknownGrid is returned by Factory for a name with no registered grid.
var ErrUnknownGrid = errors.New("grid: unknown grid name")

// DestinationProfile describes the output raster a Grid produces for one
// tile: CRS, affine transform, pixel dimensions, and block layout. Dtype,
// nodata and compression are filled in by the caller (they come from the
// layer spec, not the grid).
type DestinationProfile struct {
	CRS         string
	Transform   Affine
	Width       int
	Height      int
	BlockXSize  int
	BlockYSize  int
	Dtype       string
	NoData      *float64
	Compression string
	Driver      string
}

// Affine is a 6-parameter affine transform, (a, b, c, d, e, f) in GDAL's
// GeoTransform ordering: x = c + a*col, y = f + e*row (b, d are shear terms,
// always zero for north-up tiles in this module).
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// FromOrigin builds the north-up affine transform for a tile whose
// northwest corner is (west, north) with the given x/y pixel resolution.
// yres is given as a positive magnitude; the transform's row coefficient is
// negative (rows increase southward).
func FromOrigin(west, north, xres, yres float64) Affine {
	return Affine{A: xres, B: 0, C: west, D: 0, E: -yres, F: north}
}

// Grid is a tiling scheme: a CRS, a fixed pixel resolution, and a mapping
// between tile identifiers and their world-space origin.
type Grid interface {
	CRS() string
	XRes() float64
	YRes() float64
	TileWidth() int
	TileHeight() int
	BlockShape() (int, int)

	// Snap aligns a coordinate to a multiple of the grid's pixel size; the
	// rounding direction is up to each implementation. Idempotent:
	// Snap(Snap(p)) == Snap(p).
	Snap(lat, lng float64) (float64, float64)

	// OriginOf returns the northwest corner of the cell named by tileID.
	OriginOf(tileID string) (lng, lat float64, err error)

	// TileIDOf returns the tile id of the cell containing (lng, lat).
	TileIDOf(lng, lat float64) (string, error)

	// DestinationProfile builds the output raster profile for one tile.
	DestinationProfile(tileID string, dtype string, nodata *float64, compression string) (DestinationProfile, error)
}

// snapTo rounds v to the nearest multiple of step, correcting for floating
// point drift by rounding the result to 9 decimal places.
func snapTo(v, step float64) float64 {
	snapped := math.Round(v/step) * step
	// Clean up binary floating point noise (e.g. 9.77774999999 -> 9.77775)
	// at a precision finer than the step itself.
	scale := 1e9
	return math.Round(snapped*scale) / scale
}

func roundDim(v float64) int {
	return int(math.Round(v))
}

func validateStep(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("grid: invalid resolution %v", v)
	}
	return nil
}
