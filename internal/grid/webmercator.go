package grid

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// earthRadiusMeters is the sphere radius web-mercator projections use
// (EPSG:3857), matching the standard slippy-map convention.
const earthRadiusMeters = 6378137.0

const mercatorTilePixels = 256

// WebMercatorGrid is a zoom-level tiling scheme over EPSG:3857, square
// 256x256 pixel tiles, resolution derived from zoom per the standard slippy
// map formula. Tile-id <-> origin mapping is grounded on the teacher's use
// of github.com/paulmach/orb/maptile in geometry_extractor.go.
type WebMercatorGrid struct {
	zoom      int
	blockSize int
}

func NewWebMercatorGrid(zoom int, blockSize int) *WebMercatorGrid {
	if blockSize <= 0 {
		blockSize = 256
	}
	return &WebMercatorGrid{zoom: zoom, blockSize: blockSize}
}

func (g *WebMercatorGrid) CRS() string { return "EPSG:3857" }

func (g *WebMercatorGrid) resolution() float64 {
	return 2 * math.Pi * earthRadiusMeters / (mercatorTilePixels * math.Pow(2, float64(g.zoom)))
}

func (g *WebMercatorGrid) XRes() float64     { return g.resolution() }
func (g *WebMercatorGrid) YRes() float64     { return g.resolution() }
func (g *WebMercatorGrid) TileWidth() int    { return mercatorTilePixels }
func (g *WebMercatorGrid) TileHeight() int   { return mercatorTilePixels }

func (g *WebMercatorGrid) BlockShape() (int, int) {
	bx := g.blockSize
	if bx > mercatorTilePixels {
		bx = mercatorTilePixels
	}
	return bx, bx
}

// Snap rounds a geographic coordinate to the nearest multiple of this zoom
// level's pixel size, expressed in degrees at the point's latitude. Snapping
// a mercator grid in lat/lng terms is an approximation used only when a
// source footprint given in EPSG:4326 needs to align to mercator pixels;
// the authoritative snap for tile math itself is in projected meters via
// TileIDOf/OriginOf.
func (g *WebMercatorGrid) Snap(lat, lng float64) (float64, float64) {
	res := g.resolution()
	metersPerDegreeLat := (2 * math.Pi * earthRadiusMeters) / 360
	degStep := res / metersPerDegreeLat
	return snapTo(lat, degStep), snapTo(lng, degStep)
}

var mercatorTileIDPattern = regexp.MustCompile(`^(\d+)R_(\d+)C$`)

func mercatorTileID(row, col int) string {
	return fmt.Sprintf("%03dR_%03dC", row, col)
}

// OriginOf returns the northwest corner, in EPSG:3857 meters, of the named
// tile. The destination CRS is projected meters, not the degrees maptile's
// own Bound() reports, so the tile's row/col are converted to meters
// directly via the same world-size formula resolution() uses.
func (g *WebMercatorGrid) OriginOf(tileID string) (westMeters, northMeters float64, err error) {
	row, col, err := parseMercatorTileID(tileID)
	if err != nil {
		return 0, 0, err
	}

	worldSize := 2 * math.Pi * earthRadiusMeters
	tileSize := worldSize / math.Pow(2, float64(g.zoom))
	westMeters = float64(col)*tileSize - worldSize/2
	northMeters = worldSize/2 - float64(row)*tileSize
	return westMeters, northMeters, nil
}

func parseMercatorTileID(tileID string) (row, col int, err error) {
	m := mercatorTileIDPattern.FindStringSubmatch(tileID)
	if m == nil {
		return 0, 0, fmt.Errorf("grid: malformed mercator tile id %q", tileID)
	}
	row, _ = strconv.Atoi(m[1])
	col, _ = strconv.Atoi(m[2])
	return row, col, nil
}

// TileIDOf returns the id of the mercator tile containing (lng, lat).
func (g *WebMercatorGrid) TileIDOf(lng, lat float64) (string, error) {
	if lat > 85.0511287798 || lat < -85.0511287798 || lng > 180 || lng < -180 {
		return "", fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinate, lat, lng)
	}
	t := maptile.At(orb.Point{lng, lat}, maptile.Zoom(g.zoom))
	return mercatorTileID(int(t.Y), int(t.X)), nil
}

func (g *WebMercatorGrid) DestinationProfile(tileID string, dtype string, nodata *float64, compression string) (DestinationProfile, error) {
	west, north, err := g.OriginOf(tileID)
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
