package grid

import "math"

// AllTileIDs seeds every tile id a grid can produce across its full domain.
// For geographic grids this walks the whole -89..90 / -180..179 one-degree
// world grid and snaps each cell into the target grid, deduplicating
// repeated ids, mirroring original_source/gfw_pixetl/pipes.py's
// get_grid_tiles. Web-mercator grids have an exact row/col tile count at
// each zoom level, so those are enumerated directly instead of approximated
// through a one-degree sweep.
func AllTileIDs(g Grid) ([]string, error) {
	if wm, ok := g.(*WebMercatorGrid); ok {
		return allMercatorTileIDs(wm), nil
	}
	return allLatLngTileIDs(g)
}

func allLatLngTileIDs(g Grid) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string

	for lat := -89; lat <= 90; lat++ {
		for lng := -180; lng <= 179; lng++ {
			id, err := g.TileIDOf(float64(lng)+0.5, float64(lat)+0.5)
			if err != nil {
				continue
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func allMercatorTileIDs(g *WebMercatorGrid) []string {
	n := int(math.Pow(2, float64(g.zoom)))
	ids := make([]string, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			ids = append(ids, mercatorTileID(row, col))
		}
	}
	return ids
}
