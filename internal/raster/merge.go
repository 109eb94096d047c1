package raster

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/mumuon/pixetl-go/internal/grid"
)

// MergeWindows mosaics the per-super-window temporary files parallel mode
// wrote (each self-describing its own placement via its own geotransform)
// into dst, a single GeoTIFF matching profile's full transform, dimensions,
// block layout, and compression. Grounded on
// other_examples/airbusgeo-cogger's cmd/mcog gdal_translate helper
// (BuildVRT over the sources, then Translate into the destination format).
func MergeWindows(dst string, profile grid.DestinationProfile, windowFiles []string) error {
	if len(windowFiles) == 0 {
		return fmt.Errorf("raster: no window files to merge into %s", dst)
	}

	vrt, err := godal.BuildVRT("", windowFiles, nil)
	if err != nil {
		return fmt.Errorf("build merge vrt: %w", err)
	}
	defer vrt.Close()

	switches := []string{
		"-outsize", fmt.Sprintf("%d", profile.Width), fmt.Sprintf("%d", profile.Height),
		"-co", fmt.Sprintf("BLOCKXSIZE=%d", profile.BlockXSize),
		"-co", fmt.Sprintf("BLOCKYSIZE=%d", profile.BlockYSize),
		"-co", "TILED=YES",
	}
	if profile.Compression != "" {
		switches = append(switches, "-co", fmt.Sprintf("COMPRESS=%s", profile.Compression))
	}

	out, err := vrt.Translate(dst, switches, godal.GTiff)
	if err != nil {
		return fmt.Errorf("translate merge vrt: %w", err)
	}
	return out.Close()
}
