package raster

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/mumuon/pixetl-go/internal/grid"
)

// gdalDataType maps this module's dtype names to godal's type enum.
var gdalDataType = map[string]godal.DataType{
	"uint8":   godal.Byte,
	"int8":    godal.Int16, // GDAL has no signed-8-bit type; widened per GDAL convention.
	"uint16":  godal.UInt16,
	"int16":   godal.Int16,
	"uint32":  godal.UInt32,
	"int32":   godal.Int32,
	"float32": godal.Float32,
	"float64": godal.Float64,
}

// Writer is a single-band GeoTIFF output, created with the destination
// profile's transform, dimensions, and block layout before window writes
// begin (spec.md §4.5: "the file is pre-created with the destination
// profile before window iteration begins").
type Writer struct {
	ds   *godal.Dataset
	band godal.Band
}

// CreateWriter creates path as a new single-band GeoTIFF per profile.
func CreateWriter(path string, profile grid.DestinationProfile) (*Writer, error) {
	dt, ok := gdalDataType[profile.Dtype]
	if !ok {
		return nil, fmt.Errorf("raster: unsupported dtype %q", profile.Dtype)
	}

	driver := profile.Driver
	if driver == "" {
		driver = "GTiff"
	}

	opts := []string{
		fmt.Sprintf("BLOCKXSIZE=%d", profile.BlockXSize),
		fmt.Sprintf("BLOCKYSIZE=%d", profile.BlockYSize),
		"TILED=YES",
	}
	if profile.Compression != "" {
		opts = append(opts, fmt.Sprintf("COMPRESS=%s", profile.Compression))
	}

	ds, err := godal.Create(godal.GTiff, path, 1, dt, profile.Width, profile.Height, godal.CreationOption(opts...))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	t := profile.Transform
	if err := ds.SetGeoTransform([6]float64{t.C, t.A, t.B, t.F, t.D, t.E}); err != nil {
		ds.Close()
		return nil, fmt.Errorf("set geotransform: %w", err)
	}
	if err := ds.SetProjection(profile.CRS); err != nil {
		ds.Close()
		return nil, fmt.Errorf("set projection: %w", err)
	}

	bands := ds.Bands()
	if len(bands) == 0 {
		ds.Close()
		return nil, fmt.Errorf("create %s: no band allocated", path)
	}
	band := bands[0]
	if profile.NoData != nil {
		if err := band.SetNoData(*profile.NoData); err != nil {
			ds.Close()
			return nil, fmt.Errorf("set nodata: %w", err)
		}
	}

	return &Writer{ds: ds, band: band}, nil
}

// WriteWindow writes data (row-major, len == w.Width*w.Height) at the given
// window offset.
func (wr *Writer) WriteWindow(w Window, data []float64) error {
	if err := wr.band.Write(w.ColOff, w.RowOff, data, w.Width, w.Height); err != nil {
		return fmt.Errorf("write window: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying dataset.
func (wr *Writer) Close() error {
	if wr.ds == nil {
		return nil
	}
	wr.ds.Close()
	wr.ds = nil
	return nil
}
