package main

import (
	"context"
	"math"

	"github.com/mumuon/pixetl-go/internal/layer"
	"github.com/mumuon/pixetl-go/internal/maskedarray"
	"github.com/mumuon/pixetl-go/internal/raster"
	"github.com/mumuon/pixetl-go/internal/tile"
)

// histogramBinCount is GDAL's RasterBand.GetHistogram default bucket count,
// kept here since this module computes its own fixed-bin-count histogram
// instead of shelling out to gdalinfo.
const histogramBinCount = 256

// computeBandStats re-opens a tile's finished local file, reads the whole
// band as one window, and computes whichever of min/max/mean/std
// (layer.Spec.ComputeStats, one pass over the samples) and the
// fixed-bin-count histogram (layer.Spec.ComputeHistogram, a second pass)
// the spec asked for, attaching the result as the tile's Metadata (§4.5's postprocess
// hook — the only place either field is populated).
func computeBandStats(ctx context.Context, t *tile.Tile, spec layer.Spec) error {
	view, err := raster.Open(ctx, []string{t.LocalPath}, t.Profile, "nearest", 0)
	if err != nil {
		return err
	}
	defer view.Close()

	arr, err := view.Read(ctx, raster.Window{ColOff: 0, RowOff: 0, Width: t.Profile.Width, Height: t.Profile.Height})
	if err != nil {
		return err
	}

	min, max := math.Inf(1), math.Inf(-1)
	var sum, sumSq float64
	var count int64
	for i, v := range arr.Data {
		if arr.Mask[i] {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
		sumSq += v * v
		count++
	}

	var mean, std float64
	if count > 0 {
		mean = sum / float64(count)
		variance := sumSq/float64(count) - mean*mean
		if variance < 0 {
			variance = 0
		}
		std = math.Sqrt(variance)
	} else {
		min, max = 0, 0
	}

	band := layer.Band{
		NoDataValue: t.Profile.NoData,
		DataType:    layer.DataType(t.Profile.Dtype),
	}
	if spec.ComputeStats {
		band.Stats = &layer.BandStats{Min: min, Max: max, Mean: mean, Std: std}
	}
	if spec.ComputeHistogram {
		band.Histogram = buildHistogram(arr, min, max, histogramBinCount)
	}

	t.Metadata = &layer.Metadata{Bands: []layer.Band{band}}
	return nil
}

// buildHistogram bins arr's unmasked values into binCount equal-width
// buckets spanning [min, max]. A degenerate (zero-width) range puts every
// sample in bucket 0.
func buildHistogram(arr *maskedarray.Array, min, max float64, binCount int) *layer.Histogram {
	values := make([]int64, binCount)
	width := (max - min) / float64(binCount)
	if width <= 0 {
		for i := range arr.Data {
			if !arr.Mask[i] {
				values[0]++
			}
		}
		return &layer.Histogram{BinCount: binCount, BinWidth: 0, Min: min, Max: max, Values: values}
	}
	for i, v := range arr.Data {
		if arr.Mask[i] {
			continue
		}
		idx := int((v - min) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= binCount {
			idx = binCount - 1
		}
		values[idx]++
	}
	return &layer.Histogram{BinCount: binCount, BinWidth: width, Min: min, Max: max, Values: values}
}
