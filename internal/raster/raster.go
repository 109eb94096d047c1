// Package raster wraps github.com/airbusgeo/godal to provide the warped
// source view the transform engine reads windows from: a composite VRT of
// every intersecting input, reprojected on the fly to a tile's destination
// profile.
//
// Grounded on original_source/gfw_pixetl/raster_src_tile.py's
// WarpedVRT-backed RasterSource, with the concrete godal call shapes taken
// from other_examples/ production raster tools
// (airbusgeo/cogger's cmd/mcog and cmd/tiler) — godal is the only raster
// reprojection library anywhere in the example pack, the one deliberately
// accepted cgo dependency in this module (see DESIGN.md).
package raster

import (
	"context"
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/mumuon/pixetl-go/internal/grid"
	"github.com/mumuon/pixetl-go/internal/maskedarray"
	"github.com/mumuon/pixetl-go/internal/retry"
)

// Window is a pixel-space rectangle to read from a View, in the View's own
// destination raster coordinates.
type Window struct {
	ColOff, RowOff int
	Width, Height  int
}

// View is a warped virtual view of one or more source rasters, reprojected
// to a single destination profile. Reads are windowed and retried per
// internal/retry.DefaultPolicy.
type View struct {
	profile grid.DestinationProfile
	warped  *godal.Dataset
	band    godal.Band
	nodata  *float64
	retry   retry.Policy
}

// Open builds a composite VRT of uris and warps it to profile. uris must be
// non-empty (callers filter by manifest.Intersecting before calling Open).
// warpMemLimitBytes bounds the GDAL warp operation's working set, derived
// from the transform engine's per-super-window memory budget (spec.md
// §4.3/§4.5).
func Open(ctx context.Context, uris []string, profile grid.DestinationProfile, resampling string, warpMemLimitBytes int64) (*View, error) {
	if len(uris) == 0 {
		return nil, fmt.Errorf("%w: no source URIs", ErrSourceUnavailable)
	}

	pol := retry.DefaultPolicy(isRetryable)

	var vrt *godal.Dataset
	err := pol.Do(ctx, func(ctx context.Context) error {
		var err error
		vrt, err = godal.BuildVRT("", uris, nil)
		if err != nil {
			return fmt.Errorf("%w: build vrt: %v", ErrSourceUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switches := warpSwitches(profile, resampling, warpMemLimitBytes)

	var warped *godal.Dataset
	err = pol.Do(ctx, func(ctx context.Context) error {
		var err error
		warped, err = vrt.Warp("", switches)
		if err != nil {
			return fmt.Errorf("%w: warp: %v", ErrSourceUnavailable, err)
		}
		return nil
	})
	vrt.Close()
	if err != nil {
		return nil, err
	}

	bands := warped.Bands()
	if len(bands) == 0 {
		warped.Close()
		return nil, fmt.Errorf("%w: warped dataset has no bands", ErrSourceUnavailable)
	}

	return &View{
		profile: profile,
		warped:  warped,
		band:    bands[0],
		nodata:  profile.NoData,
		retry:   pol,
	}, nil
}

// warpSwitches builds the gdalwarp-style switch list godal.Dataset.Warp
// expects, in the same "-flag value" shellwords-parsed form
// other_examples/airbusgeo-cogger's tiler/mcog commands construct for
// gdal_translate/gdalwarp invocations.
func warpSwitches(profile grid.DestinationProfile, resampling string, warpMemLimitBytes int64) []string {
	t := profile.Transform
	xmin := t.C
	ymax := t.F
	xmax := t.C + t.A*float64(profile.Width)
	ymin := t.F + t.E*float64(profile.Height)

	return []string{
		"-t_srs", profile.CRS,
		"-te", fmt.Sprintf("%v", xmin), fmt.Sprintf("%v", ymin), fmt.Sprintf("%v", xmax), fmt.Sprintf("%v", ymax),
		"-ts", fmt.Sprintf("%d", profile.Width), fmt.Sprintf("%d", profile.Height),
		"-r", resampling,
		"-wm", fmt.Sprintf("%d", warpMemLimitBytes),
		"-co", fmt.Sprintf("BLOCKXSIZE=%d", profile.BlockXSize),
		"-co", fmt.Sprintf("BLOCKYSIZE=%d", profile.BlockYSize),
	}
}

// Bounds returns the view's destination-space pixel dimensions.
func (v *View) Bounds() (width, height int) {
	return v.profile.Width, v.profile.Height
}

// Read returns the masked array for the given window, treating the
// configured nodata value (if any) as masked. Retried per internal/retry's
// default policy; a non-retryable or exhausted read returns
// ErrSourceUnavailable.
func (v *View) Read(ctx context.Context, w Window) (*maskedarray.Array, error) {
	buf := make([]float64, w.Width*w.Height)

	err := v.retry.Do(ctx, func(ctx context.Context) error {
		if err := v.band.Read(w.ColOff, w.RowOff, buf, w.Width, w.Height); err != nil {
			return fmt.Errorf("%w: read window: %v", ErrSourceUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	arr := maskedarray.New(w.Width, w.Height)
	for i, val := range buf {
		masked := v.nodata != nil && val == *v.nodata
		arr.Data[i] = val
		arr.Mask[i] = masked
	}
	return arr, nil
}

// Close releases the underlying GDAL dataset handle.
func (v *View) Close() error {
	if v.warped == nil {
		return nil
	}
	v.warped.Close()
	v.warped = nil
	return nil
}
