// Package verify implements the post-hoc tile verification report the
// `pixetl verify` CLI subcommand prints, adapted from the tile-service
// template's verify.go: the same Report/Print() shape and the same
// spot-check-by-sampling strategy (VerifyUpload's samplesPerZoom), ported
// from MVT/pbf directory trees to GeoTIFF tiles read back via godal.
package verify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/airbusgeo/godal"

	"github.com/mumuon/pixetl-go/internal/storage"
	"github.com/mumuon/pixetl-go/internal/tile"
)

// Report is the result of verifying a run's succeeded tiles: each tile's
// destination object is checked for presence and, when sampled, its
// width and height against the tile's own DestinationProfile.
type Report struct {
	RunID               string
	Checked             int
	Sampled             int
	OK                  bool
	Missing             []string
	DimensionMismatches []string
	Warnings            []string
}

// Print logs the report, mirroring the template's UploadVerifyReport.Print.
func (r *Report) Print() {
	logger := slog.With("run_id", r.RunID, "checked", r.Checked, "sampled", r.Sampled)

	if r.OK {
		logger.Info("tile verification PASSED")
	} else {
		logger.Error("tile verification FAILED", "missing", len(r.Missing), "dimension_mismatches", len(r.DimensionMismatches))
	}
	for _, key := range r.Missing {
		slog.Error("missing from destination", "key", key)
	}
	for _, id := range r.DimensionMismatches {
		slog.Error("dimension mismatch on readback", "tile", id)
	}
	for _, w := range r.Warnings {
		slog.Warn("verification warning", "detail", w)
	}
}

// KeyFunc resolves a tile to its destination object key.
type KeyFunc func(*tile.Tile) string

// Run checks that every succeeded tile's destination object exists, and for
// every sampleEvery-th one, reads it back via godal and confirms its pixel
// dimensions match the tile's own DestinationProfile. The readback opens
// client.PublicURL(key); when the client has no public base URL that is
// empty, and a sampled tile is counted in Sampled without being read back.
func Run(ctx context.Context, runID string, tiles []*tile.Tile, client *storage.Client, keyOf KeyFunc, sampleEvery int) (*Report, error) {
	if sampleEvery < 1 {
		sampleEvery = 1
	}

	report := &Report{RunID: runID}
	for i, t := range tiles {
		if t.Status() != tile.Succeeded {
			continue
		}
		key := keyOf(t)
		report.Checked++

		exists, err := client.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", key, err)
		}
		if !exists {
			report.Missing = append(report.Missing, key)
			continue
		}

		if i%sampleEvery != 0 {
			continue
		}
		report.Sampled++
		if err := sampleDimensions(t, client.PublicURL(key)); err != nil {
			report.DimensionMismatches = append(report.DimensionMismatches, t.ID)
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", t.ID, err))
		}
	}

	report.OK = len(report.Missing) == 0 && len(report.DimensionMismatches) == 0
	return report, nil
}

// sampleDimensions opens path (a GDAL-readable URI, e.g. the tile's
// public URL or a /vsicurl/-wrapped object key) and confirms its pixel
// dimensions match t's destination profile.
func sampleDimensions(t *tile.Tile, path string) error {
	if path == "" {
		return nil
	}
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("open for verification: %w", err)
	}
	defer ds.Close()

	structure := ds.Structure()
	if structure.SizeX != t.Profile.Width || structure.SizeY != t.Profile.Height {
		return fmt.Errorf("dimensions %dx%d, want %dx%d", structure.SizeX, structure.SizeY, t.Profile.Width, t.Profile.Height)
	}
	return nil
}
