package main

import (
	"context"
	"flag"
	"log/slog"

	"github.com/mumuon/pixetl-go/internal/config"
	"github.com/mumuon/pixetl-go/internal/grid"
	"github.com/mumuon/pixetl-go/internal/layer"
	"github.com/mumuon/pixetl-go/internal/storage"
	"github.com/mumuon/pixetl-go/internal/tile"
	"github.com/mumuon/pixetl-go/internal/verify"
)

// cmdVerify spot-checks a previously uploaded layer: every named tile's
// destination object is checked for presence. Every sample-every-th tile is
// passed to verify.Run for a dimension readback, but the storage client built
// here sets no public base URL, so that readback is skipped and the check
// is presence-only. Since this subcommand runs independently of any
// particular `run` invocation, it has no Tile lifecycle history to draw
// on — every candidate tile is treated as a verification target directly
// (there is no "succeeded" history to filter against, only "exists or not").
// Its CLI contract is positional `dataset` and `version`, plus flags for the
// remaining key fields.
func cmdVerify(args []string, configPath string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	pixelMeaning := fs.String("pixel-meaning", "", "Pixel meaning / field name")
	gridID := fs.String("grid-id", "", "Destination grid id")
	var subset stringSliceFlag
	fs.Var(&subset, "subset", "Tile id to check (repeatable)")
	sampleEvery := fs.Int("sample-every", 10, "Re-open every Nth tile for a dimension check")
	fs.Parse(reorderFlagsFirst(args, nil))

	if fs.NArg() < 2 {
		slog.Error("verify requires a dataset and version", "usage", "pixetl verify DATASET VERSION [options]")
		return 1
	}
	dataset, version := fs.Arg(0), fs.Arg(1)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	spec := layer.Spec{Dataset: dataset, Version: version, PixelMeaning: *pixelMeaning, GridID: *gridID}

	g, err := grid.Factory(*gridID)
	if err != nil {
		slog.Error("unknown grid", "grid_id", *gridID, "error", err)
		return 1
	}

	ctx := context.Background()
	s3Client, err := storage.New(ctx, storage.Config{
		Endpoint:        cfg.EndpointURL,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretKey,
		Region:          cfg.AWSRegion,
		Bucket:          cfg.Bucket,
	})
	if err != nil {
		slog.Error("failed to initialize object storage client", "error", err)
		return 1
	}

	subsetIDs := []string(subset)
	tileIDs := subsetIDs
	if len(tileIDs) == 0 {
		tileIDs, err = grid.AllTileIDs(g)
		if err != nil {
			slog.Error("failed to seed grid tiles", "error", err)
			return 1
		}
	}

	tiles := make([]*tile.Tile, 0, len(tileIDs))
	for _, id := range tileIDs {
		profile, err := g.DestinationProfile(id, "", nil, "")
		if err != nil {
			continue
		}
		t := tile.New(id, *gridID, profile, nil)
		t.Transition(tile.Succeeded, "verification candidate")
		tiles = append(tiles, t)
	}

	report, err := verify.Run(ctx, "verify-"+spec.RemoteKeyPrefix(), tiles, s3Client, func(t *tile.Tile) string { return destKey(spec, t.ID) }, *sampleEvery)
	if err != nil {
		slog.Error("verification failed to run", "error", err)
		return 1
	}
	report.Print()

	if !report.OK {
		return 1
	}
	return 0
}
