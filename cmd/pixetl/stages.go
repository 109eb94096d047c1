package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mumuon/pixetl-go/internal/grid"
	"github.com/mumuon/pixetl-go/internal/layer"
	"github.com/mumuon/pixetl-go/internal/manifest"
	"github.com/mumuon/pixetl-go/internal/metrics"
	"github.com/mumuon/pixetl-go/internal/pipeline"
	"github.com/mumuon/pixetl-go/internal/raster"
	"github.com/mumuon/pixetl-go/internal/storage"
	"github.com/mumuon/pixetl-go/internal/tile"
	"github.com/mumuon/pixetl-go/internal/transform"
)

func filterSubsetStage(subset map[string]bool) pipeline.StageFunc {
	return func(ctx context.Context, t *tile.Tile) (pipeline.Outcome, string, error) {
		if len(subset) > 0 && !subset[t.ID] {
			return pipeline.Skip, "not in requested subset", nil
		}
		return pipeline.Continue, "", nil
	}
}

func filterExistsStage(s3Client *storage.Client, spec layer.Spec, overwrite bool) pipeline.StageFunc {
	return func(ctx context.Context, t *tile.Tile) (pipeline.Outcome, string, error) {
		if overwrite {
			return pipeline.Continue, "", nil
		}
		exists, err := s3Client.Exists(ctx, destKey(spec, t.ID))
		if err != nil {
			return pipeline.Fail, "", fmt.Errorf("check existence: %w", err)
		}
		if exists {
			return pipeline.Skip, "destination already present", nil
		}
		return pipeline.Continue, "", nil
	}
}

func filterSrcIntersectStage(man *manifest.Manifest, state *runState) pipeline.StageFunc {
	return func(ctx context.Context, t *tile.Tile) (pipeline.Outcome, string, error) {
		uris := man.Intersecting(tileBound(t.Profile))
		if len(uris) == 0 {
			return pipeline.Skip, "no intersecting source", nil
		}
		state.setIntersecting(t.ID, uris)
		return pipeline.Continue, "", nil
	}
}

// transformStage runs spec.md §4.5's window transform over a tile, choosing
// between sequential mode (one reader/writer pair) and parallel mode
// (coWorkers independent readers, merged afterward) based on how many
// co-workers the run's worker/co-worker split (cmdRun) allocated this tile.
func transformStage(state *runState, spec layer.Spec, workDir, resampling string, warpMemLimit int64, baseDivisor, coWorkers int, collectors *metrics.Collectors) pipeline.StageFunc {
	return func(ctx context.Context, t *tile.Tile) (pipeline.Outcome, string, error) {
		uris := state.getIntersecting(t.ID)
		localPath := localPathFor(workDir, t.ID)

		plan := transform.ComputePlan(transform.PlanParams{
			BlockX:           t.Profile.BlockXSize,
			BlockY:           t.Profile.BlockYSize,
			DtypeSize:        transform.DTypeSize(spec.DataType),
			PerProcessMemory: warpMemLimit,
			BaseDivisor:      baseDivisor,
			COWorkers:        coWorkers,
			CalcPresent:      spec.HasCalc(),
		})
		windows := transform.SuperWindows(plan, t.Profile.Width, t.Profile.Height, t.Profile.BlockXSize, t.Profile.BlockYSize,
			raster.Window{ColOff: 0, RowOff: 0, Width: t.Profile.Width, Height: t.Profile.Height})

		start := time.Now()
		var wrote int
		var err error
		if coWorkers >= 2 {
			wrote, err = runParallelWindows(ctx, uris, t.Profile, localPath, windows, spec, resampling, warpMemLimit, coWorkers)
		} else {
			wrote, err = runSequentialWindows(ctx, uris, t.Profile, localPath, windows, spec, resampling, warpMemLimit)
		}
		if n := len(windows); n > 0 {
			collectors.ObserveWindow(time.Since(start) / time.Duration(n))
		}
		if err != nil {
			return pipeline.Fail, "", fmt.Errorf("transform: %w", err)
		}

		t.LocalPath = localPath
		state.setWrote(t.ID, wrote)

		if wrote == 0 {
			return pipeline.Continue, "", nil // filter_empty decides the skip
		}
		if err := t.Transition(tile.Succeeded, "transform produced data"); err != nil {
			return pipeline.Fail, "", err
		}
		return pipeline.Continue, "", nil
	}
}

// runSequentialWindows implements spec.md §4.5's sequential window mode for
// one tile: a single reader/writer pair pre-created against the tile's full
// destination profile, windows processed in row-major order.
func runSequentialWindows(ctx context.Context, uris []string, profile grid.DestinationProfile, localPath string, windows []raster.Window, spec layer.Spec, resampling string, warpMemLimit int64) (int, error) {
	view, err := raster.Open(ctx, uris, profile, resampling, warpMemLimit)
	if err != nil {
		return 0, fmt.Errorf("open source view: %w", err)
	}
	defer view.Close()

	writer, err := raster.CreateWriter(localPath, profile)
	if err != nil {
		return 0, fmt.Errorf("create writer: %w", err)
	}

	wrote, runErr := transform.RunSequential(ctx, view, writer, windows, spec.Calc, spec.PixelMeaning, spec.DataType, spec.NoData)
	closeErr := writer.Close()
	if runErr != nil {
		return wrote, runErr
	}
	if closeErr != nil {
		return wrote, fmt.Errorf("close writer: %w", closeErr)
	}
	return wrote, nil
}

func filterEmptyStage(state *runState) pipeline.StageFunc {
	return func(ctx context.Context, t *tile.Tile) (pipeline.Outcome, string, error) {
		if state.getWrote(t.ID) > 0 {
			return pipeline.Continue, "", nil
		}
		if t.LocalPath != "" {
			os.Remove(t.LocalPath)
		}
		return pipeline.Skip, "transform produced no data", nil
	}
}

// postprocessStage computes band statistics and/or a histogram over the
// finished local file, whichever the layer spec asks for (§4.5's
// postprocess hook; the only place either field is populated).
func postprocessStage(spec layer.Spec) pipeline.StageFunc {
	return func(ctx context.Context, t *tile.Tile) (pipeline.Outcome, string, error) {
		if !spec.ComputeStats && !spec.ComputeHistogram {
			return pipeline.Continue, "", nil
		}
		if err := computeBandStats(ctx, t, spec); err != nil {
			return pipeline.Fail, "", fmt.Errorf("postprocess: %w", err)
		}
		return pipeline.Continue, "", nil
	}
}

func uploadStage(s3Client *storage.Client, spec layer.Spec, collectors *metrics.Collectors) pipeline.StageFunc {
	return func(ctx context.Context, t *tile.Tile) (pipeline.Outcome, string, error) {
		n, err := s3Client.UploadFile(ctx, t.LocalPath, destKey(spec, t.ID))
		if err != nil {
			return pipeline.Fail, "upload error", fmt.Errorf("upload: %w", err)
		}
		collectors.AddBytesUploaded(n)
		t.RemotePath = destKey(spec, t.ID)
		return pipeline.Continue, "", nil
	}
}

func cleanupLocalStage() pipeline.StageFunc {
	return func(ctx context.Context, t *tile.Tile) (pipeline.Outcome, string, error) {
		if t.LocalPath != "" {
			os.Remove(t.LocalPath)
		}
		return pipeline.Continue, "", nil
	}
}
