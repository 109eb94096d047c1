package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/mumuon/pixetl-go/internal/config"
	"github.com/mumuon/pixetl-go/internal/grid"
	"github.com/mumuon/pixetl-go/internal/layer"
	"github.com/mumuon/pixetl-go/internal/ledger"
	"github.com/mumuon/pixetl-go/internal/manifest"
	"github.com/mumuon/pixetl-go/internal/metrics"
	"github.com/mumuon/pixetl-go/internal/pipeline"
	"github.com/mumuon/pixetl-go/internal/storage"
	"github.com/mumuon/pixetl-go/internal/tile"
)

// runState holds the per-tile intermediate data stage closures need to pass
// to later stages; tile.Tile itself only carries lifecycle and identity,
// not pipeline scratch state.
type runState struct {
	mu           sync.Mutex
	intersecting map[string][]string
	wroteWindows map[string]int
}

func newRunState() *runState {
	return &runState{
		intersecting: make(map[string][]string),
		wroteWindows: make(map[string]int),
	}
}

func (s *runState) setIntersecting(id string, uris []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intersecting[id] = uris
}

func (s *runState) getIntersecting(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intersecting[id]
}

func (s *runState) setWrote(id string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wroteWindows[id] = n
}

func (s *runState) getWrote(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wroteWindows[id]
}

// cmdRun implements the `run` subcommand's CLI contract: a positional layer
// `name`, short/long flag pairs (-v/--version, -s/--source_type,
// -f/--field, -g/--grid_name, -o/--overwrite), a repeatable --subset, and an
// alternative -l/--layer path.json carrying the same fields as a file. The
// remaining flags (data type, nodata, resampling, calc, compression,
// manifest, base-divisor) are additive and long-form only.
func cmdRun(args []string, configPath string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)

	var version, sourceType, field, gridName, layerPath string
	var overwrite bool
	var subset stringSliceFlag
	fs.StringVar(&version, "v", "", "Version of dataset")
	fs.StringVar(&version, "version", "", "Version of dataset")
	fs.StringVar(&sourceType, "s", "raster", "Type of input file(s): raster, vector, or tcd_raster")
	fs.StringVar(&sourceType, "source_type", "raster", "Type of input file(s): raster, vector, or tcd_raster")
	fs.StringVar(&field, "f", "", "Field represented in output dataset")
	fs.StringVar(&field, "field", "", "Field represented in output dataset")
	fs.StringVar(&gridName, "g", "", "Grid size of output dataset")
	fs.StringVar(&gridName, "grid_name", "", "Grid size of output dataset")
	fs.Var(&subset, "subset", "Subset of tiles to process (repeatable)")
	fs.BoolVar(&overwrite, "o", false, "Overwrite existing tile in output location")
	fs.BoolVar(&overwrite, "overwrite", false, "Overwrite existing tile in output location")
	fs.StringVar(&layerPath, "l", "", "Path to a layer spec JSON file")
	fs.StringVar(&layerPath, "layer", "", "Path to a layer spec JSON file")

	dataType := fs.String("data-type", "uint8", "Output data type")
	nodataStr := fs.String("nodata", "", "NoData value, empty for none")
	resampling := fs.String("resampling", "nearest", "Resampling method")
	calc := fs.String("calc", "", "Calc expression, empty for identity")
	compression := fs.String("compression", "deflate", "GeoTIFF compression")
	manifestURI := fs.String("manifest", "", "Manifest URI")
	baseDivisor := fs.Int("base-divisor", 8, "Window-planning base divisor")

	fs.Parse(reorderFlagsFirst(args, map[string]bool{"o": true, "overwrite": true}))

	var name string
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	var spec layer.Spec
	if layerPath != "" {
		f, err := loadLayerSpecFile(layerPath)
		if err != nil {
			slog.Error("failed to load layer spec file", "path", layerPath, "error", err)
			return 1
		}
		spec = f.toSpec()
		if f.Compression != "" {
			*compression = f.Compression
		}
	} else {
		var nodata *float64
		if *nodataStr != "" {
			v, err := strconv.ParseFloat(*nodataStr, 64)
			if err != nil {
				slog.Error("invalid -nodata value", "value", *nodataStr, "error", err)
				return 1
			}
			nodata = &v
		}
		spec = layer.Spec{
			Dataset:      name,
			Version:      version,
			PixelMeaning: field,
			SourceType:   layer.SourceType(sourceType),
			DataType:     layer.DataType(*dataType),
			NoData:       nodata,
			GridID:       gridName,
			Resampling:   layer.ResamplingMethod(*resampling),
			SourceURI:    *manifestURI,
			Calc:         *calc,
		}
	}
	if err := spec.Validate(); err != nil {
		slog.Error("invalid layer spec", "error", err)
		return 1
	}

	g, err := grid.Factory(spec.GridID)
	if err != nil {
		slog.Error("unknown grid", "grid_id", spec.GridID, "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if sig, ok := <-sigCh; ok {
			slog.Info("received shutdown signal", "signal", sig)
			cancel()
		}
	}()

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

	jobLedger, err := ledger.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open job ledger", "error", err)
		return 1
	}
	defer jobLedger.Close()

	man, err := manifest.Load(ctx, spec.SourceURI, dispatchFetcher{s3: s3Client})
	if err != nil {
		slog.Error("failed to load manifest", "manifest", spec.SourceURI, "error", err)
		return 1
	}

	runID, err := newRunID()
	if err != nil {
		slog.Error("failed to generate run id", "error", err)
		return 1
	}
	workDir, err := config.WorkDir(runID)
	if err != nil {
		slog.Error("failed to create work directory", "error", err)
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
		profile, err := g.DestinationProfile(id, string(spec.DataType), spec.NoData, *compression)
		if err != nil {
			slog.Warn("skipping tile with invalid origin", "tile_id", id, "error", err)
			continue
		}
		tiles = append(tiles, tile.New(id, spec.GridID, profile, nil))
	}

	workers := ceilDiv(cfg.Cores, 2)
	if spec.HasCalc() {
		workers = ceilDiv(cfg.Cores, 3)
	}
	if workers < 1 {
		workers = 1
	}
	coWorkers := cfg.Cores / workers

	collectors := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := collectors.Serve(ctx, cfg.MetricsAddr); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	state := newRunState()
	subsetFilter := subsetSet(subsetIDs)
	warpMemLimit := cfg.MaxMem

	stages := []pipeline.Stage{
		{Name: "filter_subset", Workers: workers, Run: filterSubsetStage(subsetFilter)},
		{Name: "filter_exists", Workers: workers, Run: filterExistsStage(s3Client, spec, overwrite)},
		{Name: "filter_src_intersect", Workers: workers, Run: filterSrcIntersectStage(man, state)},
		{Name: "transform", Workers: workers, Run: transformStage(state, spec, workDir, *resampling, warpMemLimit, *baseDivisor, coWorkers, collectors)},
		{Name: "filter_empty", Workers: workers, Run: filterEmptyStage(state)},
		{Name: "postprocess", Workers: workers, Run: postprocessStage(spec)},
		{Name: "upload", Workers: workers, Run: uploadStage(s3Client, spec, collectors)},
		{Name: "cleanup_local", Workers: workers, Run: cleanupLocalStage()},
	}

	runStart := time.Now()
	result := pipeline.Run(ctx, tiles, stages, slog.Default())
	collectors.ObserveRun(time.Since(runStart))

	recordLedger(ctx, jobLedger, runID, tiles)
	for range result.Succeeded {
		collectors.IncTile("succeeded")
	}
	for range result.Skipped {
		collectors.IncTile("skipped")
	}
	for _, t := range result.Failed {
		collectors.IncTile("failed")
		slog.Error("tile failed", "tile_id", t.ID)
	}

	slog.Info("run completed",
		"run_id", runID,
		"succeeded", len(result.Succeeded),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
	)

	if len(result.Failed) > 0 {
		return 1
	}
	return 0
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return int(math.Ceil(float64(a) / float64(b)))
}

func newRunID() (string, error) {
	return uuid.New().String(), nil
}

func tileBound(p grid.DestinationProfile) orb.Bound {
	west := p.Transform.C
	north := p.Transform.F
	east := west + p.Transform.A*float64(p.Width)
	south := north + p.Transform.E*float64(p.Height)
	return orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}
}

func destKey(spec layer.Spec, tileID string) string {
	return fmt.Sprintf("%s/%s.tif", spec.RemoteKeyPrefix(), tileID)
}

func localPathFor(workDir, tileID string) string {
	return filepath.Join(workDir, tileID+".tif")
}

func recordLedger(ctx context.Context, l ledger.Ledger, runID string, tiles []*tile.Tile) {
	var recs []ledger.Record
	for _, t := range tiles {
		for _, tr := range t.Transitions() {
			recs = append(recs, ledger.Record{
				RunID: runID, TileID: t.ID,
				From: tr.From, To: tr.To, Reason: tr.Reason, At: tr.At,
			})
		}
	}
	if len(recs) == 0 {
		return
	}
	if _, err := l.BatchRecord(ctx, recs); err != nil {
		slog.Error("failed to record run transitions in ledger", "error", err)
	}
}
