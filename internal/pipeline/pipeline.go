// Package pipeline wires the tile-level stage chain from spec.md §4.6:
// filter_subset, filter_exists, filter_src_intersect, transform,
// filter_empty, postprocess, upload, cleanup_local, each run by its own
// worker-pool goroutine group connected by buffered channels.
//
// Grounded on the teacher's two worker-pool idioms in main.go (the
// multi-region workChan + sync.WaitGroup + mutex-guarded result slices) and
// s3.go (UploadDirectory's bounded upload worker channel).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mumuon/pixetl-go/internal/tile"
)

// Outcome is what a stage decided to do with a tile.
type Outcome int

const (
	// Continue passes the tile to the next stage.
	Continue Outcome = iota
	// Skip marks the tile skipped and removes it from the pipeline.
	Skip
	// Fail marks the tile failed and removes it from the pipeline.
	Fail
)

// StageFunc runs one tile through a stage. The returned reason is recorded
// as the tile's transition reason when the outcome is Skip or Fail.
type StageFunc func(ctx context.Context, t *tile.Tile) (Outcome, string, error)

// Stage names one step of the chain and how many goroutines run it.
type Stage struct {
	Name    string
	Workers int
	Run     StageFunc
}

// Result is the three-way partition spec.md §4.6 returns: succeeded,
// skipped, failed tiles.
type Result struct {
	Succeeded []*tile.Tile
	Skipped   []*tile.Tile
	Failed    []*tile.Tile
}

// Run wires stages into a channel pipeline and drives every input tile
// through it, back-pressured by the buffered channels between stages (each
// stage's output channel holds as many tiles as that stage has workers,
// per spec.md §4.6).
func Run(ctx context.Context, tiles []*tile.Tile, stages []Stage, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}

	var mu sync.Mutex
	result := Result{}

	record := func(t *tile.Tile, outcome Outcome, reason string) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case Skip:
			result.Skipped = append(result.Skipped, t)
		case Fail:
			result.Failed = append(result.Failed, t)
		}
		_ = reason
	}

	in := make(chan *tile.Tile, len(tiles))
	for _, t := range tiles {
		in <- t
	}
	close(in)

	for _, st := range stages {
		in = runStage(ctx, st, in, record, logger)
	}

	// A tile reaching the end of the chain without being skipped or failed
	// is a success. Earlier stages (transform, in particular) may already
	// have recorded the Succeeded transition themselves; only transition
	// here if none did, so a later stage's Succeeded -> Failed edge (an
	// upload error after a successful transform) still applies cleanly.
	for t := range in {
		if t.Status() == tile.Pending {
			if err := t.Transition(tile.Succeeded, "pipeline completed"); err != nil {
				logger.Error("tile reached end of pipeline in an unexpected state", "tile", t.ID, "status", t.Status(), "error", err)
				continue
			}
		}
		mu.Lock()
		result.Succeeded = append(result.Succeeded, t)
		mu.Unlock()
	}

	return result
}

// runStage runs one stage's worker pool over in, returning the channel of
// tiles that continued past it. The returned channel is closed once every
// worker has exited, mirroring the teacher's sync.WaitGroup-then-close
// pattern in main.go/s3.go.
func runStage(ctx context.Context, st Stage, in <-chan *tile.Tile, record func(*tile.Tile, Outcome, string), logger *slog.Logger) <-chan *tile.Tile {
	workers := st.Workers
	if workers < 1 {
		workers = 1
	}
	out := make(chan *tile.Tile, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			workerLog := logger.With("stage", st.Name, "worker", workerID)
			for t := range in {
				outcome, reason, err := st.Run(ctx, t)
				if err != nil {
					workerLog.Error("stage failed", "tile", t.ID, "error", err)
					failTile(t, fmt.Sprintf("%s: %v", st.Name, err), workerLog)
					record(t, Fail, reason)
					continue
				}
				switch outcome {
				case Continue:
					select {
					case out <- t:
					case <-ctx.Done():
						return
					}
				case Skip:
					skipTile(t, reason, workerLog)
					record(t, Skip, reason)
				case Fail:
					failTile(t, reason, workerLog)
					record(t, Fail, reason)
				}
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func skipTile(t *tile.Tile, reason string, logger *slog.Logger) {
	if t.Status() == tile.Pending {
		if err := t.Transition(tile.Skipped, reason); err != nil {
			logger.Error("could not record skip transition", "tile", t.ID, "error", err)
		}
	}
}

func failTile(t *tile.Tile, reason string, logger *slog.Logger) {
	if err := t.Transition(tile.Failed, reason); err != nil {
		logger.Error("could not record fail transition", "tile", t.ID, "error", err)
	}
}
