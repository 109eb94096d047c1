package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/mumuon/pixetl-go/internal/grid"
	"github.com/mumuon/pixetl-go/internal/tile"
)

func newTiles(ids ...string) []*tile.Tile {
	var tiles []*tile.Tile
	for _, id := range ids {
		tiles = append(tiles, tile.New(id, "1/4000", grid.DestinationProfile{}, nil))
	}
	return tiles
}

func TestRunAllSucceed(t *testing.T) {
	tiles := newTiles("a", "b", "c")
	stages := []Stage{
		{Name: "noop", Workers: 2, Run: func(ctx context.Context, t *tile.Tile) (Outcome, string, error) {
			return Continue, "", nil
		}},
	}
	result := Run(context.Background(), tiles, stages, nil)
	if len(result.Succeeded) != 3 || len(result.Skipped) != 0 || len(result.Failed) != 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunFiltersSkipFailProceed(t *testing.T) {
	tiles := newTiles("skip-me", "fail-me", "keep-me")
	stages := []Stage{
		{Name: "route", Workers: 2, Run: func(ctx context.Context, t *tile.Tile) (Outcome, string, error) {
			switch t.ID {
			case "skip-me":
				return Skip, "not in subset", nil
			case "fail-me":
				return Fail, "transform error", nil
			default:
				return Continue, "", nil
			}
		}},
	}
	result := Run(context.Background(), tiles, stages, nil)
	if len(result.Succeeded) != 1 || result.Succeeded[0].ID != "keep-me" {
		t.Fatalf("succeeded = %+v", result.Succeeded)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].ID != "skip-me" {
		t.Fatalf("skipped = %+v", result.Skipped)
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != "fail-me" {
		t.Fatalf("failed = %+v", result.Failed)
	}
	if result.Skipped[0].Status() != tile.Skipped {
		t.Errorf("skipped tile status = %v, want Skipped", result.Skipped[0].Status())
	}
	if result.Failed[0].Status() != tile.Failed {
		t.Errorf("failed tile status = %v, want Failed", result.Failed[0].Status())
	}
}

func TestRunStageErrorMarksTileFailed(t *testing.T) {
	tiles := newTiles("boom")
	stages := []Stage{
		{Name: "explode", Workers: 1, Run: func(ctx context.Context, t *tile.Tile) (Outcome, string, error) {
			return Continue, "", errors.New("boom")
		}},
	}
	result := Run(context.Background(), tiles, stages, nil)
	if len(result.Failed) != 1 {
		t.Fatalf("failed = %+v, want 1 tile", result.Failed)
	}
	if result.Failed[0].Status() != tile.Failed {
		t.Errorf("status = %v, want Failed", result.Failed[0].Status())
	}
}

func TestRunMultiStageChain(t *testing.T) {
	tiles := newTiles("a", "b")
	var transformRan, uploadRan int
	stages := []Stage{
		{Name: "transform", Workers: 2, Run: func(ctx context.Context, t *tile.Tile) (Outcome, string, error) {
			transformRan++
			if err := t.Transition(tile.Succeeded, "transform ok"); err != nil {
				return Fail, "", err
			}
			return Continue, "", nil
		}},
		{Name: "upload", Workers: 2, Run: func(ctx context.Context, t *tile.Tile) (Outcome, string, error) {
			uploadRan++
			return Continue, "", nil
		}},
	}
	result := Run(context.Background(), tiles, stages, nil)
	if transformRan != 2 || uploadRan != 2 {
		t.Fatalf("transformRan=%d uploadRan=%d, want 2 and 2", transformRan, uploadRan)
	}
	if len(result.Succeeded) != 2 {
		t.Fatalf("succeeded = %+v", result.Succeeded)
	}
	for _, tl := range result.Succeeded {
		if tl.Status() != tile.Succeeded {
			t.Errorf("tile %s status = %v, want Succeeded", tl.ID, tl.Status())
		}
	}
}

func TestRunUploadFailureAfterSuccessfulTransform(t *testing.T) {
	tiles := newTiles("a")
	stages := []Stage{
		{Name: "transform", Workers: 1, Run: func(ctx context.Context, t *tile.Tile) (Outcome, string, error) {
			if err := t.Transition(tile.Succeeded, "transform ok"); err != nil {
				return Fail, "", err
			}
			return Continue, "", nil
		}},
		{Name: "upload", Workers: 1, Run: func(ctx context.Context, t *tile.Tile) (Outcome, string, error) {
			return Fail, "upload error", nil
		}},
	}
	result := Run(context.Background(), tiles, stages, nil)
	if len(result.Failed) != 1 {
		t.Fatalf("failed = %+v, want 1", result.Failed)
	}
	if result.Failed[0].Status() != tile.Failed {
		t.Errorf("status = %v, want Failed", result.Failed[0].Status())
	}
}
