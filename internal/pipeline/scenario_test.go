package pipeline

import (
	"context"
	"testing"

	"github.com/mumuon/pixetl-go/internal/tile"
)

// subsetStage and intersectStage mirror cmd/pixetl's filter_subset and
// filter_src_intersect stage shapes closely enough to exercise the literal
// end-to-end scenarios without pulling in GDAL.
func subsetStage(subset map[string]bool) Stage {
	return Stage{Name: "filter_subset", Workers: 2, Run: func(ctx context.Context, t *tile.Tile) (Outcome, string, error) {
		if len(subset) > 0 && !subset[t.ID] {
			return Skip, "not in requested subset", nil
		}
		return Continue, "", nil
	}}
}

func intersectStage(coveredBy map[string]bool) Stage {
	return Stage{Name: "filter_src_intersect", Workers: 2, Run: func(ctx context.Context, t *tile.Tile) (Outcome, string, error) {
		if !coveredBy[t.ID] {
			return Skip, "no intersecting source", nil
		}
		return Continue, "", nil
	}}
}

func transformSucceedsStage() Stage {
	return Stage{Name: "transform", Workers: 2, Run: func(ctx context.Context, t *tile.Tile) (Outcome, string, error) {
		if err := t.Transition(tile.Succeeded, "transform produced data"); err != nil {
			return Fail, "", err
		}
		return Continue, "", nil
	}}
}

// TestScenarioS1SubsetRun matches SPEC_FULL.md's literal S1: subset of three
// tiles, source covers only one of them. succeeded=1, skipped=2, failed=0.
func TestScenarioS1SubsetRun(t *testing.T) {
	tiles := newTiles("10N_010E", "20N_010E", "30N_010E")
	subset := map[string]bool{"10N_010E": true, "20N_010E": true, "30N_010E": true}
	covered := map[string]bool{"10N_010E": true}

	stages := []Stage{subsetStage(subset), intersectStage(covered), transformSucceedsStage()}
	result := Run(context.Background(), tiles, stages, nil)

	if len(result.Succeeded) != 1 {
		t.Errorf("succeeded = %d, want 1", len(result.Succeeded))
	}
	if len(result.Skipped) != 2 {
		t.Errorf("skipped = %d, want 2", len(result.Skipped))
	}
	if len(result.Failed) != 0 {
		t.Errorf("failed = %d, want 0", len(result.Failed))
	}
}

// TestScenarioS2FullExtent matches SPEC_FULL.md's literal S2: no subset, four
// candidate tiles, all intersect the source. succeeded=4, skipped=0, failed=0.
func TestScenarioS2FullExtent(t *testing.T) {
	ids := []string{"10N_010E", "10N_020E", "20N_010E", "20N_020E"}
	tiles := newTiles(ids...)
	covered := map[string]bool{}
	for _, id := range ids {
		covered[id] = true
	}

	stages := []Stage{subsetStage(nil), intersectStage(covered), transformSucceedsStage()}
	result := Run(context.Background(), tiles, stages, nil)

	if len(result.Succeeded) != 4 {
		t.Errorf("succeeded = %d, want 4", len(result.Succeeded))
	}
	if len(result.Skipped) != 0 {
		t.Errorf("skipped = %d, want 0", len(result.Skipped))
	}
	if len(result.Failed) != 0 {
		t.Errorf("failed = %d, want 0", len(result.Failed))
	}
}
