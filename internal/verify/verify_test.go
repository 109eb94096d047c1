package verify

import (
	"context"
	"testing"

	"github.com/mumuon/pixetl-go/internal/grid"
	"github.com/mumuon/pixetl-go/internal/storage"
	"github.com/mumuon/pixetl-go/internal/tile"
)

func newSucceededTile(id string) *tile.Tile {
	t := tile.New(id, "1/4000", grid.DestinationProfile{Width: 4000, Height: 4000}, nil)
	t.Transition(tile.Succeeded, "test setup")
	return t
}

func TestRunSkipsNonSucceededTiles(t *testing.T) {
	pending := tile.New("pending-tile", "1/4000", grid.DestinationProfile{}, nil)
	skipped := tile.New("skipped-tile", "1/4000", grid.DestinationProfile{}, nil)
	skipped.Transition(tile.Skipped, "no intersecting source")

	tiles := []*tile.Tile{pending, skipped}
	client := &storage.Client{}

	report, err := Run(context.Background(), "run-1", tiles, client, func(t *tile.Tile) string { return t.ID }, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Checked != 0 {
		t.Errorf("Checked = %d, want 0 (no succeeded tiles)", report.Checked)
	}
	if !report.OK {
		t.Errorf("report.OK = false, want true with nothing to check")
	}
}

func TestReportOKReflectsMissingAndMismatches(t *testing.T) {
	r := &Report{}
	if !r.OK {
		// OK is computed by Run, not by the zero value; exercise the same
		// condition Run uses directly.
	}
	r.Missing = []string{"a.tif"}
	ok := len(r.Missing) == 0 && len(r.DimensionMismatches) == 0
	if ok {
		t.Errorf("expected not OK with a missing key recorded")
	}
}

func TestSampleDimensionsSkipsEmptyPath(t *testing.T) {
	tl := newSucceededTile("10N_010E")
	if err := sampleDimensions(tl, ""); err != nil {
		t.Errorf("sampleDimensions with empty path returned %v, want nil (skip)", err)
	}
}
