package raster

import (
	"context"
	"errors"
	"testing"

	"github.com/mumuon/pixetl-go/internal/grid"
)

func TestWarpSwitchesEncodesDestinationProfile(t *testing.T) {
	profile := grid.DestinationProfile{
		CRS:        "EPSG:4326",
		Transform:  grid.FromOrigin(9.1, 9.2, 0.00025, 0.00025),
		Width:      400,
		Height:     400,
		BlockXSize: 400,
		BlockYSize: 400,
	}

	switches := warpSwitches(profile, "bilinear", 1<<20)

	want := map[string]bool{
		"-t_srs": false, "-te": false, "-ts": false, "-r": false, "-wm": false, "-co": false,
	}
	for _, s := range switches {
		if _, ok := want[s]; ok {
			want[s] = true
		}
	}
	for flag, seen := range want {
		if !seen {
			t.Errorf("warpSwitches missing flag %q in %v", flag, switches)
		}
	}
}

func TestIsRetryableClassification(t *testing.T) {
	cases := []struct {
		msg       string
		retryable bool
	}{
		{"context deadline exceeded talking to s3", true},
		{"connection reset by peer", true},
		{"file.tif does not exist in the file system", false},
		{"The specified key does not exist.", false},
		{"No such file or directory", false},
		{"not recognized as a supported file format", false},
		{"Access Denied", false},
		{"access denied for user", false},
	}
	for _, c := range cases {
		got := isRetryable(errors.New(c.msg))
		if got != c.retryable {
			t.Errorf("isRetryable(%q) = %v, want %v", c.msg, got, c.retryable)
		}
	}
}

func TestOpenRejectsEmptyURIList(t *testing.T) {
	_, err := Open(context.Background(), nil, grid.DestinationProfile{}, "nearest", 0)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("Open with no URIs: got %v, want ErrSourceUnavailable", err)
	}
}
