package tile

import (
	"errors"
	"testing"
	"time"

	"github.com/mumuon/pixetl-go/internal/grid"
)

func newTestTile() *Tile {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return New("10N_010E", "1/4000", grid.DestinationProfile{}, func() time.Time { return clock })
}

func TestNewTileStartsPending(t *testing.T) {
	tl := newTestTile()
	if tl.Status() != Pending {
		t.Fatalf("new tile status = %v, want Pending", tl.Status())
	}
	if tl.IsTerminal() {
		t.Fatal("pending tile reported terminal")
	}
}

func TestValidTransitions(t *testing.T) {
	for _, to := range []Status{Skipped, Succeeded, Failed} {
		tl := newTestTile()
		if err := tl.Transition(to, "test"); err != nil {
			t.Fatalf("Transition(%v): %v", to, err)
		}
		if tl.Status() != to {
			t.Fatalf("status = %v, want %v", tl.Status(), to)
		}
	}
}

func TestSucceededCanFailOnUploadError(t *testing.T) {
	tl := newTestTile()
	if err := tl.Transition(Succeeded, "transform ok"); err != nil {
		t.Fatalf("Transition(Succeeded): %v", err)
	}
	if err := tl.Transition(Failed, "upload error"); err != nil {
		t.Fatalf("Transition(Failed) after Succeeded: %v", err)
	}
	if tl.Status() != Failed {
		t.Fatalf("status = %v, want Failed", tl.Status())
	}
}

func TestTerminalTransitionsAreRejected(t *testing.T) {
	for _, from := range []Status{Skipped, Failed} {
		tl := newTestTile()
		if err := tl.Transition(from, "setup"); err != nil {
			t.Fatalf("setup transition to %v: %v", from, err)
		}
		if !tl.IsTerminal() {
			t.Fatalf("status %v should be terminal", from)
		}
		if err := tl.Transition(Pending, "retry"); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("Transition from terminal %v: got %v, want ErrInvalidTransition", from, err)
		}
	}
}

func TestTransitionsAreRecordedInOrder(t *testing.T) {
	tl := newTestTile()
	if err := tl.Transition(Succeeded, "transform ok"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := tl.Transition(Failed, "upload error"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	got := tl.Transitions()
	if len(got) != 2 {
		t.Fatalf("got %d transitions, want 2", len(got))
	}
	if got[0].From != Pending || got[0].To != Succeeded {
		t.Errorf("transitions[0] = %+v", got[0])
	}
	if got[1].From != Succeeded || got[1].To != Failed {
		t.Errorf("transitions[1] = %+v", got[1])
	}
}
