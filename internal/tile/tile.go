// Package tile implements the tile descriptor and its lifecycle state
// machine from spec.md §4.4, grounded on the teacher's TileJob status field
// (models.go) generalized from an ad hoc string to a checked enum with a
// monotonic transition guard.
package tile

import (
	"errors"
	"fmt"
	"time"

	"github.com/mumuon/pixetl-go/internal/grid"
	"github.com/mumuon/pixetl-go/internal/layer"
)

// Status is a tile's lifecycle state.
type Status int

const (
	Pending Status = iota
	Skipped
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Skipped:
		return "skipped"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned by Tile.Transition when the requested
// move isn't one of the edges spec.md §4.4 names.
var ErrInvalidTransition = errors.New("tile: invalid status transition")

// validEdges enumerates the state machine from spec.md §4.4: pending may
// move to skipped, succeeded, or failed exactly once; skipped and failed
// are terminal, and succeeded may still move to failed (an upload error).
var validEdges = map[Status]map[Status]bool{
	Pending:   {Skipped: true, Succeeded: true, Failed: true},
	Succeeded: {Failed: true}, // upload failure after a successful transform
}

// Transition is one recorded lifecycle move, appended to the job ledger
// when one is configured (spec.md §4.4 expansion).
type Transition struct {
	From, To Status
	Reason   string
	At       time.Time
}

// Tile is one unit of work: a tile id materialized against a grid, carrying
// its destination profile and lifecycle state.
type Tile struct {
	ID       string
	GridName string
	Profile  grid.DestinationProfile

	LocalPath  string
	RemotePath string

	// Metadata is filled in by an optional postprocess step (band stats,
	// histograms); nil unless the layer asked for it.
	Metadata *layer.Metadata

	status      Status
	transitions []Transition

	timeNow func() time.Time
}

// New constructs a pending tile. timeNow is injectable for tests; production
// callers pass time.Now.
func New(id, gridName string, profile grid.DestinationProfile, timeNow func() time.Time) *Tile {
	if timeNow == nil {
		timeNow = time.Now
	}
	return &Tile{ID: id, GridName: gridName, Profile: profile, status: Pending, timeNow: timeNow}
}

// Status returns the tile's current lifecycle state.
func (t *Tile) Status() Status { return t.status }

// Transitions returns the recorded history of status moves, in order.
func (t *Tile) Transitions() []Transition {
	out := make([]Transition, len(t.transitions))
	copy(out, t.transitions)
	return out
}

// Transition moves the tile from its current status to to, recording the
// move. Only the edges spec.md §4.4 names are legal; anything else
// (including moving a terminal tile again) returns ErrInvalidTransition.
func (t *Tile) Transition(to Status, reason string) error {
	edges, ok := validEdges[t.status]
	if !ok || !edges[to] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, to)
	}
	t.transitions = append(t.transitions, Transition{From: t.status, To: to, Reason: reason, At: t.timeNow()})
	t.status = to
	return nil
}

// IsTerminal reports whether the tile has reached a state with no further
// legal transitions.
func (t *Tile) IsTerminal() bool {
	_, ok := validEdges[t.status]
	return !ok
}
