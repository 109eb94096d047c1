// Package transform implements the transform engine core: window planning,
// the per-window read→calc→cast→write procedure, and the sequential/
// parallel execution strategies, grounded on
// original_source/gfw_pixetl/tiles/raster_src_tile.py (_max_blocks,
// _process_windows_sequential/_parallel, _calc, _set_dtype, _union_blocks).
package transform

import (
	"math"

	"github.com/mumuon/pixetl-go/internal/raster"
)

// PlanParams are the inputs to window planning (spec.md §4.5).
type PlanParams struct {
	BlockX, BlockY   int
	DtypeSize        int // sizeof(dtype) in bytes
	PerProcessMemory int64
	BaseDivisor      int
	COWorkers        int // concurrent sub-workers this tile may use
	CalcPresent      bool
}

// Plan is the resolved super-window geometry for one tile.
type Plan struct {
	BytesPerBlock      int64
	Divisor            int
	MemoryPerSuperWin  int64
	MaxBlocks          int
	BlockCount         int // blocks per side of a super-window
}

// ComputePlan implements spec.md §4.5's literal window-planning formula.
// This document's wording is binding over the original Python's differing
// divisor-squaring arithmetic (SPEC_FULL.md §4.5 resolution note).
func ComputePlan(p PlanParams) Plan {
	bytesPerBlock := int64(p.BlockX) * int64(p.BlockY) * int64(p.DtypeSize)

	divisor := p.BaseDivisor
	if p.COWorkers >= 2 {
		divisor *= p.COWorkers
	}
	if p.CalcPresent {
		divisor *= p.BaseDivisor
	}
	if divisor < 1 {
		divisor = 1
	}

	memPerSuperWin := p.PerProcessMemory / int64(divisor)
	if memPerSuperWin < bytesPerBlock {
		memPerSuperWin = bytesPerBlock
	}

	blocksFit := math.Floor(math.Sqrt(float64(memPerSuperWin) / float64(bytesPerBlock)))
	if blocksFit < 1 {
		blocksFit = 1
	}
	maxBlocks := int(blocksFit * blocksFit)
	blockCount := int(blocksFit)

	return Plan{
		BytesPerBlock:     bytesPerBlock,
		Divisor:           divisor,
		MemoryPerSuperWin: memPerSuperWin,
		MaxBlocks:         maxBlocks,
		BlockCount:        blockCount,
	}
}

// SuperWindows enumerates the destination block grid in row-major order as
// super-windows of plan.BlockCount x plan.BlockCount blocks, intersected
// with intersectingWindow (snapped outward to block boundaries) and
// clipped to [0, width) x [0, height). Empty intersections are dropped.
func SuperWindows(plan Plan, width, height, blockX, blockY int, intersecting raster.Window) []raster.Window {
	superW := plan.BlockCount * blockX
	superH := plan.BlockCount * blockY
	if superW < 1 {
		superW = blockX
	}
	if superH < 1 {
		superH = blockY
	}

	clip := snapOutward(intersecting, blockX, blockY, width, height)

	var windows []raster.Window
	for rowOff := 0; rowOff < height; rowOff += superH {
		for colOff := 0; colOff < width; colOff += superW {
			w := raster.Window{
				ColOff: colOff,
				RowOff: rowOff,
				Width:  minInt(superW, width-colOff),
				Height: minInt(superH, height-rowOff),
			}
			trimmed, ok := intersectWindows(w, clip)
			if !ok {
				continue
			}
			windows = append(windows, trimmed)
		}
	}
	return windows
}

// snapOutward expands w to the nearest enclosing block-aligned rectangle,
// clipped to the raster bounds.
func snapOutward(w raster.Window, blockX, blockY, width, height int) raster.Window {
	colOff := floorToMultiple(w.ColOff, blockX)
	rowOff := floorToMultiple(w.RowOff, blockY)
	colEnd := ceilToMultiple(w.ColOff+w.Width, blockX)
	rowEnd := ceilToMultiple(w.RowOff+w.Height, blockY)
	if colEnd > width {
		colEnd = width
	}
	if rowEnd > height {
		rowEnd = height
	}
	return raster.Window{ColOff: colOff, RowOff: rowOff, Width: colEnd - colOff, Height: rowEnd - rowOff}
}

func intersectWindows(a, b raster.Window) (raster.Window, bool) {
	colOff := maxInt(a.ColOff, b.ColOff)
	rowOff := maxInt(a.RowOff, b.RowOff)
	colEnd := minInt(a.ColOff+a.Width, b.ColOff+b.Width)
	rowEnd := minInt(a.RowOff+a.Height, b.RowOff+b.Height)
	if colEnd <= colOff || rowEnd <= rowOff {
		return raster.Window{}, false
	}
	return raster.Window{ColOff: colOff, RowOff: rowOff, Width: colEnd - colOff, Height: rowEnd - rowOff}, true
}

func floorToMultiple(v, step int) int {
	if step <= 0 {
		return v
	}
	return (v / step) * step
}

func ceilToMultiple(v, step int) int {
	if step <= 0 {
		return v
	}
	if v%step == 0 {
		return v
	}
	return (v/step + 1) * step
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
