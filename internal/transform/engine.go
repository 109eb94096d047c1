package transform

import (
	"context"
	"fmt"
	"sync"

	"github.com/mumuon/pixetl-go/internal/calc"
	"github.com/mumuon/pixetl-go/internal/layer"
	"github.com/mumuon/pixetl-go/internal/maskedarray"
	"github.com/mumuon/pixetl-go/internal/raster"
)

// Reader is the window-read side of a raster source view; *raster.View
// satisfies it.
type Reader interface {
	Read(ctx context.Context, w raster.Window) (*maskedarray.Array, error)
}

// Writer is the window-write side of an output dataset; *raster.Writer
// satisfies it.
type Writer interface {
	WriteWindow(w raster.Window, data []float64) error
}

// bufPool holds reusable []float64 write buffers across windows, replacing
// the original's per-window process isolation (spec.md §9 design note: this
// module has no allocator-fragmentation problem process isolation would
// solve, so buffer reuse is scope-bounded instead).
var bufPool = sync.Pool{New: func() any { return make([]float64, 0, 4096) }}

// ProcessWindow implements spec.md §4.5's per-window procedure:
// read -> has_data check -> calc -> cast -> write. A (false, nil) return
// means the window had no data and was skipped. A calc expression sees the
// window's band as A and, when bandName is non-empty, also under bandName.
// Once a write buffer is taken from the shared pool it is returned before
// ProcessWindow returns, win or lose.
func ProcessWindow(ctx context.Context, r Reader, w Writer, win raster.Window, calcExpr string, bandName string, dtype layer.DataType, nodata *float64) (wrote bool, err error) {
	arr, err := r.Read(ctx, win)
	if err != nil {
		return false, fmt.Errorf("read window %+v: %w", win, err)
	}
	if !arr.HasData() {
		return false, nil
	}

	result := arr
	if calcExpr != "" {
		bindings := map[string]*maskedarray.Array{"A": arr}
		if bandName != "" {
			bindings[bandName] = arr
		}
		result, err = calc.Evaluate(calcExpr, bindings)
		if err != nil {
			return false, fmt.Errorf("calc window %+v: %w", win, err)
		}
	}

	cast := castToDtype(result, dtype, nodata)

	buf := bufPool.Get().([]float64)
	defer func() {
		bufPool.Put(buf[:0]) //nolint:staticcheck // reused across windows regardless of outcome
	}()
	if cap(buf) < len(cast.Data) {
		buf = make([]float64, len(cast.Data))
	} else {
		buf = buf[:len(cast.Data)]
	}
	copy(buf, cast.Data)

	if err := w.WriteWindow(win, buf); err != nil {
		return false, fmt.Errorf("write window %+v: %w", win, err)
	}
	return true, nil
}

// RunSequential implements spec.md §4.5's sequential window mode: one
// reader/writer pair, windows processed in row-major order. Returns the
// count of windows that produced data; an empty result (0 written windows)
// means the tile should transition to skipped.
func RunSequential(ctx context.Context, r Reader, w Writer, windows []raster.Window, calcExpr, bandName string, dtype layer.DataType, nodata *float64) (int, error) {
	written := 0
	for _, win := range windows {
		ok, err := ProcessWindow(ctx, r, w, win, calcExpr, bandName, dtype, nodata)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}

// WriterFactory creates a fresh per-super-window writer for parallel mode,
// keyed by the window it will receive (used to derive the temporary file's
// own sub-transform and name, {tile_id}_{col_off}_{row_off}.tif per
// spec.md §4.5).
type WriterFactory func(win raster.Window) (Writer, error)

// RunParallel implements spec.md §4.5's parallel window mode: coWorkers
// sub-workers each open their own reader and take super-windows from a
// shared queue, writing each one to its own temporary output file. Merging
// the temporaries into the tile's final composite is the caller's
// responsibility (cmd/pixetl's parallel transform, via internal/raster's
// VRT+Translate path) since it needs the godal-backed
// dataset handles this package deliberately stays decoupled from for
// testability.
func RunParallel(ctx context.Context, readerFactory func() (Reader, error), writerFactory WriterFactory, windows []raster.Window, coWorkers int, calcExpr, bandName string, dtype layer.DataType, nodata *float64) ([]raster.Window, error) {
	if coWorkers < 1 {
		coWorkers = 1
	}

	type result struct {
		win   raster.Window
		wrote bool
		err   error
	}

	jobs := make(chan raster.Window)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < coWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := readerFactory()
			if err != nil {
				for win := range jobs {
					results <- result{win: win, err: fmt.Errorf("open sub-worker view: %w", err)}
				}
				return
			}
			for win := range jobs {
				w, err := writerFactory(win)
				if err != nil {
					results <- result{win: win, err: err}
					continue
				}
				wrote, err := ProcessWindow(ctx, r, w, win, calcExpr, bandName, dtype, nodata)
				results <- result{win: win, wrote: wrote, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, win := range windows {
			select {
			case jobs <- win:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var produced []raster.Window
	var firstErr error
	for res := range results {
		if res.err != nil && firstErr == nil {
			firstErr = res.err
			continue
		}
		if res.wrote {
			produced = append(produced, res.win)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return produced, nil
}
