// Package merge implements the concurrent read, resize, and write pass
// that copies every retained granule's variable payloads into the
// initialized output file at its subset_index slot, padding each payload
// up to the unified schema's per-axis maximum along the way.
package merge

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/podaac/concise/internal/apperr"
	"github.com/podaac/concise/internal/granule"
	"github.com/podaac/concise/internal/logx"
	"github.com/podaac/concise/internal/netcdf"
	"github.com/podaac/concise/pkg/collections"
	"github.com/podaac/concise/pkg/parallel"
	"github.com/podaac/concise/pkg/utils"
)

// progressLogInterval is how often ProgressTracker's background goroutine
// reports the processed-slab count through cfg.Logger.
const progressLogInterval = 500 * time.Millisecond

// Config configures one merge run.
type Config struct {
	// Workers is the process_count from §4.5: <= 1 runs single-threaded;
	// >= 2 fixes the topology to one writer (this goroutine) plus
	// Workers-1 reader goroutines.
	Workers int
	// BudgetBytes overrides the outstanding-buffer budget; <= 0 falls
	// back to ResolveBudgetBytes's SHARED_MEMORY_SIZE/default chain.
	BudgetBytes int64
	Clock       utils.Clock
	Logger      logx.Logger
}

// Run executes the merge pass: for every retained input and every
// variable in the unified schema, read (or synthesize) the payload,
// resize it to the schema's per-axis maximum, and write it at the
// input's subset_index slot.
func Run(ctx context.Context, schema *granule.Schema, retained []string, out *netcdf.OutputWriter, cfg Config) error {
	if cfg.Logger == nil {
		cfg.Logger = logx.Null{}
	}
	if cfg.Clock == nil {
		cfg.Clock = utils.NewRealClock()
	}

	shapes, err := targetShapes(schema)
	if err != nil {
		return err
	}
	varPaths := sortedVarPaths(schema)
	total := int64(len(retained)) * int64(len(varPaths))

	if cfg.Workers <= 1 {
		return runSequential(ctx, retained, varPaths, schema, shapes, out, cfg, total)
	}
	return runPipelined(ctx, retained, varPaths, schema, shapes, out, cfg, total)
}

// targetShapes resolves, for every variable in the schema, the shape one
// subset_index slab must have after padding: desc.DimOrder resolved
// against schema.MaxDims.
func targetShapes(schema *granule.Schema) (map[string][]int, error) {
	out := make(map[string][]int, len(schema.VarInfo))
	for varPath, desc := range schema.VarInfo {
		dimOrder := desc.DimOrder()
		shape := make([]int, len(dimOrder))
		for i, d := range dimOrder {
			_, size, ok := granule.ResolveDimPath(schema.MaxDims, desc.GroupPath(), d)
			if !ok {
				return nil, apperr.ErrInvariantViolation.WithMessage(
					"resolve_dim found no match for dimension %q of variable %s", d, varPath)
			}
			shape[i] = size
		}
		out[varPath] = shape
	}
	return out, nil
}

func sortedVarPaths(schema *granule.Schema) []string {
	paths := make([]string, 0, len(schema.VarInfo))
	for p := range schema.VarInfo {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// varIndex builds the varPath -> position map used to address the
// duplicate-write bitsets below; varPaths is already sorted, so the
// mapping is stable across the whole run.
func varIndex(varPaths []string) map[string]int {
	m := make(map[string]int, len(varPaths))
	for i, p := range varPaths {
		m[p] = i
	}
	return m
}

// newProcessedTracker wraps a parallel.ProgressTracker around total
// expected (input x variable) slabs, logging progress through cfg.Logger
// every progressLogInterval instead of silently counting in a bare int64.
func newProcessedTracker(ctx context.Context, cfg Config, total int64) *parallel.ProgressTracker {
	pt := parallel.NewProgressTracker(total, func(completed, total int64) {
		cfg.Logger.Debug("merge progress: %d/%d slabs written", completed, total)
	}, progressLogInterval)
	pt.Start(ctx)
	return pt
}

// runSequential is process_count == 1: one goroutine iterates inputs then
// variables, reading, resizing, and writing directly, with no reader
// goroutines or backpressure machinery at all.
func runSequential(ctx context.Context, retained, varPaths []string, schema *granule.Schema, shapes map[string][]int, out *netcdf.OutputWriter, cfg Config, total int64) error {
	pool := newBufferPool()
	idx := varIndex(varPaths)
	// VersionedBitset resets in O(1) per input instead of reallocating a
	// fresh visited-set for each granule, matching its BFS/DFS-reuse case.
	written := collections.NewVersionedBitset(len(varPaths))
	pt := newProcessedTracker(ctx, cfg, total)
	defer pt.Stop()

	for i, path := range retained {
		gr, err := netcdf.OpenGranule(path)
		if err != nil {
			return apperr.ErrMergeFailed.WithCause(fmt.Errorf("open %s: %w", path, err))
		}
		written.Reset()
		for _, varPath := range varPaths {
			vi := idx[varPath]
			if written.Test(vi) {
				return apperr.ErrInvariantViolation.WithMessage(
					"variable %s slab for input %s was about to be written twice", varPath, filepath.Base(path))
			}
			task, release, err := buildPooledSlab(pool, schema, varPath, shapes[varPath], gr, i)
			if err != nil {
				return apperr.ErrMergeFailed.WithCause(err)
			}
			writeErr := out.WriteSlab(varPath, task.index, task.data, task.shape)
			release()
			if writeErr != nil {
				return apperr.ErrMergeFailed.WithCause(writeErr)
			}
			written.Set(vi)
			pt.Increment()
			cfg.Logger.Debug("wrote slab: input=%s var=%s", filepath.Base(path), varPath)
		}
	}
	return nil
}

// readerResult is what a reader goroutine posts to the output queue: a
// ready-to-write slab plus its release func, or a terminal error.
type readerResult struct {
	task    slabTask
	release func()
	err     error
}

// runPipelined is process_count >= 2: R = Workers-1 reader goroutines
// drain an input-index queue; this goroutine is the sole writer, draining
// the output queue and applying backpressure via budget, per §4.5/§5.
func runPipelined(ctx context.Context, retained, varPaths []string, schema *granule.Schema, shapes map[string][]int, out *netcdf.OutputWriter, cfg Config, total int64) error {
	readers := cfg.Workers - 1
	if readers < 1 {
		readers = 1
	}

	budget := NewBudget(ResolveBudgetBytes(cfg.BudgetBytes), cfg.Clock)
	inputs := make(chan int, len(retained))
	for i := range retained {
		inputs <- i
	}
	close(inputs)

	outputQueue := make(chan readerResult, readers*2)
	var queueLen int64

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	idx := varIndex(varPaths)
	// posted is set concurrently by every reader goroutine below (the
	// whole reason AtomicBitset exists over a plain Bitset): it catches a
	// (input, variable) slab being queued for the writer twice, which
	// would otherwise surface only as a silently wrong subset_index slot.
	posted := collections.NewAtomicBitset(int(total))

	var wg sync.WaitGroup
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool := newBufferPool()
			for {
				select {
				case <-ctx.Done():
					return
				case i, ok := <-inputs:
					if !ok {
						return
					}
					if err := readInput(ctx, i, retained[i], varPaths, idx, posted, schema, shapes, pool, budget, &queueLen, outputQueue); err != nil {
						atomic.AddInt64(&queueLen, 1)
						outputQueue <- readerResult{err: err}
						cancel()
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(outputQueue)
	}()

	// The writer always drains outputQueue to completion, even after the
	// first failure: a reader may already be blocked mid-send on this
	// channel, and abandoning the drain early would leak that goroutine
	// forever. cancel() stops readers from picking up further work; this
	// loop only stops once every reader has actually exited and closed
	// the channel.
	pt := newProcessedTracker(ctx, cfg, total)
	defer pt.Stop()

	var firstErr error
	for result := range outputQueue {
		atomic.AddInt64(&queueLen, -1)
		if result.release != nil && firstErr != nil {
			result.release()
			continue
		}
		if result.err != nil {
			if firstErr == nil {
				firstErr = apperr.ErrMergeFailed.WithCause(result.err)
			}
			cancel()
			continue
		}
		if err := out.WriteSlab(result.task.varPath, result.task.index, result.task.data, result.task.shape); err != nil {
			if firstErr == nil {
				firstErr = apperr.ErrMergeFailed.WithCause(err)
			}
			cancel()
			if result.release != nil {
				result.release()
			}
			continue
		}
		budget.Release(result.task.bytes)
		if result.release != nil {
			result.release()
		}
		pt.Increment()
	}

	if firstErr != nil {
		return firstErr
	}
	if processed := pt.Completed(); processed != total {
		return apperr.ErrMergeFailed.WithMessage(
			"writer processed %d of %d expected (input x variable) slabs before readers exited", processed, total)
	}
	return nil
}

// readInput visits every variable for one retained input, resizing each
// into a pooled buffer and posting it to the output queue, respecting the
// backpressure budget before each post.
func readInput(ctx context.Context, index int, path string, varPaths []string, idx map[string]int, posted *collections.AtomicBitset, schema *granule.Schema, shapes map[string][]int, pool *bufferPool, budget *Budget, queueLen *int64, outputQueue chan<- readerResult) error {
	gr, err := netcdf.OpenGranule(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	for _, varPath := range varPaths {
		gidx := index*len(varPaths) + idx[varPath]
		if posted.TestAndSet(gidx) {
			return apperr.ErrInvariantViolation.WithMessage(
				"variable %s slab for input index %d was queued for writing twice", varPath, index)
		}

		task, release, err := buildPooledSlab(pool, schema, varPath, shapes[varPath], gr, index)
		if err != nil {
			return err
		}
		if err := budget.Reserve(ctx, task.bytes, func() bool { return atomic.LoadInt64(queueLen) > 0 }); err != nil {
			release()
			return err
		}
		atomic.AddInt64(queueLen, 1)
		outputQueue <- readerResult{task: task, release: release}
	}
	return nil
}

// buildPooledSlab resolves variable varPath's payload for retained input
// gr at subset_index slot index, applying the missing-variable rule and
// resize_var padding into a buffer drawn from pool. It returns a release
// func the caller must invoke exactly once, after the writer has
// consumed task.data, to return the buffer to pool.
func buildPooledSlab(pool *bufferPool, schema *granule.Schema, varPath string, dstShape []int, gr *netcdf.Granule, index int) (slabTask, func(), error) {
	desc := schema.VarInfo[varPath]
	dstLen := product(dstShape)
	dstData, release := pool.get(desc.Datatype(), dstLen)

	v, found := gr.Variable(varPath)
	FillInto(dstData, desc.FillValue())
	if found {
		if err := PadInto(dstData, v.Data, v.Shape, dstShape); err != nil {
			release()
			return slabTask{}, nil, err
		}
	}

	return slabTask{
		index:   index,
		varPath: varPath,
		data:    dstData,
		shape:   dstShape,
		bytes:   int64(dstLen) * byteWidth(desc.Datatype()),
	}, release, nil
}
