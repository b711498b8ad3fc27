// Package preprocess derives the unified output schema from a set of
// filtered granule paths: the union group topology, per-group maximum
// dimensions, the union variable catalog (with descriptor-consistency
// enforced), and aggregated attributes and provenance history.
package preprocess

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/podaac/concise/internal/apperr"
	"github.com/podaac/concise/internal/granule"
	"github.com/podaac/concise/internal/history"
	"github.com/podaac/concise/internal/netcdf"
	"github.com/podaac/concise/pkg/collections"
	"github.com/podaac/concise/pkg/parallel"
)

// Result is the preprocess pass's output: the unified schema plus the
// ordered list of inputs (full paths, in original order) that survived
// the emptiness filter.
type Result struct {
	Schema   *granule.Schema
	Retained []string
}

// Run filters empty inputs (C3), then derives the unified schema (C4)
// from the rest. workers <= 1 runs single-threaded; workers >= 2 fans
// the retained inputs out across that many goroutines, each building its
// own local schema, then merges the local schemas per §4.3's
// coordinator rules.
func Run(ctx context.Context, inputPaths []string, workers int) (*Result, error) {
	// retainedSet marks which of inputPaths survive the emptiness filter at
	// 1 bit per input rather than building the filtered slice incrementally
	// alongside a separate bool slice.
	retainedSet := collections.NewBitset(len(inputPaths))
	for i, p := range inputPaths {
		gr, err := netcdf.OpenGranule(p)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		if gr.IsEmpty() {
			continue
		}
		retainedSet.Set(i)
	}
	if retainedSet.Count() == 0 {
		return nil, apperr.ErrInvalidInput.WithMessage("no non-empty inputs remain after the emptiness filter")
	}
	retained := make([]string, 0, retainedSet.Count())
	retainedSet.Iterate(func(i int) bool {
		retained = append(retained, inputPaths[i])
		return true
	})

	var schema *granule.Schema
	var err error
	if workers <= 1 {
		schema, err = visitAll(retained)
	} else {
		schema, err = runParallel(ctx, retained, workers)
	}
	if err != nil {
		return nil, err
	}

	sort.Strings(schema.GroupList)
	return &Result{Schema: schema, Retained: retained}, nil
}

// runParallel partitions retained across workers goroutines, each
// building a local schema with visitAll, then folds the local schemas
// together in worker-index order (a deterministic stand-in for
// "worker-completion order", since wall-clock completion order is not
// itself meaningful to preserve).
func runParallel(ctx context.Context, retained []string, workers int) (*granule.Schema, error) {
	config := parallel.DefaultPoolConfig().WithWorkers(workers)
	processor := parallel.NewChunkProcessor[string, *granule.Schema](config)

	var mu sync.Mutex
	var visitErr error
	setErr := func(err error) {
		mu.Lock()
		if visitErr == nil {
			visitErr = err
		}
		mu.Unlock()
	}

	merged := processor.ProcessChunks(ctx, retained,
		func(ctx context.Context, chunk []string, workerID int) *granule.Schema {
			s, err := visitAll(chunk)
			if err != nil {
				setErr(err)
				return nil
			}
			return s
		},
		func(results []*granule.Schema) *granule.Schema {
			var acc *granule.Schema
			for _, r := range results {
				if r == nil {
					continue
				}
				if acc == nil {
					acc = r
					continue
				}
				merged, err := mergeSchemas(acc, r)
				if err != nil {
					setErr(err)
					return nil
				}
				acc = merged
			}
			return acc
		},
	)
	if visitErr != nil {
		return nil, visitErr
	}
	if merged == nil {
		return nil, apperr.ErrInvalidInput.WithMessage("no schema produced by any worker")
	}
	return merged, nil
}

// visitAll builds one schema by visiting every granule in paths,
// sequentially, in order.
func visitAll(paths []string) (*granule.Schema, error) {
	schema := granule.NewSchema()
	groupSet := make(map[string]struct{})

	for _, path := range paths {
		gr, err := netcdf.OpenGranule(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		if err := visitGranule(schema, groupSet, gr); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	schema.GroupList = setToSlice(groupSet)
	return schema, nil
}

// visitGranule folds one granule's groups, dimensions, variables, and
// attributes into schema, per §4.3's per-granule visit rules.
func visitGranule(schema *granule.Schema, groupSet map[string]struct{}, gr *netcdf.Granule) error {
	var visitErr error
	gr.Root.Walk(func(g *netcdf.GroupNode) {
		if visitErr != nil {
			return
		}
		groupSet[g.Path] = struct{}{}

		for name, size := range g.Dims {
			dimPath := granule.JoinGroupPath(g.Path, name)
			if cur, ok := schema.MaxDims[dimPath]; !ok || size > cur {
				schema.MaxDims[dimPath] = size
			}
		}

		schema.GroupMetadataFor(g.Path).Merge(g.Attrs)

		for _, v := range g.Vars {
			varPath := v.Path()
			desc := granule.NewDescriptor(v.Name, v.DimOrder, v.Datatype, v.GroupPath, v.FillValue)

			if existing, ok := schema.VarInfo[varPath]; ok {
				if !existing.Equal(desc) {
					visitErr = apperr.ErrInconsistentSchema.WithMessage(
						"variable %s has conflicting descriptors across inputs: %s vs %s", varPath, existing, desc)
					return
				}
			} else {
				schema.VarInfo[varPath] = desc
			}

			schema.VarMetadataFor(varPath).Merge(v.Attrs)
		}
	})
	if visitErr != nil {
		return visitErr
	}

	schema.HistoryJSON = append(schema.HistoryJSON, history.Parse(gr.HistoryJSON)...)
	return nil
}

// mergeSchemas combines two worker-local schemas per §4.3's coordinator
// rules: max_dims takes the per-key max; var_info requires equality on
// intersecting keys and unions the rest; group_list, var_metadata, and
// group_metadata union/merge; history_json concatenates in the given
// (a, then b) order.
func mergeSchemas(a, b *granule.Schema) (*granule.Schema, error) {
	out := granule.NewSchema()

	groupSet := make(map[string]struct{}, len(a.GroupList)+len(b.GroupList))
	for _, g := range a.GroupList {
		groupSet[g] = struct{}{}
	}
	for _, g := range b.GroupList {
		groupSet[g] = struct{}{}
	}
	out.GroupList = setToSlice(groupSet)

	for k, v := range a.MaxDims {
		out.MaxDims[k] = v
	}
	for k, v := range b.MaxDims {
		if cur, ok := out.MaxDims[k]; !ok || v > cur {
			out.MaxDims[k] = v
		}
	}

	for k, v := range a.VarInfo {
		out.VarInfo[k] = v
	}
	for k, v := range b.VarInfo {
		if existing, ok := out.VarInfo[k]; ok {
			if !existing.Equal(v) {
				return nil, apperr.ErrInconsistentSchema.WithMessage(
					"variable %s has conflicting descriptors across worker partitions: %s vs %s", k, existing, v)
			}
			continue
		}
		out.VarInfo[k] = v
	}

	for k, m := range a.VarMetadata {
		out.VarMetadataFor(k).MergeAccumulated(m)
	}
	for k, m := range b.VarMetadata {
		out.VarMetadataFor(k).MergeAccumulated(m)
	}
	for k, m := range a.GroupMetadata {
		out.GroupMetadataFor(k).MergeAccumulated(m)
	}
	for k, m := range b.GroupMetadata {
		out.GroupMetadataFor(k).MergeAccumulated(m)
	}

	out.HistoryJSON = append(append([]map[string]any{}, a.HistoryJSON...), b.HistoryJSON...)
	return out, nil
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
