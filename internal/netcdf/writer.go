package netcdf

import (
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/podaac/concise/internal/apperr"
	"github.com/podaac/concise/internal/granule"
)

// SubsetIndexDim is the name of the synthetic outer dimension every merged
// variable gains.
const SubsetIndexDim = "subset_index"

// SubsetFilesVar is the root variable listing every retained input's
// basename.
const SubsetFilesVar = "subset_files"

// subsetFilesStrlenDim is the auxiliary dimension backing the fixed-width
// char encoding classic NetCDF-3 requires for string-typed data (it has no
// native variable-length string type).
const subsetFilesStrlenDim = "subset_files_strlen"

// OutputWriter owns the single *cdf.File handle used to build a merged
// granule, from initialization through finalization. Exactly one
// OutputWriter exists per merge run; every write to it is serialized by
// its caller (internal/merge's single writer goroutine).
type OutputWriter struct {
	file   *os.File
	cdf    *cdf.File
	schema *granule.Schema
	n      int // number of retained inputs, i.e. len(subset_index)
}

// FinalizedAttrs carries the metadata finalizer's (§C7) output: the
// cleaned group and variable attribute sets and the serialized
// history_json array, already including this run's own provenance entry.
// Classic NetCDF-3 has no "redefine" support in this codec, so every
// attribute must be declared before Define() is called — which means the
// finalizer's output is computed first and threaded into InitOutput,
// even though the logical pipeline (preprocess -> init -> merge ->
// finalize) lists it last. The attribute values themselves are exactly
// what the spec's finalize step would have produced; only the on-disk
// write timing differs, which no invariant constrains.
type FinalizedAttrs struct {
	GroupAttrs  map[string]map[string]any // groupPath -> cleaned attrs
	VarAttrs    map[string]map[string]any // varPath -> cleaned attrs
	HistoryJSON string
}

// InitOutput creates outputPath and declares every dimension, variable,
// and attribute named by schema and finalized, per the output-initializer
// contract: one subset_index dimension of size n, the subset_files index
// variable, one dimension per (dim_path, size) in schema.MaxDims, and one
// variable per (var_path, descriptor) in schema.VarInfo, each gaining a
// leading subset_index axis.
func InitOutput(outputPath string, schema *granule.Schema, retainedBasenames []string, finalized *FinalizedAttrs) (*OutputWriter, error) {
	n := len(retainedBasenames)

	dimNames := []string{SubsetIndexDim, subsetFilesStrlenDim}
	dimLens := []int{n, maxBasenameLen(retainedBasenames)}

	dimPaths := sortedKeys(schema.MaxDims)
	flatDimOf := make(map[string]string, len(dimPaths))
	for _, dimPath := range dimPaths {
		flat := EncodeName(dimPath)
		flatDimOf[dimPath] = flat
		dimNames = append(dimNames, flat)
		dimLens = append(dimLens, schema.MaxDims[dimPath])
	}

	h := cdf.NewHeader(dimNames, dimLens)

	h.AddVariable(SubsetFilesVar, []string{SubsetIndexDim, subsetFilesStrlenDim}, []byte{0})
	h.AddAttribute(SubsetFilesVar, "long_name", "List of subsetted files used to create this merge product.")

	varPaths := sortedKeys(schema.VarInfo)
	for _, varPath := range varPaths {
		desc := schema.VarInfo[varPath]
		flatVar := EncodeName(varPath)

		flatDims := make([]string, 0, len(desc.DimOrder())+1)
		flatDims = append(flatDims, SubsetIndexDim)
		for _, d := range desc.DimOrder() {
			dimPath, _, ok := granule.ResolveDimPath(schema.MaxDims, desc.GroupPath(), d)
			if !ok {
				return nil, apperr.ErrInvariantViolation.WithMessage(
					"resolve_dim found no match for dimension %q of variable %s", d, varPath)
			}
			flatDims = append(flatDims, flatDimOf[dimPath])
		}

		h.AddVariable(flatVar, flatDims, sampleFor(desc.Datatype()))
		if fv := desc.FillValue(); fv != nil {
			h.AddAttribute(flatVar, fillValueAttrName, fv)
		}
		for name, val := range finalized.VarAttrs[varPath] {
			h.AddAttribute(flatVar, name, val)
		}
	}

	for groupPath, attrs := range finalized.GroupAttrs {
		for name, val := range attrs {
			h.AddAttribute("", groupAttrKey(groupPath, name), val)
		}
	}
	h.AddAttribute("", historyAttrName, finalized.HistoryJSON)

	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid netcdf header for %s: %v", outputPath, errs)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file %s: %w", outputPath, err)
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("initialize netcdf structure for %s: %w", outputPath, err)
	}

	w := &OutputWriter{file: f, cdf: cf, schema: schema, n: n}
	if err := w.writeSubsetFiles(retainedBasenames); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *OutputWriter) writeSubsetFiles(basenames []string) error {
	strlen := maxBasenameLen(basenames)
	buf := make([]byte, len(basenames)*strlen)
	for i, name := range basenames {
		copy(buf[i*strlen:(i+1)*strlen], name)
	}
	writer := w.cdf.Writer(SubsetFilesVar, []int{0, 0}, []int{len(basenames), strlen})
	_, err := writer.Write(buf)
	if err != nil {
		return fmt.Errorf("write subset_files: %w", err)
	}
	return nil
}

// WriteSlab writes a fully padded slab (see internal/merge's resize_var)
// into output[varPath][index, ...]. data must already be shaped to match
// the descriptor's resolved dimensions.
func (w *OutputWriter) WriteSlab(varPath string, index int, data any, shape []int) error {
	flatVar := EncodeName(varPath)
	start := make([]int, len(shape)+1)
	count := make([]int, len(shape)+1)
	start[0] = index
	count[0] = 1
	for i, s := range shape {
		count[i+1] = s
	}
	writer := w.cdf.Writer(flatVar, start, count)
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("write variable %s at index %d: %w", varPath, index, err)
	}
	return nil
}

// N returns the number of retained inputs (the length of subset_index).
func (w *OutputWriter) N() int { return w.n }

// Close flushes and closes the underlying file.
func (w *OutputWriter) Close() error {
	return w.file.Close()
}

func maxBasenameLen(names []string) int {
	max := 1
	for _, n := range names {
		if len(n) > max {
			max = len(n)
		}
	}
	return max
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
