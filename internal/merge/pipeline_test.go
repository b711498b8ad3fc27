package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/podaac/concise/internal/finalize"
	"github.com/podaac/concise/internal/history"
	"github.com/podaac/concise/internal/netcdf"
	"github.com/podaac/concise/internal/preprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawDim and rawVar describe a single variable's on-disk shape in the raw,
// plain-input fixtures below. dim is the variable's full dimension path
// ("/lat", "/group1/lat", ...) or "" for a variable with no axis beyond
// what the test itself controls.
type rawDim struct {
	path string
	size int
}

type rawVar struct {
	path string
	dim  string
	data []float32
}

// writeInputGranule builds a plain input granule directly through the cdf
// package, using the same flat-namespace encoding internal/netcdf's writer
// and reader use (EncodeName), but without a subset_index axis — the shape
// a real instrument-level input actually has, as opposed to what
// netcdf.InitOutput produces for the merged output.
func writeInputGranule(t *testing.T, path string, dims []rawDim, vars []rawVar) {
	t.Helper()

	dimNames := make([]string, len(dims))
	dimLens := make([]int, len(dims))
	for i, d := range dims {
		dimNames[i] = netcdf.EncodeName(d.path)
		dimLens[i] = d.size
	}
	h := cdf.NewHeader(dimNames, dimLens)

	for _, v := range vars {
		var flatDims []string
		if v.dim != "" {
			flatDims = []string{netcdf.EncodeName(v.dim)}
		}
		h.AddVariable(netcdf.EncodeName(v.path), flatDims, []float32{0})
	}
	h.Define()
	require.Empty(t, h.Check())

	f, err := os.Create(path)
	require.NoError(t, err)
	cf, err := cdf.Create(f, h)
	require.NoError(t, err)

	for _, v := range vars {
		if len(v.data) == 0 {
			continue
		}
		w := cf.Writer(netcdf.EncodeName(v.path), []int{0}, []int{len(v.data)})
		_, err := w.Write(v.data)
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())
}

// writeEmptyGranule builds a granule declaring a dimension but no
// variables at all, which granule.IsEmpty (via netcdf.Granule.IsEmpty)
// treats as vacuously empty — the real-world shape of an S6 empty input.
func writeEmptyGranule(t *testing.T, path string) {
	t.Helper()
	h := cdf.NewHeader([]string{"lat"}, []int{1})
	h.Define()
	require.Empty(t, h.Check())

	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = cdf.Create(f, h)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// runPipeline drives the full preprocess -> finalize -> InitOutput ->
// merge -> Close -> OpenGranule chain against real on-disk files, mirroring
// cmd/concise-bench's pipeline, and returns the reopened merged output.
func runPipeline(t *testing.T, inputs []string, preprocessWorkers, mergeWorkers int, outPath string) *netcdf.Granule {
	t.Helper()
	ctx := context.Background()

	result, err := preprocess.Run(ctx, inputs, preprocessWorkers)
	require.NoError(t, err)

	entry := history.BuildEntry("2026-07-30T00:00:00Z", nil, "test", result.Retained)
	finalized, err := finalize.Build(result.Schema, entry)
	require.NoError(t, err)

	basenames := make([]string, len(result.Retained))
	for i, p := range result.Retained {
		basenames[i] = filepath.Base(p)
	}

	out, err := netcdf.InitOutput(outPath, result.Schema, basenames, finalized)
	require.NoError(t, err)

	require.NoError(t, Run(ctx, result.Schema, result.Retained, out, Config{Workers: mergeWorkers}))
	require.NoError(t, out.Close())

	gr, err := netcdf.OpenGranule(outPath)
	require.NoError(t, err)
	return gr
}

// buildFixtures writes three raw input granules to dir: gran_a.nc (small,
// declares both /sst and the nested /group1/temp), gran_b.nc (a longer
// /lat axis than gran_a, forcing resize_var padding, and no /group1/temp
// at all, exercising the missing-variable rule), and gran_empty.nc (no
// variables, dropped by the emptiness filter). Returns the three paths in
// that order.
func buildFixtures(t *testing.T, dir string) (a, b, empty string) {
	t.Helper()
	a = filepath.Join(dir, "gran_a.nc")
	b = filepath.Join(dir, "gran_b.nc")
	empty = filepath.Join(dir, "gran_empty.nc")

	writeInputGranule(t, a,
		[]rawDim{{"/lat", 2}, {"/group1/lat", 2}},
		[]rawVar{
			{"/sst", "/lat", []float32{1, 2}},
			{"/group1/temp", "/group1/lat", []float32{10, 20}},
		})
	writeInputGranule(t, b,
		[]rawDim{{"/lat", 3}},
		[]rawVar{
			{"/sst", "/lat", []float32{3, 4, 5}},
		})
	writeEmptyGranule(t, empty)

	return a, b, empty
}

func TestPipeline_EmptyInputIsDroppedAndMissingVariableIsFilled(t *testing.T) {
	dir := t.TempDir()
	a, b, empty := buildFixtures(t, dir)

	gr := runPipeline(t, []string{a, b, empty}, 1, 1, filepath.Join(dir, "out.nc"))

	subsetFiles, ok := gr.Variable("/" + netcdf.SubsetFilesVar)
	require.True(t, ok)
	assert.Equal(t, 2, subsetFiles.Shape[0], "empty input must be dropped, leaving only gran_a and gran_b")

	sst, ok := gr.Variable("/sst")
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, sst.Shape, "lat axis must widen to gran_b's longer length")
	data := sst.Data.([]float32)
	assert.Equal(t, []float32{1, 2, 0, 3, 4, 5}, data, "gran_a's row is padded with the zero fill value")

	temp, ok := gr.Variable("/group1/temp")
	require.True(t, ok)
	assert.Equal(t, []int{2, 2}, temp.Shape)
	tempData := temp.Data.([]float32)
	assert.Equal(t, []float32{10, 20, 0, 0}, tempData, "gran_b lacks /group1/temp entirely, so its row is all fill")
}

func TestPipeline_SingleAndMultiWorkerMergeProduceBitIdenticalOutput(t *testing.T) {
	dir := t.TempDir()
	a, b, empty := buildFixtures(t, dir)

	seq := runPipeline(t, []string{a, b, empty}, 1, 1, filepath.Join(dir, "seq.nc"))
	pipelined := runPipeline(t, []string{a, b, empty}, 1, 2, filepath.Join(dir, "pipelined.nc"))

	seqSST, _ := seq.Variable("/sst")
	pipelinedSST, _ := pipelined.Variable("/sst")
	assert.Equal(t, seqSST.Data, pipelinedSST.Data)

	seqTemp, _ := seq.Variable("/group1/temp")
	pipelinedTemp, _ := pipelined.Variable("/group1/temp")
	assert.Equal(t, seqTemp.Data, pipelinedTemp.Data)
}

func TestPipeline_RerunningTwiceFromScratchIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	a, b, empty := buildFixtures(t, dir)

	first := runPipeline(t, []string{a, b, empty}, 1, 1, filepath.Join(dir, "first.nc"))
	second := runPipeline(t, []string{a, b, empty}, 1, 1, filepath.Join(dir, "second.nc"))

	firstSST, _ := first.Variable("/sst")
	secondSST, _ := second.Variable("/sst")
	assert.Equal(t, firstSST.Data, secondSST.Data)

	firstFiles, _ := first.Variable("/" + netcdf.SubsetFilesVar)
	secondFiles, _ := second.Variable("/" + netcdf.SubsetFilesVar)
	assert.Equal(t, firstFiles.Data, secondFiles.Data)
}

func TestPipeline_AllEmptyInputsIsAnError(t *testing.T) {
	dir := t.TempDir()
	emptyOnly := filepath.Join(dir, "only_empty.nc")
	writeEmptyGranule(t, emptyOnly)

	ctx := context.Background()
	_, err := preprocess.Run(ctx, []string{emptyOnly}, 1)
	require.Error(t, err)
}
