package merge

import (
	"testing"

	"github.com/podaac/concise/internal/granule"
	"github.com/podaac/concise/internal/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetShapes_ResolvesAgainstMaxDims(t *testing.T) {
	schema := granule.NewSchema()
	schema.MaxDims["/lat"] = 5
	schema.MaxDims["/lon"] = 4
	schema.VarInfo["/sst"] = granule.NewDescriptor("sst", []string{"lat", "lon"}, granule.DatatypeFloat32, "/", nil)

	shapes, err := targetShapes(schema)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 4}, shapes["/sst"])
}

func TestTargetShapes_ZeroDimensionalVariableResolvesToEmptyShape(t *testing.T) {
	schema := granule.NewSchema()
	schema.VarInfo["/scalar"] = granule.NewDescriptor("scalar", nil, granule.DatatypeFloat64, "/", nil)

	shapes, err := targetShapes(schema)
	require.NoError(t, err)
	assert.Empty(t, shapes["/scalar"])
}

func TestTargetShapes_UnresolvableDimensionIsInvariantViolation(t *testing.T) {
	schema := granule.NewSchema()
	schema.VarInfo["/sst"] = granule.NewDescriptor("sst", []string{"lat"}, granule.DatatypeFloat32, "/", nil)

	_, err := targetShapes(schema)
	require.Error(t, err)
}

func TestTargetShapes_ScopedResolutionPrefersNearestAncestor(t *testing.T) {
	schema := granule.NewSchema()
	schema.MaxDims["/lat"] = 10
	schema.MaxDims["/group1/lat"] = 3
	schema.VarInfo["/group1/temp"] = granule.NewDescriptor("temp", []string{"lat"}, granule.DatatypeFloat32, "/group1", nil)

	shapes, err := targetShapes(schema)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, shapes["/group1/temp"])
}

func TestSortedVarPaths_IsDeterministic(t *testing.T) {
	schema := granule.NewSchema()
	schema.VarInfo["/b"] = granule.NewDescriptor("b", nil, granule.DatatypeInt32, "/", nil)
	schema.VarInfo["/a"] = granule.NewDescriptor("a", nil, granule.DatatypeInt32, "/", nil)
	schema.VarInfo["/c"] = granule.NewDescriptor("c", nil, granule.DatatypeInt32, "/", nil)

	assert.Equal(t, []string{"/a", "/b", "/c"}, sortedVarPaths(schema))
}

func TestBuildPooledSlab_CopiesAndPadsExistingVariable(t *testing.T) {
	schema := granule.NewSchema()
	schema.MaxDims["/x"] = 4
	schema.VarInfo["/v"] = granule.NewDescriptor("v", []string{"x"}, granule.DatatypeFloat64, "/", float64(-1))

	root := netcdf.NewGroupNode("/")
	root.Vars = append(root.Vars, &netcdf.VarNode{
		Name: "v", GroupPath: "/", DimOrder: []string{"x"}, Shape: []int{2},
		Datatype: granule.DatatypeFloat64, Data: []float64{7, 8},
	})
	gr := &netcdf.Granule{Root: root, AllDims: map[string]int{"/x": 2}}

	pool := newBufferPool()
	task, release, err := buildPooledSlab(pool, schema, "/v", []int{4}, gr, 0)
	require.NoError(t, err)
	defer release()

	assert.Equal(t, []float64{7, 8, -1, -1}, task.data)
	assert.Equal(t, 0, task.index)
	assert.Equal(t, int64(4*8), task.bytes)
}

func TestBuildPooledSlab_SynthesizesMissingVariable(t *testing.T) {
	schema := granule.NewSchema()
	schema.MaxDims["/x"] = 3
	schema.VarInfo["/v"] = granule.NewDescriptor("v", []string{"x"}, granule.DatatypeFloat32, "/", float32(-999))

	gr := &netcdf.Granule{Root: netcdf.NewGroupNode("/"), AllDims: map[string]int{}}

	pool := newBufferPool()
	task, release, err := buildPooledSlab(pool, schema, "/v", []int{3}, gr, 2)
	require.NoError(t, err)
	defer release()

	assert.Equal(t, []float32{-999, -999, -999}, task.data)
	assert.Equal(t, 2, task.index)
}
