package merge

import (
	"testing"

	"github.com/podaac/concise/internal/granule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPool_GetReturnsZeroedRightSizedSlice(t *testing.T) {
	pool := newBufferPool()

	data, release := pool.get(granule.DatatypeFloat64, 5)
	slice, ok := data.([]float64)
	require.True(t, ok)
	assert.Len(t, slice, 5)
	for _, v := range slice {
		assert.Equal(t, float64(0), v)
	}
	release()
}

func TestBufferPool_ReusedSliceIsResizedAndCleared(t *testing.T) {
	pool := newBufferPool()

	first, release := pool.get(granule.DatatypeInt32, 4)
	s := first.([]int32)
	for i := range s {
		s[i] = int32(i + 1)
	}
	release()

	second, release2 := pool.get(granule.DatatypeInt32, 4)
	defer release2()
	assert.Equal(t, []int32{0, 0, 0, 0}, second)
}

func TestBufferPool_EveryOnDiskTypeIsReachable(t *testing.T) {
	pool := newBufferPool()

	cases := []struct {
		dt   granule.Datatype
		want any
	}{
		{granule.DatatypeInt8, []int8{0, 0}},
		{granule.DatatypeUint8, []int16{0, 0}},    // widened per classic NetCDF-3 rules
		{granule.DatatypeInt16, []int16{0, 0}},
		{granule.DatatypeUint16, []int32{0, 0}},
		{granule.DatatypeInt32, []int32{0, 0}},
		{granule.DatatypeFloat32, []float32{0, 0}},
		{granule.DatatypeFloat64, []float64{0, 0}},
		{granule.DatatypeInt64, []float64{0, 0}},
		{granule.DatatypeChar, []byte{0, 0}},
		{granule.DatatypeString, []byte{0, 0}},
	}
	for _, c := range cases {
		data, release := pool.get(c.dt, 2)
		assert.Equal(t, c.want, data, "datatype %s", c.dt)
		release()
	}
}

func TestByteWidth(t *testing.T) {
	assert.Equal(t, int64(1), byteWidth(granule.DatatypeInt8))
	assert.Equal(t, int64(2), byteWidth(granule.DatatypeInt16))
	assert.Equal(t, int64(4), byteWidth(granule.DatatypeFloat32))
	assert.Equal(t, int64(8), byteWidth(granule.DatatypeFloat64))
	assert.Equal(t, int64(8), byteWidth(granule.DatatypeInt64))
}
