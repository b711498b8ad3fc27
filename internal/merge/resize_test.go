package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadInto_HighSideOnly(t *testing.T) {
	// src is [3,4] -> dst [5,4]: rows 0-2 verbatim, rows 3-4 fill.
	src := make([]float64, 12)
	for i := range src {
		src[i] = float64(i + 1)
	}
	dst := make([]float64, 20)
	FillInto(dst, float64(-999))

	require.NoError(t, PadInto(dst, src, []int{3, 4}, []int{5, 4}))

	assert.Equal(t, src, dst[:12])
	for i := 12; i < 20; i++ {
		assert.Equal(t, float64(-999), dst[i])
	}
}

func TestPadInto_ExactShapeIsVerbatimCopy(t *testing.T) {
	src := []int32{1, 2, 3, 4}
	dst := make([]int32, 4)
	FillInto(dst, int32(0))
	require.NoError(t, PadInto(dst, src, []int{2, 2}, []int{2, 2}))
	assert.Equal(t, src, dst)
}

func TestPadInto_ZeroDimensionalPassesThroughSingleValue(t *testing.T) {
	src := []float32{42}
	dst := make([]float32, 1)
	FillInto(dst, float32(0))
	require.NoError(t, PadInto(dst, src, nil, nil))
	assert.Equal(t, []float32{42}, dst)
}

func TestPadInto_RankMismatchIsInvariantViolation(t *testing.T) {
	src := []float64{1, 2}
	dst := make([]float64, 4)
	err := PadInto(dst, src, []int{2}, []int{2, 2})
	require.Error(t, err)
}

func TestPadInto_ShrinkingAxisIsInvariantViolation(t *testing.T) {
	src := make([]float64, 10)
	dst := make([]float64, 4)
	err := PadInto(dst, src, []int{5, 2}, []int{2, 2})
	require.Error(t, err)
}

func TestFillInto_NilFillUsesZeroValue(t *testing.T) {
	dst := make([]float64, 3)
	dst[0], dst[1], dst[2] = 1, 2, 3
	FillInto(dst, nil)
	assert.Equal(t, []float64{0, 0, 0}, dst)
}

func TestFillInto_ConvertsNarrowerNumericFillValue(t *testing.T) {
	dst := make([]float32, 2)
	// Fill values read back from attributes commonly arrive as float64
	// even when the variable itself is float32.
	FillInto(dst, float64(-9999))
	assert.Equal(t, []float32{-9999, -9999}, dst)
}

func TestStrides(t *testing.T) {
	assert.Equal(t, []int{4, 1}, strides([]int{3, 4}))
	assert.Equal(t, []int{12, 4, 1}, strides([]int{2, 3, 4}))
}

func TestProduct(t *testing.T) {
	assert.Equal(t, 1, product(nil))
	assert.Equal(t, 12, product([]int{3, 4}))
	assert.Equal(t, 0, product([]int{0, 4}))
}
