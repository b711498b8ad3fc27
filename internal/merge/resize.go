package merge

import (
	"reflect"

	"github.com/podaac/concise/internal/apperr"
)

// FillInto sets every element of dst (a flat slice already sized to
// product(dstShape)) to fill, converted to dst's element type, or to that
// type's zero value if fill is nil or inconvertible. Used both to
// initialize padding cells before PadInto copies real data over the
// unpadded region, and standalone for the missing-variable rule (§4.5),
// where the whole slab is fill.
func FillInto(dst any, fill any) {
	dstVal := reflect.ValueOf(dst)
	elemType := dstVal.Type().Elem()

	fillElem := reflect.Zero(elemType)
	if fv, ok := convertFill(fill, elemType); ok {
		fillElem = fv
	}
	n := dstVal.Len()
	for i := 0; i < n; i++ {
		dstVal.Index(i).Set(fillElem)
	}
}

// PadInto copies src (shaped srcShape) into dst (shaped dstShape, already
// filled via FillInto), placing src's data at the low-indexed corner of
// every axis and leaving the high-side padding cells untouched — the
// resize_var rule from §4.5. dst must already be sized to
// product(dstShape). A 0-dimensional variable (len(srcShape) == 0) is
// copied verbatim: dst must equal src in that case and this is a no-op
// beyond the initial element copy, since subset_index is handled by the
// caller, not this function.
func PadInto(dst, src any, srcShape, dstShape []int) error {
	if len(srcShape) == 0 {
		reflect.ValueOf(dst).Index(0).Set(reflect.ValueOf(src).Index(0))
		return nil
	}
	if len(srcShape) != len(dstShape) {
		return apperr.ErrInvariantViolation.WithMessage(
			"resize_var shape-rank mismatch: src has %d dims, dst has %d", len(srcShape), len(dstShape))
	}
	for i := range srcShape {
		if srcShape[i] > dstShape[i] {
			return apperr.ErrInvariantViolation.WithMessage(
				"resize_var axis %d shrinks (%d > %d); max_dims must be an upper bound", i, srcShape[i], dstShape[i])
		}
	}

	srcVal := reflect.ValueOf(src)
	dstVal := reflect.ValueOf(dst)
	copyPadded(srcVal, dstVal, srcShape, dstShape)
	return nil
}

// copyPadded copies every element of src (shaped srcShape) into its
// identically-indexed position in dst (shaped dstShape), leaving every
// other dst cell at whatever FillInto already set it to.
func copyPadded(src, dst reflect.Value, srcShape, dstShape []int) {
	total := product(srcShape)
	if total == 0 {
		return
	}
	srcStrides := strides(srcShape)
	dstStrides := strides(dstShape)

	idx := make([]int, len(srcShape))
	for flat := 0; flat < total; flat++ {
		rem := flat
		for d := 0; d < len(srcShape); d++ {
			if srcStrides[d] == 0 {
				idx[d] = 0
				continue
			}
			idx[d] = rem / srcStrides[d]
			rem %= srcStrides[d]
		}
		dstFlat := 0
		for d, v := range idx {
			dstFlat += v * dstStrides[d]
		}
		dst.Index(dstFlat).Set(src.Index(flat))
	}
}

// strides returns the row-major stride of each axis in shape.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for d := len(shape) - 1; d >= 0; d-- {
		s[d] = acc
		acc *= shape[d]
	}
	return s
}

func product(shape []int) int {
	if len(shape) == 0 {
		return 1
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// convertFill attempts to convert fill to elemType, the element type of
// the slice being built. Returns ok=false when fill is nil or cannot be
// meaningfully widened/narrowed to elemType, in which case the caller
// uses the type's zero value instead.
func convertFill(fill any, elemType reflect.Type) (reflect.Value, bool) {
	if fill == nil {
		return reflect.Value{}, false
	}
	fv := reflect.ValueOf(fill)
	if fv.Type() == elemType {
		return fv, true
	}

	switch elemType.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, ok := asInt64(fill); ok {
			return reflect.ValueOf(n).Convert(elemType), true
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := asFloat64(fill); ok {
			return reflect.ValueOf(f).Convert(elemType), true
		}
	}
	return reflect.Value{}, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
