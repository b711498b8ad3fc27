package netcdf

import "github.com/podaac/concise/internal/granule"

// ClassicType maps dt to the narrowest classic-NetCDF-3 type that can
// hold it. Classic NetCDF-3 (the format github.com/ctessum/cdf
// implements) supports only byte, char, short, int, float, and double —
// no unsigned integers and no native 64-bit integer — so datatypes
// outside that set are widened. This is a property of the underlying
// codec, not a design choice, and is recorded in DESIGN.md. Exported so
// internal/merge can size its buffer pool using the same on-disk typing
// this package uses for reading and writing.
func ClassicType(dt granule.Datatype) granule.Datatype {
	switch dt {
	case granule.DatatypeUint8:
		return granule.DatatypeInt16
	case granule.DatatypeUint16:
		return granule.DatatypeInt32
	case granule.DatatypeInt64, granule.DatatypeUint64, granule.DatatypeUint32:
		return granule.DatatypeFloat64
	default:
		return dt
	}
}

// sampleFor returns the zero-length-but-typed sample cdf.Header.AddVariable
// needs to infer a variable's on-disk element type via reflection.
func sampleFor(dt granule.Datatype) any {
	switch ClassicType(dt) {
	case granule.DatatypeInt8:
		return []int8{0}
	case granule.DatatypeInt16:
		return []int16{0}
	case granule.DatatypeInt32:
		return []int32{0}
	case granule.DatatypeFloat32:
		return []float32{0}
	case granule.DatatypeFloat64:
		return []float64{0}
	case granule.DatatypeChar, granule.DatatypeString:
		return []byte{0}
	default:
		return []float64{0}
	}
}

// newSlice allocates a zeroed flat slice of n elements of dt's classic
// on-disk element type, for use as a read or resize destination buffer.
func newSlice(dt granule.Datatype, n int) any {
	switch ClassicType(dt) {
	case granule.DatatypeInt8:
		return make([]int8, n)
	case granule.DatatypeInt16:
		return make([]int16, n)
	case granule.DatatypeInt32:
		return make([]int32, n)
	case granule.DatatypeFloat32:
		return make([]float32, n)
	case granule.DatatypeFloat64:
		return make([]float64, n)
	case granule.DatatypeChar, granule.DatatypeString:
		return make([]byte, n)
	default:
		return make([]float64, n)
	}
}
