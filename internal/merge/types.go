package merge

import (
	"reflect"

	"github.com/podaac/concise/internal/granule"
	"github.com/podaac/concise/internal/netcdf"
)

// elemType returns the Go slice element type used on disk for dt, after
// classic-NetCDF-3 widening.
func elemType(dt granule.Datatype) reflect.Type {
	switch netcdf.ClassicType(dt) {
	case granule.DatatypeInt8:
		return reflect.TypeOf(int8(0))
	case granule.DatatypeInt16:
		return reflect.TypeOf(int16(0))
	case granule.DatatypeInt32:
		return reflect.TypeOf(int32(0))
	case granule.DatatypeFloat32:
		return reflect.TypeOf(float32(0))
	case granule.DatatypeChar, granule.DatatypeString:
		return reflect.TypeOf(byte(0))
	default:
		return reflect.TypeOf(float64(0))
	}
}

// byteWidth returns the on-disk element width in bytes for dt, after
// classic-NetCDF-3 widening, used to size backpressure reservations.
func byteWidth(dt granule.Datatype) int64 {
	switch netcdf.ClassicType(dt) {
	case granule.DatatypeInt8, granule.DatatypeChar, granule.DatatypeString:
		return 1
	case granule.DatatypeInt16:
		return 2
	case granule.DatatypeInt32, granule.DatatypeFloat32:
		return 4
	default:
		return 8
	}
}

// slabTask is one (retained-input-index, var_path) unit of merge work, the
// moral equivalent of the source's (i, var_path) output-queue entry.
type slabTask struct {
	index   int
	varPath string
	data    any
	shape   []int // the resolved per-axis sizes this slab was padded to
	bytes   int64
}
