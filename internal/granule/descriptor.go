package granule

import (
	"fmt"
	"math"
	"reflect"
)

// Datatype enumerates the NetCDF datatypes this merger understands. It
// stands in for a dtype in languages with native array typing.
type Datatype int

// Supported datatypes, ordered by width within each family.
const (
	DatatypeUnknown Datatype = iota
	DatatypeInt8
	DatatypeUint8
	DatatypeInt16
	DatatypeUint16
	DatatypeInt32
	DatatypeUint32
	DatatypeInt64
	DatatypeUint64
	DatatypeFloat32
	DatatypeFloat64
	DatatypeString
	DatatypeChar
)

// String implements fmt.Stringer.
func (d Datatype) String() string {
	switch d {
	case DatatypeInt8:
		return "int8"
	case DatatypeUint8:
		return "uint8"
	case DatatypeInt16:
		return "int16"
	case DatatypeUint16:
		return "uint16"
	case DatatypeInt32:
		return "int32"
	case DatatypeUint32:
		return "uint32"
	case DatatypeInt64:
		return "int64"
	case DatatypeUint64:
		return "uint64"
	case DatatypeFloat32:
		return "float32"
	case DatatypeFloat64:
		return "float64"
	case DatatypeString:
		return "string"
	case DatatypeChar:
		return "char"
	default:
		return "unknown"
	}
}

// Descriptor is the immutable 5-tuple identifying a variable's shape and
// type, used to detect schema inconsistency across granules. Mirrors
// podaac/merger/variable_info.py's VariableInfo.
//
// Equality treats NaN-equal-NaN as equal for scalar fill values and
// compares array-valued fills elementwise.
type Descriptor struct {
	name      string
	dimOrder  []string
	datatype  Datatype
	groupPath string
	fillValue any // nil, a scalar (int64/float64/string), or a slice of one of those

	frozen bool
}

// NewDescriptor constructs an immutable Descriptor. dimOrder is copied
// defensively so later mutation of the caller's slice cannot leak through.
func NewDescriptor(name string, dimOrder []string, datatype Datatype, groupPath string, fillValue any) *Descriptor {
	owned := make([]string, len(dimOrder))
	copy(owned, dimOrder)

	return &Descriptor{
		name:      name,
		dimOrder:  owned,
		datatype:  datatype,
		groupPath: groupPath,
		fillValue: fillValue,
		frozen:    true,
	}
}

// Name returns the variable's name within its group.
func (d *Descriptor) Name() string { return d.name }

// DimOrder returns the ordered dimension names. The returned slice is a
// copy; the descriptor itself never exposes its backing array.
func (d *Descriptor) DimOrder() []string {
	out := make([]string, len(d.dimOrder))
	copy(out, d.dimOrder)
	return out
}

// Datatype returns the variable's datatype.
func (d *Descriptor) Datatype() Datatype { return d.datatype }

// GroupPath returns the Unix-like path of the group containing the variable.
func (d *Descriptor) GroupPath() string { return d.groupPath }

// FillValue returns the fill value, or nil if none was set.
func (d *Descriptor) FillValue() any { return d.fillValue }

// Path returns the variable's full path (GroupPath + "/" + Name).
func (d *Descriptor) Path() string {
	return JoinGroupPath(d.groupPath, d.name)
}

// Equal reports whether two descriptors describe structurally identical
// variables under the equality rule (all five fields equal,
// NaN-equal-NaN, elementwise array comparison).
func (d *Descriptor) Equal(other *Descriptor) bool {
	if other == nil {
		return false
	}
	if d.name != other.name || d.datatype != other.datatype || d.groupPath != other.groupPath {
		return false
	}
	if len(d.dimOrder) != len(other.dimOrder) {
		return false
	}
	for i := range d.dimOrder {
		if d.dimOrder[i] != other.dimOrder[i] {
			return false
		}
	}
	return fillValueEqual(d.fillValue, other.fillValue)
}

// fillValueEqual implements the NaN-aware, array-aware fill comparison.
func fillValueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	af, aIsFloat := asFloat64(a)
	bf, bIsFloat := asFloat64(b)
	if aIsFloat && bIsFloat {
		if math.IsNaN(af) && math.IsNaN(bf) {
			return true
		}
		return af == bf
	}

	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if av.Kind() == reflect.Slice && bv.Kind() == reflect.Slice {
		if av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !fillValueEqual(av.Index(i).Interface(), bv.Index(i).Interface()) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// String implements fmt.Stringer for debugging, mirroring VariableInfo.__str__.
func (d *Descriptor) String() string {
	return fmt.Sprintf("name:%s dim_order:%v fill_value:%v datatype:%s group_path:%s",
		d.name, d.dimOrder, d.fillValue, d.datatype, d.groupPath)
}
