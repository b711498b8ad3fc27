package granule

import "reflect"

// inconsistentType is a distinguished, unexported type whose sole value is
// exported as Inconsistent below. Using a dedicated type instead of the
// source's Boolean-false convention (preprocess_worker.py's
// `merged_attrs[attr_name] = False`) means a genuinely boolean-false
// attribute is never confused with the "mismatched across granules"
// marker, avoiding that ambiguity entirely.
type inconsistentType struct{}

// Inconsistent marks an attribute value that differed across granules and
// must be dropped by the metadata finalizer rather than written to the
// merged output.
var Inconsistent = inconsistentType{}

// AttrValue holds one attribute as accumulated during preprocessing: either
// a concrete value or the Inconsistent sentinel.
type AttrValue struct {
	Value        any
	Inconsistent bool
}

// AttrEqual performs an elementwise, type-strict comparison: array-shaped values compare elementwise; scalars compare
// by identical dynamic type and value; values of mismatching type are
// always unequal, even if they would compare equal after coercion.
func AttrEqual(a, b any) bool {
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)

	if av.Kind() == reflect.Slice || bv.Kind() == reflect.Slice {
		if av.Kind() != bv.Kind() {
			return false
		}
		if av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !AttrEqual(av.Index(i).Interface(), bv.Index(i).Interface()) {
				return false
			}
		}
		return true
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// AttrMap accumulates attribute values for one group or variable while
// visiting granules, marking entries Inconsistent on first disagreement.
type AttrMap map[string]AttrValue

// Merge folds one granule's attribute set into m, applying the
// first-value-wins / mark-inconsistent-on-mismatch rule from
// preprocess_worker.py's get_metadata.
func (m AttrMap) Merge(attrs map[string]any) {
	for name, val := range attrs {
		existing, seen := m[name]
		switch {
		case !seen:
			m[name] = AttrValue{Value: val}
		case existing.Inconsistent:
			// already marked; nothing can un-mark it
		case !AttrEqual(existing.Value, val):
			m[name] = AttrValue{Inconsistent: true}
		}
	}
}

// MergeAccumulated folds another accumulated AttrMap into m (used when
// combining per-worker results in multi-worker preprocessing), applying the
// same first-seen / mismatch-marks-inconsistent rule as Merge.
func (m AttrMap) MergeAccumulated(other AttrMap) {
	for name, val := range other {
		existing, seen := m[name]
		switch {
		case !seen:
			m[name] = val
		case existing.Inconsistent:
		case val.Inconsistent:
			m[name] = AttrValue{Inconsistent: true}
		case !AttrEqual(existing.Value, val.Value):
			m[name] = AttrValue{Inconsistent: true}
		}
	}
}

// Clean applies clean_metadata's rules and returns a plain name->value map
// ready to be written to the output file: Inconsistent entries are
// dropped, _FillValue is dropped (fill values are set at variable-creation
// time, not as a post-hoc attribute), and any "/" in an attribute name is
// escaped to "_" to satisfy the NetCDF attribute-name grammar.
func (m AttrMap) Clean() map[string]any {
	out := make(map[string]any, len(m))
	for name, val := range m {
		if val.Inconsistent {
			continue
		}
		if name == "_FillValue" {
			continue
		}
		out[escapeAttrName(name)] = val.Value
	}
	return out
}

func escapeAttrName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '/' {
			out = append(out, '_')
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
