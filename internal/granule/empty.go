package granule

// Group is the minimal read-only view of a granule's group tree needed to
// test emptiness, independent of the underlying codec. internal/netcdf
// implements this over a *cdf.File-backed granule.
type Group interface {
	// VariableSizes returns the total element count of every variable
	// directly owned by this group.
	VariableSizes() []int
	// ChildGroups returns this group's direct children.
	ChildGroups() []Group
}

// IsEmpty reports whether every variable in g, and in every descendant of
// g, has zero elements. Mirrors merge.py's is_file_empty: a depth-first
// walk that returns as soon as a nonzero-size variable is found.
//
// Note: the original Python only recurses into the first child group
// (`for child_group in parent_group.groups.values(): return
// is_file_empty(child_group)` returns unconditionally on the first
// iteration). That is almost certainly an oversight rather than an
// intentional behavior — emptiness is defined here as "every variable it
// contains (recursively)" — so this implementation visits all descendants.
func IsEmpty(g Group) bool {
	for _, size := range g.VariableSizes() {
		if size != 0 {
			return false
		}
	}
	for _, child := range g.ChildGroups() {
		if !IsEmpty(child) {
			return false
		}
	}
	return true
}
