// Package granule defines the file-independent data model shared by the
// preprocess and merge passes: group paths, variable descriptors, and the
// emptiness filter.
package granule

import "strings"

// JoinGroupPath builds the Unix-like path for a resource (dimension or
// variable) named leaf that lives directly in the group at groupPath.
func JoinGroupPath(groupPath, leaf string) string {
	if groupPath == "/" {
		return "/" + leaf
	}
	return groupPath + "/" + leaf
}

// SplitGroupPath resolves a resource path into the group path that contains
// it and the resource's own name.
func SplitGroupPath(path string) (groupPath, name string) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/", path[idx+1:]
	}
	return path[:idx], path[idx+1:]
}

// ResolveDim searches for dimName starting at groupPath and ascending
// towards the root, returning the first matching size found in dims. This
// mirrors NetCDF4's dimension inheritance into nested groups: a dimension
// declared in an ancestor group is visible, unshadowed, in every
// descendant. Finally falls back to a bare dimName lookup at the root.
//
// Returns false if no entry in dims matches at any ancestor, which
// indicates a bug rather than bad input: every dimName referenced by a
// variable's dim_order must have been registered by the same granule's
// group walk.
func ResolveDim(dims map[string]int, groupPath, dimName string) (int, bool) {
	_, size, ok := ResolveDimPath(dims, groupPath, dimName)
	return size, ok
}

// ResolveDimPath is ResolveDim but also returns the exact key in dims that
// matched, so callers that need a stable identity for the resolved
// dimension (not just its size) don't have to re-derive it.
func ResolveDimPath(dims map[string]int, groupPath, dimName string) (path string, size int, ok bool) {
	for _, ancestor := range ancestorPaths(groupPath) {
		key := JoinGroupPath(ancestor, dimName)
		if size, ok := dims[key]; ok {
			return key, size, true
		}
	}

	if size, ok := dims[dimName]; ok {
		return dimName, size, true
	}
	return "", 0, false
}

// ancestorPaths returns groupPath and every ancestor up to and including
// root, ordered deepest-first.
func ancestorPaths(groupPath string) []string {
	segments := splitSegments(groupPath)

	ancestors := make([]string, 0, len(segments)+1)
	for i := len(segments); i > 0; i-- {
		ancestors = append(ancestors, "/"+strings.Join(segments[:i], "/"))
	}
	ancestors = append(ancestors, "/")
	return ancestors
}

// splitSegments splits a group path like "/a/b" into ["a", "b"]. The root
// path "/" splits to an empty slice.
func splitSegments(groupPath string) []string {
	trimmed := strings.Trim(groupPath, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
