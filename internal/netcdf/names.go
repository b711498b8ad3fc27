package netcdf

import "strings"

// pathDelim joins group-path segments into a flat classic-NetCDF
// identifier. Chosen because neither input character ("_" alone, or any
// single character) reliably avoids collision with real granule attribute
// and variable names observed in Earth-science products, whereas a
// doubled underscore is vanishingly unlikely to appear inside a single
// path segment.
const pathDelim = "__"

// EncodeName flattens a "/"-rooted hierarchical path into the flat name
// used for the underlying cdf dimension or variable. A root-level
// resource ("/x") encodes to its bare leaf name ("x"); a nested one
// concatenates every segment with pathDelim ("/a/b/x" -> "a__b__x").
//
// Limitation: an original group, dimension, or variable name containing
// "__" cannot be round-tripped unambiguously. Such names are not rejected
// anywhere: DecodeName reads every "__" back as a group separator.
func EncodeName(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return ""
	}
	return strings.ReplaceAll(trimmed, "/", pathDelim)
}

// DecodeName reverses EncodeName, reconstructing the "/"-rooted path.
func DecodeName(flat string) string {
	if flat == "" {
		return "/"
	}
	return "/" + strings.ReplaceAll(flat, pathDelim, "/")
}

// groupAttrSep separates the owning group's encoded name from the
// attribute name in the global-attribute key used to store a non-root
// group's attributes (cdf has no group-scoped attribute set).
const groupAttrSep = "::"

// groupAttrKey builds the global-attribute key for attrName on the group
// at groupPath. Root-group attributes use the bare attribute name.
func groupAttrKey(groupPath, attrName string) string {
	if groupPath == "/" {
		return attrName
	}
	return EncodeName(groupPath) + groupAttrSep + attrName
}

// splitGroupAttrKey reverses groupAttrKey: given a global attribute name
// found on disk, reports the group path it belongs to and the bare
// attribute name (a plain name with no separator belongs to root).
func splitGroupAttrKey(key string) (groupPath, attrName string) {
	idx := strings.Index(key, groupAttrSep)
	if idx < 0 {
		return "/", key
	}
	return DecodeName(key[:idx]), key[idx+len(groupAttrSep):]
}
