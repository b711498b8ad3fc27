package netcdf

import (
	"fmt"
	"os"
	"reflect"

	"github.com/ctessum/cdf"
	"github.com/podaac/concise/internal/granule"
)

// OpenGranule reads path into an in-memory Granule tree.
//
// Group paths, dimension paths, and variable paths are recovered from the
// flat cdf namespace via DecodeName; this only round-trips files produced
// by this package's own writer (see names.go and DESIGN.md — this package
// does not attempt interoperability with arbitrary externally produced
// NetCDF4/HDF5 files).
func OpenGranule(path string) (*Granule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open granule %s: %w", path, err)
	}
	defer f.Close()

	cf, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("read netcdf header for %s: %w", path, err)
	}
	h := cf.Header

	gr := &Granule{
		Root:    NewGroupNode("/"),
		AllDims: make(map[string]int),
	}

	for _, flatDim := range h.Dimensions() {
		dimPath := DecodeName(flatDim)
		groupPath, leaf := granule.SplitGroupPath(dimPath)
		node := groupAt(gr.Root, groupPath)
		size := h.Lengths(flatDim)
		node.Dims[leaf] = size
		gr.AllDims[dimPath] = size
	}

	for _, attrName := range h.Attributes("") {
		groupPath, leaf := splitGroupAttrKey(attrName)
		node := groupAt(gr.Root, groupPath)
		val := h.GetAttribute("", attrName)
		if groupPath == "/" && leaf == historyAttrName {
			if s, ok := val.(string); ok {
				gr.HistoryJSON = s
				continue
			}
		}
		node.Attrs[leaf] = val
	}

	for _, flatVar := range h.Variables() {
		varPath := DecodeName(flatVar)
		groupPath, leaf := granule.SplitGroupPath(varPath)
		node := groupAt(gr.Root, groupPath)

		flatDimOrder := h.VarDims(flatVar)
		dimOrder := make([]string, len(flatDimOrder))
		shape := make([]int, len(flatDimOrder))
		for i, fd := range flatDimOrder {
			dimPath := DecodeName(fd)
			_, dimLeaf := granule.SplitGroupPath(dimPath)
			dimOrder[i] = dimLeaf
			shape[i] = h.Lengths(fd)
		}

		dt := datatypeOf(h.ZeroValue(flatVar))

		n := product(shape)
		dst := newSlice(dt, n)
		start := make([]int, len(shape))
		r := cf.Reader(flatVar, start, shape)
		if _, err := r.Read(dst); err != nil {
			return nil, fmt.Errorf("read variable %s from %s: %w", varPath, path, err)
		}

		attrs := make(map[string]any)
		var fill any
		for _, attrName := range h.Attributes(flatVar) {
			val := h.GetAttribute(flatVar, attrName)
			if attrName == fillValueAttrName {
				fill = val
				continue
			}
			attrs[attrName] = val
		}

		node.Vars = append(node.Vars, &VarNode{
			Name:      leaf,
			GroupPath: groupPath,
			DimOrder:  dimOrder,
			Shape:     shape,
			Datatype:  dt,
			FillValue: fill,
			Attrs:     attrs,
			Data:      dst,
		})
	}

	return gr, nil
}

const (
	historyAttrName   = "history_json"
	fillValueAttrName = "_FillValue"
)

// groupAt finds or creates the GroupNode at path, creating any missing
// ancestors along the way.
func groupAt(root *GroupNode, path string) *GroupNode {
	if path == "/" {
		return root
	}
	segments := splitPath(path)
	node := root
	for _, seg := range segments {
		node = node.Child(seg)
	}
	return node
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			segs = append(segs, path[start+1:i])
			start = i
		}
	}
	segs = append(segs, path[start+1:])
	return segs
}

// datatypeOf maps a cdf-returned zero-value sample back to a
// granule.Datatype, the reverse of sampleFor.
func datatypeOf(sample any) granule.Datatype {
	switch reflect.TypeOf(sample).Elem().Kind() {
	case reflect.Int8:
		return granule.DatatypeInt8
	case reflect.Int16:
		return granule.DatatypeInt16
	case reflect.Int32:
		return granule.DatatypeInt32
	case reflect.Float32:
		return granule.DatatypeFloat32
	case reflect.Float64:
		return granule.DatatypeFloat64
	case reflect.Uint8:
		return granule.DatatypeChar
	default:
		return granule.DatatypeFloat64
	}
}
