// Package netcdf serializes the hierarchical granule model in
// internal/granule to and from on-disk NetCDF files, using
// github.com/ctessum/cdf as the underlying codec. cdf implements classic
// (flat-namespace) NetCDF, so this package layers a group-path-to-flat-name
// encoding on top of it; see names.go.
package netcdf

import "github.com/podaac/concise/internal/granule"

// VarNode is one variable's full in-memory payload, read from or destined
// for a single group.
type VarNode struct {
	Name      string
	GroupPath string
	DimOrder  []string
	Shape     []int
	Datatype  granule.Datatype
	FillValue any
	Attrs     map[string]any

	// Data holds the variable's payload as a flat, row-major slice whose
	// element type matches Datatype (e.g. []float64 for DatatypeFloat64).
	// len(Data) == product(Shape).
	Data any
}

// Path returns the variable's full path.
func (v *VarNode) Path() string {
	return granule.JoinGroupPath(v.GroupPath, v.Name)
}

// Size returns the variable's total element count.
func (v *VarNode) Size() int {
	return product(v.Shape)
}

// GroupNode is one group's locally declared dimensions, variables,
// attributes, and child groups.
type GroupNode struct {
	Path     string
	Dims     map[string]int
	Attrs    map[string]any
	Vars     []*VarNode
	Children []*GroupNode
}

// NewGroupNode creates an empty group at path.
func NewGroupNode(path string) *GroupNode {
	return &GroupNode{
		Path:  path,
		Dims:  make(map[string]int),
		Attrs: make(map[string]any),
	}
}

// Child returns the direct child of g named name, creating it if absent.
func (g *GroupNode) Child(name string) *GroupNode {
	for _, c := range g.Children {
		if c.Path == granule.JoinGroupPath(g.Path, name) {
			return c
		}
	}
	child := NewGroupNode(granule.JoinGroupPath(g.Path, name))
	g.Children = append(g.Children, child)
	return child
}

// Walk visits g and every descendant, depth-first.
func (g *GroupNode) Walk(visit func(*GroupNode)) {
	visit(g)
	for _, c := range g.Children {
		c.Walk(visit)
	}
}

// Granule is the full in-memory tree read from (or built for) one file.
type Granule struct {
	Root *GroupNode

	// AllDims flattens every group's dimensions across the whole tree,
	// keyed by full dimension path, for granule.ResolveDim callers that
	// need a single flat lookup table.
	AllDims map[string]int

	// HistoryJSON is the raw JSON array text of this granule's root
	// "history_json" attribute, or "" if absent.
	HistoryJSON string
}

// groupView adapts *GroupNode to granule.Group for the emptiness filter.
type groupView struct{ g *GroupNode }

// VariableSizes implements granule.Group.
func (v groupView) VariableSizes() []int {
	sizes := make([]int, len(v.g.Vars))
	for i, vr := range v.g.Vars {
		sizes[i] = vr.Size()
	}
	return sizes
}

// ChildGroups implements granule.Group.
func (v groupView) ChildGroups() []granule.Group {
	out := make([]granule.Group, len(v.g.Children))
	for i, c := range v.g.Children {
		out[i] = groupView{c}
	}
	return out
}

// IsEmpty reports whether every variable in the granule, at every depth,
// has zero elements.
func (gr *Granule) IsEmpty() bool {
	return granule.IsEmpty(groupView{gr.Root})
}

// Variable finds the variable at varPath, searching every group in the
// tree. Returns false if this granule has no such variable, which callers
// treat as the missing-variable case rather than an error.
func (gr *Granule) Variable(varPath string) (*VarNode, bool) {
	var found *VarNode
	gr.Root.Walk(func(g *GroupNode) {
		if found != nil {
			return
		}
		for _, v := range g.Vars {
			if v.Path() == varPath {
				found = v
				return
			}
		}
	})
	return found, found != nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if len(shape) == 0 {
		return 1
	}
	return n
}
