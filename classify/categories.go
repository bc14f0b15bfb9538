package classify

import "strings"

// EdgeClass is the bit set describing the dihedral of a wall edge, the empty set is Flat
type EdgeClass uint8

const (
	EdgeRidge EdgeClass = 1 << iota
	EdgeConvex
	EdgeConcave
	EdgeSharp
)

const EdgeFlat EdgeClass = 0

func (e EdgeClass) IsRidge() bool   { return e&EdgeRidge != 0 }
func (e EdgeClass) IsConvex() bool  { return e&EdgeConvex != 0 }
func (e EdgeClass) IsConcave() bool { return e&EdgeConcave != 0 }
func (e EdgeClass) IsSharp() bool   { return e&EdgeSharp != 0 }

func (e EdgeClass) String() string {
	if e == EdgeFlat {
		return "Flat"
	}
	var parts []string
	for _, b := range []struct {
		bit  EdgeClass
		name string
	}{{EdgeRidge, "Ridge"}, {EdgeConvex, "Convex"}, {EdgeConcave, "Concave"}, {EdgeSharp, "Sharp"}} {
		if e&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	return strings.Join(parts, "|")
}

// VertexCategory is one of the named composites below, built from feature bits
type VertexCategory uint8

const (
	featRidge VertexCategory = 1 << iota
	featConvex
	featConcave
	featCorner
	featConical
	featSharp
)

const (
	Flat                    VertexCategory = 0
	ConvexEdge                             = featRidge | featConvex
	Wedge                                  = featRidge | featConvex | featSharp
	Trench                                 = featRidge | featConcave
	ConvexCorner                           = featCorner | featConvex
	ConcaveCorner                          = featCorner | featConcave
	SaddleCorner                           = featCorner | featConvex | featConcave
	LeadingEdgeIntersection                = featCorner | featConvex | featConcave | featSharp
	ConeTip                                = featConical | featConvex
	ConeDipp                               = featConical | featConcave
)

// AllCategories lists every category a vertex may take
var AllCategories = []VertexCategory{
	Flat, ConvexEdge, Wedge, Trench, ConvexCorner, ConcaveCorner,
	SaddleCorner, LeadingEdgeIntersection, ConeTip, ConeDipp,
}

func (c VertexCategory) IsFlat() bool           { return c == Flat }
func (c VertexCategory) HasRidge() bool         { return c&featRidge != 0 }
func (c VertexCategory) IsCorner() bool         { return c&featCorner != 0 }
func (c VertexCategory) IsConical() bool        { return c&featConical != 0 }
func (c VertexCategory) IsSharp() bool          { return c&featSharp != 0 }
func (c VertexCategory) IsConvexFeature() bool  { return c&featConvex != 0 }
func (c VertexCategory) IsConcaveFeature() bool { return c&featConcave != 0 }

// SmoothsFreely reports whether the vertex takes part in unrestricted smoothing
func (c VertexCategory) SmoothsFreely() bool { return c == Flat || c.IsConical() }

func (c VertexCategory) String() string {
	switch c {
	case Flat:
		return "Flat"
	case ConvexEdge:
		return "ConvexEdge"
	case Wedge:
		return "Wedge"
	case Trench:
		return "Trench"
	case ConvexCorner:
		return "ConvexCorner"
	case ConcaveCorner:
		return "ConcaveCorner"
	case SaddleCorner:
		return "SaddleCorner"
	case LeadingEdgeIntersection:
		return "LeadingEdgeIntersection"
	case ConeTip:
		return "ConeTip"
	case ConeDipp:
		return "ConeDipp"
	}
	return "Invalid"
}

// Index is the position of the category in AllCategories, used as a plot field value
func (c VertexCategory) Index() int {
	for i, cat := range AllCategories {
		if cat == c {
			return i
		}
	}
	return -1
}
