package utils

// ElementType represents the linear element types a prism layer mesh is built from

type ElementType int

const (
	Unknown ElementType = iota
	// 1D elements
	Line
	// 2D elements
	Triangle
	Quad
	// 3D elements
	Tet
	Hex
	Prism
	Pyramid
)

// String representation of element types
func (e ElementType) String() string {
	names := []string{
		"Unknown",
		"Line",
		"Triangle", "Quad",
		"Tet", "Hex", "Prism", "Pyramid",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return "Invalid"
}

// GetDimension returns the spatial dimension of the element
func (e ElementType) GetDimension() int {
	switch e {
	case Line:
		return 1
	case Triangle, Quad:
		return 2
	case Tet, Hex, Prism, Pyramid:
		return 3
	default:
		return -1
	}
}

// GetNumNodes returns the number of nodes for each element type
func (e ElementType) GetNumNodes() int {
	switch e {
	case Line:
		return 2
	case Triangle:
		return 3
	case Quad:
		return 4
	case Tet:
		return 4
	case Hex:
		return 8
	case Prism:
		return 6
	case Pyramid:
		return 5
	default:
		return 0
	}
}

// SU2Type returns the SU2/VTK cell identifier
func (e ElementType) SU2Type() int {
	switch e {
	case Line:
		return 3
	case Triangle:
		return 5
	case Quad:
		return 9
	case Tet:
		return 10
	case Hex:
		return 12
	case Prism:
		return 13
	case Pyramid:
		return 14
	default:
		return -1
	}
}

// ElementTypeFromSU2 maps an SU2/VTK cell identifier back to an ElementType
func ElementTypeFromSU2(id int) ElementType {
	for e := Line; e <= Pyramid; e++ {
		if e.SU2Type() == id {
			return e
		}
	}
	return Unknown
}
