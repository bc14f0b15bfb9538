package types

import "strings"

//go:generate stringer -type=BCFLAG

// BCFLAG is the role a boundary marker plays for the prism layer
type BCFLAG uint8

const (
	BC_None BCFLAG = iota
	BC_Wall
	BC_Far
	BC_Symmetry
	BC_Interface
)

var BCNameMap = map[string]BCFLAG{
	"wall":      BC_Wall,
	"far":       BC_Far,
	"farfield":  BC_Far,
	"symmetry":  BC_Symmetry,
	"sym":       BC_Symmetry,
	"interface": BC_Interface,
	"envelope":  BC_Interface,
}

func (bcf BCFLAG) String() string {
	switch bcf {
	case BC_Wall:
		return "Wall"
	case BC_Far:
		return "Farfield"
	case BC_Symmetry:
		return "Symmetry"
	case BC_Interface:
		return "Interface"
	default:
		return "None"
	}
}

// NewBCFLAG maps a marker name like "Wall_3" or "farfield" onto its role. Any
// unrecognized name is treated as a wall marker.
func NewBCFLAG(marker string) BCFLAG {
	label := strings.ToLower(strings.TrimSpace(marker))
	if i := strings.IndexAny(label, "_-"); i > 0 {
		label = label[:i]
	}
	if bcf, ok := BCNameMap[label]; ok {
		return bcf
	}
	return BC_Wall
}
