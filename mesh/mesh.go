package mesh

import (
	"path/filepath"
	"strings"

	"github.com/notargets/prismlayer/utils"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Section is a named block of elements of one type, either a volume region or
// a boundary marker
type Section struct {
	Name string
	Type utils.ElementType
	Tag  int
	Conn [][]int
}

func (s *Section) IsBoundary() bool { return s.Type.GetDimension() < 3 }

// NodeField is a per vertex diagnostic quantity with NComp components
type NodeField struct {
	Name  string
	NComp int
	Data  []float64
}

// Mesh is an unstructured mesh stored as vertex coordinates plus element sections
type Mesh struct {
	Vertices   [][]float64 // Vertex coordinates [nvertices][3]
	Sections   []*Section
	NodeFields []NodeField
}

func NewMesh() *Mesh {
	return &Mesh{}
}

// ReadSurfaceFile reads a wall or farfield surface based on extension
func ReadSurfaceFile(filename string) (*Mesh, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".msh":
		return ReadGmsh22(filename)
	case ".su2":
		return ReadSU2(filename)
	default:
		return nil, errors.Errorf("unsupported mesh format: %s", ext)
	}
}

// AddVertices appends points and returns the index of the first one
func (m *Mesh) AddVertices(pts []r3.Vec) (offset int) {
	offset = len(m.Vertices)
	for _, p := range pts {
		m.Vertices = append(m.Vertices, []float64{p.X, p.Y, p.Z})
	}
	return
}

func (m *Mesh) Point(i int) r3.Vec {
	v := m.Vertices[i]
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func (m *Mesh) Points() (pts []r3.Vec) {
	pts = make([]r3.Vec, len(m.Vertices))
	for i := range pts {
		pts[i] = m.Point(i)
	}
	return
}

func (m *Mesh) AddSection(name string, etype utils.ElementType, tag int, conn [][]int) (s *Section) {
	s = &Section{Name: name, Type: etype, Tag: tag, Conn: conn}
	m.Sections = append(m.Sections, s)
	return
}

// Section returns the section called name, nil when there is none
func (m *Mesh) Section(name string) *Section {
	s, _ := lo.Find(m.Sections, func(s *Section) bool { return s.Name == name })
	return s
}

func (m *Mesh) AddNodeField(name string, nComp int, data []float64) {
	m.NodeFields = append(m.NodeFields, NodeField{Name: name, NComp: nComp, Data: data})
}

// CountType is the number of elements of etype over all sections
func (m *Mesh) CountType(etype utils.ElementType) (n int) {
	return lo.SumBy(m.Sections, func(s *Section) int {
		if s.Type != etype {
			return 0
		}
		return len(s.Conn)
	})
}

func (m *Mesh) VolumeSections() []*Section {
	return lo.Filter(m.Sections, func(s *Section, _ int) bool { return !s.IsBoundary() })
}

func (m *Mesh) BoundarySections() []*Section {
	return lo.Filter(m.Sections, func(s *Section, _ int) bool { return s.IsBoundary() })
}

/*
Triangles extracts a compact triangulated surface from the triangle sections,
each face carrying the tag of its section. Tagged sections (markers, physical
groups) take precedence over untagged triangle elements so that SU2 files with
a triangle NELEM block and markers over it are read once; untagged triangles
alone get tag 1. Vertices no triangle uses are dropped.
*/
func (m *Mesh) Triangles() (pts []r3.Vec, tris [][3]int, tags []int, err error) {
	sections := lo.Filter(m.Sections, func(s *Section, _ int) bool { return s.Type == utils.Triangle && s.Tag > 0 })
	if len(sections) == 0 {
		sections = lo.Filter(m.Sections, func(s *Section, _ int) bool { return s.Type == utils.Triangle })
	}
	if len(sections) == 0 {
		err = errors.New("mesh has no triangle sections")
		return
	}
	compact := make(map[int]int)
	for _, s := range sections {
		for _, c := range s.Conn {
			var tri [3]int
			for i, v := range c[:3] {
				if v < 0 || v >= len(m.Vertices) {
					err = errors.Errorf("section %s: node index %d out of range [0,%d)", s.Name, v, len(m.Vertices))
					return
				}
				id, ok := compact[v]
				if !ok {
					id = len(pts)
					compact[v] = id
					pts = append(pts, m.Point(v))
				}
				tri[i] = id
			}
			tris = append(tris, tri)
			tags = append(tags, max(s.Tag, 1))
		}
	}
	return
}
