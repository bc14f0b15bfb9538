package wall

import (
	"fmt"

	"github.com/notargets/prismlayer/mesh"
	"github.com/notargets/prismlayer/types"
	"github.com/notargets/prismlayer/utils"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// FromMesh builds a wall from the triangle sections of a surface mesh, one
// face tag per section. Sections named for a farfield, symmetry or interface
// boundary are left out.
func FromMesh(m *mesh.Mesh, sym Symmetry) (w *WallMesh, err error) {
	walls := &mesh.Mesh{
		Vertices: m.Vertices,
		Sections: lo.Filter(m.Sections, func(s *mesh.Section, _ int) bool {
			return types.NewBCFLAG(s.Name) == types.BC_Wall
		}),
	}
	pts, tris, tags, err := walls.Triangles()
	if err != nil {
		return nil, err
	}
	faces := make([]Face, len(tris))
	for i, t := range tris {
		faces[i] = Face{Verts: t, Tag: tags[i]}
	}
	if w, err = NewWallMesh(pts, faces, sym); err != nil {
		return nil, errors.Wrap(err, "wall surface")
	}
	return
}

// Mesh is the wall as a surface mesh with one Wall_<tag> section per tag
func (w *WallMesh) Mesh() (m *mesh.Mesh) {
	m = mesh.NewMesh()
	m.AddVertices(w.Vertices)
	byTag := lo.GroupBy(w.Faces, func(f Face) int { return f.Tag })
	for _, tag := range w.Tags() {
		m.AddSection(fmt.Sprintf("Wall_%d", tag), utils.Triangle, tag, lo.Map(byTag[tag], func(f Face, _ int) []int {
			return []int{f.Verts[0], f.Verts[1], f.Verts[2]}
		}))
	}
	return
}

// RankTags maps marker k, numbered from 1 in file order, to the k-th smallest
// wall tag. Formats that number markers by position lose the tag values of a
// surface written with one section per tag. Markers beyond the tag count are
// returned unchanged.
func (w *WallMesh) RankTags(markers []int) (tags []int) {
	wt := w.Tags()
	return lo.Map(markers, func(m int, _ int) int {
		if m >= 1 && m <= len(wt) {
			return wt[m-1]
		}
		return m
	})
}
