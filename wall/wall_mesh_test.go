package wall

import (
	"bytes"
	"math"
	"testing"

	"github.com/notargets/prismlayer/mesh"
	"github.com/notargets/prismlayer/utils"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func tetrahedron() (verts []r3.Vec, faces []Face) {
	verts = []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}
	faces = []Face{
		{Verts: [3]int{0, 2, 1}, Tag: 1},
		{Verts: [3]int{0, 1, 3}, Tag: 1},
		{Verts: [3]int{0, 3, 2}, Tag: 2},
		{Verts: [3]int{1, 2, 3}, Tag: 3},
	}
	return
}

func TestWallTopology(t *testing.T) {
	verts, faces := tetrahedron()
	w, err := NewWallMesh(verts, faces, NoSymmetry)
	require.NoError(t, err)
	assert.Equal(t, 6, len(w.Edges))
	for v := 0; v < 4; v++ {
		assert.Equal(t, 3, len(w.Neighbors(v)))
		assert.Equal(t, 3, len(w.VertexFaces(v)))
		assert.Equal(t, 3, len(w.VertexEdges(v)))
	}
	assert.Equal(t, []int{1, 2, 3}, w.Neighbors(0))
	for _, e := range w.Edges {
		assert.False(t, e.IsBoundary())
	}
	// Outward normals on a consistently wound closed surface
	for f := range w.Faces {
		c := w.FaceCentroids[f]
		assert.True(t, r3.Dot(w.FaceNormals[f], r3.Sub(c, r3.Vec{X: .25, Y: .25, Z: .25})) > 0)
	}
	ei, ok := w.EdgeBetween(3, 1)
	require.True(t, ok)
	assert.ElementsMatch(t, []int{1, 3}, w.Edges[ei].Verts[:])
	assert.Equal(t, []int{1, 2, 3}, w.Tags())
	assert.InDelta(t, math.Pi/2, w.CornerAngle(0, 0), 1.e-14)
	label, n := w.Components()
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{0, 0, 0, 0}, label)
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, w.Ring([]int{0}, 1))
	assert.Equal(t, []int{2}, w.Ring([]int{2}, 0))
}

func TestWallTopologyErrors(t *testing.T) {
	verts, faces := tetrahedron()
	{ // Open surface without a symmetry plane
		_, err := NewWallMesh(verts, faces[:3], NoSymmetry)
		assert.True(t, errors.Is(err, ErrNotWatertight))
	}
	{ // Flipped face
		bad := append([]Face{}, faces...)
		bad[3].Verts = [3]int{1, 3, 2}
		_, err := NewWallMesh(verts, bad, NoSymmetry)
		assert.True(t, errors.Is(err, ErrInconsistent))
	}
	{ // Third face on an edge
		bad := append([]Face{}, faces...)
		verts := append([]r3.Vec{}, verts...)
		verts = append(verts, r3.Vec{X: -1, Y: -1, Z: -1})
		bad = append(bad, Face{Verts: [3]int{0, 1, 4}})
		_, err := NewWallMesh(verts, bad, NoSymmetry)
		assert.Error(t, err)
	}
	{ // Repeated vertex
		bad := append([]Face{}, faces...)
		bad[0].Verts = [3]int{0, 0, 1}
		_, err := NewWallMesh(verts, bad, NoSymmetry)
		assert.True(t, errors.Is(err, ErrDegenerateFace))
	}
}

func TestReferenceSurfaces(t *testing.T) {
	{ // Hemisphere is open only on its symmetry plane
		w := Hemisphere(1, 6, 12)
		assert.Equal(t, 1+6*12, w.NumVertices())
		nOnPlane := 0
		for v, on := range w.OnSymmetry {
			if on {
				nOnPlane++
				assert.InDelta(t, 0., w.Vertices[v].Z, 1.e-14)
			}
		}
		assert.Equal(t, 12, nOnPlane)
		for f := range w.Faces {
			assert.True(t, r3.Dot(w.FaceNormals[f], w.FaceCentroids[f]) > 0)
		}
	}
	{
		w := Sphere(2, 8, 16)
		for f := range w.Faces {
			assert.True(t, r3.Dot(w.FaceNormals[f], w.FaceCentroids[f]) > 0)
		}
	}
	{ // Voxel blocks: Euler characteristic of a closed genus zero surface
		for _, w := range []*WallMesh{Box(2, 3, 4, 0.5), Slot(5, 3, 4, 2, 1), LBlock(4, 2, 4, 1)} {
			assert.Equal(t, 2, w.NumVertices()-len(w.Edges)+w.NumFaces())
			var area float64
			for f := range w.Faces {
				area += w.FaceAreas[f]
			}
			assert.True(t, area > 0)
		}
		w := Box(1, 1, 1, 1)
		assert.Equal(t, 8, w.NumVertices())
		assert.Equal(t, 12, w.NumFaces())
		for f := range w.Faces {
			c := r3.Sub(w.FaceCentroids[f], r3.Vec{X: .5, Y: .5, Z: .5})
			assert.InDelta(t, 0.5, r3.Dot(w.FaceNormals[f], c), 1.e-14)
		}
	}
	{
		w := Cone(1, 2, 16)
		assert.Equal(t, 2, w.NumVertices()-len(w.Edges)+w.NumFaces())
		assert.Equal(t, []int{1, 2}, w.Tags())
	}
}

func TestSymmetry(t *testing.T) {
	s := Symmetry{Axis: 1, Offset: 2}
	p := r3.Vec{X: 1, Y: 5, Z: 3}
	assert.Equal(t, r3.Vec{X: 1, Y: -1, Z: 3}, s.Mirror(p))
	assert.Equal(t, 3., s.Distance(p))
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, s.Project(p))
	assert.Equal(t, r3.Vec{X: 1, Y: -5, Z: 3}, s.MirrorDir(p))
	assert.Equal(t, r3.Vec{X: 1, Z: 3}, s.InPlane(p))
	assert.Equal(t, r3.Vec{Y: 1}, s.Normal())
	assert.False(t, NoSymmetry.Active())
}

func TestWallSurfaceRoundTrip(t *testing.T) {
	var (
		w   = Cone(1, 2, 12)
		buf bytes.Buffer
	)
	require.NoError(t, w.Mesh().WriteSU2(&buf))
	m, err := mesh.ParseSU2(&buf)
	require.NoError(t, err)
	m.AddSection("Farfield", utils.Triangle, 9, [][]int{{0, 2, 3}})
	rw, err := FromMesh(m, NoSymmetry)
	require.NoError(t, err)
	assert.Equal(t, w.NumVertices(), rw.NumVertices())
	assert.Equal(t, w.NumFaces(), rw.NumFaces())
	assert.Equal(t, []int{1, 2}, rw.Tags())
	var a0, a1 float64
	for f := range rw.Faces {
		a0 += w.FaceAreas[f]
		a1 += rw.FaceAreas[f]
	}
	assert.InDelta(t, a0, a1, 1.e-12)

	shifted, err := NewWallMesh(w.Vertices, lo.Map(w.Faces, func(f Face, _ int) Face {
		f.Tag += 4
		return f
	}), NoSymmetry)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 9}, shifted.RankTags([]int{1, 2, 9}))
}
