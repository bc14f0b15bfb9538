package shell

import (
	"testing"

	"github.com/notargets/prismlayer/InputParameters"
	"github.com/notargets/prismlayer/mesh"
	"github.com/notargets/prismlayer/utils"
	"github.com/notargets/prismlayer/wall"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestLayerFractions(t *testing.T) {
	var (
		H = utils.GeometricSum(1.e-3, 1.2, 5)
		s = LayerFractions(1.e-3, H, 5)
	)
	assert.Equal(t, 0., s[0])
	assert.Equal(t, 1., s[5])
	assert.InDelta(t, 1.e-3, s[1]*H, 1.e-9)
	for k := 1; k < len(s); k++ {
		assert.True(t, s[k] > s[k-1])
	}
	assert.Equal(t, 1., blend(0, 0.3))
	assert.InDelta(t, 0., blend(1, 0.3), 1.e-15)
	assert.Equal(t, 0., blend(0.5, 0))
}

func TestExtrudeCurved(t *testing.T) {
	var (
		w  = wall.LBlock(4, 3, 4, 1)
		pp = InputParameters.NewPrismParameters()
	)
	pp.NLayers, pp.WallNormalTransition, pp.UntangleGrid = 6, 0.3, true
	st, err := Generate(w, pp)
	require.NoError(t, err)
	g := st.Grid
	for v := range w.Vertices {
		assert.Equal(t, w.Vertices[v], g.At(v, 0))
		assert.InDelta(t, 0., r3.Norm(r3.Sub(st.Envelope[v], g.At(v, g.NLayers))), 1.e-14)
	}
	assert.Empty(t, st.GridDefects())

	m, err := st.Assemble(nil)
	require.NoError(t, err)
	assert.Equal(t, w.NumVertices()*(pp.NLayers+1), len(m.Vertices))
	assert.Nil(t, m.Section("Symmetry"))
	require.NotNil(t, m.Section("Wall_1"))
	assert.Equal(t, w.NumFaces(), len(m.Section("Wall_1").Conn))
	for _, f := range m.NodeFields {
		assert.Equal(t, f.NComp*len(m.Vertices), len(f.Data), f.Name)
	}
	qr := st.Quality()
	assert.Equal(t, 9, len(qr.Counts))
	var total float64
	for _, c := range qr.Counts {
		total += c
	}
	assert.Equal(t, float64(3*w.NumFaces()), total)
	assert.True(t, qr.Max <= 90)
	assert.Contains(t, qr.String(), "mean")
}

func TestAssembleFarfield(t *testing.T) {
	var (
		w  = wall.Box(2, 2, 2, 1)
		pp = InputParameters.NewPrismParameters()
	)
	pp.NLayers = 3
	st, err := Generate(w, pp)
	require.NoError(t, err)
	var (
		outer = wall.Box(1, 1, 1, 10)
		far   = mesh.NewMesh()
	)
	far.AddVertices(outer.Vertices)
	var conn [][]int
	for _, f := range outer.Faces {
		conn = append(conn, []int{f.Verts[0], f.Verts[1], f.Verts[2]})
	}
	far.AddSection("far", utils.Triangle, 1, conn)

	m, err := st.Assemble(far)
	require.NoError(t, err)
	var (
		nv       = w.NumVertices()
		env      = m.Section("Interface")
		farfield = m.Section("Farfield")
	)
	assert.Equal(t, nv*4+outer.NumVertices(), len(m.Vertices))
	require.NotNil(t, env)
	require.NotNil(t, farfield)
	// Envelope and farfield triangles face into the tetrahedral gap between them
	for i, c := range env.Conn {
		n, _ := utils.TriangleNormal(m.Point(c[0]), m.Point(c[1]), m.Point(c[2]))
		assert.True(t, r3.Dot(n, w.FaceNormals[i]) < 0)
	}
	for i, c := range farfield.Conn {
		n, _ := utils.TriangleNormal(m.Point(c[0]), m.Point(c[1]), m.Point(c[2]))
		assert.True(t, r3.Dot(n, outer.FaceNormals[i]) < 0)
	}
	holes := st.HolePoints()
	require.Equal(t, 1, len(holes))
	pMin, pMax := w.BoundingBox()
	assert.False(t, holes[0].X > pMin.X && holes[0].X < pMax.X &&
		holes[0].Y > pMin.Y && holes[0].Y < pMax.Y &&
		holes[0].Z > pMin.Z && holes[0].Z < pMax.Z, "hole %v inside the wall", holes[0])
}

func TestExtrudeReportsInvertedPrisms(t *testing.T) {
	var (
		w  = wall.Box(2, 2, 2, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
	)
	_, err := st.Assemble(nil)
	assert.Error(t, err)
	v := vertexAt(t, w, r3.Vec{X: 1, Y: 1, Z: 2})
	st.Normals[v] = r3.Vec{Z: -1}
	st.UpdateEnvelope()
	err = st.Extrude()
	require.Error(t, err)
	var ipe *InvalidPrismError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, len(w.VertexFaces(v))*pp.NLayers, len(ipe.Faces))
	assert.Contains(t, err.Error(), "inverted prism elements")
	for i, f := range ipe.Faces {
		assert.Contains(t, w.Faces[f].Verts, v)
		assert.InDelta(t, 180., ipe.NormalDeviation[i], 1.e-9)
	}
}
