package classify

import (
	"math"
	"testing"

	"github.com/notargets/prismlayer/wall"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCategoryPredicates(t *testing.T) {
	assert.True(t, ConvexEdge.HasRidge())
	assert.True(t, Trench.HasRidge() && Trench.IsConcaveFeature())
	assert.False(t, Trench.IsConvexFeature())
	assert.True(t, Wedge.IsSharp() && Wedge.IsConvexFeature())
	assert.True(t, SaddleCorner.IsCorner() && SaddleCorner.IsConvexFeature() && SaddleCorner.IsConcaveFeature())
	assert.True(t, ConeTip.IsConical() && ConeTip.SmoothsFreely())
	assert.True(t, Flat.IsFlat() && Flat.SmoothsFreely())
	assert.False(t, ConvexCorner.SmoothsFreely())
	seen := make(map[VertexCategory]bool)
	for i, c := range AllCategories {
		assert.False(t, seen[c], c.String())
		seen[c] = true
		assert.Equal(t, i, c.Index())
		assert.NotEqual(t, "Invalid", c.String())
	}
	assert.Equal(t, "Ridge|Convex|Sharp", (EdgeRidge | EdgeConvex | EdgeSharp).String())
	assert.Equal(t, "Flat", EdgeFlat.String())
}

func TestFeatureThreshold(t *testing.T) {
	for _, w := range []*wall.WallMesh{wall.Sphere(1, 6, 8), wall.LBlock(4, 2, 4, 1), wall.Cone(1, 1, 10)} {
		var (
			fa   = 30.
			ec   = ClassifyEdges(w, fa, 120)
			cosF = math.Cos(fa * math.Pi / 180)
		)
		for ei := range w.Edges {
			n0, n1 := w.EdgeFaceNormals(ei)
			if ec[ei] == EdgeFlat {
				assert.True(t, r3.Dot(n0, n1) >= cosF)
			} else {
				assert.True(t, ec[ei].IsRidge())
				assert.True(t, r3.Dot(n0, n1) < cosF)
				assert.NotEqual(t, ec[ei].IsConvex(), ec[ei].IsConcave())
			}
		}
	}
}

func TestClassifyHemisphere(t *testing.T) {
	w := wall.Hemisphere(1, 12, 24)
	c, err := Classify(w, 30, 120)
	require.NoError(t, err)
	for v := 1; v < w.NumVertices(); v++ { // The pole is vertex 0
		assert.Equal(t, Flat, c.Vertices[v], "vertex %d", v)
	}
	for _, e := range c.Edges {
		assert.Equal(t, EdgeFlat, e)
	}
}

func TestClassifyBox(t *testing.T) {
	var (
		w      = wall.Box(2, 2, 2, 1)
		c, err = Classify(w, 30, 120)
	)
	require.NoError(t, err)
	for v, p := range w.Vertices {
		var nExtreme int
		for _, x := range []float64{p.X, p.Y, p.Z} {
			if x == 0 || x == 2 {
				nExtreme++
			}
		}
		switch nExtreme {
		case 3:
			assert.Equal(t, ConvexCorner, c.Vertices[v], "%v", p)
		case 2:
			assert.Equal(t, ConvexEdge, c.Vertices[v], "%v", p)
		default:
			assert.Equal(t, Flat, c.Vertices[v], "%v", p)
		}
	}
	for ei, e := range w.Edges {
		n0, n1 := w.EdgeFaceNormals(ei)
		if r3.Dot(n0, n1) < 0.5 {
			assert.Equal(t, EdgeRidge|EdgeConvex, c.Edges[ei], "%v", e.Verts)
		}
	}
	// A lower sharp threshold turns the 90 degree ridges into wedges
	c, err = Classify(w, 30, 80)
	require.NoError(t, err)
	counts := c.Counts()
	assert.Equal(t, 12, counts[Wedge])
	assert.Equal(t, 8, counts[ConvexCorner])
	assert.Zero(t, counts[ConvexEdge])
}

func TestClassifyConcaveFeatures(t *testing.T) {
	var (
		w      = wall.LBlock(4, 3, 4, 1)
		c, err = Classify(w, 30, 120)
	)
	require.NoError(t, err)
	// The inside corner line runs along y at x = 2, z = 2
	for v, p := range w.Vertices {
		if p.X == 2 && p.Z == 2 {
			if p.Y == 0 || p.Y == 3 {
				assert.Equal(t, SaddleCorner, c.Vertices[v], "%v", p)
			} else {
				assert.Equal(t, Trench, c.Vertices[v], "%v", p)
			}
		}
	}
	{ // Apex of a cone
		w := wall.Cone(1, 2, 24)
		c, err := Classify(w, 30, 120)
		require.NoError(t, err)
		assert.Equal(t, ConeTip, c.Vertices[0])
		assert.Equal(t, Flat, c.Vertices[1])
		for v := 2; v < w.NumVertices(); v++ {
			assert.Equal(t, ConvexEdge, c.Vertices[v])
		}
	}
}

func TestClassifyIdempotent(t *testing.T) {
	w := wall.Slot(5, 3, 4, 2, 1)
	c1, err := Classify(w, 30, 120)
	require.NoError(t, err)
	c2, err := Classify(w, 30, 120)
	require.NoError(t, err)
	assert.Equal(t, c1.Edges, c2.Edges)
	assert.Equal(t, c1.Vertices, c2.Vertices)
}

func TestFeatureAngleTooLow(t *testing.T) {
	verts := []r3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}
	faces := []wall.Face{
		{Verts: [3]int{0, 2, 1}}, {Verts: [3]int{0, 1, 3}},
		{Verts: [3]int{0, 3, 2}}, {Verts: [3]int{1, 2, 3}},
	}
	w, err := wall.NewWallMesh(verts, faces, wall.NoSymmetry)
	require.NoError(t, err)
	_, err = Classify(w, 30, 120)
	assert.True(t, errors.Is(err, ErrFeatureAngleTooLow))
	// Above the steepest dihedral every edge is flat
	c, err := Classify(w, 179, 179.5)
	require.NoError(t, err)
	for _, vc := range c.Vertices {
		assert.False(t, vc.HasRidge())
	}
}

func TestSymmetryRidgeDoubling(t *testing.T) {
	// The half box x in [0,1], y in [0,1], z in [0,1] cut by the z = 0 plane:
	// an open five sided box whose vertical edges end on the plane
	w := openBox(t)
	c, err := Classify(w, 30, 120)
	require.NoError(t, err)
	for v, p := range w.Vertices {
		if p.Z == 0 && (p.X == 0 || p.X == 1) && (p.Y == 0 || p.Y == 1) {
			// The vertical ridge and its mirror image make a straight convex ridge through the plane
			rc := CountRidges(w, c.Edges, v)
			assert.Equal(t, 2, rc.Convex)
			assert.Equal(t, ConvexEdge, c.Vertices[v])
		}
	}
}

func openBox(t *testing.T) *wall.WallMesh {
	var (
		verts = []r3.Vec{
			{}, {X: 1}, {X: 1, Y: 1}, {Y: 1},
			{Z: 1}, {X: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {Y: 1, Z: 1},
		}
		quads = [][4]int{
			{4, 5, 6, 7}, // top
			{0, 1, 5, 4}, // y = 0
			{1, 2, 6, 5}, // x = 1
			{2, 3, 7, 6}, // y = 1
			{3, 0, 4, 7}, // x = 0
		}
		faces []wall.Face
	)
	for _, q := range quads {
		faces = append(faces,
			wall.Face{Verts: [3]int{q[0], q[1], q[2]}, Tag: 1},
			wall.Face{Verts: [3]int{q[0], q[2], q[3]}, Tag: 1})
	}
	w, err := wall.NewWallMesh(verts, faces, wall.Symmetry{Axis: 2})
	require.NoError(t, err)
	return w
}
