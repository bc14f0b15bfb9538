package shell

import (
	"math"
	"testing"

	"github.com/notargets/prismlayer/InputParameters"
	"github.com/notargets/prismlayer/classify"
	"github.com/notargets/prismlayer/utils"
	"github.com/notargets/prismlayer/wall"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newTestState(t *testing.T, w *wall.WallMesh, pp *InputParameters.PrismParameters) (st *State) {
	require.NoError(t, pp.Validate())
	st = NewState(w, pp)
	require.NoError(t, st.Classify())
	st.BuildFields()
	return
}

func vertexAt(t *testing.T, w *wall.WallMesh, p r3.Vec) int {
	for v, q := range w.Vertices {
		if r3.Norm(r3.Sub(p, q)) < 1.e-12 {
			return v
		}
	}
	require.Failf(t, "no vertex", "at %v", p)
	return -1
}

func setHeights(st *State, h float64) {
	for v := range st.Heights {
		st.Heights[v], st.Targets[v] = h, h
	}
	st.UpdateEnvelope()
}

func TestHemisphereEnvelope(t *testing.T) {
	var (
		w  = wall.Hemisphere(1, 12, 24)
		pp = InputParameters.NewPrismParameters()
	)
	pp.InitialHeight, pp.NLayers, pp.MaxGrowthRatio = 1.e-3, 5, 1.2
	pp.SymmetryPlane = "z"
	st, err := Generate(w, pp)
	require.NoError(t, err)
	assert.Empty(t, st.NegativeVolumes())
	assert.Empty(t, st.GridDefects())
	for v, q := range st.Envelope {
		assert.True(t, r3.Norm(q) > 1, "vertex %d envelope %v inside the wall", v, q)
		assert.True(t, st.Heights[v] > 0)
		if w.OnSymmetry[v] {
			assert.InDelta(t, 0., q.Z, 1.e-12)
		}
	}
	// The uncapped target of the layer stack
	target := utils.GeometricSum(1.e-3, 1.2, 5)
	assert.InDelta(t, target, st.Targets[w.NumVertices()/2], 1.e-12)
	m, err := st.Assemble(nil)
	require.NoError(t, err)
	assert.Equal(t, 5*w.NumFaces(), m.CountType(utils.Prism))
	require.NotNil(t, m.Section("Symmetry"))
	assert.Equal(t, 5*24, len(m.Section("Symmetry").Conn))
	for _, c := range m.Section("PentaRegion").Conn {
		var p, q [3]r3.Vec
		for i := 0; i < 3; i++ {
			p[i], q[i] = m.Point(c[i]), m.Point(c[3+i])
		}
		require.True(t, utils.MinPrismCornerVolume(p, q) > 0, "prism %v", c)
	}

	// A wall symmetry plane must be configured
	pp.SymmetryPlane = ""
	_, err = Generate(w, pp)
	assert.Error(t, err)
}

func TestConvexRidgeNormals(t *testing.T) {
	var (
		w  = wall.Box(4, 4, 4, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
	)
	var nEdge int
	for ei, e := range w.Edges {
		ec := st.Class.Edges[ei]
		n0, n1 := w.EdgeFaceNormals(ei)
		if r3.Dot(n0, n1) < 0.5 {
			assert.True(t, ec.IsRidge() && ec.IsConvex() && !ec.IsConcave(), "edge %v %v", e.Verts, ec)
		}
	}
	for v, cat := range st.Class.Vertices {
		if cat != classify.ConvexEdge {
			continue
		}
		nEdge++
		var bisector r3.Vec
		for _, ei := range w.VertexEdges(v) {
			if st.Class.Edges[ei].IsRidge() {
				n0, n1 := w.EdgeFaceNormals(ei)
				bisector = utils.SafeUnit(r3.Add(n0, n1))
				other := w.Edges[ei].Other(v)
				ridge := utils.SafeUnit(r3.Sub(w.Vertices[other], w.Vertices[v]))
				assert.InDelta(t, 0., r3.Dot(st.Normals[v], ridge), 1.e-12, "vertex %d", v)
			}
		}
		assert.InDelta(t, 1., r3.Dot(st.Normals[v], bisector), 1.e-12, "vertex %d normal %v", v, st.Normals[v])
	}
	// Three vertices on each of the 12 box edges
	assert.Equal(t, 36, nEdge)
}

func TestFlatVertexNormal(t *testing.T) {
	var (
		w  = wall.Box(4, 4, 4, 1)
		pp = InputParameters.NewPrismParameters()
	)
	pp.NormalSmoothingIterations = 0
	st := newTestState(t, w, pp)
	var nFlat int
	for v, cat := range st.Class.Vertices {
		if !cat.IsFlat() {
			continue
		}
		faces := w.VertexFaces(v)
		n := w.FaceNormals[faces[0]]
		coplanar := true
		for _, f := range faces {
			coplanar = coplanar && r3.Norm(r3.Sub(w.FaceNormals[f], n)) < 1.e-14
		}
		if !coplanar {
			continue
		}
		nFlat++
		assert.InDelta(t, 0., r3.Norm(r3.Sub(st.Normals[v], n)), 1.e-12, "vertex %d", v)
	}
	assert.Equal(t, 6*9, nFlat)
}

func TestUntangleCrossingRays(t *testing.T) {
	var (
		w  = wall.Box(4, 4, 4, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
		a  = vertexAt(t, w, r3.Vec{X: 1, Y: 2, Z: 4})
		b  = vertexAt(t, w, r3.Vec{X: 2, Y: 2, Z: 4})
	)
	_, ok := w.EdgeBetween(a, b)
	require.True(t, ok)
	setHeights(st, 0.05)
	st.Normals[a] = r3.Unit(r3.Vec{X: 1, Z: 1})
	st.Normals[b] = r3.Unit(r3.Vec{X: -1, Z: 1})
	st.Heights[a], st.Heights[b] = 2, 2
	st.UpdateEnvelope()
	sa, sb, crossing := crossingHeights(w.Vertices[a], w.Vertices[b], st.Normals[a], st.Normals[b])
	require.True(t, crossing)
	assert.InDelta(t, math.Sqrt(0.5), sa, 1.e-12)
	assert.InDelta(t, math.Sqrt(0.5), sb, 1.e-12)

	st.Untangle()
	assert.True(t, st.Heights[a] < 2)
	assert.True(t, st.Heights[b] < 2)
	assert.True(t, st.Heights[a] <= sa/UntangleOvershoot)
	assert.True(t, st.Heights[b] <= sb/UntangleOvershoot)
	twist := twistAngle(w.Vertices[a], w.Vertices[b], st.Envelope[a], st.Envelope[b])
	assert.True(t, twist <= utils.Deg2Rad(pp.MaxTwistAngle)+1.e-9, "twist %g deg", utils.Rad2Deg(twist))
}

func TestCrossingLimitTwoSided(t *testing.T) {
	var (
		w  = wall.Box(4, 4, 4, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
		a  = vertexAt(t, w, r3.Vec{X: 1, Y: 2, Z: 4})
		b  = vertexAt(t, w, r3.Vec{X: 2, Y: 2, Z: 4})
	)
	setHeights(st, 0.05)
	st.Normals[a] = r3.Unit(r3.Vec{X: 0.1, Z: 1})
	st.Normals[b] = r3.Unit(r3.Vec{X: -0.1, Z: 1})
	sa, sb, ok := crossingHeights(w.Vertices[a], w.Vertices[b], st.Normals[a], st.Normals[b])
	require.True(t, ok)
	require.True(t, sa > 4 && sb > 4)
	// Only a passes its crossing point, the lateral segments stay apart
	st.Heights[a] = 6
	assert.Equal(t, 6., st.crossingLimit(a))
	assert.Equal(t, 0.05, st.crossingLimit(b))
	// Both pass it
	st.Heights[b] = 6
	assert.InDelta(t, sa/UntangleOvershoot, st.crossingLimit(a), 1.e-12)
	assert.InDelta(t, sb/UntangleOvershoot, st.crossingLimit(b), 1.e-12)
}

func TestUncollideTrench(t *testing.T) {
	var (
		width = 1.
		w     = wall.Slot(5, 3, 3, 2, width)
		pp    = InputParameters.NewPrismParameters()
		st    = newTestState(t, w, pp)
		s     = pp.CollisionSafetyFactor
	)
	setHeights(st, 3*width)
	st.Uncollide()
	for y := 1; y <= 2; y++ {
		for _, x := range []float64{2, 3} {
			v := vertexAt(t, w, r3.Vec{X: x, Y: float64(y), Z: 2})
			assert.True(t, st.Heights[v] <= width/(2*s)+1.e-12, "vertex %d at %v height %g", v, w.Vertices[v], st.Heights[v])
			assert.True(t, st.Heights[v] > 0)
		}
	}
	// Convex surroundings never collide
	box := newTestState(t, wall.Box(2, 2, 2, 1), pp)
	before := copyHeights(box.Heights)
	assert.Equal(t, 0, box.Uncollide())
	assert.Equal(t, before, box.Heights)
}

func TestUncollideCountsFinalHeights(t *testing.T) {
	var (
		w  = wall.Slot(5, 3, 3, 2, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
	)
	setHeights(st, 3)
	pp.RepairIterations = 1
	unresolved := st.Uncollide()
	require.True(t, unresolved > 0)
	// With no iterations left the pass only counts
	pp.RepairIterations = 0
	before := copyHeights(st.Heights)
	assert.Equal(t, unresolved, st.Uncollide())
	assert.Equal(t, before, st.Heights)
}

func TestRepairMonotonic(t *testing.T) {
	var (
		w  = wall.LBlock(4, 3, 4, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
	)
	setHeights(st, 2)
	check := func(name string, pass func()) {
		before := copyHeights(st.Heights)
		pass()
		for v := range before {
			require.True(t, st.Heights[v] <= before[v], "%s raised vertex %d from %g to %g", name, v, before[v], st.Heights[v])
		}
	}
	check("untangle", func() { st.Untangle() })
	check("unwarp", func() { st.Unwarp() })
	check("uncollide", func() { st.Uncollide() })
	check("retract", func() { st.Retract([]int{0, 1, 2}) })
	check("repair", st.Repair)
	assert.Empty(t, st.NegativeVolumes())
}

func TestNegativeVolumes(t *testing.T) {
	var (
		w  = wall.Box(4, 4, 4, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
		a  = vertexAt(t, w, r3.Vec{X: 2, Y: 2, Z: 4})
	)
	require.Empty(t, st.NegativeVolumes())
	// A growth ray leaning far over its neighbors folds the envelope
	st.Normals[a] = r3.Unit(r3.Vec{X: 1, Z: 0.2})
	st.Heights[a] = 3
	st.UpdateEnvelope()
	bad := st.NegativeVolumes()
	require.NotEmpty(t, bad)
	for _, f := range bad {
		assert.Contains(t, w.Faces[f].Verts, a)
	}
	assert.Equal(t, 0, st.FixNegativeVolumes())
	assert.Empty(t, st.NegativeVolumes())
	assert.True(t, st.Heights[a] < 3)

	// No height makes an inward growth direction valid
	st.Normals[a] = r3.Vec{Z: -1}
	st.UpdateEnvelope()
	assert.Equal(t, len(w.VertexFaces(a)), st.FixNegativeVolumes())
}
