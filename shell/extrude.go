package shell

import (
	"math"

	"github.com/notargets/prismlayer/utils"
	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/spatial/r3"
)

// Bounds of the per vertex layer growth ratio
const (
	MinLayerRatio = 0.01
	MaxLayerRatio = 10.
)

// PrismGrid holds NLayers+1 points per wall vertex, layer 0 on the wall and
// layer NLayers on the envelope
type PrismGrid struct {
	NLayers int
	NVerts  int
	Points  []r3.Vec
}

func NewPrismGrid(nVerts, nLayers int) *PrismGrid {
	return &PrismGrid{
		NLayers: nLayers,
		NVerts:  nVerts,
		Points:  make([]r3.Vec, nVerts*(nLayers+1)),
	}
}

func (g *PrismGrid) Index(v, k int) int { return v*(g.NLayers+1) + k }
func (g *PrismGrid) At(v, k int) r3.Vec { return g.Points[g.Index(v, k)] }

// Layer returns the triangle of face verts at layer k
func (g *PrismGrid) Layer(verts [3]int, k int) (tri [3]r3.Vec) {
	for i, v := range verts {
		tri[i] = g.At(v, k)
	}
	return
}

type gridDefect struct {
	Face, Layer int
}

// LayerFractions returns the cumulative offset fractions of a geometric stack
// whose first cell is h0 and whose total is H
func LayerFractions(h0, H float64, n int) (s []float64) {
	s = make([]float64, n+1)
	r := utils.GrowthRatio(h0, H, n, MinLayerRatio, MaxLayerRatio)
	total := utils.GeometricSum(h0, r, n)
	for k := 1; k <= n; k++ {
		s[k] = utils.GeometricSum(h0, r, k) / total
	}
	s[n] = 1
	return
}

// blend is the weight of the straight wall normal target at fraction t of a
// curved growth path with curvature control eps
func blend(t, eps float64) float64 {
	if eps <= 0 {
		return 0
	}
	e1 := math.Exp(-1 / eps)
	return (math.Exp(-t/eps) - e1) / (1 - e1)
}

// extrudeVertex fills the layer points of v between its wall point and the envelope
func (st *State) extrudeVertex(g *PrismGrid, v int) {
	var (
		p   = st.Wall.Vertices[v]
		q   = st.Envelope[v]
		pq  = r3.Sub(q, p)
		eps = st.InvGrowthExponent[v]
		s   = LayerFractions(st.Params.InitialHeight, r3.Norm(pq), g.NLayers)
	)
	normalTarget := r3.Sub(r3.Scale(st.Heights[v], st.Normals[v]), pq)
	for k, t := range s {
		dir := pq
		if eps > 0 {
			dir = r3.Add(pq, r3.Scale(blend(t, eps), normalTarget))
		}
		g.Points[g.Index(v, k)] = r3.Add(p, r3.Scale(t, dir))
	}
}

/*
Extrude builds the layer points of every wall vertex, optionally pushes up
grid nodes that sink below their supporting lower layer, and checks every
prism of every layer. With curved growth, vertices around remaining defects
have their curvature control halved and the extrusion is retried. Defects
left after that are returned as an *InvalidPrismError.
*/
func (st *State) Extrude() (err error) {
	var (
		pp     = st.Params
		nv     = st.Wall.NumVertices()
		curved = pp.WallNormalTransition > 0
		bad    []gridDefect
	)
	st.Grid = NewPrismGrid(nv, pp.NLayers)
	for retry := 0; ; retry++ {
		st.pm.ParallelFor(func(_, kMin, kMax int) {
			for v := kMin; v < kMax; v++ {
				st.extrudeVertex(st.Grid, v)
			}
		})
		if pp.UntangleGrid {
			st.UntangleGrid()
		}
		if bad = st.GridDefects(); len(bad) == 0 || !curved || retry >= pp.CurvatureRetries {
			break
		}
		var seeds []int
		for _, d := range bad {
			seeds = append(seeds, st.Wall.Faces[d.Face].Verts[:]...)
		}
		for _, v := range st.Wall.Ring(seeds, 1) {
			st.InvGrowthExponent[v] *= 0.5
		}
		jww.DEBUG.Printf("Extrusion retry %d: flattened curved growth around %d inverted prisms\n", retry, len(bad))
	}
	if len(bad) == 0 {
		jww.INFO.Printf("Extruded %d prisms in %d layers\n", st.Wall.NumFaces()*pp.NLayers, pp.NLayers)
		return
	}
	ipe := &InvalidPrismError{}
	for _, d := range bad {
		verts := st.Wall.Faces[d.Face].Verts
		ipe.add(st, d.Face, d.Layer, st.Grid.Layer(verts, d.Layer-1), st.Grid.Layer(verts, d.Layer))
	}
	return ipe
}

// GridDefects lists the prisms, by face and upper layer, with a non-positive
// corner tetrahedron
func (st *State) GridDefects() (bad []gridDefect) {
	var (
		g       = st.Grid
		partial = make([][]gridDefect, st.fpm.ParallelDegree)
	)
	st.fpm.ParallelFor(func(bn, kMin, kMax int) {
		for f := kMin; f < kMax; f++ {
			verts := st.Wall.Faces[f].Verts
			for k := 1; k <= g.NLayers; k++ {
				if utils.MinPrismCornerVolume(g.Layer(verts, k-1), g.Layer(verts, k)) <= 0 {
					partial[bn] = append(partial[bn], gridDefect{Face: f, Layer: k})
				}
			}
		}
	})
	for _, pl := range partial {
		bad = append(bad, pl...)
	}
	return
}

// UntangleGrid moves interior layer nodes lying below the outward plane of a
// lower layer triangle that supports them to UntangleOvershoot times their
// depth above it. Layers are swept upward and the envelope is never moved.
func (st *State) UntangleGrid() (moved int) {
	var (
		g = st.Grid
		w = st.Wall
	)
	for it := 0; it < st.Params.GridUntangleIterations; it++ {
		var n int
		for k := 1; k < g.NLayers; k++ {
			n += st.pm.ParallelCount(func(_, kMin, kMax int) (pushed int) {
				for v := kMin; v < kMax; v++ {
					idx := g.Index(v, k)
					for _, f := range w.VertexFaces(v) {
						lower := g.Layer(w.Faces[f].Verts, k-1)
						m, _ := utils.TriangleNormal(lower[0], lower[1], lower[2])
						if m == (r3.Vec{}) {
							continue
						}
						if d := r3.Dot(r3.Sub(g.Points[idx], lower[0]), m); d <= 0 {
							g.Points[idx] = r3.Add(g.Points[idx], r3.Scale(-UntangleOvershoot*d+utils.NODETOL, m))
							pushed++
						}
					}
				}
				return
			})
		}
		moved += n
		if n == 0 {
			break
		}
	}
	if moved > 0 {
		jww.DEBUG.Printf("Grid untangle moved %d nodes\n", moved)
	}
	return
}
