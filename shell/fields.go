package shell

import (
	"math"

	"github.com/notargets/prismlayer/utils"
	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// BuildFields computes growth directions, allowed cones and target heights,
// then relaxes them
func (st *State) BuildFields() {
	var (
		pp           = st.Params
		maxDeviation = utils.Deg2Rad(pp.MaxNormalDeviation)
		cosVisible   = utils.VisibilityCos
	)
	st.pm.ParallelFor(func(_, kMin, kMax int) {
		for v := kMin; v < kMax; v++ {
			n := st.categoryNormal(v)
			if !st.sees(v, n, cosVisible) {
				n = st.visibilityNormal(v)
				if !st.sees(v, n, cosVisible) {
					n = st.Wall.VertexNormal(v)
				}
			}
			n = st.constrainNormal(v, n)
			st.Normals[v] = n
			// The allowed cone never excludes the starting direction
			dev := maxDeviation
			for _, f := range st.Wall.VertexFaces(v) {
				dev = math.Max(dev, utils.AngleBetween(n, st.Wall.FaceNormals[f]))
			}
			st.AllowedCos[v] = math.Cos(math.Min(dev, utils.Deg2Rad(89)))
			st.Targets[v] = st.TargetHeight(v)
		}
	})
	st.SmoothNormals()
	copy(st.Heights, st.Targets)
	st.SmoothHeights()
	st.UpdateEnvelope()
	jww.INFO.Printf("Built growth fields for %d wall vertices\n", st.Wall.NumVertices())
}

// TargetHeight matches a geometric layer stack to the relative height target
// of v, then clamps to the absolute and relative maxima
func (st *State) TargetHeight(v int) float64 {
	var (
		pp     = st.Params
		relMax = pp.MaxRelativeHeight * st.Wall.MeanEdgeLength(v)
		r      = utils.GrowthRatio(pp.InitialHeight, relMax, pp.NLayers, 1, pp.MaxGrowthRatio)
		h      = utils.GeometricSum(pp.InitialHeight, r, pp.NLayers)
	)
	return math.Min(h, math.Min(pp.MaxLayerThickness, relMax))
}

// categoryNormal specializes the averaged normal to the vertex category
func (st *State) categoryNormal(v int) (n r3.Vec) {
	var (
		w   = st.Wall
		cat = st.Class.Vertices[v]
	)
	n = w.VertexNormal(v)
	switch {
	case cat.HasRidge():
		if t, ok := st.ridgeTangent(v); ok {
			st.RidgeTangent[v] = t
			n = utils.SafeUnit(utils.RejectFrom(n, t))
		}
	case cat.IsCorner():
		if d, ok := st.cornerDirection(v, n); ok {
			n = d
		} else {
			n = st.visibilityNormal(v)
		}
	case cat.IsConical():
		n = st.visibilityNormal(v)
	}
	return
}

// ridgeTangent is the direction of the ridge line through v, found from its two
// ridge neighbors. A symmetry plane vertex with one ridge neighbor pairs it
// with its mirror image.
func (st *State) ridgeTangent(v int) (t r3.Vec, ok bool) {
	var (
		w    = st.Wall
		p    = w.Vertices[v]
		nbrs = st.Class.RidgeNeighbors(w, v)
		pa   r3.Vec
		pb   r3.Vec
	)
	switch {
	case len(nbrs) == 2:
		pa, pb = w.Vertices[nbrs[0]], w.Vertices[nbrs[1]]
	case len(nbrs) == 1 && w.OnSymmetry[v]:
		pa = w.Vertices[nbrs[0]]
		pb = w.Sym.Mirror(pa)
	default:
		return
	}
	t = utils.SafeUnit(r3.Sub(utils.SafeUnit(r3.Sub(pa, p)), utils.SafeUnit(r3.Sub(pb, p))))
	ok = t != r3.Vec{}
	return
}

// cornerDirection sums the incident ridge directions weighted by how sharp each
// ridge is, oriented to agree with the averaged normal
func (st *State) cornerDirection(v int, avg r3.Vec) (d r3.Vec, ok bool) {
	var (
		w = st.Wall
		p = w.Vertices[v]
	)
	for _, ei := range w.VertexEdges(v) {
		if !st.Class.Edges[ei].IsRidge() {
			continue
		}
		n0, n1 := w.EdgeFaceNormals(ei)
		wt := 1 - r3.Dot(n0, n1)
		other := w.Edges[ei].Other(v)
		e := utils.SafeUnit(r3.Sub(w.Vertices[other], p))
		d = r3.Add(d, r3.Scale(wt, e))
		if w.OnSymmetry[v] && !w.OnSymmetry[other] {
			d = r3.Add(d, r3.Scale(wt, w.Sym.MirrorDir(e)))
		}
	}
	d = utils.SafeUnit(d)
	if d == (r3.Vec{}) {
		return
	}
	if r3.Dot(d, avg) < 0 {
		d = r3.Scale(-1, d)
	}
	ok = st.sees(v, d, utils.VisibilityCos)
	return
}

// visibilityNormal solves (sum A_f n_f n_f^T) x = sum A_f n_f, the direction
// that best sees every incident face in the least squares sense
func (st *State) visibilityNormal(v int) r3.Vec {
	var (
		w    = st.Wall
		a    = mat.NewSymDense(3, nil)
		b    = mat.NewVecDense(3, nil)
		x    = mat.NewVecDense(3, nil)
		chol mat.Cholesky
	)
	add := func(area float64, n r3.Vec) {
		nn := [3]float64{n.X, n.Y, n.Z}
		for i := 0; i < 3; i++ {
			b.SetVec(i, b.AtVec(i)+area*nn[i])
			for j := i; j < 3; j++ {
				a.SetSym(i, j, a.At(i, j)+area*nn[i]*nn[j])
			}
		}
	}
	for _, f := range w.VertexFaces(v) {
		add(w.FaceAreas[f], w.FaceNormals[f])
		if w.OnSymmetry[v] {
			add(w.FaceAreas[f], w.Sym.MirrorDir(w.FaceNormals[f]))
		}
	}
	if ok := chol.Factorize(a); !ok {
		return w.VertexNormal(v)
	}
	if err := chol.SolveVecTo(x, b); err != nil {
		return w.VertexNormal(v)
	}
	n := utils.SafeUnit(r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)})
	if n == (r3.Vec{}) {
		return w.VertexNormal(v)
	}
	return n
}

// smoothingNeighbors returns the vertices v averages with, nil for anchored vertices
func (st *State) smoothingNeighbors(v int) []int {
	cat := st.Class.Vertices[v]
	switch {
	case cat.SmoothsFreely():
		return st.Wall.Neighbors(v)
	case cat.HasRidge():
		var nbrs []int
		for _, nb := range st.Class.RidgeNeighbors(st.Wall, v) {
			if st.Class.Vertices[nb].HasRidge() {
				nbrs = append(nbrs, nb)
			}
		}
		return nbrs
	}
	return nil
}
