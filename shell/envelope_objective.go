package shell

import (
	"math"
	"time"

	"github.com/notargets/prismlayer/optimizer"
	"github.com/notargets/prismlayer/utils"
	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	VolumeMargin        = 1.e-2 // Corner volume floor, relative to A*h/3 of the face
	FoldMargin          = 1.e-2 // Envelope area floor, relative to the wall face area
	HeightPenaltyWeight = 1.
)

/*
envelopeProblem moves each envelope vertex by (u, v, h) in the frame
(t1, t2, n) of its wall vertex:

	Q = p + h n + u t1 + v t2

Symmetry plane vertices have t2 = 0 so they stay in the plane.
*/
type envelopeProblem struct {
	st      *State
	t1, t2  []r3.Vec
	h0      []float64 // Repaired heights
	volEps  []float64
	foldEps []float64
	gq      [][]r3.Vec // Per partition dE/dQ accumulators
}

func newEnvelopeProblem(st *State) (ep *envelopeProblem) {
	var (
		w  = st.Wall
		nv = w.NumVertices()
		nf = w.NumFaces()
	)
	ep = &envelopeProblem{
		st:      st,
		t1:      make([]r3.Vec, nv),
		t2:      make([]r3.Vec, nv),
		h0:      copyHeights(st.Heights),
		volEps:  make([]float64, nf),
		foldEps: make([]float64, nf),
		gq:      make([][]r3.Vec, st.fpm.ParallelDegree),
	}
	for v := 0; v < nv; v++ {
		n := st.Normals[v]
		if w.OnSymmetry[v] {
			ep.t1[v] = utils.SafeUnit(r3.Cross(n, w.Sym.Normal()))
			continue
		}
		ep.t1[v], ep.t2[v] = utils.TangentFrame(n)
	}
	for f, face := range w.Faces {
		hMin := math.Inf(1)
		for _, v := range face.Verts {
			hMin = math.Min(hMin, ep.h0[v])
		}
		ep.volEps[f] = VolumeMargin * w.FaceAreas[f] * hMin / 3
		ep.foldEps[f] = FoldMargin * w.FaceAreas[f]
	}
	for bn := range ep.gq {
		ep.gq[bn] = make([]r3.Vec, nv)
	}
	return
}

func (ep *envelopeProblem) Dim() int { return 3 * ep.st.Wall.NumVertices() }

func (ep *envelopeProblem) start() (x []float64) {
	x = make([]float64, ep.Dim())
	for v, h := range ep.h0 {
		x[3*v+2] = h
	}
	return
}

func (ep *envelopeProblem) points(x []float64) (q []r3.Vec) {
	st := ep.st
	q = make([]r3.Vec, st.Wall.NumVertices())
	for v := range q {
		q[v] = r3.Add(st.envelopePoint(v, x[3*v+2]),
			r3.Add(r3.Scale(x[3*v], ep.t1[v]), r3.Scale(x[3*v+1], ep.t2[v])))
	}
	return
}

type faceKernel func(f int, p, q [3]r3.Vec, g *[3]r3.Vec) float64

// accumulate sums kernel over all faces, partition results combined in order,
// and maps dE/dQ onto the (u, v, h) variables when grad is not nil
func (ep *envelopeProblem) accumulate(x, grad []float64, kernel faceKernel) (val float64) {
	var (
		st = ep.st
		q  = ep.points(x)
	)
	val = st.fpm.ParallelSum(func(bn, kMin, kMax int) (sum float64) {
		gq := ep.gq[bn]
		if grad != nil {
			for i := range gq {
				gq[i] = r3.Vec{}
			}
		}
		for f := kMin; f < kMax; f++ {
			var (
				verts = st.Wall.Faces[f].Verts
				pf    = st.Wall.FacePoints(f)
				qf    [3]r3.Vec
				g     [3]r3.Vec
			)
			for i, v := range verts {
				qf[i] = q[v]
			}
			sum += kernel(f, pf, qf, &g)
			if grad != nil {
				for i, v := range verts {
					gq[v] = r3.Add(gq[v], g[i])
				}
			}
		}
		return
	})
	if grad == nil {
		return
	}
	st.pm.ParallelFor(func(_, kMin, kMax int) {
		for v := kMin; v < kMax; v++ {
			var G r3.Vec
			for bn := range ep.gq {
				G = r3.Add(G, ep.gq[bn][v])
			}
			grad[3*v] = r3.Dot(G, ep.t1[v])
			grad[3*v+1] = r3.Dot(G, ep.t2[v])
			grad[3*v+2] = r3.Dot(G, st.Normals[v])
		}
	})
	return
}

// foldArea is the area of the envelope triangle projected on the wall face normal
func foldArea(q [3]r3.Vec, n r3.Vec) (area float64, ga, gb, gc r3.Vec) {
	var (
		x = r3.Sub(q[1], q[0])
		y = r3.Sub(q[2], q[0])
	)
	area = 0.5 * r3.Dot(r3.Cross(x, y), n)
	gb = r3.Scale(0.5, r3.Cross(y, n))
	gc = r3.Scale(0.5, r3.Cross(n, x))
	ga = r3.Scale(-1, r3.Add(gb, gc))
	return
}

// hinge returns the squared relative shortfall of c below eps and its derivative
func hinge(c, eps float64) (val, dval float64) {
	r := (eps - c) / eps
	if r <= 0 {
		return
	}
	return r * r, -2 * r / eps
}

// violationKernel penalizes corner tetrahedra and envelope area below their margins
func (ep *envelopeProblem) violationKernel(f int, p, q [3]r3.Vec, g *[3]r3.Vec) (val float64) {
	eps := ep.volEps[f]
	for i := 0; i < 3; i++ {
		j, k := (i+1)%3, (i+2)%3
		vol, _, _, _, gd := utils.TetVolumeGrad(p[i], p[j], p[k], q[i])
		if h, dh := hinge(vol, eps); h > 0 {
			val += h
			g[i] = r3.Add(g[i], r3.Scale(dh, gd))
		}
		vol, ga, gb, gc, _ := utils.TetVolumeGrad(q[i], q[k], q[j], p[i])
		if h, dh := hinge(vol, eps); h > 0 {
			val += h
			g[i] = r3.Add(g[i], r3.Scale(dh, ga))
			g[k] = r3.Add(g[k], r3.Scale(dh, gb))
			g[j] = r3.Add(g[j], r3.Scale(dh, gc))
		}
	}
	area, ga, gb, gc := foldArea(q, ep.st.Wall.FaceNormals[f])
	if h, dh := hinge(area, ep.foldEps[f]); h > 0 {
		val += h
		g[0] = r3.Add(g[0], r3.Scale(dh, ga))
		g[1] = r3.Add(g[1], r3.Scale(dh, gb))
		g[2] = r3.Add(g[2], r3.Scale(dh, gc))
	}
	return
}

// qualityKernel is sum(1 - m.l_i) for the envelope normal m and the unit lateral edges l_i
func (ep *envelopeProblem) qualityKernel(f int, p, q [3]r3.Vec, g *[3]r3.Vec) (val float64) {
	var (
		x  = r3.Sub(q[1], q[0])
		y  = r3.Sub(q[2], q[0])
		N  = r3.Cross(x, y)
		nN = r3.Norm(N)
		s  r3.Vec
	)
	if nN < utils.NODETOL {
		return 3
	}
	m := r3.Scale(1/nN, N)
	for i := 0; i < 3; i++ {
		var (
			l  = r3.Sub(q[i], p[i])
			nl = r3.Norm(l)
		)
		if nl < utils.NODETOL {
			val++
			continue
		}
		lh := r3.Scale(1/nl, l)
		c := r3.Dot(m, lh)
		val += 1 - c
		s = r3.Add(s, lh)
		// d(m.lh)/dq_i through the edge direction
		g[i] = r3.Sub(g[i], r3.Scale(1/nl, r3.Sub(m, r3.Scale(c, lh))))
	}
	// d(m.s)/dN, then through N = x cross y
	gN := r3.Scale(1/nN, r3.Sub(s, r3.Scale(r3.Dot(m, s), m)))
	var (
		gb = r3.Cross(y, gN)
		gc = r3.Cross(gN, x)
	)
	g[1] = r3.Sub(g[1], gb)
	g[2] = r3.Sub(g[2], gc)
	g[0] = r3.Add(g[0], r3.Add(gb, gc))
	return
}

type envelopeViolation struct{ *envelopeProblem }

func (ev envelopeViolation) Evaluate(x, grad []float64) float64 {
	return ev.accumulate(x, grad, ev.violationKernel)
}

type envelopeQuality struct{ *envelopeProblem }

func (eq envelopeQuality) Evaluate(x, grad []float64) (val float64) {
	val = eq.accumulate(x, grad, eq.qualityKernel)
	for v, h0 := range eq.h0 {
		r := (x[3*v+2] - h0) / h0
		val += HeightPenaltyWeight * r * r
		if grad != nil {
			grad[3*v+2] += 2 * HeightPenaltyWeight * r / h0
		}
	}
	return
}

func (ep *envelopeProblem) Objective() optimizer.Evaluator { return envelopeQuality{ep} }
func (ep *envelopeProblem) Violation() optimizer.Evaluator { return envelopeViolation{ep} }

func (ep *envelopeProblem) Feasible(x []float64) bool {
	return ep.st.validEnvelope(ep.points(x)) == 0
}

// validEnvelope counts the faces whose prism toward q fails the commit tests:
// positive corner tetrahedra and envelope area, and lateral edges with positive
// projection on both the wall and envelope normals
func (st *State) validEnvelope(q []r3.Vec) (bad int) {
	return st.fpm.ParallelCount(func(_, kMin, kMax int) (n int) {
		for f := kMin; f < kMax; f++ {
			var (
				verts = st.Wall.Faces[f].Verts
				p     = st.Wall.FacePoints(f)
				qf    [3]r3.Vec
			)
			for i, v := range verts {
				qf[i] = q[v]
			}
			if !validPrism(p, qf, st.Wall.FaceNormals[f]) {
				n++
			}
		}
		return
	})
}

func validPrism(p, q [3]r3.Vec, n r3.Vec) bool {
	if utils.MinPrismCornerVolume(p, q) <= 0 {
		return false
	}
	if area, _, _, _ := foldArea(q, n); area <= 0 {
		return false
	}
	m, _ := utils.TriangleNormal(q[0], q[1], q[2])
	for i := 0; i < 3; i++ {
		l := r3.Sub(q[i], p[i])
		if r3.Dot(l, n) <= 0 || r3.Dot(l, m) <= 0 {
			return false
		}
	}
	return true
}

// Optimize refines the repaired envelope for prism quality within the
// MaxOptimizationTime budget. The result is committed only if every prism
// passes validation, otherwise the envelope is left as it was.
func (st *State) Optimize() (committed bool) {
	ep := newEnvelopeProblem(st)
	return st.optimize(ep, ep)
}

// optimize solves p over the (u, v, h) variables of ep
func (st *State) optimize(ep *envelopeProblem, p optimizer.Problem) (committed bool) {
	var (
		pp       = st.Params
		x0       = ep.start()
		settings = optimizer.DefaultSettings(time.Duration(pp.MaxOptimizationTime * float64(time.Second)))
	)
	settings.Verbose = pp.VerboseOptimization
	f0 := p.Objective().Evaluate(x0, nil)
	res, err := optimizer.TwoStage(p, x0, settings)
	if err != nil {
		jww.WARN.Printf("Envelope optimization rejected: %v\n", err)
		return
	}
	q := ep.points(res.X)
	if bad := st.validEnvelope(q); bad > 0 {
		jww.WARN.Printf("Envelope optimization rejected: %d prisms fail validation\n", bad)
		return
	}
	copy(st.Envelope, q)
	committed = true
	jww.INFO.Printf("Envelope optimization committed: quality objective %g -> %g\n", f0, res.Objective)
	return
}
