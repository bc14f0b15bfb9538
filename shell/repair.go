package shell

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/prismlayer/utils"
	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/spatial/r3"
)

// Repair runs the untangle, unwarp and uncollide passes until none of them
// changes a height, then halves heights around any prism still inverted.
// Every pass only ever lowers heights.
func (st *State) Repair() {
	for round := 0; round < RepairRounds; round++ {
		var (
			nUntangle = st.Untangle()
			nUnwarp   = st.Unwarp()
			nCollide  = st.Uncollide()
		)
		jww.INFO.Printf("Repair round %d: %d tangled, %d warped, %d colliding vertices remain\n",
			round, nUntangle, nUnwarp, nCollide)
		if nUntangle+nUnwarp+nCollide == 0 {
			break
		}
	}
	if nNeg := st.FixNegativeVolumes(); nNeg > 0 {
		jww.WARN.Printf("%d envelope prisms remain inverted after repair\n", nNeg)
	}
}

// crossingHeights returns the distances along the growth rays of a and b at
// which they meet, from the law of sines on the triangle formed by the wall
// edge and the two rays. ok is false for rays that do not converge.
func crossingHeights(pa, pb, na, nb r3.Vec) (sa, sb float64, ok bool) {
	var (
		e = r3.Sub(pb, pa)
		L = r3.Norm(e)
	)
	if L < utils.NODETOL {
		return
	}
	alpha := math.Acos(utils.Clamp(r3.Dot(na, e)/L, -1, 1))
	beta := math.Acos(utils.Clamp(-r3.Dot(nb, e)/L, -1, 1))
	sab := math.Sin(alpha + beta)
	if alpha+beta >= math.Pi || sab < utils.NODETOL {
		return
	}
	sa = L * math.Sin(beta) / sab
	sb = L * math.Sin(alpha) / sab
	ok = true
	return
}

// twistAngle is the angle between the envelope edge and its wall edge
func twistAngle(pa, pb, qa, qb r3.Vec) float64 {
	return utils.AngleBetween(r3.Sub(qb, qa), r3.Sub(pb, pa))
}

// Untangle clamps heights below the point where neighboring growth rays cross,
// then retracts edges whose envelope image twists beyond MaxTwistAngle. It
// returns the number of edges still twisted or crossing.
func (st *State) Untangle() (unresolved int) {
	var (
		w        = st.Wall
		maxTwist = utils.Deg2Rad(st.Params.MaxTwistAngle)
		clamped  = copyHeights(st.Heights)
		next     = copyHeights(st.Heights)
	)
	for it := 0; it < st.Params.RepairIterations; it++ {
		st.pm.ParallelFor(func(_, kMin, kMax int) {
			for a := kMin; a < kMax; a++ {
				clamped[a] = st.crossingLimit(a)
			}
		})
		st.pm.ParallelFor(func(_, kMin, kMax int) {
			for a := kMin; a < kMax; a++ {
				k := 1.
				for _, b := range w.Neighbors(a) {
					k = math.Min(k, st.twistRetraction(a, b, clamped[a], clamped[b], maxTwist))
				}
				next[a] = k * clamped[a]
			}
		})
		modified := st.modified(next)
		if len(modified) == 0 {
			break
		}
		copy(st.Heights, next)
		st.Retract(modified)
	}
	st.UpdateEnvelope()
	unresolved = st.countTangled(maxTwist)
	if unresolved > 0 {
		jww.WARN.Printf("untangle: %d wall edges remain crossed or twisted\n", unresolved)
	}
	return
}

// crossingLimit lowers the height of a below the crossing point of every
// neighbor ray whose lateral segment currently passes its own crossing point
func (st *State) crossingLimit(a int) (h float64) {
	w := st.Wall
	h = st.Heights[a]
	for _, b := range w.Neighbors(a) {
		sa, sb, ok := crossingHeights(w.Vertices[a], w.Vertices[b], st.Normals[a], st.Normals[b])
		if ok && st.Heights[a] > sa && st.Heights[b] > sb {
			h = math.Min(h, sa/UntangleOvershoot)
		}
	}
	return
}

// twistRetraction finds by bisection the largest uniform factor on both
// heights that keeps the edge twist within maxTwist
func (st *State) twistRetraction(a, b int, ha, hb, maxTwist float64) (k float64) {
	var (
		pa, pb = st.Wall.Vertices[a], st.Wall.Vertices[b]
		na, nb = st.Normals[a], st.Normals[b]
	)
	twist := func(k float64) float64 {
		return twistAngle(pa, pb, r3.Add(pa, r3.Scale(k*ha, na)), r3.Add(pb, r3.Scale(k*hb, nb)))
	}
	if twist(1) <= maxTwist {
		return 1
	}
	lo, hi := 0., 1.
	for i := 0; i < RetractionBisection; i++ {
		mid := 0.5 * (lo + hi)
		if twist(mid) <= maxTwist {
			lo = mid
		} else {
			hi = mid
		}
	}
	return math.Max(lo, MinRetraction)
}

func (st *State) countTangled(maxTwist float64) (count int) {
	w := st.Wall
	for _, e := range w.Edges {
		a, b := e.Verts[0], e.Verts[1]
		pa, pb := w.Vertices[a], w.Vertices[b]
		if sa, sb, ok := crossingHeights(pa, pb, st.Normals[a], st.Normals[b]); ok &&
			st.Heights[a] > sa && st.Heights[b] > sb {
			count++
			continue
		}
		if twistAngle(pa, pb, st.Envelope[a], st.Envelope[b]) > maxTwist+1.e-9 {
			count++
		}
	}
	return
}

// Unwarp retracts the heights of triangles whose envelope plane tilts so far
// that a growth vector deviates from it by more than MaxWarpAngle. Each vertex
// takes the smallest retraction factor of its faces.
func (st *State) Unwarp() (unresolved int) {
	var (
		w       = st.Wall
		maxWarp = utils.Deg2Rad(st.Params.MaxWarpAngle)
		factor  = make([]float64, w.NumFaces())
		bad     = make([]int, st.fpm.ParallelDegree)
		next    = make([]float64, w.NumVertices())
	)
	for it := 0; it < st.Params.RepairIterations; it++ {
		for i := range bad {
			bad[i] = 0
		}
		st.fpm.ParallelFor(func(bn, kMin, kMax int) {
			for f := kMin; f < kMax; f++ {
				factor[f] = 1
				if st.warp(f, 1) <= maxWarp {
					continue
				}
				if st.warp(f, 0) > maxWarp {
					bad[bn]++
					continue
				}
				lo, hi := 0., 1.
				for i := 0; i < UnwarpBisectionSteps; i++ {
					mid := 0.5 * (lo + hi)
					if st.warp(f, mid) <= maxWarp {
						lo = mid
					} else {
						hi = mid
					}
				}
				factor[f] = math.Max(lo, MinRetraction)
			}
		})
		unresolved = 0
		for _, n := range bad {
			unresolved += n
		}
		st.pm.ParallelFor(func(_, kMin, kMax int) {
			for v := kMin; v < kMax; v++ {
				k := 1.
				for _, f := range w.VertexFaces(v) {
					k = math.Min(k, factor[f])
				}
				next[v] = k * st.Heights[v]
			}
		})
		modified := st.modified(next)
		if len(modified) == 0 {
			break
		}
		copy(st.Heights, next)
		st.Retract(modified)
	}
	st.UpdateEnvelope()
	if unresolved > 0 {
		jww.WARN.Printf("unwarp: %d wall faces cannot reach the warp limit\n", unresolved)
	}
	return
}

// warp is the largest angle between a growth vector of face f and the normal
// of its envelope triangle with every height scaled by k
func (st *State) warp(f int, k float64) (maxDev float64) {
	var (
		verts = st.Wall.Faces[f].Verts
		q     [3]r3.Vec
	)
	for i, v := range verts {
		q[i] = st.envelopePoint(v, k*st.Heights[v])
	}
	m, _ := utils.TriangleNormal(q[0], q[1], q[2])
	if m == (r3.Vec{}) {
		return math.Pi
	}
	for _, v := range verts {
		maxDev = math.Max(maxDev, utils.AngleBetween(st.Normals[v], m))
	}
	return
}

// modified lists the vertices whose height differs from next
func (st *State) modified(next []float64) (verts []int) {
	for v, h := range next {
		if h != st.Heights[v] {
			verts = append(verts, v)
		}
	}
	return
}

// Retract spreads a local height reduction over the RetractRings neighborhood
// of the modified vertices. A vertex moves to the weighted average of its
// neighborhood only when that lowers it.
func (st *State) Retract(modified []int) {
	if len(modified) == 0 {
		return
	}
	var (
		ring = st.Wall.Ring(modified, st.Params.RetractRings)
		pm   = utils.NewPartitionMap(st.Params.Threads, len(ring))
		next = make([]float64, len(ring))
	)
	for pass := 0; pass < st.Params.RetractRings; pass++ {
		pm.ParallelFor(func(_, kMin, kMax int) {
			for i := kMin; i < kMax; i++ {
				v := ring[i]
				next[i] = math.Min(st.Heights[v], st.weightedHeight(v, st.Heights))
			}
		})
		for i, v := range ring {
			st.Heights[v] = next[i]
		}
	}
	st.UpdateEnvelope()
}

// NegativeVolumes lists the faces whose envelope prism has a corner tetrahedron
// of non-positive volume
func (st *State) NegativeVolumes() (faces []int) {
	var (
		partial = make([][]int, st.fpm.ParallelDegree)
	)
	st.fpm.ParallelFor(func(bn, kMin, kMax int) {
		for f := kMin; f < kMax; f++ {
			p, q := st.prismPoints(f)
			if utils.MinPrismCornerVolume(p, q) <= 0 {
				partial[bn] = append(partial[bn], f)
			}
		}
	})
	for _, fl := range partial {
		faces = append(faces, fl...)
	}
	return
}

// FixNegativeVolumes halves the heights of inverted prisms for up to
// RepairIterations rounds and returns the number still inverted
func (st *State) FixNegativeVolumes() int {
	faces := st.NegativeVolumes()
	for round := 0; round < st.Params.RepairIterations && len(faces) > 0; round++ {
		halve := make(map[int]bool)
		for _, f := range faces {
			for _, v := range st.Wall.Faces[f].Verts {
				halve[v] = true
			}
		}
		for v := range halve {
			st.Heights[v] *= 0.5
		}
		st.UpdateEnvelope()
		faces = st.NegativeVolumes()
	}
	return len(faces)
}

// InvalidPrismError reports prisms with a non-positive corner volume after extrusion
type InvalidPrismError struct {
	Faces           []int
	Layers          []int
	Coordinates     [][6]r3.Vec
	NormalDeviation []float64 // Degrees, worst growth direction vs base triangle normal
	Twist           []float64 // Degrees, worst lateral edge twist
}

func (e *InvalidPrismError) Error() string {
	var (
		sb    strings.Builder
		limit = len(e.Faces)
	)
	fmt.Fprintf(&sb, "%d inverted prism elements", len(e.Faces))
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		fmt.Fprintf(&sb, "\n  face %d layer %d: normal deviation %.2f deg, twist %.2f deg, nodes %v",
			e.Faces[i], e.Layers[i], e.NormalDeviation[i], e.Twist[i], e.Coordinates[i])
	}
	return sb.String()
}

func (e *InvalidPrismError) add(st *State, f, layer int, p, q [3]r3.Vec) {
	var (
		verts       = st.Wall.Faces[f].Verts
		n           = st.Wall.FaceNormals[f]
		dev, twist  float64
		coordinates [6]r3.Vec
	)
	for i, v := range verts {
		dev = math.Max(dev, utils.Rad2Deg(utils.AngleBetween(st.Normals[v], n)))
		j := (i + 1) % 3
		twist = math.Max(twist, utils.Rad2Deg(twistAngle(p[i], p[j], q[i], q[j])))
		coordinates[i], coordinates[3+i] = p[i], q[i]
	}
	e.Faces = append(e.Faces, f)
	e.Layers = append(e.Layers, layer)
	e.Coordinates = append(e.Coordinates, coordinates)
	e.NormalDeviation = append(e.NormalDeviation, dev)
	e.Twist = append(e.Twist, twist)
}
