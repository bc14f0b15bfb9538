package shell

import (
	"math"

	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// envelopePoint is a kd-tree entry carrying the wall vertex it grew from
type envelopePoint struct {
	Q r3.Vec
	V int
}

func (p *envelopePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(*envelopePoint)
	switch d {
	case 0:
		return p.Q.X - q.Q.X
	case 1:
		return p.Q.Y - q.Q.Y
	case 2:
		return p.Q.Z - q.Q.Z
	}
	panic("unreachable")
}

func (p *envelopePoint) Dims() int { return 3 }

// Distance is squared, as the kd-tree expects
func (p *envelopePoint) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.Q, c.(*envelopePoint).Q))
}

type envelopeCloud []envelopePoint

func (ec envelopeCloud) Index(i int) kdtree.Comparable { return &ec[i] }
func (ec envelopeCloud) Len() int                      { return len(ec) }

// Pivot partitions the list based on the dimension specified.
func (ec envelopeCloud) Pivot(d kdtree.Dim) int {
	p := cloudPlane{dim: d, points: ec}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (ec envelopeCloud) Slice(start, end int) kdtree.Interface { return ec[start:end] }

type cloudPlane struct {
	dim    kdtree.Dim
	points envelopeCloud
}

func (p cloudPlane) Less(i, j int) bool {
	return p.points[i].Compare(&p.points[j], p.dim) < 0
}
func (p cloudPlane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}
func (p cloudPlane) Len() int { return len(p.points) }
func (p cloudPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}

func (st *State) envelopeTree() *kdtree.Tree {
	cloud := make(envelopeCloud, len(st.Envelope))
	for v, q := range st.Envelope {
		cloud[v] = envelopePoint{Q: q, V: v}
	}
	return kdtree.New(cloud, false)
}

// collisionHeight checks the stacks of a and b for an indirect collision. d is
// the offset of b's wall vertex along a's growth direction. When the stacks
// overlap it returns the largest valid retracted height for a.
func (st *State) collisionHeight(a, b int) (h float64, collides bool) {
	var (
		s      = st.Params.CollisionSafetyFactor
		pa, pb = st.Wall.Vertices[a], st.Wall.Vertices[b]
		na, nb = st.Normals[a], st.Normals[b]
		ha, hb = st.Heights[a], st.Heights[b]
	)
	if r3.Dot(na, nb) >= CollisionNormalCos {
		return
	}
	d := r3.Dot(r3.Sub(pb, pa), na)
	if d <= 0 || r3.Dot(r3.Sub(pa, pb), nb) <= 0 {
		return
	}
	if ha+hb <= d/s {
		return
	}
	collides = true
	h = ha
	best := 0.
	for _, cand := range []float64{d / (2 * s), ha * st.Params.UncollideRatio} {
		if cand > 0 && cand < ha {
			best = math.Max(best, cand)
		}
	}
	if best > 0 {
		h = best
	}
	return
}

// collisionScan writes into next the height of every vertex retracted from the
// stacks it runs into, and returns the number of vertices with a collision
func (st *State) collisionScan(next []float64, excluded []map[int]bool) (hits int) {
	var (
		tree   = st.envelopeTree()
		safety = st.Params.CollisionSafetyFactor
	)
	return st.pm.ParallelCount(func(_, kMin, kMax int) (n int) {
		for a := kMin; a < kMax; a++ {
			next[a] = st.Heights[a]
			if excluded[a] == nil {
				excluded[a] = make(map[int]bool)
				for _, v := range st.Wall.Ring([]int{a}, CollisionExcludeRing) {
					excluded[a][v] = true
				}
			}
			r := 2 * safety * st.Heights[a]
			keeper := kdtree.NewDistKeeper(r * r)
			tree.NearestSet(keeper, &envelopePoint{Q: st.Envelope[a]})
			hit := false
			for _, item := range keeper.Heap {
				if item.Comparable == nil {
					continue
				}
				b := item.Comparable.(*envelopePoint).V
				if excluded[a][b] {
					continue
				}
				if h, ok := st.collisionHeight(a, b); ok {
					hit = true
					next[a] = math.Min(next[a], h)
				}
			}
			if hit {
				n++
			}
		}
		return
	})
}

// Uncollide retracts envelope vertices whose layer stacks run into the stack of
// a topologically distant part of the wall, such as the opposite side of a
// narrow trench. The point index is rebuilt every iteration. It returns the
// number of vertices still colliding at the final heights.
func (st *State) Uncollide() (unresolved int) {
	var (
		nv       = st.Wall.NumVertices()
		next     = make([]float64, nv)
		excluded = make([]map[int]bool, nv)
	)
	for it := 0; ; it++ {
		unresolved = st.collisionScan(next, excluded)
		if it == st.Params.RepairIterations {
			break
		}
		modified := st.modified(next)
		if len(modified) == 0 {
			break
		}
		copy(st.Heights, next)
		st.UpdateEnvelope()
		st.Retract(modified)
		jww.DEBUG.Printf("uncollide iteration %d: %d vertices retracted\n", it, len(modified))
	}
	if unresolved > 0 {
		jww.WARN.Printf("uncollide: %d envelope vertices still collide\n", unresolved)
	}
	return
}
