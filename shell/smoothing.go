package shell

import (
	"math"

	"github.com/notargets/prismlayer/utils"
	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/spatial/r3"
)

// SmoothNormals relaxes the growth directions with Jacobi passes. Corner
// vertices are anchored, ridge vertices only average along their ridge and
// stay orthogonal to it. A result leaving the allowed cone of any incident
// face is rejected.
func (st *State) SmoothNormals() {
	var (
		next     = make([]r3.Vec, st.Wall.NumVertices())
		rejected = make([]int, st.pm.ParallelDegree)
	)
	for it := 0; it < st.Params.NormalSmoothingIterations; it++ {
		st.pm.ParallelFor(func(bn, kMin, kMax int) {
			for v := kMin; v < kMax; v++ {
				next[v] = st.Normals[v]
				nbrs := st.smoothingNeighbors(v)
				if len(nbrs) == 0 {
					continue
				}
				var (
					n0  = st.Normals[v]
					sum = r3.Scale(SmoothingWeightBase-1, n0)
				)
				for _, nb := range nbrs {
					sum = r3.Add(sum, r3.Scale(SmoothingWeightBase-r3.Dot(n0, st.Normals[nb]), st.Normals[nb]))
				}
				if t := st.RidgeTangent[v]; t != (r3.Vec{}) {
					sum = utils.RejectFrom(sum, t)
				}
				cand := st.constrainNormal(v, sum)
				if cand == (r3.Vec{}) || !st.sees(v, cand, st.AllowedCos[v]) {
					rejected[bn]++
					continue
				}
				next[v] = cand
			}
		})
		st.Normals, next = next, st.Normals
	}
	var nRejected int
	for _, n := range rejected {
		nRejected += n
	}
	jww.DEBUG.Printf("Normal smoothing kept %d updates outside the allowed cone unchanged\n", nRejected)
}

// SmoothHeights relaxes the heights toward the weighted neighbor average
// without exceeding the target of any vertex
func (st *State) SmoothHeights() {
	next := make([]float64, len(st.Heights))
	for it := 0; it < st.Params.HeightSmoothingIterations; it++ {
		st.pm.ParallelFor(func(_, kMin, kMax int) {
			for v := kMin; v < kMax; v++ {
				next[v] = math.Min(st.Targets[v], st.weightedHeight(v, st.Heights))
			}
		})
		st.Heights, next = next, st.Heights
	}
}

// weightedHeight averages the heights around v, itself included, with the
// normal smoothing weights
func (st *State) weightedHeight(v int, h []float64) float64 {
	var (
		n0   = st.Normals[v]
		wSum = SmoothingWeightBase - 1
		hSum = wSum * h[v]
	)
	for _, nb := range st.Wall.Neighbors(v) {
		wt := SmoothingWeightBase - r3.Dot(n0, st.Normals[nb])
		wSum += wt
		hSum += wt * h[nb]
	}
	return hSum / wSum
}
