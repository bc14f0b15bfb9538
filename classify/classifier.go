package classify

import (
	"math"

	"github.com/notargets/prismlayer/utils"
	"github.com/notargets/prismlayer/wall"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrFeatureAngleTooLow = errors.New("face bounded by three same-sign ridges, feature angle set too low")

type Classification struct {
	Edges    []EdgeClass
	Vertices []VertexCategory
}

// RidgeCount holds the number of convex and concave ridges meeting at a vertex
type RidgeCount struct {
	Convex, Concave int
	SharpConvex     bool
}

// Classify tags every edge and vertex of the wall. Angles are in degrees and
// measure the deviation between face normals.
func Classify(w *wall.WallMesh, featureAngle, sharpAngle float64) (c *Classification, err error) {
	c = &Classification{
		Edges: ClassifyEdges(w, featureAngle, sharpAngle),
	}
	for f := range w.Faces {
		var nCvx, nCcv int
		for _, ei := range w.FaceEdges[f] {
			ec := c.Edges[ei]
			if ec.IsConvex() {
				nCvx++
			} else if ec.IsConcave() {
				nCcv++
			}
		}
		if nCvx == 3 || nCcv == 3 {
			return nil, errors.Wrapf(ErrFeatureAngleTooLow, "face %d %v", f, w.Faces[f].Verts)
		}
	}
	c.Vertices = ClassifyVertices(w, c.Edges, featureAngle)
	return
}

// ClassifyEdges compares the two face normals of every edge. Open edges on the
// symmetry plane use the mirror image of their face as the second face.
func ClassifyEdges(w *wall.WallMesh, featureAngle, sharpAngle float64) (ec []EdgeClass) {
	var (
		cosFeature = math.Cos(utils.Deg2Rad(featureAngle))
		cosSharp   = math.Cos(utils.Deg2Rad(sharpAngle))
		pm         = utils.NewPartitionMap(0, len(w.Edges))
	)
	ec = make([]EdgeClass, len(w.Edges))
	pm.ParallelFor(func(_, kMin, kMax int) {
		for ei := kMin; ei < kMax; ei++ {
			n0, n1 := w.EdgeFaceNormals(ei)
			cs := r3.Dot(n0, n1)
			if cs >= cosFeature {
				continue
			}
			cls := EdgeRidge
			c0, c1 := w.EdgeFaceCentroids(ei)
			if r3.Dot(r3.Sub(c1, c0), r3.Sub(n1, n0)) > 0 {
				cls |= EdgeConvex
			} else {
				cls |= EdgeConcave
			}
			if cs < cosSharp {
				cls |= EdgeSharp
			}
			ec[ei] = cls
		}
	})
	return
}

// CountRidges tallies the ridges at v. A ridge leaving a symmetry plane vertex
// toward the interior has a mirror image meeting the same vertex, so it
// counts twice; ridges lying in the plane count once.
func CountRidges(w *wall.WallMesh, ec []EdgeClass, v int) (rc RidgeCount) {
	for _, ei := range w.VertexEdges(v) {
		cls := ec[ei]
		if !cls.IsRidge() {
			continue
		}
		mult := 1
		if w.OnSymmetry[v] && !edgeInPlane(w, ei) {
			mult = 2
		}
		if cls.IsConvex() {
			rc.Convex += mult
			if cls.IsSharp() {
				rc.SharpConvex = true
			}
		} else {
			rc.Concave += mult
		}
	}
	return
}

func edgeInPlane(w *wall.WallMesh, ei int) bool {
	e := w.Edges[ei]
	return w.OnSymmetry[e.Verts[0]] && w.OnSymmetry[e.Verts[1]]
}

func ClassifyVertices(w *wall.WallMesh, ec []EdgeClass, featureAngle float64) (vc []VertexCategory) {
	var (
		cosHalf = math.Cos(utils.Deg2Rad(0.5 * featureAngle))
		nv      = w.NumVertices()
		pm      = utils.NewPartitionMap(0, nv)
		dangles = make([]int, pm.ParallelDegree)
	)
	vc = make([]VertexCategory, nv)
	pm.ParallelFor(func(bn, kMin, kMax int) {
		for v := kMin; v < kMax; v++ {
			rc := CountRidges(w, ec, v)
			switch {
			case rc.Convex == 0 && rc.Concave == 0:
				vc[v] = conicalCategory(w, v, cosHalf)
			case rc.Convex+rc.Concave == 1:
				vc[v] = Flat
				dangles[bn]++
			case rc.Convex > 0 && rc.Concave > 0:
				if rc.SharpConvex {
					vc[v] = LeadingEdgeIntersection
				} else {
					vc[v] = SaddleCorner
				}
			case rc.Convex == 2:
				if rc.SharpConvex {
					vc[v] = Wedge
				} else {
					vc[v] = ConvexEdge
				}
			case rc.Concave == 2:
				vc[v] = Trench
			case rc.Convex > 2:
				vc[v] = ConvexCorner
			default:
				vc[v] = ConcaveCorner
			}
		}
	})
	var nDangle int
	for _, n := range dangles {
		nDangle += n
	}
	if nDangle > 0 {
		jww.WARN.Printf("%d vertices end a single ridge and were classified Flat\n", nDangle)
	}
	return
}

// conicalCategory detects smooth-free apexes: no ridge meets the vertex, yet
// every incident face leans away from the vertex normal by more than half the
// feature angle
func conicalCategory(w *wall.WallMesh, v int, cosHalf float64) VertexCategory {
	var (
		n     = w.VertexNormal(v)
		faces = w.VertexFaces(v)
	)
	if len(faces) < 3 {
		return Flat
	}
	for _, f := range faces {
		if r3.Dot(n, w.FaceNormals[f]) >= cosHalf {
			return Flat
		}
	}
	var height float64
	for _, nb := range w.Neighbors(v) {
		height += r3.Dot(r3.Sub(w.Vertices[nb], w.Vertices[v]), n)
	}
	if height < 0 {
		return ConeTip
	}
	return ConeDipp
}

// RidgeNeighbors returns the neighbors of v reached through ridge edges
func (c *Classification) RidgeNeighbors(w *wall.WallMesh, v int) (nbrs []int) {
	for _, ei := range w.VertexEdges(v) {
		if c.Edges[ei].IsRidge() {
			nbrs = append(nbrs, w.Edges[ei].Other(v))
		}
	}
	return
}

// Counts tallies the vertices in each category
func (c *Classification) Counts() map[VertexCategory]int {
	counts := make(map[VertexCategory]int)
	for _, vc := range c.Vertices {
		counts[vc]++
	}
	return counts
}
