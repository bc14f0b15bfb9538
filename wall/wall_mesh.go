package wall

import (
	"math"
	"sort"

	"github.com/notargets/prismlayer/types"
	"github.com/notargets/prismlayer/utils"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrNonManifold    = errors.New("wall edge shared by more than two faces")
	ErrNotWatertight  = errors.New("open wall edge off the symmetry plane")
	ErrInconsistent   = errors.New("neighboring wall faces have inconsistent winding")
	ErrDegenerateFace = errors.New("degenerate wall face")
)

type Face struct {
	Verts [3]int
	Tag   int
}

/*
Edge stores its vertices in the order they are traversed by Faces[0]. Faces[1] is
the face on the other side, or -1 for an open edge lying on the symmetry plane
*/
type Edge struct {
	Verts [2]int
	Faces [2]int
}

func (e Edge) IsBoundary() bool { return e.Faces[1] < 0 }

// Other returns the endpoint opposite to v
func (e Edge) Other(v int) int {
	if e.Verts[0] == v {
		return e.Verts[1]
	}
	return e.Verts[0]
}

// Symmetry describes an optional mirror plane normal to coordinate Axis
type Symmetry struct {
	Axis   int // 0, 1 or 2, -1 for none
	Offset float64
}

var NoSymmetry = Symmetry{Axis: -1}

func (s Symmetry) Active() bool { return s.Axis >= 0 }

func (s Symmetry) Normal() (n r3.Vec) {
	setComponent(&n, s.Axis, 1)
	return
}

// Distance is the signed distance of p from the plane
func (s Symmetry) Distance(p r3.Vec) float64 {
	return component(p, s.Axis) - s.Offset
}

func (s Symmetry) Mirror(p r3.Vec) r3.Vec {
	setComponent(&p, s.Axis, 2*s.Offset-component(p, s.Axis))
	return p
}

// MirrorDir reflects a direction vector through the plane
func (s Symmetry) MirrorDir(v r3.Vec) r3.Vec {
	setComponent(&v, s.Axis, -component(v, s.Axis))
	return v
}

// InPlane removes the plane-normal component of a direction
func (s Symmetry) InPlane(v r3.Vec) r3.Vec {
	setComponent(&v, s.Axis, 0)
	return v
}

// Project moves p onto the plane
func (s Symmetry) Project(p r3.Vec) r3.Vec {
	setComponent(&p, s.Axis, s.Offset)
	return p
}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func setComponent(v *r3.Vec, axis int, val float64) {
	switch axis {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	case 2:
		v.Z = val
	}
}

type WallMesh struct {
	Vertices      []r3.Vec
	Faces         []Face
	Edges         []Edge
	EdgeMap       map[types.EdgeKey]int
	FaceEdges     [][3]int // Edge index of local edge (v[i], v[i+1])
	FaceNormals   []r3.Vec
	FaceAreas     []float64
	FaceCentroids []r3.Vec
	OnSymmetry    []bool // Vertex lies on an open edge of the symmetry plane
	Sym           Symmetry
	vertVert      utils.Adjacency
	vertFace      utils.Adjacency
	vertEdge      utils.Adjacency
}

// NewWallMesh builds the derived topology of a triangulated wall. The wall
// must be a closed, consistently oriented two-manifold except for open edges
// on an active symmetry plane.
func NewWallMesh(verts []r3.Vec, faces []Face, sym Symmetry) (w *WallMesh, err error) {
	var (
		nv, nf = len(verts), len(faces)
	)
	w = &WallMesh{
		Vertices:      verts,
		Faces:         faces,
		EdgeMap:       make(map[types.EdgeKey]int, 3*nf/2),
		FaceEdges:     make([][3]int, nf),
		FaceNormals:   make([]r3.Vec, nf),
		FaceAreas:     make([]float64, nf),
		FaceCentroids: make([]r3.Vec, nf),
		OnSymmetry:    make([]bool, nv),
		Sym:           sym,
	}
	for f, face := range faces {
		v := face.Verts
		for i := 0; i < 3; i++ {
			if v[i] < 0 || v[i] >= nv {
				return nil, errors.Errorf("face %d references vertex %d, have %d vertices", f, v[i], nv)
			}
		}
		if v[0] == v[1] || v[1] == v[2] || v[0] == v[2] {
			return nil, errors.Wrapf(ErrDegenerateFace, "face %d has repeated vertices %v", f, v)
		}
		a, b, c := verts[v[0]], verts[v[1]], verts[v[2]]
		w.FaceNormals[f], w.FaceAreas[f] = utils.TriangleNormal(a, b, c)
		if w.FaceNormals[f] == (r3.Vec{}) {
			return nil, errors.Wrapf(ErrDegenerateFace, "face %d has zero area", f)
		}
		w.FaceCentroids[f] = utils.TriangleCentroid(a, b, c)
		for i := 0; i < 3; i++ {
			ev := [2]int{v[i], v[(i+1)%3]}
			ek := types.NewEdgeKey(ev)
			ei, ok := w.EdgeMap[ek]
			if !ok {
				ei = len(w.Edges)
				w.EdgeMap[ek] = ei
				w.Edges = append(w.Edges, Edge{Verts: ev, Faces: [2]int{f, -1}})
			} else {
				e := &w.Edges[ei]
				if e.Faces[1] >= 0 {
					return nil, errors.Wrapf(ErrNonManifold, "edge %v at face %d", ev, f)
				}
				if e.Verts[0] == ev[0] {
					return nil, errors.Wrapf(ErrInconsistent, "faces %d and %d across edge %v",
						e.Faces[0], f, ev)
				}
				e.Faces[1] = f
			}
			w.FaceEdges[f][i] = ei
		}
	}
	tol := 1.e-9 * math.Max(w.Diameter(), 1)
	for _, e := range w.Edges {
		if !e.IsBoundary() {
			continue
		}
		if !sym.Active() {
			return nil, errors.Wrapf(ErrNotWatertight, "edge %v has a single face and no symmetry plane is set", e.Verts)
		}
		for _, v := range e.Verts {
			if math.Abs(sym.Distance(verts[v])) > tol {
				return nil, errors.Wrapf(ErrNotWatertight, "vertex %d of open edge %v is %g from the symmetry plane",
					v, e.Verts, sym.Distance(verts[v]))
			}
			w.OnSymmetry[v] = true
		}
	}
	w.buildAdjacency()
	return
}

func (w *WallMesh) buildAdjacency() {
	var (
		nv, nf, ne = len(w.Vertices), len(w.Faces), len(w.Edges)
		vv         = utils.NewDOK(nv, nv)
		vf         = utils.NewDOK(nv, nf)
		ve         = utils.NewDOK(nv, ne)
	)
	for f, face := range w.Faces {
		for _, v := range face.Verts {
			vf.Link(v, f)
		}
	}
	for ei, e := range w.Edges {
		vv.Link(e.Verts[0], e.Verts[1])
		vv.Link(e.Verts[1], e.Verts[0])
		ve.Link(e.Verts[0], ei)
		ve.Link(e.Verts[1], ei)
	}
	w.vertVert = vv.ToAdjacency()
	w.vertFace = vf.ToAdjacency()
	w.vertEdge = ve.ToAdjacency()
}

func (w *WallMesh) NumVertices() int { return len(w.Vertices) }
func (w *WallMesh) NumFaces() int    { return len(w.Faces) }

// Neighbors returns the vertices sharing an edge with v
func (w *WallMesh) Neighbors(v int) []int { return w.vertVert.Row(v) }

// VertexFaces returns the faces touching v
func (w *WallMesh) VertexFaces(v int) []int { return w.vertFace.Row(v) }

// VertexEdges returns the edges incident to v
func (w *WallMesh) VertexEdges(v int) []int { return w.vertEdge.Row(v) }

func (w *WallMesh) FacePoints(f int) (pts [3]r3.Vec) {
	for i, v := range w.Faces[f].Verts {
		pts[i] = w.Vertices[v]
	}
	return
}

func (w *WallMesh) EdgeBetween(a, b int) (ei int, ok bool) {
	ei, ok = w.EdgeMap[types.NewEdgeKey([2]int{a, b})]
	return
}

// EdgeFaceNormals returns the normals of both faces of an edge, the second one
// mirrored through the symmetry plane for open edges
func (w *WallMesh) EdgeFaceNormals(ei int) (n0, n1 r3.Vec) {
	e := w.Edges[ei]
	n0 = w.FaceNormals[e.Faces[0]]
	if e.IsBoundary() {
		n1 = w.Sym.MirrorDir(n0)
	} else {
		n1 = w.FaceNormals[e.Faces[1]]
	}
	return
}

// EdgeFaceCentroids mirrors the same way as EdgeFaceNormals
func (w *WallMesh) EdgeFaceCentroids(ei int) (c0, c1 r3.Vec) {
	e := w.Edges[ei]
	c0 = w.FaceCentroids[e.Faces[0]]
	if e.IsBoundary() {
		c1 = w.Sym.Mirror(c0)
	} else {
		c1 = w.FaceCentroids[e.Faces[1]]
	}
	return
}

// CornerAngle is the interior angle of face f at its vertex v
func (w *WallMesh) CornerAngle(f, v int) float64 {
	fv := w.Faces[f].Verts
	for i := 0; i < 3; i++ {
		if fv[i] == v {
			return utils.CornerAngle(w.Vertices[v], w.Vertices[fv[(i+1)%3]], w.Vertices[fv[(i+2)%3]])
		}
	}
	return 0
}

// MeanEdgeLength is the average length of the edges incident to v
func (w *WallMesh) MeanEdgeLength(v int) (l float64) {
	nbrs := w.Neighbors(v)
	if len(nbrs) == 0 {
		return
	}
	for _, nb := range nbrs {
		l += r3.Norm(r3.Sub(w.Vertices[nb], w.Vertices[v]))
	}
	l /= float64(len(nbrs))
	return
}

func (w *WallMesh) BoundingBox() (pMin, pMax r3.Vec) {
	return BoundingBox(w.Vertices)
}

func BoundingBox(pts []r3.Vec) (pMin, pMax r3.Vec) {
	if len(pts) == 0 {
		return
	}
	pMin, pMax = pts[0], pts[0]
	for _, p := range pts[1:] {
		pMin = r3.Vec{X: math.Min(pMin.X, p.X), Y: math.Min(pMin.Y, p.Y), Z: math.Min(pMin.Z, p.Z)}
		pMax = r3.Vec{X: math.Max(pMax.X, p.X), Y: math.Max(pMax.Y, p.Y), Z: math.Max(pMax.Z, p.Z)}
	}
	return
}

func (w *WallMesh) Diameter() float64 {
	pMin, pMax := w.BoundingBox()
	return r3.Norm(r3.Sub(pMax, pMin))
}

// Ring returns every vertex within n edge hops of the seed vertices, seeds included
func (w *WallMesh) Ring(seeds []int, n int) (ring []int) {
	var (
		seen     = make(map[int]bool, len(seeds)*8)
		frontier = make([]int, 0, len(seeds))
	)
	for _, s := range seeds {
		if !seen[s] {
			seen[s] = true
			frontier = append(frontier, s)
		}
	}
	ring = append(ring, frontier...)
	for hop := 0; hop < n; hop++ {
		var next []int
		for _, v := range frontier {
			for _, nb := range w.Neighbors(v) {
				if !seen[nb] {
					seen[nb] = true
					next = append(next, nb)
				}
			}
		}
		ring = append(ring, next...)
		frontier = next
	}
	return
}

// Tags returns the distinct face tags in ascending order
func (w *WallMesh) Tags() (tags []int) {
	tags = lo.Uniq(lo.Map(w.Faces, func(f Face, _ int) int { return f.Tag }))
	sort.Ints(tags)
	return
}

// Components labels each face with its edge-connected component
func (w *WallMesh) Components() (label []int, n int) {
	label = make([]int, len(w.Faces))
	for i := range label {
		label[i] = -1
	}
	for seed := range w.Faces {
		if label[seed] >= 0 {
			continue
		}
		stack := []int{seed}
		label[seed] = n
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, ei := range w.FaceEdges[f] {
				for _, g := range w.Edges[ei].Faces {
					if g >= 0 && label[g] < 0 {
						label[g] = n
						stack = append(stack, g)
					}
				}
			}
		}
		n++
	}
	return
}

// VertexNormal is the corner angle weighted average of the normals of the faces
// touching v. Vertices on the symmetry plane also count the mirror images of
// their faces, which keeps the result in the plane.
func (w *WallMesh) VertexNormal(v int) r3.Vec {
	var sum r3.Vec
	for _, f := range w.VertexFaces(v) {
		wt := w.CornerAngle(f, v)
		sum = r3.Add(sum, r3.Scale(wt, w.FaceNormals[f]))
		if w.OnSymmetry[v] {
			sum = r3.Add(sum, r3.Scale(wt, w.Sym.MirrorDir(w.FaceNormals[f])))
		}
	}
	return utils.SafeUnit(sum)
}
