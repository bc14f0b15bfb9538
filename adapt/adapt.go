package adapt

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/notargets/prismlayer/types"
	"github.com/notargets/prismlayer/utils"
	"github.com/notargets/prismlayer/wall"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrTagMismatch = errors.New("refined surface marker is not a wall tag")

const (
	// Number of bounding box neighbors taken before the exact refinement
	nearestCandidates = 8
	// Minimum R-tree box extent, flat triangles have a zero-length side
	minExtent = 1.e-12
)

// envelopeTri is an R-tree entry for one pre-refinement envelope triangle
type envelopeTri struct {
	face int
	pts  [3]r3.Vec
	rect rtreego.Rect
}

func (t *envelopeTri) Bounds() rtreego.Rect { return t.rect }

func newEnvelopeTri(face int, a, b, c r3.Vec) (t *envelopeTri, err error) {
	t = &envelopeTri{face: face, pts: [3]r3.Vec{a, b, c}}
	pMin, pMax := wall.BoundingBox(t.pts[:])
	lengths := []float64{
		math.Max(pMax.X-pMin.X, minExtent),
		math.Max(pMax.Y-pMin.Y, minExtent),
		math.Max(pMax.Z-pMin.Z, minExtent),
	}
	t.rect, err = rtreego.NewRect(rtreego.Point{pMin.X, pMin.Y, pMin.Z}, lengths)
	return
}

func (t *envelopeTri) closest(p r3.Vec) (q r3.Vec, bary [3]float64, d float64) {
	q, bary = utils.ClosestPointOnTriangle(p, t.pts[0], t.pts[1], t.pts[2])
	return q, bary, r3.Norm(r3.Sub(p, q))
}

// Locator finds the nearest point of the old envelope to points of a refined one
type Locator struct {
	tree *rtreego.Rtree
	tris []*envelopeTri
}

func NewLocator(w *wall.WallMesh, envelope []r3.Vec) (l *Locator, err error) {
	if len(envelope) != w.NumVertices() {
		return nil, errors.Errorf("envelope has %d points, wall has %d vertices", len(envelope), w.NumVertices())
	}
	l = &Locator{tris: make([]*envelopeTri, w.NumFaces())}
	objs := make([]rtreego.Spatial, w.NumFaces())
	for f, face := range w.Faces {
		v := face.Verts
		if l.tris[f], err = newEnvelopeTri(f, envelope[v[0]], envelope[v[1]], envelope[v[2]]); err != nil {
			return nil, errors.Wrapf(err, "envelope triangle %d", f)
		}
		objs[f] = l.tris[f]
	}
	l.tree = rtreego.NewTree(3, 25, 50, objs...)
	return
}

/*
Nearest returns the envelope triangle closest to p and the barycentric
coordinates of the closest point on it. Bounding box distance bounds the true
distance from below, so after the k box-nearest candidates give a distance d
every closer triangle has a box meeting the cube of half width d around p.
*/
func (l *Locator) Nearest(p r3.Vec) (face int, bary [3]float64, dist float64) {
	var (
		pt   = rtreego.Point{p.X, p.Y, p.Z}
		best = math.Inf(1)
	)
	face = -1
	consider := func(objs []rtreego.Spatial) {
		for _, o := range objs {
			t, ok := o.(*envelopeTri)
			if !ok {
				continue
			}
			if _, b, d := t.closest(p); d < best || (d == best && t.face < face) {
				face, bary, best = t.face, b, d
			}
		}
	}
	consider(l.tree.NearestNeighbors(nearestCandidates, pt))
	if face < 0 {
		return -1, bary, best
	}
	half := math.Max(best, minExtent)
	lengths := []float64{2 * half, 2 * half, 2 * half}
	if box, err := rtreego.NewRect(rtreego.Point{p.X - half, p.Y - half, p.Z - half}, lengths); err == nil {
		consider(l.tree.SearchIntersect(box))
	}
	return face, bary, best
}

/*
AdaptWall rebuilds the wall under a refined envelope surface. Refined vertices
that coincide exactly with a pre-refinement envelope point map to the matching
wall vertex. Any other refined vertex is projected to the nearest
pre-refinement envelope triangle and placed on the corresponding wall triangle
at the same barycentric coordinates. Every refined face must carry one of the
wall tags, or no tag, and takes the tag of the envelope triangle nearest its
centroid.
*/
func AdaptWall(old *wall.WallMesh, envelope []r3.Vec, pts []r3.Vec, tris [][3]int, tags []int) (w *wall.WallMesh, err error) {
	var (
		l      *Locator
		known  = lo.SliceToMap(old.Tags(), func(t int) (int, bool) { return t, true })
		index  = make(map[r3.Vec]int, len(envelope))
		verts  = make([]r3.Vec, len(pts))
		faces  = make([]wall.Face, len(tris))
		seen   = make(map[types.FaceKey]int, len(tris))
		nExact int
	)
	if l, err = NewLocator(old, envelope); err != nil {
		return
	}
	for v, p := range envelope {
		index[p] = v
	}
	for i, p := range pts {
		if v, ok := index[p]; ok {
			verts[i] = old.Vertices[v]
			nExact++
			continue
		}
		f, bary, _ := l.Nearest(p)
		if f < 0 {
			return nil, errors.Errorf("no envelope triangle near refined vertex %d", i)
		}
		fp := old.FacePoints(f)
		verts[i] = utils.Barycentric(fp[0], fp[1], fp[2], bary)
		if old.Sym.Active() && old.Sym.Distance(p) == 0 {
			verts[i] = old.Sym.Project(verts[i])
		}
	}
	for i, t := range tris {
		if tags[i] > 0 && !known[tags[i]] {
			return nil, errors.Wrapf(ErrTagMismatch, "face %d marker %d", i, tags[i])
		}
		key := types.NewFaceKey(t)
		if prev, ok := seen[key]; ok {
			return nil, errors.Errorf("refined faces %d and %d share the vertices %v", prev, i, t)
		}
		seen[key] = i
		centroid := r3.Scale(1./3, r3.Add(pts[t[0]], r3.Add(pts[t[1]], pts[t[2]])))
		src, _, _ := l.Nearest(centroid)
		faces[i] = wall.Face{Verts: t, Tag: old.Faces[src].Tag}
	}
	jww.INFO.Printf("Adapted wall: %d vertices, %d matched exactly, %d faces\n", len(pts), nExact, len(tris))
	if w, err = wall.NewWallMesh(verts, faces, old.Sym); err != nil {
		return nil, errors.Wrap(err, "adapted wall")
	}
	return
}
