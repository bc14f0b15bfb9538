package shell

import (
	"fmt"

	"github.com/notargets/prismlayer/mesh"
	"github.com/notargets/prismlayer/utils"
	"github.com/notargets/prismlayer/wall"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Section tags of the assembled mesh; wall sections use their face tag
const (
	InterfaceTag = 1000 + iota
	FarfieldTag
	SymmetryTag
)

// Node is the assembled mesh index of layer k of wall vertex v. Wall vertices
// keep their index and layers 1..N follow them, one block of NumVertices per layer.
func (st *State) Node(v, k int) int {
	if k == 0 {
		return v
	}
	return k*st.Wall.NumVertices() + v
}

/*
Assemble turns the extruded grid into a volume mesh: a PentaRegion of 6-node
prisms, one Wall_<tag> triangle section per wall tag, the Interface (envelope)
triangles with reversed winding, quads on the symmetry plane, and the optional
farfield surface with reversed winding. Diagnostic node fields are LocalHeight,
WallNormal and VertexCategory.
*/
func (st *State) Assemble(farfield *mesh.Mesh) (m *mesh.Mesh, err error) {
	if st.Grid == nil {
		return nil, errors.New("assemble called before extrusion")
	}
	var (
		w  = st.Wall
		g  = st.Grid
		nv = w.NumVertices()
		N  = g.NLayers
	)
	m = mesh.NewMesh()
	m.AddVertices(w.Vertices)
	layer := make([]r3.Vec, nv)
	for k := 1; k <= N; k++ {
		for v := range layer {
			layer[v] = g.At(v, k)
		}
		m.AddVertices(layer)
	}
	prisms := make([][]int, 0, w.NumFaces()*N)
	for k := 1; k <= N; k++ {
		for _, f := range w.Faces {
			a, b, c := f.Verts[0], f.Verts[1], f.Verts[2]
			prisms = append(prisms, []int{
				st.Node(a, k-1), st.Node(b, k-1), st.Node(c, k-1),
				st.Node(a, k), st.Node(b, k), st.Node(c, k),
			})
		}
	}
	m.AddSection("PentaRegion", utils.Prism, 0, prisms)

	byTag := lo.GroupBy(w.Faces, func(f wall.Face) int { return f.Tag })
	for _, tag := range w.Tags() {
		conn := lo.Map(byTag[tag], func(f wall.Face, _ int) []int { return []int{f.Verts[0], f.Verts[1], f.Verts[2]} })
		m.AddSection(fmt.Sprintf("Wall_%d", tag), utils.Triangle, tag, conn)
	}
	m.AddSection("Interface", utils.Triangle, InterfaceTag, lo.Map(w.Faces, func(f wall.Face, _ int) []int {
		return []int{st.Node(f.Verts[0], N), st.Node(f.Verts[2], N), st.Node(f.Verts[1], N)}
	}))
	if w.Sym.Active() {
		var quads [][]int
		for _, e := range w.Edges {
			if !e.IsBoundary() {
				continue
			}
			a, b := e.Verts[0], e.Verts[1]
			for k := 1; k <= N; k++ {
				quads = append(quads, []int{st.Node(a, k-1), st.Node(b, k-1), st.Node(b, k), st.Node(a, k)})
			}
		}
		m.AddSection("Symmetry", utils.Quad, SymmetryTag, quads)
	}
	if farfield != nil {
		pts, tris, _, ferr := farfield.Triangles()
		if ferr != nil {
			return nil, errors.Wrap(ferr, "farfield surface")
		}
		offset := m.AddVertices(pts)
		m.AddSection("Farfield", utils.Triangle, FarfieldTag, lo.Map(tris, func(t [3]int, _ int) []int {
			return []int{offset + t[0], offset + t[2], offset + t[1]}
		}))
	}
	st.addNodeFields(m)
	return
}

func (st *State) addNodeFields(m *mesh.Mesh) {
	var (
		nNodes   = len(m.Vertices)
		nv       = st.Wall.NumVertices()
		g        = st.Grid
		height   = make([]float64, nNodes)
		normal   = make([]float64, 3*nNodes)
		category = utils.ConstArray(nNodes, -1)
	)
	for v := 0; v < nv; v++ {
		n := st.Normals[v]
		for k := 0; k <= g.NLayers; k++ {
			node := st.Node(v, k)
			kc := k
			if kc == 0 {
				kc = 1
			}
			height[node] = r3.Norm(r3.Sub(g.At(v, kc), g.At(v, kc-1)))
			normal[3*node], normal[3*node+1], normal[3*node+2] = n.X, n.Y, n.Z
			category[node] = float64(st.Class.Vertices[v].Index())
		}
	}
	m.AddNodeField("LocalHeight", 1, height)
	m.AddNodeField("WallNormal", 3, normal)
	m.AddNodeField("VertexCategory", 1, category)
}

// EnvelopeSurface is the envelope as a standalone triangle surface for
// refinement by an external mesher. Triangles are wound like the wall and
// grouped into one Envelope_<tag> section per wall tag.
func (st *State) EnvelopeSurface() (m *mesh.Mesh) {
	m = mesh.NewMesh()
	m.AddVertices(st.Envelope)
	byTag := lo.GroupBy(st.Wall.Faces, func(f wall.Face) int { return f.Tag })
	for _, tag := range st.Wall.Tags() {
		m.AddSection(fmt.Sprintf("Envelope_%d", tag), utils.Triangle, tag, lo.Map(byTag[tag], func(f wall.Face, _ int) []int {
			return []int{f.Verts[0], f.Verts[1], f.Verts[2]}
		}))
	}
	return
}

// HolePoints returns one point inside the prism layer of every connected wall
// component, the centroid of the first prism of the component
func (st *State) HolePoints() (holes []r3.Vec) {
	label, n := st.Wall.Components()
	for comp := 0; comp < n; comp++ {
		f := lo.IndexOf(label, comp)
		p, q := st.prismPoints(f)
		c := r3.Add(utils.TriangleCentroid(p[0], p[1], p[2]), utils.TriangleCentroid(q[0], q[1], q[2]))
		holes = append(holes, r3.Scale(0.5, c))
	}
	return
}
