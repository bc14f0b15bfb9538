package shell

import (
	"github.com/notargets/prismlayer/InputParameters"
	"github.com/notargets/prismlayer/classify"
	"github.com/notargets/prismlayer/utils"
	"github.com/notargets/prismlayer/wall"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/spatial/r3"
)

// Empirical tuning constants, validated against the reference surfaces
const (
	SmoothingWeightBase  = 1.2   // Neighbor weight is SmoothingWeightBase - n_v.n_j
	UntangleOvershoot    = 1.125 // Heights are kept this factor below a crossing point
	CollisionNormalCos   = 0.5   // Envelope vertices with more aligned normals never collide
	CollisionExcludeRing = 1     // Topological neighbors closer than this are left to untangle
	UnwarpBisectionSteps = 8
	RetractionBisection  = 20
	RepairRounds         = 3
	MinRetraction        = 1. / 256.
)

/*
State is the working set of one generation run. Each stage of the pipeline
reads the fields filled in by the stages before it:

	Classify -> BuildFields -> Repair -> Optimize -> Extrude -> Assemble
*/
type State struct {
	Wall              *wall.WallMesh
	Params            *InputParameters.PrismParameters
	Class             *classify.Classification
	Normals           []r3.Vec  // Unit growth direction per wall vertex
	Heights           []float64 // Current offset of the envelope
	Targets           []float64 // Desired offset before repair
	Envelope          []r3.Vec
	InvGrowthExponent []float64 // Curvature control of curved growth, per vertex
	AllowedCos        []float64 // Cosine of the allowed cone between growth direction and incident face normals
	RidgeTangent      []r3.Vec  // Ridge direction at ridge vertices, zero elsewhere
	Grid              *PrismGrid
	pm                *utils.PartitionMap // Vertices
	fpm               *utils.PartitionMap // Faces
}

func NewState(w *wall.WallMesh, pp *InputParameters.PrismParameters) (st *State) {
	nv := w.NumVertices()
	st = &State{
		Wall:              w,
		Params:            pp,
		Normals:           make([]r3.Vec, nv),
		Heights:           make([]float64, nv),
		Targets:           make([]float64, nv),
		Envelope:          make([]r3.Vec, nv),
		InvGrowthExponent: utils.ConstArray(nv, pp.WallNormalTransition),
		AllowedCos:        make([]float64, nv),
		RidgeTangent:      make([]r3.Vec, nv),
		pm:                utils.NewPartitionMap(pp.Threads, nv),
		fpm:               utils.NewPartitionMap(pp.Threads, w.NumFaces()),
	}
	return
}

// Generate runs the pipeline up to and including extrusion
func Generate(w *wall.WallMesh, pp *InputParameters.PrismParameters) (st *State, err error) {
	if err = pp.Validate(); err != nil {
		return
	}
	if axis := pp.SymmetryAxis(); axis != w.Sym.Axis || (axis >= 0 && pp.SymmetryOffset != w.Sym.Offset) {
		err = errors.Errorf("wall symmetry plane %+v does not match configured plane %q at %g",
			w.Sym, pp.SymmetryPlane, pp.SymmetryOffset)
		return
	}
	st = NewState(w, pp)
	if err = st.Classify(); err != nil {
		return
	}
	st.BuildFields()
	st.Repair()
	if pp.MaxOptimizationTime > 0 {
		st.Optimize()
	}
	err = st.Extrude()
	return
}

func (st *State) Classify() (err error) {
	st.Class, err = classify.Classify(st.Wall, st.Params.FeatureAngle, st.Params.SharpEdgeAngle)
	if err != nil {
		return errors.Wrap(err, "wall classification failed")
	}
	for cat, n := range st.Class.Counts() {
		jww.DEBUG.Printf("%-24s %d vertices\n", cat, n)
	}
	return
}

// UpdateEnvelope recomputes the envelope from heights and normals
func (st *State) UpdateEnvelope() {
	st.pm.ParallelFor(func(_, kMin, kMax int) {
		for v := kMin; v < kMax; v++ {
			st.Envelope[v] = st.envelopePoint(v, st.Heights[v])
		}
	})
}

func (st *State) envelopePoint(v int, h float64) r3.Vec {
	return r3.Add(st.Wall.Vertices[v], r3.Scale(h, st.Normals[v]))
}

// prismPoints returns the base and envelope triangles of face f
func (st *State) prismPoints(f int) (p, q [3]r3.Vec) {
	for i, v := range st.Wall.Faces[f].Verts {
		p[i] = st.Wall.Vertices[v]
		q[i] = st.Envelope[v]
	}
	return
}

// constrainNormal keeps symmetry plane vertices growing inside the plane
func (st *State) constrainNormal(v int, n r3.Vec) r3.Vec {
	if st.Wall.OnSymmetry[v] {
		n = st.Wall.Sym.InPlane(n)
	}
	return utils.SafeUnit(n)
}

// sees reports whether n lies within the cone cosLimit of every face touching v
func (st *State) sees(v int, n r3.Vec, cosLimit float64) bool {
	for _, f := range st.Wall.VertexFaces(v) {
		if r3.Dot(n, st.Wall.FaceNormals[f]) <= cosLimit {
			return false
		}
	}
	return true
}

func copyHeights(h []float64) []float64 {
	c := make([]float64, len(h))
	copy(c, h)
	return c
}
