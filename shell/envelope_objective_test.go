package shell

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/notargets/prismlayer/InputParameters"
	"github.com/notargets/prismlayer/optimizer"
	"github.com/notargets/prismlayer/wall"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

func checkGradient(t *testing.T, name string, e optimizer.Evaluator, x []float64) {
	var (
		grad = make([]float64, len(x))
		step = 1.e-7
	)
	e.Evaluate(x, grad)
	for i := range x {
		xp := append([]float64{}, x...)
		xm := append([]float64{}, x...)
		xp[i] += step
		xm[i] -= step
		fd := (e.Evaluate(xp, nil) - e.Evaluate(xm, nil)) / (2 * step)
		assert.InDelta(t, fd, grad[i], 1.e-5*math.Max(1, math.Abs(fd)), "%s: d/dx[%d]", name, i)
	}
}

func TestEnvelopeGradients(t *testing.T) {
	var (
		w  = wall.Box(2, 2, 2, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
		ep = newEnvelopeProblem(st)
		x  = ep.start()
		rd = rand.New(rand.NewSource(1))
	)
	for i := range x {
		x[i] += 0.1 * ep.h0[i/3] * (rd.Float64() - 0.5)
	}
	checkGradient(t, "quality", ep.Objective(), x)
	// Shrink a few heights until their corner volumes fall below the margin
	for _, v := range []int{0, 5, 9} {
		x[3*v+2] = 1.e-3 * ep.h0[v]
	}
	require.True(t, ep.Violation().Evaluate(x, nil) > 0)
	checkGradient(t, "violation", ep.Violation(), x)
}

func TestEnvelopeFeasibility(t *testing.T) {
	var (
		w  = wall.Box(2, 2, 2, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
		ep = newEnvelopeProblem(st)
		x  = ep.start()
	)
	assert.True(t, ep.Feasible(x))
	assert.Equal(t, 0., ep.Violation().Evaluate(x, nil))
	// Zero tangential offsets reproduce the repaired envelope
	for v, q := range ep.points(x) {
		assert.InDelta(t, 0., r3.Norm(r3.Sub(q, st.Envelope[v])), 1.e-14)
	}
	x[2] = -x[2]
	assert.False(t, ep.Feasible(x))
}

func TestOptimizeCommit(t *testing.T) {
	var (
		w  = wall.LBlock(4, 3, 4, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
	)
	pp.MaxOptimizationTime = 1
	st.Repair()
	var (
		ep  = newEnvelopeProblem(st)
		env = append([]r3.Vec{}, st.Envelope...)
	)
	committed := st.Optimize()
	assert.Equal(t, 0, st.validEnvelope(st.Envelope))
	assert.Empty(t, st.NegativeVolumes())
	if committed {
		// The committed envelope is a feasible point of the problem
		var x []float64
		for v, q := range st.Envelope {
			d := r3.Sub(q, w.Vertices[v])
			x = append(x, r3.Dot(d, ep.t1[v]), r3.Dot(d, ep.t2[v]), r3.Dot(d, st.Normals[v]))
		}
		assert.True(t, ep.Feasible(x))
	} else {
		assert.Equal(t, env, st.Envelope)
	}
	require.NoError(t, st.Extrude())
	assert.True(t, floats.Min(st.Heights) > 0)
}

// neverFeasible fails every iterate, so the first stage cannot succeed
type neverFeasible struct{ *envelopeProblem }

func (neverFeasible) Feasible([]float64) bool { return false }

// sinkingHeights accepts every iterate while pulling all heights to -1
type sinkingHeights struct{ *envelopeProblem }

func (sh sinkingHeights) Objective() optimizer.Evaluator { return heightSink{sh.Dim()} }
func (sh sinkingHeights) Violation() optimizer.Evaluator { return zeroEvaluator{sh.Dim()} }
func (sinkingHeights) Feasible([]float64) bool           { return true }

type heightSink struct{ n int }

func (hs heightSink) Dim() int { return hs.n }
func (hs heightSink) Evaluate(x, grad []float64) (val float64) {
	for i := range grad {
		grad[i] = 0
	}
	for i := 2; i < len(x); i += 3 {
		r := x[i] + 1
		val += r * r
		if grad != nil {
			grad[i] = 2 * r
		}
	}
	return
}

type zeroEvaluator struct{ n int }

func (z zeroEvaluator) Dim() int { return z.n }
func (z zeroEvaluator) Evaluate(_, grad []float64) float64 {
	for i := range grad {
		grad[i] = 0
	}
	return 0
}

func TestOptimizeDiscard(t *testing.T) {
	var (
		w  = wall.Box(2, 2, 2, 1)
		pp = InputParameters.NewPrismParameters()
		st = newTestState(t, w, pp)
	)
	pp.MaxOptimizationTime = 0.2
	st.Repair()
	env := append([]r3.Vec{}, st.Envelope...)
	h := copyHeights(st.Heights)
	{ // The solver reports an infeasible problem
		ep := newEnvelopeProblem(st)
		assert.False(t, st.optimize(ep, neverFeasible{ep}))
		assert.Equal(t, env, st.Envelope)
	}
	{ // The solver result fails prism validation
		ep := newEnvelopeProblem(st)
		res, err := optimizer.TwoStage(sinkingHeights{ep}, ep.start(), optimizer.DefaultSettings(200*time.Millisecond))
		require.NoError(t, err)
		require.True(t, st.validEnvelope(ep.points(res.X)) > 0)
		assert.False(t, st.optimize(ep, sinkingHeights{ep}))
		assert.Equal(t, env, st.Envelope)
	}
	{ // No budget
		pp.MaxOptimizationTime = 0
		assert.False(t, st.Optimize())
		assert.Equal(t, env, st.Envelope)
	}
	assert.Equal(t, h, st.Heights)
	assert.Equal(t, 0, st.validEnvelope(st.Envelope))
}
