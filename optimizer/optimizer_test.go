package optimizer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcEvaluator struct {
	dim int
	f   func(x, grad []float64) float64
}

func (fe funcEvaluator) Dim() int                           { return fe.dim }
func (fe funcEvaluator) Evaluate(x, grad []float64) float64 { return fe.f(x, grad) }

// Minimize (x-3)^2 + (y+1)^2 subject to x < 1, with a margin of 0.1 in the violation
type boundedQuadratic struct{}

func (boundedQuadratic) Objective() Evaluator {
	return funcEvaluator{2, func(x, grad []float64) float64 {
		if grad != nil {
			grad[0] = 2 * (x[0] - 3)
			grad[1] = 2 * (x[1] + 1)
		}
		return (x[0]-3)*(x[0]-3) + (x[1]+1)*(x[1]+1)
	}}
}

func (boundedQuadratic) Violation() Evaluator {
	return funcEvaluator{2, func(x, grad []float64) float64 {
		g := math.Max(0, x[0]-0.9) / 0.1
		if grad != nil {
			grad[0] = 2 * g / 0.1
			grad[1] = 0
		}
		return g * g
	}}
}

func (boundedQuadratic) Feasible(x []float64) bool { return x[0] < 1 }

func TestTwoStage(t *testing.T) {
	{ // Starts infeasible, ends on the feasible side near the bound
		res, err := TwoStage(boundedQuadratic{}, []float64{5, 5}, DefaultSettings(2*time.Second))
		require.NoError(t, err)
		assert.True(t, res.Feasible)
		assert.True(t, res.X[0] < 1)
		assert.True(t, res.X[0] > 0.85, "x = %v", res.X)
		assert.InDelta(t, -1, res.X[1], 1.e-3)
		assert.True(t, res.Outer > 0)
	}
	{ // Feasible start is never made worse
		x0 := []float64{0, 0}
		res, err := TwoStage(boundedQuadratic{}, x0, DefaultSettings(time.Second))
		require.NoError(t, err)
		f0 := boundedQuadratic{}.Objective().Evaluate(x0, nil)
		assert.True(t, res.Objective <= f0)
		assert.Equal(t, []float64{0, 0}, x0)
	}
	{
		_, err := TwoStage(boundedQuadratic{}, []float64{0, 0}, DefaultSettings(0))
		assert.Equal(t, ErrNoBudget, err)
	}
}

// The only way to satisfy the constraint is unreachable for gradient descent
type impossible struct{ boundedQuadratic }

func (impossible) Feasible(x []float64) bool { return false }

func TestTwoStageRejects(t *testing.T) {
	_, err := TwoStage(impossible{}, []float64{5, 5}, DefaultSettings(200*time.Millisecond))
	assert.Equal(t, ErrInfeasible, err)
}
