package optimizer

import (
	"math"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Evaluator is a differentiable scalar function of a flat variable vector
type Evaluator interface {
	Dim() int
	// Evaluate returns f(x), and writes df/dx into grad when grad is not nil
	Evaluate(x, grad []float64) float64
}

// Problem couples an objective with inequality constraints. Violation is a
// smooth measure of how far x is from satisfying the constraints with margin,
// zero when it does. Feasible is the strict test an accepted iterate must pass.
type Problem interface {
	Objective() Evaluator
	Violation() Evaluator
	Feasible(x []float64) bool
}

var (
	ErrInfeasible = errors.New("constraint violation remains after the feasibility stage")
	ErrNoBudget   = errors.New("optimization budget is not positive")
)

type Settings struct {
	Budget          time.Duration
	Verbose         bool
	MaxOuter        int     // Penalty updates in the second stage
	InitialPenalty  float64 // Penalty weight of the first outer step
	PenaltyGrowth   float64
	MajorIterations int // Inner solver iteration cap per outer step, 0 is unlimited
}

func DefaultSettings(budget time.Duration) Settings {
	return Settings{
		Budget:          budget,
		MaxOuter:        8,
		InitialPenalty:  1,
		PenaltyGrowth:   10,
		MajorIterations: 500,
	}
}

type Result struct {
	X         []float64
	Objective float64
	Violation float64
	Feasible  bool
	Outer     int // Penalty steps that produced a feasible iterate
}

func problemOf(e Evaluator) optimize.Problem {
	return optimize.Problem{
		Func: func(x []float64) float64 { return e.Evaluate(x, nil) },
		Grad: func(grad, x []float64) { e.Evaluate(x, grad) },
	}
}

// penalized is f + mu*V
type penalized struct {
	f, v Evaluator
	mu   float64
	buf  []float64
}

func (p *penalized) Dim() int { return p.f.Dim() }

func (p *penalized) Evaluate(x, grad []float64) float64 {
	if grad == nil {
		return p.f.Evaluate(x, nil) + p.mu*p.v.Evaluate(x, nil)
	}
	if len(p.buf) != len(grad) {
		p.buf = make([]float64, len(grad))
	}
	val := p.f.Evaluate(x, grad)
	val += p.mu * p.v.Evaluate(x, p.buf)
	floats.AddScaled(grad, p.mu, p.buf)
	return val
}

func minimize(e Evaluator, x0 []float64, runtime time.Duration, majorIterations int, method optimize.Method) (x []float64, f float64) {
	settings := &optimize.Settings{
		Runtime:           runtime,
		MajorIterations:   majorIterations,
		GradientThreshold: 1.e-12,
	}
	result, err := optimize.Minimize(problemOf(e), x0, settings, method)
	if result == nil {
		jww.DEBUG.Printf("optimizer: inner solve produced no result: %v\n", err)
		return x0, e.Evaluate(x0, nil)
	}
	if err != nil {
		jww.DEBUG.Printf("optimizer: inner solve stopped with status %v: %v\n", result.Status, err)
	}
	return result.X, result.F
}

/*
TwoStage first drives the constraint violation of x0 to zero by gradient
descent for half the budget and fails with ErrInfeasible when it cannot. The
second stage minimizes the objective under the constraints with a sequence of
penalty problems solved by L-BFGS, keeping the last feasible iterate, until the
budget or the penalty schedule runs out.
*/
func TwoStage(p Problem, x0 []float64, s Settings) (res Result, err error) {
	if s.Budget <= 0 {
		return res, ErrNoBudget
	}
	var (
		start     = time.Now()
		deadline  = start.Add(s.Budget)
		objective = p.Objective()
		violation = p.Violation()
		x         = make([]float64, len(x0))
		logf      = jww.DEBUG.Printf
	)
	if s.Verbose {
		logf = jww.INFO.Printf
	}
	copy(x, x0)
	if v := violation.Evaluate(x, nil); v > 0 || !p.Feasible(x) {
		x, v = minimize(violation, x, s.Budget/2, s.MajorIterations, &optimize.GradientDescent{})
		logf("optimizer stage 1: violation %g after %v\n", v, time.Since(start))
		if !p.Feasible(x) {
			res.X, res.Violation = x, v
			return res, ErrInfeasible
		}
	}
	res = Result{
		X:         append([]float64{}, x...),
		Objective: objective.Evaluate(x, nil),
		Violation: violation.Evaluate(x, nil),
		Feasible:  true,
	}
	mu := s.InitialPenalty
	for outer := 0; outer < s.MaxOuter; outer++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		pen := &penalized{f: objective, v: violation, mu: mu}
		xk, _ := minimize(pen, x, remaining/time.Duration(s.MaxOuter-outer), s.MajorIterations, &optimize.LBFGS{})
		fk := objective.Evaluate(xk, nil)
		if p.Feasible(xk) && !math.IsNaN(fk) {
			res.X = append(res.X[:0], xk...)
			res.Objective = fk
			res.Violation = violation.Evaluate(xk, nil)
			res.Outer = outer + 1
			x = xk
		}
		logf("optimizer stage 2 step %d: penalty %g objective %g feasible %v\n", outer, mu, fk, p.Feasible(xk))
		mu *= s.PenaltyGrowth
	}
	return
}
