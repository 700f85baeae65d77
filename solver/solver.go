// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package solver solves milp models.
//
// The Solver interface is the boundary between model construction and search. BranchAndBound is
// the built-in backend: a depth-first branch-and-bound over LP relaxations solved with the gonum
// simplex. Solve and SolveWithParameters use it.
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/mixedroute/mixedroute/milp"
)

// Status is the outcome of a solve.
type Status int

const (
	// Unknown means the search stopped on a node limit before finding any solution.
	Unknown Status = iota
	// Optimal means the returned solution is optimal within the configured gap.
	Optimal
	// Feasible means the search stopped early with a solution whose gap is reported.
	Feasible
	// Infeasible means the model has no solution.
	Infeasible
	// Unbounded means the LP relaxation of the model is unbounded.
	Unbounded
	// Timeout means the time limit was reached before finding any solution.
	Timeout
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case Timeout:
		return "timeout"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// HasSolution returns true if a response with this status carries an assignment.
func (s Status) HasSolution() bool {
	return s == Optimal || s == Feasible
}

// Parameters configure a solve.
type Parameters struct {
	// TimeLimit bounds the wall time of the search. Zero means no limit.
	TimeLimit time.Duration
	// RelativeGap stops the search once |incumbent-bound| <= RelativeGap*|incumbent|.
	RelativeGap float64
	// AbsoluteGap stops the search once |incumbent-bound| <= AbsoluteGap.
	AbsoluteGap float64
	// IntegralityTolerance is the distance to the nearest integer under which a value counts as
	// integral.
	IntegralityTolerance float64
	// MaxNodes bounds the number of explored nodes. Zero means no limit.
	MaxNodes int
}

// DefaultParameters returns a 60 second time limit and a 1% relative gap.
func DefaultParameters() Parameters {
	return Parameters{
		TimeLimit:            60 * time.Second,
		RelativeGap:          0.01,
		AbsoluteGap:          1e-6,
		IntegralityTolerance: 1e-6,
	}
}

// Validate returns an error if a parameter is out of range.
func (p Parameters) Validate() error {
	switch {
	case p.TimeLimit < 0:
		return fmt.Errorf("negative time limit %v", p.TimeLimit)
	case p.RelativeGap < 0 || p.AbsoluteGap < 0:
		return fmt.Errorf("negative gap tolerance (relative %v, absolute %v)", p.RelativeGap, p.AbsoluteGap)
	case p.IntegralityTolerance < 0 || p.IntegralityTolerance >= 0.5:
		return fmt.Errorf("integrality tolerance %v not in [0,0.5)", p.IntegralityTolerance)
	case p.MaxNodes < 0:
		return fmt.Errorf("negative node limit %d", p.MaxNodes)
	}
	return nil
}

// Response is the result of a solve.
type Response struct {
	Status Status
	// ObjectiveValue is the objective of Values, in the sense of the model.
	ObjectiveValue float64
	// BestBound is the best proven bound on the optimal objective.
	BestBound float64
	// Gap is |ObjectiveValue-BestBound| relative to |ObjectiveValue|.
	Gap float64
	// Values is the assignment, indexed by milp.VarIndex. It is nil when Status.HasSolution() is
	// false.
	Values   []float64
	Nodes    int
	WallTime time.Duration
}

// InfeasibleModelError is returned by Response.Err when the solver proved that the model has no
// solution.
type InfeasibleModelError struct {
	Status Status
}

func (e *InfeasibleModelError) Error() string {
	return fmt.Sprintf("model has no feasible solution (status %v)", e.Status)
}

// Err returns an *InfeasibleModelError for infeasible and unbounded models, and nil otherwise. A
// timeout is not an error.
func (r *Response) Err() error {
	if r.Status == Infeasible || r.Status == Unbounded {
		return &InfeasibleModelError{Status: r.Status}
	}
	return nil
}

// Solver searches for an optimal assignment of a model.
type Solver interface {
	Solve(ctx context.Context, m *milp.Model, params Parameters) (*Response, error)
}

// Solve solves the model with the default parameters.
func Solve(ctx context.Context, m *milp.Model) (*Response, error) {
	return SolveWithParameters(ctx, m, DefaultParameters())
}

// SolveWithParameters solves the model with the branch-and-bound backend.
func SolveWithParameters(ctx context.Context, m *milp.Model, params Parameters) (*Response, error) {
	return BranchAndBound{}.Solve(ctx, m, params)
}

// SolutionValue returns the value of the linear argument under the response assignment.
func SolutionValue(r *Response, la milp.LinearArgument) float64 {
	return milp.SolutionValue(r.Values, la)
}

// SolutionBooleanValue returns the value of a binary variable under the response assignment.
func SolutionBooleanValue(r *Response, v milp.Var) bool {
	return SolutionValue(r, v) > 0.5
}
