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

package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	log "github.com/golang/glog"
	"github.com/mixedroute/mixedroute/milp"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// BranchAndBound is a depth-first branch-and-bound solver. It branches on the most fractional
// integral variable by tightening its bounds, and explores first the child on the side the
// relaxation leans to.
type BranchAndBound struct{}

type node struct {
	bounds []milp.ClosedInterval
	// warm is the optimal basis of the parent relaxation.
	warm *basis
	// bound is the relaxation value of the parent, a lower bound for the node.
	bound float64
	depth int
}

// mostFractional returns the integral variable whose value is farthest from an integer, and -1
// if all are integral within `tol`. Ties go to the lowest index.
func mostFractional(x []float64, integral []bool, tol float64) int {
	best, bestDist := -1, tol
	for j, v := range x {
		if !integral[j] {
			continue
		}
		d := math.Abs(v - math.Round(v))
		if d > bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func relativeGap(incumbent, bound float64) float64 {
	return math.Abs(incumbent-bound) / (1e-10 + math.Abs(incumbent))
}

// Solve runs the search until the open nodes are exhausted or the gap is closed, the time limit
// elapses, `ctx` is done or the node limit is reached.
func (BranchAndBound) Solve(ctx context.Context, m *milp.Model, params Parameters) (*Response, error) {
	start := time.Now()
	if m == nil {
		return nil, errors.New("nil model")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.TimeLimit)
		defer cancel()
	}

	p := newProblem(m, params.IntegralityTolerance)
	sign := 1.0
	if m.Objective.Maximize {
		sign = -1
	}
	var (
		incumbent []float64
		incObj    = math.Inf(1)
		nodes     int
		stopped   bool
		timedOut  bool
	)
	// closed returns true when no node with relaxation value `bound` can improve the incumbent by
	// more than the gap tolerances.
	closed := func(bound float64) bool {
		if incumbent == nil {
			return false
		}
		slack := math.Max(params.AbsoluteGap, params.RelativeGap*math.Abs(incObj))
		return bound >= incObj-slack
	}
	open := []node{{bounds: p.root, bound: math.Inf(-1)}}
	for len(open) > 0 {
		if ctx.Err() != nil {
			stopped, timedOut = true, true
			break
		}
		if params.MaxNodes > 0 && nodes >= params.MaxNodes {
			stopped = true
			break
		}
		nd := open[len(open)-1]
		open = open[:len(open)-1]
		if closed(nd.bound) {
			continue
		}
		nodes++
		x, z, warm, err := p.solve(nd.bounds, nd.warm)
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			log.V(2).Infof("Node %d (depth %d): infeasible", nodes, nd.depth)
			continue
		case errors.Is(err, lp.ErrUnbounded):
			if nd.depth == 0 {
				return &Response{Status: Unbounded, Nodes: nodes, WallTime: time.Since(start)}, nil
			}
			continue
		case err != nil:
			return nil, fmt.Errorf("node %d: %w", nodes, err)
		}
		if closed(z) {
			continue
		}
		j := mostFractional(x, p.integral, params.IntegralityTolerance)
		if j < 0 {
			for k, v := range x {
				if p.integral[k] {
					x[k] = math.Round(v)
				}
			}
			incumbent, incObj = x, p.objective(x)
			log.V(1).Infof("Node %d (depth %d): new incumbent %v", nodes, nd.depth, sign*incObj)
			continue
		}
		down := slices.Clone(nd.bounds)
		down[j] = milp.NewInterval(down[j].Start, math.Floor(x[j]))
		up := slices.Clone(nd.bounds)
		up[j] = milp.NewInterval(math.Ceil(x[j]), up[j].End)
		children := []node{
			{bounds: down, bound: z, depth: nd.depth + 1},
			{bounds: up, bound: z, depth: nd.depth + 1},
		}
		// The preferred child is pushed last and explored first. It takes over the tableau of
		// this node.
		if x[j]-math.Floor(x[j]) < 0.5 {
			children[0], children[1] = children[1], children[0]
		}
		children[0].warm, children[1].warm = warm.withoutTableau(), warm
		open = append(open, children...)
	}

	r := &Response{Nodes: nodes, WallTime: time.Since(start)}
	bound := math.Inf(1)
	for _, nd := range open {
		bound = math.Min(bound, nd.bound)
	}
	switch {
	case incumbent != nil:
		bound = math.Min(bound, incObj)
		r.Values = incumbent
		r.ObjectiveValue = sign * incObj
		r.BestBound = sign * bound
		r.Gap = relativeGap(incObj, bound)
		r.Status = Optimal
		if stopped && !closed(bound) {
			r.Status = Feasible
		}
	case stopped && timedOut:
		r.Status = Timeout
	case stopped:
		r.Status = Unknown
	default:
		r.Status = Infeasible
	}
	if r.Status.HasSolution() {
		if vs, _ := m.Violations(r.Values, 1e-6); len(vs) > 0 {
			log.Warningf("Solution violates %d requirements, first: %v", len(vs), vs[0])
		}
	}
	log.V(1).Infof("Solve finished: status %v, objective %v, bound %v, %d nodes in %v",
		r.Status, r.ObjectiveValue, r.BestBound, r.Nodes, r.WallTime)
	return r, nil
}
