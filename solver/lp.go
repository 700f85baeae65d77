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
	"errors"
	"fmt"
	"math"
	"slices"

	log "github.com/golang/glog"
	"github.com/mixedroute/mixedroute/milp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	simplexTolerance     = 1e-10
	feasibilityTolerance = 1e-9
)

// problem is the minimization form of a model. Rows with a single term are folded into the root
// bounds.
type problem struct {
	cost     []float64
	offset   float64
	rows     []milp.Row
	integral []bool
	root     []milp.ClosedInterval
	// a is `[A -I]` over the remaining rows, nil without rows.
	a *mat.Dense
}

func newProblem(m *milp.Model, intTol float64) *problem {
	n := len(m.Variables)
	p := &problem{
		cost:     make([]float64, n),
		integral: make([]bool, n),
		root:     make([]milp.ClosedInterval, n),
	}
	sign := 1.0
	if m.Objective.Maximize {
		sign = -1
	}
	for _, t := range m.Objective.Terms {
		p.cost[t.Var] += sign * t.Coeff
	}
	p.offset = sign * m.Objective.Offset
	for j, v := range m.Variables {
		p.integral[j] = v.Type.IsIntegral()
		p.root[j] = v.Bounds
	}
	for _, r := range m.Constraints {
		if len(r.Terms) != 1 || r.Terms[0].Coeff == 0 {
			p.rows = append(p.rows, r)
			continue
		}
		t := r.Terms[0]
		lo, hi := r.Bounds.Start/t.Coeff, r.Bounds.End/t.Coeff
		if t.Coeff < 0 {
			lo, hi = hi, lo
		}
		p.root[t.Var] = p.root[t.Var].Intersect(milp.NewInterval(lo, hi))
	}
	for j := range p.root {
		if p.integral[j] {
			p.root[j] = roundInward(p.root[j], intTol)
		}
	}
	if len(p.rows) > 0 {
		p.a = mat.NewDense(len(p.rows), n+len(p.rows), nil)
		for i, r := range p.rows {
			for _, t := range r.Terms {
				p.a.Set(i, int(t.Var), p.a.At(i, int(t.Var))+t.Coeff)
			}
			p.a.Set(i, n+i, -1)
		}
	}
	return p
}

// roundInward shrinks the interval to its integral points.
func roundInward(c milp.ClosedInterval, tol float64) milp.ClosedInterval {
	return milp.NewInterval(math.Ceil(c.Start-tol), math.Floor(c.End+tol))
}

func (p *problem) objective(x []float64) float64 {
	z := p.offset
	for j, c := range p.cost {
		z += c * x[j]
	}
	return z
}

// column is a non-negative simplex column standing for `sign*(x[v]-shift[v])`.
type column struct {
	v    int
	sign float64
}

// solve returns an optimal solution of the LP relaxation under `bounds`, its objective value and
// the optimal basis. The simplex starts from `warm` when it is not nil. The error is
// lp.ErrInfeasible or lp.ErrUnbounded when the relaxation has no optimum.
func (p *problem) solve(bounds []milp.ClosedInterval, warm *basis) ([]float64, float64, *basis, error) {
	for _, b := range bounds {
		if b.IsEmpty() {
			return nil, 0, nil, lp.ErrInfeasible
		}
	}
	if p.a == nil {
		x, err := p.solveBox(bounds)
		if err != nil {
			return nil, 0, nil, err
		}
		return x, p.objective(x), nil, nil
	}
	n, m := len(p.cost), len(p.rows)
	cost := make([]float64, n+m)
	copy(cost, p.cost)
	lo, hi := make([]float64, n+m), make([]float64, n+m)
	for j, b := range bounds {
		lo[j], hi[j] = b.Start, b.End
	}
	for i, r := range p.rows {
		lo[n+i], hi[n+i] = r.Bounds.Start, r.Bounds.End
	}
	s := newSimplex(p.a, cost, lo, hi)
	err := s.start(warm)
	if err == nil {
		err = s.run()
	}
	switch {
	case err == nil:
		x := slices.Clone(s.x[:n])
		return x, p.objective(x), s.basis(), nil
	case errors.Is(err, lp.ErrInfeasible) || errors.Is(err, lp.ErrUnbounded):
		return nil, 0, nil, err
	}
	log.Warningf("Bounded simplex failed (%v), solving the %dx%d relaxation from scratch", err, m, n)
	x, z, err := p.solveDense(bounds)
	return x, z, nil, err
}

// solveBox solves a relaxation without rows: every variable sits on the bound its cost prefers.
func (p *problem) solveBox(bounds []milp.ClosedInterval) ([]float64, error) {
	x := make([]float64, len(bounds))
	for j, b := range bounds {
		c := p.cost[j]
		switch {
		case c > 0 && !b.HasLower(), c < 0 && !b.HasUpper():
			return nil, lp.ErrUnbounded
		case c < 0 || !b.HasLower() && b.HasUpper():
			x[j] = b.End
		case b.HasLower():
			x[j] = b.Start
		}
	}
	return x, nil
}

// solveDense returns an optimal solution of the LP relaxation under `bounds` and its objective
// value with the dense gonum simplex, without warm start.
//
// The relaxation is brought into the standard form `min c'x s.t. [G I][x s] = h, x,s >= 0`:
// every variable is shifted onto its finite bound, every row side and every finite range becomes
// a row of G. The slack identity keeps the matrix at full row rank.
func (p *problem) solveDense(bounds []milp.ClosedInterval) ([]float64, float64, error) {
	n := len(p.cost)
	shift := make([]float64, n)
	colsOf := make([][]int, n)
	var cols []column
	for j, b := range bounds {
		switch {
		case b.IsEmpty():
			return nil, 0, lp.ErrInfeasible
		case b.IsFixed():
			shift[j] = b.Start
		case b.HasLower():
			shift[j] = b.Start
			colsOf[j] = []int{len(cols)}
			cols = append(cols, column{v: j, sign: 1})
		case b.HasUpper():
			shift[j] = b.End
			colsOf[j] = []int{len(cols)}
			cols = append(cols, column{v: j, sign: -1})
		default:
			colsOf[j] = []int{len(cols), len(cols) + 1}
			cols = append(cols, column{v: j, sign: 1}, column{v: j, sign: -1})
		}
	}

	var g [][]float64
	var h []float64
	used := make([]bool, len(cols))
	for _, r := range p.rows {
		k := 0.0
		coeffs := make([]float64, len(cols))
		for _, t := range r.Terms {
			k += t.Coeff * shift[t.Var]
			for _, c := range colsOf[t.Var] {
				coeffs[c] += t.Coeff * cols[c].sign
			}
		}
		free := false
		for c, a := range coeffs {
			if a != 0 {
				used[c] = true
				free = true
			}
		}
		if !free {
			if !r.Bounds.Contains(k, feasibilityTolerance) {
				return nil, 0, lp.ErrInfeasible
			}
			continue
		}
		if r.Bounds.HasUpper() {
			g = append(g, coeffs)
			h = append(h, r.Bounds.End-k)
		}
		if r.Bounds.HasLower() {
			neg := make([]float64, len(coeffs))
			for c, a := range coeffs {
				neg[c] = -a
			}
			g = append(g, neg)
			h = append(h, k-r.Bounds.Start)
		}
	}
	for j, b := range bounds {
		if len(colsOf[j]) == 1 && b.HasLower() && b.HasUpper() {
			c := colsOf[j][0]
			unit := make([]float64, len(cols))
			unit[c] = 1
			used[c] = true
			g = append(g, unit)
			h = append(h, b.End-b.Start)
		}
	}

	// Columns in no row stay at their bound unless they improve the objective forever.
	var kept []int
	for c, col := range cols {
		if used[c] {
			kept = append(kept, c)
			continue
		}
		if p.cost[col.v]*col.sign < 0 {
			return nil, 0, lp.ErrUnbounded
		}
	}

	x := make([]float64, n)
	copy(x, shift)
	if len(kept) > 0 {
		rows, nk := len(h), len(kept)
		a := mat.NewDense(rows, nk+rows, nil)
		c := make([]float64, nk+rows)
		for i := range g {
			for pos, col := range kept {
				a.Set(i, pos, g[i][col])
			}
			a.Set(i, nk+i, 1)
		}
		for pos, col := range kept {
			c[pos] = p.cost[cols[col].v] * cols[col].sign
		}
		_, xs, err := lp.Simplex(c, a, h, simplexTolerance, nil)
		if err != nil {
			if errors.Is(err, lp.ErrInfeasible) || errors.Is(err, lp.ErrUnbounded) {
				return nil, 0, err
			}
			return nil, 0, fmt.Errorf("simplex on %dx%d relaxation: %w", rows, nk+rows, err)
		}
		for pos, col := range kept {
			x[cols[col].v] += cols[col].sign * xs[pos]
		}
	}
	return x, p.objective(x), nil
}
