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
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	primalTolerance = 1e-9
	dualTolerance   = 1e-9
	pivotTolerance  = 1e-9
	ratioTie        = 1e-12
	// maxCondition bounds the condition number of an accepted basis.
	maxCondition = 1e12
	// refactorPeriod is the number of pivots between two refactorizations of the tableau.
	refactorPeriod = 100
	// blandAfter is the number of consecutive degenerate pivots after which pricing switches to
	// Bland's rule.
	blandAfter = 50
)

var errIterationLimit = errors.New("simplex iteration limit reached")

// basis is a warm start for the simplex: the basic column of every row, and the nonbasic
// columns that sit at their upper bound. The tableau does not depend on the bounds, so a basis
// may hand it over to a single next solve.
type basis struct {
	head    []int
	atUpper []bool
	t       *mat.Dense
	// age is the number of pivots applied to t since its factorization.
	age int
}

// withoutTableau returns the basis without its tableau, to be shared by any number of solves.
func (w *basis) withoutTableau() *basis {
	if w == nil {
		return nil
	}
	return &basis{head: w.head, atUpper: w.atUpper}
}

// simplex is a bounded-variable primal simplex over the dense tableau of `[A -I]`. Columns
// `0..n-m-1` are the model variables, column `n-m+i` is the activity of row i, so every row keeps
// its own lower and upper bound and variable bounds need no rows.
type simplex struct {
	m, n   int
	a      *mat.Dense
	cost   []float64
	lo, hi []float64

	// t is B^-1 [A -I] for the current basis.
	t    *mat.Dense
	age  int
	head []int
	// pos is the row of a basic column and -1 for a nonbasic one.
	pos []int
	x   []float64

	d, cb, alpha []float64
}

func newSimplex(a *mat.Dense, cost []float64, lo, hi []float64) *simplex {
	m, n := a.Dims()
	return &simplex{
		m:     m,
		n:     n,
		a:     a,
		cost:  cost,
		lo:    lo,
		hi:    hi,
		head:  make([]int, m),
		pos:   make([]int, n),
		x:     make([]float64, n),
		d:     make([]float64, n),
		cb:    make([]float64, m),
		alpha: make([]float64, m),
	}
}

// nonbasicValue returns the bound a nonbasic column rests on, 0 for a free column.
func (s *simplex) nonbasicValue(j int, upper bool) float64 {
	switch {
	case upper && !math.IsInf(s.hi[j], 1):
		return s.hi[j]
	case !math.IsInf(s.lo[j], -1):
		return s.lo[j]
	case !math.IsInf(s.hi[j], 1):
		return s.hi[j]
	}
	return 0
}

// start installs the warm basis, or the slack basis when `warm` is nil or singular.
func (s *simplex) start(warm *basis) error {
	for j := range s.pos {
		s.pos[j] = -1
	}
	if warm != nil {
		copy(s.head, warm.head)
	} else {
		for i := range s.head {
			s.head[i] = s.n - s.m + i
		}
	}
	for i, j := range s.head {
		s.pos[j] = i
	}
	for j := range s.x {
		if s.pos[j] >= 0 {
			continue
		}
		upper := s.cost[j] < 0
		if warm != nil {
			upper = warm.atUpper[j]
		}
		s.x[j] = s.nonbasicValue(j, upper)
	}
	if warm != nil && warm.t != nil && warm.age < refactorPeriod {
		s.t, s.age = warm.t, warm.age
		s.updateBasic()
		return nil
	}
	if err := s.refactor(); err != nil {
		if warm == nil {
			return err
		}
		return s.start(nil)
	}
	return nil
}

// refactor recomputes the tableau of the current basis and the basic values.
func (s *simplex) refactor() error {
	bm := mat.NewDense(s.m, s.m, nil)
	for i, j := range s.head {
		for k := 0; k < s.m; k++ {
			bm.Set(k, i, s.a.At(k, j))
		}
	}
	var lu mat.LU
	lu.Factorize(bm)
	if c := lu.Cond(); c > maxCondition {
		return mat.Condition(c)
	}
	var t mat.Dense
	if err := lu.SolveTo(&t, false, s.a); err != nil {
		return err
	}
	s.t, s.age = &t, 0
	s.updateBasic()
	return nil
}

// updateBasic sets the basic values from the nonbasic ones: x_B = -B^-1 N x_N.
func (s *simplex) updateBasic() {
	for i, b := range s.head {
		row := s.t.RawRowView(i)
		v := 0.0
		for j, xj := range s.x {
			if s.pos[j] < 0 && xj != 0 {
				v -= row[j] * xj
			}
		}
		s.x[b] = v
	}
}

// price computes the reduced costs of the phase the basis is in and returns true in phase 2.
// Phase 1 minimizes the sum of the bound violations of the basic columns.
func (s *simplex) price() bool {
	feasible := true
	for i, b := range s.head {
		switch v := s.x[b]; {
		case v < s.lo[b]-primalTolerance:
			s.cb[i], feasible = -1, false
		case v > s.hi[b]+primalTolerance:
			s.cb[i], feasible = 1, false
		default:
			s.cb[i] = 0
		}
	}
	if feasible {
		copy(s.d, s.cost)
		for i, b := range s.head {
			s.cb[i] = s.cost[b]
		}
	} else {
		for j := range s.d {
			s.d[j] = 0
		}
	}
	for i, c := range s.cb {
		if c != 0 {
			floats.AddScaled(s.d, -c, s.t.RawRowView(i))
		}
	}
	return feasible
}

// entering returns an improving nonbasic column and its direction, or -1.
func (s *simplex) entering(bland bool) (int, float64) {
	best, dir, score := -1, 0.0, dualTolerance
	for j, dj := range s.d {
		if s.pos[j] >= 0 {
			continue
		}
		var step float64
		switch {
		case dj < -dualTolerance && s.x[j] < s.hi[j]-primalTolerance:
			step = 1
		case dj > dualTolerance && s.x[j] > s.lo[j]+primalTolerance:
			step = -1
		default:
			continue
		}
		if bland {
			return j, step
		}
		if math.Abs(dj) > score {
			best, dir, score = j, step, math.Abs(dj)
		}
	}
	return best, dir
}

// ratio returns the row leaving the basis when column `j` moves in direction `dir`, the step
// length and the bound the leaving column ends on. The row is -1 when `j` reaches its opposite
// bound first. Feasible basic columns stay within their bounds; in phase 1 an infeasible one
// blocks at the bound it violates.
func (s *simplex) ratio(j int, dir float64, feasible, bland bool) (int, float64, float64) {
	r, theta, at := -1, s.hi[j]-s.lo[j], 0.0
	best := 0.0
	for i, b := range s.head {
		a := -dir * s.t.At(i, j)
		s.alpha[i] = a
		if math.Abs(a) < pivotTolerance {
			continue
		}
		v, lo, hi := s.x[b], s.lo[b], s.hi[b]
		below, above := !feasible && v < lo-primalTolerance, !feasible && v > hi+primalTolerance
		var limit, bound float64
		switch {
		case a > 0 && below:
			limit, bound = (lo-v)/a, lo
		case a > 0 && !above && !math.IsInf(hi, 1):
			limit, bound = (hi-v)/a, hi
		case a < 0 && above:
			limit, bound = (hi-v)/a, hi
		case a < 0 && !below && !math.IsInf(lo, -1):
			limit, bound = (lo-v)/a, lo
		default:
			continue
		}
		limit = math.Max(limit, 0)
		switch {
		case limit < theta-ratioTie:
		case limit <= theta+ratioTie && r >= 0 && (bland && b < s.head[r] || !bland && math.Abs(a) > best):
		default:
			continue
		}
		r, theta, at, best = i, math.Min(theta, limit), bound, math.Abs(a)
	}
	return r, theta, at
}

// pivot makes column `j` basic in row `r`. The leaving column rests on `at`.
func (s *simplex) pivot(r, j int, at float64) {
	b := s.head[r]
	s.x[b] = at
	prow := s.t.RawRowView(r)
	floats.Scale(1/prow[j], prow)
	for i := 0; i < s.m; i++ {
		if i == r {
			continue
		}
		row := s.t.RawRowView(i)
		if f := row[j]; f != 0 {
			floats.AddScaled(row, -f, prow)
		}
	}
	s.head[r], s.pos[j], s.pos[b] = j, r, -1
}

// run iterates until the basis is optimal. The error is lp.ErrInfeasible or lp.ErrUnbounded
// when the relaxation has no optimum.
func (s *simplex) run() error {
	degenerate, bland := 0, false
	for iter := 0; iter < 50*(s.m+s.n); iter++ {
		feasible := s.price()
		j, dir := s.entering(bland)
		if j < 0 {
			if !feasible {
				return lp.ErrInfeasible
			}
			return nil
		}
		r, theta, at := s.ratio(j, dir, feasible, bland)
		if math.IsInf(theta, 1) {
			if feasible {
				return lp.ErrUnbounded
			}
			return errors.New("unbounded direction in phase 1")
		}
		if theta > 0 {
			s.x[j] += dir * theta
			for i, b := range s.head {
				s.x[b] += s.alpha[i] * theta
			}
		}
		if r < 0 {
			if dir > 0 {
				s.x[j] = s.hi[j]
			} else {
				s.x[j] = s.lo[j]
			}
		} else {
			s.pivot(r, j, at)
			if s.age++; s.age >= refactorPeriod {
				if err := s.refactor(); err != nil {
					return err
				}
			}
		}
		if theta <= ratioTie {
			if degenerate++; degenerate > blandAfter {
				bland = true
			}
		} else {
			degenerate = 0
		}
	}
	return errIterationLimit
}

// basis returns the current basis as a warm start. It takes over the tableau, so the simplex
// must not be used afterwards.
func (s *simplex) basis() *basis {
	w := &basis{head: slices.Clone(s.head), atUpper: make([]bool, s.n), t: s.t, age: s.age}
	for j, v := range s.x {
		w.atUpper[j] = s.pos[j] < 0 && s.lo[j] != s.hi[j] && v == s.hi[j]
	}
	return w
}
