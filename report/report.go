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

// Package report interprets a solver assignment in terms of the delivery problem: the truck
// route, the courier deliveries and the cost breakdown.
package report

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mixedroute/mixedroute/formulation"
	"github.com/mixedroute/mixedroute/solver"
)

// DefaultTolerance is the value above which a variable counts as active.
const DefaultTolerance = 1e-5

// Entry is an active variable.
type Entry struct {
	Name  string
	Value float64
	// Cost is the per-unit objective cost of a truck or courier arc. HasCost is false for other
	// variables.
	Cost    float64
	HasCost bool
}

// Delivery lists the clients a courier serves from one truck stop.
type Delivery struct {
	Stop    int
	Clients []int
}

// Report is the interpretation of one solve.
type Report struct {
	RunID     string
	Variant   string
	Status    solver.Status
	Objective float64
	BestBound float64
	Gap       float64
	Nodes     int
	WallTime  time.Duration
	Tolerance float64

	Active []Entry
	// Route is the truck route from node 0, ending at node 0 when the tour is closed.
	Route      []int
	Deliveries []Delivery

	TruckCost   float64
	CourierCost float64
	TotalCost   float64
}

// New builds the report of response `r` to the model of `f`. Values at most `tol` are treated as
// zero; a non-positive `tol` selects DefaultTolerance.
func New(f *formulation.Formulation, r *solver.Response, tol float64) *Report {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	rep := &Report{
		RunID:     uuid.NewString(),
		Status:    r.Status,
		Nodes:     r.Nodes,
		WallTime:  r.WallTime,
		Tolerance: tol,
	}
	if !r.Status.HasSolution() {
		return rep
	}
	rep.Objective, rep.BestBound, rep.Gap = r.ObjectiveValue, r.BestBound, r.Gap

	inst := f.Instance
	courierCost := float64(inst.CourierCost())
	n := inst.N()
	next := make([]int, n)
	for i := range next {
		next[i] = -1
	}
	byStop := make(map[int][]int)
	for _, k := range f.Index.Keys() {
		v, _ := f.Value(r.Values, k)
		if v <= tol {
			continue
		}
		e := Entry{Name: k.Name(), Value: v}
		switch k.Kind {
		case formulation.KindTruckArc:
			e.Cost, e.HasCost = float64(inst.Cost(k.I, k.J)), true
			rep.TruckCost += e.Cost * v
			if v > 0.5 && next[k.I] < 0 {
				next[k.I] = k.J
			}
		case formulation.KindCourierArc:
			e.Cost, e.HasCost = courierCost, true
			rep.CourierCost += courierCost * v
			if v > 0.5 {
				byStop[k.I] = append(byStop[k.I], k.J)
			}
		}
		rep.Active = append(rep.Active, e)
	}
	rep.TotalCost = rep.TruckCost + rep.CourierCost

	rep.Route = []int{0}
	seen := make([]bool, n)
	seen[0] = true
	for at := next[0]; at >= 0; at = next[at] {
		rep.Route = append(rep.Route, at)
		if seen[at] {
			break
		}
		seen[at] = true
	}
	for k := 0; k < n; k++ {
		if clients, ok := byStop[k]; ok {
			rep.Deliveries = append(rep.Deliveries, Delivery{Stop: k, Clients: clients})
		}
	}
	return rep
}

// Mismatch returns the recomputed total cost minus the objective reported by the solver.
func (rep *Report) Mismatch() float64 {
	return rep.TotalCost - rep.Objective
}

// Consistent returns true if the recomputed cost matches the solver objective up to a relative
// 1e-6.
func (rep *Report) Consistent() bool {
	return math.Abs(rep.Mismatch()) <= 1e-6*math.Max(1, math.Abs(rep.Objective))
}
