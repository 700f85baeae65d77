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

package formulation

import (
	"fmt"

	"github.com/mixedroute/mixedroute/instance"
	"github.com/mixedroute/mixedroute/milp"
)

type builder struct {
	inst *instance.Instance
	p    Policy
	mb   *milp.Builder
	idx  *Index
}

func sum(vs []milp.Var) *milp.LinearExpr {
	e := milp.NewLinearExpr()
	for _, v := range vs {
		e.Add(v)
	}
	return e
}

func one() *milp.LinearExpr { return milp.NewConstant(1) }

// served returns the nodes that must be covered by the truck or a courier.
func (b *builder) served() []int {
	var out []int
	first := 0
	if b.p.DepotMode == DepotNode {
		first = 1
	}
	for k := first; k < b.inst.N(); k++ {
		out = append(out, k)
	}
	return out
}

func (b *builder) addConstraints() {
	// A single node needs no route.
	if b.inst.N() < 2 {
		return
	}
	b.addFlowConservation()
	b.addTruckVisit()
	b.addCoverage()
	b.addSubtourElimination()
	b.addStructuralFixes()
	if b.p.Couriers {
		b.addDispatch()
	}
	if b.p.RefrigerationCap {
		b.addRefrigeration()
	}
	b.addExclusivity()
	if b.p.DepotEntry {
		b.mb.AddEquality(sum(b.idx.truckInto[0]), one()).WithName("depot_entry")
	}
	if b.p.TripCap {
		b.addTripCap()
	}
	if b.p.CourierCharge == Count {
		b.addCountLink()
	}
}

// addFlowConservation makes the truck leave every served node as often as it enters it.
func (b *builder) addFlowConservation() {
	for _, k := range b.served() {
		b.mb.AddEquality(sum(b.idx.truckInto[k]), sum(b.idx.truckFrom[k])).WithName(fmt.Sprintf("flow_%d", k))
	}
}

func (b *builder) addTruckVisit() {
	for _, k := range b.served() {
		out := sum(b.idx.truckFrom[k])
		var c milp.Constraint
		if b.p.TruckVisit == ExactlyOnce {
			c = b.mb.AddEquality(out, one())
		} else {
			c = b.mb.AddLessOrEqual(out, one())
		}
		c.WithName(fmt.Sprintf("truck_visit_%d", k))
	}
}

func (b *builder) addCoverage() {
	for _, j := range b.served() {
		e := sum(b.idx.truckInto[j]).Add(sum(b.idx.courierInto[j]))
		b.mb.AddEquality(e, one()).WithName(fmt.Sprintf("cover_%d", j))
	}
}

// addSubtourElimination adds the MTZ rows over the non-anchor nodes:
//
//	Order(i) - Order(j) + n*TruckArc(i,j) <= n-1
//
// and, when tightening, `out(i) <= Order(i) <= (n-1)*out(i)` so that the position of a node the
// truck skips is 0.
func (b *builder) addSubtourElimination() {
	n := b.inst.N()
	for i := 1; i < n; i++ {
		oi, _ := b.idx.Order(i)
		for j := 1; j < n; j++ {
			if i == j {
				continue
			}
			oj, _ := b.idx.Order(j)
			xij, _ := b.idx.Truck(i, j)
			e := milp.NewLinearExpr().Add(oi).AddTerm(oj, -1).AddTerm(xij, float64(n))
			b.mb.AddLessOrEqual(e, milp.NewConstant(float64(n-1))).WithName(fmt.Sprintf("mtz_%d_%d", i, j))
		}
	}
	if !b.p.TightenOrder {
		return
	}
	for i := 1; i < n; i++ {
		oi, _ := b.idx.Order(i)
		out := sum(b.idx.truckFrom[i])
		b.mb.AddGreaterOrEqual(oi, out).WithName(fmt.Sprintf("order_lb_%d", i))
		b.mb.AddLessOrEqual(oi, milp.NewLinearExpr().AddTerm(out, float64(n-1))).WithName(fmt.Sprintf("order_ub_%d", i))
	}
}

// addStructuralFixes pins to 0 the variables that exist but must not be used: courier deliveries
// to the depot, and truck arcs over unspecified pairs when those are forbidden.
func (b *builder) addStructuralFixes() {
	n := b.inst.N()
	if b.p.DepotMode == DepotNode {
		for i := 1; i < n; i++ {
			if z, ok := b.idx.Courier(i, 0); ok {
				b.mb.AddEquality(z, milp.NewConstant(0)).WithName(fmt.Sprintf("courier_fixed_%d_0", i))
			}
		}
	}
	if b.p.MissingEdges != Forbid {
		return
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || b.inst.HasEdge(i, j) {
				continue
			}
			x, _ := b.idx.Truck(i, j)
			b.mb.AddEquality(x, milp.NewConstant(0)).WithName(fmt.Sprintf("no_edge_%d_%d", i, j))
		}
	}
}

// addDispatch lets couriers leave only from stops the truck enters.
func (b *builder) addDispatch() {
	n := b.inst.N()
	for k := 0; k < n; k++ {
		from := b.idx.courierFrom[k]
		if len(from) == 0 {
			continue
		}
		visit := sum(b.idx.truckInto[k])
		if b.p.Dispatch == Aggregate {
			bigM := float64(len(from))
			b.mb.AddLessOrEqual(sum(from), milp.NewLinearExpr().AddTerm(visit, bigM)).WithName(fmt.Sprintf("dispatch_%d", k))
			continue
		}
		for j := 0; j < n; j++ {
			if z, ok := b.idx.Courier(k, j); ok {
				b.mb.AddLessOrEqual(z, visit).WithName(fmt.Sprintf("dispatch_%d_%d", k, j))
			}
		}
	}
}

func (b *builder) addRefrigeration() {
	refrigerated := b.inst.Refrigerated()
	for k := 0; k < b.inst.N(); k++ {
		var arcs []milp.Var
		for _, j := range refrigerated {
			if z, ok := b.idx.Courier(k, j); ok {
				arcs = append(arcs, z)
			}
		}
		if len(arcs) == 0 {
			continue
		}
		b.mb.AddLessOrEqual(sum(arcs), one()).WithName(fmt.Sprintf("refrigerated_%d", k))
	}
}

func (b *builder) addExclusivity() {
	for _, j := range b.inst.Exclusive() {
		b.mb.AddEquality(sum(b.idx.truckInto[j]), one()).WithName(fmt.Sprintf("exclusive_%d", j))
	}
}

// addTripCap links CourierUsed(k) with the deliveries of stop k:
//
//	MinTrips*CourierUsed(k) <= sum_j CourierArc(k,j) <= MaxTrips*CourierUsed(k)
func (b *builder) addTripCap() {
	for k := 0; k < b.inst.N(); k++ {
		u, _ := b.idx.Used(k)
		from := b.idx.courierFrom[k]
		b.mb.AddLessOrEqual(sum(from), milp.NewLinearExpr().AddTerm(u, float64(b.p.MaxTrips))).WithName(fmt.Sprintf("trips_max_%d", k))
		b.mb.AddGreaterOrEqual(sum(from), milp.NewLinearExpr().AddTerm(u, float64(b.p.MinTrips))).WithName(fmt.Sprintf("trips_min_%d", k))
	}
}

func (b *builder) addCountLink() {
	count, _ := b.idx.Count()
	all := milp.NewLinearExpr()
	for k := 0; k < b.inst.N(); k++ {
		all.Add(sum(b.idx.courierFrom[k]))
	}
	b.mb.AddEquality(count, all).WithName("courier_count")
}
