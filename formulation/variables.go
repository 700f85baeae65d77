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
	"math"
	"slices"

	"github.com/mixedroute/mixedroute/instance"
	"github.com/mixedroute/mixedroute/milp"
)

// Kind is the family of a decision variable.
type Kind int

const (
	// KindTruckArc is TruckArc(i,j): the truck drives from i to j.
	KindTruckArc Kind = iota
	// KindCourierArc is CourierArc(i,j): a courier delivers to j from truck stop i.
	KindCourierArc
	// KindOrder is Order(i): the position of i in the truck tour.
	KindOrder
	// KindCourierUsed is CourierUsed(i): stop i dispatches at least one courier delivery.
	KindCourierUsed
	// KindCourierCount is CourierCount: the total number of courier deliveries.
	KindCourierCount
)

func (k Kind) String() string {
	switch k {
	case KindTruckArc:
		return "truck"
	case KindCourierArc:
		return "courier"
	case KindOrder:
		return "order"
	case KindCourierUsed:
		return "courier_used"
	case KindCourierCount:
		return "courier_count"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Key identifies a decision variable. Coordinates a kind does not use are 0.
type Key struct {
	Kind Kind
	I, J int
}

// Name returns the model name of the variable identified by `k`.
func (k Key) Name() string {
	switch k.Kind {
	case KindTruckArc, KindCourierArc:
		return fmt.Sprintf("%v_%d_%d", k.Kind, k.I, k.J)
	case KindOrder, KindCourierUsed:
		return fmt.Sprintf("%v_%d", k.Kind, k.I)
	}
	return k.Kind.String()
}

// Eligible reports whether a courier can deliver to j from truck stop i. It is the only place
// deciding whether a CourierArc variable exists.
func Eligible(inst *instance.Instance, i, j int) bool {
	return i != j && inst.Distance(i, j) <= inst.MaxCourierDistance()
}

// Index maps every variable key to its model variable. Keys are created once, in the order kind,
// then i ascending, then j ascending, which is also the order of the model columns.
type Index struct {
	n    int
	vars map[Key]milp.Var
	keys []Key

	truckFrom, truckInto     [][]milp.Var
	courierFrom, courierInto [][]milp.Var
}

func newIndex(mb *milp.Builder, inst *instance.Instance, p Policy) *Index {
	n := inst.N()
	x := &Index{
		n:           n,
		vars:        make(map[Key]milp.Var),
		truckFrom:   make([][]milp.Var, n),
		truckInto:   make([][]milp.Var, n),
		courierFrom: make([][]milp.Var, n),
		courierInto: make([][]milp.Var, n),
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			v := x.add(mb.NewBoolVar(), Key{KindTruckArc, i, j})
			x.truckFrom[i] = append(x.truckFrom[i], v)
			x.truckInto[j] = append(x.truckInto[j], v)
		}
	}
	if p.Couriers {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if !Eligible(inst, i, j) {
					continue
				}
				v := x.add(mb.NewBoolVar(), Key{KindCourierArc, i, j})
				x.courierFrom[i] = append(x.courierFrom[i], v)
				x.courierInto[j] = append(x.courierInto[j], v)
			}
		}
	}
	// Node 0 anchors the tour and has no position.
	lb := 1.0
	if p.TightenOrder {
		lb = 0
	}
	for i := 1; i < n; i++ {
		x.add(mb.NewContinuousVar(lb, float64(n-1)), Key{KindOrder, i, 0})
	}
	if p.TripCap {
		for i := 0; i < n; i++ {
			x.add(mb.NewBoolVar(), Key{KindCourierUsed, i, 0})
		}
	}
	if p.CourierCharge == Count {
		x.add(mb.NewIntVar(0, math.Inf(1)), Key{KindCourierCount, 0, 0})
	}
	return x
}

func (x *Index) add(v milp.Var, k Key) milp.Var {
	v = v.WithName(k.Name())
	x.vars[k] = v
	x.keys = append(x.keys, k)
	return v
}

// Lookup returns the variable identified by `k`, and false if the model has none.
func (x *Index) Lookup(k Key) (milp.Var, bool) {
	v, ok := x.vars[k]
	return v, ok
}

// Truck returns TruckArc(i,j).
func (x *Index) Truck(i, j int) (milp.Var, bool) { return x.Lookup(Key{KindTruckArc, i, j}) }

// Courier returns CourierArc(i,j). It exists only for eligible pairs.
func (x *Index) Courier(i, j int) (milp.Var, bool) { return x.Lookup(Key{KindCourierArc, i, j}) }

// Order returns Order(i).
func (x *Index) Order(i int) (milp.Var, bool) { return x.Lookup(Key{KindOrder, i, 0}) }

// Used returns CourierUsed(i).
func (x *Index) Used(i int) (milp.Var, bool) { return x.Lookup(Key{KindCourierUsed, i, 0}) }

// Count returns CourierCount.
func (x *Index) Count() (milp.Var, bool) { return x.Lookup(Key{KindCourierCount, 0, 0}) }

// TruckFrom returns the truck arcs leaving i, by increasing head.
func (x *Index) TruckFrom(i int) []milp.Var { return slices.Clone(x.truckFrom[i]) }

// TruckInto returns the truck arcs entering j, by increasing tail.
func (x *Index) TruckInto(j int) []milp.Var { return slices.Clone(x.truckInto[j]) }

// CourierFrom returns the courier arcs dispatched from stop k, by increasing client.
func (x *Index) CourierFrom(k int) []milp.Var { return slices.Clone(x.courierFrom[k]) }

// CourierInto returns the courier arcs serving client j, by increasing stop.
func (x *Index) CourierInto(j int) []milp.Var { return slices.Clone(x.courierInto[j]) }

// Keys returns the keys of all variables in column order.
func (x *Index) Keys() []Key { return slices.Clone(x.keys) }

// Key returns the key of the model column `v`.
func (x *Index) Key(v milp.VarIndex) Key { return x.keys[v] }

// Len returns the number of variables.
func (x *Index) Len() int { return len(x.keys) }

// NumOf returns the number of variables of kind `k`.
func (x *Index) NumOf(k Kind) int {
	count := 0
	for _, key := range x.keys {
		if key.Kind == k {
			count++
		}
	}
	return count
}
