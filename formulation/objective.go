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

import "github.com/mixedroute/mixedroute/milp"

// setObjective minimizes the truck arc costs plus the courier charge.
func (b *builder) setObjective() {
	obj := milp.NewLinearExpr()
	for _, k := range b.idx.keys {
		if k.Kind != KindTruckArc {
			continue
		}
		x, _ := b.idx.Lookup(k)
		obj.AddTerm(x, float64(b.inst.Cost(k.I, k.J)))
	}
	courierCost := float64(b.inst.CourierCost())
	switch {
	case !b.p.Couriers:
	case b.p.CourierCharge == Count:
		count, _ := b.idx.Count()
		obj.AddTerm(count, courierCost)
	default:
		for k := 0; k < b.inst.N(); k++ {
			for _, z := range b.idx.courierFrom[k] {
				obj.AddTerm(z, courierCost)
			}
		}
	}
	b.mb.Minimize(obj)
}
