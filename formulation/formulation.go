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

// Package formulation translates a delivery instance into a mixed-integer linear program.
//
// Build is a pure function of the instance and a Policy. The Policy selects the rules that are
// emitted; the four historical formulations are available as presets through PolicyFor. The
// returned Formulation keeps the Index from variable keys to model columns, so that the model
// and any solver assignment can be read back in terms of truck and courier arcs.
package formulation

import (
	"errors"
	"fmt"

	log "github.com/golang/glog"
	"github.com/mixedroute/mixedroute/instance"
	"github.com/mixedroute/mixedroute/milp"
)

// ModelName is the name given to every built model.
const ModelName = "mixed_route"

// Formulation is a built model together with the data it was built from.
type Formulation struct {
	Instance *instance.Instance
	Policy   Policy
	Model    *milp.Model
	Index    *Index
}

// Build returns the model of `inst` under `p`. Two builds of the same instance and policy are
// identical, column for column and row for row.
func Build(inst *instance.Instance, p Policy) (*Formulation, error) {
	if inst == nil {
		return nil, errors.New("nil instance")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	mb := milp.NewBuilder(ModelName)
	b := &builder{inst: inst, p: p, mb: mb}
	b.idx = newIndex(mb, inst, p)
	b.addConstraints()
	b.setObjective()
	m, err := mb.Model()
	if err != nil {
		return nil, fmt.Errorf("building model: %w", err)
	}
	log.V(1).Infof("Built %s: %d variables (%d truck arcs, %d courier arcs), %d constraints",
		inst, m.NumVariables(), b.idx.NumOf(KindTruckArc), b.idx.NumOf(KindCourierArc), m.NumConstraints())
	return &Formulation{Instance: inst, Policy: p, Model: m, Index: b.idx}, nil
}

// Value returns the value of the variable identified by `k` under `values`, and false if the
// model has no such variable.
func (f *Formulation) Value(values []float64, k Key) (float64, bool) {
	v, ok := f.Index.Lookup(k)
	if !ok {
		return 0, false
	}
	return milp.SolutionValue(values, v), true
}

// Deliveries returns the number of courier deliveries dispatched from stop `k` under `values`,
// rounded to the nearest integer.
func (f *Formulation) Deliveries(values []float64, k int) int {
	total := 0.0
	for _, z := range f.Index.courierFrom[k] {
		total += milp.SolutionValue(values, z)
	}
	return int(total + 0.5)
}
