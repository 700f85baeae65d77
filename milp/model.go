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

package milp

import (
	"fmt"
	"math"
)

// Term is a variable with its coefficient in a linear row or objective.
type Term struct {
	Var   VarIndex
	Coeff float64
}

// Variable is a column of the model.
type Variable struct {
	Name   string
	Type   VarType
	Bounds ClosedInterval
}

// Row is a linear constraint `Bounds.Start <= sum(Terms) <= Bounds.End`.
type Row struct {
	Name   string
	Terms  []Term
	Bounds ClosedInterval
}

// Sense is the comparison a row encodes.
type Sense int

const (
	// Equal rows have equal lower and upper bounds.
	Equal Sense = iota
	// LessOrEqual rows only have an upper bound.
	LessOrEqual
	// GreaterOrEqual rows only have a lower bound.
	GreaterOrEqual
	// Ranged rows have distinct finite lower and upper bounds.
	Ranged
	// Free rows have no bound at all.
	Free
)

// Sense returns the comparison encoded by the row bounds.
func (r Row) Sense() Sense {
	switch {
	case r.Bounds.IsFixed():
		return Equal
	case r.Bounds.HasLower() && r.Bounds.HasUpper():
		return Ranged
	case r.Bounds.HasUpper():
		return LessOrEqual
	case r.Bounds.HasLower():
		return GreaterOrEqual
	}
	return Free
}

// Activity returns the value of the row left-hand side under `values`.
func (r Row) Activity(values []float64) float64 {
	var a float64
	for _, t := range r.Terms {
		a += t.Coeff * values[t.Var]
	}
	return a
}

// Objective is the linear objective of the model.
type Objective struct {
	Terms    []Term
	Offset   float64
	Maximize bool
}

// Model is a solver independent mixed-integer linear program.
type Model struct {
	Name        string
	Variables   []Variable
	Constraints []Row
	Objective   Objective
}

// NumVariables returns the number of columns.
func (m *Model) NumVariables() int {
	return len(m.Variables)
}

// NumConstraints returns the number of rows.
func (m *Model) NumConstraints() int {
	return len(m.Constraints)
}

// ObjectiveValue evaluates the objective under `values`.
func (m *Model) ObjectiveValue(values []float64) float64 {
	z := m.Objective.Offset
	for _, t := range m.Objective.Terms {
		z += t.Coeff * values[t.Var]
	}
	return z
}

// ObjectiveCoefficients returns the dense objective vector.
func (m *Model) ObjectiveCoefficients() []float64 {
	c := make([]float64, len(m.Variables))
	for _, t := range m.Objective.Terms {
		c[t.Var] += t.Coeff
	}
	return c
}

// Violation describes a bound, integrality or row requirement that an assignment breaks.
type Violation struct {
	// Name is the name of the offending variable or constraint.
	Name string
	// Value is the variable value or the row activity.
	Value float64
	// Bounds are the bounds that were violated.
	Bounds ClosedInterval
	// Integrality is set when the violation is a fractional value of an integral variable.
	Integrality bool
}

func (v Violation) String() string {
	if v.Integrality {
		return fmt.Sprintf("%s = %v is not integral", v.Name, v.Value)
	}
	return fmt.Sprintf("%s = %v not in %v", v.Name, v.Value, v.Bounds)
}

// Violations checks the assignment `values` against every variable bound, integrality
// requirement and row of the model, with absolute tolerance `tol`. An empty result means the
// assignment is feasible.
func (m *Model) Violations(values []float64, tol float64) ([]Violation, error) {
	if len(values) != len(m.Variables) {
		return nil, fmt.Errorf("assignment has %d values, model has %d variables", len(values), len(m.Variables))
	}
	var out []Violation
	for i, v := range m.Variables {
		x := values[i]
		if !v.Bounds.Contains(x, tol) {
			out = append(out, Violation{Name: v.Name, Value: x, Bounds: v.Bounds})
		}
		if v.Type.IsIntegral() && math.Abs(x-math.Round(x)) > tol {
			out = append(out, Violation{Name: v.Name, Value: x, Bounds: v.Bounds, Integrality: true})
		}
	}
	for _, r := range m.Constraints {
		a := r.Activity(values)
		if !r.Bounds.Contains(a, tol) {
			out = append(out, Violation{Name: r.Name, Value: a, Bounds: r.Bounds})
		}
	}
	return out, nil
}
