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

// Package milp offers a small API to build mixed-integer linear programs.
//
// The `Builder` struct owns the model under construction and provides helper methods for adding
// variables, linear constraints and the objective. The `Var` and `Constraint` structs are
// references to specific rows and columns of that model. The `LinearExpr` struct provides helper
// methods for creating constraints and the objective from expressions with many variables and
// coefficients.
//
// The built `Model` is a plain value, independent of any solver, and can be exported in LP or MPS
// format or handed to a solver backend.
package milp

import (
	"errors"
	"fmt"
	"math"

	log "github.com/golang/glog"
)

var (
	// ErrMixedModels holds the error when elements added to a model are different.
	ErrMixedModels = errors.New("elements are not part of the same model")
	// ErrDuplicateName holds the error when two variables or two constraints share a name.
	ErrDuplicateName = errors.New("duplicate name")
)

type (
	// VarIndex is the index of a variable (column) in the model.
	VarIndex int32
	// ConstrIndex is the index of a constraint (row) in the model.
	ConstrIndex int32
)

// VarType is the integrality class of a variable.
type VarType int

const (
	// Continuous variables take any real value within their bounds.
	Continuous VarType = iota
	// Integer variables take integral values within their bounds.
	Integer
	// Binary variables are integer variables bounded in [0,1].
	Binary
)

func (t VarType) String() string {
	switch t {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	}
	return fmt.Sprintf("VarType(%d)", int(t))
}

// IsIntegral returns true for integer and binary variables.
func (t VarType) IsIntegral() bool {
	return t == Integer || t == Binary
}

// LinearArgument provides an interface for Var and LinearExpr.
type LinearArgument interface {
	addToLinearExpr(e *LinearExpr, c float64)
	evaluateSolutionValue(values []float64) float64
}

// LinearExpr is a container for a linear expression.
type LinearExpr struct {
	terms  []Term
	offset float64
	owner  *Builder
	mixed  bool
}

// NewLinearExpr creates a new empty LinearExpr.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// NewConstant creates and returns a LinearExpr containing the constant `c`.
func NewConstant(c float64) *LinearExpr {
	return &LinearExpr{offset: c}
}

// Add adds the linear argument term to the LinearExpr and returns itself.
func (l *LinearExpr) Add(la LinearArgument) *LinearExpr {
	return l.AddTerm(la, 1)
}

// AddConstant adds the constant to the LinearExpr and returns itself.
func (l *LinearExpr) AddConstant(c float64) *LinearExpr {
	l.offset += c
	return l
}

// AddTerm adds the linear argument term with the given coefficient to the LinearExpr and returns
// itself.
func (l *LinearExpr) AddTerm(la LinearArgument, coeff float64) *LinearExpr {
	la.addToLinearExpr(l, coeff)
	return l
}

// AddSum adds the sum of the linear arguments to the LinearExpr and returns itself.
func (l *LinearExpr) AddSum(las ...LinearArgument) *LinearExpr {
	for _, la := range las {
		l.Add(la)
	}
	return l
}

// AddWeightedSum adds the linear arguments with the corresponding coefficients to the LinearExpr
// and returns itself.
func (l *LinearExpr) AddWeightedSum(las []LinearArgument, coeffs []float64) *LinearExpr {
	if len(coeffs) != len(las) {
		log.Fatalf("las and coeffs must be the same length: %v != %v", len(las), len(coeffs))
	}
	for i, la := range las {
		l.AddTerm(la, coeffs[i])
	}
	return l
}

// Len returns the number of terms of the expression, before merging repeated variables.
func (l *LinearExpr) Len() int {
	return len(l.terms)
}

// Offset returns the constant part of the expression.
func (l *LinearExpr) Offset() float64 {
	return l.offset
}

func (l *LinearExpr) adopt(b *Builder) {
	if l.owner == nil {
		l.owner = b
		return
	}
	if l.owner != b {
		l.mixed = true
	}
}

func (l *LinearExpr) addToLinearExpr(e *LinearExpr, c float64) {
	for _, t := range l.terms {
		e.terms = append(e.terms, Term{Var: t.Var, Coeff: t.Coeff * c})
	}
	e.offset += l.offset * c
	if l.owner != nil {
		e.adopt(l.owner)
	}
	if l.mixed {
		e.mixed = true
	}
}

func (l *LinearExpr) evaluateSolutionValue(values []float64) float64 {
	result := l.offset
	for _, t := range l.terms {
		result += values[t.Var] * t.Coeff
	}
	return result
}

// merged returns the terms with repeated variables combined and zero coefficients dropped. The
// order of first occurrence is preserved.
func (l *LinearExpr) merged() []Term {
	pos := make(map[VarIndex]int, len(l.terms))
	var out []Term
	for _, t := range l.terms {
		if p, ok := pos[t.Var]; ok {
			out[p].Coeff += t.Coeff
			continue
		}
		pos[t.Var] = len(out)
		out = append(out, t)
	}
	kept := out[:0]
	for _, t := range out {
		if t.Coeff != 0 {
			kept = append(kept, t)
		}
	}
	return kept
}

// Var is a reference to a variable of the model.
type Var struct {
	ind VarIndex
	mb  *Builder
}

// Index returns the index of the variable.
func (v Var) Index() VarIndex {
	return v.ind
}

// Name returns the name of the variable.
func (v Var) Name() string {
	return v.mb.model.Variables[v.ind].Name
}

// Type returns the integrality class of the variable.
func (v Var) Type() VarType {
	return v.mb.model.Variables[v.ind].Type
}

// Bounds returns the bounds of the variable.
func (v Var) Bounds() ClosedInterval {
	return v.mb.model.Variables[v.ind].Bounds
}

// WithName sets the name of the variable. Names must be unique within a model; a duplicate is
// recorded as the builder error.
func (v Var) WithName(s string) Var {
	if prev, ok := v.mb.varNames[s]; ok && prev != v.ind {
		v.mb.setErrorf("variable name %q used by variables %d and %d: %w", s, prev, v.ind, ErrDuplicateName)
		return v
	}
	old := v.mb.model.Variables[v.ind].Name
	delete(v.mb.varNames, old)
	v.mb.model.Variables[v.ind].Name = s
	v.mb.varNames[s] = v.ind
	return v
}

func (v Var) addToLinearExpr(e *LinearExpr, c float64) {
	e.terms = append(e.terms, Term{Var: v.ind, Coeff: c})
	e.adopt(v.mb)
}

func (v Var) evaluateSolutionValue(values []float64) float64 {
	return values[v.ind]
}

// Constraint is a reference to a constraint of the model.
type Constraint struct {
	ind ConstrIndex
	mb  *Builder
}

// Index returns the index of the constraint.
func (c Constraint) Index() ConstrIndex {
	return c.ind
}

// Name returns the name of the constraint.
func (c Constraint) Name() string {
	return c.mb.model.Constraints[c.ind].Name
}

// Bounds returns the bounds on the activity of the constraint.
func (c Constraint) Bounds() ClosedInterval {
	return c.mb.model.Constraints[c.ind].Bounds
}

// WithName sets the name of the constraint. Names must be unique within a model; a duplicate is
// recorded as the builder error.
func (c Constraint) WithName(s string) Constraint {
	if prev, ok := c.mb.rowNames[s]; ok && prev != c.ind {
		c.mb.setErrorf("constraint name %q used by constraints %d and %d: %w", s, prev, c.ind, ErrDuplicateName)
		return c
	}
	old := c.mb.model.Constraints[c.ind].Name
	delete(c.mb.rowNames, old)
	c.mb.model.Constraints[c.ind].Name = s
	c.mb.rowNames[s] = c.ind
	return c
}

// Builder provides a wrapper around the Model under construction.
type Builder struct {
	model    *Model
	varNames map[string]VarIndex
	rowNames map[string]ConstrIndex
	// The first and only the first error is reported in Model.
	err error
}

// NewBuilder creates and returns a new model Builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		model:    &Model{Name: name},
		varNames: make(map[string]VarIndex),
		rowNames: make(map[string]ConstrIndex),
	}
}

func (mb *Builder) setErrorf(format string, a ...any) {
	err := fmt.Errorf(format, a...)
	log.Errorf("%v; use `-log_backtrace_at` flag to get the error stack", err)
	if mb.err == nil {
		mb.err = err
	}
}

func (mb *Builder) newVar(t VarType, bounds ClosedInterval) Var {
	ind := VarIndex(len(mb.model.Variables))
	name := fmt.Sprintf("v%d", ind)
	for {
		if _, taken := mb.varNames[name]; !taken {
			break
		}
		name = "_" + name
	}
	mb.model.Variables = append(mb.model.Variables, Variable{Name: name, Type: t, Bounds: bounds})
	mb.varNames[name] = ind
	return Var{ind: ind, mb: mb}
}

// NewBoolVar creates a new binary variable.
func (mb *Builder) NewBoolVar() Var {
	return mb.newVar(Binary, NewInterval(0, 1))
}

// NewIntVar creates a new integer variable in `[lb,ub]`.
func (mb *Builder) NewIntVar(lb, ub float64) Var {
	return mb.newVar(Integer, NewInterval(lb, ub))
}

// NewContinuousVar creates a new continuous variable in `[lb,ub]`.
func (mb *Builder) NewContinuousVar(lb, ub float64) Var {
	return mb.newVar(Continuous, NewInterval(lb, ub))
}

// LookupVar returns the variable with the given name, and false if not found.
func (mb *Builder) LookupVar(name string) (Var, bool) {
	ind, ok := mb.varNames[name]
	if !ok {
		return Var{}, false
	}
	return Var{ind: ind, mb: mb}, true
}

// LookupConstraint returns the constraint with the given name, and false if not found.
func (mb *Builder) LookupConstraint(name string) (Constraint, bool) {
	ind, ok := mb.rowNames[name]
	if !ok {
		return Constraint{}, false
	}
	return Constraint{ind: ind, mb: mb}, true
}

// NumVariables returns the number of variables created so far.
func (mb *Builder) NumVariables() int {
	return len(mb.model.Variables)
}

// NumConstraints returns the number of constraints created so far.
func (mb *Builder) NumConstraints() int {
	return len(mb.model.Constraints)
}

func (mb *Builder) checkOwner(le *LinearExpr, what string) bool {
	if le.mixed || (le.owner != nil && le.owner != mb) {
		mb.setErrorf("invalid expression added to %s %d: %w", what, len(mb.model.Constraints), ErrMixedModels)
		return false
	}
	return true
}

// addLinearConstraint adds a linear constraint that enforces the value of `le` to be in
// `bounds`. The constant offset of `le` is subtracted from the bounds.
func (mb *Builder) addLinearConstraint(le *LinearExpr, bounds ClosedInterval) Constraint {
	ind := ConstrIndex(len(mb.model.Constraints))
	row := Row{Bounds: bounds.Offset(-le.offset)}
	if mb.checkOwner(le, "constraint") {
		row.Terms = le.merged()
	}
	name := fmt.Sprintf("c%d", ind)
	for {
		if _, taken := mb.rowNames[name]; !taken {
			break
		}
		name = "_" + name
	}
	row.Name = name
	mb.model.Constraints = append(mb.model.Constraints, row)
	mb.rowNames[name] = ind
	return Constraint{ind: ind, mb: mb}
}

// AddLinearConstraint adds the linear constraint `lb <= expr <= ub`.
func (mb *Builder) AddLinearConstraint(expr LinearArgument, lb, ub float64) Constraint {
	return mb.addLinearConstraint(NewLinearExpr().Add(expr), NewInterval(lb, ub))
}

// AddEquality adds the linear constraint `lhs == rhs`.
func (mb *Builder) AddEquality(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return mb.addLinearConstraint(diff, Point(0))
}

// AddLessOrEqual adds the linear constraint `lhs <= rhs`.
func (mb *Builder) AddLessOrEqual(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return mb.addLinearConstraint(diff, AtMost(0))
}

// AddGreaterOrEqual adds the linear constraint `lhs >= rhs`.
func (mb *Builder) AddGreaterOrEqual(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return mb.addLinearConstraint(diff, AtLeast(0))
}

func (mb *Builder) setObjective(obj LinearArgument, maximize bool) {
	o := NewLinearExpr().Add(obj)
	if !mb.checkOwner(o, "objective of model") {
		return
	}
	mb.model.Objective = Objective{Terms: o.merged(), Offset: o.offset, Maximize: maximize}
}

// Minimize sets a linear minimization objective.
func (mb *Builder) Minimize(obj LinearArgument) {
	mb.setObjective(obj, false)
}

// Maximize sets a linear maximization objective.
func (mb *Builder) Maximize(obj LinearArgument) {
	mb.setObjective(obj, true)
}

// Model returns the built model. The model returned is a pointer to the model in Builder, and if
// modified, future calls to the Builder API can fail or result in an invalid model.
//
// Model returns an error when invalid parameters have been used during model building (e.g.
// passing variables from other builders, or reusing a name).
func (mb *Builder) Model() (*Model, error) {
	if mb.err != nil {
		return nil, mb.err
	}
	for i, v := range mb.model.Variables {
		if v.Bounds.IsEmpty() || math.IsNaN(v.Bounds.Start) || math.IsNaN(v.Bounds.End) {
			return nil, fmt.Errorf("variable %q has invalid bounds %v", v.Name, mb.model.Variables[i].Bounds)
		}
	}
	return mb.model, nil
}

// SolutionValue returns the value of LinearArgument `la` under the assignment `values`, indexed
// by VarIndex.
func SolutionValue(values []float64, la LinearArgument) float64 {
	return la.evaluateSolutionValue(values)
}
