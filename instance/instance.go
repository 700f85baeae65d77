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

// Package instance holds the data of a mixed truck and courier delivery problem.
//
// An Instance is immutable once constructed, either programmatically with New or from the
// line-oriented text format with Parse and Load.
package instance

import (
	"fmt"
	"slices"
)

// Unreachable is the distance and cost of every pair the instance does not specify.
const Unreachable = 1_000_000

// DataFormatError reports malformed instance data. Line is 1-based, and 0 when the error is not
// tied to a line of the input.
type DataFormatError struct {
	Line int
	Msg  string
}

func (e *DataFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("instance data format error at line %d: %s", e.Line, e.Msg)
	}
	return "instance data format error: " + e.Msg
}

func formatErrorf(line int, format string, a ...any) *DataFormatError {
	return &DataFormatError{Line: line, Msg: fmt.Sprintf(format, a...)}
}

// Pair sets the distance and cost of the undirected edge between nodes I and J (0-based).
type Pair struct {
	I, J     int
	Distance int
	Cost     int
}

// Params describes an instance to construct with New. Node ids are 0-based.
type Params struct {
	N                  int
	CourierCost        int
	MaxCourierDistance int
	Refrigerated       []int
	Exclusive          []int
	Pairs              []Pair
}

// Instance is the problem data: the nodes, the courier parameters, the special clients and the
// symmetric distance and cost matrices.
type Instance struct {
	n            int
	courierCost  int
	maxDistance  int
	refrigerated []int
	exclusive    []int
	isRefrig     []bool
	isExcl       []bool
	distance     [][]int
	cost         [][]int
	edge         [][]bool
}

// New validates `p` and returns the corresponding instance. Pairs given more than once keep the
// last values.
func New(p Params) (*Instance, error) {
	if p.N < 1 {
		return nil, formatErrorf(0, "client count must be positive, got %d", p.N)
	}
	if p.CourierCost < 0 {
		return nil, formatErrorf(0, "courier cost must be non-negative, got %d", p.CourierCost)
	}
	if p.MaxCourierDistance < 0 {
		return nil, formatErrorf(0, "maximum courier distance must be non-negative, got %d", p.MaxCourierDistance)
	}
	inst := &Instance{
		n:           p.N,
		courierCost: p.CourierCost,
		maxDistance: p.MaxCourierDistance,
		isRefrig:    make([]bool, p.N),
		isExcl:      make([]bool, p.N),
		distance:    newMatrix(p.N, Unreachable),
		cost:        newMatrix(p.N, Unreachable),
		edge:        make([][]bool, p.N),
	}
	for i := range inst.edge {
		inst.edge[i] = make([]bool, p.N)
	}
	for _, id := range p.Refrigerated {
		if id < 0 || id >= p.N {
			return nil, formatErrorf(0, "refrigerated client %d out of range [0,%d)", id, p.N)
		}
		inst.isRefrig[id] = true
	}
	for _, id := range p.Exclusive {
		if id < 0 || id >= p.N {
			return nil, formatErrorf(0, "exclusive client %d out of range [0,%d)", id, p.N)
		}
		inst.isExcl[id] = true
	}
	for _, pr := range p.Pairs {
		if err := inst.setPair(pr); err != nil {
			return nil, err
		}
	}
	inst.refrigerated = members(inst.isRefrig)
	inst.exclusive = members(inst.isExcl)
	return inst, nil
}

func newMatrix(n, fill int) [][]int {
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
		for j := range m[i] {
			m[i][j] = fill
		}
	}
	return m
}

func members(set []bool) []int {
	var out []int
	for i, ok := range set {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

func (inst *Instance) setPair(p Pair) *DataFormatError {
	if p.I < 0 || p.I >= inst.n || p.J < 0 || p.J >= inst.n {
		return formatErrorf(0, "pair (%d,%d) out of range [0,%d)", p.I, p.J, inst.n)
	}
	if p.Distance < 0 || p.Cost < 0 {
		return formatErrorf(0, "pair (%d,%d) has negative distance or cost", p.I, p.J)
	}
	inst.distance[p.I][p.J], inst.distance[p.J][p.I] = p.Distance, p.Distance
	inst.cost[p.I][p.J], inst.cost[p.J][p.I] = p.Cost, p.Cost
	inst.edge[p.I][p.J], inst.edge[p.J][p.I] = true, true
	return nil
}

// N returns the number of nodes.
func (inst *Instance) N() int { return inst.n }

// CourierCost returns the flat cost of one courier delivery.
func (inst *Instance) CourierCost() int { return inst.courierCost }

// MaxCourierDistance returns the radius within which a courier delivery is possible.
func (inst *Instance) MaxCourierDistance() int { return inst.maxDistance }

// Distance returns the distance between nodes i and j, Unreachable when the pair is unspecified.
func (inst *Instance) Distance(i, j int) int { return inst.distance[i][j] }

// Cost returns the truck cost between nodes i and j, Unreachable when the pair is unspecified.
func (inst *Instance) Cost(i, j int) int { return inst.cost[i][j] }

// HasEdge returns true if the pair (i,j) was specified.
func (inst *Instance) HasEdge(i, j int) bool { return inst.edge[i][j] }

// IsRefrigerated returns true if node i needs cold-chain handling.
func (inst *Instance) IsRefrigerated(i int) bool { return inst.isRefrig[i] }

// IsExclusive returns true if node i must be served by the truck.
func (inst *Instance) IsExclusive(i int) bool { return inst.isExcl[i] }

// Refrigerated returns the refrigerated nodes in increasing order.
func (inst *Instance) Refrigerated() []int { return slices.Clone(inst.refrigerated) }

// Exclusive returns the exclusive nodes in increasing order.
func (inst *Instance) Exclusive() []int { return slices.Clone(inst.exclusive) }

func (inst *Instance) String() string {
	return fmt.Sprintf("instance(n=%d, courierCost=%d, maxCourierDistance=%d, refrigerated=%v, exclusive=%v)",
		inst.n, inst.courierCost, inst.maxDistance, inst.refrigerated, inst.exclusive)
}
