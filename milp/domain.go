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

// ClosedInterval stores the closed interval `[start,end]` over the extended reals. An unbounded
// side is represented by math.Inf. If `Start` is greater than `End`, the interval is considered
// empty.
type ClosedInterval struct {
	Start float64
	End   float64
}

// NewInterval creates a new interval `[lb,ub]`.
func NewInterval(lb, ub float64) ClosedInterval {
	return ClosedInterval{Start: lb, End: ub}
}

// Point creates the degenerate interval `[v,v]`.
func Point(v float64) ClosedInterval {
	return ClosedInterval{Start: v, End: v}
}

// AtMost creates the interval `(-inf,ub]`.
func AtMost(ub float64) ClosedInterval {
	return ClosedInterval{Start: math.Inf(-1), End: ub}
}

// AtLeast creates the interval `[lb,+inf)`.
func AtLeast(lb float64) ClosedInterval {
	return ClosedInterval{Start: lb, End: math.Inf(1)}
}

// Offset adds an offset to both the `Start` and `End` of the ClosedInterval `c`. Infinite bounds
// absorb the offset.
func (c ClosedInterval) Offset(delta float64) ClosedInterval {
	return ClosedInterval{c.Start + delta, c.End + delta}
}

// IsEmpty returns true if the interval contains no value.
func (c ClosedInterval) IsEmpty() bool {
	return c.Start > c.End
}

// IsFixed returns true if the interval contains exactly one value.
func (c ClosedInterval) IsFixed() bool {
	return c.Start == c.End
}

// HasLower returns true if the interval is bounded from below.
func (c ClosedInterval) HasLower() bool {
	return !math.IsInf(c.Start, -1)
}

// HasUpper returns true if the interval is bounded from above.
func (c ClosedInterval) HasUpper() bool {
	return !math.IsInf(c.End, 1)
}

// Contains returns true if `v` lies in the interval, allowing an absolute slack of `tol` on both
// sides.
func (c ClosedInterval) Contains(v, tol float64) bool {
	return v >= c.Start-tol && v <= c.End+tol
}

// Intersect returns the intersection of both intervals. The result may be empty.
func (c ClosedInterval) Intersect(o ClosedInterval) ClosedInterval {
	return ClosedInterval{math.Max(c.Start, o.Start), math.Min(c.End, o.End)}
}

func (c ClosedInterval) String() string {
	lo, hi := "[", "]"
	if !c.HasLower() {
		lo = "("
	}
	if !c.HasUpper() {
		hi = ")"
	}
	return fmt.Sprintf("%s%v,%v%s", lo, c.Start, c.End, hi)
}
