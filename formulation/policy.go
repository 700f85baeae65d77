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
	"errors"
	"fmt"
	"strings"
)

// Variant names one of the preset formulations.
type Variant int

const (
	// TruckOnly is a plain truck tour through every node.
	TruckOnly Variant = iota
	// CourierFlat lets couriers serve clients from truck stops at a flat cost per delivery.
	CourierFlat
	// CourierCount charges couriers through an aggregate delivery count variable.
	CourierCount
	// CourierTrips treats node 0 as a depot and caps the courier deliveries of every stop.
	CourierTrips
)

var variantNames = []string{"truck-only", "courier-flat", "courier-count", "courier-trips"}

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return fmt.Sprintf("Variant(%d)", int(v))
	}
	return variantNames[v]
}

// ParseVariant returns the variant named `s`, as printed by Variant.String.
func ParseVariant(s string) (Variant, error) {
	for i, name := range variantNames {
		if strings.EqualFold(s, name) {
			return Variant(i), nil
		}
	}
	return 0, fmt.Errorf("unknown variant %q, want one of %s", s, strings.Join(variantNames, ", "))
}

// DepotMode selects the role of node 0.
type DepotMode int

const (
	// ClientPool treats node 0 as an ordinary client that anchors the truck tour.
	ClientPool DepotMode = iota
	// DepotNode treats node 0 as the depot: it is not a client and needs no coverage.
	DepotNode
)

// CourierCharge selects how courier deliveries are priced in the objective.
type CourierCharge int

const (
	// PerDelivery charges the courier cost on every courier arc.
	PerDelivery CourierCharge = iota
	// Count charges the courier cost on a count variable linked to the courier arcs.
	Count
)

// Dispatch selects how courier arcs are tied to truck visits of their origin.
type Dispatch int

const (
	// Aggregate links all courier arcs of a stop with one big-M row.
	Aggregate Dispatch = iota
	// PerArc links every courier arc with its own row.
	PerArc
)

// TruckVisit selects the out-degree rule of the truck.
type TruckVisit int

const (
	// AtMostOnce lets the truck skip a node.
	AtMostOnce TruckVisit = iota
	// ExactlyOnce makes the truck leave every served node.
	ExactlyOnce
)

// MissingEdges selects how truck arcs over unspecified pairs are treated.
type MissingEdges int

const (
	// Penalize keeps the arcs at the Unreachable cost.
	Penalize MissingEdges = iota
	// Forbid fixes the arcs to 0.
	Forbid
)

// Policy configures which rules the builder emits and in which form.
type Policy struct {
	DepotMode        DepotMode
	Couriers         bool
	CourierCharge    CourierCharge
	Dispatch         Dispatch
	TruckVisit       TruckVisit
	TightenOrder     bool
	RefrigerationCap bool
	DepotEntry       bool
	// TripCap bounds the deliveries of a courier-dispatching stop to [MinTrips,MaxTrips].
	TripCap      bool
	MinTrips     int
	MaxTrips     int
	MissingEdges MissingEdges
}

// Default trip cap bounds.
const (
	DefaultMinTrips = 1
	DefaultMaxTrips = 4
)

// PolicyFor returns the preset policy of variant `v`.
func PolicyFor(v Variant) Policy {
	switch v {
	case CourierFlat:
		return Policy{
			Couriers:         true,
			RefrigerationCap: true,
		}
	case CourierCount:
		return Policy{
			Couriers:         true,
			CourierCharge:    Count,
			RefrigerationCap: true,
		}
	case CourierTrips:
		return Policy{
			DepotMode:        DepotNode,
			Couriers:         true,
			TightenOrder:     true,
			RefrigerationCap: true,
			DepotEntry:       true,
			TripCap:          true,
			MinTrips:         DefaultMinTrips,
			MaxTrips:         DefaultMaxTrips,
			MissingEdges:     Forbid,
		}
	}
	return Policy{TruckVisit: ExactlyOnce}
}

// ErrInvalidPolicy is wrapped by the errors of Policy.Validate.
var ErrInvalidPolicy = errors.New("invalid policy")

// Validate returns an error if the options of `p` are out of range or inconsistent.
func (p Policy) Validate() error {
	switch {
	case p.DepotMode != ClientPool && p.DepotMode != DepotNode:
		return fmt.Errorf("%w: unknown depot mode %d", ErrInvalidPolicy, p.DepotMode)
	case p.CourierCharge != PerDelivery && p.CourierCharge != Count:
		return fmt.Errorf("%w: unknown courier charge %d", ErrInvalidPolicy, p.CourierCharge)
	case p.Dispatch != Aggregate && p.Dispatch != PerArc:
		return fmt.Errorf("%w: unknown dispatch %d", ErrInvalidPolicy, p.Dispatch)
	case p.TruckVisit != AtMostOnce && p.TruckVisit != ExactlyOnce:
		return fmt.Errorf("%w: unknown truck visit rule %d", ErrInvalidPolicy, p.TruckVisit)
	case p.MissingEdges != Penalize && p.MissingEdges != Forbid:
		return fmt.Errorf("%w: unknown missing edge rule %d", ErrInvalidPolicy, p.MissingEdges)
	case !p.Couriers && (p.CourierCharge == Count || p.RefrigerationCap || p.TripCap):
		return fmt.Errorf("%w: courier options set without couriers", ErrInvalidPolicy)
	case p.DepotEntry && p.DepotMode != DepotNode:
		return fmt.Errorf("%w: depot entry requires the depot node mode", ErrInvalidPolicy)
	case p.TripCap && (p.MinTrips < 1 || p.MaxTrips < p.MinTrips):
		return fmt.Errorf("%w: trip cap bounds [%d,%d] must satisfy 1 <= min <= max", ErrInvalidPolicy, p.MinTrips, p.MaxTrips)
	}
	return nil
}
