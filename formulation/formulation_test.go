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
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mixedroute/mixedroute/instance"
	"github.com/mixedroute/mixedroute/milp"
)

func mustInstance(t *testing.T, p instance.Params) *instance.Instance {
	t.Helper()
	inst, err := instance.New(p)
	if err != nil {
		t.Fatalf("instance.New() returned with unexpected error %v", err)
	}
	return inst
}

func mustBuild(t *testing.T, inst *instance.Instance, p Policy) *Formulation {
	t.Helper()
	f, err := Build(inst, p)
	if err != nil {
		t.Fatalf("Build() returned with unexpected error %v", err)
	}
	return f
}

func varNames(m *milp.Model) []string {
	var names []string
	for _, v := range m.Variables {
		names = append(names, v.Name)
	}
	return names
}

func rowNames(m *milp.Model) []string {
	var names []string
	for _, r := range m.Constraints {
		names = append(names, r.Name)
	}
	return names
}

// rowTerms returns the coefficients of row `name` keyed by variable name.
func rowTerms(t *testing.T, m *milp.Model, name string) (map[string]float64, milp.ClosedInterval) {
	t.Helper()
	for _, r := range m.Constraints {
		if r.Name != name {
			continue
		}
		terms := make(map[string]float64)
		for _, term := range r.Terms {
			terms[m.Variables[term.Var].Name] = term.Coeff
		}
		return terms, r.Bounds
	}
	t.Fatalf("model has no row %q", name)
	return nil, milp.ClosedInterval{}
}

// triangle is a complete 3-node instance.
func triangle(t *testing.T) *instance.Instance {
	return mustInstance(t, instance.Params{
		N:           3,
		CourierCost: 1,
		Pairs: []instance.Pair{
			{I: 0, J: 1, Distance: 1, Cost: 1},
			{I: 0, J: 2, Distance: 1, Cost: 2},
			{I: 1, J: 2, Distance: 1, Cost: 3},
		},
	})
}

// diamond is a 4-node instance with one unspecified pair (2,3), refrigerated client 2 and
// exclusive client 3. Courier-eligible pairs are {0,1}, {0,3} and {1,2}.
func diamond(t *testing.T) *instance.Instance {
	return mustInstance(t, instance.Params{
		N:                  4,
		CourierCost:        2,
		MaxCourierDistance: 5,
		Refrigerated:       []int{2},
		Exclusive:          []int{3},
		Pairs: []instance.Pair{
			{I: 0, J: 1, Distance: 2, Cost: 10},
			{I: 0, J: 2, Distance: 6, Cost: 12},
			{I: 0, J: 3, Distance: 4, Cost: 9},
			{I: 1, J: 2, Distance: 3, Cost: 7},
			{I: 1, J: 3, Distance: 8, Cost: 5},
		},
	})
}

func TestBuild_TruckOnlyLayout(t *testing.T) {
	f := mustBuild(t, triangle(t), PolicyFor(TruckOnly))

	wantVars := []string{
		"truck_0_1", "truck_0_2", "truck_1_0", "truck_1_2", "truck_2_0", "truck_2_1",
		"order_1", "order_2",
	}
	if diff := cmp.Diff(wantVars, varNames(f.Model)); diff != "" {
		t.Errorf("Build() variables returned with unexpected diff (-want+got):\n%s", diff)
	}
	wantRows := []string{
		"flow_0", "flow_1", "flow_2",
		"truck_visit_0", "truck_visit_1", "truck_visit_2",
		"cover_0", "cover_1", "cover_2",
		"mtz_1_2", "mtz_2_1",
	}
	if diff := cmp.Diff(wantRows, rowNames(f.Model)); diff != "" {
		t.Errorf("Build() constraints returned with unexpected diff (-want+got):\n%s", diff)
	}

	terms, bounds := rowTerms(t, f.Model, "mtz_1_2")
	if diff := cmp.Diff(map[string]float64{"order_1": 1, "order_2": -1, "truck_1_2": 3}, terms); diff != "" {
		t.Errorf("mtz_1_2 terms returned with unexpected diff (-want+got):\n%s", diff)
	}
	if diff := cmp.Diff(milp.AtMost(2), bounds); diff != "" {
		t.Errorf("mtz_1_2 bounds returned with unexpected diff (-want+got):\n%s", diff)
	}
	terms, bounds = rowTerms(t, f.Model, "flow_1")
	if diff := cmp.Diff(map[string]float64{"truck_0_1": 1, "truck_2_1": 1, "truck_1_0": -1, "truck_1_2": -1}, terms); diff != "" {
		t.Errorf("flow_1 terms returned with unexpected diff (-want+got):\n%s", diff)
	}
	if diff := cmp.Diff(milp.Point(0), bounds); diff != "" {
		t.Errorf("flow_1 bounds returned with unexpected diff (-want+got):\n%s", diff)
	}
	if _, bounds = rowTerms(t, f.Model, "truck_visit_2"); bounds != milp.Point(1) {
		t.Errorf("truck_visit_2 bounds = %v, want %v", bounds, milp.Point(1))
	}

	o, ok := f.Index.Order(1)
	if !ok {
		t.Fatalf("Index.Order(1) not found")
	}
	if got, want := o.Bounds(), milp.NewInterval(1, 2); got != want {
		t.Errorf("order_1 bounds = %v, want %v", got, want)
	}
	if _, ok := f.Index.Order(0); ok {
		t.Errorf("Index.Order(0) exists, want none for the tour anchor")
	}

	wantObj := []float64{1, 2, 1, 3, 2, 3, 0, 0}
	if diff := cmp.Diff(wantObj, f.Model.ObjectiveCoefficients()); diff != "" {
		t.Errorf("objective coefficients returned with unexpected diff (-want+got):\n%s", diff)
	}
}

func TestBuild_VariableCounts(t *testing.T) {
	testCases := []struct {
		variant     Variant
		wantCourier int
		wantUsed    int
		wantCount   int
	}{
		{variant: TruckOnly},
		{variant: CourierFlat, wantCourier: 6},
		{variant: CourierCount, wantCourier: 6, wantCount: 1},
		{variant: CourierTrips, wantCourier: 6, wantUsed: 4},
	}

	inst := diamond(t)
	for _, test := range testCases {
		t.Run(test.variant.String(), func(t *testing.T) {
			f := mustBuild(t, inst, PolicyFor(test.variant))
			got := map[Kind]int{}
			for _, k := range []Kind{KindTruckArc, KindCourierArc, KindOrder, KindCourierUsed, KindCourierCount} {
				got[k] = f.Index.NumOf(k)
			}
			want := map[Kind]int{
				KindTruckArc:     4 * 3,
				KindCourierArc:   test.wantCourier,
				KindOrder:        3,
				KindCourierUsed:  test.wantUsed,
				KindCourierCount: test.wantCount,
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("variable counts returned with unexpected diff (-want+got):\n%s", diff)
			}
			if f.Index.Len() != f.Model.NumVariables() {
				t.Errorf("Index.Len() = %d, model has %d variables", f.Index.Len(), f.Model.NumVariables())
			}
		})
	}
}

func TestBuild_CourierEligibility(t *testing.T) {
	inst := diamond(t)
	f := mustBuild(t, inst, PolicyFor(CourierFlat))

	for _, k := range f.Index.Keys() {
		if k.Kind == KindCourierArc && inst.Distance(k.I, k.J) > inst.MaxCourierDistance() {
			t.Errorf("%s exists with distance %d > %d", k.Name(), inst.Distance(k.I, k.J), inst.MaxCourierDistance())
		}
	}
	for i := 0; i < inst.N(); i++ {
		for j := 0; j < inst.N(); j++ {
			_, ok := f.Index.Courier(i, j)
			if want := i != j && inst.Distance(i, j) <= inst.MaxCourierDistance(); ok != want {
				t.Errorf("Index.Courier(%d, %d) found = %v, want %v", i, j, ok, want)
			}
		}
	}

	var from []string
	for _, z := range f.Index.CourierFrom(1) {
		from = append(from, z.Name())
	}
	if diff := cmp.Diff([]string{"courier_1_0", "courier_1_2"}, from); diff != "" {
		t.Errorf("CourierFrom(1) returned with unexpected diff (-want+got):\n%s", diff)
	}
	var into []string
	for _, z := range f.Index.CourierInto(0) {
		into = append(into, z.Name())
	}
	if diff := cmp.Diff([]string{"courier_1_0", "courier_3_0"}, into); diff != "" {
		t.Errorf("CourierInto(0) returned with unexpected diff (-want+got):\n%s", diff)
	}
}

func TestBuild_ZeroCourierDistance(t *testing.T) {
	f := mustBuild(t, triangle(t), PolicyFor(CourierFlat))
	if got := f.Index.NumOf(KindCourierArc); got != 0 {
		t.Errorf("NumOf(KindCourierArc) = %d, want 0 with a zero courier distance", got)
	}
	terms, _ := rowTerms(t, f.Model, "cover_2")
	if diff := cmp.Diff(map[string]float64{"truck_0_2": 1, "truck_1_2": 1}, terms); diff != "" {
		t.Errorf("cover_2 terms returned with unexpected diff (-want+got):\n%s", diff)
	}
	for _, name := range rowNames(f.Model) {
		if name == "dispatch_0" || name == "refrigerated_0" {
			t.Errorf("Build() emitted %q without courier arcs", name)
		}
	}
}

func TestBuild_CourierTripsRows(t *testing.T) {
	f := mustBuild(t, diamond(t), PolicyFor(CourierTrips))
	rows := rowNames(f.Model)

	for _, want := range []string{
		"flow_1", "flow_3", "cover_1", "cover_3", "order_lb_1", "order_ub_3",
		"courier_fixed_1_0", "courier_fixed_3_0", "no_edge_2_3", "no_edge_3_2",
		"dispatch_0", "dispatch_1", "dispatch_2", "dispatch_3",
		"refrigerated_1", "exclusive_3", "depot_entry",
		"trips_max_0", "trips_min_0", "trips_max_3", "trips_min_3",
	} {
		if !slices.Contains(rows, want) {
			t.Errorf("Build() did not emit row %q", want)
		}
	}
	for _, unwanted := range []string{"flow_0", "cover_0", "truck_visit_0", "refrigerated_0", "no_edge_0_1", "courier_count"} {
		if slices.Contains(rows, unwanted) {
			t.Errorf("Build() emitted unexpected row %q", unwanted)
		}
	}

	terms, bounds := rowTerms(t, f.Model, "dispatch_0")
	wantTerms := map[string]float64{"courier_0_1": 1, "courier_0_3": 1, "truck_1_0": -2, "truck_2_0": -2, "truck_3_0": -2}
	if diff := cmp.Diff(wantTerms, terms); diff != "" {
		t.Errorf("dispatch_0 terms returned with unexpected diff (-want+got):\n%s", diff)
	}
	if diff := cmp.Diff(milp.AtMost(0), bounds); diff != "" {
		t.Errorf("dispatch_0 bounds returned with unexpected diff (-want+got):\n%s", diff)
	}

	terms, bounds = rowTerms(t, f.Model, "trips_max_1")
	if diff := cmp.Diff(map[string]float64{"courier_1_0": 1, "courier_1_2": 1, "courier_used_1": -4}, terms); diff != "" {
		t.Errorf("trips_max_1 terms returned with unexpected diff (-want+got):\n%s", diff)
	}
	if diff := cmp.Diff(milp.AtMost(0), bounds); diff != "" {
		t.Errorf("trips_max_1 bounds returned with unexpected diff (-want+got):\n%s", diff)
	}
	terms, bounds = rowTerms(t, f.Model, "trips_min_2")
	if diff := cmp.Diff(map[string]float64{"courier_2_1": 1, "courier_used_2": -1}, terms); diff != "" {
		t.Errorf("trips_min_2 terms returned with unexpected diff (-want+got):\n%s", diff)
	}
	if diff := cmp.Diff(milp.AtLeast(0), bounds); diff != "" {
		t.Errorf("trips_min_2 bounds returned with unexpected diff (-want+got):\n%s", diff)
	}

	terms, _ = rowTerms(t, f.Model, "exclusive_3")
	if diff := cmp.Diff(map[string]float64{"truck_0_3": 1, "truck_1_3": 1, "truck_2_3": 1}, terms); diff != "" {
		t.Errorf("exclusive_3 terms returned with unexpected diff (-want+got):\n%s", diff)
	}

	o, _ := f.Index.Order(2)
	if got, want := o.Bounds(), milp.NewInterval(0, 3); got != want {
		t.Errorf("order_2 bounds = %v, want %v", got, want)
	}
}

func TestBuild_PerArcDispatch(t *testing.T) {
	p := PolicyFor(CourierFlat)
	p.Dispatch = PerArc
	f := mustBuild(t, diamond(t), p)

	var got []string
	for _, name := range rowNames(f.Model) {
		if len(name) > len("dispatch_") && name[:len("dispatch_")] == "dispatch_" {
			got = append(got, name)
		}
	}
	want := []string{"dispatch_0_1", "dispatch_0_3", "dispatch_1_0", "dispatch_1_2", "dispatch_2_1", "dispatch_3_0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dispatch rows returned with unexpected diff (-want+got):\n%s", diff)
	}
	terms, _ := rowTerms(t, f.Model, "dispatch_2_1")
	if diff := cmp.Diff(map[string]float64{"courier_2_1": 1, "truck_0_2": -1, "truck_1_2": -1, "truck_3_2": -1}, terms); diff != "" {
		t.Errorf("dispatch_2_1 terms returned with unexpected diff (-want+got):\n%s", diff)
	}
}

func TestBuild_CountObjective(t *testing.T) {
	f := mustBuild(t, diamond(t), PolicyFor(CourierCount))
	count, ok := f.Index.Count()
	if !ok {
		t.Fatalf("Index.Count() not found")
	}
	coeffs := f.Model.ObjectiveCoefficients()
	if got := coeffs[count.Index()]; got != 2 {
		t.Errorf("objective coefficient of courier_count = %v, want 2", got)
	}
	for _, z := range f.Index.CourierFrom(0) {
		if got := coeffs[z.Index()]; got != 0 {
			t.Errorf("objective coefficient of %s = %v, want 0 with a count charge", z.Name(), got)
		}
	}
	terms, bounds := rowTerms(t, f.Model, "courier_count")
	want := map[string]float64{"courier_count": 1}
	for _, k := range f.Index.Keys() {
		if k.Kind == KindCourierArc {
			want[k.Name()] = -1
		}
	}
	if diff := cmp.Diff(want, terms); diff != "" {
		t.Errorf("courier_count terms returned with unexpected diff (-want+got):\n%s", diff)
	}
	if bounds != milp.Point(0) {
		t.Errorf("courier_count bounds = %v, want %v", bounds, milp.Point(0))
	}
}

func TestBuild_Deterministic(t *testing.T) {
	inst := diamond(t)
	for _, v := range []Variant{TruckOnly, CourierFlat, CourierCount, CourierTrips} {
		first := mustBuild(t, inst, PolicyFor(v))
		second := mustBuild(t, inst, PolicyFor(v))
		if diff := cmp.Diff(first.Model, second.Model); diff != "" {
			t.Errorf("Build(%v) is not reproducible (-first+second):\n%s", v, diff)
		}
		lp1, err := milp.ExportModelAsLpFormat(first.Model)
		if err != nil {
			t.Fatalf("ExportModelAsLpFormat() returned with unexpected error %v", err)
		}
		lp2, _ := milp.ExportModelAsLpFormat(second.Model)
		if lp1 != lp2 {
			t.Errorf("LP export of %v differs between two builds", v)
		}
	}
}

func TestBuild_SingleNode(t *testing.T) {
	inst := mustInstance(t, instance.Params{N: 1})
	f := mustBuild(t, inst, PolicyFor(CourierTrips))
	if diff := cmp.Diff([]string{"courier_used_0"}, varNames(f.Model)); diff != "" {
		t.Errorf("Build() variables returned with unexpected diff (-want+got):\n%s", diff)
	}
	if got := f.Model.NumConstraints(); got != 0 {
		t.Errorf("NumConstraints() = %d, want 0", got)
	}
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(nil, PolicyFor(TruckOnly)); err == nil {
		t.Errorf("Build(nil) returned nil error")
	}
	p := PolicyFor(CourierTrips)
	p.MaxTrips = 0
	if _, err := Build(triangle(t), p); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("Build() returned error %v, want %v", err, ErrInvalidPolicy)
	}
}

// tripsInstance has a depot 0 and six clients, every pair at distance 1.
func tripsInstance(t *testing.T) *instance.Instance {
	var pairs []instance.Pair
	for i := 0; i < 7; i++ {
		for j := i + 1; j < 7; j++ {
			pairs = append(pairs, instance.Pair{I: i, J: j, Distance: 1, Cost: 10})
		}
	}
	return mustInstance(t, instance.Params{N: 7, CourierCost: 1, MaxCourierDistance: 5, Pairs: pairs})
}

type assignment struct {
	truck   [][2]int
	courier [][2]int
	order   map[int]float64
	used    []int
}

func (a assignment) values(t *testing.T, f *Formulation) []float64 {
	t.Helper()
	values := make([]float64, f.Model.NumVariables())
	set := func(k Key, v float64) {
		x, ok := f.Index.Lookup(k)
		if !ok {
			t.Fatalf("no variable %s", k.Name())
		}
		values[x.Index()] = v
	}
	for _, arc := range a.truck {
		set(Key{KindTruckArc, arc[0], arc[1]}, 1)
	}
	for _, arc := range a.courier {
		set(Key{KindCourierArc, arc[0], arc[1]}, 1)
	}
	for i, o := range a.order {
		set(Key{KindOrder, i, 0}, o)
	}
	for _, k := range a.used {
		set(Key{KindCourierUsed, k, 0}, 1)
	}
	return values
}

func violated(t *testing.T, f *Formulation, values []float64) []string {
	t.Helper()
	vs, err := f.Model.Violations(values, 1e-9)
	if err != nil {
		t.Fatalf("Violations() returned with unexpected error %v", err)
	}
	var names []string
	for _, v := range vs {
		names = append(names, v.Name)
	}
	return names
}

func TestBuild_CourierUsedLinksTripCount(t *testing.T) {
	f := mustBuild(t, tripsInstance(t), PolicyFor(CourierTrips))
	fourFromOne := assignment{
		truck:   [][2]int{{0, 1}, {1, 6}, {6, 0}},
		courier: [][2]int{{1, 2}, {1, 3}, {1, 4}, {1, 5}},
		order:   map[int]float64{1: 1, 6: 2},
		used:    []int{1},
	}
	fiveFromOne := assignment{
		truck:   [][2]int{{0, 1}, {1, 0}},
		courier: [][2]int{{1, 2}, {1, 3}, {1, 4}, {1, 5}, {1, 6}},
		order:   map[int]float64{1: 1},
		used:    []int{1},
	}
	unflagged := fourFromOne
	unflagged.used = nil
	idleFlag := fourFromOne
	idleFlag.used = []int{1, 6}
	fiveUnflagged := fiveFromOne
	fiveUnflagged.used = nil

	testCases := []struct {
		name string
		a    assignment
		want []string
	}{
		{name: "FourDeliveries", a: fourFromOne},
		{name: "FourDeliveriesWithoutFlag", a: unflagged, want: []string{"trips_max_1"}},
		{name: "FlagWithoutDeliveries", a: idleFlag, want: []string{"trips_min_6"}},
		{name: "FiveDeliveries", a: fiveFromOne, want: []string{"trips_max_1"}},
		{name: "FiveDeliveriesWithoutFlag", a: fiveUnflagged, want: []string{"trips_max_1"}},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			got := violated(t, f, test.a.values(t, f))
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Violations() returned with unexpected diff (-want+got):\n%s", diff)
			}
		})
	}

	values := fourFromOne.values(t, f)
	for k := 0; k < 7; k++ {
		u, _ := f.Value(values, Key{KindCourierUsed, k, 0})
		if d := f.Deliveries(values, k); (u == 1) != (d >= 1 && d <= 4) {
			t.Errorf("stop %d: courier_used = %v with %d deliveries", k, u, d)
		}
	}
}

func TestBuild_TruckOnlyTourIsFeasible(t *testing.T) {
	f := mustBuild(t, triangle(t), PolicyFor(TruckOnly))
	tour := assignment{
		truck: [][2]int{{0, 1}, {1, 2}, {2, 0}},
		order: map[int]float64{1: 1, 2: 2},
	}
	if got := violated(t, f, tour.values(t, f)); len(got) != 0 {
		t.Errorf("Violations() = %v for the tour 0-1-2-0, want none", got)
	}
	if got := f.Model.ObjectiveValue(tour.values(t, f)); got != 6 {
		t.Errorf("ObjectiveValue() = %v, want 6", got)
	}

	subtours := assignment{
		truck: [][2]int{{1, 2}, {2, 1}},
		order: map[int]float64{1: 1, 2: 2},
	}
	got := violated(t, f, subtours.values(t, f))
	if !slices.Contains(got, "mtz_2_1") {
		t.Errorf("Violations() = %v for a subtour, want mtz_2_1 among them", got)
	}
}

func TestPolicy_Validate(t *testing.T) {
	for _, v := range []Variant{TruckOnly, CourierFlat, CourierCount, CourierTrips} {
		if err := PolicyFor(v).Validate(); err != nil {
			t.Errorf("PolicyFor(%v).Validate() returned with unexpected error %v", v, err)
		}
	}

	testCases := []struct {
		name   string
		policy Policy
	}{
		{name: "UnknownDepotMode", policy: Policy{DepotMode: 7}},
		{name: "UnknownDispatch", policy: Policy{Couriers: true, Dispatch: -1}},
		{name: "CountWithoutCouriers", policy: Policy{CourierCharge: Count}},
		{name: "TripCapWithoutCouriers", policy: Policy{TripCap: true, MinTrips: 1, MaxTrips: 4}},
		{name: "DepotEntryInClientPool", policy: Policy{DepotEntry: true}},
		{name: "EmptyTripRange", policy: Policy{Couriers: true, TripCap: true, MinTrips: 3, MaxTrips: 2}},
		{name: "ZeroMinTrips", policy: Policy{Couriers: true, TripCap: true, MinTrips: 0, MaxTrips: 2}},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			if err := test.policy.Validate(); !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("Validate() returned %v, want %v", err, ErrInvalidPolicy)
			}
		})
	}
}

func TestParseVariant(t *testing.T) {
	for _, v := range []Variant{TruckOnly, CourierFlat, CourierCount, CourierTrips} {
		got, err := ParseVariant(v.String())
		if err != nil {
			t.Errorf("ParseVariant(%q) returned with unexpected error %v", v.String(), err)
		}
		if got != v {
			t.Errorf("ParseVariant(%q) = %v, want %v", v.String(), got, v)
		}
	}
	if got, err := ParseVariant("Courier-Trips"); err != nil || got != CourierTrips {
		t.Errorf("ParseVariant(\"Courier-Trips\") = %v, %v, want %v", got, err, CourierTrips)
	}
	if _, err := ParseVariant("bike"); err == nil {
		t.Errorf("ParseVariant(\"bike\") returned nil error")
	}
}
