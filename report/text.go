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

package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func joinInts(ns []int, sep string) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, sep)
}

// WriteText writes the report in a human readable form: the objective and status, then every
// active variable as `name: value`, arcs annotated with their cost.
func (rep *Report) WriteText(out io.Writer) error {
	w := bufio.NewWriter(out)
	if rep.Variant != "" {
		fmt.Fprintf(w, "Variant: %s\n", rep.Variant)
	}
	if !rep.Status.HasSolution() {
		fmt.Fprintf(w, "No solution (%v) after %d nodes in %v\n", rep.Status, rep.Nodes, rep.WallTime)
		return w.Flush()
	}
	fmt.Fprintf(w, "Objective: %v (%v)\n", rep.Objective, rep.Status)
	if rep.Gap > 0 {
		fmt.Fprintf(w, "Best bound: %v (gap %.2f%%)\n", rep.BestBound, 100*rep.Gap)
	}
	w.WriteString("Active variables:\n")
	for _, e := range rep.Active {
		if e.HasCost {
			fmt.Fprintf(w, "  %s: %s cost: %v\n", e.Name, formatValue(e.Value), e.Cost)
		} else {
			fmt.Fprintf(w, "  %s: %s\n", e.Name, formatValue(e.Value))
		}
	}
	fmt.Fprintf(w, "Truck route: %s\n", joinInts(rep.Route, " -> "))
	if len(rep.Deliveries) > 0 {
		w.WriteString("Courier deliveries:\n")
		for _, d := range rep.Deliveries {
			fmt.Fprintf(w, "  from %d: %s\n", d.Stop, joinInts(d.Clients, " "))
		}
	}
	fmt.Fprintf(w, "Cost: truck %v + courier %v = %v\n", rep.TruckCost, rep.CourierCost, rep.TotalCost)
	return w.Flush()
}
