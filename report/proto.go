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
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func finite(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

func intList(ns []int) []any {
	out := make([]any, len(ns))
	for i, n := range ns {
		out[i] = n
	}
	return out
}

// Summary returns the report as a google.protobuf.Struct.
func (rep *Report) Summary() (*structpb.Struct, error) {
	fields := map[string]any{
		"run_id":            rep.RunID,
		"status":            rep.Status.String(),
		"nodes":             rep.Nodes,
		"wall_time_seconds": rep.WallTime.Seconds(),
	}
	if rep.Variant != "" {
		fields["variant"] = rep.Variant
	}
	if rep.Status.HasSolution() {
		fields["objective"] = finite(rep.Objective)
		fields["best_bound"] = finite(rep.BestBound)
		fields["gap"] = finite(rep.Gap)
		active := make(map[string]any, len(rep.Active))
		for _, e := range rep.Active {
			active[e.Name] = e.Value
		}
		fields["active"] = active
		fields["route"] = intList(rep.Route)
		deliveries := make([]any, len(rep.Deliveries))
		for i, d := range rep.Deliveries {
			deliveries[i] = map[string]any{"stop": d.Stop, "clients": intList(d.Clients)}
		}
		fields["deliveries"] = deliveries
		fields["cost"] = map[string]any{
			"truck":   rep.TruckCost,
			"courier": rep.CourierCost,
			"total":   rep.TotalCost,
		}
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("report summary: %w", err)
	}
	return s, nil
}

// WriteJSON writes Summary in the canonical JSON mapping of google.protobuf.Struct.
func (rep *Report) WriteJSON(w io.Writer) error {
	s, err := rep.Summary()
	if err != nil {
		return err
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling report summary: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
