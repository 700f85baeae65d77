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

// Package metrics records solve outcomes in a Prometheus registry.
//
// A batch run has no scrape endpoint, so the registry is written once at the end in the text
// exposition format, ready for the node exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mixedroute/mixedroute/milp"
	"github.com/mixedroute/mixedroute/solver"
)

// Namespace prefixes every metric name.
const Namespace = "mixedroute"

// Metrics holds the collectors of a run.
type Metrics struct {
	Registry *prometheus.Registry

	SolvesTotal   *prometheus.CounterVec
	SolveDuration *prometheus.HistogramVec
	Nodes         *prometheus.HistogramVec
	Gap           *prometheus.GaugeVec
	ModelSize     *prometheus.GaugeVec
}

// New returns collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		SolvesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "solves_total",
				Help:      "Solved instances by variant and final status.",
			},
			[]string{"variant", "status"},
		),
		SolveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "solve_duration_seconds",
				Help:      "Wall time of a solve in seconds.",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"variant"},
		),
		Nodes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "search_nodes",
				Help:      "Branch-and-bound nodes explored per solve.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"variant"},
		),
		Gap: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_gap_ratio",
				Help:      "Relative optimality gap of the last solve with a solution.",
			},
			[]string{"variant"},
		),
		ModelSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_model_size",
				Help:      "Variables and constraints of the last built model.",
			},
			[]string{"variant", "dimension"},
		),
	}
}

// ObserveModel records the dimensions of a built model.
func (m *Metrics) ObserveModel(variant string, model *milp.Model) {
	m.ModelSize.WithLabelValues(variant, "variables").Set(float64(model.NumVariables()))
	m.ModelSize.WithLabelValues(variant, "constraints").Set(float64(model.NumConstraints()))
}

// Observe records the outcome of a solve.
func (m *Metrics) Observe(variant string, r *solver.Response) {
	m.SolvesTotal.WithLabelValues(variant, r.Status.String()).Inc()
	m.SolveDuration.WithLabelValues(variant).Observe(r.WallTime.Seconds())
	m.Nodes.WithLabelValues(variant).Observe(float64(r.Nodes))
	if r.Status.HasSolution() {
		m.Gap.WithLabelValues(variant).Set(r.Gap)
	}
}

// WriteTextfile writes the registry to `path` in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
