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

// Package config loads the settings of a mixedroute run from YAML.
//
// A config file selects a variant preset and optionally overrides single policy options, the
// solver parameters and the output settings. Fields absent from the file keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/mixedroute/mixedroute/formulation"
	"github.com/mixedroute/mixedroute/report"
	"github.com/mixedroute/mixedroute/solver"
)

// PolicyOverrides replaces single options of the variant preset. Nil fields keep the preset value.
type PolicyOverrides struct {
	DepotMode        *string `yaml:"depot_mode"`
	Couriers         *bool   `yaml:"couriers"`
	CourierCharge    *string `yaml:"courier_charge"`
	Dispatch         *string `yaml:"dispatch"`
	TruckVisit       *string `yaml:"truck_visit"`
	TightenOrder     *bool   `yaml:"tighten_order"`
	RefrigerationCap *bool   `yaml:"refrigeration_cap"`
	DepotEntry       *bool   `yaml:"depot_entry"`
	TripCap          *bool   `yaml:"trip_cap"`
	MinTrips         *int    `yaml:"min_trips"`
	MaxTrips         *int    `yaml:"max_trips"`
	MissingEdges     *string `yaml:"missing_edges"`
}

// Solver holds the solver parameters.
type Solver struct {
	TimeLimit            time.Duration `yaml:"time_limit"`
	RelativeGap          float64       `yaml:"relative_gap"`
	AbsoluteGap          float64       `yaml:"absolute_gap"`
	IntegralityTolerance float64       `yaml:"integrality_tolerance"`
	MaxNodes             int           `yaml:"max_nodes"`
}

// Output selects where and how models and reports are written.
type Output struct {
	// Dir receives one model file per instance. Empty disables model export.
	Dir string `yaml:"dir"`
	// Format is "lp" or "mps".
	Format string `yaml:"format"`
	// Report is "text" or "json".
	Report string `yaml:"report"`
	// Tolerance is the value above which a variable is reported as active.
	Tolerance float64 `yaml:"tolerance"`
}

// Config is the settings of a run.
type Config struct {
	Variant   string          `yaml:"variant"`
	Overrides PolicyOverrides `yaml:"policy"`
	Solver    Solver          `yaml:"solver"`
	Output    Output          `yaml:"output"`
	// Parallel bounds the number of instances solved at once.
	Parallel int `yaml:"parallel"`
	// MetricsTextfile, when set, receives the solve metrics in the Prometheus text format.
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Model file formats.
const (
	FormatLP  = "lp"
	FormatMPS = "mps"
)

// Report formats.
const (
	ReportText = "text"
	ReportJSON = "json"
)

// Default returns the settings used when no config file is given.
func Default() *Config {
	p := solver.DefaultParameters()
	return &Config{
		Variant: formulation.CourierTrips.String(),
		Solver: Solver{
			TimeLimit:            p.TimeLimit,
			RelativeGap:          p.RelativeGap,
			AbsoluteGap:          p.AbsoluteGap,
			IntegralityTolerance: p.IntegralityTolerance,
			MaxNodes:             p.MaxNodes,
		},
		Output: Output{
			Dir:       ".",
			Format:    FormatLP,
			Report:    ReportText,
			Tolerance: report.DefaultTolerance,
		},
		Parallel: 1,
	}
}

// ErrInvalidConfig is wrapped by the errors of Config.Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Parse decodes a YAML document over the defaults. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses the config file at `path`.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	log.V(1).Infof("Loaded config %s: variant %s", path, c.Variant)
	return c, nil
}

// Validate returns an error if a setting is out of range or the resulting policy is invalid.
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return err
	}
	if err := c.SolverParameters().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch {
	case c.Output.Format != FormatLP && c.Output.Format != FormatMPS:
		return fmt.Errorf("%w: unknown model format %q", ErrInvalidConfig, c.Output.Format)
	case c.Output.Report != ReportText && c.Output.Report != ReportJSON:
		return fmt.Errorf("%w: unknown report format %q", ErrInvalidConfig, c.Output.Report)
	case c.Output.Tolerance < 0:
		return fmt.Errorf("%w: negative report tolerance %v", ErrInvalidConfig, c.Output.Tolerance)
	case c.Parallel < 1:
		return fmt.Errorf("%w: parallel must be at least 1, got %d", ErrInvalidConfig, c.Parallel)
	}
	return nil
}

func lookup[T any](field, s string, values map[string]T) (T, error) {
	v, ok := values[s]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: unknown %s %q", ErrInvalidConfig, field, s)
	}
	return v, nil
}

var (
	depotModes     = map[string]formulation.DepotMode{"client_pool": formulation.ClientPool, "depot_node": formulation.DepotNode}
	courierCharges = map[string]formulation.CourierCharge{"per_delivery": formulation.PerDelivery, "count": formulation.Count}
	dispatches     = map[string]formulation.Dispatch{"aggregate": formulation.Aggregate, "per_arc": formulation.PerArc}
	truckVisits    = map[string]formulation.TruckVisit{"at_most_once": formulation.AtMostOnce, "exactly_once": formulation.ExactlyOnce}
	missingEdges   = map[string]formulation.MissingEdges{"penalize": formulation.Penalize, "forbid": formulation.Forbid}
)

func overrideEnum[T any](dst *T, field string, s *string, values map[string]T) error {
	if s == nil {
		return nil
	}
	v, err := lookup(field, *s, values)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func override[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Policy returns the preset of the configured variant with the overrides applied.
func (c *Config) Policy() (formulation.Policy, error) {
	v, err := formulation.ParseVariant(c.Variant)
	if err != nil {
		return formulation.Policy{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	p := formulation.PolicyFor(v)
	o := c.Overrides
	for _, err := range []error{
		overrideEnum(&p.DepotMode, "depot mode", o.DepotMode, depotModes),
		overrideEnum(&p.CourierCharge, "courier charge", o.CourierCharge, courierCharges),
		overrideEnum(&p.Dispatch, "dispatch", o.Dispatch, dispatches),
		overrideEnum(&p.TruckVisit, "truck visit rule", o.TruckVisit, truckVisits),
		overrideEnum(&p.MissingEdges, "missing edge rule", o.MissingEdges, missingEdges),
	} {
		if err != nil {
			return formulation.Policy{}, err
		}
	}
	override(&p.Couriers, o.Couriers)
	override(&p.TightenOrder, o.TightenOrder)
	override(&p.RefrigerationCap, o.RefrigerationCap)
	override(&p.DepotEntry, o.DepotEntry)
	override(&p.TripCap, o.TripCap)
	override(&p.MinTrips, o.MinTrips)
	override(&p.MaxTrips, o.MaxTrips)
	if p.TripCap && o.MinTrips == nil && p.MinTrips == 0 {
		p.MinTrips = formulation.DefaultMinTrips
	}
	if p.TripCap && o.MaxTrips == nil && p.MaxTrips == 0 {
		p.MaxTrips = formulation.DefaultMaxTrips
	}
	if err := p.Validate(); err != nil {
		return formulation.Policy{}, err
	}
	return p, nil
}

// SolverParameters returns the solver settings as solver.Parameters.
func (c *Config) SolverParameters() solver.Parameters {
	return solver.Parameters{
		TimeLimit:            c.Solver.TimeLimit,
		RelativeGap:          c.Solver.RelativeGap,
		AbsoluteGap:          c.Solver.AbsoluteGap,
		IntegralityTolerance: c.Solver.IntegralityTolerance,
		MaxNodes:             c.Solver.MaxNodes,
	}
}
