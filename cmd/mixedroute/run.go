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

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/mixedroute/mixedroute/config"
	"github.com/mixedroute/mixedroute/formulation"
	"github.com/mixedroute/mixedroute/instance"
	"github.com/mixedroute/mixedroute/metrics"
	"github.com/mixedroute/mixedroute/milp"
	"github.com/mixedroute/mixedroute/report"
	"github.com/mixedroute/mixedroute/solver"
)

// run solves every instance of `paths` with at most cfg.Parallel solves in flight and writes the
// reports to `out` in the order of `paths`.
func run(ctx context.Context, cfg *config.Config, paths []string, out io.Writer) error {
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	m := metrics.New()
	outputs := make([]bytes.Buffer, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := solveInstance(ctx, cfg, policy, m, path, &outputs[i]); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	err = g.Wait()
	for i := range outputs {
		if _, werr := outputs[i].WriteTo(out); werr != nil && err == nil {
			err = werr
		}
	}
	if err != nil {
		return err
	}
	if cfg.MetricsTextfile != "" {
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

// modelPath returns the file receiving the model of the instance at `path`.
func modelPath(cfg *config.Config, path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(cfg.Output.Dir, base+"."+cfg.Output.Format)
}

func exportModel(cfg *config.Config, model *milp.Model, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	write := milp.WriteLP
	if cfg.Output.Format == config.FormatMPS {
		write = milp.WriteMPS
	}
	if err := write(f, model); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func solveInstance(ctx context.Context, cfg *config.Config, policy formulation.Policy, m *metrics.Metrics, path string, out io.Writer) error {
	inst, err := instance.Load(path)
	if err != nil {
		return err
	}
	f, err := formulation.Build(inst, policy)
	if err != nil {
		return err
	}
	m.ObserveModel(cfg.Variant, f.Model)
	if cfg.Output.Dir != "" {
		mp := modelPath(cfg, path)
		if err := exportModel(cfg, f.Model, mp); err != nil {
			return fmt.Errorf("exporting model: %w", err)
		}
		log.V(1).Infof("Wrote %s", mp)
	}

	r, err := solver.SolveWithParameters(ctx, f.Model, cfg.SolverParameters())
	if err != nil {
		return err
	}
	m.Observe(cfg.Variant, r)
	if err := r.Err(); err != nil {
		log.Warningf("%s: %v", path, err)
	}

	rep := report.New(f, r, cfg.Output.Tolerance)
	rep.Variant = cfg.Variant
	if r.Status.HasSolution() && !rep.Consistent() {
		log.Warningf("%s: reported cost %v differs from the objective %v", path, rep.TotalCost, rep.Objective)
	}
	if cfg.Output.Report == config.ReportJSON {
		return rep.WriteJSON(out)
	}
	fmt.Fprintf(out, "Instance: %s\n", path)
	return rep.WriteText(out)
}
