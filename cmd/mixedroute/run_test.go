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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mixedroute/mixedroute/config"
)

func TestRun_Text(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Variant = "courier-flat"
	cfg.Solver.RelativeGap = 0
	cfg.Output.Dir = filepath.Join(dir, "models")
	cfg.Parallel = 2
	cfg.MetricsTextfile = filepath.Join(dir, "mixedroute.prom")

	var out bytes.Buffer
	paths := []string{filepath.Join("testdata", "triangle.txt"), filepath.Join("testdata", "hub.txt")}
	if err := run(context.Background(), cfg, paths, &out); err != nil {
		t.Fatalf("run() returned with unexpected error %v", err)
	}
	got := out.String()
	first := strings.Index(got, "Instance: "+paths[0])
	second := strings.Index(got, "Instance: "+paths[1])
	if first < 0 || second < first {
		t.Errorf("run() did not print the reports in argument order:\n%s", got)
	}
	if n := strings.Count(got, "(optimal)"); n != 2 {
		t.Errorf("run() printed %d optimal reports, want 2:\n%s", n, got)
	}
	for _, name := range []string{"triangle.lp", "hub.lp"} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("model %s not written: %v", name, err)
		}
	}
	prom, err := os.ReadFile(cfg.MetricsTextfile)
	if err != nil {
		t.Fatal(err)
	}
	if want := `mixedroute_solves_total{status="optimal",variant="courier-flat"} 2`; !strings.Contains(string(prom), want) {
		t.Errorf("metrics textfile does not contain %q:\n%s", want, prom)
	}
}

func TestRun_JSON(t *testing.T) {
	cfg := config.Default()
	cfg.Variant = "truck-only"
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Format = config.FormatMPS
	cfg.Output.Report = config.ReportJSON

	var out bytes.Buffer
	if err := run(context.Background(), cfg, []string{filepath.Join("testdata", "triangle.txt")}, &out); err != nil {
		t.Fatalf("run() returned with unexpected error %v", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(out.Bytes(), s); err != nil {
		t.Fatalf("protojson.Unmarshal() returned with unexpected error %v", err)
	}
	if got := s.GetFields()["status"].GetStringValue(); got != "optimal" {
		t.Errorf("status = %q, want %q", got, "optimal")
	}
	if got := len(s.GetFields()["route"].GetListValue().GetValues()); got != 4 {
		t.Errorf("route has %d stops, want 4", got)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "triangle.mps")); err != nil {
		t.Errorf("model triangle.mps not written: %v", err)
	}
}

func TestRun_MissingInstance(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = ""
	missing := filepath.Join(t.TempDir(), "missing.txt")
	err := run(context.Background(), cfg, []string{missing}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), missing) {
		t.Errorf("run(%q) returned error %v, want an error naming the file", missing, err)
	}
}

func TestModelPath(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = "out"
	cfg.Output.Format = config.FormatMPS
	if got, want := modelPath(cfg, "data/inst_10.txt"), filepath.Join("out", "inst_10.mps"); got != want {
		t.Errorf("modelPath() = %q, want %q", got, want)
	}
}
