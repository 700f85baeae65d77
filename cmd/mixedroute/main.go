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

// The mixedroute command builds, exports and solves the mixed truck and courier routing model of
// one or more instance files and prints a report per instance.
//
//	mixedroute [flags] instance...
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/golang/glog"

	"github.com/mixedroute/mixedroute/config"
)

var (
	configPath      = flag.String("config", "", "YAML file with the run settings; flags override it")
	variant         = flag.String("variant", "", "model variant: truck-only, courier-flat, courier-count or courier-trips")
	timeLimit       = flag.Duration("time_limit", 0, "wall time limit of each solve")
	gap             = flag.Float64("gap", 0, "relative optimality gap at which a solve stops")
	outDir          = flag.String("out_dir", "", "directory receiving the exported models")
	format          = flag.String("format", "", "model file format: lp or mps")
	reportFormat    = flag.String("report", "", "report format: text or json")
	tolerance       = flag.Float64("tolerance", 0, "value above which a variable is reported as active")
	parallel        = flag.Int("parallel", 0, "number of instances solved at once")
	metricsTextfile = flag.String("metrics_textfile", "", "file receiving the solve metrics in the Prometheus text format")
)

// loadConfig reads the config file, if any, and applies the flags set on the command line.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "variant":
			cfg.Variant = *variant
		case "time_limit":
			cfg.Solver.TimeLimit = *timeLimit
		case "gap":
			cfg.Solver.RelativeGap = *gap
		case "out_dir":
			cfg.Output.Dir = *outDir
		case "format":
			cfg.Output.Format = *format
		case "report":
			cfg.Output.Report = *reportFormat
		case "tolerance":
			cfg.Output.Tolerance = *tolerance
		case "parallel":
			cfg.Parallel = *parallel
		case "metrics_textfile":
			cfg.MetricsTextfile = *metricsTextfile
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] instance...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer log.Flush()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cfg, err := loadConfig()
	if err != nil {
		log.Exitf("Invalid settings: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	start := time.Now()
	if err := run(ctx, cfg, flag.Args(), os.Stdout); err != nil {
		log.Exitf("mixedroute returned with error: %v", err)
	}
	log.V(1).Infof("Solved %d instances in %v", flag.NArg(), time.Since(start))
}
