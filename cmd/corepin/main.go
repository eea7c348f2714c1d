// Copyright 2024 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

// corepin shows the worker plan for this machine and runs busy workers pinned
// to individual cores.
//
//	corepin [-env FILE] plan
//	corepin [-env FILE] run
//
// Configuration is read from COREPIN_* environment variables, optionally
// preloaded from a dotenv file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/thediveo/cores"
	"github.com/thediveo/cores/internal/workers"
)

func main() {
	os.Exit(corepin(os.Args[1:], os.Stdout, os.Stderr))
}

func corepin(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("corepin", flag.ContinueOnError)
	flags.SetOutput(stderr)
	dotenv := flags.String("env", ".env", "dotenv `file` to load, if present")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: corepin [-env FILE] plan|run")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}
	command := "plan"
	if flags.NArg() > 0 {
		command = flags.Arg(0)
	}

	// Snapshot the permitted cores before anything gets pinned.
	permitted := cores.Permitted()

	cfg, err := LoadConfig(*dotenv)
	if err != nil {
		fmt.Fprintf(stderr, "corepin: %v\n", err)
		return 2
	}
	log := newLogger(cfg, stderr)

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug().Msgf(format, args...)
	}))
	defer undo()
	if err != nil {
		log.Warn().Err(err).Msg("cannot align GOMAXPROCS with CPU quota")
	}

	usable, err := cfg.Restrict(permitted)
	if err != nil {
		log.Error().Err(err).Msg("no cores to work with")
		return 1
	}

	switch command {
	case "plan":
		err = plan(cfg, usable, stdout)
	case "run":
		err = run(cfg, usable, stdout, log)
	default:
		flags.Usage()
		return 2
	}
	if err != nil {
		log.Error().Err(err).Str("command", command).Msg("failed")
		return 1
	}
	return 0
}

// plan prints the cores and the worker plan.
func plan(cfg Config, usable cores.Set, stdout io.Writer) error {
	pinner := cores.PlatformPinner()
	workerCount, first := cfg.CPUs.Plan(runtime.NumCPU())
	assigned := workers.Assign(usable, workerCount, first)

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "permitted cores:\t%s\n", cores.Permitted())
	fmt.Fprintf(tw, "usable cores:\t%s\n", usable)
	fmt.Fprintf(tw, "usable logical CPUs:\t%d\n", runtime.NumCPU())
	if logical, err := cpu.Counts(true); err == nil {
		fmt.Fprintf(tw, "host logical CPUs:\t%d\n", logical)
	}
	if physical, err := cpu.Counts(false); err == nil {
		fmt.Fprintf(tw, "host physical cores:\t%d\n", physical)
	}
	fmt.Fprintf(tw, "utilization:\t%s\n", cfg.CPUs)
	fmt.Fprintf(tw, "workers:\t%d\n", workerCount)
	fmt.Fprintf(tw, "first core index:\t%d\n", first)
	if len(assigned) > 0 {
		fmt.Fprintf(tw, "assigned cores:\t%s\n", cores.New(assigned...))
	}
	fmt.Fprintf(tw, "process affinity:\t%s\n", supported(pinner.ProcessAffinitySupported()))
	fmt.Fprintf(tw, "thread affinity:\t%s\n", supported(pinner.ThreadAffinitySupported()))
	return tw.Flush()
}

func supported(yes bool) string {
	if yes {
		return "supported"
	}
	return "not supported"
}

// run starts pinned busy workers for the configured duration, then prints a
// per-core report.
func run(cfg Config, usable cores.Set, stdout io.Writer, log zerolog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.Duration)
	defer cancelTimeout()

	registry := prometheus.NewRegistry()
	scheduler := workers.New(cores.PlatformPinner(), log, workers.NewMetrics(registry))
	results, err := scheduler.Run(ctx, usable, workers.Options{
		Utilization: cfg.CPUs,
		Strict:      cfg.Strict,
	}, spin)
	if results != nil {
		report := cores.Map(results, func(id cores.ID, w *workers.Worker) string {
			return fmt.Sprintf("%d\t%d\t%t\t%d\t%s", id, w.Index, w.Pinned, w.Ops, w.Elapsed.Round(time.Millisecond))
		})
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CORE\tWORKER\tPINNED\tOPS\tELAPSED")
		for _, line := range report.All() {
			fmt.Fprintln(tw, line)
		}
		if ferr := tw.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}
	if cfg.MetricsFile != "" {
		if merr := prometheus.WriteToTextfile(cfg.MetricsFile, registry); merr != nil {
			log.Warn().Err(merr).Str("file", cfg.MetricsFile).Msg("cannot write metrics")
		}
	}
	return err
}

// spin keeps the worker's core busy until the context is done.
func spin(ctx context.Context, w *workers.Worker) error {
	for ctx.Err() == nil {
		for range 1 << 16 {
			w.Ops++
		}
	}
	return nil
}
