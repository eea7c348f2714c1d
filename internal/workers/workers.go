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

// Package workers runs a planned number of workers, each on its own OS thread
// pinned to its own core.
//
// The cores to pin to are handed out from the cores the process is permitted to
// run on, skipping the lowest cores as reserved by the plan (see
// [cores.Utilization.Plan]). Pinning failures either abort the run or leave the
// affected worker running unpinned, depending on the [Options].
package workers

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thediveo/cores"
)

// Worker describes a single worker and, after its run, its outcome. Each
// worker's go routine only ever touches its own Worker.
type Worker struct {
	Index   int      // zero-based worker index
	Core    cores.ID // core assigned to this worker
	Pinned  bool     // true if the worker's thread got pinned to Core
	Ops     uint64   // work units, as counted by the work function
	Err     error    // error returned by the work function
	Elapsed time.Duration
}

// WorkFunc is the work a worker does on its (pinned) thread.
type WorkFunc func(ctx context.Context, w *Worker) error

// Options controls a worker run.
type Options struct {
	Utilization cores.Utilization
	// MachineCPUs is the number of logical CPUs to plan for; zero means
	// runtime.NumCPU().
	MachineCPUs int
	// Strict aborts the run when a worker cannot be pinned; otherwise the
	// worker runs unpinned.
	Strict bool
}

// Scheduler plans, pins and runs workers.
type Scheduler struct {
	pinner  cores.Pinner
	log     zerolog.Logger
	metrics *Metrics
}

// New returns a Scheduler pinning workers using the specified pinner. If
// metrics is nil, a set of unregistered metrics is used.
func New(pinner cores.Pinner, log zerolog.Logger, metrics *Metrics) *Scheduler {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Scheduler{pinner: pinner, log: log, metrics: metrics}
}

// Assign returns the cores for the specified number of workers, taken in
// ascending order from the permitted cores after skipping the first cores. At
// least one core always remains to be handed out. When there are fewer cores
// than workers, fewer cores are returned.
func Assign(permitted cores.Set, workers int, first cores.ID) []cores.ID {
	if permitted.IsEmpty() || workers <= 0 {
		return nil
	}
	remaining := permitted.List()
	left := permitted.Len()
	for range int(first) {
		if left <= 1 {
			break
		}
		_, remaining = remaining.Remove()
		left--
	}
	assigned := make([]cores.ID, 0, workers)
	for len(assigned) < workers && len(remaining) > 0 {
		var cpu uint
		cpu, remaining = remaining.Remove()
		assigned = append(assigned, cores.ID(cpu))
	}
	return assigned
}

// Run plans the workers according to opts, assigns them cores from permitted
// and runs work once per worker, each on its own OS thread. Run waits for all
// workers to finish and returns the workers indexed by their cores. The error
// returned is the first pinning error in strict mode, or the first error
// returned by a work function; in both cases the context passed to the other
// workers gets cancelled.
func (s *Scheduler) Run(ctx context.Context, permitted cores.Set, opts Options, work WorkFunc) (*cores.PerCore[*Worker], error) {
	machine := opts.MachineCPUs
	if machine <= 0 {
		machine = runtime.NumCPU()
	}
	planned, first := opts.Utilization.Plan(machine)
	assigned := Assign(permitted, planned, first)
	if len(assigned) == 0 {
		return nil, cores.ErrEmptySet
	}
	if len(assigned) < planned {
		s.log.Warn().
			Int("planned", planned).Int("available", len(assigned)).
			Msg("fewer permitted cores than planned workers")
	}
	s.log.Info().
		Str("utilization", opts.Utilization.String()).
		Int("workers", len(assigned)).
		Uint16("first", uint16(first)).
		Str("cores", cores.New(assigned...).String()).
		Msg("starting workers")

	index := 0
	workers := cores.NewPerCore(cores.New(assigned...), func(id cores.ID) *Worker {
		w := &Worker{Index: index, Core: id}
		index++
		return w
	})
	s.metrics.Workers.Set(float64(len(assigned)))
	defer s.metrics.Workers.Set(0)

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range workers.All() {
		g.Go(func() error { return s.runWorker(ctx, w, opts.Strict, work) })
	}
	return workers, g.Wait()
}

func (s *Scheduler) runWorker(ctx context.Context, w *Worker, strict bool, work WorkFunc) error {
	log := s.log.With().Int("worker", w.Index).Uint16("core", uint16(w.Core)).Logger()
	runtime.LockOSThread()
	defer func() {
		// A pinned thread is tainted, so let it terminate together with this
		// go routine instead of returning it into the runtime's thread pool.
		if !w.Pinned {
			runtime.UnlockOSThread()
		}
	}()

	core := strconv.Itoa(int(w.Core))
	switch err := s.pinner.CurrentThread(cores.Of(w.Core)); {
	case err != nil:
		s.metrics.Pins.WithLabelValues(core, OutcomeFailed).Inc()
		if strict {
			log.Error().Err(err).Msg("cannot pin worker")
			return fmt.Errorf("pinning worker %d to core %d: %w", w.Index, w.Core, err)
		}
		log.Warn().Err(err).Msg("cannot pin worker, continuing unpinned")
	case !s.pinner.ThreadAffinitySupported():
		s.metrics.Pins.WithLabelValues(core, OutcomeUnsupported).Inc()
		log.Debug().Msg("thread affinity unsupported, running unpinned")
	default:
		w.Pinned = true
		s.metrics.Pins.WithLabelValues(core, OutcomePinned).Inc()
		log.Debug().Msg("worker pinned")
	}

	start := time.Now()
	w.Err = work(ctx, w)
	w.Elapsed = time.Since(start)
	if w.Err != nil {
		log.Error().Err(w.Err).Dur("elapsed", w.Elapsed).Msg("worker failed")
		return w.Err
	}
	log.Debug().Dur("elapsed", w.Elapsed).Msg("worker done")
	return nil
}
