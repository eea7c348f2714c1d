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

package workers

import "github.com/prometheus/client_golang/prometheus"

// Pin outcomes, as used in the “outcome” label.
const (
	OutcomePinned      = "pinned"
	OutcomeFailed      = "failed"
	OutcomeUnsupported = "unsupported"
)

// Metrics of worker runs.
type Metrics struct {
	// Pins counts pinning attempts by core and outcome.
	Pins *prometheus.CounterVec
	// Workers is the number of currently running workers.
	Workers prometheus.Gauge
}

// NewMetrics returns a new set of worker metrics, registering them with reg
// unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Pins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corepin",
			Name:      "worker_pins_total",
			Help:      "Total number of attempts to pin worker threads to cores, by outcome.",
		}, []string{"core", "outcome"}),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corepin",
			Name:      "workers",
			Help:      "Number of currently running workers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Pins, m.Workers)
	}
	return m
}
