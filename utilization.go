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

package cores

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Utilization is the number of logical CPUs to utilize, counting simultaneous
// multi-threads (hyper-threads) individually. The zero value means “as many as
// the machine offers”.
type Utilization struct {
	count   uint
	limited bool
}

// AllCPUs returns the Utilization of as many CPUs as the machine offers.
func AllCPUs() Utilization { return Utilization{} }

// CPUs returns the Utilization of at most n CPUs; zero is treated as one.
func CPUs(n uint) Utilization { return Utilization{count: n, limited: true} }

// Plan returns the number of worker threads to run and the index of the first
// core to pin workers to, given the number of logical CPUs of the machine.
//
// When running more than a single worker, one CPU is reserved for
// housekeeping and the OS, so workers start at core index 1. A single worker
// gets core 0. Plan never fails: nonsensical machine CPU counts are treated as
// a single CPU.
func (u Utilization) Plan(machineCPUs int) (workers int, first ID) {
	capped := 1
	if machineCPUs > 1 {
		capped = machineCPUs - 1
	}
	switch {
	case !u.limited:
		workers = capped
	case u.count == 0:
		workers = 1
	default:
		workers = int(min(uint(capped), u.count))
	}
	if workers == 1 {
		return 1, 0
	}
	return workers, 1
}

// PlanForMachine returns the worker plan for the logical CPUs usable by this
// process, as reported by [runtime.NumCPU].
func (u Utilization) PlanForMachine() (workers int, first ID) {
	return u.Plan(runtime.NumCPU())
}

// IsLimited returns true if the Utilization asks for a specific number of CPUs
// instead of all.
func (u Utilization) IsLimited() bool { return u.limited }

// String returns “max” when utilizing all CPUs, otherwise the number of CPUs.
func (u Utilization) String() string {
	if !u.limited {
		return "max"
	}
	return strconv.FormatUint(uint64(u.count), 10)
}

// UnmarshalText sets the Utilization from its textual form: either empty,
// “max” or “all” for all CPUs, or a non-negative number.
func (u *Utilization) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	switch strings.ToLower(s) {
	case "", "max", "all":
		*u = AllCPUs()
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return fmt.Errorf("invalid CPU utilization %q, expected number or “max”", s)
	}
	*u = CPUs(uint(n))
	return nil
}

// MarshalText returns the textual form of the Utilization.
func (u Utilization) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}
