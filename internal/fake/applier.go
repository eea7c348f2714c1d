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

// Package fake provides a recording [cores.Applier] that never touches any
// real affinities, for use in tests.
package fake

import (
	"sync"

	"github.com/thediveo/cores"
)

// Call records a single affinity request.
type Call struct {
	Op     string // "process" or "thread"
	Cores  cores.Set
	Target uintptr
}

// Applier records affinity requests instead of applying them. Its capability
// flags as well as the errors it returns can be set up as needed. Applier is
// safe for concurrent use.
type Applier struct {
	ProcessSupported bool
	ThreadSupported  bool
	// Err, if non-nil, gets returned from every supported operation.
	Err error
	// ErrFor, if non-nil, decides the error for each individual request.
	ErrFor func(call Call) error

	mu    sync.Mutex
	calls []Call
}

var _ cores.Applier = (*Applier)(nil)

// New returns a fake Applier supporting both process and thread affinities.
func New() *Applier {
	return &Applier{ProcessSupported: true, ThreadSupported: true}
}

// Unsupported returns a fake Applier behaving like a platform stub without
// any affinity support.
func Unsupported() *Applier {
	return &Applier{}
}

func (a *Applier) ProcessAffinitySupported() bool { return a.ProcessSupported }

func (a *Applier) ThreadAffinitySupported() bool { return a.ThreadSupported }

func (a *Applier) SetProcessAffinity(s cores.Set, pid cores.ProcessID) error {
	return a.record(Call{Op: "process", Cores: s, Target: uintptr(pid)}, a.ProcessSupported)
}

func (a *Applier) SetThreadAffinity(s cores.Set, tid cores.ThreadID) error {
	return a.record(Call{Op: "thread", Cores: s, Target: uintptr(tid)}, a.ThreadSupported)
}

func (a *Applier) record(call Call, supported bool) error {
	a.mu.Lock()
	a.calls = append(a.calls, call)
	a.mu.Unlock()
	if !supported {
		return nil
	}
	if a.ErrFor != nil {
		return a.ErrFor(call)
	}
	return a.Err
}

// Calls returns the requests recorded so far.
func (a *Applier) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}

// Applied returns the requests recorded so far that would actually have
// changed affinities, that is, requests for supported operations.
func (a *Applier) Applied() []Call {
	var applied []Call
	for _, call := range a.Calls() {
		if (call.Op == "process" && a.ProcessSupported) || (call.Op == "thread" && a.ThreadSupported) {
			applied = append(applied, call)
		}
	}
	return applied
}
