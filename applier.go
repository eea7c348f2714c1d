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

import "sync"

// ProcessID identifies a process in a platform-defined way: a PID on POSIX
// systems, a process handle on Windows. Its value is passed through to the
// platform without inspection.
type ProcessID uintptr

// ThreadID identifies a thread in a platform-defined way: a kernel task ID on
// Linux and FreeBSD, a thread handle on Windows. Its value is passed through to
// the platform without inspection.
type ThreadID uintptr

// Applier is the platform capability for applying core sets as affinities.
// Implementations on platforms without affinity support report false for both
// capabilities and succeed without changing anything.
//
// Appliers may assume that they never get passed an empty [Set]; use a
// [Pinner] to enforce this.
type Applier interface {
	// ProcessAffinitySupported reports whether this platform can change the
	// affinity of whole processes.
	ProcessAffinitySupported() bool
	// ThreadAffinitySupported reports whether this platform can change the
	// affinity of individual threads.
	ThreadAffinitySupported() bool
	// SetProcessAffinity restricts all threads of the specified process to the
	// cores in s.
	SetProcessAffinity(s Set, pid ProcessID) error
	// SetThreadAffinity restricts the specified thread to the cores in s.
	SetThreadAffinity(s Set, tid ThreadID) error
}

var (
	platformOnce    sync.Once
	platformApplier Applier
)

// Platform returns the Applier for the platform this process is running on.
func Platform() Applier {
	platformOnce.Do(func() {
		platformApplier = newPlatformApplier()
	})
	return platformApplier
}

// NoopApplier is the Applier for platforms without any affinity support. It
// reports no capabilities and all its operations succeed without effect.
type NoopApplier struct{}

var _ Applier = NoopApplier{}

func (NoopApplier) ProcessAffinitySupported() bool { return false }
func (NoopApplier) ThreadAffinitySupported() bool { return false }
func (NoopApplier) SetProcessAffinity(Set, ProcessID) error { return nil }
func (NoopApplier) SetThreadAffinity(Set, ThreadID) error { return nil }

// Pinner applies core sets as affinities using an [Applier], rejecting empty
// sets before the Applier gets involved. Platform errors are returned
// unchanged; there are no retries.
type Pinner struct {
	applier Applier
}

// NewPinner returns a Pinner using the specified Applier.
func NewPinner(a Applier) Pinner {
	return Pinner{applier: a}
}

// PlatformPinner returns a Pinner for the Applier of the current platform.
func PlatformPinner() Pinner {
	return NewPinner(Platform())
}

// ProcessAffinitySupported reports whether process affinities can be set.
func (p Pinner) ProcessAffinitySupported() bool { return p.applier.ProcessAffinitySupported() }

// ThreadAffinitySupported reports whether thread affinities can be set.
func (p Pinner) ThreadAffinitySupported() bool { return p.applier.ThreadAffinitySupported() }

// Process restricts the specified process to the cores in s.
func (p Pinner) Process(s Set, pid ProcessID) error {
	if s.IsEmpty() {
		return ErrEmptySet
	}
	return p.applier.SetProcessAffinity(s, pid)
}

// Thread restricts the specified thread to the cores in s.
func (p Pinner) Thread(s Set, tid ThreadID) error {
	if s.IsEmpty() {
		return ErrEmptySet
	}
	return p.applier.SetThreadAffinity(s, tid)
}

// CurrentProcess restricts the calling process to the cores in s.
func (p Pinner) CurrentProcess(s Set) error {
	return p.Process(s, CurrentProcess())
}

// CurrentThread restricts the calling OS thread to the cores in s. Callers
// must have locked their go routine to the OS thread using
// [runtime.LockOSThread] beforehand.
func (p Pinner) CurrentThread(s Set) error {
	return p.Thread(s, CurrentThread())
}

// PinProcess restricts the specified process to the cores in this set, using
// the platform's Applier.
func (s Set) PinProcess(pid ProcessID) error {
	return PlatformPinner().Process(s, pid)
}

// PinThread restricts the specified thread to the cores in this set, using the
// platform's Applier.
func (s Set) PinThread(tid ThreadID) error {
	return PlatformPinner().Thread(s, tid)
}

// PinCurrentThread restricts the calling OS thread to the cores in this set.
// Make sure to have the OS-level thread locked to the calling go routine.
func (s Set) PinCurrentThread() error {
	return PlatformPinner().CurrentThread(s)
}
