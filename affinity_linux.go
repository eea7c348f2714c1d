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
	"bytes"
	"errors"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// setsize reflects the dynamically determined size of CPU masks on this system
// (size in uint64 words). This is usually smaller than the fixed-sized
// [unix.CPUSet] that Go's [unix.SchedGetaffinity] uses.
var setsize atomic.Uint64

// kernelmaskbytes is the size of the kernel's cpumask in bytes, as reported by
// the sched_getaffinity syscall; zero until known.
var kernelmaskbytes atomic.Uint64

var probeOnce sync.Once

func init() {
	setsize.Store(1)
}

// taskAffinity returns the affinity Mask of the task (thread) with the passed
// TID. If tid is zero, then the affinity mask of the calling thread is
// returned (make sure to have the OS-level thread locked to the calling go
// routine in this case). Passing a PID returns the affinity of the process'
// main thread.
//
// We don't use [unix.SchedGetaffinity] as this is tied to the fixed size
// [unix.CPUSet] type; instead, we dynamically figure out the size needed and
// cache the size internally.
func taskAffinity(tid int) (Mask, error) {
	setlenStart := setsize.Load()
	setlen := setlenStart
	for {
		mask := make(Mask, setlen)
		// SYS_SCHED_GETAFFINITY does not block, so RawSyscall it is, following
		// Go's stdlib implementation.
		n, _, e := unix.RawSyscall(unix.SYS_SCHED_GETAFFINITY,
			uintptr(tid), uintptr(setlen*wordbytesize), uintptr(unsafe.Pointer(&mask[0])))
		if e != 0 {
			if e == unix.EINVAL {
				setlen *= 2
				continue
			}
			return nil, newPlatformError("sched_getaffinity", e)
		}
		kernelmaskbytes.Store(uint64(n))
		// Publish the new size unless another go routine raced us with an even
		// larger size.
		for !setsize.CompareAndSwap(setlenStart, setlen) {
			setlenStart = setsize.Load()
			if setlenStart > setlen {
				break
			}
		}
		return mask, nil
	}
}

// setTaskAffinity sets the CPU affinity of the specified task (thread); a tid
// of zero denotes the calling thread.
func setTaskAffinity(tid int, mask Mask) error {
	if len(mask) == 0 {
		return ErrEmptySet
	}
	_, _, e := unix.RawSyscall(unix.SYS_SCHED_SETAFFINITY,
		uintptr(tid), uintptr(uint64(len(mask))*wordbytesize), uintptr(unsafe.Pointer(&mask[0])))
	if e != 0 {
		return newPlatformError("sched_setaffinity", e)
	}
	return nil
}

// possibleCPUsPath lists the CPUs the kernel could ever bring online; its
// highest CPU plus one is the kernel's nr_cpu_ids.
const possibleCPUsPath = "/sys/devices/system/cpu/possible"

var possibleWidth = sync.OnceValue(func() uint {
	width, err := possibleWidthFrom(possibleCPUsPath)
	if err != nil {
		return 0
	}
	return width
})

// possibleWidthFrom returns the highest CPU plus one in the CPU list file at
// the specified path.
func possibleWidthFrom(path string) (uint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	cpulist, err := NewList(bytes.TrimSpace(b))
	if err != nil {
		return 0, err
	}
	if len(cpulist) == 0 {
		return 0, errors.New("no possible CPUs")
	}
	return cpulist[len(cpulist)-1][1] + 1, nil
}

// maskWidth returns the number of CPUs the kernel supports (nr_cpu_ids). The
// kernel silently ignores mask bits for CPUs beyond, so cores beyond this
// width need to be rejected up front. Without sysfs the width falls back to
// the size of the kernel's cpumask, which is rounded up to whole words.
func maskWidth() uint {
	if width := possibleWidth(); width > 0 {
		return width
	}
	probeOnce.Do(func() { _, _ = taskAffinity(0) })
	if n := kernelmaskbytes.Load(); n > 0 {
		return uint(n * 8)
	}
	return uint(setsize.Load()) * bitsperword
}

// tasks returns the TIDs of all tasks (threads) of the process with the
// specified PID, as listed in the process' procfs task directory.
func tasks(proc procfs.FS, pid int) ([]int, error) {
	threads, err := proc.AllThreads(pid)
	if err != nil {
		return nil, newPlatformError("readdir", err)
	}
	tids := make([]int, 0, len(threads))
	for _, thread := range threads {
		tids = append(tids, thread.PID)
	}
	return tids, nil
}

// procfsMounted reports whether proc actually lists our own process.
func procfsMounted(proc procfs.FS) bool {
	_, err := proc.Self()
	return err == nil
}

type linuxApplier struct{}

var _ Applier = linuxApplier{}

func newPlatformApplier() Applier { return linuxApplier{} }

func (linuxApplier) ProcessAffinitySupported() bool { return true }

func (linuxApplier) ThreadAffinitySupported() bool { return true }

// SetProcessAffinity sets the affinity of all tasks of the specified process,
// similar to “taskset -a”. A pid of zero denotes the calling process. Tasks
// terminating while we're busy are skipped.
func (linuxApplier) SetProcessAffinity(s Set, pid ProcessID) error {
	mask, err := s.maskWithin(maskWidth())
	if err != nil {
		return err
	}
	p := int(pid)
	if p == 0 {
		p = os.Getpid()
	}
	proc, err := procfs.NewDefaultFS()
	if err != nil || !procfsMounted(proc) {
		// Without procfs we can only pin the main thread.
		return setTaskAffinity(p, mask)
	}
	tids, err := tasks(proc, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newPlatformError("sched_setaffinity", unix.ESRCH)
		}
		return err
	}
	pinned := 0
	for _, tid := range tids {
		if err := setTaskAffinity(tid, mask); err != nil {
			if errors.Is(err, unix.ESRCH) {
				continue
			}
			return err
		}
		pinned++
	}
	if pinned == 0 {
		return newPlatformError("sched_setaffinity", unix.ESRCH)
	}
	return nil
}

// SetThreadAffinity sets the affinity of the task with the specified TID; a tid
// of zero denotes the calling thread.
func (linuxApplier) SetThreadAffinity(s Set, tid ThreadID) error {
	mask, err := s.maskWithin(maskWidth())
	if err != nil {
		return err
	}
	return setTaskAffinity(int(tid), mask)
}
