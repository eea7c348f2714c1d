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

//go:build freebsd && (amd64 || arm64 || riscv64)

package cores

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// See cpuset(2) and sys/cpuset.h.
const (
	cpuLevelWhich = 3
	cpuWhichTID   = 1
	cpuWhichPID   = 2
	currentID     = ^uintptr(0) // id_t -1 denotes the caller
	defaultWidth  = 256         // CPU_MAXSIZE on older releases
)

// maskWidth returns the kernel's cpuset size in bits.
var maskWidth = sync.OnceValue(func() uint {
	if n, err := unix.SysctlUint32("kern.sched.cpusetsize"); err == nil && n > 0 {
		return uint(n) * 8
	}
	return defaultWidth
})

type freebsdApplier struct{}

var _ Applier = freebsdApplier{}

func newPlatformApplier() Applier { return freebsdApplier{} }

func (freebsdApplier) ProcessAffinitySupported() bool { return true }

func (freebsdApplier) ThreadAffinitySupported() bool { return true }

func (freebsdApplier) SetProcessAffinity(s Set, pid ProcessID) error {
	return setAffinity(s, cpuWhichPID, uintptr(pid))
}

func (freebsdApplier) SetThreadAffinity(s Set, tid ThreadID) error {
	return setAffinity(s, cpuWhichTID, uintptr(tid))
}

func setAffinity(s Set, which uintptr, id uintptr) error {
	width := maskWidth()
	mask, err := s.maskWithin(width)
	if err != nil {
		return err
	}
	// The kernel expects the full cpuset size.
	full := make(Mask, (width+bitsperword-1)/bitsperword)
	copy(full, mask)
	if id == 0 {
		id = currentID
	}
	_, _, e := unix.RawSyscall6(unix.SYS_CPUSET_SETAFFINITY,
		cpuLevelWhich, which, id,
		uintptr(uint64(len(full))*wordbytesize), uintptr(unsafe.Pointer(&full[0])), 0)
	if e != 0 {
		return newPlatformError("cpuset_setaffinity", e)
	}
	return nil
}

func permittedCores() Set {
	mask := make(Mask, (maskWidth()+bitsperword-1)/bitsperword)
	_, _, e := unix.RawSyscall6(unix.SYS_CPUSET_GETAFFINITY,
		cpuLevelWhich, cpuWhichPID, currentID,
		uintptr(uint64(len(mask))*wordbytesize), uintptr(unsafe.Pointer(&mask[0])), 0)
	if e != 0 {
		return Set{}
	}
	return mask.Cores()
}
