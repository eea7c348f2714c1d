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
	"errors"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32                   = windows.NewLazySystemDLL("kernel32.dll")
	procSetProcessAffinityMask    = modkernel32.NewProc("SetProcessAffinityMask")
	procSetThreadAffinityMask     = modkernel32.NewProc("SetThreadAffinityMask")
	procGetProcessAffinityMask    = modkernel32.NewProc("GetProcessAffinityMask")
	procGetCurrentProcessorNumber = modkernel32.NewProc("GetCurrentProcessorNumber")
)

// Affinity masks are DWORD_PTRs, so without processor group support we're
// limited to the cores of the calling thread's processor group.
var maskWidth = uint(unsafe.Sizeof(uintptr(0)) * 8)

type windowsApplier struct{}

var _ Applier = windowsApplier{}

func newPlatformApplier() Applier { return windowsApplier{} }

func (windowsApplier) ProcessAffinitySupported() bool { return true }

func (windowsApplier) ThreadAffinitySupported() bool { return true }

func (windowsApplier) SetProcessAffinity(s Set, pid ProcessID) error {
	mask, err := s.maskWithin(maskWidth)
	if err != nil {
		return err
	}
	ok, _, e := procSetProcessAffinityMask.Call(uintptr(pid), uintptr(mask[0]))
	if ok == 0 {
		return newPlatformError("SetProcessAffinityMask", e)
	}
	return nil
}

func (windowsApplier) SetThreadAffinity(s Set, tid ThreadID) error {
	mask, err := s.maskWithin(maskWidth)
	if err != nil {
		return err
	}
	previous, _, e := procSetThreadAffinityMask.Call(uintptr(tid), uintptr(mask[0]))
	if previous == 0 {
		return newPlatformError("SetThreadAffinityMask", e)
	}
	return nil
}

func permittedCores() Set {
	var processMask, systemMask uintptr
	ok, _, _ := procGetProcessAffinityMask.Call(uintptr(windows.CurrentProcess()),
		uintptr(unsafe.Pointer(&processMask)), uintptr(unsafe.Pointer(&systemMask)))
	if ok == 0 {
		return Set{}
	}
	return Mask{uint64(processMask)}.Cores()
}

// CurrentCore returns the core within the calling thread's processor group
// the thread is running on at the time of the call.
func CurrentCore() (ID, bool) {
	cpu, _, _ := procGetCurrentProcessorNumber.Call()
	return ID(cpu), true
}

func classify(err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return nil
	}
	switch errno {
	case windows.ERROR_CALL_NOT_IMPLEMENTED, windows.ERROR_NOT_SUPPORTED:
		return ErrUnsupported
	case windows.ERROR_ACCESS_DENIED:
		return ErrDenied
	case windows.ERROR_INVALID_PARAMETER:
		return ErrInvalidRequest
	case windows.ERROR_INVALID_HANDLE:
		return ErrNotFound
	}
	return nil
}
