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
	"unsafe"

	"golang.org/x/sys/unix"
)

// CurrentCore returns the core the calling thread is running on at the time of
// the call. Unless the thread has been pinned to a single core, the result
// might be stale by the time it is used.
func CurrentCore() (ID, bool) {
	var cpu uint32
	_, _, e := unix.RawSyscall(unix.SYS_GETCPU, uintptr(unsafe.Pointer(&cpu)), 0, 0)
	if e != 0 || cpu > uint32(MaxID) {
		return 0, false
	}
	return ID(cpu), true
}
