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

//go:build darwin && cgo

package cores

/*
#include <mach/mach.h>
#include <mach/thread_policy.h>
#include <pthread.h>

static kern_return_t set_affinity_tag(integer_t tag) {
	thread_affinity_policy_data_t policy = { tag };
	return thread_policy_set(pthread_mach_thread_np(pthread_self()),
		THREAD_AFFINITY_POLICY, (thread_policy_t)&policy,
		THREAD_AFFINITY_POLICY_COUNT);
}
*/
import "C"

import "fmt"

// SetThreadAffinityTag sets the affinity tag of the calling thread. Threads
// sharing the same tag get scheduled to share an L2 cache where possible. This
// is only a hint to the scheduler: threads never become resident on particular
// cores. Make sure to have the OS-level thread locked to the calling go
// routine.
func SetThreadAffinityTag(tag int) error {
	if kr := C.set_affinity_tag(C.integer_t(tag)); kr != C.KERN_SUCCESS {
		kind := error(nil)
		if kr == C.KERN_NOT_SUPPORTED {
			kind = ErrUnsupported
		}
		return &PlatformError{
			Op:   "thread_policy_set",
			Kind: kind,
			Err:  fmt.Errorf("kern_return_t %d", int(kr)),
		}
	}
	return nil
}
