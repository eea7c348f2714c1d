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
	"fmt"
)

var (
	// ErrEmptySet is returned when trying to apply an empty core set as
	// affinity. This is a caller bug: the platform never gets to see such a
	// request.
	ErrEmptySet = errors.New("empty core set")

	// ErrUnsupported classifies platform errors where the OS doesn't implement
	// setting affinities, such as ENOSYS on emulated or sandboxed systems.
	ErrUnsupported = errors.New("affinity not supported by platform")

	// ErrDenied classifies platform errors where the caller lacks the privilege
	// to change the affinity of another process or thread.
	ErrDenied = errors.New("affinity change denied")

	// ErrInvalidRequest classifies platform errors where a requested core
	// doesn't exist, is offline, or the mask exceeds the platform's width.
	ErrInvalidRequest = errors.New("invalid affinity request")

	// ErrNotFound classifies platform errors where the target process or
	// thread doesn't exist (anymore).
	ErrNotFound = errors.New("process or thread not found")
)

// PlatformError reports a failed platform affinity operation. It carries the
// original OS error unchanged, so callers can check for the classification
// (such as [ErrDenied]) as well as for the OS-specific error code using
// [errors.Is].
type PlatformError struct {
	Op   string // name of the failed OS call
	Kind error  // classification, nil if unknown
	Err  error  // original OS error, usually a syscall.Errno
}

func (e *PlatformError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PlatformError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// RangeError reports a core beyond the width of a platform's affinity mask.
type RangeError struct {
	Core  ID
	Width uint
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("core %d exceeds platform affinity mask width of %d", e.Core, e.Width)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// newPlatformError wraps a non-nil OS error, classifying it using the
// platform-specific classify function.
func newPlatformError(op string, err error) error {
	return &PlatformError{Op: op, Kind: classify(err), Err: err}
}
