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

//go:build linux || freebsd

package cores

import (
	"errors"

	"golang.org/x/sys/unix"
)

func classify(err error) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return nil
	}
	switch errno {
	case unix.ENOSYS, unix.EOPNOTSUPP:
		return ErrUnsupported
	case unix.EPERM, unix.EACCES:
		return ErrDenied
	case unix.EINVAL, unix.ERANGE, unix.EDEADLK:
		return ErrInvalidRequest
	case unix.ESRCH:
		return ErrNotFound
	}
	return nil
}
