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

//go:build !windows

package cores

// CurrentProcess returns the identifier denoting the calling process, which is
// always zero on POSIX systems.
func CurrentProcess() ProcessID { return 0 }

// CurrentThread returns the identifier denoting the calling thread, which is
// always zero on POSIX systems.
func CurrentThread() ThreadID { return 0 }
