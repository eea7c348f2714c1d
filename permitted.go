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
	"runtime"
	"sync"
)

var permitted = sync.OnceValue(func() Set {
	if s := permittedCores(); !s.IsEmpty() {
		return s
	}
	return allCores()
})

// Permitted returns the cores the calling process was allowed to run on when
// first asked. The result is a snapshot that is queried only once and then
// cached; later affinity changes are not reflected. Permitted should thus be
// called early, before narrowing any affinities.
//
// On platforms without a way to discover the permitted cores, all cores
// 0..[runtime.NumCPU]-1 are returned.
func Permitted() Set {
	return permitted()
}

// allCores returns all cores 0..runtime.NumCPU()-1.
func allCores() Set {
	n := max(runtime.NumCPU(), 1)
	ids := make([]ID, 0, n)
	for id := range n {
		ids = append(ids, ID(id))
	}
	return Set{ids: ids}
}
