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
	"slices"
	"strconv"
	"strings"

	"github.com/thediveo/faf"
)

// List is a list of CPU [from...to] ranges, as used in the textual list format
// of procfs and sysfs (such as “Cpus_allowed_list” in “/proc/$PID/status”).
// CPU numbers are starting from zero.
type List [][2]uint

// String returns the CPU list in textual format, with the individual ranges
// “x-y” separated by “,” and single CPU ranges collapsed into “x” (instead of
// “x-x”).
func (l List) String() string {
	var b strings.Builder
	for idx, cpurange := range l {
		if idx > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(cpurange[0]), 10))
		if cpurange[0] != cpurange[1] {
			b.WriteByte('-')
			b.WriteString(strconv.FormatUint(uint64(cpurange[1]), 10))
		}
	}
	return b.String()
}

// NewList returns a new CPU List for the given textual list format. If the text
// is malformed then an error is returned instead.
func NewList(b []byte) (List, error) {
	bs := faf.NewBytestring(b)
	l := List{}
	for !bs.EOL() {
		from, ok := bs.Uint64()
		if !ok {
			return nil, errors.New("expected unsigned integer number")
		}
		to := from
		ch, more := bs.Next()
		if more && ch == '-' {
			if to, ok = bs.Uint64(); !ok {
				return nil, errors.New("expected unsigned integer number")
			}
			if to < from {
				return nil, fmt.Errorf("invalid range %d-%d", from, to)
			}
			ch, more = bs.Next()
			if more && ch != ',' {
				return nil, errors.New("expected ','")
			}
		} else if more && ch != ',' {
			return nil, errors.New("expected '-' or ','")
		}
		l = append(l, [2]uint{uint(from), uint(to)})
	}
	return l, nil
}

// Mask returns the CPU Mask corresponding with this list.
func (l List) Mask() Mask {
	if len(l) == 0 {
		return Mask{}
	}
	// Last range first, so the mask gets allocated only once.
	var m Mask
	for _, cpurange := range slices.Backward(l) {
		m = m.AddRange(cpurange[0], cpurange[1])
	}
	return m
}

// Cores returns the [Set] of cores in this list, which may be empty. CPUs
// beyond [MaxID] are ignored.
func (l List) Cores() Set {
	return l.Mask().Cores()
}

// IsOverlapping returns true if this List overlaps with another List.
//
// Both lists must be in canonical form where all ranges are ordered from lowest
// to highest and never overlap within the same list.
func (l List) IsOverlapping(another List) bool {
	r2idx := 0
	for _, r1 := range l {
		for ; r2idx < len(another); r2idx++ {
			r2 := another[r2idx]
			if r1[1] >= r2[0] && r1[0] <= r2[1] {
				return true
			}
			if r2[0] > r1[1] {
				break // r2 is ahead, so advance r1.
			}
		}
		if r2idx >= len(another) {
			return false
		}
	}
	return false
}

// Overlap returns the overlap of this List with another List as a new List. If
// the range lists are not overlapping, then an empty new List is returned.
//
// Both lists must be in canonical form.
func (l List) Overlap(another List) List {
	overlaps := List{}
	r2idx := 0
	for _, r1 := range l {
		for ; r2idx < len(another); r2idx++ {
			r2 := another[r2idx]
			if r1[1] >= r2[0] && r1[0] <= r2[1] {
				overlaps = append(overlaps, [2]uint{max(r1[0], r2[0]), min(r1[1], r2[1])})
			}
			// Whichever range ends first gets replaced by its successor; the
			// other one might still overlap with further ranges.
			if r2[1] > r1[1] {
				break
			}
		}
		if r2idx >= len(another) {
			break
		}
	}
	return overlaps
}

// Remove the lowest CPU from the specified List, returning the CPU number
// together with a new List of remaining CPUs. Remove panics on an empty List.
//
// Remove is useful for handing out individual cores one after another from the
// cores a task/process is allowed to run on.
func (l List) Remove() (cpu uint, remaining List) {
	if len(l) == 0 {
		panic("cannot remove from empty List")
	}
	lowest := l[0]
	if lowest[0] < lowest[1] {
		return lowest[0], append(List{{lowest[0] + 1, lowest[1]}}, l[1:]...)
	}
	return lowest[0], slices.Clone(l[1:])
}
