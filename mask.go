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
	"fmt"
	"math/bits"
	"slices"
	"unsafe"
)

// Mask is a CPU bit string, such as used for CPU affinity masks. Bit i of the
// mask stands for the logical core i. See also [sched_getaffinity(2)].
//
// Masks are the platform-facing representation of a [Set]: they are only
// created at the point where a Set gets handed to an OS affinity call.
//
// [sched_getaffinity(2)]: https://man7.org/linux/man-pages/man2/sched_getaffinity.2.html
type Mask []uint64

var wordbytesize = uint64(unsafe.Sizeof(Mask{0}[0]))
var bitsperword = uint(wordbytesize * 8)

func maskWordIndex(cpu uint) int {
	return int(cpu / bitsperword)
}

func maskBit(cpu uint) uint64 {
	return uint64(1) << (cpu % bitsperword)
}

// IsSet reports whether cpu is in this CPU mask.
func (m Mask) IsSet(cpu uint) bool {
	if cpu >= uint(len(m))*bitsperword {
		return false
	}
	return m[maskWordIndex(cpu)]&maskBit(cpu) != 0
}

// AddRange adds the CPUs from the specified range, returning an updated Mask.
// This updated Mask may or may not be the original Mask.
func (m Mask) AddRange(from, to uint) Mask {
	if from > to {
		panic(fmt.Sprintf("invalid range %d-%d", from, to))
	}
	if to >= uint(len(m))*bitsperword {
		words := len(m)
		m = slices.Grow(m, maskWordIndex(to)-words+1)
		m = m[:maskWordIndex(to)+1]
		clear(m[words:])
	}
	for cpu := from; cpu <= to; cpu++ {
		m[maskWordIndex(cpu)] |= maskBit(cpu)
	}
	return m
}

// Count returns the number of CPUs in this mask.
func (m Mask) Count() int {
	n := 0
	for _, word := range m {
		n += bits.OnesCount64(word)
	}
	return n
}

// String returns the CPUs in this mask in textual list format. In list format,
// individual CPU ranges “x-y” are separated by “,”, and single CPU ranges
// collapsed into “x”.
func (m Mask) String() string {
	return m.List().String()
}

// Cores returns the [Set] of cores in this mask. CPUs beyond [MaxID] are not
// representable and thus ignored. An all-zeros mask returns the empty Set.
func (m Mask) Cores() Set {
	ids := make([]ID, 0, m.Count())
	for _, cpurange := range m.List() {
		for cpu := cpurange[0]; cpu <= cpurange[1] && cpu <= uint(MaxID); cpu++ {
			ids = append(ids, ID(cpu))
		}
	}
	return Set{ids: ids}
}

// List returns the list of CPU ranges corresponding with this CPU Mask.
//
// Instead of testing bit by bit, this implementation jumps from range boundary
// to range boundary by counting trailing zeros: in the word itself to find the
// start of a range, and in the inverted word to find its end. Ranges may span
// multiple words.
func (m Mask) List() List {
	cpulist := List{}
	inRange := false
	var from uint
	for idx, word := range m {
		base := uint(idx) * bitsperword
		for bit := uint(0); bit < bitsperword; {
			if !inRange {
				rest := word >> bit
				if rest == 0 {
					break
				}
				bit += uint(bits.TrailingZeros64(rest))
				from = base + bit
				inRange = true
				continue
			}
			// Shifting in zeros from the MSB end makes an inverted word look
			// as if the range continues into the next word, which is exactly
			// what we want.
			rest := ^word >> bit
			if rest == 0 {
				break
			}
			bit += uint(bits.TrailingZeros64(rest))
			cpulist = append(cpulist, [2]uint{from, base + bit - 1})
			inRange = false
		}
	}
	if inRange {
		cpulist = append(cpulist, [2]uint{from, uint(len(m))*bitsperword - 1})
	}
	return cpulist
}
