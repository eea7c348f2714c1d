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
	"iter"
	"math"
	"slices"
	"strings"
)

// ID identifies a single logical core (a “CPU” in Linux parlance), starting
// from zero. 16 bits are sufficient for the largest machines seen so far.
type ID uint16

// MaxID is the largest representable logical core identifier.
const MaxID = ID(math.MaxUint16)

// Set is an immutable, ordered set of one or more logical cores. It is the unit
// of affinity assignment and does not expose any platform mask width or
// representation.
//
// The zero value is the empty set, which is invalid for affinity operations;
// the constructors [Of], [New], [Collect] and [ParseSet] never return it.
type Set struct {
	ids []ID // ascending, without duplicates
}

// Of returns a Set containing exactly the single core id.
func Of(id ID) Set {
	return Set{ids: []ID{id}}
}

// New returns a Set with the specified core identifiers, which may be passed in
// any order and may contain duplicates. New panics if no identifiers are
// passed, as a core set without cores is meaningless for affinity.
func New(ids ...ID) Set {
	if len(ids) == 0 {
		panic("cores.New: must be at least one logical core")
	}
	s := slices.Clone(ids)
	slices.Sort(s)
	return Set{ids: slices.Compact(s)}
}

// Collect returns a Set with the core identifiers from the specified sequence.
// Similar to [New], it panics if the sequence is empty.
func Collect(seq iter.Seq[ID]) Set {
	ids := slices.Collect(seq)
	if len(ids) == 0 {
		panic("cores.Collect: must be at least one logical core")
	}
	return New(ids...)
}

// ParseSet returns the Set for the given textual list format, such as
// “0-3,8,10-11”. Whitespace around the individual ranges is ignored, so
// “0, 2-3” is fine too, while “0 - 3” is not. ParseSet returns an error if the
// text is malformed, lists no cores at all, or names cores beyond [MaxID].
func ParseSet(text string) (Set, error) {
	ranges := strings.Split(text, ",")
	for idx := range ranges {
		ranges[idx] = strings.TrimSpace(ranges[idx])
	}
	l, err := NewList([]byte(strings.Join(ranges, ",")))
	if err != nil {
		return Set{}, err
	}
	if len(l) == 0 {
		return Set{}, ErrEmptySet
	}
	for _, cpurange := range l {
		if cpurange[1] > uint(MaxID) {
			return Set{}, fmt.Errorf("core %d out of range", cpurange[1])
		}
	}
	// Lists are not required to be canonical, so take the detour through the
	// mask in order to sort and deduplicate.
	return l.Cores(), nil
}

// Len returns the number of cores in this set.
func (s Set) Len() int { return len(s.ids) }

// IsEmpty returns true if this is the (invalid) empty set.
func (s Set) IsEmpty() bool { return len(s.ids) == 0 }

// Contains reports whether the core id is a member of this set.
func (s Set) Contains(id ID) bool {
	_, found := slices.BinarySearch(s.ids, id)
	return found
}

// Min returns the lowest core in this set. Min panics on the empty set.
func (s Set) Min() ID { return s.ids[0] }

// Max returns the highest core in this set. Max panics on the empty set.
func (s Set) Max() ID { return s.ids[len(s.ids)-1] }

// Cores returns an iterator over the cores in this set, in ascending order.
func (s Set) Cores() iter.Seq[ID] {
	return slices.Values(s.ids)
}

// Slice returns the cores in this set in ascending order as a new slice.
func (s Set) Slice() []ID { return slices.Clone(s.ids) }

// Equal reports whether both sets contain the same cores.
func (s Set) Equal(another Set) bool { return slices.Equal(s.ids, another.ids) }

// Intersect returns the cores present in both this and another set. The result
// is the empty set if there are no common cores.
func (s Set) Intersect(another Set) Set {
	return s.List().Overlap(another.List()).Cores()
}

// List returns the cores in this set as a canonical range List.
func (s Set) List() List {
	l := List{}
	for _, id := range s.ids {
		if n := len(l); n > 0 && l[n-1][1]+1 == uint(id) {
			l[n-1][1] = uint(id)
			continue
		}
		l = append(l, [2]uint{uint(id), uint(id)})
	}
	return l
}

// String returns the cores in textual list format, such as “0-3,8”.
func (s Set) String() string { return s.List().String() }

// Mask returns the CPU bit string corresponding with this set: bit i is set if
// and only if core i is a member.
func (s Set) Mask() Mask {
	if len(s.ids) == 0 {
		return Mask{}
	}
	m := make(Mask, maskWordIndex(uint(s.Max()))+1)
	for _, id := range s.ids {
		m[maskWordIndex(uint(id))] |= maskBit(uint(id))
	}
	return m
}

// maskWithin returns the CPU bit string for this set, making sure that it
// doesn't exceed the specified platform mask width in bits. Cores beyond the
// width are never silently dropped but instead reported as a [RangeError].
func (s Set) maskWithin(width uint) (Mask, error) {
	if len(s.ids) == 0 {
		return nil, ErrEmptySet
	}
	if highest := s.Max(); uint(highest) >= width {
		return nil, &RangeError{Core: highest, Width: width}
	}
	return s.Mask(), nil
}
