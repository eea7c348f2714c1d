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
)

// PerCore holds one optional value per logical core, indexed directly by core
// identifier. Its length is the highest core of the [Set] it was created from
// plus one; positions of cores not in that Set always stay empty.
//
// Absence is never an error: asking for a core past the end or without a value
// simply reports nothing. This is expected to happen, for instance, when the
// kernel reports an “incoming CPU” of a socket the process isn't pinned to.
//
// PerCore is not safe for concurrent use; callers sharing it between go
// routines must bring their own synchronization.
type PerCore[V any] struct {
	cores Set // originating set
	slots []slot[V]
}

type slot[V any] struct {
	value V
	ok    bool
}

// NewPerCore returns a PerCore with a value for each core in s, created by
// calling ctor with the respective core identifier in ascending order.
// NewPerCore panics if s is empty.
func NewPerCore[V any](s Set, ctor func(ID) V) *PerCore[V] {
	p := EmptyPerCore[V](s)
	for _, id := range s.ids {
		p.slots[id] = slot[V]{value: ctor(id), ok: true}
	}
	return p
}

// EmptyPerCore returns a PerCore for the cores in s without any values yet, to
// be filled in later using [PerCore.Set]. EmptyPerCore panics if s is empty.
func EmptyPerCore[V any](s Set) *PerCore[V] {
	if s.IsEmpty() {
		panic("cores.PerCore: must be at least one logical core")
	}
	return &PerCore[V]{cores: s, slots: make([]slot[V], int(s.Max())+1)}
}

// Len returns the number of positions, populated or not.
func (p *PerCore[V]) Len() int { return len(p.slots) }

// Get returns the value for the specified core and true, or the zero value and
// false if there is no value for that core.
func (p *PerCore[V]) Get(id ID) (V, bool) {
	if int(id) >= len(p.slots) {
		var zero V
		return zero, false
	}
	s := p.slots[id]
	return s.value, s.ok
}

// Ref returns a pointer to the value for the specified core, or nil if there
// is no value. The pointer becomes invalid after the value is removed or
// replaced.
func (p *PerCore[V]) Ref(id ID) *V {
	if int(id) >= len(p.slots) || !p.slots[id].ok {
		return nil
	}
	return &p.slots[id].value
}

// GetOr returns the value for the specified core; if there is none, it returns
// the value for the core returned by fallback instead. GetOr panics if there
// is no value for the fallback core either, as the fallback core must always
// have been populated.
func (p *PerCore[V]) GetOr(id ID, fallback func() ID) V {
	return *p.RefOr(id, fallback)
}

// RefOr returns a pointer to the value for the specified core; if there is
// none, it returns the pointer to the value for the core returned by fallback.
// RefOr panics if there is no value for the fallback core either.
func (p *PerCore[V]) RefOr(id ID, fallback func() ID) *V {
	if v := p.Ref(id); v != nil {
		return v
	}
	fid := fallback()
	if v := p.Ref(fid); v != nil {
		return v
	}
	panic(fmt.Sprintf("cores.PerCore: neither core %d nor fallback core %d populated", id, fid))
}

// GetOrCurrent returns the value for the specified core, or otherwise for the
// core the calling thread currently runs on, see [CurrentCore]. It panics if
// neither has a value or the current core cannot be determined.
func (p *PerCore[V]) GetOrCurrent(id ID) V {
	return p.GetOr(id, mustCurrentCore)
}

// RefOrCurrent is like [PerCore.GetOrCurrent], but returns a pointer to the
// value.
func (p *PerCore[V]) RefOrCurrent(id ID) *V {
	return p.RefOr(id, mustCurrentCore)
}

func mustCurrentCore() ID {
	id, ok := CurrentCore()
	if !ok {
		panic("cores.PerCore: cannot determine current core")
	}
	return id
}

// Set sets the value for the specified core, discarding any previous value.
// Set panics if the core is not in the Set this PerCore was created from.
func (p *PerCore[V]) Set(id ID, value V) {
	p.mustBeMember(id)
	p.slots[id] = slot[V]{value: value, ok: true}
}

func (p *PerCore[V]) mustBeMember(id ID) {
	if !p.cores.Contains(id) {
		panic(fmt.Sprintf("cores.PerCore: core %d not in %s", id, p.cores))
	}
}

// Take removes the value for the specified core, returning it and true. If
// there was no value, it returns the zero value and false.
func (p *PerCore[V]) Take(id ID) (V, bool) {
	var zero V
	if int(id) >= len(p.slots) {
		return zero, false
	}
	s := p.slots[id]
	p.slots[id] = slot[V]{}
	return s.value, s.ok
}

// Replace sets the value for the specified core, returning the previous value
// and true, or the zero value and false if there wasn't any. Like [PerCore.Set],
// Replace panics if the core is not in the Set this PerCore was created from.
func (p *PerCore[V]) Replace(id ID, value V) (V, bool) {
	p.mustBeMember(id)
	previous := p.slots[id]
	p.slots[id] = slot[V]{value: value, ok: true}
	return previous.value, previous.ok
}

// Cores returns an iterator over the cores that currently have a value, in
// ascending order. Each call returns a new iterator that starts over.
func (p *PerCore[V]) Cores() iter.Seq[ID] {
	return func(yield func(ID) bool) {
		for idx := range p.slots {
			if p.slots[idx].ok && !yield(ID(idx)) {
				return
			}
		}
	}
}

// All returns an iterator over the cores that currently have a value together
// with their values, in ascending core order.
func (p *PerCore[V]) All() iter.Seq2[ID, V] {
	return func(yield func(ID, V) bool) {
		for idx := range p.slots {
			if p.slots[idx].ok && !yield(ID(idx), p.slots[idx].value) {
				return
			}
		}
	}
}

// Map consumes p and returns a new PerCore of the same length, with the values
// produced by calling fn for each populated core and its value. Positions
// without values stay empty. After Map, p has no values left.
func Map[V, W any](p *PerCore[V], fn func(ID, V) W) *PerCore[W] {
	mapped := &PerCore[W]{cores: p.cores, slots: make([]slot[W], len(p.slots))}
	for idx := range p.slots {
		value, ok := p.Take(ID(idx))
		if !ok {
			continue
		}
		mapped.slots[idx] = slot[W]{value: fn(ID(idx), value), ok: true}
	}
	return mapped
}
