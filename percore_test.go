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
	"slices"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
)

// present returns v after asserting that it is present.
func present[V any](v V, ok bool) V {
	GinkgoHelper()
	Expect(ok).To(BeTrue(), "value not present")
	return v
}

var _ = Describe("per-core storage", func() {

	It("panics on empty sets", func() {
		Expect(func() { _ = EmptyPerCore[int](Set{}) }).To(Panic())
		Expect(func() { _ = NewPerCore(Set{}, func(ID) int { return 0 }) }).To(Panic())
	})

	It("builds a gap-preserving array indexed by core", func() {
		var visited []ID
		p := NewPerCore(New(5, 2), func(id ID) int {
			visited = append(visited, id)
			return int(id) * 10
		})
		Expect(visited).To(Equal([]ID{2, 5}))
		Expect(p.Len()).To(Equal(6))
		for _, id := range []ID{0, 1, 3, 4} {
			_, ok := p.Get(id)
			Expect(ok).To(BeFalse(), "core %d", id)
		}
		Expect(present(p.Get(2))).To(Equal(20))
		Expect(present(p.Get(5))).To(Equal(50))
	})

	It("reports absence past the end", func() {
		p := NewPerCore(Of(1), func(ID) string { return "foo" })
		v, ok := p.Get(1000)
		Expect(ok).To(BeFalse())
		Expect(v).To(BeEmpty())
		Expect(p.Ref(1000)).To(BeNil())
		Expect(p.Ref(0)).To(BeNil())
		_, ok = p.Take(1000)
		Expect(ok).To(BeFalse())
	})

	It("fills an empty storage", func() {
		s := New(1, 4, 6)
		p := EmptyPerCore[string](s)
		Expect(p.Len()).To(Equal(7))
		Expect(slices.Collect(p.Cores())).To(BeEmpty())
		for id := range s.Cores() {
			p.Set(id, "core")
		}
		for id := range ID(p.Len() + 2) {
			v, ok := p.Get(id)
			Expect(ok).To(Equal(s.Contains(id)), "core %d", id)
			if ok {
				Expect(v).To(Equal("core"))
			}
		}
	})

	It("panics when setting past the end", func() {
		p := EmptyPerCore[int](Of(1))
		Expect(func() { p.Set(2, 42) }).To(Panic())
		Expect(func() { _, _ = p.Replace(2, 42) }).To(Panic())
	})

	It("panics when setting cores not in the originating set", func() {
		p := EmptyPerCore[int](New(1, 4))
		Expect(func() { p.Set(0, 7) }).To(PanicWith(ContainSubstring("core 0 not in 1,4")))
		Expect(func() { _, _ = p.Replace(3, 7) }).To(Panic())
		Expect(slices.Collect(p.Cores())).To(BeEmpty())

		m := Map(p, func(_ ID, v int) int { return v })
		Expect(func() { m.Set(2, 7) }).To(Panic())
		m.Set(4, 7)
		Expect(present(m.Get(4))).To(Equal(7))
	})

	It("takes and replaces", func() {
		p := EmptyPerCore[int](New(0, 3))
		p.Set(3, 1)
		Expect(present(p.Replace(3, 2))).To(Equal(1))
		Expect(present(p.Get(3))).To(Equal(2))

		v, ok := p.Take(3)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(2))
		_, ok = p.Take(3)
		Expect(ok).To(BeFalse())
		_, ok = p.Get(3)
		Expect(ok).To(BeFalse())

		v, ok = p.Replace(0, 42)
		Expect(ok).To(BeFalse())
		Expect(v).To(BeZero())
		Expect(present(p.Get(0))).To(Equal(42))
	})

	It("hands out references", func() {
		p := NewPerCore(Of(2), func(ID) int { return 1 })
		*p.Ref(2) += 41
		Expect(present(p.Get(2))).To(Equal(42))
	})

	When("falling back", func() {

		It("uses the requested core when populated", func() {
			p := NewPerCore(New(0, 2), func(id ID) int { return int(id) })
			Expect(p.GetOr(2, func() ID { panic("no fallback expected") })).To(Equal(2))
		})

		It("falls back to another core", func() {
			p := NewPerCore(New(0, 2), func(id ID) int { return int(id) + 100 })
			Expect(p.GetOr(1, func() ID { return 2 })).To(Equal(102))
			Expect(p.GetOr(666, func() ID { return 0 })).To(Equal(100))
			*p.RefOr(1, func() ID { return 0 }) = 1
			Expect(present(p.Get(0))).To(Equal(1))
		})

		It("panics when the fallback core is unpopulated", func() {
			p := NewPerCore(Of(2), func(ID) int { return 0 })
			Expect(func() { p.GetOr(1, func() ID { return 0 }) }).To(Panic())
			Expect(func() { p.RefOr(1, func() ID { return 42 }) }).To(Panic())
		})

		It("falls back to the current core", func() {
			if _, ok := CurrentCore(); !ok {
				Skip("current core unknown on this platform")
			}
			p := NewPerCore(Permitted(), func(id ID) ID { return id })
			Expect(p.Len()).To(BeNumerically(">", 0))
			// the current core might change at any time, so we can only check
			// that we got some populated core.
			Expect(int(p.GetOrCurrent(MaxID))).To(BeNumerically("<", p.Len()))
			Expect(p.RefOrCurrent(MaxID)).NotTo(BeNil())
		})

	})

	It("iterates over populated cores, restartably", func() {
		p := NewPerCore(New(1, 3, 4), func(id ID) ID { return id })
		_, _ = p.Take(3)
		Expect(slices.Collect(p.Cores())).To(Equal([]ID{1, 4}))
		Expect(slices.Collect(p.Cores())).To(Equal([]ID{1, 4}))
		for id := range p.Cores() {
			Expect(id).To(Equal(ID(1)))
			break
		}
		var values []ID
		for id, v := range p.All() {
			Expect(v).To(Equal(id))
			values = append(values, v)
		}
		Expect(values).To(Equal([]ID{1, 4}))
	})

	It("maps values, preserving length and gaps", func() {
		p := NewPerCore(New(1, 3, 4), func(id ID) int { return int(id) })
		_, _ = p.Take(4)
		m := Map(p, func(id ID, v int) string {
			return string(rune('a' + v))
		})
		Expect(m.Len()).To(Equal(5))
		Expect(slices.Collect(m.Cores())).To(Equal([]ID{1, 3}))
		Expect(present(m.Get(1))).To(Equal("b"))
		Expect(present(m.Get(3))).To(Equal("d"))
		Expect(slices.Collect(p.Cores())).To(BeEmpty())
	})

})
