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
	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("CPU utilization", func() {

	DescribeTable("planning workers",
		func(u Utilization, machine int, workers int, first ID) {
			w, f := u.Plan(machine)
			Expect(w).To(Equal(workers))
			Expect(f).To(Equal(first))
		},
		Entry("single CPU machine, all", AllCPUs(), 1, 1, ID(0)),
		Entry("single CPU machine, some", CPUs(4), 1, 1, ID(0)),
		Entry("single CPU machine, none", CPUs(0), 1, 1, ID(0)),
		Entry("zero CPU machine", AllCPUs(), 0, 1, ID(0)),
		Entry("negative CPU machine", CPUs(3), -1, 1, ID(0)),
		Entry("two CPU machine", AllCPUs(), 2, 1, ID(0)),
		Entry("8 CPUs, all", AllCPUs(), 8, 7, ID(1)),
		Entry("8 CPUs, zero", CPUs(0), 8, 1, ID(0)),
		Entry("8 CPUs, one", CPUs(1), 8, 1, ID(0)),
		Entry("8 CPUs, three", CPUs(3), 8, 3, ID(1)),
		Entry("8 CPUs, too many", CPUs(100), 8, 7, ID(1)),
	)

	It("plans for this machine", func() {
		w, f := AllCPUs().PlanForMachine()
		Expect(w).To(BeNumerically(">=", 1))
		Expect(f).To(BeNumerically("<=", 1))
	})

	DescribeTable("text",
		func(text string, expected Utilization, str string) {
			var u Utilization
			Expect(u.UnmarshalText([]byte(text))).To(Succeed())
			Expect(u).To(Equal(expected))
			Expect(u.String()).To(Equal(str))
			Expect(u.MarshalText()).To(Equal([]byte(str)))
		},
		Entry(nil, "", AllCPUs(), "max"),
		Entry(nil, "max", AllCPUs(), "max"),
		Entry(nil, " All ", AllCPUs(), "max"),
		Entry(nil, "0", CPUs(0), "0"),
		Entry(nil, "42", CPUs(42), "42"),
	)

	It("rejects invalid text", func() {
		var u Utilization
		Expect(u.UnmarshalText([]byte("-1"))).To(MatchError(ContainSubstring("invalid CPU utilization")))
		Expect(u.UnmarshalText([]byte("lots"))).NotTo(Succeed())
	})

	It("tells limited from unlimited", func() {
		Expect(AllCPUs().IsLimited()).To(BeFalse())
		Expect(CPUs(0).IsLimited()).To(BeTrue())
	})

})
