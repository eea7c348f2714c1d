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
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("Linux affinities", func() {

	It("agrees with procfs on the permitted cores", func() {
		mask := Successful(taskAffinity(os.Getpid()))
		allowed := Successful(allowedCores(Successful(procfs.NewDefaultFS()), os.Getpid()))
		Expect(mask.Cores().Equal(allowed)).To(BeTrue())
		Expect(permittedCores().Equal(allowed)).To(BeTrue())
	})

	It("reads the allowed cores from a process status", func() {
		root := GinkgoT().TempDir()
		Expect(os.MkdirAll(filepath.Join(root, "42"), 0o755)).To(Succeed())
		Expect(os.MkdirAll(filepath.Join(root, "666"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(root, "42", "status"), []byte(
			"Name:\tfoo\nCpus_allowed:\tf\nCpus_allowed_list:\t0-1,3\nMems_allowed_list:\t0\n"),
			0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(root, "666", "status"), []byte("Name:\tfoo\n"), 0o644)).To(Succeed())
		proc := Successful(procfs.NewFS(root))

		Expect(Successful(allowedCores(proc, 42)).Slice()).To(Equal([]ID{0, 1, 3}))
		Expect(allowedCores(proc, 666)).Error().To(HaveOccurred())
		Expect(allowedCores(proc, 1)).Error().To(HaveOccurred())
	})

	DescribeTable("determining the width from the possible CPUs",
		func(contents string, expected uint) {
			possible := filepath.Join(GinkgoT().TempDir(), "possible")
			Expect(os.WriteFile(possible, []byte(contents), 0o644)).To(Succeed())
			Expect(possibleWidthFrom(possible)).To(Equal(expected))
		},
		Entry(nil, "0\n", uint(1)),
		Entry(nil, "0-3\n", uint(4)),
		Entry(nil, "0-7,64-71\n", uint(72)),
	)

	It("rejects unusable possible CPU lists", func() {
		dir := GinkgoT().TempDir()
		Expect(possibleWidthFrom(filepath.Join(dir, "nada"))).Error().To(HaveOccurred())
		possible := filepath.Join(dir, "possible")
		Expect(os.WriteFile(possible, []byte("\n"), 0o644)).To(Succeed())
		Expect(possibleWidthFrom(possible)).Error().To(HaveOccurred())
		Expect(os.WriteFile(possible, []byte("0-"), 0o644)).To(Succeed())
		Expect(possibleWidthFrom(possible)).Error().To(HaveOccurred())
	})

	It("limits the width to the possible CPUs", func() {
		w := maskWidth()
		Expect(w).To(BeNumerically(">", uint(Permitted().Max())))
		if _, err := os.Stat(possibleCPUsPath); err != nil {
			Skip("no sysfs")
		}
		Expect(w).To(Equal(Successful(possibleWidthFrom(possibleCPUsPath))))
	})

	It("lists the tasks of this process", func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		Expect(tasks(Successful(procfs.NewDefaultFS()), os.Getpid())).To(ContainElement(unix.Gettid()))
	})

	It("classifies task listing errors", func() {
		root := GinkgoT().TempDir()
		Expect(os.MkdirAll(filepath.Join(root, "42"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(root, "42", "task"), nil, 0o644)).To(Succeed())
		proc := Successful(procfs.NewFS(root))

		_, err := tasks(proc, 42)
		Expect(err).To(HaveOccurred())
		var platformErr *PlatformError
		Expect(errors.As(err, &platformErr)).To(BeTrue())
		Expect(platformErr.Op).To(Equal("readdir"))

		_, err = tasks(proc, 666)
		Expect(err).To(MatchError(fs.ErrNotExist))
		Expect(errors.As(err, &platformErr)).To(BeTrue())

		err = newPlatformError("readdir",
			&fs.PathError{Op: "open", Path: "/proc/1/task", Err: unix.EACCES})
		Expect(err).To(MatchError(ErrDenied))
		Expect(err).To(MatchError(unix.EACCES))
	})

	It("pins the calling thread and restores its affinity", func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		original := Successful(taskAffinity(0))
		defer func() {
			Expect(setTaskAffinity(0, original)).To(Succeed())
		}()

		core := Permitted().Max()
		Expect(Of(core).PinCurrentThread()).To(Succeed())
		Expect(Successful(taskAffinity(0)).Cores().Equal(Of(core))).To(BeTrue())
		Eventually(func() ID {
			id, _ := CurrentCore()
			return id
		}).Should(Equal(core))
	})

	It("rejects cores beyond the possible CPUs", func() {
		w := maskWidth()
		if w > uint(MaxID) {
			Skip("more possible CPUs than representable cores")
		}
		err := Platform().SetThreadAffinity(Of(ID(w)), CurrentThread())
		Expect(err).To(MatchError(ErrInvalidRequest))
		var rangeErr *RangeError
		Expect(err).To(BeAssignableToTypeOf(rangeErr))
		Expect(Platform().SetProcessAffinity(New(0, ID(w)), CurrentProcess())).To(
			MatchError(ErrInvalidRequest))
	})

	It("reports missing processes", func() {
		err := Platform().SetProcessAffinity(Permitted(), ProcessID(1<<30+42))
		Expect(err).To(MatchError(ErrNotFound))
		Expect(err).To(MatchError(unix.ESRCH))

		err = Platform().SetThreadAffinity(Permitted(), ThreadID(1<<30+42))
		Expect(err).To(MatchError(ErrNotFound))
	})

	It("knows the current core", func() {
		id, ok := CurrentCore()
		Expect(ok).To(BeTrue())
		Expect(Permitted().Contains(id)).To(BeTrue())
	})

	DescribeTable("classifying errnos",
		func(errno unix.Errno, kind error) {
			err := newPlatformError("sched_setaffinity", errno)
			Expect(err).To(MatchError(errno))
			if kind == nil {
				Expect(err.(*PlatformError).Kind).To(BeNil())
				return
			}
			Expect(err).To(MatchError(kind))
		},
		Entry(nil, unix.ENOSYS, ErrUnsupported),
		Entry(nil, unix.EPERM, ErrDenied),
		Entry(nil, unix.EACCES, ErrDenied),
		Entry(nil, unix.EINVAL, ErrInvalidRequest),
		Entry(nil, unix.ESRCH, ErrNotFound),
		Entry(nil, unix.EIO, nil),
	)

})
