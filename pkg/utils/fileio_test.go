// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package utils_test

import (
	"os"
	"path/filepath"

	. "github.com/fablehost/fabled/pkg/utils"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("OSFileIO", func() {
	var dir string
	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "fabled-utils")
		Expect(err).NotTo(HaveOccurred())
	})
	AfterEach(func() {
		os.RemoveAll(dir)
	})
	Context("when writing atomically", func() {
		It("produces the file with the given content", func() {
			path := filepath.Join(dir, "meta")
			Expect(Fio.WriteFileAtomic(path, []byte("id = 0\n"))).To(Succeed())
			data, err := Fio.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("id = 0\n"))
		})
		It("leaves no temporary files behind", func() {
			path := filepath.Join(dir, "meta")
			Expect(Fio.WriteFileAtomic(path, []byte("x"))).To(Succeed())
			entries, err := os.ReadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Name()).To(Equal("meta"))
		})
		It("replaces an existing file", func() {
			path := filepath.Join(dir, "meta")
			Expect(Fio.WriteFileAtomic(path, []byte("old"))).To(Succeed())
			Expect(Fio.WriteFileAtomic(path, []byte("new"))).To(Succeed())
			data, _ := Fio.ReadFile(path)
			Expect(string(data)).To(Equal("new"))
		})
	})
	Context("when listing files", func() {
		It("returns relative paths sorted", func() {
			Expect(Fio.CreatePath(filepath.Join(dir, "sub"))).To(Succeed())
			Expect(Fio.WriteFile(filepath.Join(dir, "b.xml"), nil)).To(Succeed())
			Expect(Fio.WriteFile(filepath.Join(dir, "a.xml"), nil)).To(Succeed())
			Expect(Fio.WriteFile(filepath.Join(dir, "sub", "c.xml"), nil)).To(Succeed())
			files, err := Fio.ListFiles(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(Equal([]string{"a.xml", "b.xml", filepath.Join("sub", "c.xml")}))
		})
		It("yields an empty list for a missing root", func() {
			files, err := Fio.ListFiles(filepath.Join(dir, "absent"))
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(BeEmpty())
		})
	})
	Context("when scanning numeric directories", func() {
		It("returns only integer-named directories, ascending", func() {
			for _, name := range []string{"10", "2", "0", "meta", "x1"} {
				Expect(Fio.CreatePath(filepath.Join(dir, name))).To(Succeed())
			}
			Expect(Fio.WriteFile(filepath.Join(dir, "5"), nil)).To(Succeed())
			dirs, err := Fio.NumericDirs(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(dirs).To(Equal([]uint{0, 2, 10}))
		})
	})
})
