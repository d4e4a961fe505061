// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/karrick/godirwalk"
)

// Fio is a pointer to the shared FileIO implementation
var Fio FileIO = &OSFileIO{}

// FileIO is an interface for the filesystem methods the snapshot store and
// the definitions listing depend on.
type FileIO interface {
	CreatePath(path string) error
	Delete(path string) error
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	WriteFileAtomic(path string, data []byte) error
	Rename(oldpath, newpath string) error
	ListFiles(root string) ([]string, error)
	NumericDirs(root string) ([]uint, error)
}

// OSFileIO implements FileIO backed by default os methods
type OSFileIO struct{}

// CreatePath creates a directory and all parents if required. Returns nil on success or an error otherwise.
// This implementation is backed by os.MkdirAll.
func (OSFileIO) CreatePath(path string) error { return os.MkdirAll(path, 0755) }

// Delete deletes a single file or directory with all contained elements. Returns nil on success or an error otherwise.
// This implementation is backed by os.RemoveAll.
func (OSFileIO) Delete(path string) error { return os.RemoveAll(path) }

// Exists reports whether the path names an existing file or directory.
func (OSFileIO) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads the whole file at path.
func (OSFileIO) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// WriteFile writes data to path, truncating any existing file.
func (OSFileIO) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

// WriteFileAtomic writes data to a temporary file in the target directory
// and renames it over path, so readers never observe a partial write.
func (OSFileIO) WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Rename moves a file or directory into place. This implementation is backed
// by os.Rename.
func (OSFileIO) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

// ListFiles walks root and returns the relative path of every regular file,
// sorted lexicographically. A missing root yields an empty list.
func (OSFileIO) ListFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	var out []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			out = append(out, rel)
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// NumericDirs returns the names of root's immediate subdirectories that
// parse as non-negative integers, ascending. A missing root yields an
// empty list.
func (OSFileIO) NumericDirs(root string) ([]uint, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	entries, err := godirwalk.ReadDirents(root, nil)
	if err != nil {
		return nil, err
	}
	var out []uint
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		n, err := strconv.ParseUint(de.Name(), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, uint(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
