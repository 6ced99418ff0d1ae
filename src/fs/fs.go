// Package fs provides filesystem helpers shared by the build context and
// cache: directory creation, existence checks and atomic writes.
package fs

import (
	"io"
	"os"
	"path/filepath"
)

// DirPermissions are the default permission bits applied to created directories.
const DirPermissions = os.ModeDir | 0775

// EnsureDir ensures the directory containing filename exists.
func EnsureDir(filename string) error {
	dir := filepath.Dir(filename)
	err := os.MkdirAll(dir, DirPermissions)
	if err != nil && FileExists(dir) {
		if err2 := os.Remove(dir); err2 == nil {
			err = os.MkdirAll(dir, DirPermissions)
		}
	}
	return err
}

// PathExists reports whether filename exists, as a file or directory.
func PathExists(filename string) bool {
	_, err := os.Lstat(filename)
	return err == nil
}

// FileExists reports whether filename exists and is a regular file (or symlink to one).
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// IsDir reports whether filename exists and is a directory.
func IsDir(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && info.IsDir()
}

// WriteFile writes data from a reader to `to`, writing to a temp file in the
// same directory first and renaming over the destination, so a reader never
// observes a partially-written file.
func WriteFile(from io.Reader, to string, mode os.FileMode) error {
	dir, file := filepath.Split(to)
	if dir != "" {
		if err := os.MkdirAll(dir, DirPermissions); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, file+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, from); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if mode == 0 {
		mode = 0664
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), to)
}

// CopyFile copies from -> to via WriteFile's atomic rename.
func CopyFile(from, to string, mode os.FileMode) error {
	f, err := os.Open(from)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteFile(f, to, mode)
}
