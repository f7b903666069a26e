package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Result reports how far Restore got. A partial restore is not rolled back.
type Result struct {
	Copied   bool `json:"copied"`
	ReadOnly bool `json:"read_only"`
}

// Backup copies the selected config to backupFile, creating its directory
// and clearing a read-only bit left by a previous backup.
func Backup(selected, backupFile string) error {
	if _, err := os.Stat(selected); err != nil {
		return ioErr("stat", selected, err)
	}
	if err := os.MkdirAll(filepath.Dir(backupFile), 0o750); err != nil {
		return ioErr("mkdir", filepath.Dir(backupFile), err)
	}
	if err := EnsureWritable(backupFile); err != nil {
		return err
	}
	return CopyFile(selected, backupFile)
}

// Restore copies backupFile over target and marks target read-only.
func Restore(backupFile, target string) (Result, error) {
	var res Result
	if _, err := os.Stat(backupFile); err != nil {
		return res, ioErr("stat", backupFile, err)
	}
	if err := EnsureWritable(target); err != nil {
		return res, err
	}
	if err := CopyFile(backupFile, target); err != nil {
		return res, err
	}
	res.Copied = true
	if err := EnsureReadOnly(target); err != nil {
		return res, err
	}
	res.ReadOnly = true
	return res, nil
}

// CopyFile copies src to dst, preserving the source modification time.
// An existing read-only dst is refused with ErrReadOnly.
func CopyFile(src, dst string) error {
	ro, err := IsReadOnly(dst)
	if err != nil {
		return err
	}
	if ro {
		return &IOError{Op: "write", Path: dst, Err: ErrReadOnly}
	}
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return ioErr("open", src, err)
	}
	defer func() { _ = in.Close() }()
	info, err := in.Stat()
	if err != nil {
		return ioErr("stat", src, err)
	}
	if info.IsDir() {
		return &IOError{Op: "open", Path: src, Err: fmt.Errorf("is a directory")}
	}
	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return ioErr("create", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return ioErr("write", dst, err)
	}
	if err := out.Close(); err != nil {
		return ioErr("close", dst, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return ioErr("chtimes", dst, err)
	}
	return nil
}

// IsReadOnly reports whether path exists and lacks the owner write bit.
// A missing file is not read-only.
func IsReadOnly(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, ioErr("stat", path, err)
	}
	return info.Mode().Perm()&0o200 == 0, nil
}

// EnsureWritable sets the owner write bit on path if it exists.
func EnsureWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ioErr("stat", path, err)
	}
	if info.Mode().Perm()&0o200 != 0 {
		return nil
	}
	if err := os.Chmod(path, info.Mode().Perm()|0o200); err != nil {
		return ioErr("clear read-only", path, err)
	}
	return nil
}

// EnsureReadOnly clears every write bit on path if it exists.
func EnsureReadOnly(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ioErr("stat", path, err)
	}
	if err := os.Chmod(path, info.Mode().Perm()&^0o222); err != nil {
		return ioErr("set read-only", path, err)
	}
	return nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
