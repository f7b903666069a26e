package inipatch

import (
	"os"
	"strings"

	"github.com/loykin/iniguard/internal/backup"
)

// ApplyFile patches the file at path in place.
func ApplyFile(path string) (Outcome, error) {
	content, err := read(path)
	if err != nil {
		return Unchanged, err
	}
	out, outcome := Apply(content)
	if outcome == Unchanged {
		return outcome, nil
	}
	return outcome, write(path, out)
}

// RemoveFile undoes ApplyFile. It reports whether the file changed.
func RemoveFile(path string) (bool, error) {
	content, err := read(path)
	if err != nil {
		return false, err
	}
	out, changed := Remove(content)
	if !changed {
		return false, nil
	}
	return true, write(path, out)
}

// StatusFile reports the patch state of the file at path.
func StatusFile(path string) (Status, error) {
	content, err := read(path)
	if err != nil {
		return "", err
	}
	return Describe(content), nil
}

func read(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", backup.WrapIOError("read", path, err)
	}
	return strings.ToValidUTF8(string(b), ""), nil
}

func write(path, content string) error {
	ro, err := backup.IsReadOnly(path)
	if err != nil {
		return err
	}
	if ro {
		return &backup.IOError{Op: "write", Path: path, Err: backup.ErrReadOnly}
	}
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return backup.WrapIOError("write", path, err)
	}
	return nil
}
