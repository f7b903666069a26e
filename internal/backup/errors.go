package backup

import (
	"errors"
	"io/fs"
)

// ErrReadOnly is returned when a write targets a file marked read-only.
var ErrReadOnly = errors.New("file is read-only")

// IOError reports a failed file operation. Op names the step, Path the file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// WrapIOError wraps err as an *IOError. An existing IOError is returned
// unchanged and a *fs.PathError is reduced to its cause.
func WrapIOError(op, path string, err error) error {
	var ie *IOError
	if errors.As(err, &ie) {
		return err
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func ioErr(op, path string, err error) error { return WrapIOError(op, path, err) }
