package detector

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Target identifies the monitored executable. Stem is the lowercased base
// name without extension and is used as a process-name prefix; Path is the
// absolute, symlink-resolved executable path.
type Target struct {
	Path string
	Stem string
}

// NewTarget derives a Target from an executable path.
func NewTarget(exePath string) (Target, error) {
	exePath = strings.TrimSpace(exePath)
	if exePath == "" {
		return Target{}, errors.New("empty executable path")
	}
	base := filepath.Base(exePath)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return Target{}, fmt.Errorf("cannot derive process name from %q", exePath)
	}
	return Target{Path: resolvePath(exePath), Stem: stem}, nil
}

// ProcessAccessError reports a process that vanished or denied inspection
// between enumeration and lookup. Such processes are skipped.
type ProcessAccessError struct {
	PID int32
	Err error
}

func (e *ProcessAccessError) Error() string {
	return fmt.Sprintf("process %d: %v", e.PID, e.Err)
}

func (e *ProcessAccessError) Unwrap() error { return e.Err }

// Match describes the process that satisfied a scan.
type Match struct {
	PID       int32  `json:"pid"`
	Name      string `json:"name"`
	Exe       string `json:"exe,omitempty"`
	StartUnix int64  `json:"start_unix,omitempty"`
}

// ScanResult is the outcome of one process-table scan. Skipped aggregates
// ProcessAccessErrors and is nil when every process could be inspected.
type ScanResult struct {
	Match   *Match
	Skipped error
}

type procInfo interface {
	Name() (string, error)
	Exe() (string, error)
}

type procEntry struct {
	pid  int32
	info procInfo
}

func listProcesses() ([]procEntry, error) {
	ps, err := gopsproc.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]procEntry, 0, len(ps))
	for _, p := range ps {
		out = append(out, procEntry{pid: p.Pid, info: p})
	}
	return out, nil
}

// ProcessDetector reports whether any process matches Target, either by a
// case-insensitive name prefix or by an identical executable path.
type ProcessDetector struct {
	Target Target

	list func() ([]procEntry, error)
}

// NewProcessDetector builds a detector for the executable at exePath.
func NewProcessDetector(exePath string) (*ProcessDetector, error) {
	t, err := NewTarget(exePath)
	if err != nil {
		return nil, err
	}
	return &ProcessDetector{Target: t}, nil
}

// Scan enumerates the process table once. An error is returned only when
// the table itself cannot be read.
func (d *ProcessDetector) Scan() (ScanResult, error) {
	list := d.list
	if list == nil {
		list = listProcesses
	}
	entries, err := list()
	if err != nil {
		return ScanResult{}, fmt.Errorf("enumerate processes: %w", err)
	}
	var skipped *multierror.Error
	for _, e := range entries {
		// An unreadable name does not stop the exe comparison.
		name, nameErr := e.info.Name()
		if nameErr == nil && name != "" && strings.HasPrefix(strings.ToLower(name), d.Target.Stem) {
			return ScanResult{Match: d.match(e, name, ""), Skipped: skipped.ErrorOrNil()}, nil
		}
		exe, exeErr := e.info.Exe()
		if exeErr == nil && exe != "" && samePath(resolvePath(exe), d.Target.Path) {
			return ScanResult{Match: d.match(e, name, exe), Skipped: skipped.ErrorOrNil()}, nil
		}
		if nameErr != nil {
			skipped = multierror.Append(skipped, &ProcessAccessError{PID: e.pid, Err: nameErr})
		} else if exeErr != nil {
			skipped = multierror.Append(skipped, &ProcessAccessError{PID: e.pid, Err: exeErr})
		}
	}
	return ScanResult{Skipped: skipped.ErrorOrNil()}, nil
}

func (d *ProcessDetector) match(e procEntry, name, exe string) *Match {
	if exe == "" {
		exe, _ = e.info.Exe()
	}
	return &Match{PID: e.pid, Name: name, Exe: exe, StartUnix: procStartUnix(int(e.pid))}
}

func (d *ProcessDetector) Alive() (bool, error) {
	r, err := d.Scan()
	if err != nil {
		return false, err
	}
	return r.Match != nil, nil
}

func (d *ProcessDetector) Describe() string {
	return fmt.Sprintf("process:%s (%s)", d.Target.Stem, d.Target.Path)
}

func resolvePath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if r, err := filepath.EvalSymlinks(p); err == nil {
		p = r
	}
	return filepath.Clean(p)
}

func samePath(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
