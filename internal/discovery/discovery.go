package discovery

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"
)

const (
	// EngineSuffix locates the engine config inside a game installation.
	EngineSuffix = "DeltaForce/Saved/Config/WindowsClient/Engine.ini"
	// UserSettingsSuffix locates the user settings file.
	UserSettingsSuffix = "DeltaForce/Saved/Config/WindowsClient/GameUserSettings.ini"
	// ExecutableName is the game client binary.
	ExecutableName = "DeltaForceClient.exe"
)

// DefaultRoots are searched when the caller supplies none.
var DefaultRoots = []string{"C:/WeGameApps", "D:/WeGameApps"}

// Options tunes FindConfigs.
type Options struct {
	// Suffix is matched against trailing path components. Defaults to EngineSuffix.
	Suffix string
	// First stops after the first match.
	First bool
	// Global scans every drive root instead of the given roots.
	Global bool
	// NoFallback disables the drive-root scan that runs when the default
	// roots yield nothing.
	NoFallback bool
}

// Result lists matched paths in discovery order without duplicates.
type Result struct {
	Paths    []string `json:"paths"`
	Roots    []string `json:"roots"`
	FellBack bool     `json:"fell_back"`
}

// FindConfigs searches roots for files whose trailing path components equal
// opts.Suffix. Unreadable directories are skipped and returned together as
// a multierror alongside whatever was found.
func FindConfigs(ctx context.Context, roots []string, opts Options) (Result, error) {
	suffix := opts.Suffix
	if suffix == "" {
		suffix = EngineSuffix
	}
	roots = dedupe(roots)
	usingDefaults := len(roots) == 0 || sameRoots(roots, DefaultRoots)
	if len(roots) == 0 {
		roots = append([]string(nil), DefaultRoots...)
	}
	if opts.Global {
		roots = DriveRoots()
	}

	res := Result{Roots: roots}
	paths, errs := scan(ctx, roots, suffix, opts.First)
	if len(paths) == 0 && usingDefaults && !opts.Global && !opts.NoFallback && ctx.Err() == nil {
		res.FellBack = true
		res.Roots = DriveRoots()
		var more error
		paths, more = scan(ctx, res.Roots, suffix, opts.First)
		errs = multierror.Append(errs, more)
	}
	res.Paths = paths
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, errs.ErrorOrNil()
}

func scan(ctx context.Context, roots []string, suffix string, first bool) ([]string, *multierror.Error) {
	want := splitParts(suffix)
	var (
		out  []string
		seen = make(map[string]struct{})
		errs *multierror.Error
	)
	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if err != nil {
				errs = multierror.Append(errs, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if !hasSuffixParts(splitParts(path), want) {
				return nil
			}
			key := normalize(path)
			if _, dup := seen[key]; dup {
				return nil
			}
			seen[key] = struct{}{}
			out = append(out, path)
			if first {
				return fs.SkipAll
			}
			return nil
		})
		if walkErr != nil && !errors.Is(walkErr, context.Canceled) && !errors.Is(walkErr, context.DeadlineExceeded) {
			errs = multierror.Append(errs, walkErr)
		}
		if first && len(out) > 0 {
			break
		}
	}
	return out, errs
}

// FindExecutable returns the first ExecutableName under roots: directly in a
// root first, then at any depth.
func FindExecutable(ctx context.Context, roots []string) (string, bool) {
	return findFile(ctx, roots, ExecutableName)
}

func findFile(ctx context.Context, roots []string, name string) (string, bool) {
	for _, root := range dedupe(roots) {
		if ctx.Err() != nil {
			return "", false
		}
		direct := filepath.Join(root, name)
		if info, err := os.Stat(direct); err == nil && info.Mode().IsRegular() {
			return direct, true
		}
		var found string
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && nameEqual(d.Name(), name) {
				found = path
				return fs.SkipAll
			}
			return nil
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// DriveRoots lists existing drive roots (A:\ through Z:\) on Windows and
// the filesystem root elsewhere.
func DriveRoots() []string {
	if runtime.GOOS != "windows" {
		return []string{string(filepath.Separator)}
	}
	var roots []string
	for c := 'A'; c <= 'Z'; c++ {
		r := string(c) + `:\`
		if _, err := os.Stat(r); err == nil {
			roots = append(roots, r)
		}
	}
	return roots
}

// SplitRoots parses a ';'-separated root list, trimming blanks.
func SplitRoots(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinRoots is the inverse of SplitRoots.
func JoinRoots(roots []string) string { return strings.Join(roots, ";") }

func splitParts(p string) []string {
	p = strings.ReplaceAll(p, `\`, "/")
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" && s != "." {
			parts = append(parts, s)
		}
	}
	return parts
}

func hasSuffixParts(parts, want []string) bool {
	if len(parts) < len(want) {
		return false
	}
	off := len(parts) - len(want)
	for i, w := range want {
		if !nameEqual(parts[off+i], w) {
			return false
		}
	}
	return true
}

func nameEqual(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func normalize(p string) string {
	p = filepath.Clean(p)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}

func dedupe(roots []string) []string {
	seen := make(map[string]struct{}, len(roots))
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		k := normalize(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func sameRoots(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if normalize(a[i]) != normalize(b[i]) {
			return false
		}
	}
	return true
}
