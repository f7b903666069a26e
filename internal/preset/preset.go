// Package preset manages the catalog of named Engine.ini presets. Each
// preset is a directory under the catalog root holding an Engine.ini.
package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/loykin/iniguard/internal/backup"
)

// FileName is the file each preset directory must contain.
const FileName = "Engine.ini"

var (
	ErrNoPresetDir = errors.New("preset directory not found")
	ErrNotFound    = errors.New("preset not found")
	ErrInvalidName = errors.New("invalid preset name")
)

// Preset is one entry of the catalog.
type Preset struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Catalog lists presets stored under Dir.
type Catalog struct {
	Dir string
}

// List returns the presets sorted by name. Directories without an
// Engine.ini are ignored.
func (c Catalog) List() ([]Preset, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoPresetDir, c.Dir)
		}
		return nil, fmt.Errorf("read preset dir: %w", err)
	}
	var out []Preset
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(c.Dir, e.Name(), FileName)
		if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, Preset{Name: e.Name(), Path: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get resolves a single preset by name.
func (c Catalog) Get(name string) (Preset, error) {
	if err := validName(name); err != nil {
		return Preset{}, err
	}
	if _, err := os.Stat(c.Dir); err != nil {
		return Preset{}, fmt.Errorf("%w: %s", ErrNoPresetDir, c.Dir)
	}
	p := filepath.Join(c.Dir, name, FileName)
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return Preset{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return Preset{Name: name, Path: p}, nil
}

// Apply copies the named preset over target, clearing a read-only
// attribute first. When lock is true the target is made read-only again.
func (c Catalog) Apply(name, target string, lock bool) (Preset, error) {
	p, err := c.Get(name)
	if err != nil {
		return Preset{}, err
	}
	if err := backup.EnsureWritable(target); err != nil {
		return p, err
	}
	if err := backup.CopyFile(p.Path, target); err != nil {
		return p, err
	}
	if lock {
		if err := backup.EnsureReadOnly(target); err != nil {
			return p, err
		}
	}
	return p, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
