package preset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/loykin/iniguard/internal/backup"
)

func mkPreset(t *testing.T, dir, name, body string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p, FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	mkPreset(t, dir, "ultra", "u")
	mkPreset(t, dir, "low", "l")
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray.ini"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Catalog{Dir: dir}.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Name != "low" || got[1].Name != "ultra" {
		t.Fatalf("unexpected presets: %+v", got)
	}
}

func TestListMissingDir(t *testing.T) {
	_, err := Catalog{Dir: filepath.Join(t.TempDir(), "nope")}.List()
	if !errors.Is(err, ErrNoPresetDir) {
		t.Fatalf("expected ErrNoPresetDir, got %v", err)
	}
}

func TestGetErrors(t *testing.T) {
	dir := t.TempDir()
	mkPreset(t, dir, "low", "l")
	c := Catalog{Dir: dir}

	if _, err := c.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, bad := range []string{"", "..", "a/b", `a\b`} {
		if _, err := c.Get(bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("%q: expected ErrInvalidName, got %v", bad, err)
		}
	}
}

func TestApplyOverwritesReadOnlyTarget(t *testing.T) {
	dir := t.TempDir()
	mkPreset(t, dir, "low", "preset-body")
	target := filepath.Join(t.TempDir(), "Engine.ini")
	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := backup.EnsureReadOnly(target); err != nil {
		t.Fatal(err)
	}

	p, err := Catalog{Dir: dir}.Apply("low", target, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.Name != "low" {
		t.Fatalf("unexpected preset %+v", p)
	}
	b, _ := os.ReadFile(target)
	if string(b) != "preset-body" {
		t.Fatalf("target not overwritten: %q", b)
	}
	if ro, _ := backup.IsReadOnly(target); ro {
		t.Fatal("target should stay writable without lock")
	}

	if _, err := (Catalog{Dir: dir}).Apply("low", target, true); err != nil {
		t.Fatalf("apply lock: %v", err)
	}
	if ro, _ := backup.IsReadOnly(target); !ro {
		t.Fatal("target should be read-only with lock")
	}
}
