package inipatch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loykin/iniguard/internal/backup"
)

func TestApply(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		outcome Outcome
	}{
		{
			name:    "already present",
			in:      "[ScalabilityGroups]\nsg.AntiAliasingQuality=0\n",
			want:    "[ScalabilityGroups]\nsg.AntiAliasingQuality=0\n",
			outcome: Unchanged,
		},
		{
			name:    "replace other value",
			in:      "[ScalabilityGroups]\nsg.ShadowQuality=1\n  sg.antialiasingquality=3\n[Other]\nx=1",
			want:    "[ScalabilityGroups]\nsg.ShadowQuality=1\nsg.AntiAliasingQuality=0\n[Other]\nx=1\n",
			outcome: Replaced,
		},
		{
			name:    "insert before next header",
			in:      "[scalabilitygroups]\nsg.ShadowQuality=1\n[Other]\nx=1\n",
			want:    "[scalabilitygroups]\nsg.ShadowQuality=1\nsg.AntiAliasingQuality=0\n[Other]\nx=1\n",
			outcome: Inserted,
		},
		{
			name:    "insert at eof",
			in:      "[Core]\na=1\n[ScalabilityGroups]\nsg.ShadowQuality=1",
			want:    "[Core]\na=1\n[ScalabilityGroups]\nsg.ShadowQuality=1\nsg.AntiAliasingQuality=0\n",
			outcome: Inserted,
		},
		{
			name:    "add section",
			in:      "[Core]\r\na=1\r\n",
			want:    "[Core]\na=1\n\n[ScalabilityGroups]\nsg.AntiAliasingQuality=0\n",
			outcome: SectionAdded,
		},
		{
			name:    "add section to empty",
			in:      "",
			want:    "[ScalabilityGroups]\nsg.AntiAliasingQuality=0\n",
			outcome: SectionAdded,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, outcome := Apply(tc.in)
			if outcome != tc.outcome {
				t.Fatalf("outcome = %v, want %v", outcome, tc.outcome)
			}
			if got != tc.want {
				t.Fatalf("content mismatch\n got: %q\nwant: %q", got, tc.want)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{
			name:    "drop whole section",
			in:      "[Core]\na=1\n\n[ScalabilityGroups]\nsg.AntiAliasingQuality=0\n\n[Other]\nb=2\n",
			want:    "[Core]\na=1\n[Other]\nb=2\n",
			changed: true,
		},
		{
			name:    "keep section with other keys",
			in:      "[ScalabilityGroups]\nsg.ShadowQuality=1\nsg.AntiAliasingQuality=0\n",
			want:    "[ScalabilityGroups]\nsg.ShadowQuality=1\n",
			changed: true,
		},
		{
			name:    "line outside section",
			in:      "[Core]\nsg.AntiAliasingQuality=0\na=1\n",
			want:    "[Core]\na=1\n",
			changed: true,
		},
		{
			name:    "nothing to remove",
			in:      "[ScalabilityGroups]\nsg.AntiAliasingQuality=2\n",
			want:    "[ScalabilityGroups]\nsg.AntiAliasingQuality=2\n",
			changed: false,
		},
		{
			name:    "only the patch",
			in:      "[ScalabilityGroups]\nsg.AntiAliasingQuality=0\n",
			want:    "",
			changed: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := Remove(tc.in)
			if changed != tc.changed {
				t.Fatalf("changed = %v, want %v", changed, tc.changed)
			}
			if got != tc.want {
				t.Fatalf("content mismatch\n got: %q\nwant: %q", got, tc.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	cases := map[string]Status{
		"[ScalabilityGroups]\nsg.AntiAliasingQuality=0\n": Enabled,
		"[ScalabilityGroups]\nsg.AntiAliasingQuality=3\n": OtherValue,
		"[ScalabilityGroups]\nsg.ShadowQuality=3\n":       SectionOnly,
		"[Core]\n":                                         MissingSection,
	}
	for in, want := range cases {
		if got := Describe(in); got != want {
			t.Errorf("Describe(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestFileRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "Engine.ini")
	orig := "[Core.System]\nPaths=../\n"
	if err := os.WriteFile(p, []byte(orig), 0o644); err != nil {
		t.Fatal(err)
	}

	outcome, err := ApplyFile(p)
	if err != nil || outcome != SectionAdded {
		t.Fatalf("apply: %v %v", outcome, err)
	}
	if st, _ := StatusFile(p); st != Enabled {
		t.Fatalf("status after apply = %s", st)
	}
	if outcome, _ := ApplyFile(p); outcome != Unchanged {
		t.Fatalf("second apply = %v", outcome)
	}

	changed, err := RemoveFile(p)
	if err != nil || !changed {
		t.Fatalf("remove: %v %v", changed, err)
	}
	b, _ := os.ReadFile(p)
	if string(b) != orig {
		t.Fatalf("remove did not restore original: %q", b)
	}
}

func TestFileErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.ini")
	var ioe *backup.IOError
	if _, err := ApplyFile(missing); !errors.As(err, &ioe) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected IOError for missing file, got %v", err)
	}

	p := filepath.Join(t.TempDir(), "Engine.ini")
	if err := os.WriteFile(p, []byte("[Core]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := backup.EnsureReadOnly(p); err != nil {
		t.Fatal(err)
	}
	if _, err := ApplyFile(p); !errors.Is(err, backup.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestInvalidUTF8IsDropped(t *testing.T) {
	p := filepath.Join(t.TempDir(), "Engine.ini")
	if err := os.WriteFile(p, []byte("[Core]\na=\xff\xfe1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ApplyFile(p); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(p)
	if !strings.HasPrefix(string(b), "[Core]\na=1\n") {
		t.Fatalf("unexpected content %q", b)
	}
}

func FuzzApplyRemove(f *testing.F) {
	f.Add("")
	f.Add("[Core]\na=1\n")
	f.Add("[ScalabilityGroups]\nsg.AntiAliasingQuality=3\n[X]\n")
	f.Add("[ScalabilityGroups]\n")
	f.Fuzz(func(t *testing.T, in string) {
		out, outcome := Apply(in)
		if outcome == Unchanged {
			if out != in {
				t.Fatalf("unchanged outcome modified content")
			}
			return
		}
		if Describe(out) != Enabled {
			t.Fatalf("apply did not enable: %q", out)
		}
		if !strings.HasSuffix(out, "\n") {
			t.Fatalf("missing trailing newline: %q", out)
		}
		if _, changed := Remove(out); !changed {
			t.Fatalf("remove after apply found nothing: %q", out)
		}
	})
}
