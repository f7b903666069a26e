package detector

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hashicorp/go-multierror"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

type fakeProc struct {
	name    string
	exe     string
	nameErr error
	exeErr  error
}

func (p fakeProc) Name() (string, error) { return p.name, p.nameErr }
func (p fakeProc) Exe() (string, error)  { return p.exe, p.exeErr }

func fakeList(entries ...procEntry) func() ([]procEntry, error) {
	return func() ([]procEntry, error) { return entries, nil }
}

func TestNewTargetDerivesStem(t *testing.T) {
	tgt, err := NewTarget(filepath.Join("games", "DeltaForceClient.exe"))
	if err != nil {
		t.Fatalf("new target: %v", err)
	}
	if tgt.Stem != "deltaforceclient" {
		t.Fatalf("unexpected stem %q", tgt.Stem)
	}
	if !filepath.IsAbs(tgt.Path) {
		t.Fatalf("expected absolute path, got %q", tgt.Path)
	}
	if _, err := NewTarget("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestProcessDetectorMatchesNamePrefixCaseInsensitive(t *testing.T) {
	d, err := NewProcessDetector("/opt/game/DeltaForceClient.exe")
	if err != nil {
		t.Fatal(err)
	}
	d.list = fakeList(
		procEntry{pid: 1, info: fakeProc{name: "init"}},
		procEntry{pid: 42, info: fakeProc{name: "DELTAFORCECLIENT-Win64-Shipping.exe"}},
	)
	r, err := d.Scan()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if r.Match == nil || r.Match.PID != 42 {
		t.Fatalf("expected match on pid 42, got %+v", r.Match)
	}
	alive, err := d.Alive()
	if err != nil || !alive {
		t.Fatalf("expected alive, got %v err=%v", alive, err)
	}
}

func TestProcessDetectorMatchesResolvedExePath(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "Game.exe")
	if err := os.WriteFile(exe, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := NewProcessDetector(exe)
	if err != nil {
		t.Fatal(err)
	}
	// Name does not share the stem, but the executable path is the same file
	// reached through a non-clean path.
	d.list = fakeList(procEntry{pid: 7, info: fakeProc{name: "launcher", exe: dir + string(filepath.Separator) + "." + string(filepath.Separator) + "Game.exe"}})
	alive, err := d.Alive()
	if err != nil {
		t.Fatalf("alive: %v", err)
	}
	if !alive {
		t.Fatalf("expected exe path match")
	}
}

func TestProcessDetectorSkipsInaccessibleProcesses(t *testing.T) {
	d, err := NewProcessDetector("/opt/game/DeltaForceClient.exe")
	if err != nil {
		t.Fatal(err)
	}
	denied := errors.New("access denied")
	d.list = fakeList(
		procEntry{pid: 3, info: fakeProc{nameErr: denied}},
		procEntry{pid: 4, info: fakeProc{name: "svchost", exeErr: denied}},
		procEntry{pid: 5, info: fakeProc{name: "explorer", exe: "/windows/explorer.exe"}},
	)
	r, err := d.Scan()
	if err != nil {
		t.Fatalf("scan must not fail on per-process errors: %v", err)
	}
	if r.Match != nil {
		t.Fatalf("unexpected match %+v", r.Match)
	}
	var merr *multierror.Error
	if !errors.As(r.Skipped, &merr) || len(merr.Errors) != 2 {
		t.Fatalf("expected 2 skipped processes, got %v", r.Skipped)
	}
	var pae *ProcessAccessError
	if !errors.As(merr.Errors[0], &pae) || pae.PID != 3 || !errors.Is(pae, denied) {
		t.Fatalf("unexpected skipped error: %v", merr.Errors[0])
	}
}

func TestProcessDetectorMatchesExeWhenNameUnreadable(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "DeltaForceClient.exe")
	if err := os.WriteFile(exe, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := NewProcessDetector(exe)
	if err != nil {
		t.Fatal(err)
	}
	denied := errors.New("access denied")
	d.list = fakeList(
		procEntry{pid: 3, info: fakeProc{nameErr: denied, exeErr: denied}},
		procEntry{pid: 7, info: fakeProc{nameErr: denied, exe: exe}},
	)
	r, err := d.Scan()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if r.Match == nil || r.Match.PID != 7 {
		t.Fatalf("expected match on pid 7 by exe path, got %+v", r.Match)
	}
	if r.Match.Exe != exe {
		t.Fatalf("match exe = %q, want %q", r.Match.Exe, exe)
	}
	var merr *multierror.Error
	if !errors.As(r.Skipped, &merr) || len(merr.Errors) != 1 {
		t.Fatalf("expected only pid 3 skipped, got %v", r.Skipped)
	}
	var pae *ProcessAccessError
	if !errors.As(merr.Errors[0], &pae) || pae.PID != 3 {
		t.Fatalf("unexpected skipped error: %v", merr.Errors[0])
	}
}

func TestProcessDetectorEnumerationFailure(t *testing.T) {
	d, err := NewProcessDetector("/opt/game/DeltaForceClient.exe")
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	d.list = func() ([]procEntry, error) { return nil, boom }
	if _, err := d.Alive(); !errors.Is(err, boom) {
		t.Fatalf("expected enumeration error, got %v", err)
	}
}

func TestProcessDetectorFindsCurrentProcess(t *testing.T) {
	self, err := os.Executable()
	if err != nil {
		t.Skip("executable path unavailable")
	}
	d, err := NewProcessDetector(self)
	if err != nil {
		t.Fatal(err)
	}
	r, err := d.Scan()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if r.Match == nil {
		t.Fatalf("expected the test binary to be found (%s)", d.Describe())
	}
}
