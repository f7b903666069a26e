package iniguard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/iniguard/internal/detector"
	"github.com/prometheus/client_golang/prometheus"
)

type offProbe struct{}

func (offProbe) Alive() (bool, error) { return false, nil }
func (offProbe) Describe() string     { return "off" }

func newFacade(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	live := filepath.Join(dir, "Engine.ini")
	if err := os.WriteFile(live, []byte("[Core]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := New(ManagerConfig{
		Paths:    NewPaths(filepath.Join(dir, "app")),
		ExePath:  filepath.Join(dir, "DeltaForceClient.exe"),
		Interval: 10 * time.Millisecond,
		NewDetector: func(string) (detector.Detector, error) {
			return offProbe{}, nil
		},
	})
	t.Cleanup(func() { _ = m.Close() })
	return m, live
}

func TestManagerFacadeBackupPatchRestore(t *testing.T) {
	m, live := newFacade(t)
	ctx := context.Background()

	if _, err := m.Backup(ctx, ""); !errors.Is(err, ErrNoConfigSelected) {
		t.Fatalf("expected ErrNoConfigSelected, got %v", err)
	}
	if err := m.Select(ctx, live); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Backup(ctx, ""); err != nil {
		t.Fatal(err)
	}
	pr, err := m.Patch(ctx, PatchApply)
	if err != nil || !pr.Changed {
		t.Fatalf("patch: %+v %v", pr, err)
	}
	res, err := m.Restore(ctx)
	if err != nil || !res.Copied {
		t.Fatalf("restore: %+v %v", res, err)
	}
	b, _ := os.ReadFile(live)
	if string(b) != "[Core]\n" {
		t.Fatalf("restored content = %q", b)
	}
	if n, err := m.SetRestoreDelay(ctx, -3); err != nil || n != 0 {
		t.Fatalf("delay: %d %v", n, err)
	}
	st, err := m.Status(ctx)
	if err != nil || st.ConfigPath != live || !st.BackupExists {
		t.Fatalf("status: %+v %v", st, err)
	}
}

func TestFacadeRouter(t *testing.T) {
	m, _ := newFacade(t)
	srv := httptest.NewServer(NewRouter(m, "/guard"))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/guard/status")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code %d", resp.StatusCode)
	}
}

func TestFacadeHistorySink(t *testing.T) {
	s, err := NewHistorySink("sqlite://:memory:")
	if err != nil {
		t.Fatalf("sqlite sink: %v", err)
	}
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
	if _, err := NewHistorySink("mongodb://x"); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported DSN error, got %v", err)
	}
}

func TestRegisterMetrics(t *testing.T) {
	if err := RegisterMetrics(prometheus.NewRegistry()); err != nil {
		t.Fatal(err)
	}
}
