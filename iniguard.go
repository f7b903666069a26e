package iniguard

import (
	"context"
	"net/http"
	"time"

	"github.com/loykin/iniguard/internal/backup"
	cfg "github.com/loykin/iniguard/internal/config"
	"github.com/loykin/iniguard/internal/discovery"
	"github.com/loykin/iniguard/internal/history"
	"github.com/loykin/iniguard/internal/history/factory"
	"github.com/loykin/iniguard/internal/manager"
	"github.com/loykin/iniguard/internal/metrics"
	"github.com/loykin/iniguard/internal/preset"
	iapi "github.com/loykin/iniguard/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type ManagerConfig = manager.Config

type Paths = manager.Paths

type Status = manager.Status

type PatchAction = manager.PatchAction

type PatchResult = manager.PatchResult

type RestoreResult = backup.Result

type SearchOptions = discovery.Options

type SearchResult = discovery.Result

type Preset = preset.Preset

type Settings = cfg.Settings

type Config = cfg.Config

type HistorySink = history.Sink

const (
	PatchApply  = manager.PatchApply
	PatchRemove = manager.PatchRemove
	PatchStatus = manager.PatchStatus
)

var (
	ErrNoConfigSelected   = manager.ErrNoConfigSelected
	ErrNoBackup           = manager.ErrNoBackup
	ErrMonitorRunning     = manager.ErrMonitorRunning
	ErrExecutableNotFound = manager.ErrExecutableNotFound
)

// Manager is a thin facade over internal/manager.Manager.
// It provides a stable public API for embedding.
type Manager struct{ inner *manager.Manager }

// New starts a manager. Call Close when done.
func New(c ManagerConfig) *Manager { return &Manager{inner: manager.New(c)} }

// NewPaths derives the on-disk layout below appDir.
func NewPaths(appDir string) Paths { return manager.NewPaths(appDir) }

func (m *Manager) Close() error { return m.inner.Close() }
func (m *Manager) Paths() Paths { return m.inner.Paths() }
func (m *Manager) Search(ctx context.Context, roots []string, opts SearchOptions) (SearchResult, error) {
	return m.inner.Search(ctx, roots, opts)
}
func (m *Manager) Select(ctx context.Context, path string) error { return m.inner.Select(ctx, path) }
func (m *Manager) Backup(ctx context.Context, path string) (string, error) {
	return m.inner.Backup(ctx, path)
}
func (m *Manager) Restore(ctx context.Context) (RestoreResult, error) { return m.inner.Restore(ctx) }
func (m *Manager) Presets() ([]Preset, error)                         { return m.inner.Presets() }
func (m *Manager) ApplyPreset(ctx context.Context, name string) (Preset, error) {
	return m.inner.ApplyPreset(ctx, name)
}
func (m *Manager) Patch(ctx context.Context, a PatchAction) (PatchResult, error) {
	return m.inner.Patch(ctx, a)
}
func (m *Manager) StartMonitor(ctx context.Context, exePath string) (string, error) {
	return m.inner.StartMonitor(ctx, exePath)
}
func (m *Manager) StartSession(ctx context.Context, exePath string) (string, <-chan error, error) {
	return m.inner.StartSession(ctx, exePath)
}
func (m *Manager) StopMonitor(ctx context.Context) error          { return m.inner.StopMonitor(ctx) }
func (m *Manager) Status(ctx context.Context) (Status, error)     { return m.inner.Status(ctx) }
func (m *Manager) Settings(ctx context.Context) (Settings, error) { return m.inner.Settings(ctx) }
func (m *Manager) SetRestoreDelay(ctx context.Context, seconds int) (int, error) {
	return m.inner.SetRestoreDelay(ctx, seconds)
}

func LoadConfig(path string) (*cfg.Config, error) {
	return cfg.LoadConfig(path)
}

// NewHistorySink opens a history sink for dsn (sqlite, postgres,
// clickhouse, opensearch or influxdb).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// NewRouter returns the HTTP API handler for m mounted under basePath, for
// embedding into another router.
func NewRouter(m *Manager, basePath string) http.Handler {
	return iapi.NewRouter(m.inner, basePath).Handler()
}

// NewHTTPServer starts an HTTP server exposing the API using the given manager.
func NewHTTPServer(addr, basePath string, m *Manager) *http.Server {
	return iapi.NewServer(addr, iapi.NewRouter(m.inner, basePath))
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
