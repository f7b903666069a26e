package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/loykin/iniguard/internal/backup"
	"github.com/loykin/iniguard/internal/config"
	"github.com/loykin/iniguard/internal/detector"
	"github.com/loykin/iniguard/internal/discovery"
	"github.com/loykin/iniguard/internal/history"
	"github.com/loykin/iniguard/internal/inipatch"
	"github.com/loykin/iniguard/internal/metrics"
	"github.com/loykin/iniguard/internal/monitor"
	"github.com/loykin/iniguard/internal/notify"
	"github.com/loykin/iniguard/internal/preset"
	"github.com/loykin/iniguard/internal/restore"
)

var (
	ErrNoConfigSelected   = errors.New("no config file selected")
	ErrNoBackup           = errors.New("backup file not found")
	ErrMonitorRunning     = errors.New("monitor already running")
	ErrExecutableNotFound = errors.New("game executable not found")
	ErrClosed             = errors.New("manager closed")
	ErrUnknownPatchAction = errors.New("unknown patch action")
)

const historyTimeout = 3 * time.Second

// Config wires a Manager. Zero values fall back to defaults.
type Config struct {
	Paths Paths
	// ExePath is the monitored executable. When empty it is discovered
	// under the game search paths.
	ExePath string
	// GameSearchPaths seed executable discovery when settings have none.
	GameSearchPaths []string
	Interval        time.Duration
	// RestoreDelaySeconds is used only when settings.json carries no value.
	// Negative means restore.DefaultDelaySeconds.
	RestoreDelaySeconds int

	Logger   *slog.Logger
	History  history.Sink
	Notifier *notify.Dispatcher
	// NewDetector builds the probe for an executable path.
	NewDetector func(exePath string) (detector.Detector, error)
}

// Status is a snapshot of the controller state.
type Status struct {
	ConfigPath          string     `json:"config_path,omitempty"`
	BackupPath          string     `json:"backup_path"`
	BackupExists        bool       `json:"backup_exists"`
	Monitoring          bool       `json:"monitoring"`
	Target              string     `json:"target,omitempty"`
	Running             bool       `json:"running"`
	PID                 int32      `json:"pid,omitempty"`
	PendingRestoreAt    *time.Time `json:"pending_restore_at,omitempty"`
	LastRestoreAt       *time.Time `json:"last_restore_at,omitempty"`
	LastRestoreResult   string     `json:"last_restore_result,omitempty"`
	RestoreDelaySeconds int        `json:"restore_delay_seconds"`
}

type session struct {
	mon    *monitor.Monitor
	events <-chan monitor.Event
	target string
	// ended receives the error that ended the session, nil on a normal
	// stop, and is then closed.
	ended chan error
}

// Manager is the controlling context. A single goroutine owns the settings,
// the monitoring session and the restore scheduler; every file mutation
// runs on it.
type Manager struct {
	cfg   Config
	log   *slog.Logger
	paths Paths

	ctrl  chan ctrlMsg
	posts chan func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// owned by the run goroutine
	settings    config.Settings
	sched       *restore.Scheduler
	sess        *session
	running     bool
	pid         int32
	lastRestore time.Time
	lastResult  string
}

// New loads settings and starts the controller goroutine.
func New(cfg Config) *Manager {
	if cfg.Paths.AppDir == "" {
		cfg.Paths = NewPaths("")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewDetector == nil {
		cfg.NewDetector = func(p string) (detector.Detector, error) { return detector.NewProcessDetector(p) }
	}
	if cfg.RestoreDelaySeconds < 0 {
		cfg.RestoreDelaySeconds = restore.DefaultDelaySeconds
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:    cfg,
		log:    cfg.Logger,
		paths:  cfg.Paths,
		ctrl:   make(chan ctrlMsg),
		posts:  make(chan func()),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.sched = restore.NewScheduler(m.fire, m.post)
	m.loadSettings()
	go m.run()
	return m
}

// Paths returns the application layout.
func (m *Manager) Paths() Paths { return m.paths }

func (m *Manager) loadSettings() {
	def := config.DefaultSettings()
	def.RestoreDelaySeconds = m.cfg.RestoreDelaySeconds
	def.LastGameSearchPaths = m.cfg.GameSearchPaths
	s, err := config.LoadSettings(m.paths.SettingsFile, def)
	if err != nil {
		m.log.Warn("settings unreadable, using defaults", "path", m.paths.SettingsFile, "error", err)
	}
	m.settings = s
	if p := s.LastConfigPath; p != "" && !backup.Exists(p) {
		m.log.Warn("saved config path no longer exists", "path", p)
		m.settings.LastConfigPath = ""
		m.saveSettings()
	}
}

// saveSettings is best-effort.
func (m *Manager) saveSettings() {
	if err := config.SaveSettings(m.paths.SettingsFile, m.settings); err != nil {
		m.log.Warn("save settings failed", "path", m.paths.SettingsFile, "error", err)
	}
}

// Close stops the session and the controller, then persists settings.
func (m *Manager) Close() error {
	m.once.Do(func() {
		m.cancel()
		<-m.done
		m.saveSettings()
	})
	return nil
}

// Settings returns a copy of the persisted settings.
func (m *Manager) Settings(ctx context.Context) (config.Settings, error) {
	var s config.Settings
	err := m.do(ctx, func() error {
		s = m.settings
		s.LastSearchPaths = append([]string(nil), s.LastSearchPaths...)
		s.LastGameSearchPaths = append([]string(nil), s.LastGameSearchPaths...)
		return nil
	})
	return s, err
}

// SetRestoreDelay clamps and persists the restore delay. A pending restore
// keeps its original due time.
func (m *Manager) SetRestoreDelay(ctx context.Context, seconds int) (int, error) {
	var out int
	err := m.do(ctx, func() error {
		m.settings.RestoreDelaySeconds = restore.ClampDelay(seconds)
		out = m.settings.RestoreDelaySeconds
		m.saveSettings()
		return nil
	})
	return out, err
}

// Search walks roots for config files. Empty roots reuse the last search
// paths, then the defaults. The first match becomes the selected config.
func (m *Manager) Search(ctx context.Context, roots []string, opts discovery.Options) (discovery.Result, error) {
	if len(roots) == 0 {
		s, err := m.Settings(ctx)
		if err != nil {
			return discovery.Result{}, err
		}
		roots = s.LastSearchPaths
	}
	res, walkErr := discovery.FindConfigs(ctx, roots, opts)
	if walkErr != nil && ctx.Err() != nil {
		return res, walkErr
	}
	if walkErr != nil {
		m.log.Debug("search skipped directories", "error", walkErr)
	}
	err := m.do(ctx, func() error {
		if len(roots) > 0 {
			m.settings.LastSearchPaths = roots
		}
		if len(res.Paths) > 0 {
			m.settings.LastConfigPath = res.Paths[0]
			m.log.Info("config files found", "count", len(res.Paths), "selected", res.Paths[0])
		} else {
			m.settings.LastConfigPath = ""
			m.log.Warn("no config files found", "roots", res.Roots)
		}
		m.saveSettings()
		return nil
	})
	return res, err
}

// Select makes path the config that backup, restore and patch act on.
func (m *Manager) Select(ctx context.Context, path string) error {
	return m.do(ctx, func() error {
		if _, err := os.Stat(path); err != nil {
			return backup.WrapIOError("select", path, err)
		}
		m.settings.LastConfigPath = path
		m.log.Info("config selected", "path", path)
		m.saveSettings()
		return nil
	})
}

// Backup copies the selected config to the backup file. A non-empty path
// is selected first.
func (m *Manager) Backup(ctx context.Context, path string) (string, error) {
	err := m.do(ctx, func() error {
		src := path
		if src == "" {
			src = m.settings.LastConfigPath
		}
		if src == "" {
			return ErrNoConfigSelected
		}
		if err := backup.Backup(src, m.paths.BackupFile); err != nil {
			metrics.IncBackup(metrics.ResultError)
			m.log.Error("backup failed", "path", src, "error", err)
			return err
		}
		metrics.IncBackup(metrics.ResultOK)
		m.settings.LastConfigPath = src
		m.saveSettings()
		m.log.Info("config backed up", "path", src, "backup", m.paths.BackupFile)
		m.record(history.EventBackup, history.Record{ConfigPath: src, Detail: m.paths.BackupFile})
		return nil
	})
	return m.paths.BackupFile, err
}

// Presets lists the available presets.
func (m *Manager) Presets() ([]preset.Preset, error) {
	return preset.Catalog{Dir: m.paths.PresetDir}.List()
}

// ApplyPreset overwrites the selected config with a preset. A backup must
// exist so the original settings can be restored later.
func (m *Manager) ApplyPreset(ctx context.Context, name string) (preset.Preset, error) {
	var out preset.Preset
	err := m.do(ctx, func() error {
		target := m.settings.LastConfigPath
		if target == "" {
			return ErrNoConfigSelected
		}
		if !backup.Exists(m.paths.BackupFile) {
			return ErrNoBackup
		}
		p, err := preset.Catalog{Dir: m.paths.PresetDir}.Apply(name, target, false)
		out = p
		if err != nil {
			m.log.Error("apply preset failed", "preset", name, "error", err)
			return err
		}
		metrics.IncPresetApplied(p.Name)
		m.log.Info("preset applied", "preset", p.Name, "path", target)
		m.record(history.EventPresetApplied, history.Record{ConfigPath: target, Detail: p.Name})
		return nil
	})
	return out, err
}

// Restore copies the backup over the selected config immediately.
func (m *Manager) Restore(ctx context.Context) (backup.Result, error) {
	var res backup.Result
	err := m.do(ctx, func() error {
		var err error
		res, err = m.restoreNow()
		m.noteRestore(res, err)
		return err
	})
	return res, err
}

// PatchAction selects what Patch does.
type PatchAction string

const (
	PatchApply  PatchAction = "apply"
	PatchRemove PatchAction = "remove"
	PatchStatus PatchAction = "status"
)

// PatchResult reports a Patch call.
type PatchResult struct {
	Action  PatchAction     `json:"action"`
	Path    string          `json:"path"`
	Changed bool            `json:"changed"`
	Outcome string          `json:"outcome,omitempty"`
	Status  inipatch.Status `json:"status"`
}

// Patch applies, removes or inspects the anti-aliasing override in the
// selected config. A read-only config is unlocked for the write and locked
// again afterwards.
func (m *Manager) Patch(ctx context.Context, action PatchAction) (PatchResult, error) {
	res := PatchResult{Action: action}
	err := m.do(ctx, func() error {
		target := m.settings.LastConfigPath
		if target == "" {
			return ErrNoConfigSelected
		}
		res.Path = target
		if action == PatchStatus {
			st, err := inipatch.StatusFile(target)
			res.Status = st
			return err
		}
		if action != PatchApply && action != PatchRemove {
			return fmt.Errorf("%w: %q", ErrUnknownPatchAction, action)
		}
		locked, err := backup.IsReadOnly(target)
		if err != nil {
			return err
		}
		if locked {
			if err := backup.EnsureWritable(target); err != nil {
				return err
			}
			defer func() {
				if err := backup.EnsureReadOnly(target); err != nil {
					m.log.Warn("relock config failed", "path", target, "error", err)
				}
			}()
		}
		switch action {
		case PatchApply:
			o, err := inipatch.ApplyFile(target)
			if err != nil {
				return err
			}
			res.Outcome = o.String()
			res.Changed = o != inipatch.Unchanged
		case PatchRemove:
			removed, err := inipatch.RemoveFile(target)
			if err != nil {
				return err
			}
			res.Changed = removed
		}
		st, err := inipatch.StatusFile(target)
		res.Status = st
		m.log.Info("anti-aliasing patch", "action", string(action), "path", target, "changed", res.Changed, "status", string(st))
		return err
	})
	return res, err
}

// StartMonitor begins a monitoring session for exePath, or for the
// configured or discovered executable when exePath is empty.
func (m *Manager) StartMonitor(ctx context.Context, exePath string) (string, error) {
	target, _, err := m.StartSession(ctx, exePath)
	return target, err
}

// StartSession is StartMonitor that also returns a channel reporting how
// the session ended: a *monitor.MonitorError when the poll loop failed,
// nil when it was stopped or the manager closed.
func (m *Manager) StartSession(ctx context.Context, exePath string) (string, <-chan error, error) {
	if exePath == "" {
		exePath = m.cfg.ExePath
	}
	if exePath == "" {
		s, err := m.Settings(ctx)
		if err != nil {
			return "", nil, err
		}
		roots := s.LastGameSearchPaths
		if len(roots) == 0 {
			roots = discovery.DefaultRoots
		}
		p, ok := discovery.FindExecutable(ctx, roots)
		if !ok {
			m.log.Error("game executable not found", "roots", roots)
			return "", nil, ErrExecutableNotFound
		}
		exePath = p
	}
	var ended <-chan error
	err := m.do(ctx, func() error {
		if m.sess != nil {
			return ErrMonitorRunning
		}
		if m.settings.LastConfigPath == "" {
			return ErrNoConfigSelected
		}
		if !backup.Exists(m.paths.BackupFile) {
			return ErrNoBackup
		}
		probe, err := m.cfg.NewDetector(exePath)
		if err != nil {
			return fmt.Errorf("build detector: %w", err)
		}
		mon := monitor.New(probe, monitor.Config{Interval: m.cfg.Interval})
		sess := &session{mon: mon, events: mon.Start(m.ctx), target: exePath, ended: make(chan error, 1)}
		m.sess, ended = sess, sess.ended
		metrics.SetMonitorRunning(true)
		m.saveSettings()
		m.log.Info("monitor started", "target", exePath, "probe", mon.Describe(), "interval", mon.Interval())
		return nil
	})
	if err != nil {
		return exePath, nil, err
	}
	return exePath, ended, nil
}

// StopMonitor ends the session and cancels a pending restore. It is a no-op
// when nothing is being monitored.
func (m *Manager) StopMonitor(ctx context.Context) error {
	return m.do(ctx, func() error {
		if m.sess != nil {
			m.stopSession(nil)
			m.log.Info("monitor stopped")
		}
		return nil
	})
}

// Status returns a snapshot of the controller state.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	var st Status
	err := m.do(ctx, func() error {
		st = Status{
			ConfigPath:          m.settings.LastConfigPath,
			BackupPath:          m.paths.BackupFile,
			BackupExists:        backup.Exists(m.paths.BackupFile),
			Monitoring:          m.sess != nil,
			Running:             m.running,
			PID:                 m.pid,
			LastRestoreResult:   m.lastResult,
			RestoreDelaySeconds: m.settings.RestoreDelaySeconds,
		}
		if m.sess != nil {
			st.Target = m.sess.target
		}
		if h := m.sched.Pending(); h != nil {
			due := h.Due()
			st.PendingRestoreAt = &due
		}
		if !m.lastRestore.IsZero() {
			t := m.lastRestore
			st.LastRestoreAt = &t
		}
		return nil
	})
	return st, err
}

// record sends a history event best-effort.
func (m *Manager) record(t history.EventType, rec history.Record) {
	if m.cfg.History == nil {
		return
	}
	if rec.Target == "" && m.sess != nil {
		rec.Target = m.sess.target
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	evt := history.Event{Type: t, OccurredAt: time.Now().UTC(), Record: rec}
	if err := m.cfg.History.Send(ctx, evt); err != nil {
		m.log.Warn("history send failed", "type", string(t), "error", err)
	}
}

func (m *Manager) notify(title, message string) {
	m.cfg.Notifier.Dispatch(title, message)
}
