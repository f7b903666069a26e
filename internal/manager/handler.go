package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/loykin/iniguard/internal/backup"
	"github.com/loykin/iniguard/internal/history"
	"github.com/loykin/iniguard/internal/metrics"
	"github.com/loykin/iniguard/internal/monitor"
	"github.com/loykin/iniguard/internal/restore"
)

// ctrlMsg is a control-plane message that runs fn on the controller.
type ctrlMsg struct {
	fn    func() error
	Reply chan error
}

// do runs fn on the controller goroutine and waits for its result.
func (m *Manager) do(ctx context.Context, fn func() error) error {
	msg := ctrlMsg{fn: fn, Reply: make(chan error, 1)}
	select {
	case m.ctrl <- msg:
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-msg.Reply
}

// post hands a scheduler callback to the controller. It drops the callback
// once the controller is shutting down.
func (m *Manager) post(fn func()) {
	select {
	case m.posts <- fn:
	case <-m.ctx.Done():
	}
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		var events <-chan monitor.Event
		if m.sess != nil {
			events = m.sess.events
		}
		select {
		case <-m.ctx.Done():
			m.stopSession(nil)
			return
		case msg := <-m.ctrl:
			msg.Reply <- m.safe(msg.fn)
		case fn := <-m.posts:
			_ = m.safe(func() error { fn(); return nil })
		case ev, ok := <-events:
			if !ok {
				// The loop exited on its own; clean up what it left behind.
				m.stopSession(nil)
				continue
			}
			m.handleEvent(ev)
		}
	}
}

// safe keeps a panicking operation from taking the controller down.
func (m *Manager) safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("controller operation panicked", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (m *Manager) handleEvent(ev monitor.Event) {
	switch ev.Type {
	case monitor.EventStarted:
		m.running = true
		m.pid = 0
		if ev.Match != nil {
			m.pid = ev.Match.PID
		}
		metrics.IncEdge("started")
		metrics.SetTargetPresent(true)
		delay := m.settings.RestoreDelaySeconds
		h := m.sched.Schedule(restore.DelayDuration(delay))
		metrics.SetPendingRestore(true)
		m.log.Info("game started", "pid", m.pid, "restore_in", restore.DelayDuration(delay), "handle", h.ID())
		m.record(history.EventStarted, history.Record{PID: m.pid, ConfigPath: m.settings.LastConfigPath})
		if delay > 0 {
			m.notify("Game started", fmt.Sprintf("Restoring local config in %d seconds.", delay))
		} else {
			m.notify("Game started", "Restoring local config now.")
		}
	case monitor.EventStopped:
		m.running = false
		pid := m.pid
		m.pid = 0
		metrics.IncEdge("stopped")
		metrics.SetTargetPresent(false)
		if m.sched.Cancel() {
			metrics.IncRestore(metrics.ResultCancelled)
			m.log.Info("pending restore cancelled")
		}
		metrics.SetPendingRestore(false)
		m.log.Info("game exited", "pid", pid)
		m.record(history.EventStopped, history.Record{PID: pid})
		m.notify("Game closed", "The game has exited.")
	case monitor.EventError:
		metrics.IncEdge("error")
		m.log.Error("monitor failed", "error", ev.Err)
		m.record(history.EventMonitorError, history.Record{Error: errString(ev.Err)})
		m.notify("Monitor error", errString(ev.Err))
		m.stopSession(ev.Err)
	}
}

// fire runs on the controller when a restore handle elapses. Presence is
// read at fire time.
func (m *Manager) fire(h *restore.Handle) {
	metrics.SetPendingRestore(false)
	if !m.running {
		m.lastRestore, m.lastResult = time.Now(), "skipped"
		metrics.IncRestore(metrics.ResultSkipped)
		m.log.Info("game no longer running, restore skipped", "handle", h.ID())
		m.record(history.EventRestoreSkipped, history.Record{Detail: "process not running"})
		return
	}
	res, err := m.restoreNow()
	m.noteRestore(res, err)
}

// restoreNow copies the backup over the selected config and locks it.
func (m *Manager) restoreNow() (backup.Result, error) {
	target := m.settings.LastConfigPath
	if target == "" {
		return backup.Result{}, ErrNoConfigSelected
	}
	if _, err := os.Stat(target); err != nil {
		return backup.Result{}, backup.WrapIOError("stat", target, err)
	}
	if !backup.Exists(m.paths.BackupFile) {
		return backup.Result{}, ErrNoBackup
	}
	return backup.Restore(m.paths.BackupFile, target)
}

func (m *Manager) noteRestore(res backup.Result, err error) {
	m.lastRestore = time.Now()
	target := m.settings.LastConfigPath
	rec := history.Record{PID: m.pid, ConfigPath: target}
	switch {
	case err == nil:
		m.lastResult = "restored"
		metrics.IncRestore(metrics.ResultOK)
		m.log.Info("backup restored and locked read-only", "path", target)
		m.record(history.EventRestored, rec)
		m.notify("Config restored", "The backup replaced the game config and was set read-only.")
	case errors.Is(err, ErrNoConfigSelected) || errors.Is(err, ErrNoBackup) || (errors.Is(err, fs.ErrNotExist) && !res.Copied):
		m.lastResult = "skipped"
		metrics.IncRestore(metrics.ResultSkipped)
		m.log.Warn("restore skipped", "path", target, "error", err)
		rec.Detail, rec.Error = "missing file", err.Error()
		m.record(history.EventRestoreSkipped, rec)
	default:
		m.lastResult = "failed"
		metrics.IncRestore(metrics.ResultError)
		m.log.Error("restore failed", "path", target, "copied", res.Copied, "read_only", res.ReadOnly, "error", err)
		rec.Error = err.Error()
		m.record(history.EventRestoreFailed, rec)
		m.notify("Restore failed", err.Error())
	}
}

// stopSession halts polling and cancels any pending restore. It waits for
// the poll loop to exit so no probe runs after it returns. cause is handed
// to whoever holds the session's ended channel.
func (m *Manager) stopSession(cause error) {
	if s := m.sess; s != nil {
		s.mon.Stop()
		<-s.mon.Done()
		m.sess = nil
		s.ended <- cause
		close(s.ended)
	}
	if m.sched.Cancel() {
		metrics.IncRestore(metrics.ResultCancelled)
	}
	m.running = false
	m.pid = 0
	metrics.SetMonitorRunning(false)
	metrics.SetTargetPresent(false)
	metrics.SetPendingRestore(false)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
