package history

import (
	"context"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
)

// EventType defines the kind of guard event.
type EventType string

const (
	EventStarted        EventType = "started"
	EventStopped        EventType = "stopped"
	EventRestored       EventType = "restored"
	EventRestoreSkipped EventType = "restore_skipped"
	EventRestoreFailed  EventType = "restore_failed"
	EventBackup         EventType = "backup"
	EventPresetApplied  EventType = "preset_applied"
	EventMonitorError   EventType = "monitor_error"
)

// Record carries the details of an event.
type Record struct {
	Target     string `json:"target"`
	PID        int32  `json:"pid,omitempty"`
	ConfigPath string `json:"config_path,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Event represents a guard event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Multi sends each event to every sink and joins their errors.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) error {
	var errs *multierror.Error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Close closes every sink that implements io.Closer.
func (m Multi) Close() error {
	var errs *multierror.Error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	return errs.ErrorOrNil()
}
