// Package notify delivers best-effort user notifications. Delivery
// failures are logged and never reach the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 5 * time.Second

// Notifier delivers one notification.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, title, message string) error

func (f Func) Notify(ctx context.Context, title, message string) error { return f(ctx, title, message) }

// Log writes notifications to a slog.Logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(_ context.Context, title, message string) error {
	lg := l.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg.Info("notification", "title", title, "message", message)
	return nil
}

// Dispatcher fans a notification out to every notifier, each on its own
// goroutine with a timeout.
type Dispatcher struct {
	log       *slog.Logger
	timeout   time.Duration
	notifiers []Notifier

	wg sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{log: log, timeout: timeout, notifiers: notifiers}
}

// Dispatch returns immediately. A nil Dispatcher drops the notification.
func (d *Dispatcher) Dispatch(title, message string) {
	if d == nil {
		return
	}
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go func(n Notifier) {
			defer d.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.log.Debug("notifier panicked", "panic", r)
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := n.Notify(ctx, title, message); err != nil {
				d.log.Debug("notification failed", "title", title, "error", err)
			}
		}(n)
	}
}

// Len reports the number of notifiers.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.notifiers)
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}
