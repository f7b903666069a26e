package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loykin/iniguard/internal/detector"
	"github.com/loykin/iniguard/internal/metrics"
)

// DefaultInterval is the poll period used when Config.Interval is unset.
const DefaultInterval = 3 * time.Second

// EventType tags an Event.
type EventType int

const (
	EventStarted EventType = iota
	EventStopped
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted on every presence edge and once on a fatal poll failure.
type Event struct {
	Type  EventType
	At    time.Time
	Match *detector.Match // set on EventStarted when the probe can report it
	Err   error           // *MonitorError on EventError
}

// MonitorError is an unexpected failure inside the poll loop. It ends the
// monitoring session; the monitor never restarts itself.
type MonitorError struct {
	Err error
}

func (e *MonitorError) Error() string { return "monitor: " + e.Err.Error() }
func (e *MonitorError) Unwrap() error { return e.Err }

// Config controls polling.
type Config struct {
	Interval time.Duration
}

// scanner is implemented by detectors that can report the matching process.
type scanner interface {
	Scan() (detector.ScanResult, error)
}

// Monitor polls a Detector and reports ABSENT/PRESENT transitions.
// A Monitor runs at most once; create a new one per session.
type Monitor struct {
	probe    detector.Detector
	interval time.Duration

	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// New creates a Monitor for probe.
func New(probe detector.Detector, cfg Config) *Monitor {
	iv := cfg.Interval
	if iv <= 0 {
		iv = DefaultInterval
	}
	return &Monitor{
		probe:    probe,
		interval: iv,
		events:   make(chan Event),
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop and returns the event channel. The channel is
// unbuffered and closed when the loop exits. Calling Start again returns the
// same channel without starting a second loop.
func (m *Monitor) Start(ctx context.Context) <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return m.events
	}
	m.started = true
	cctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.run(cctx)
	return m.events
}

// Stop requests the loop to exit. It is idempotent and safe to call on a
// monitor that was never started.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	started := m.started
	if !started {
		// Mark as finished so Done does not block forever.
		m.started = true
		close(m.done)
		close(m.events)
	}
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed once the poll loop has exited.
func (m *Monitor) Done() <-chan struct{} { return m.done }

// Interval returns the effective poll period.
func (m *Monitor) Interval() time.Duration { return m.interval }

// Describe returns the probe description.
func (m *Monitor) Describe() string { return m.probe.Describe() }

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer close(m.events)

	lastRunning := false
	for {
		if ctx.Err() != nil {
			return
		}
		running, match, err := m.poll()
		if err != nil {
			m.emit(ctx, Event{Type: EventError, At: time.Now(), Err: &MonitorError{Err: err}})
			return
		}
		switch {
		case running && !lastRunning:
			if !m.emit(ctx, Event{Type: EventStarted, At: time.Now(), Match: match}) {
				return
			}
		case !running && lastRunning:
			if !m.emit(ctx, Event{Type: EventStopped, At: time.Now()}) {
				return
			}
		}
		lastRunning = running
		if !m.sleep(ctx) {
			return
		}
	}
}

// poll calls the probe once, turning a panic into an error.
func (m *Monitor) poll() (running bool, match *detector.Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			running, match, err = false, nil, fmt.Errorf("probe panic: %v", r)
		}
	}()
	start := time.Now()
	defer func() { metrics.ObserveProbe(time.Since(start).Seconds()) }()
	if sc, ok := m.probe.(scanner); ok {
		res, err := sc.Scan()
		if err != nil {
			return false, nil, err
		}
		return res.Match != nil, res.Match, nil
	}
	alive, err := m.probe.Alive()
	return alive, nil, err
}

func (m *Monitor) emit(ctx context.Context, ev Event) bool {
	select {
	case m.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// sleep waits one interval. It returns false when the context is cancelled,
// which interrupts the wait immediately.
func (m *Monitor) sleep(ctx context.Context) bool {
	t := time.NewTimer(m.interval)
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		t.Stop()
		return false
	}
}
