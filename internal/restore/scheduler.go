package restore

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultDelaySeconds is the restore delay used when none is configured.
	DefaultDelaySeconds = 8
	// MaxDelaySeconds caps the configurable restore delay.
	MaxDelaySeconds = 120
)

// ClampDelay bounds seconds to [0, MaxDelaySeconds].
func ClampDelay(seconds int) int {
	if seconds < 0 {
		return 0
	}
	if seconds > MaxDelaySeconds {
		return MaxDelaySeconds
	}
	return seconds
}

// DelayDuration converts a delay in seconds to a clamped duration.
func DelayDuration(seconds int) time.Duration {
	return time.Duration(ClampDelay(seconds)) * time.Second
}

// State is the lifecycle state of a Handle.
type State int32

const (
	StatePending State = iota
	StateCancelled
	StateFiring
	StateFired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCancelled:
		return "cancelled"
	case StateFiring:
		return "firing"
	case StateFired:
		return "fired"
	default:
		return "unknown"
	}
}

// Handle is one scheduled restore. Cancel and fire compete for the same
// pending state; whichever wins owns the handle.
type Handle struct {
	id    uint64
	due   time.Time
	state atomic.Int32
	timer *time.Timer
}

// ID identifies the handle within its scheduler.
func (h *Handle) ID() uint64 { return h.id }

// Due is the time the handle was scheduled to fire.
func (h *Handle) Due() time.Time { return h.due }

// State reports the current state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Cancel prevents the handle from firing. It returns false if the handle
// already fired, is firing, or was cancelled before.
func (h *Handle) Cancel() bool {
	if !h.state.CompareAndSwap(int32(StatePending), int32(StateCancelled)) {
		return false
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	return true
}

func (h *Handle) claim() bool {
	return h.state.CompareAndSwap(int32(StatePending), int32(StateFiring))
}

// Scheduler owns at most one pending Handle. Fire is invoked through Post,
// which lets the owner run it on its own execution context.
type Scheduler struct {
	fire func(*Handle)
	post func(func())

	mu   sync.Mutex
	slot *Handle
	seq  uint64
}

// NewScheduler creates a Scheduler. fire runs when a handle elapses and is
// still valid. post, if non-nil, marshals the fire callback onto the
// caller's context; otherwise fire runs on the timer goroutine.
func NewScheduler(fire func(*Handle), post func(func())) *Scheduler {
	return &Scheduler{fire: fire, post: post}
}

// Schedule cancels any pending handle and arms a new one after delay.
// Negative delays are treated as zero.
func (s *Scheduler) Schedule(delay time.Duration) *Handle {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot != nil {
		s.slot.Cancel()
	}
	s.seq++
	h := &Handle{id: s.seq, due: time.Now().Add(delay)}
	s.slot = h
	h.timer = time.AfterFunc(delay, func() { s.dispatch(h) })
	return h
}

// Cancel cancels the pending handle, if any. It reports whether a handle
// was cancelled.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	h := s.slot
	s.slot = nil
	s.mu.Unlock()
	if h == nil {
		return false
	}
	return h.Cancel()
}

// Pending returns the live pending handle, or nil.
func (s *Scheduler) Pending() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot != nil && s.slot.State() == StatePending {
		return s.slot
	}
	return nil
}

func (s *Scheduler) dispatch(h *Handle) {
	if s.post != nil {
		s.post(func() { s.run(h) })
		return
	}
	s.run(h)
}

func (s *Scheduler) run(h *Handle) {
	if !h.claim() {
		return
	}
	s.mu.Lock()
	if s.slot == h {
		s.slot = nil
	}
	s.mu.Unlock()
	defer h.state.Store(int32(StateFired))
	if s.fire != nil {
		s.fire(h)
	}
}
