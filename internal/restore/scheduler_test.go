package restore

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestClampDelay(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 8: 8, 120: 120, 121: 120, 9999: 120}
	for in, want := range cases {
		if got := ClampDelay(in); got != want {
			t.Fatalf("ClampDelay(%d)=%d want %d", in, got, want)
		}
	}
	if DelayDuration(3) != 3*time.Second {
		t.Fatalf("unexpected DelayDuration")
	}
}

func TestCancelBeforeFireNeverFires(t *testing.T) {
	var fired atomic.Int32
	s := NewScheduler(func(*Handle) { fired.Add(1) }, nil)
	h := s.Schedule(30 * time.Millisecond)
	if !s.Cancel() {
		t.Fatalf("expected pending handle to be cancelled")
	}
	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("cancelled handle fired")
	}
	if h.State() != StateCancelled {
		t.Fatalf("expected cancelled state, got %v", h.State())
	}
	if s.Pending() != nil {
		t.Fatalf("expected no pending handle")
	}
}

func TestRescheduleReplacesPendingHandle(t *testing.T) {
	var fired atomic.Int32
	var lastID atomic.Uint64
	s := NewScheduler(func(h *Handle) {
		fired.Add(1)
		lastID.Store(h.ID())
	}, nil)
	first := s.Schedule(40 * time.Millisecond)
	second := s.Schedule(40 * time.Millisecond)
	if first.State() != StateCancelled {
		t.Fatalf("first handle must be superseded, got %v", first.State())
	}
	if s.Pending() != second {
		t.Fatalf("expected second handle to own the slot")
	}
	time.Sleep(120 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("expected exactly one fire, got %d", fired.Load())
	}
	if lastID.Load() != second.ID() {
		t.Fatalf("expected second handle to fire")
	}
	if second.State() != StateFired {
		t.Fatalf("expected fired state, got %v", second.State())
	}
}

func TestFiringHandleCannotBeCancelled(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var h *Handle
	s := NewScheduler(func(*Handle) {
		close(entered)
		<-release
	}, nil)
	h = s.Schedule(0)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatalf("handle did not fire")
	}
	if h.Cancel() {
		t.Fatalf("cancel must fail once firing has begun")
	}
	if s.Cancel() {
		t.Fatalf("scheduler must not report a cancel for a firing handle")
	}
	close(release)
}

func TestPostRunsFireOnOwnerContext(t *testing.T) {
	posts := make(chan func(), 1)
	var fired atomic.Int32
	s := NewScheduler(func(*Handle) { fired.Add(1) }, func(fn func()) { posts <- fn })
	s.Schedule(0)

	var fn func()
	select {
	case fn = <-posts:
	case <-time.After(time.Second):
		t.Fatalf("fire was not posted")
	}
	if fired.Load() != 0 {
		t.Fatalf("fire must not run before the owner executes the post")
	}
	fn()
	if fired.Load() != 1 {
		t.Fatalf("expected fire after running the post")
	}
}

func TestCancelBetweenPostAndRun(t *testing.T) {
	posts := make(chan func(), 1)
	var fired atomic.Int32
	s := NewScheduler(func(*Handle) { fired.Add(1) }, func(fn func()) { posts <- fn })
	s.Schedule(0)
	fn := <-posts
	// The owner processes a stop edge before the queued fire.
	if !s.Cancel() {
		t.Fatalf("expected cancel to win while the fire is only queued")
	}
	fn()
	if fired.Load() != 0 {
		t.Fatalf("cancelled handle fired")
	}
}

func TestCancelWithoutHandle(t *testing.T) {
	s := NewScheduler(nil, nil)
	if s.Cancel() || s.Cancel() {
		t.Fatalf("cancel on empty scheduler must report false")
	}
}
