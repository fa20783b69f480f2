package progress

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// LockError reports why Limiter.Lock skipped running its function.
type LockError int

const (
	// ErrTooSoon means the subject was notified within the last interval.
	ErrTooSoon LockError = iota
	// ErrBusy means a notification for the subject is already in flight.
	ErrBusy
)

func (e LockError) Error() string {
	switch e {
	case ErrTooSoon:
		return "a prior notification was sent recently"
	case ErrBusy:
		return "a prior notification is currently being sent"
	default:
		return "subject limiter: unknown error"
	}
}

type subjectState struct {
	sem      *semaphore.Weighted
	lastSent time.Time
}

// Limiter rate-limits per-subject notifications to at most once per
// interval, and serializes concurrent attempts for the same subject so
// at most one send is in flight at a time. Grounded on
// original_source/src/limiter.rs's SubjectLimiter: a semaphore(1) plus a
// last-sent timestamp per subject, guarded by a mutex that is never held
// while the wrapped function runs.
type Limiter struct {
	mu       sync.Mutex
	subjects map[string]*subjectState
	interval time.Duration
}

// NewLimiter constructs a Limiter allowing at most one notification per
// subject per interval.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{subjects: make(map[string]*subjectState), interval: interval}
}

func (l *Limiter) stateFor(subject string) *subjectState {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.subjects[subject]
	if !ok {
		state = &subjectState{sem: semaphore.NewWeighted(1), lastSent: time.Now().Add(-l.interval)}
		l.subjects[subject] = state
	}
	return state
}

// Lock runs fn for subject if it has not run within the last interval and
// is not already running, returning fn's error. If skipped, it returns
// ErrTooSoon or ErrBusy and does not call fn.
func (l *Limiter) Lock(subject string, fn func() error) error {
	state := l.stateFor(subject)

	l.mu.Lock()
	tooSoon := time.Since(state.lastSent) < l.interval
	l.mu.Unlock()
	if tooSoon {
		return ErrTooSoon
	}

	if !state.sem.TryAcquire(1) {
		return ErrBusy
	}
	defer state.sem.Release(1)

	err := fn()

	l.mu.Lock()
	state.lastSent = time.Now()
	l.mu.Unlock()

	return err
}

// Forget blocks until any in-flight Lock call for subject completes, then
// removes the subject's state entirely so the next Lock call treats it as
// fresh.
func (l *Limiter) Forget(subject string) {
	l.mu.Lock()
	state, ok := l.subjects[subject]
	l.mu.Unlock()
	if !ok {
		return
	}

	if err := state.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer state.sem.Release(1)

	l.mu.Lock()
	delete(l.subjects, subject)
	l.mu.Unlock()
}
