// Package activity tracks when an operator last interacted with a console so
// background refreshes can wait until they are idle.
package activity

import (
	"sync"
	"time"
)

type Tracker struct {
	mu    sync.Mutex
	last  time.Time
	quiet time.Duration
}

// NewTracker returns a tracker that reports idle once quiet has passed since
// the last Touch.
func NewTracker(quiet time.Duration) *Tracker {
	return &Tracker{quiet: quiet}
}

func (t *Tracker) Touch(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.After(t.last) {
		t.last = now
	}
}

// Idle is true before the first Touch.
func (t *Tracker) Idle(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last.IsZero() || now.Sub(t.last) >= t.quiet
}

func (t *Tracker) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last
}
