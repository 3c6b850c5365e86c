package throttle

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the minimum spacing between two submissions.
const DefaultInterval = 350 * time.Millisecond

// Throttle spaces submissions at least interval apart. A single Throttle is
// shared by every dispatch run in the process.
type Throttle struct {
	interval time.Duration

	mu       sync.Mutex
	lastSend time.Time
}

func New(interval time.Duration) *Throttle {
	if interval < 0 {
		interval = 0
	}
	return &Throttle{interval: interval}
}

func (t *Throttle) Interval() time.Duration { return t.interval }

// AwaitTurn blocks until at least interval has elapsed since the previous
// submission, then records now as the last submission and returns it. The
// first call returns immediately. The lock is never held while sleeping.
func (t *Throttle) AwaitTurn(ctx context.Context) (time.Time, error) {
	for {
		t.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(t.lastSend)
		if t.lastSend.IsZero() || elapsed >= t.interval {
			t.lastSend = now
			t.mu.Unlock()
			return now, nil
		}
		wait := t.interval - elapsed
		t.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return time.Time{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// Last returns the most recent recorded submission, zero if none.
func (t *Throttle) Last() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSend
}
