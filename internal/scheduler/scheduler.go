package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/mattjoyce/ordergate/internal/config"
	"github.com/mattjoyce/ordergate/internal/dispatch"
	"github.com/mattjoyce/ordergate/internal/events"
	"github.com/mattjoyce/ordergate/internal/queue"
)

const DefaultTickInterval = time.Second

// Skip reasons published with schedule.skipped.
const (
	SkipQueueNotFound  = "queue_not_found"
	SkipQueueEmpty     = "queue_empty"
	SkipDispatchActive = "dispatch_active"
)

// Scheduler fires each schedule when its next time passes. A schedule that
// cannot fire is skipped until its following slot; missed slots are not
// replayed.
type Scheduler struct {
	desk   Desk
	events *events.Hub
	logger *slog.Logger
	tick   time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries []*entry
}

type entry struct {
	cfg    config.ScheduleConfig
	hour   int
	minute int
	next   time.Time
}

// Upcoming is a schedule and the next time it fires.
type Upcoming struct {
	Name  string    `json:"name"`
	Queue string    `json:"queue"`
	Next  time.Time `json:"next"`
}

// New builds a scheduler for already-validated schedules.
func New(schedules []config.ScheduleConfig, d Desk, hub *events.Hub, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		desk:   d,
		events: hub,
		logger: logger.With("component", "scheduler"),
		tick:   DefaultTickInterval,
		now:    time.Now,
	}
	for _, sc := range schedules {
		e := &entry{cfg: sc}
		if sc.At != "" {
			t, err := time.Parse("15:04", sc.At)
			if err != nil {
				return nil, fmt.Errorf("schedule %q: at %q must be HH:MM", sc.Name, sc.At)
			}
			e.hour, e.minute = t.Hour(), t.Minute()
		} else if sc.Every <= 0 {
			return nil, fmt.Errorf("schedule %q: every must be positive", sc.Name)
		}
		s.entries = append(s.entries, e)
	}
	s.prime(s.now())
	return s, nil
}

// Start runs the tick loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, u := range s.Upcoming() {
		s.logger.Info("schedule armed", "schedule", u.Name, "queue", u.Queue, "next", u.Next)
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runDue(s.now())
		}
	}
}

// Upcoming lists every schedule's next fire time, soonest first.
func (s *Scheduler) Upcoming() []Upcoming {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Upcoming, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Upcoming{Name: e.cfg.Name, Queue: e.cfg.Queue, Next: e.next})
	}
	slices.SortFunc(out, func(a, b Upcoming) int { return a.Next.Compare(b.Next) })
	return out
}

func (s *Scheduler) prime(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.next = e.nextAfter(now)
	}
}

// runDue fires every schedule whose time has come and re-arms it.
func (s *Scheduler) runDue(now time.Time) {
	type firing struct {
		cfg  config.ScheduleConfig
		next time.Time
	}
	s.mu.Lock()
	var due []firing
	for _, e := range s.entries {
		if !now.Before(e.next) {
			e.next = e.nextAfter(now)
			due = append(due, firing{cfg: e.cfg, next: e.next})
		}
	}
	s.mu.Unlock()

	for _, f := range due {
		s.fire(f.cfg, f.next)
	}
}

func (s *Scheduler) fire(sc config.ScheduleConfig, next time.Time) {
	payload := events.SchedulePayload{Schedule: sc.Name, Queue: sc.Queue, Next: next}

	views, err := s.desk.QueueContents(sc.Queue)
	switch {
	case errors.Is(err, queue.ErrNotFound):
		s.skip(payload, SkipQueueNotFound)
		return
	case err != nil:
		s.skip(payload, err.Error())
		return
	case len(views) == 0:
		s.skip(payload, SkipQueueEmpty)
		return
	}

	runID, err := s.desk.Dispatch(sc.Queue)
	switch {
	case errors.Is(err, dispatch.ErrAlreadyDispatching):
		s.skip(payload, SkipDispatchActive)
		return
	case errors.Is(err, dispatch.ErrNoSuchQueue):
		s.skip(payload, SkipQueueNotFound)
		return
	case err != nil:
		s.skip(payload, err.Error())
		return
	}

	payload.RunID = runID
	s.events.Publish(events.ScheduleFired, payload)
	s.logger.Info("scheduled dispatch started", "schedule", sc.Name, "queue", sc.Queue, "orders", len(views), "run_id", runID, "next", next)
}

func (s *Scheduler) skip(payload events.SchedulePayload, reason string) {
	payload.Reason = reason
	s.events.Publish(events.ScheduleSkipped, payload)
	s.logger.Info("scheduled dispatch skipped", "schedule", payload.Schedule, "queue", payload.Queue, "reason", reason, "next", payload.Next)
}

// nextAfter returns the first fire time strictly after now.
func (e *entry) nextAfter(now time.Time) time.Time {
	if e.cfg.At == "" {
		return now.Add(calculateJitteredInterval(e.cfg.Every, e.cfg.Jitter))
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), e.hour, e.minute, 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t.Add(calculateJitteredInterval(0, e.cfg.Jitter))
}

// calculateJitteredInterval adds a random jitter in [0, jitter) to the base
// interval.
func calculateJitteredInterval(baseInterval, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return baseInterval
	}
	return baseInterval + rand.N(jitter)
}
