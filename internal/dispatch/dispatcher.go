package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/ordergate/internal/audit"
	"github.com/mattjoyce/ordergate/internal/events"
	"github.com/mattjoyce/ordergate/internal/log"
	"github.com/mattjoyce/ordergate/internal/order"
	"github.com/mattjoyce/ordergate/internal/queue"
	"github.com/mattjoyce/ordergate/internal/venue"
)

// QueueSource is the part of the queue registry the dispatcher needs.
type QueueSource interface {
	Has(name string) bool
	Take(name string) (*queue.Queue, error)
}

// Turnstile spaces venue calls.
type Turnstile interface {
	AwaitTurn(ctx context.Context) (time.Time, error)
}

// FailureRecorder files records that the venue rejected.
type FailureRecorder interface {
	Record(queue string, rec *order.Record)
}

// RunRecorder persists finished runs. Optional.
type RunRecorder interface {
	RecordRun(ctx context.Context, res RunResult) error
}

type Options struct {
	LogDir  string
	Hub     *events.Hub
	History RunRecorder
}

// Dispatcher is the single-flight executor for queue drains.
type Dispatcher struct {
	queues   QueueSource
	venue    venue.Client
	throttle Turnstile
	failures FailureRecorder
	logDir   string
	hub      *events.Hub
	history  RunRecorder
	logger   *slog.Logger

	mu      sync.Mutex
	active  bool
	current *RunResult
	last    *RunResult
	idle    chan struct{}
}

func New(queues QueueSource, client venue.Client, throttle Turnstile, failures FailureRecorder, opts Options) *Dispatcher {
	idle := make(chan struct{})
	close(idle)
	return &Dispatcher{
		queues:   queues,
		venue:    client,
		throttle: throttle,
		failures: failures,
		logDir:   opts.LogDir,
		hub:      opts.Hub,
		history:  opts.History,
		logger:   log.WithComponent("dispatch"),
		idle:     idle,
	}
}

// RequestDispatch starts draining the named queue in the background and
// returns the run id. The queue leaves the registry before this returns.
func (d *Dispatcher) RequestDispatch(name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.queues.Has(name) {
		return "", fmt.Errorf("dispatch %q: %w", name, ErrNoSuchQueue)
	}
	if d.active {
		return "", fmt.Errorf("dispatch %q: %w", name, ErrAlreadyDispatching)
	}
	q, err := d.queues.Take(name)
	if err != nil {
		return "", fmt.Errorf("dispatch %q: %w", name, ErrNoSuchQueue)
	}

	run := &RunResult{
		RunID:  uuid.NewString(),
		Queue:  q.Name,
		Orders: q.Len(),
	}
	d.active = true
	d.current = run
	d.idle = make(chan struct{})

	go d.drain(*run, q)
	return run.RunID, nil
}

// Active reports whether a drain is in flight.
func (d *Dispatcher) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{Active: d.active}
	if d.current != nil {
		cur := *d.current
		st.Current = &cur
	}
	if d.last != nil {
		last := *d.last
		st.Last = &last
	}
	return st
}

// LastRun returns the most recently finished run, or nil.
func (d *Dispatcher) LastRun() *RunResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	last := *d.last
	return &last
}

// Wait blocks until the current drain has finished and its run has been
// published and recorded, or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) drain(res RunResult, q *queue.Queue) {
	// Drains are not cancellable; the venue and throttle still take a context.
	ctx := context.Background()
	logger := log.WithRun(res.Queue, res.RunID)
	res.StartedAt = time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("panic: %v", r)
			logger.Error("dispatch run panicked", "panic", r)
		}
		res.FinishedAt = time.Now()
		d.finish(ctx, logger, res)
	}()

	sink, err := audit.Open(d.logDir, res.Queue, res.StartedAt)
	if err != nil {
		res.Error = err.Error()
		logger.Error("dispatch run aborted", "error", err, "log_dir", d.logDir)
		return
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("close audit log", "error", err)
		}
	}()
	res.LogPath = sink.Path()

	d.hub.Publish(events.DispatchStarted, events.RunPayload{
		RunID:     res.RunID,
		Queue:     res.Queue,
		Orders:    res.Orders,
		StartedAt: res.StartedAt,
		LogPath:   res.LogPath,
	})
	logger.Info("dispatch run started", "orders", res.Orders, "log_path", res.LogPath)

	if err := sink.Start(res.RunID, res.Queue, res.StartedAt); err != nil {
		logger.Warn("write audit log", "error", err)
	}

	for rec := q.Pop(); rec != nil; rec = q.Pop() {
		if st := rec.Status(); st != order.StatusPending {
			logger.Warn("order skipped", "order", rec.Ref().String(), "status", st)
			res.Skipped++
			d.setProgress(res)
			continue
		}
		if d.submit(ctx, logger, sink, &res, rec) {
			res.Sent++
		} else {
			res.Failed++
		}
		d.setProgress(res)
	}

	if err := sink.End(time.Now(), res.Sent, res.Failed); err != nil {
		logger.Warn("write audit log", "error", err)
	}
}

// submit sends one record and reports whether the venue accepted it.
func (d *Dispatcher) submit(ctx context.Context, logger *slog.Logger, sink *audit.Sink, res *RunResult, rec *order.Record) bool {
	if _, err := d.throttle.AwaitTurn(ctx); err != nil {
		// Only reachable if the background context is ever cancelled.
		return d.fail(logger, sink, res, rec, fmt.Errorf("await turn: %w", err))
	}

	conf, err := d.venue.Submit(ctx, venue.Order{
		ClientOrderID: uuid.NewString(),
		Symbol:        rec.Symbol,
		Quantity:      rec.Quantity,
		Side:          rec.Side,
	})
	if err != nil {
		return d.fail(logger, sink, res, rec, err)
	}

	elapsed := time.Since(res.StartedAt)
	rec.MarkSent()
	if err := sink.Sent(rec.View(), elapsed, conf); err != nil {
		logger.Warn("write audit log", "error", err)
	}
	logger.Info("order sent",
		"order", rec.Ref().String(),
		"venue_id", conf.ID,
		"status", conf.Status,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	d.hub.Publish(events.OrderSent, events.OrderPayload{
		RunID:     res.RunID,
		Queue:     res.Queue,
		Symbol:    rec.Symbol,
		ID:        rec.ID,
		Side:      string(rec.Side),
		Quantity:  rec.Quantity,
		ElapsedMS: elapsed.Milliseconds(),
		VenueID:   conf.ID,
	})
	return true
}

func (d *Dispatcher) fail(logger *slog.Logger, sink *audit.Sink, res *RunResult, rec *order.Record, fault error) bool {
	reason := fault.Error()
	if rec.MarkFailed(reason) {
		d.failures.Record(res.Queue, rec)
	}
	if err := sink.Failed(rec.View(), fault); err != nil {
		logger.Warn("write audit log", "error", err)
	}
	logger.Warn("order failed", "order", rec.Ref().String(), "error", reason)
	d.hub.Publish(events.OrderFailed, events.OrderPayload{
		RunID:    res.RunID,
		Queue:    res.Queue,
		Symbol:   rec.Symbol,
		ID:       rec.ID,
		Side:     string(rec.Side),
		Quantity: rec.Quantity,
		Reason:   reason,
	})
	return false
}

func (d *Dispatcher) setProgress(res RunResult) {
	d.mu.Lock()
	if d.current != nil && d.current.RunID == res.RunID {
		cur := res
		d.current = &cur
	}
	d.mu.Unlock()
}

// finish clears the active flag first so nothing after it can wedge the gate.
func (d *Dispatcher) finish(ctx context.Context, logger *slog.Logger, res RunResult) {
	d.mu.Lock()
	d.active = false
	d.current = nil
	last := res
	d.last = &last
	idle := d.idle
	d.mu.Unlock()
	// Waiters are released once the run is published and recorded.
	defer close(idle)

	payload := events.RunPayload{
		RunID:     res.RunID,
		Queue:     res.Queue,
		Orders:    res.Orders,
		Sent:      res.Sent,
		Failed:    res.Failed,
		StartedAt: res.StartedAt,
		LogPath:   res.LogPath,
		Error:     res.Error,
	}
	if res.Aborted() {
		d.hub.Publish(events.DispatchAborted, payload)
	} else {
		d.hub.Publish(events.DispatchCompleted, payload)
		logger.Info("dispatch run completed",
			"sent", res.Sent,
			"failed", res.Failed,
			"duration_ms", res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
		)
	}

	if d.history != nil {
		if err := d.history.RecordRun(ctx, res); err != nil {
			logger.Warn("record dispatch run", "error", err)
		}
	}
}
