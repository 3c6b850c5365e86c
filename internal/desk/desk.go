package desk

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/mattjoyce/ordergate/internal/dispatch"
	"github.com/mattjoyce/ordergate/internal/events"
	"github.com/mattjoyce/ordergate/internal/ledger"
	"github.com/mattjoyce/ordergate/internal/log"
	"github.com/mattjoyce/ordergate/internal/order"
	"github.com/mattjoyce/ordergate/internal/queue"
	"github.com/mattjoyce/ordergate/internal/state"
	"github.com/mattjoyce/ordergate/internal/throttle"
	"github.com/mattjoyce/ordergate/internal/venue"
)

// ErrDispatchActive is returned by Restore while a drain is in flight.
var ErrDispatchActive = errors.New("cannot restore while dispatching")

// Persister stores and loads desk snapshots.
type Persister interface {
	Save(ctx context.Context, snap state.Snapshot) error
	Load(ctx context.Context) (state.Snapshot, error)
}

type Options struct {
	MinInterval time.Duration
	LogDir      string
	Hub         *events.Hub
	// Store, when set, persists snapshots and records dispatch run history.
	Store *state.Store
}

type Desk struct {
	orders     *order.Registry
	queues     *queue.Registry
	failures   *ledger.Ledger
	throttle   *throttle.Throttle
	dispatcher *dispatch.Dispatcher
	hub        *events.Hub
	store      Persister
	logger     *slog.Logger
	started    time.Time

	// saveMu serializes snapshot writes.
	saveMu sync.Mutex
	// gate orders dispatch requests against Restore.
	gate sync.Mutex
}

func New(client venue.Client, opts Options) *Desk {
	d := &Desk{
		orders:   order.NewRegistry(),
		queues:   queue.New(),
		failures: ledger.New(),
		throttle: throttle.New(opts.MinInterval),
		hub:      opts.Hub,
		logger:   log.WithComponent("desk"),
		started:  time.Now(),
	}
	dopts := dispatch.Options{LogDir: opts.LogDir, Hub: opts.Hub}
	if opts.Store != nil {
		d.store = opts.Store
		dopts.History = opts.Store
	}
	d.dispatcher = dispatch.New(d.queues, client, d.throttle, d.failures, dopts)
	return d
}

func (d *Desk) Hub() *events.Hub { return d.hub }

// CreateOrder registers a new pending order and returns its id.
func (d *Desk) CreateOrder(symbol string, quantity int, side order.Side, overwrite bool) (int, error) {
	id, err := d.orders.Create(symbol, quantity, side, overwrite)
	if err != nil {
		return 0, err
	}
	sym := order.NormalizeSymbol(symbol)
	d.hub.Publish(events.OrderCreated, events.OrderPayload{Symbol: sym, ID: id, Side: string(side), Quantity: quantity})
	d.logger.Debug("order created", "order", order.Ref{Symbol: sym, ID: id}.String(), "side", side, "quantity", quantity)
	return id, nil
}

// RemoveOrder drops an order from the registry. Queues that already hold the
// order keep it and will still dispatch it.
func (d *Desk) RemoveOrder(symbol string, id int) error {
	if err := d.orders.Remove(symbol, id); err != nil {
		return err
	}
	d.hub.Publish(events.OrderRemoved, events.OrderPayload{Symbol: order.NormalizeSymbol(symbol), ID: id})
	return nil
}

func (d *Desk) Order(symbol string, id int) (order.View, error) {
	rec, err := d.orders.Lookup(symbol, id)
	if err != nil {
		return order.View{}, err
	}
	return rec.View(), nil
}

func (d *Desk) Orders() iter.Seq[order.View] { return d.orders.All() }

func (d *Desk) CreateQueue(name string, overwrite bool) (queue.CreateResult, error) {
	res, err := d.queues.Create(name, overwrite)
	if err != nil {
		return "", err
	}
	d.hub.Publish(events.QueueCreated, events.QueuePayload{Queue: name, Result: string(res)})
	return res, nil
}

// Enqueue appends the order (symbol, id) to the named queue.
func (d *Desk) Enqueue(queueName, symbol string, id int) error {
	rec, err := d.orders.Lookup(symbol, id)
	if err != nil {
		return err
	}
	return d.queues.Enqueue(queueName, rec)
}

func (d *Desk) QueueNames() []string { return d.queues.Names() }

func (d *Desk) QueueContents(name string) ([]order.View, error) { return d.queues.Contents(name) }

func (d *Desk) RemoveQueue(name string) (int, error) {
	n, err := d.queues.Remove(name)
	if err != nil {
		return 0, err
	}
	d.hub.Publish(events.QueueRemoved, events.QueuePayload{Queue: name, Count: n})
	return n, nil
}

// Dispatch starts draining the named queue and returns the run id.
func (d *Desk) Dispatch(name string) (string, error) {
	d.gate.Lock()
	defer d.gate.Unlock()
	return d.dispatcher.RequestDispatch(name)
}

func (d *Desk) Dispatching() bool { return d.dispatcher.Active() }

func (d *Desk) DispatchStatus() dispatch.Status { return d.dispatcher.Status() }

// Wait blocks until no drain is running.
func (d *Desk) Wait(ctx context.Context) error { return d.dispatcher.Wait(ctx) }

func (d *Desk) LastRun() *dispatch.RunResult { return d.dispatcher.LastRun() }

func (d *Desk) Failures(queueName string) []order.View { return d.failures.List(queueName) }

func (d *Desk) FailureQueues() []string { return d.failures.Names() }

func (d *Desk) ClearFailures(queueName string) int {
	n := d.failures.Clear(queueName)
	if n > 0 {
		d.hub.Publish(events.FailuresCleared, events.QueuePayload{Queue: queueName, Count: n})
	}
	return n
}

// Runs returns recent dispatch history, newest first. Without a store only
// the last run is known.
func (d *Desk) Runs(ctx context.Context, queueName string, limit int) ([]dispatch.RunResult, error) {
	if s, ok := d.store.(*state.Store); ok {
		return s.Runs(ctx, queueName, limit)
	}
	if last := d.LastRun(); last != nil && (queueName == "" || last.Queue == queueName) {
		return []dispatch.RunResult{*last}, nil
	}
	return nil, nil
}

// Status is a summary for health checks and the monitor header.
type Status struct {
	Uptime      time.Duration   `json:"uptime"`
	Orders      int             `json:"orders"`
	Queues      int             `json:"queues"`
	QueuedDepth int             `json:"queued_depth"`
	Failures    int             `json:"failures"`
	Dispatch    dispatch.Status `json:"dispatch"`
	MinInterval time.Duration   `json:"min_interval"`
	LastSubmit  *time.Time      `json:"last_submit,omitempty"`

	// EventsDropped counts events a slow stream client never received.
	EventsDropped int64 `json:"events_dropped,omitempty"`
}

func (d *Desk) Status() Status {
	st := Status{
		Uptime:      time.Since(d.started).Round(time.Second),
		Orders:      d.orders.Len(),
		Queues:      len(d.queues.Names()),
		QueuedDepth: d.queues.Depth(),
		Failures:    d.failures.Count(),
		Dispatch:    d.dispatcher.Status(),
		MinInterval: d.throttle.Interval(),
	}
	st.EventsDropped = d.hub.Dropped()
	if last := d.throttle.Last(); !last.IsZero() {
		st.LastSubmit = &last
	}
	return st
}

// Snapshot captures orders, queues and failures as plain data.
func (d *Desk) Snapshot() state.Snapshot {
	return state.Snapshot{
		Orders:   d.orders.Snapshot(),
		Queues:   d.queues.Snapshot(),
		Failures: d.failures.Snapshot(),
	}
}

// Restore replaces desk contents with snap. Queue and ledger entries are
// re-linked to restored order records where the order still exists. Nothing
// changes unless every part of snap restores cleanly.
func (d *Desk) Restore(snap state.Snapshot) error {
	d.gate.Lock()
	defer d.gate.Unlock()
	if d.dispatcher.Active() {
		return ErrDispatchActive
	}

	orders := order.NewRegistry()
	if err := orders.Restore(snap.Orders); err != nil {
		return fmt.Errorf("restore orders: %w", err)
	}
	resolve := func(v order.View) (*order.Record, error) {
		if rec, err := orders.Lookup(v.Symbol, v.ID); err == nil {
			return rec, nil
		}
		return order.FromView(v)
	}
	queues := queue.New()
	if err := queues.Restore(snap.Queues, resolve); err != nil {
		return fmt.Errorf("restore queues: %w", err)
	}
	failures := ledger.New()
	if err := failures.Restore(snap.Failures, resolve); err != nil {
		return fmt.Errorf("restore failures: %w", err)
	}

	d.orders.Replace(orders)
	d.queues.Replace(queues)
	d.failures.Replace(failures)
	return nil
}

// Save persists a snapshot if a store is configured.
func (d *Desk) Save(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	d.saveMu.Lock()
	defer d.saveMu.Unlock()
	if err := d.store.Save(ctx, d.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load restores the stored snapshot. A store without a snapshot is not an
// error.
func (d *Desk) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	snap, err := d.store.Load(ctx)
	if errors.Is(err, state.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := d.Restore(snap); err != nil {
		return err
	}
	d.logger.Info("snapshot restored", "orders", d.orders.Len(), "queues", len(d.queues.Names()), "failures", d.failures.Count())
	return nil
}

// RunSnapshots saves every interval until ctx is done, then saves once more.
func (d *Desk) RunSnapshots(ctx context.Context, interval time.Duration) error {
	if d.store == nil {
		<-ctx.Done()
		return nil
	}
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return d.Save(saveCtx)
		case <-tick:
			if err := d.Save(ctx); err != nil {
				d.logger.Warn("periodic snapshot failed", "error", err)
			}
		}
	}
}
