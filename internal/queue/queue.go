package queue

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/mattjoyce/ordergate/internal/order"
)

// Registry holds the named dispatch queues. One mutex guards the whole map;
// dispatch takes a queue out of the registry before draining it.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*Queue
}

func New() *Registry {
	return &Registry{queues: make(map[string]*Queue)}
}

// Create makes an empty queue. If name exists and overwrite is false nothing
// changes and Cancelled is returned.
func (r *Registry) Create(name string, overwrite bool) (CreateResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("create queue: %w", ErrInvalidName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.queues[name]
	if exists && !overwrite {
		return Cancelled, nil
	}
	r.queues[name] = &Queue{Name: name}
	if exists {
		return Replaced, nil
	}
	return Created, nil
}

// Enqueue appends rec to the tail of the named queue. Only pending records
// are accepted, and a record appears at most once per queue.
func (r *Registry) Enqueue(name string, rec *order.Record) error {
	if rec == nil {
		return fmt.Errorf("enqueue into %q: record is nil", name)
	}
	if st := rec.Status(); st != order.StatusPending {
		return fmt.Errorf("enqueue %s into %q: %w: status is %s", rec.Ref(), name, order.ErrInvalidOrder, st)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[name]
	if !ok {
		return fmt.Errorf("enqueue into %q: %w", name, ErrNotFound)
	}
	if slices.Contains(q.Orders, rec) {
		return fmt.Errorf("enqueue %s into %q: %w: already queued", rec.Ref(), name, order.ErrInvalidOrder)
	}
	q.Orders = append(q.Orders, rec)
	return nil
}

func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.queues[name]
	return ok
}

// Names returns the queue names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Contents returns read-only views of the named queue in FIFO order.
func (r *Registry) Contents(name string) ([]order.View, error) {
	r.mu.Lock()
	q, ok := r.queues[name]
	var recs []*order.Record
	if ok {
		recs = slices.Clone(q.Orders)
	}
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("queue %q: %w", name, ErrNotFound)
	}
	out := make([]order.View, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.View())
	}
	return out, nil
}

// Take removes the named queue from the registry and hands it to the caller.
func (r *Registry) Take(name string) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[name]
	if !ok {
		return nil, fmt.Errorf("take %q: %w", name, ErrNotFound)
	}
	delete(r.queues, name)
	return q, nil
}

// Remove deletes the named queue and reports how many records it held.
func (r *Registry) Remove(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[name]
	if !ok {
		return 0, fmt.Errorf("remove %q: %w", name, ErrNotFound)
	}
	delete(r.queues, name)
	return q.Len(), nil
}

// Depth is the total number of records waiting across all queues.
func (r *Registry) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, q := range r.queues {
		n += q.Len()
	}
	return n
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	queues := make(map[string][]*order.Record, len(r.queues))
	for name, q := range r.queues {
		queues[name] = slices.Clone(q.Orders)
	}
	r.mu.Unlock()

	out := make(Snapshot, len(queues))
	for name, recs := range queues {
		views := make([]order.View, 0, len(recs))
		for _, rec := range recs {
			views = append(views, rec.View())
		}
		out[name] = views
	}
	return out
}

// Restore replaces the registry contents with snap. resolve maps a persisted
// view back to a live record so queue entries share the order registry's
// pointer whenever the order is still there.
func (r *Registry) Restore(snap Snapshot, resolve func(order.View) (*order.Record, error)) error {
	queues := make(map[string]*Queue, len(snap))
	for name, views := range snap {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("restore queue: %w", ErrInvalidName)
		}
		q := &Queue{Name: name, Orders: make([]*order.Record, 0, len(views))}
		for _, v := range views {
			rec, err := resolve(v)
			if err != nil {
				return fmt.Errorf("restore queue %q: %w", name, err)
			}
			q.Orders = append(q.Orders, rec)
		}
		queues[name] = q
	}

	r.mu.Lock()
	r.queues = queues
	r.mu.Unlock()
	return nil
}

// Replace adopts the contents of staged, typically a registry built by Restore.
func (r *Registry) Replace(staged *Registry) {
	staged.mu.Lock()
	queues := staged.queues
	staged.mu.Unlock()

	r.mu.Lock()
	r.queues = queues
	r.mu.Unlock()
}
