package ledger

import (
	"slices"
	"sync"

	"github.com/mattjoyce/ordergate/internal/order"
)

type Ledger struct {
	mu      sync.RWMutex
	entries map[string][]*order.Record
}

func New() *Ledger {
	return &Ledger{entries: make(map[string][]*order.Record)}
}

// Record appends rec under queue, creating the sequence on first use.
func (l *Ledger) Record(queue string, rec *order.Record) {
	if rec == nil {
		return
	}
	l.mu.Lock()
	l.entries[queue] = append(l.entries[queue], rec)
	l.mu.Unlock()
}

// List returns views of the failed records for queue, oldest first. Listing
// never clears.
func (l *Ledger) List(queue string) []order.View {
	l.mu.RLock()
	recs := slices.Clone(l.entries[queue])
	l.mu.RUnlock()

	out := make([]order.View, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.View())
	}
	return out
}

// Names returns the queue names that have at least one failure.
func (l *Ledger) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Count is the total number of failures across all queues.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, recs := range l.entries {
		n += len(recs)
	}
	return n
}

// Clear drops the failures for queue and reports how many there were.
func (l *Ledger) Clear(queue string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries[queue])
	delete(l.entries, queue)
	return n
}

// Snapshot is the serializable form of the ledger.
type Snapshot map[string][]order.View

func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	l.mu.RUnlock()

	out := make(Snapshot, len(names))
	for _, name := range names {
		out[name] = l.List(name)
	}
	return out
}

// Restore replaces the ledger contents, resolving each view to a record.
func (l *Ledger) Restore(snap Snapshot, resolve func(order.View) (*order.Record, error)) error {
	entries := make(map[string][]*order.Record, len(snap))
	for name, views := range snap {
		for _, v := range views {
			rec, err := resolve(v)
			if err != nil {
				return err
			}
			entries[name] = append(entries[name], rec)
		}
	}
	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	return nil
}

func (l *Ledger) Replace(staged *Ledger) {
	staged.mu.RLock()
	entries := staged.entries
	staged.mu.RUnlock()

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
}
