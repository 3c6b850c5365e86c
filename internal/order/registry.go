package order

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Registry owns every order record, keyed by symbol then id. Ids are issued
// per symbol, start at 1 and are never reused, even after removal.
type Registry struct {
	mu       sync.RWMutex
	bySymbol map[string]map[int]*Record
	lastID   map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		bySymbol: make(map[string]map[int]*Record),
		lastID:   make(map[string]int),
	}
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Create validates and stores a new pending record and returns its id.
// Ids are always registry-assigned, so overwrite never replaces an existing
// record; it is accepted so callers can pass their own intent through.
func (r *Registry) Create(symbol string, quantity int, side Side, overwrite bool) (int, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return 0, fmt.Errorf("%w: symbol is empty", ErrInvalidOrder)
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, quantity)
	}
	if !side.Valid() {
		return 0, fmt.Errorf("%w: side %q must be buy or sell", ErrInvalidOrder, side)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.lastID[sym] + 1
	r.lastID[sym] = id
	recs, ok := r.bySymbol[sym]
	if !ok {
		recs = make(map[int]*Record)
		r.bySymbol[sym] = recs
	}
	recs[id] = newRecord(id, sym, quantity, side)
	return id, nil
}

func (r *Registry) Remove(symbol string, id int) error {
	sym := NormalizeSymbol(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	recs, ok := r.bySymbol[sym]
	if !ok {
		return fmt.Errorf("remove %s#%d: %w", sym, id, ErrNotFound)
	}
	if _, ok := recs[id]; !ok {
		return fmt.Errorf("remove %s#%d: %w", sym, id, ErrNotFound)
	}
	delete(recs, id)
	if len(recs) == 0 {
		delete(r.bySymbol, sym)
	}
	return nil
}

func (r *Registry) Lookup(symbol string, id int) (*Record, error) {
	sym := NormalizeSymbol(symbol)

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.bySymbol[sym][id]
	if !ok {
		return nil, fmt.Errorf("lookup %s#%d: %w", sym, id, ErrNotFound)
	}
	return rec, nil
}

// Len returns the number of records currently held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, recs := range r.bySymbol {
		n += len(recs)
	}
	return n
}

// All yields a read-only view of every record, ordered by symbol then id.
// Each iteration takes a fresh snapshot, so the sequence can be ranged over
// repeatedly and never observes a half-applied mutation.
func (r *Registry) All() iter.Seq[View] {
	return func(yield func(View) bool) {
		for _, v := range r.views() {
			if !yield(v) {
				return
			}
		}
	}
}

func (r *Registry) views() []View {
	r.mu.RLock()
	recs := make([]*Record, 0, len(r.bySymbol))
	for _, bySym := range r.bySymbol {
		for _, rec := range bySym {
			recs = append(recs, rec)
		}
	}
	r.mu.RUnlock()

	out := make([]View, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.View())
	}
	slices.SortFunc(out, func(a, b View) int {
		return cmp.Or(cmp.Compare(a.Symbol, b.Symbol), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// RegistrySnapshot is the serializable form of a Registry.
type RegistrySnapshot struct {
	Orders []View         `json:"orders"`
	LastID map[string]int `json:"last_id"`
}

func (r *Registry) Snapshot() RegistrySnapshot {
	orders := r.views()
	r.mu.RLock()
	lastID := maps.Clone(r.lastID)
	r.mu.RUnlock()
	return RegistrySnapshot{Orders: orders, LastID: lastID}
}

// Restore replaces the registry contents with snap. The id counters never go
// below the highest restored id for a symbol.
func (r *Registry) Restore(snap RegistrySnapshot) error {
	bySymbol := make(map[string]map[int]*Record)
	lastID := make(map[string]int, len(snap.LastID))
	for sym, id := range snap.LastID {
		lastID[NormalizeSymbol(sym)] = id
	}
	for _, v := range snap.Orders {
		rec, err := FromView(v)
		if err != nil {
			return err
		}
		recs, ok := bySymbol[rec.Symbol]
		if !ok {
			recs = make(map[int]*Record)
			bySymbol[rec.Symbol] = recs
		}
		if _, dup := recs[rec.ID]; dup {
			return fmt.Errorf("restore %s: duplicate id", rec.Ref())
		}
		recs[rec.ID] = rec
		lastID[rec.Symbol] = max(lastID[rec.Symbol], rec.ID)
	}

	r.mu.Lock()
	r.bySymbol = bySymbol
	r.lastID = lastID
	r.mu.Unlock()
	return nil
}

// Replace adopts the records and id counters of staged.
func (r *Registry) Replace(staged *Registry) {
	staged.mu.RLock()
	bySymbol, lastID := staged.bySymbol, staged.lastID
	staged.mu.RUnlock()

	r.mu.Lock()
	r.bySymbol = bySymbol
	r.lastID = lastID
	r.mu.Unlock()
}

// FromView rebuilds a Record from a persisted view.
func FromView(v View) (*Record, error) {
	sym := NormalizeSymbol(v.Symbol)
	if sym == "" || v.ID <= 0 || v.Quantity <= 0 || !v.Side.Valid() {
		return nil, fmt.Errorf("%w: malformed persisted order %s#%d", ErrInvalidOrder, sym, v.ID)
	}
	rec := newRecord(v.ID, sym, v.Quantity, v.Side)
	switch v.Status {
	case StatusPending, "":
	case StatusSent, StatusFailed:
		rec.status = v.Status
		rec.failureReason = v.FailureReason
	default:
		return nil, fmt.Errorf("%w: unknown status %q for %s", ErrInvalidOrder, v.Status, rec.Ref())
	}
	return rec, nil
}
