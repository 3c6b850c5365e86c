package order

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrNotFound     = errors.New("order not found")
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	side := Side(strings.ToLower(strings.TrimSpace(s)))
	if !side.Valid() {
		return "", fmt.Errorf("%w: side %q must be buy or sell", ErrInvalidOrder, s)
	}
	return side, nil
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Record is a single order owned by the Registry. Queues and the failure
// ledger hold the same pointer, so outcomes written during dispatch are
// visible everywhere the record is referenced.
type Record struct {
	ID       int
	Symbol   string
	Quantity int
	Side     Side

	mu            sync.RWMutex
	status        Status
	failureReason string
}

// View is a point-in-time copy of a Record, safe to hand to readers.
type View struct {
	ID            int    `json:"id"`
	Symbol        string `json:"symbol"`
	Quantity      int    `json:"quantity"`
	Side          Side   `json:"side"`
	Status        Status `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (v View) Ref() Ref { return Ref{Symbol: v.Symbol, ID: v.ID} }

func newRecord(id int, symbol string, qty int, side Side) *Record {
	return &Record{ID: id, Symbol: symbol, Quantity: qty, Side: side, status: StatusPending}
}

func (r *Record) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Record) FailureReason() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failureReason
}

// MarkSent moves a pending record to sent and reports whether it did.
// Terminal records are left alone.
func (r *Record) MarkSent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPending {
		return false
	}
	r.status = StatusSent
	return true
}

// MarkFailed moves a pending record to failed with the venue's fault detail
// and reports whether it did.
func (r *Record) MarkFailed(reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusPending {
		return false
	}
	r.status = StatusFailed
	r.failureReason = reason
	return true
}

func (r *Record) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return View{
		ID:            r.ID,
		Symbol:        r.Symbol,
		Quantity:      r.Quantity,
		Side:          r.Side,
		Status:        r.status,
		FailureReason: r.failureReason,
	}
}

// Ref identifies a record by (symbol, id).
type Ref struct {
	Symbol string `json:"symbol"`
	ID     int    `json:"id"`
}

func (r *Record) Ref() Ref { return Ref{Symbol: r.Symbol, ID: r.ID} }

func (r Ref) String() string { return fmt.Sprintf("%s#%d", r.Symbol, r.ID) }
