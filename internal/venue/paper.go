package venue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mattjoyce/ordergate/internal/order"
)

// Paper is an in-process venue that accepts every order except those for
// symbols configured to fail. It fills at a fixed price so confirmations have
// a realistic shape.
type Paper struct {
	latency time.Duration
	price   decimal.Decimal

	mu        sync.Mutex
	rejects   map[string]string
	submitted []Order
}

// NewPaper returns a paper venue. rejectSymbols are refused with a
// "symbol not tradable" fault.
func NewPaper(latency time.Duration, rejectSymbols ...string) *Paper {
	p := &Paper{
		latency: latency,
		price:   decimal.RequireFromString("100.00"),
		rejects: make(map[string]string),
	}
	for _, s := range rejectSymbols {
		p.Reject(s, "symbol not tradable")
	}
	return p
}

// Reject makes every future order for symbol fail with reason.
func (p *Paper) Reject(symbol, reason string) {
	p.mu.Lock()
	p.rejects[order.NormalizeSymbol(symbol)] = reason
	p.mu.Unlock()
}

func (p *Paper) Submit(ctx context.Context, o Order) (Confirmation, error) {
	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Confirmation{}, ctx.Err()
		case <-timer.C:
		}
	}

	p.mu.Lock()
	reason, rejected := p.rejects[o.Symbol]
	if !rejected {
		p.submitted = append(p.submitted, o)
	}
	p.mu.Unlock()

	if rejected {
		return Confirmation{}, fmt.Errorf("paper venue rejected %s: %s", o.Symbol, reason)
	}
	if o.Quantity <= 0 {
		return Confirmation{}, fmt.Errorf("paper venue rejected %s: qty must be > 0", o.Symbol)
	}

	return Confirmation{
		ID:             uuid.NewString(),
		ClientOrderID:  o.ClientOrderID,
		Symbol:         o.Symbol,
		Quantity:       strconv.Itoa(o.Quantity),
		Side:           string(o.Side),
		Type:           "market",
		Status:         "filled",
		SubmittedAt:    time.Now().UTC(),
		FilledAvgPrice: decimal.NewNullDecimal(p.price),
	}, nil
}

// Submitted returns the accepted orders in submission order.
func (p *Paper) Submitted() []Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Order, len(p.submitted))
	copy(out, p.submitted)
	return out
}
