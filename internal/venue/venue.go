package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mattjoyce/ordergate/internal/order"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/mattjoyce/ordergate/internal/venue Client

// Client submits a single market order. Any returned error is a fault for that
// order; callers treat the error text as the failure detail.
type Client interface {
	Submit(ctx context.Context, o Order) (Confirmation, error)
}

// Order is what the venue needs to place a market order.
type Order struct {
	ClientOrderID string
	Symbol        string
	Quantity      int
	Side          order.Side
}

// Confirmation is the venue's acknowledgement of an accepted order.
type Confirmation struct {
	ID             string              `json:"id"`
	ClientOrderID  string              `json:"client_order_id"`
	Symbol         string              `json:"symbol"`
	Quantity       string              `json:"qty"`
	Side           string              `json:"side"`
	Type           string              `json:"type"`
	Status         string              `json:"status"`
	SubmittedAt    time.Time           `json:"submitted_at"`
	FilledAvgPrice decimal.NullDecimal `json:"filled_avg_price"`
}
