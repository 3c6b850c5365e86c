package webhook

import (
	"github.com/mattjoyce/ordergate/internal/order"
	"github.com/mattjoyce/ordergate/internal/queue"
)

// OrderDesk is the part of the desk a signal endpoint writes to.
type OrderDesk interface {
	CreateOrder(symbol string, quantity int, side order.Side, overwrite bool) (int, error)
	CreateQueue(name string, overwrite bool) (queue.CreateResult, error)
	Enqueue(queueName, symbol string, id int) error
	Dispatch(name string) (string, error)
}

// Config holds webhook server configuration.
type Config struct {
	Listen    string
	Endpoints []EndpointConfig
}

// EndpointConfig defines a single signal endpoint.
type EndpointConfig struct {
	// Path is the URL path for this webhook (e.g., "/signals/tv")
	Path string

	// Queue receives every order in an accepted signal. It is created on
	// first use.
	Queue string

	// Dispatch sends Queue as soon as the signal's orders are queued.
	Dispatch bool

	// Secret is the HMAC secret for signature verification
	Secret string

	// SignatureHeader is the HTTP header carrying the HMAC signature.
	SignatureHeader string

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB)
	MaxBodySize int64
}

// Signal is an accepted request body: either one order inline or a batch in
// Orders.
type Signal struct {
	Symbol   string        `json:"symbol,omitempty"`
	Quantity int           `json:"quantity,omitempty"`
	Side     string        `json:"side,omitempty"`
	Orders   []SignalOrder `json:"orders,omitempty"`
}

type SignalOrder struct {
	Symbol   string `json:"symbol"`
	Quantity int    `json:"quantity"`
	Side     string `json:"side"`
}

// SignalResponse is the JSON response for accepted signals.
type SignalResponse struct {
	Queue  string   `json:"queue"`
	Orders []string `json:"orders"`
	RunID  string   `json:"run_id,omitempty"`
	// DispatchError is set when the orders were queued but the queue could
	// not be sent.
	DispatchError string `json:"dispatch_error,omitempty"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Default values
const (
	DefaultMaxBodySize     = 1048576 // 1 MB
	DefaultSignatureHeader = "X-Signature-256"
	maxSignalOrders        = 100
)
