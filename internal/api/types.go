package api

import (
	"github.com/mattjoyce/ordergate/internal/order"
)

// CreateOrderRequest is the JSON body for POST /orders.
type CreateOrderRequest struct {
	Symbol    string     `json:"symbol"`
	Quantity  int        `json:"quantity"`
	Side      order.Side `json:"side"`
	Overwrite bool       `json:"overwrite,omitempty"`
}

// CreateOrderResponse is returned on successful order creation.
type CreateOrderResponse struct {
	Symbol string `json:"symbol"`
	ID     int    `json:"id"`
}

type OrderListResponse struct {
	Orders []order.View `json:"orders"`
}

// CreateQueueRequest is the JSON body for POST /queues.
type CreateQueueRequest struct {
	Name      string `json:"name"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

type CreateQueueResponse struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

// EnqueueRequest is the JSON body for POST /queues/{name}/orders.
type EnqueueRequest struct {
	Symbol string `json:"symbol"`
	ID     int    `json:"id"`
}

type QueueResponse struct {
	Name   string       `json:"name"`
	Orders []order.View `json:"orders"`
}

type QueueListResponse struct {
	Queues []QueueResponse `json:"queues"`
}

type RemoveResponse struct {
	Removed int `json:"removed"`
}

// DispatchResponse is returned when a drain is accepted.
type DispatchResponse struct {
	RunID string `json:"run_id"`
	Queue string `json:"queue"`
}

type FailuresResponse struct {
	Queue    string       `json:"queue"`
	Failures []order.View `json:"failures"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Orders        int    `json:"orders"`
	Queues        int    `json:"queues"`
	QueueDepth    int    `json:"queue_depth"`
	Failures      int    `json:"failures"`
	Dispatching   bool   `json:"dispatching"`
	ActiveQueue   string `json:"active_queue,omitempty"`
}
