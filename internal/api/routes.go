package api

import (
	"net/http"

	"github.com/mattjoyce/ordergate/internal/auth"
)

type route struct {
	method  string
	pattern string
	summary string
	scopes  []string
	handler http.HandlerFunc
}

// routes lists every authenticated endpoint. The same table drives the
// router and the OpenAPI document.
func (s *Server) routes() []route {
	need := func(res auth.Resource, access auth.Access) []string {
		return []string{auth.ScopeFor(res, access)}
	}
	ordersRO := need(auth.ResourceOrders, auth.ReadOnly)
	ordersRW := need(auth.ResourceOrders, auth.ReadWrite)
	queuesRO := need(auth.ResourceQueues, auth.ReadOnly)
	queuesRW := need(auth.ResourceQueues, auth.ReadWrite)
	return []route{
		{http.MethodGet, "/orders", "List orders", ordersRO, s.handleListOrders},
		{http.MethodPost, "/orders", "Create an order", ordersRW, s.handleCreateOrder},
		{http.MethodGet, "/orders/{symbol}/{id}", "Get one order", ordersRO, s.handleGetOrder},
		{http.MethodDelete, "/orders/{symbol}/{id}", "Remove an order", ordersRW, s.handleRemoveOrder},
		{http.MethodGet, "/queues", "List queues with contents", queuesRO, s.handleListQueues},
		{http.MethodPost, "/queues", "Create a queue", queuesRW, s.handleCreateQueue},
		{http.MethodGet, "/queues/{name}", "Get queue contents", queuesRO, s.handleGetQueue},
		{http.MethodPost, "/queues/{name}/orders", "Append an order to a queue", queuesRW, s.handleEnqueue},
		{http.MethodDelete, "/queues/{name}", "Remove a queue", queuesRW, s.handleRemoveQueue},
		{http.MethodPost, "/queues/{name}/dispatch", "Start draining a queue", need(auth.ResourceDispatch, auth.ReadWrite), s.handleDispatch},
		{http.MethodGet, "/dispatch", "Dispatcher status", queuesRO, s.handleDispatchStatus},
		{http.MethodGet, "/dispatch/runs", "Recent dispatch runs", queuesRO, s.handleRuns},
		{http.MethodGet, "/failures", "Failures for every queue", queuesRO, s.handleListFailures},
		{http.MethodGet, "/failures/{queue}", "Failures for one queue", queuesRO, s.handleGetFailures},
		{http.MethodDelete, "/failures/{queue}", "Clear failures for one queue", queuesRW, s.handleClearFailures},
		{http.MethodGet, "/events", "Server-sent event stream", need(auth.ResourceEvents, auth.ReadOnly), s.handleEvents},
	}
}
