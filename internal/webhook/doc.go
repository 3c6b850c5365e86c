// Package webhook accepts signed order signals over HTTP and queues them on
// the desk.
//
// Each endpoint feeds one queue. A signal carries one order inline or a
// batch under "orders"; every order is validated before any is created.
// Endpoints with dispatch enabled send their queue as soon as the signal is
// queued. If a dispatch is already running the orders stay queued and the
// response carries dispatch_error.
//
// # Configuration
//
//	webhooks:
//	  listen: "127.0.0.1:8081"
//	  endpoints:
//	    - path: /signals/momentum
//	      queue: momentum
//	      dispatch: true
//	      secret: ${MOMENTUM_SECRET}
//	      signature_header: X-Signature-256
//	      max_body_size: 64KB
//
// # Request
//
//	POST /signals/momentum
//	X-Signature-256: sha256=<hex hmac of body>
//
//	{"orders": [{"symbol": "AAPL", "quantity": 10, "side": "buy"}]}
//
// # Responses
//
//   - 202 Accepted: orders queued, body lists their refs
//   - 400 Bad Request: malformed signal, nothing created
//   - 403 Forbidden: missing or invalid signature (no details)
//   - 413 Payload Too Large: body exceeds max_body_size
//   - 500 Internal Server Error: the desk rejected an order
package webhook
