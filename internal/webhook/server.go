package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/ordergate/internal/dispatch"
	"github.com/mattjoyce/ordergate/internal/events"
	"github.com/mattjoyce/ordergate/internal/order"
)

// Server represents the webhook HTTP server.
type Server struct {
	config Config
	desk   OrderDesk
	events *events.Hub
	logger *slog.Logger
	server *http.Server

	// endpoints maps URL paths to their configurations
	endpoints map[string]*EndpointConfig
}

// New creates a new webhook server instance.
func New(config Config, desk OrderDesk, hub *events.Hub, logger *slog.Logger) *Server {
	endpoints := make(map[string]*EndpointConfig)
	for i := range config.Endpoints {
		ep := &config.Endpoints[i]
		if ep.MaxBodySize == 0 {
			ep.MaxBodySize = DefaultMaxBodySize
		}
		if ep.SignatureHeader == "" {
			ep.SignatureHeader = DefaultSignatureHeader
		}
		endpoints[ep.Path] = ep
	}

	return &Server{
		config:    config,
		desk:      desk,
		events:    hub,
		logger:    logger,
		endpoints: endpoints,
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler { return s.setupRoutes() }

// Start starts the webhook HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "endpoints", len(s.endpoints))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	for path := range s.endpoints {
		r.Post(path, s.handleSignal)
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes sensitive payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

type parsedOrder struct {
	symbol   string
	quantity int
	side     order.Side
}

// handleSignal verifies and decodes a signal, then queues its orders. Every
// order is validated before any is created, so a bad signal changes nothing.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	endpoint, ok := s.endpoints[r.URL.Path]
	if !ok {
		s.respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, endpoint.MaxBodySize+1))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > endpoint.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	signature := r.Header.Get(endpoint.SignatureHeader)
	if signature == "" {
		s.logger.Warn("webhook signature missing", "path", r.URL.Path, "header", endpoint.SignatureHeader)
		s.respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := verifyHMACSignature(body, signature, endpoint.Secret); err != nil {
		s.logger.Warn("webhook signature verification failed", "path", r.URL.Path, "error", err)
		s.respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	orders, err := decodeSignal(body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.desk.CreateQueue(endpoint.Queue, false); err != nil {
		s.logger.Error("failed to create signal queue", "path", r.URL.Path, "queue", endpoint.Queue, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to queue orders")
		return
	}

	resp := SignalResponse{Queue: endpoint.Queue, Orders: make([]string, 0, len(orders))}
	for _, o := range orders {
		id, err := s.desk.CreateOrder(o.symbol, o.quantity, o.side, false)
		if err == nil {
			err = s.desk.Enqueue(endpoint.Queue, o.symbol, id)
		}
		if err != nil {
			s.logger.Error("failed to queue signal order", "path", r.URL.Path, "queue", endpoint.Queue, "symbol", o.symbol, "queued", len(resp.Orders), "error", err)
			s.respondError(w, http.StatusInternalServerError, "failed to queue orders")
			return
		}
		resp.Orders = append(resp.Orders, order.Ref{Symbol: order.NormalizeSymbol(o.symbol), ID: id}.String())
	}

	if endpoint.Dispatch {
		runID, err := s.desk.Dispatch(endpoint.Queue)
		switch {
		case err == nil:
			resp.RunID = runID
		case errors.Is(err, dispatch.ErrAlreadyDispatching):
			// Orders stay queued for the next send.
			resp.DispatchError = err.Error()
		default:
			s.logger.Error("signal dispatch failed", "path", r.URL.Path, "queue", endpoint.Queue, "error", err)
			resp.DispatchError = err.Error()
		}
	}

	s.events.Publish(events.SignalAccepted, events.SignalPayload{
		Endpoint: r.URL.Path,
		Queue:    endpoint.Queue,
		Orders:   resp.Orders,
		RunID:    resp.RunID,
	})
	s.logger.Info("signal accepted",
		"path", r.URL.Path,
		"queue", endpoint.Queue,
		"orders", len(resp.Orders),
		"run_id", resp.RunID,
		"request_id", middleware.GetReqID(r.Context()),
	)

	s.respondJSON(w, http.StatusAccepted, resp)
}

// decodeSignal accepts a single inline order or an "orders" batch, not both.
func decodeSignal(body []byte) ([]parsedOrder, error) {
	var sig Signal
	if err := json.Unmarshal(body, &sig); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	raw := sig.Orders
	inline := sig.Symbol != "" || sig.Quantity != 0 || sig.Side != ""
	switch {
	case inline && len(raw) > 0:
		return nil, errors.New("send either an inline order or orders, not both")
	case inline:
		raw = []SignalOrder{{Symbol: sig.Symbol, Quantity: sig.Quantity, Side: sig.Side}}
	case len(raw) == 0:
		return nil, errors.New("signal carries no orders")
	case len(raw) > maxSignalOrders:
		return nil, fmt.Errorf("signal carries %d orders, limit is %d", len(raw), maxSignalOrders)
	}

	out := make([]parsedOrder, 0, len(raw))
	for i, o := range raw {
		side, err := order.ParseSide(o.Side)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		if order.NormalizeSymbol(o.Symbol) == "" {
			return nil, fmt.Errorf("order %d: symbol is required", i)
		}
		if o.Quantity <= 0 {
			return nil, fmt.Errorf("order %d: quantity must be positive, got %d", i, o.Quantity)
		}
		out = append(out, parsedOrder{symbol: o.Symbol, quantity: o.Quantity, side: side})
	}
	return out, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
