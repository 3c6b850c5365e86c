package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/ordergate/internal/dispatch"
	"github.com/mattjoyce/ordergate/internal/order"
	"github.com/mattjoyce/ordergate/internal/queue"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	st := s.desk.Status()
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Orders:        st.Orders,
		Queues:        st.Queues,
		QueueDepth:    st.QueuedDepth,
		Failures:      st.Failures,
		Dispatching:   st.Dispatch.Active,
	}
	if st.Dispatch.Current != nil {
		resp.ActiveQueue = st.Dispatch.Current.Queue
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	resp := OrderListResponse{Orders: []order.View{}}
	for v := range s.desk.Orders() {
		resp.Orders = append(resp.Orders, v)
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleCreateOrder handles POST /orders.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.desk.CreateOrder(req.Symbol, req.Quantity, req.Side, req.Overwrite)
	if err != nil {
		s.writeDeskError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, CreateOrderResponse{Symbol: order.NormalizeSymbol(req.Symbol), ID: id})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	symbol, id, ok := s.orderRef(w, r)
	if !ok {
		return
	}
	v, err := s.desk.Order(symbol, id)
	if err != nil {
		s.writeDeskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) handleRemoveOrder(w http.ResponseWriter, r *http.Request) {
	symbol, id, ok := s.orderRef(w, r)
	if !ok {
		return
	}
	if err := s.desk.RemoveOrder(symbol, id); err != nil {
		s.writeDeskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	resp := QueueListResponse{Queues: []QueueResponse{}}
	for _, name := range s.desk.QueueNames() {
		views, err := s.desk.QueueContents(name)
		if err != nil {
			// taken by a dispatch since Names was read
			continue
		}
		resp.Queues = append(resp.Queues, QueueResponse{Name: name, Orders: views})
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleCreateQueue handles POST /queues. A name that already exists without
// overwrite is reported as cancelled with 409.
func (s *Server) handleCreateQueue(w http.ResponseWriter, r *http.Request) {
	var req CreateQueueRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.desk.CreateQueue(req.Name, req.Overwrite)
	if err != nil {
		s.writeDeskError(w, err)
		return
	}
	status := http.StatusOK
	switch res {
	case queue.Created:
		status = http.StatusCreated
	case queue.Cancelled:
		status = http.StatusConflict
	}
	respondJSON(w, status, CreateQueueResponse{Name: req.Name, Result: string(res)})
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	views, err := s.desk.QueueContents(name)
	if err != nil {
		s.writeDeskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, QueueResponse{Name: name, Orders: views})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if !s.decode(w, r, &req) {
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.desk.Enqueue(name, req.Symbol, req.ID); err != nil {
		s.writeDeskError(w, err)
		return
	}
	views, err := s.desk.QueueContents(name)
	if err != nil {
		s.writeDeskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, QueueResponse{Name: name, Orders: views})
}

func (s *Server) handleRemoveQueue(w http.ResponseWriter, r *http.Request) {
	n, err := s.desk.RemoveQueue(chi.URLParam(r, "name"))
	if err != nil {
		s.writeDeskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, RemoveResponse{Removed: n})
}

// handleDispatch handles POST /queues/{name}/dispatch. The drain runs in the
// background; the response only confirms it started.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	runID, err := s.desk.Dispatch(name)
	if err != nil {
		s.writeDeskError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, DispatchResponse{RunID: runID, Queue: name})
}

func (s *Server) handleDispatchStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.desk.DispatchStatus())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.desk.Runs(r.Context(), r.URL.Query().Get("queue"), limit)
	if err != nil {
		s.logger.Error("failed to list dispatch runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list dispatch runs")
		return
	}
	if runs == nil {
		runs = []dispatch.RunResult{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleListFailures(w http.ResponseWriter, r *http.Request) {
	out := []FailuresResponse{}
	for _, name := range s.desk.FailureQueues() {
		out = append(out, FailuresResponse{Queue: name, Failures: s.desk.Failures(name)})
	}
	respondJSON(w, http.StatusOK, out)
}

// handleGetFailures handles GET /failures/{queue}. A queue with no failures
// returns an empty list rather than 404.
func (s *Server) handleGetFailures(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	failed := s.desk.Failures(name)
	if failed == nil {
		failed = []order.View{}
	}
	respondJSON(w, http.StatusOK, FailuresResponse{Queue: name, Failures: failed})
}

func (s *Server) handleClearFailures(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RemoveResponse{Removed: s.desk.ClearFailures(chi.URLParam(r, "queue"))})
}

func (s *Server) orderRef(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "order id must be an integer")
		return "", 0, false
	}
	return chi.URLParam(r, "symbol"), id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps desk sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrInvalidOrder), errors.Is(err, queue.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrNotFound), errors.Is(err, queue.ErrNotFound), errors.Is(err, dispatch.ErrNoSuchQueue):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrAlreadyDispatching):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDeskError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeError(w, status, err.Error())
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
