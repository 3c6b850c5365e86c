package events

import "time"

const (
	OrderCreated      = "order.created"
	OrderRemoved      = "order.removed"
	QueueCreated      = "queue.created"
	QueueRemoved      = "queue.removed"
	DispatchStarted   = "dispatch.started"
	OrderSent         = "order.sent"
	OrderFailed       = "order.failed"
	DispatchCompleted = "dispatch.completed"
	DispatchAborted   = "dispatch.aborted"
	FailuresCleared   = "failures.cleared"
	ScheduleFired     = "schedule.fired"
	ScheduleSkipped   = "schedule.skipped"
	SignalAccepted    = "signal.accepted"
)

// OrderPayload accompanies order.* events.
type OrderPayload struct {
	RunID     string `json:"run_id,omitempty"`
	Queue     string `json:"queue,omitempty"`
	Symbol    string `json:"symbol"`
	ID        int    `json:"id"`
	Side      string `json:"side,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
	VenueID   string `json:"venue_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// RunPayload accompanies dispatch.* events.
type RunPayload struct {
	RunID     string    `json:"run_id"`
	Queue     string    `json:"queue"`
	Orders    int       `json:"orders"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	LogPath   string    `json:"log_path,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// QueuePayload accompanies queue.* and failures.* events.
type QueuePayload struct {
	Queue  string `json:"queue"`
	Result string `json:"result,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// SchedulePayload accompanies schedule.* events.
type SchedulePayload struct {
	Schedule string    `json:"schedule"`
	Queue    string    `json:"queue"`
	RunID    string    `json:"run_id,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Next     time.Time `json:"next"`
}

// SignalPayload accompanies signal.accepted.
type SignalPayload struct {
	Endpoint string   `json:"endpoint"`
	Queue    string   `json:"queue"`
	Orders   []string `json:"orders"`
	RunID    string   `json:"run_id,omitempty"`
}
