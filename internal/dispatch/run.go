package dispatch

import (
	"errors"
	"time"
)

var (
	ErrNoSuchQueue        = errors.New("no such queue")
	ErrAlreadyDispatching = errors.New("already dispatching")
)

// RunResult is the outcome of one drain.
type RunResult struct {
	RunID      string    `json:"run_id"`
	Queue      string    `json:"queue"`
	Orders     int       `json:"orders"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	LogPath    string    `json:"log_path,omitempty"`
	// Error is set when the run aborted before or during the drain.
	Error string `json:"error,omitempty"`

	// Skipped counts records that were already terminal when popped.
	Skipped int `json:"skipped,omitempty"`
}

func (r RunResult) Aborted() bool { return r.Error != "" }

// Status is a point-in-time view of the dispatcher.
type Status struct {
	Active  bool       `json:"active"`
	Current *RunResult `json:"current,omitempty"`
	Last    *RunResult `json:"last,omitempty"`
}
