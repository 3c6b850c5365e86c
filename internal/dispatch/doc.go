// Package dispatch drains a named order queue against the trading venue.
//
// At most one drain runs per process. RequestDispatch checks the queue exists,
// checks and sets the active flag, and takes the queue out of the registry
// under a single lock, then returns while the drain continues on its own
// goroutine.
//
// A drain:
//   - opens the audit log for (queue, date); failure aborts the run
//   - submits each record in FIFO order, each call spaced by the shared throttle
//   - marks records sent or failed; failures go to the ledger, never abort
//   - writes the end marker and clears the active flag, including on panic
//
// Drains cannot be cancelled once started.
package dispatch
