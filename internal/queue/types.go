package queue

import (
	"errors"

	"github.com/mattjoyce/ordergate/internal/order"
)

var (
	ErrNotFound    = errors.New("queue not found")
	ErrInvalidName = errors.New("invalid queue name")
)

// CreateResult reports what Create did with the requested name.
type CreateResult string

const (
	Created   CreateResult = "created"
	Replaced  CreateResult = "replaced"
	Cancelled CreateResult = "cancelled"
)

// Queue is a named FIFO of order records awaiting dispatch.
type Queue struct {
	Name   string
	Orders []*order.Record
}

func (q *Queue) Len() int { return len(q.Orders) }

// Pop removes and returns the head record, or nil if the queue is empty.
func (q *Queue) Pop() *order.Record {
	if len(q.Orders) == 0 {
		return nil
	}
	head := q.Orders[0]
	q.Orders[0] = nil
	q.Orders = q.Orders[1:]
	return head
}

// Snapshot is the serializable form of the registry: queue name to its
// records in FIFO order. Full views are kept rather than refs because a
// queued record may already have left the order registry.
type Snapshot map[string][]order.View
