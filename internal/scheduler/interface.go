package scheduler

import "github.com/mattjoyce/ordergate/internal/order"

//go:generate mockgen -destination=mocks/mock_desk.go -package=mocks github.com/mattjoyce/ordergate/internal/scheduler Desk

// Desk is the part of the order desk the scheduler drives.
type Desk interface {
	QueueContents(name string) ([]order.View, error)
	Dispatch(name string) (string, error)
}
