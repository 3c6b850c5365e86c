package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/ordergate/internal/order"
)

var (
	ErrEmpty   = errors.New("empty command")
	ErrUnknown = errors.New("unknown command")
	ErrUsage   = errors.New("usage")
)

// InstantQueue is the queue send-now overwrites on every call.
const InstantQueue = "instant_queue"

type Kind int

const (
	KindCreateOrder Kind = iota + 1
	KindRemoveOrder
	KindListOrders
	KindCreateQueue
	KindEnqueue
	KindListQueues
	KindRemoveQueue
	KindSend
	KindSending
	KindFailures
	KindClearFailures
	KindSendNow
)

type verbInfo struct {
	verb  string
	usage string
}

var kinds = map[Kind]verbInfo{
	KindCreateOrder:   {"create-order", "create-order SYMBOL QTY buy|sell [--overwrite]"},
	KindRemoveOrder:   {"remove-order", "remove-order SYMBOL ID"},
	KindListOrders:    {"orders", "orders"},
	KindCreateQueue:   {"create-queue", "create-queue NAME [--overwrite]"},
	KindEnqueue:       {"enqueue", "enqueue QUEUE SYMBOL ID"},
	KindListQueues:    {"queues", "queues [NAME]"},
	KindRemoveQueue:   {"remove-queue", "remove-queue NAME"},
	KindSend:          {"send", "send QUEUE"},
	KindSending:       {"sending", "sending"},
	KindFailures:      {"failures", "failures [QUEUE]"},
	KindClearFailures: {"clear-failures", "clear-failures QUEUE"},
	KindSendNow:       {"send-now", "send-now SYMBOL QTY buy|sell"},
}

var byVerb = func() map[string]Kind {
	m := make(map[string]Kind, len(kinds))
	for k, s := range kinds {
		m[s.verb] = k
	}
	return m
}()

func (k Kind) String() string {
	if s, ok := kinds[k]; ok {
		return s.verb
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Usage returns the one-line syntax of k.
func (k Kind) Usage() string { return kinds[k].usage }

// Kinds lists every verb in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := KindCreateOrder; k <= KindSendNow; k++ {
		out = append(out, k)
	}
	return out
}

// Command is a parsed shell line. Only the fields the Kind uses are set.
type Command struct {
	Kind      Kind
	Symbol    string
	ID        int
	Quantity  int
	Side      order.Side
	Queue     string
	Overwrite bool
}

// Parse tokenizes line into a Command.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmpty
	}
	kind, ok := byVerb[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknown, fields[0])
	}

	args, overwrite := stripOverwrite(fields[1:])
	cmd := Command{Kind: kind, Overwrite: overwrite}
	bad := func(reason string) (Command, error) {
		return Command{}, fmt.Errorf("%w: %s (%s)", ErrUsage, kind.Usage(), reason)
	}
	if overwrite && kind != KindCreateOrder && kind != KindCreateQueue {
		return bad("--overwrite not accepted")
	}

	switch kind {
	case KindListOrders, KindSending:
		if len(args) != 0 {
			return bad("takes no arguments")
		}
	case KindListQueues, KindFailures:
		if len(args) > 1 {
			return bad("too many arguments")
		}
		if len(args) == 1 {
			cmd.Queue = args[0]
		}
	case KindCreateQueue, KindRemoveQueue, KindSend, KindClearFailures:
		if len(args) != 1 {
			return bad("expected a queue name")
		}
		cmd.Queue = args[0]
	case KindRemoveOrder:
		if len(args) != 2 {
			return bad("expected symbol and id")
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return bad("id must be an integer")
		}
		cmd.Symbol, cmd.ID = args[0], id
	case KindEnqueue:
		if len(args) != 3 {
			return bad("expected queue, symbol and id")
		}
		id, err := strconv.Atoi(args[2])
		if err != nil {
			return bad("id must be an integer")
		}
		cmd.Queue, cmd.Symbol, cmd.ID = args[0], args[1], id
	case KindCreateOrder, KindSendNow:
		if len(args) != 3 {
			return bad("expected symbol, quantity and side")
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return bad("quantity must be an integer")
		}
		side, err := order.ParseSide(args[2])
		if err != nil {
			return bad(err.Error())
		}
		cmd.Symbol, cmd.Quantity, cmd.Side = args[0], qty, side
	}
	return cmd, nil
}

func stripOverwrite(args []string) ([]string, bool) {
	out := args[:0:0]
	overwrite := false
	for _, a := range args {
		if a == "--overwrite" || a == "-f" {
			overwrite = true
			continue
		}
		out = append(out, a)
	}
	return out, overwrite
}
