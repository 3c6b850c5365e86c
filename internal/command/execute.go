package command

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattjoyce/ordergate/internal/desk"
	"github.com/mattjoyce/ordergate/internal/order"
)

// Execute runs cmd against d and returns text for the operator.
func Execute(ctx context.Context, d *desk.Desk, cmd Command) (string, error) {
	switch cmd.Kind {
	case KindCreateOrder:
		return createOrder(d, cmd)
	case KindRemoveOrder:
		return removeOrder(d, cmd)
	case KindListOrders:
		return listOrders(d), nil
	case KindCreateQueue:
		return createQueue(d, cmd)
	case KindEnqueue:
		return enqueue(d, cmd)
	case KindListQueues:
		return listQueues(d, cmd)
	case KindRemoveQueue:
		return removeQueue(d, cmd)
	case KindSend:
		return send(d, cmd.Queue)
	case KindSending:
		return sending(ctx, d)
	case KindFailures:
		return failures(d, cmd), nil
	case KindClearFailures:
		return clearFailures(d, cmd), nil
	case KindSendNow:
		return sendNow(d, cmd)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknown, cmd.Kind)
	}
}

func createOrder(d *desk.Desk, cmd Command) (string, error) {
	id, err := d.CreateOrder(cmd.Symbol, cmd.Quantity, cmd.Side, cmd.Overwrite)
	if err != nil {
		return "", err
	}
	ref := order.Ref{Symbol: order.NormalizeSymbol(cmd.Symbol), ID: id}
	return fmt.Sprintf("created order %s: %s %d\n", ref, cmd.Side, cmd.Quantity), nil
}

func removeOrder(d *desk.Desk, cmd Command) (string, error) {
	if err := d.RemoveOrder(cmd.Symbol, cmd.ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("removed order %s\n", order.Ref{Symbol: order.NormalizeSymbol(cmd.Symbol), ID: cmd.ID}), nil
}

func listOrders(d *desk.Desk) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSIDE\tQTY\tSTATUS\tREASON")
	n := 0
	for v := range d.Orders() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", v.Ref(), v.Side, v.Quantity, v.Status, v.FailureReason)
		n++
	}
	if n == 0 {
		return "no orders\n"
	}
	_ = tw.Flush()
	return b.String()
}

func createQueue(d *desk.Desk, cmd Command) (string, error) {
	res, err := d.CreateQueue(cmd.Queue, cmd.Overwrite)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("queue %q: %s\n", cmd.Queue, res), nil
}

func enqueue(d *desk.Desk, cmd Command) (string, error) {
	if err := d.Enqueue(cmd.Queue, cmd.Symbol, cmd.ID); err != nil {
		return "", err
	}
	ref := order.Ref{Symbol: order.NormalizeSymbol(cmd.Symbol), ID: cmd.ID}
	return fmt.Sprintf("queued %s on %q\n", ref, cmd.Queue), nil
}

func listQueues(d *desk.Desk, cmd Command) (string, error) {
	if cmd.Queue != "" {
		views, err := d.QueueContents(cmd.Queue)
		if err != nil {
			return "", err
		}
		return renderViews(fmt.Sprintf("queue %q is empty\n", cmd.Queue), views), nil
	}
	names := d.QueueNames()
	if len(names) == 0 {
		return "no queues\n", nil
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tORDERS")
	for _, name := range names {
		views, err := d.QueueContents(name)
		if err != nil {
			// taken by a concurrent dispatch
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\n", name, len(views))
	}
	_ = tw.Flush()
	return b.String(), nil
}

func removeQueue(d *desk.Desk, cmd Command) (string, error) {
	n, err := d.RemoveQueue(cmd.Queue)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("removed queue %q (%d orders dropped)\n", cmd.Queue, n), nil
}

func send(d *desk.Desk, name string) (string, error) {
	runID, err := d.Dispatch(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("dispatching %q (run %s)\n", name, runID), nil
}

func sending(ctx context.Context, d *desk.Desk) (string, error) {
	var b strings.Builder
	st := d.DispatchStatus()
	if st.Active && st.Current != nil {
		fmt.Fprintf(&b, "dispatching %q: %d/%d sent, %d failed (run %s)\n",
			st.Current.Queue, st.Current.Sent, st.Current.Orders, st.Current.Failed, st.Current.RunID)
	} else {
		b.WriteString("idle\n")
	}
	runs, err := d.Runs(ctx, "", 5)
	if err != nil {
		return "", err
	}
	for _, r := range runs {
		outcome := "completed"
		if r.Aborted() {
			outcome = "aborted: " + r.Error
		}
		fmt.Fprintf(&b, "  %s %s sent=%d failed=%d %s\n",
			r.StartedAt.Format(time.DateTime), r.Queue, r.Sent, r.Failed, outcome)
	}
	return b.String(), nil
}

func failures(d *desk.Desk, cmd Command) string {
	if cmd.Queue != "" {
		return renderViews(fmt.Sprintf("no failures for %q\n", cmd.Queue), d.Failures(cmd.Queue))
	}
	names := d.FailureQueues()
	if len(names) == 0 {
		return "no failures\n"
	}
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s:\n", name)
		b.WriteString(renderViews("", d.Failures(name)))
	}
	return b.String()
}

func clearFailures(d *desk.Desk, cmd Command) string {
	return fmt.Sprintf("cleared %d failures for %q\n", d.ClearFailures(cmd.Queue), cmd.Queue)
}

// sendNow creates an order, places it alone on InstantQueue and dispatches.
func sendNow(d *desk.Desk, cmd Command) (string, error) {
	id, err := d.CreateOrder(cmd.Symbol, cmd.Quantity, cmd.Side, false)
	if err != nil {
		return "", err
	}
	if _, err := d.CreateQueue(InstantQueue, true); err != nil {
		return "", err
	}
	if err := d.Enqueue(InstantQueue, cmd.Symbol, id); err != nil {
		return "", err
	}
	return send(d, InstantQueue)
}

func renderViews(empty string, views []order.View) string {
	if len(views) == 0 {
		return empty
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, v := range views {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\t%s\n", v.Ref(), v.Side, v.Quantity, v.Status, v.FailureReason)
	}
	_ = tw.Flush()
	return b.String()
}
