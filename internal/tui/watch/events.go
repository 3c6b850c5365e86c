package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ordergate/internal/events"
)

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch e.Type {
	case events.OrderSent, events.DispatchCompleted:
		typeStyle = theme.Sent
	case events.OrderFailed, events.DispatchAborted:
		typeStyle = theme.Failed
	case events.DispatchStarted:
		typeStyle = theme.Active
	default:
		typeStyle = theme.Dim
	}

	return fmt.Sprintf("%s %s %s", ts, typeStyle.Render(fmt.Sprintf("%-18s", e.Type)), describeEvent(e))
}

// describeEvent summarizes the payload in a few words.
func describeEvent(e events.Event) string {
	switch {
	case strings.HasPrefix(e.Type, "order."):
		var p events.OrderPayload
		if e.Decode(&p) == nil && p.Symbol != "" {
			return joinNonEmpty(fmt.Sprintf("%s#%d", p.Symbol, p.ID), p.Side, qty(p.Quantity), p.Queue, p.Reason)
		}
	case strings.HasPrefix(e.Type, "dispatch."):
		var p events.RunPayload
		if e.Decode(&p) == nil && p.Queue != "" {
			if e.Type == events.DispatchStarted {
				return fmt.Sprintf("%s orders=%d", p.Queue, p.Orders)
			}
			return joinNonEmpty(fmt.Sprintf("%s sent=%d failed=%d", p.Queue, p.Sent, p.Failed), p.Error)
		}
	case strings.HasPrefix(e.Type, "queue."), strings.HasPrefix(e.Type, "failures."):
		var p events.QueuePayload
		if e.Decode(&p) == nil && p.Queue != "" {
			return joinNonEmpty(p.Queue, p.Result, qty(p.Count))
		}
	case strings.HasPrefix(e.Type, "schedule."):
		var p events.SchedulePayload
		if e.Decode(&p) == nil && p.Schedule != "" {
			return joinNonEmpty(fmt.Sprintf("%s -> %s", p.Schedule, p.Queue), p.Reason, "next "+p.Next.Local().Format("15:04:05"))
		}
	case e.Type == events.SignalAccepted:
		var p events.SignalPayload
		if e.Decode(&p) == nil && p.Queue != "" {
			return joinNonEmpty(fmt.Sprintf("%s -> %s orders=%d", p.Endpoint, p.Queue, len(p.Orders)), p.RunID)
		}
	}
	raw := string(e.Data)
	if len(raw) > 60 {
		raw = raw[:60] + "..."
	}
	return raw
}

func qty(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprint(n)
}
