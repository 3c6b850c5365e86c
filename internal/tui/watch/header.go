package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState tracks desk health from /healthz polling.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	Orders        int
	Queues        int
	QueueDepth    int
	Failures      int
	Dispatching   bool
	ActiveQueue   string
	Connected     bool
	LastCheck     time.Time
}

func renderHeader(health HealthState, activity Activity, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	statusText := theme.Sent.Render("IDLE")
	switch {
	case !health.Connected:
		statusText = theme.Failed.Render("CONNECTING")
	case health.Status != "ok" && health.Status != "":
		statusText = theme.Failed.Render("DEGRADED")
	case health.Dispatching:
		statusText = theme.Active.Render("DISPATCHING " + health.ActiveQueue)
	}

	lastEvent := "never"
	if !activity.LastEvent().IsZero() {
		lastEvent = fmt.Sprintf("%s ago", now.Sub(activity.LastEvent()).Round(time.Second))
	}

	title := " ORDERGATE WATCH"
	clock := theme.Dim.Render(now.Format("15:04:05"))
	pad := max(1, innerWidth-lipgloss.Width(title)-lipgloss.Width(clock)-4)
	titleLine := title + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s  up %s  orders: %d  queues: %d (%d queued)  failures: %s",
		statusText,
		formatDuration(time.Duration(health.UptimeSeconds)*time.Second),
		health.Orders,
		health.Queues,
		health.QueueDepth,
		failureCount(health.Failures, theme),
	)

	activityLine := fmt.Sprintf(" Last event: %s %s", lastEvent, activity.Render(theme))

	return theme.Border.Width(innerWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine),
	)
}

func failureCount(n int, theme Theme) string {
	if n == 0 {
		return theme.Dim.Render("0")
	}
	return theme.Failed.Render(fmt.Sprint(n))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
