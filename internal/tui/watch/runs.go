package watch

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ordergate/internal/events"
)

const (
	maxRuns     = 5
	maxOutcomes = 100
)

// RunState tracks one dispatch run as seen on the event stream.
type RunState struct {
	ID       string
	Queue    string
	Orders   int
	Sent     int
	Failed   int
	Started  time.Time
	Finished time.Time
	Error    string
}

func (r *RunState) Done() bool { return !r.Finished.IsZero() }

// Outcome is one order result for the outcomes table.
type Outcome struct {
	At        time.Time
	Queue     string
	Ref       string
	Side      string
	Quantity  int
	Sent      bool
	ElapsedMS int64
	Detail    string
}

// Tracker folds desk events into run and outcome state.
type Tracker struct {
	runs     []*RunState // newest first
	outcomes []Outcome   // newest first
}

func (t *Tracker) run(id string) *RunState {
	for _, r := range t.runs {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Apply updates state from one event. Unknown types are ignored.
func (t *Tracker) Apply(e events.Event) {
	switch e.Type {
	case events.DispatchStarted, events.DispatchCompleted, events.DispatchAborted:
		var p events.RunPayload
		if err := e.Decode(&p); err != nil || p.RunID == "" {
			return
		}
		r := t.run(p.RunID)
		if r == nil {
			r = &RunState{ID: p.RunID}
			t.runs = slices.Insert(t.runs, 0, r)
			if len(t.runs) > maxRuns {
				t.runs = t.runs[:maxRuns]
			}
		}
		r.Queue, r.Orders, r.Started = p.Queue, p.Orders, p.StartedAt
		if e.Type != events.DispatchStarted {
			r.Sent, r.Failed, r.Error = p.Sent, p.Failed, p.Error
			r.Finished = e.At
		}

	case events.OrderSent, events.OrderFailed:
		var p events.OrderPayload
		if err := e.Decode(&p); err != nil {
			return
		}
		o := Outcome{
			At:        e.At,
			Queue:     p.Queue,
			Ref:       fmt.Sprintf("%s#%d", p.Symbol, p.ID),
			Side:      p.Side,
			Quantity:  p.Quantity,
			Sent:      e.Type == events.OrderSent,
			ElapsedMS: p.ElapsedMS,
			Detail:    p.VenueID,
		}
		if !o.Sent {
			o.Detail = p.Reason
		}
		t.outcomes = slices.Insert(t.outcomes, 0, o)
		if len(t.outcomes) > maxOutcomes {
			t.outcomes = t.outcomes[:maxOutcomes]
		}
		if r := t.run(p.RunID); r != nil && !r.Done() {
			if o.Sent {
				r.Sent++
			} else {
				r.Failed++
			}
		}
	}
}

// Active returns the run still in progress, if any.
func (t *Tracker) Active() *RunState {
	for _, r := range t.runs {
		if !r.Done() {
			return r
		}
	}
	return nil
}

func (t *Tracker) Runs() []*RunState { return t.runs }

func (t *Tracker) Outcomes() []Outcome { return t.outcomes }

func renderRuns(runs []*RunState, theme Theme, width int) string {
	innerWidth := width - 4
	lines := []string{theme.Title.Render("DISPATCH RUNS")}
	if len(runs) == 0 {
		lines = append(lines, theme.Dim.Render("  No runs yet..."))
	}
	for _, r := range runs {
		var status string
		switch {
		case !r.Done():
			status = theme.Active.Render("◉ dispatching")
		case r.Error != "":
			status = theme.Failed.Render("∅ aborted: " + r.Error)
		case r.Failed > 0:
			status = theme.Highlight.Render("● completed with failures")
		default:
			status = theme.Sent.Render("● completed")
		}
		bar := theme.Progress.Render(progressBar(r.Sent+r.Failed, r.Orders, 20))
		lines = append(lines, fmt.Sprintf("  %-16s %s %3d/%-3d sent=%d failed=%d  %s",
			truncate(r.Queue, 16), bar, r.Sent+r.Failed, r.Orders, r.Sent, r.Failed, status))
	}
	return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func newOutcomeTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Time", Width: 8},
			{Title: "Queue", Width: 14},
			{Title: "Order", Width: 12},
			{Title: "Side", Width: 4},
			{Title: "Qty", Width: 6},
			{Title: "ms", Width: 6},
			{Title: "Detail", Width: 30},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func outcomeRows(outcomes []Outcome, theme Theme) []table.Row {
	rows := make([]table.Row, 0, len(outcomes))
	for _, o := range outcomes {
		st := theme.Sent.Render("●")
		if !o.Sent {
			st = theme.Failed.Render("∅")
		}
		rows = append(rows, table.Row{
			st,
			o.At.Format("15:04:05"),
			truncate(o.Queue, 14),
			o.Ref,
			o.Side,
			fmt.Sprint(o.Quantity),
			fmt.Sprint(o.ElapsedMS),
			truncate(o.Detail, 30),
		})
	}
	return rows
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
