package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ordergate/internal/events"
)

const maxEventLog = 200

// Model is the BubbleTea model for ordergate watch.
type Model struct {
	ctx    context.Context
	apiURL string
	apiKey string

	width  int
	height int

	health   HealthState
	tracker  Tracker
	eventLog []events.Event // newest first
	lastID   int64
	activity Activity

	outcomes table.Model
	stream   viewport.Model
	theme    Theme

	hubEvents chan events.Event
	lastError string
	now       func() time.Time
}

// New creates the monitor for the desk API at apiURL. ctx bounds the SSE
// connection.
func New(ctx context.Context, apiURL, apiKey string) *Model {
	return &Model{
		ctx:       ctx,
		apiURL:    strings.TrimRight(apiURL, "/"),
		apiKey:    apiKey,
		outcomes:  newOutcomeTable(),
		stream:    viewport.New(0, 8),
		theme:     NewDefaultTheme(),
		hubEvents: make(chan events.Event, 100),
		now:       time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.ctx, m.apiURL, m.apiKey, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.ctx, m.apiURL) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.stream, cmd = m.stream.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.outcomes.SetWidth(max(0, m.width-6))
		m.stream.Width = max(0, m.width-8)
		m.stream.Height = max(3, m.height/4)
		m.refreshStream()

	case tickMsg:
		m.activity.Decay(time.Time(msg))
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		m.applyEvent(events.Event(msg))
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Orders = msg.Orders
		m.health.Queues = msg.Queues
		m.health.QueueDepth = msg.QueueDepth
		m.health.Failures = msg.Failures
		m.health.Dispatching = msg.Dispatching
		m.health.ActiveQueue = msg.ActiveQueue
		m.health.Connected = true
		m.health.LastCheck = m.now()
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.ctx, m.apiURL)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribeToEvents(m.ctx, m.apiURL, m.apiKey, m.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.ctx, m.apiURL)
		})
	}

	var cmd tea.Cmd
	m.outcomes, cmd = m.outcomes.Update(msg)
	return m, cmd
}

func (m *Model) applyEvent(e events.Event) {
	if e.ID > m.lastID {
		m.lastID = e.ID
	}
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > maxEventLog {
		m.eventLog = m.eventLog[:maxEventLog]
	}
	m.activity.OnEvent(m.now())
	m.tracker.Apply(e)

	// Events arrive faster than the 5s health poll; keep the header honest.
	if active := m.tracker.Active(); active != nil {
		m.health.Dispatching = true
		m.health.ActiveQueue = active.Queue
	} else {
		m.health.Dispatching = false
		m.health.ActiveQueue = ""
	}
	m.health.Connected = true
	m.lastError = ""

	m.outcomes.SetRows(outcomeRows(m.tracker.Outcomes(), m.theme))
	m.refreshStream()
}

func (m *Model) refreshStream() {
	lines := make([]string, 0, len(m.eventLog))
	for _, e := range m.eventLog {
		lines = append(lines, formatEvent(e, m.theme))
	}
	m.stream.SetContent(strings.Join(lines, "\n"))
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to desk..."
	}

	header := renderHeader(m.health, m.activity, m.theme, m.width, m.now())
	runs := renderRuns(m.tracker.Runs(), m.theme, m.width)
	outcomes := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("ORDER OUTCOMES"),
			m.outcomes.View(),
		),
	)

	streamBody := m.stream.View()
	if len(m.eventLog) == 0 {
		streamBody = m.theme.Dim.Render("  Waiting for events...")
	}
	stream := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("EVENT STREAM"),
			lipgloss.NewStyle().Padding(0, 1).Render(streamBody),
		),
	)

	parts := []string{header, runs, outcomes, stream}
	if m.lastError != "" {
		parts = append(parts, m.theme.Failed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Outcomes • [PgUp/PgDn] Events"))

	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
