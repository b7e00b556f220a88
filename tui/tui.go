// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Tabs over the meeting, lead, call, and task stores with list, detail, and delete views
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/salesdesk/models"
	"github.com/harperreed/salesdesk/session"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
	ViewConfirmDelete
)

// stateChangedMsg is sent when any store publishes a new snapshot.
type stateChangedMsg struct{}

// Model is the main bubbletea model
type Model struct {
	ctx      context.Context
	tabs     []source
	active   int
	viewMode ViewMode

	// List view state
	selectedRow int

	// Detail and delete state
	selectedID    string
	deleteMessage string

	changes     chan struct{}
	unsubscribe []func()

	width  int
	height int
}

// NewModel creates a new TUI model over the session's stores.
func NewModel(ctx context.Context, sess *session.Session, pageSize int) Model {
	if pageSize <= 0 {
		pageSize = 20
	}
	tabs := []source{
		&storeSource[models.Meeting, models.Details]{
			name:  "Meetings",
			store: sess.Meetings,
			cols: []table.Column{
				{Title: "Title", Width: 30},
				{Title: "Start", Width: 17},
				{Title: "Status", Width: 12},
				{Title: "Location", Width: 20},
			},
			row: func(m models.Meeting) table.Row {
				return table.Row{m.Title, formatTime(m.StartTime), m.Status, m.Location}
			},
			label:    func(m models.Meeting) string { return m.Title },
			query:    sess.Query,
			pageSize: pageSize,
		},
		&storeSource[models.Lead, models.Details]{
			name:  "Leads",
			store: sess.Leads,
			cols: []table.Column{
				{Title: "Name", Width: 25},
				{Title: "Company", Width: 25},
				{Title: "Status", Width: 12},
				{Title: "Value", Width: 10},
			},
			row: func(l models.Lead) table.Row {
				return table.Row{l.Name, l.CompanyName, l.Status, formatCents(l.Value)}
			},
			label:    func(l models.Lead) string { return l.Name },
			query:    sess.Query,
			pageSize: pageSize,
		},
		&storeSource[models.Call, models.Details]{
			name:  "Calls",
			store: sess.Calls,
			cols: []table.Column{
				{Title: "Subject", Width: 30},
				{Title: "Called", Width: 17},
				{Title: "Direction", Width: 10},
				{Title: "Outcome", Width: 15},
			},
			row: func(c models.Call) table.Row {
				return table.Row{c.Subject, formatTime(c.CalledAt), c.Direction, c.Outcome}
			},
			label:    func(c models.Call) string { return c.Subject },
			query:    sess.Query,
			pageSize: pageSize,
		},
		&storeSource[models.Task, models.Details]{
			name:  "Tasks",
			store: sess.Tasks,
			cols: []table.Column{
				{Title: "Title", Width: 30},
				{Title: "Due", Width: 17},
				{Title: "Priority", Width: 10},
				{Title: "Status", Width: 12},
			},
			row: func(t models.Task) table.Row {
				return table.Row{t.Title, formatTime(t.DueDate), t.Priority, t.Status}
			},
			label:    func(t models.Task) string { return t.Title },
			query:    sess.Query,
			pageSize: pageSize,
		},
	}

	m := Model{
		ctx:      ctx,
		tabs:     tabs,
		viewMode: ViewList,
		changes:  make(chan struct{}, 1),
		width:    80,
		height:   24,
	}
	for _, tab := range tabs {
		m.unsubscribe = append(m.unsubscribe, tab.subscribe(m.notifyChange))
	}
	return m
}

// notifyChange coalesces store notifications; one pending wake-up is enough
// because views always read the latest snapshot.
func (m Model) notifyChange() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

func (m Model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return stateChangedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Close unsubscribes from the stores.
func (m Model) Close() {
	for _, fn := range m.unsubscribe {
		fn()
	}
}

func (m Model) current() source {
	return m.tabs[m.active]
}

func (m Model) Init() tea.Cmd {
	tab := m.current()
	tab.hydrate(m.ctx)
	return tea.Batch(tab.fetch(m.ctx, 0), m.listen())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case stateChangedMsg:
		return m, m.listen()
	case actionDoneMsg:
		return m.handleActionDone(msg)
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewList:
		return m.renderListView()
	case ViewDetail:
		return m.renderDetailView()
	case ViewConfirmDelete:
		return m.renderConfirmDeleteView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "x":
		m.current().resetError()
		m.deleteMessage = ""
		return m, nil
	}

	// Delegate to view-specific handlers
	switch m.viewMode {
	case ViewList:
		return m.handleListKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewConfirmDelete:
		return m.handleConfirmDeleteKeys(msg)
	}

	return m, nil
}

func (m Model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	if msg.action != "delete" {
		return m, nil
	}
	if msg.err != nil {
		m.deleteMessage = "Error: " + msg.err.Error()
		return m, nil
	}
	m.deleteMessage = "Successfully deleted"
	m.selectedID = ""
	if rows := len(m.current().list().rows); m.selectedRow >= rows && rows > 0 {
		m.selectedRow = rows - 1
	}
	return m, nil
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, sess *session.Session, pageSize int) error {
	m := NewModel(ctx, sess, pageSize)
	defer m.Close()

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)
