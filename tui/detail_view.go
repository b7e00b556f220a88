package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Width(20)

	fieldValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

func (m Model) renderDetailView() string {
	var s strings.Builder

	ds := m.current().detail()

	// Title
	title := "DETAIL VIEW"
	if ds.ok {
		title = strings.ToUpper(ds.title)
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n\n")

	switch {
	case !ds.ok && ds.loading:
		s.WriteString(statusStyle.Render("Loading..."))
	case !ds.ok:
		s.WriteString(statusStyle.Render("Record is no longer available"))
	default:
		for _, f := range ds.fields {
			s.WriteString(m.renderField(f.label, f.value))
		}
		if len(ds.extra) > 0 {
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Bold(true).Render("ACTIVITY"))
			s.WriteString("\n")
			for _, line := range ds.extra {
				s.WriteString(fmt.Sprintf("  • %s\n", line))
			}
		} else if ds.loading {
			s.WriteString("\n")
			s.WriteString(statusStyle.Render("Loading details..."))
		}
	}

	if ls := m.current().list(); ls.err != "" {
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render("Error: "+ls.err) + statusStyle.Render("  (x: dismiss)"))
	}
	s.WriteString("\n\n")

	// Help
	s.WriteString(m.renderDetailHelp())

	return s.String()
}

func (m Model) renderField(label, value string) string {
	if value == "" {
		value = "-"
	}
	return fmt.Sprintf("%s %s\n",
		fieldLabelStyle.Render(label+":"),
		fieldValueStyle.Render(value))
}

func (m Model) renderDetailHelp() string {
	help := []string{
		"Esc: Back",
		"r: Refresh",
		"d: Delete",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace":
		m.viewMode = ViewList
	case "r":
		return m, m.current().open(m.ctx, m.selectedRow)
	case "d":
		if m.current().detail().ok {
			m.viewMode = ViewConfirmDelete
		}
	}

	return m, nil
}
