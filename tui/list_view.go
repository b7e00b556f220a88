package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/salesdesk/store"
)

func (m Model) renderListView() string {
	var s strings.Builder

	// Title
	s.WriteString(titleStyle.Render("SALESDESK"))
	s.WriteString("\n\n")

	// Tabs
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	ls := m.current().list()

	// Table
	s.WriteString(m.renderTable(ls))
	s.WriteString("\n")

	s.WriteString(m.renderStatus(ls))
	s.WriteString("\n")

	// Help
	s.WriteString(m.renderListHelp())

	return s.String()
}

func (m Model) renderTabs() string {
	var rendered []string

	for i, tab := range m.tabs {
		if i == m.active {
			rendered = append(rendered, tabActiveStyle.Render(tab.title()))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(tab.title()))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderTable(ls listState) string {
	if len(ls.rows) == 0 {
		if ls.loading {
			return statusStyle.Render("Loading...")
		}
		return statusStyle.Render("Nothing here yet")
	}

	height := m.height - 12
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(m.current().columns()),
		table.WithRows(ls.rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	// Set selected row
	if m.selectedRow < len(ls.rows) {
		t.SetCursor(m.selectedRow)
	}

	return t.View()
}

// renderStatus shows paging, the loading indicator, and the dismissible
// error line.
func (m Model) renderStatus(ls listState) string {
	var parts []string
	if ls.totalPages > 0 {
		parts = append(parts, fmt.Sprintf("Page %d/%d", ls.page, ls.totalPages))
	}
	parts = append(parts, fmt.Sprintf("%d total", ls.total))
	if ls.loading {
		parts = append(parts, "loading...")
	} else if ls.status == store.StatusIdle && len(ls.rows) > 0 {
		parts = append(parts, "cached")
	}

	line := statusStyle.Render(strings.Join(parts, " • "))
	if ls.err != "" {
		line += "\n" + errorStyle.Render("Error: "+ls.err) + statusStyle.Render("  (x: dismiss)")
	}
	if m.deleteMessage != "" {
		line += "\n" + statusStyle.Render(m.deleteMessage)
	}
	return line
}

func (m Model) renderListHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Tab: Switch tabs",
		"Enter: View details",
		"n/p: Next/prev page",
		"r: Refresh",
		"d: Delete",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ls := m.current().list()

	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < len(ls.rows)-1 {
			m.selectedRow++
		}
	case "tab", "shift+tab":
		step := 1
		if msg.String() == "shift+tab" {
			step = len(m.tabs) - 1
		}
		m.active = (m.active + step) % len(m.tabs)
		m.selectedRow = 0
		m.deleteMessage = ""
		tab := m.current()
		if tab.list().status == store.StatusIdle {
			tab.hydrate(m.ctx)
			return m, tab.fetch(m.ctx, 0)
		}
	case "n", "right":
		if ls.page < ls.totalPages && !ls.loading {
			m.selectedRow = 0
			return m, m.current().fetch(m.ctx, ls.page+1)
		}
	case "p", "left":
		if ls.page > 1 && !ls.loading {
			m.selectedRow = 0
			return m, m.current().fetch(m.ctx, ls.page-1)
		}
	case "r":
		return m, m.current().fetch(m.ctx, 0)
	case "enter":
		if m.selectedRow < len(ls.ids) {
			m.viewMode = ViewDetail
			m.selectedID = ls.ids[m.selectedRow]
			return m, m.current().open(m.ctx, m.selectedRow)
		}
	case "d":
		if m.selectedRow < len(ls.ids) {
			m.selectedID = ls.ids[m.selectedRow]
			m.viewMode = ViewConfirmDelete
		}
	}

	return m, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatCents(v int64) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("$%d", v/100)
}
