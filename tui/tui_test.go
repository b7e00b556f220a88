// ABOUTME: Tests for the TUI model driven against the mock CRM server
// ABOUTME: Covers paging, tab switching, detail loading, delete confirmation, and error dismissal
package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/salesdesk/api"
	"github.com/harperreed/salesdesk/mockapi"
	"github.com/harperreed/salesdesk/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) (Model, *mockapi.Server) {
	t.Helper()
	srv := mockapi.New(mockapi.WithSeed())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	sess := session.New(session.Options{
		Transport: api.NewHTTPTransport(ts.URL+"/api", api.WithMaxRetries(0)),
		Scope:     session.StaticScope{CompanyID: "c1"},
	})
	m := NewModel(context.Background(), sess, 2)
	t.Cleanup(m.Close)
	return m, srv
}

// run executes cmd and feeds its message back, as the program loop would.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		updated, next := m.Update(msg)
		m = updated.(Model)
		cmd = next
	}
	return m
}

func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, cmd := m.Update(msg)
	return run(t, updated.(Model), cmd)
}

func TestInitialFetchRendersFirstPage(t *testing.T) {
	m, _ := newTestModel(t)
	m = run(t, m, m.current().fetch(m.ctx, 0))

	view := m.View()
	assert.Contains(t, view, "Discovery call")
	assert.Contains(t, view, "Pilot scoping")
	assert.NotContains(t, view, "Intro")
	assert.Contains(t, view, "Page 1/2")
	assert.Contains(t, view, "3 total")
}

func TestPagingWithNAndP(t *testing.T) {
	m, _ := newTestModel(t)
	m = run(t, m, m.current().fetch(m.ctx, 0))

	m = press(t, m, "n")
	view := m.View()
	assert.Contains(t, view, "Intro")
	assert.Contains(t, view, "Page 2/2")

	// Already on the last page.
	m = press(t, m, "n")
	assert.Contains(t, m.View(), "Page 2/2")

	m = press(t, m, "p")
	assert.Contains(t, m.View(), "Discovery call")
}

func TestTabSwitchLoadsNextStore(t *testing.T) {
	m, srv := newTestModel(t)
	m = run(t, m, m.current().fetch(m.ctx, 0))

	m = press(t, m, "tab")
	assert.Equal(t, 1, m.active)
	assert.Contains(t, m.View(), "Ada Lovelace")
	assert.Equal(t, 1, srv.Hits(mockapi.OpList, "leads"))

	// Returning to a loaded tab does not refetch.
	m = press(t, m, "tab")
	m = press(t, m, "tab")
	m = press(t, m, "tab")
	assert.Equal(t, 0, m.active)
	assert.Equal(t, 1, srv.Hits(mockapi.OpList, "meetings"))
}

func TestEnterOpensDetail(t *testing.T) {
	m, _ := newTestModel(t)
	m = run(t, m, m.current().fetch(m.ctx, 0))

	m = press(t, m, "enter")
	require.Equal(t, ViewDetail, m.viewMode)
	assert.Equal(t, "meeting-1", m.selectedID)

	view := m.View()
	assert.Contains(t, view, "DISCOVERY CALL")
	assert.Contains(t, view, "Activity: 2 meetings, 1 calls, 2 tasks")
	assert.Contains(t, view, "Deal: Analytical Engines pilot (proposal) $12000")

	m = press(t, m, "esc")
	assert.Equal(t, ViewList, m.viewMode)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	m, srv := newTestModel(t)
	m = run(t, m, m.current().fetch(m.ctx, 0))

	m = press(t, m, "d")
	require.Equal(t, ViewConfirmDelete, m.viewMode)
	assert.Contains(t, m.View(), "Discovery call")

	m = press(t, m, "n")
	assert.Equal(t, ViewList, m.viewMode)
	assert.Equal(t, 0, srv.Hits(mockapi.OpDelete, "meetings"))

	m = press(t, m, "d")
	m = press(t, m, "y")
	assert.Equal(t, ViewList, m.viewMode)
	assert.Equal(t, "Successfully deleted", m.deleteMessage)
	assert.Equal(t, 3, srv.Count("meetings"))

	view := m.View()
	assert.NotContains(t, view, "Discovery call")
	assert.Contains(t, view, "2 total")
}

func TestErrorIsShownUntilDismissed(t *testing.T) {
	m, srv := newTestModel(t)
	m = run(t, m, m.current().fetch(m.ctx, 0))

	srv.FailNext(mockapi.OpList, "meetings", http.StatusInternalServerError, "backend unavailable")
	m = press(t, m, "r")

	view := m.View()
	assert.Contains(t, view, "Error: backend unavailable")
	// The previous page stays visible.
	assert.Contains(t, view, "Discovery call")

	m = press(t, m, "x")
	assert.NotContains(t, m.View(), "backend unavailable")
}
