// ABOUTME: Adapts one entity store to the tab interface the TUI renders
// ABOUTME: Store actions run as tea.Cmds; views read the latest snapshot
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/salesdesk/models"
	"github.com/harperreed/salesdesk/store"
)

// actionDoneMsg is sent when a store action started by a tab finishes.
type actionDoneMsg struct {
	action string
	err    error
}

// listState is what the list view needs from a snapshot.
type listState struct {
	rows       []table.Row
	ids        []string
	page       int
	totalPages int
	total      int
	status     store.Status
	loading    bool
	err        string
	version    uint64
}

type field struct {
	label string
	value string
}

// detailState is what the detail view needs from a snapshot.
type detailState struct {
	id      string
	title   string
	fields  []field
	extra   []string
	loading bool
	ok      bool
}

// source is one tab: a store plus how to render its records.
type source interface {
	title() string
	columns() []table.Column
	list() listState
	detail() detailState
	hydrate(ctx context.Context) bool
	fetch(ctx context.Context, page int) tea.Cmd
	open(ctx context.Context, index int) tea.Cmd
	remove(ctx context.Context, id string) tea.Cmd
	resetError()
	subscribe(fn func()) func()
}

type storeSource[E models.Entity, D any] struct {
	name     string
	store    *store.Store[E, D]
	cols     []table.Column
	row      func(E) table.Row
	label    func(E) string
	query    func(models.Query) models.Query
	pageSize int
}

func (s *storeSource[E, D]) title() string {
	return s.name
}

func (s *storeSource[E, D]) columns() []table.Column {
	return s.cols
}

func (s *storeSource[E, D]) list() listState {
	st := s.store.Snapshot()
	ls := listState{
		rows:       make([]table.Row, 0, len(st.Items)),
		ids:        make([]string, 0, len(st.Items)),
		page:       st.CurrentPage,
		totalPages: st.TotalPages,
		total:      st.Total,
		status:     st.List.Status,
		loading:    st.IsLoading(),
		err:        st.Error,
		version:    st.Version,
	}
	for _, item := range st.Items {
		ls.rows = append(ls.rows, s.row(item))
		ls.ids = append(ls.ids, item.EntityID())
	}
	return ls
}

func (s *storeSource[E, D]) detail() detailState {
	st := s.store.Snapshot()
	ds := detailState{loading: st.Detail.Loading()}
	if st.Current == nil {
		return ds
	}
	ds.ok = true
	ds.id = (*st.Current).EntityID()
	ds.title = s.label(*st.Current)
	ds.fields = recordFields(*st.Current)
	if d, ok := any(st.CurrentDetails).(*models.Details); ok && d != nil {
		ds.extra = detailLines(d)
	}
	return ds
}

func (s *storeSource[E, D]) defaultQuery() models.Query {
	return s.query(models.Query{Page: 1, Limit: s.pageSize})
}

func (s *storeSource[E, D]) hydrate(ctx context.Context) bool {
	return s.store.Hydrate(ctx, s.defaultQuery())
}

// fetch loads page with the current filters, or the default query when
// nothing has been listed yet.
func (s *storeSource[E, D]) fetch(ctx context.Context, page int) tea.Cmd {
	st := s.store.Snapshot()
	q := st.Filters
	if q == (models.Query{}) {
		q = s.defaultQuery()
	}
	if page > 0 {
		q.Page = page
	}
	return func() tea.Msg {
		s.store.FetchPage(ctx, q)
		return actionDoneMsg{action: "fetch"}
	}
}

func (s *storeSource[E, D]) open(ctx context.Context, index int) tea.Cmd {
	st := s.store.Snapshot()
	if index < 0 || index >= len(st.Items) {
		return nil
	}
	item := st.Items[index]
	s.store.SetCurrent(&item)
	id := item.EntityID()
	return func() tea.Msg {
		s.store.FetchByID(ctx, id)
		return actionDoneMsg{action: "detail"}
	}
}

func (s *storeSource[E, D]) remove(ctx context.Context, id string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.store.Remove(ctx, id)
		return actionDoneMsg{action: "delete", err: err}
	}
}

func (s *storeSource[E, D]) resetError() {
	s.store.ResetError()
}

func (s *storeSource[E, D]) subscribe(fn func()) func() {
	return s.store.Subscribe(func(store.State[E, D]) { fn() })
}

func recordFields(v any) []field {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	values := map[string]any{}
	_ = json.Unmarshal(data, &values)

	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "aliasIds" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	fields := make([]field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, field{label: k, value: formatValue(values[k])})
	}
	return fields
}

func detailLines(d *models.Details) []string {
	var lines []string
	if d.Owner != nil && d.Owner.Name != "" {
		lines = append(lines, fmt.Sprintf("Owner: %s", d.Owner.Name))
	}
	lines = append(lines, fmt.Sprintf("Activity: %d meetings, %d calls, %d tasks",
		d.Counts.Meetings, d.Counts.Calls, d.Counts.Tasks))
	for _, deal := range d.Deals {
		lines = append(lines, fmt.Sprintf("Deal: %s (%s) $%d", deal.Title, deal.Stage, deal.Amount/100))
	}
	return lines
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	}
	data, _ := json.Marshal(v)
	return string(data)
}
