// ABOUTME: MCP resource handlers exposing what the stores currently hold
// ABOUTME: crm://<resource> is the held page, crm://<resource>/<id> one held record
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/salesdesk/models"
	"github.com/harperreed/salesdesk/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// view reads one store without touching the network.
type view struct {
	page   func() any
	record func(id string) (any, bool)
}

// ResourceHandlers serves reads of store state. Nothing here fetches; a
// resource reflects the last list or detail call made through the tools.
type ResourceHandlers struct {
	views map[string]view
}

func NewResourceHandlers() *ResourceHandlers {
	return &ResourceHandlers{views: map[string]view{}}
}

type pageView struct {
	Items       []any        `json:"items"`
	Total       int          `json:"total"`
	CurrentPage int          `json:"currentPage"`
	TotalPages  int          `json:"totalPages"`
	Filters     models.Query `json:"filters"`
	Error       string       `json:"error,omitempty"`
	Status      string       `json:"status"`
	Loading     bool         `json:"loading"`
}

type recordView struct {
	Record  any `json:"record"`
	Details any `json:"details,omitempty"`
}

// AddStore makes s readable under crm://<s.Name()>.
func AddStore[E models.Entity, D any](h *ResourceHandlers, s *store.Store[E, D]) {
	h.views[s.Name()] = view{
		page: func() any {
			st := s.Snapshot()
			items := make([]any, 0, len(st.Items))
			for _, item := range st.Items {
				items = append(items, item)
			}
			return pageView{
				Items:       items,
				Total:       st.Total,
				CurrentPage: st.CurrentPage,
				TotalPages:  st.TotalPages,
				Filters:     st.Filters,
				Error:       st.Error,
				Status:      st.List.Status.String(),
				Loading:     st.IsLoading(),
			}
		},
		record: func(id string) (any, bool) {
			st := s.Snapshot()
			if st.Current != nil && (*st.Current).Matches(id) {
				rv := recordView{Record: *st.Current}
				if st.CurrentDetails != nil {
					rv.Details = *st.CurrentDetails
				}
				return rv, true
			}
			for _, item := range st.Items {
				if item.Matches(id) {
					return recordView{Record: item}, true
				}
			}
			return nil, false
		},
	}
}

// Names lists the registered resource names.
func (h *ResourceHandlers) Names() []string {
	names := make([]string, 0, len(h.views))
	for name := range h.views {
		names = append(names, name)
	}
	return names
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, "crm://") {
		return nil, fmt.Errorf("invalid URI scheme: expected crm://")
	}

	path := strings.Trim(strings.TrimPrefix(uri, "crm://"), "/")
	parts := strings.SplitN(path, "/", 2)

	v, ok := h.views[parts[0]]
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	var body any
	if len(parts) == 1 {
		body = v.page()
	} else {
		body, ok = v.record(parts[1])
		if !ok {
			return nil, mcp.ResourceNotFoundError(uri)
		}
	}

	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", parts[0], err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
