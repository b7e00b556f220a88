// ABOUTME: MCP tool handlers over the entity stores
// ABOUTME: One generic handler set per resource: list, get, create, update, delete, bulk delete
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/salesdesk/models"
	"github.com/harperreed/salesdesk/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// EntityHandlers serves the tools of one resource. I is the create payload
// type and P the update payload type; tool arguments are decoded into them
// so they are validated before anything is sent.
type EntityHandlers[E models.Entity, D any, I any, P any] struct {
	store    *store.Store[E, D]
	singular string
	query    func(models.Query) models.Query
}

// NewEntityHandlers builds handlers for s. query fills the scoping fields a
// tool call leaves out.
func NewEntityHandlers[E models.Entity, D any, I any, P any](s *store.Store[E, D], singular string, query func(models.Query) models.Query) *EntityHandlers[E, D, I, P] {
	if query == nil {
		query = func(q models.Query) models.Query { return q }
	}
	return &EntityHandlers[E, D, I, P]{store: s, singular: singular, query: query}
}

type ListInput struct {
	CompanyID string `json:"company_id,omitempty" jsonschema:"Company scope (defaults to the configured company)"`
	LeadID    string `json:"lead_id,omitempty" jsonschema:"Only records for this lead"`
	Status    string `json:"status,omitempty" jsonschema:"Filter by status"`
	Search    string `json:"search,omitempty" jsonschema:"Free text search"`
	From      string `json:"from,omitempty" jsonschema:"Start of date range in RFC3339 format"`
	To        string `json:"to,omitempty" jsonschema:"End of date range in RFC3339 format"`
	Page      int    `json:"page,omitempty" jsonschema:"Page number starting at 1"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Page size (max 500)"`
}

func (in ListInput) toQuery() (models.Query, error) {
	q := models.Query{
		CompanyID: in.CompanyID,
		LeadID:    in.LeadID,
		Status:    in.Status,
		Search:    in.Search,
		Page:      in.Page,
		Limit:     in.Limit,
	}
	if in.From != "" {
		t, err := time.Parse(time.RFC3339, in.From)
		if err != nil {
			return q, fmt.Errorf("invalid from (use RFC3339): %w", err)
		}
		q.From = &t
	}
	if in.To != "" {
		t, err := time.Parse(time.RFC3339, in.To)
		if err != nil {
			return q, fmt.Errorf("invalid to (use RFC3339): %w", err)
		}
		q.To = &t
	}
	return q, nil
}

type ListOutput struct {
	Items       []map[string]any `json:"items"`
	Total       int              `json:"total"`
	CurrentPage int              `json:"current_page"`
	TotalPages  int              `json:"total_pages"`
}

type GetInput struct {
	ID string `json:"id" jsonschema:"Record ID (required)"`
}

type RecordOutput struct {
	Record  map[string]any `json:"record"`
	Details map[string]any `json:"details,omitempty"`
}

type CreateInput struct {
	Fields map[string]any `json:"fields" jsonschema:"Record fields in the API's camelCase form, e.g. title, companyId, leadId"`
}

type UpdateInput struct {
	ID     string         `json:"id" jsonschema:"Record ID (required)"`
	Fields map[string]any `json:"fields" jsonschema:"Fields to change; omitted fields keep their value"`
}

type DeleteInput struct {
	ID string `json:"id" jsonschema:"Record ID (required)"`
}

type BulkDeleteInput struct {
	IDs []string `json:"ids" jsonschema:"Record IDs to delete (at least one)"`
}

type DeleteOutput struct {
	Deleted   []string `json:"deleted"`
	Remaining int      `json:"remaining"`
}

func (h *EntityHandlers[E, D, I, P]) List(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	q, err := input.toQuery()
	if err != nil {
		return nil, ListOutput{}, err
	}

	h.store.FetchPage(ctx, h.query(q))
	st := h.store.Snapshot()
	if err := requestError(st.List, st.Error); err != nil {
		return nil, ListOutput{}, err
	}

	items := make([]map[string]any, 0, len(st.Items))
	for _, item := range st.Items {
		m, err := toMap(item)
		if err != nil {
			return nil, ListOutput{}, err
		}
		items = append(items, m)
	}

	return nil, ListOutput{
		Items:       items,
		Total:       st.Total,
		CurrentPage: st.CurrentPage,
		TotalPages:  st.TotalPages,
	}, nil
}

func (h *EntityHandlers[E, D, I, P]) Get(ctx context.Context, _ *mcp.CallToolRequest, input GetInput) (*mcp.CallToolResult, RecordOutput, error) {
	if input.ID == "" {
		return nil, RecordOutput{}, fmt.Errorf("id is required")
	}

	h.store.FetchByID(ctx, input.ID)
	st := h.store.Snapshot()
	if err := requestError(st.Detail, st.Error); err != nil {
		return nil, RecordOutput{}, err
	}
	if st.Current == nil {
		return nil, RecordOutput{}, fmt.Errorf("%s %s not found", h.singular, input.ID)
	}

	out, err := recordOutput(*st.Current, st.CurrentDetails)
	return nil, out, err
}

func (h *EntityHandlers[E, D, I, P]) Create(ctx context.Context, _ *mcp.CallToolRequest, input CreateInput) (*mcp.CallToolResult, RecordOutput, error) {
	fields := input.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	if _, ok := fields["companyId"]; !ok {
		if scope := h.query(models.Query{}); scope.CompanyID != "" {
			fields["companyId"] = scope.CompanyID
		}
	}

	payload := new(I)
	if err := decodeFields(fields, payload); err != nil {
		return nil, RecordOutput{}, fmt.Errorf("invalid %s fields: %w", h.singular, err)
	}

	entity, err := h.store.Create(ctx, payload)
	if err != nil {
		return nil, RecordOutput{}, err
	}

	out, err := recordOutput[E, D](*entity, nil)
	return nil, out, err
}

func (h *EntityHandlers[E, D, I, P]) Update(ctx context.Context, _ *mcp.CallToolRequest, input UpdateInput) (*mcp.CallToolResult, RecordOutput, error) {
	if input.ID == "" {
		return nil, RecordOutput{}, fmt.Errorf("id is required")
	}
	if len(input.Fields) == 0 {
		return nil, RecordOutput{}, fmt.Errorf("at least one field is required")
	}

	patch := new(P)
	if err := decodeFields(input.Fields, patch); err != nil {
		return nil, RecordOutput{}, fmt.Errorf("invalid %s fields: %w", h.singular, err)
	}

	entity, err := h.store.Update(ctx, input.ID, patch)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	if entity == nil {
		return nil, RecordOutput{}, fmt.Errorf("%s %s was updated but could not be read back", h.singular, input.ID)
	}

	out, err := recordOutput[E, D](*entity, nil)
	return nil, out, err
}

// Delete removes a record held in the current page. A store that has never
// listed loads the default page first so the record can be found.
func (h *EntityHandlers[E, D, I, P]) Delete(ctx context.Context, _ *mcp.CallToolRequest, input DeleteInput) (*mcp.CallToolResult, DeleteOutput, error) {
	if input.ID == "" {
		return nil, DeleteOutput{}, fmt.Errorf("id is required")
	}
	h.ensureListed(ctx)

	if _, err := h.store.Remove(ctx, input.ID); err != nil {
		return nil, DeleteOutput{}, err
	}
	return nil, DeleteOutput{
		Deleted:   []string{input.ID},
		Remaining: h.store.Snapshot().Total,
	}, nil
}

func (h *EntityHandlers[E, D, I, P]) BulkDelete(ctx context.Context, _ *mcp.CallToolRequest, input BulkDeleteInput) (*mcp.CallToolResult, DeleteOutput, error) {
	// An empty selection is rejected by the store without loading anything.
	if len(input.IDs) > 0 {
		h.ensureListed(ctx)
	}

	if err := h.store.BulkRemove(ctx, input.IDs); err != nil {
		return nil, DeleteOutput{}, err
	}
	deleted := input.IDs
	if deleted == nil {
		deleted = []string{}
	}
	return nil, DeleteOutput{
		Deleted:   deleted,
		Remaining: h.store.Snapshot().Total,
	}, nil
}

func (h *EntityHandlers[E, D, I, P]) ensureListed(ctx context.Context) {
	if h.store.Snapshot().List.Status == store.StatusIdle {
		h.store.FetchPage(ctx, h.query(models.Query{}))
	}
}

// requestError turns a failed request state into a tool error.
func requestError(rs store.RequestState, message string) error {
	switch rs.Status {
	case store.StatusFailed:
		if rs.Err != nil {
			return rs.Err
		}
		return fmt.Errorf("%s", message)
	case store.StatusLoading:
		return fmt.Errorf("superseded by a newer request")
	}
	return nil
}

func recordOutput[E any, D any](entity E, details *D) (RecordOutput, error) {
	record, err := toMap(entity)
	if err != nil {
		return RecordOutput{}, err
	}
	out := RecordOutput{Record: record}
	if details != nil {
		if out.Details, err = toMap(*details); err != nil {
			return RecordOutput{}, err
		}
	}
	return out, nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return m, nil
}

func decodeFields(fields map[string]any, dst any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
