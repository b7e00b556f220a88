// ABOUTME: Per-resource request builders for meetings, leads, calls, and tasks
// ABOUTME: Builds paths and queries, validates payloads, and decodes envelopes into typed results
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/harperreed/salesdesk/models"
)

// Spec describes one REST resource.
type Spec struct {
	// Name is the collection path segment, e.g. "meetings".
	Name string
	// Singular names the <resource>Id alias, e.g. "meeting".
	Singular    string
	Scope       models.ScopeRule
	Attachments bool
}

// Resource is the typed client for one collection. E is the record type and
// D the detail projection returned by Get.
type Resource[E models.Entity, D any] struct {
	t        Transport
	spec     Spec
	validate *validator.Validate
}

func NewResource[E models.Entity, D any](t Transport, spec Spec) *Resource[E, D] {
	return &Resource[E, D]{
		t:        t,
		spec:     spec,
		validate: validator.New(),
	}
}

func Meetings(t Transport) *Resource[models.Meeting, models.Details] {
	return NewResource[models.Meeting, models.Details](t, Spec{
		Name:        "meetings",
		Singular:    "meeting",
		Scope:       models.ScopeRule{Company: true},
		Attachments: true,
	})
}

func Leads(t Transport) *Resource[models.Lead, models.Details] {
	return NewResource[models.Lead, models.Details](t, Spec{
		Name:     "leads",
		Singular: "lead",
		Scope:    models.ScopeRule{Company: true},
	})
}

func Calls(t Transport) *Resource[models.Call, models.Details] {
	return NewResource[models.Call, models.Details](t, Spec{
		Name:     "calls",
		Singular: "call",
		Scope:    models.ScopeRule{Company: true},
	})
}

func Tasks(t Transport) *Resource[models.Task, models.Details] {
	return NewResource[models.Task, models.Details](t, Spec{
		Name:     "tasks",
		Singular: "task",
		Scope:    models.ScopeRule{Company: true},
	})
}

func (r *Resource[E, D]) Name() string {
	return r.spec.Name
}

func (r *Resource[E, D]) Scope() models.ScopeRule {
	return r.spec.Scope
}

// List fetches one page. The result is clamped so callers never see
// total < len(items).
func (r *Resource[E, D]) List(ctx context.Context, q models.Query) (*models.PageResult[E], error) {
	if err := r.validate.Struct(q); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	// Either end of the range may be open.
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, fmt.Errorf("invalid query: date range ends before it starts")
	}

	resp, err := r.t.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   r.spec.Name,
		Query:  q.Values(),
	})
	if err != nil {
		return nil, err
	}

	result, err := unwrap(resp)
	if err != nil {
		return nil, err
	}

	page, err := r.decodePage(result)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "unexpected response from server", RequestID: resp.RequestID, Err: err}
	}
	page.Clamp()
	return page, nil
}

// Get fetches one record and its detail projection. scope carries the
// tenant fields for multi-tenant backends and may be empty.
func (r *Resource[E, D]) Get(ctx context.Context, id string, scope models.Query) (*E, *D, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("id is required")
	}

	resp, err := r.t.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   r.itemPath(id),
		Query:  scope.Scope().Values(),
	})
	if err != nil {
		return nil, nil, err
	}

	result, err := unwrap(resp)
	if err != nil {
		return nil, nil, err
	}

	entity, err := models.DecodeEntity[E](result, r.spec.Singular)
	if err != nil {
		return nil, nil, &Error{StatusCode: resp.StatusCode, Message: "unexpected response from server", RequestID: resp.RequestID, Err: err}
	}
	if entity == nil {
		return nil, nil, &Error{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("%s %s not found", r.spec.Singular, id), RequestID: resp.RequestID}
	}

	var details D
	if err := json.Unmarshal(result, &details); err != nil {
		return nil, nil, &Error{StatusCode: resp.StatusCode, Message: "unexpected response from server", RequestID: resp.RequestID, Err: err}
	}
	return entity, &details, nil
}

// Create validates payload and posts it. The returned record carries the
// server-assigned canonical id.
func (r *Resource[E, D]) Create(ctx context.Context, payload any) (*E, error) {
	if err := r.validatePayload(payload); err != nil {
		return nil, err
	}

	resp, err := r.t.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   r.spec.Name,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}

	result, err := unwrap(resp)
	if err != nil {
		return nil, err
	}

	entity, err := models.DecodeEntity[E](result, r.spec.Singular)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "server did not return the created record", RequestID: resp.RequestID, Err: err}
	}
	if entity == nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "server did not return the created record", RequestID: resp.RequestID}
	}
	return entity, nil
}

// Update sends a partial payload. The result is nil when the server answers
// without echoing the record.
func (r *Resource[E, D]) Update(ctx context.Context, id string, payload any) (*E, error) {
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	if err := r.validatePayload(payload); err != nil {
		return nil, err
	}

	resp, err := r.t.Do(ctx, &Request{
		Method: http.MethodPut,
		Path:   r.itemPath(id),
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}

	result, err := unwrap(resp)
	if err != nil {
		return nil, err
	}

	entity, err := models.DecodeEntity[E](result, r.spec.Singular)
	if err != nil {
		// The update went through; the echo is just not usable.
		return nil, nil
	}
	return entity, nil
}

func (r *Resource[E, D]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	resp, err := r.t.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   r.itemPath(id),
	})
	if err != nil {
		return err
	}
	_, err = unwrap(resp)
	return err
}

// BulkDelete removes ids in a single request.
func (r *Resource[E, D]) BulkDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("ids are required")
	}
	resp, err := r.t.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   r.spec.Name + "/bulk-delete",
		Body:   map[string][]string{"ids": ids},
	})
	if err != nil {
		return err
	}
	_, err = unwrap(resp)
	return err
}

// Upload attaches a file to a record. progress receives 0-99 while the body
// is streaming; completion is reported by the caller.
func (r *Resource[E, D]) Upload(ctx context.Context, id string, file models.File, progress func(int)) (*models.Attachment, error) {
	if !r.spec.Attachments {
		return nil, ErrUnsupported
	}
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	if file.Name == "" || file.Data == nil {
		return nil, fmt.Errorf("file name and data are required")
	}

	resp, err := r.t.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   r.itemPath(id) + "/attachments",
		Upload: &Upload{
			Field:    "file",
			FileName: file.Name,
			Reader:   file.Data,
			Size:     file.Size,
			Progress: progress,
		},
	})
	if err != nil {
		return nil, err
	}

	result, err := unwrap(resp)
	if err != nil {
		return nil, err
	}

	var attachment models.Attachment
	if len(bytes.TrimSpace(result)) > 0 && !bytes.Equal(bytes.TrimSpace(result), []byte("null")) {
		if err := json.Unmarshal(result, &attachment); err != nil {
			return nil, &Error{StatusCode: resp.StatusCode, Message: "unexpected response from server", RequestID: resp.RequestID, Err: err}
		}
	}
	if attachment.Name == "" {
		attachment.Name = file.Name
	}
	return &attachment, nil
}

func (r *Resource[E, D]) itemPath(id string) string {
	return r.spec.Name + "/" + url.PathEscape(id)
}

func (r *Resource[E, D]) validatePayload(payload any) error {
	if payload == nil {
		return fmt.Errorf("payload is required")
	}
	if err := r.validate.Struct(payload); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			// Not a struct (e.g. a map); the server validates it.
			return nil
		}
		return fmt.Errorf("invalid %s: %w", r.spec.Singular, err)
	}
	return nil
}

// decodePage accepts {total, currentPage, totalPages, items} or a bare array.
func (r *Resource[E, D]) decodePage(result json.RawMessage) (*models.PageResult[E], error) {
	trimmed := bytes.TrimSpace(result)
	page := &models.PageResult[E]{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return page, nil
	}

	var rawItems []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rawItems); err != nil {
			return nil, err
		}
	} else {
		var envelope struct {
			Total       int               `json:"total"`
			CurrentPage int               `json:"currentPage"`
			TotalPages  int               `json:"totalPages"`
			Items       []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		page.Total = envelope.Total
		page.CurrentPage = envelope.CurrentPage
		page.TotalPages = envelope.TotalPages
		rawItems = envelope.Items
	}

	page.Items = make([]E, 0, len(rawItems))
	for i, raw := range rawItems {
		item, err := models.DecodeEntity[E](raw, r.spec.Singular)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if item != nil {
			page.Items = append(page.Items, *item)
		}
	}
	return page, nil
}

// unwrap decodes the envelope and returns its raw result. A 2xx with
// success=false is reported as an *Error.
func unwrap(resp *Response) (json.RawMessage, error) {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '[' {
		return body, nil
	}
	var env models.Envelope[json.RawMessage]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "unexpected response from server", RequestID: resp.RequestID, Err: err}
	}
	if !env.OK() {
		status := env.StatusCode
		if status == 0 {
			status = resp.StatusCode
		}
		msg := env.Message
		if msg == "" {
			msg = fallbackMessage(status)
		}
		return nil, &Error{StatusCode: status, Message: msg, RequestID: resp.RequestID}
	}
	if env.Result == nil && env.Success == nil && env.StatusCode == 0 && env.Message == "" {
		// Bare payload without an envelope.
		return body, nil
	}
	return env.Result, nil
}
