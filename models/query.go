// ABOUTME: Query descriptor for list fetches and per-resource scoping rules
// ABOUTME: Encodes filters to URL query strings and validates page/limit and scope
package models

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Query is the filter and pagination descriptor passed to a list fetch.
// Zero values mean "absent".
type Query struct {
	CompanyID string     `json:"companyId,omitempty"`
	LeadID    string     `json:"leadId,omitempty"`
	Status    string     `json:"status,omitempty"`
	Search    string     `json:"search,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Page      int        `json:"page,omitempty" validate:"gte=0"`
	Limit     int        `json:"limit,omitempty" validate:"gte=0,lte=500"`
}

// ErrMissingScope is returned when a mandatory scoping field is absent.
var ErrMissingScope = errors.New("missing required scoping field")

// ScopeRule declares which scoping fields a resource requires on list and
// detail calls.
type ScopeRule struct {
	Company bool
	Lead    bool
}

// Check returns ErrMissingScope (wrapped with the field name) when q lacks a
// field the rule requires.
func (r ScopeRule) Check(q Query) error {
	if r.Company && q.CompanyID == "" {
		return fmt.Errorf("%w: companyId is required", ErrMissingScope)
	}
	if r.Lead && q.LeadID == "" {
		return fmt.Errorf("%w: leadId is required", ErrMissingScope)
	}
	return nil
}

// Values encodes the query as URL parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.CompanyID != "" {
		v.Set("companyId", q.CompanyID)
	}
	if q.LeadID != "" {
		v.Set("leadId", q.LeadID)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.From != nil {
		v.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	if q.To != nil {
		v.Set("to", q.To.UTC().Format(time.RFC3339))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Key is a stable string form of the query, used to key cached pages.
func (q Query) Key() string {
	return q.Values().Encode()
}

// Scope returns only the scoping fields of q.
func (q Query) Scope() Query {
	return Query{CompanyID: q.CompanyID, LeadID: q.LeadID}
}

// WithDefaults fills absent scoping fields from scope.
func (q Query) WithDefaults(scope Query) Query {
	if q.CompanyID == "" {
		q.CompanyID = scope.CompanyID
	}
	if q.LeadID == "" {
		q.LeadID = scope.LeadID
	}
	return q
}

// ParseQuery decodes URL parameters into a Query. Malformed numbers and
// dates are reported as errors.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		CompanyID: v.Get("companyId"),
		LeadID:    v.Get("leadId"),
		Status:    v.Get("status"),
		Search:    v.Get("search"),
	}

	var err error
	if s := v.Get("page"); s != "" {
		if q.Page, err = strconv.Atoi(s); err != nil {
			return q, fmt.Errorf("invalid page %q: %w", s, err)
		}
	}
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil {
			return q, fmt.Errorf("invalid limit %q: %w", s, err)
		}
	}
	if s := v.Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("invalid from %q: %w", s, err)
		}
		q.From = &t
	}
	if s := v.Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("invalid to %q: %w", s, err)
		}
		q.To = &t
	}
	return q, nil
}
