// ABOUTME: Response envelope and page shapes returned by the CRM API
// ABOUTME: Also defines the detail projection fetched by get-by-id
package models

import (
	"encoding/json"
	"io"
)

// Envelope wraps every API response body. Success is a pointer because some
// endpoints omit it; absent means success.
type Envelope[T any] struct {
	Success    *bool  `json:"success,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message,omitempty"`
	Result     T      `json:"result"`
}

func (e Envelope[T]) OK() bool {
	return e.Success == nil || *e.Success
}

// PageResult is one page of a list response.
type PageResult[E any] struct {
	Total       int `json:"total"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	Items       []E `json:"items"`
}

// Clamp repairs missing or inconsistent pagination fields so that
// total >= len(items) and 0 <= currentPage <= totalPages.
func (p *PageResult[E]) Clamp() {
	if p.Total < len(p.Items) {
		p.Total = len(p.Items)
	}
	if p.TotalPages < 0 {
		p.TotalPages = 0
	}
	if p.TotalPages == 0 && p.Total > 0 {
		p.TotalPages = 1
	}
	if p.CurrentPage < 0 {
		p.CurrentPage = 0
	}
	if p.CurrentPage > p.TotalPages {
		p.CurrentPage = p.TotalPages
	}
}

type Owner struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type Counts struct {
	Tasks    int `json:"tasks"`
	Calls    int `json:"calls"`
	Meetings int `json:"meetings"`
}

type DealSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Stage  string `json:"stage,omitempty"`
	Amount int64  `json:"amount,omitempty"` // in cents
}

// Details is the denormalized projection of one record returned alongside it
// by a get-by-id call.
type Details struct {
	Owner   *Owner                     `json:"owner,omitempty"`
	Counts  Counts                     `json:"counts"`
	Deals   []DealSummary              `json:"deals,omitempty"`
	Related map[string]json.RawMessage `json:"related,omitempty"`
}

// File is an attachment to upload. Size may be 0 when unknown, in which case
// progress is only reported at completion.
type File struct {
	Name string
	Size int64
	Data io.Reader
}
