// ABOUTME: Immutable state snapshots published by an entity store
// ABOUTME: Tracks list, detail, and mutation request status separately
package store

import "github.com/harperreed/salesdesk/models"

// Status is the lifecycle of one kind of request.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// RequestState is the status of the latest request of one kind.
type RequestState struct {
	Status Status
	Err    error
}

func (r RequestState) Loading() bool {
	return r.Status == StatusLoading
}

// State is a snapshot of a store. Snapshots are never mutated after they are
// published; treat slices and maps as read-only.
type State[E models.Entity, D any] struct {
	Items       []E
	Total       int
	CurrentPage int
	TotalPages  int

	Current        *E
	CurrentDetails *D

	// Filters is the last query that produced Items.
	Filters models.Query
	// Error is the message of the most recent failure, cleared by ResetError
	// or a successful list fetch.
	Error string

	UploadProgress map[string]int

	List   RequestState
	Detail RequestState
	Mutate RequestState

	// Version increases with every published change.
	Version uint64
}

// IsLoading reports whether any request is in flight.
func (s State[E, D]) IsLoading() bool {
	return s.List.Loading() || s.Detail.Loading() || s.Mutate.Loading()
}

// Find returns the item whose canonical id is id.
func (s State[E, D]) Find(id string) (E, bool) {
	for _, item := range s.Items {
		if item.EntityID() == id {
			return item, true
		}
	}
	var zero E
	return zero, false
}
