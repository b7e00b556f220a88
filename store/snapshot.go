// ABOUTME: Page snapshot persistence so the last list can be shown before the first fetch
// ABOUTME: Snapshotter is implemented by the sqlite and badger caches
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harperreed/salesdesk/models"
	"go.uber.org/zap"
)

// Snapshotter stores serialized pages keyed by resource and query key.
// LoadPage returns nil data and no error when nothing is stored.
type Snapshotter interface {
	SavePage(ctx context.Context, resource, key string, data []byte) error
	LoadPage(ctx context.Context, resource, key string) ([]byte, error)
	Clear(ctx context.Context) error
}

type pageSnapshot[E models.Entity] struct {
	Items       []E       `json:"items"`
	Total       int       `json:"total"`
	CurrentPage int       `json:"currentPage"`
	TotalPages  int       `json:"totalPages"`
	SavedAt     time.Time `json:"savedAt"`
}

func (s *Store[E, D]) saveSnapshot(ctx context.Context, q models.Query, st State[E, D]) {
	if s.snapshots == nil {
		return
	}
	data, err := json.Marshal(pageSnapshot[E]{
		Items:       st.Items,
		Total:       st.Total,
		CurrentPage: st.CurrentPage,
		TotalPages:  st.TotalPages,
		SavedAt:     time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to encode page snapshot", zap.Error(err))
		return
	}
	if err := s.snapshots.SavePage(ctx, s.backend.Name(), q.Key(), data); err != nil {
		s.logger.Warn("failed to save page snapshot", zap.Error(err))
	}
}

// Hydrate fills Items from the snapshot saved for q, unless a list request
// has already started or completed. It reports whether anything was loaded.
// List status stays Idle: hydrated data is a placeholder, not a fetch.
func (s *Store[E, D]) Hydrate(ctx context.Context, q models.Query) bool {
	if s.snapshots == nil {
		return false
	}
	data, err := s.snapshots.LoadPage(ctx, s.backend.Name(), q.Key())
	if err != nil {
		s.logger.Warn("failed to load page snapshot", zap.Error(err))
		return false
	}
	if data == nil {
		return false
	}

	var snap pageSnapshot[E]
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("discarding unreadable page snapshot", zap.Error(err))
		return false
	}

	s.mu.Lock()
	if s.fetched || s.state.List.Loading() {
		s.mu.Unlock()
		return false
	}
	next := s.state
	next.Items = snap.Items
	next.Total = snap.Total
	next.CurrentPage = snap.CurrentPage
	next.TotalPages = snap.TotalPages
	next.Filters = q
	st, fns := s.commitLocked(next)
	s.mu.Unlock()
	notify(st, fns)

	s.logger.Debug("hydrated from snapshot", zap.Int("items", len(snap.Items)), zap.Time("saved_at", snap.SavedAt))
	return true
}
