// ABOUTME: SQLite-backed page snapshot repository
// ABOUTME: Saves, loads, prunes, and clears cached list pages
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SnapshotRepository persists list pages in the page_snapshots table.
type SnapshotRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db, now: time.Now}
}

// SavePage stores data for (resource, key), replacing any previous page.
func (r *SnapshotRepository) SavePage(ctx context.Context, resource, key string, data []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO page_snapshots (resource, query_key, data, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(resource, query_key) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at
	`, resource, key, data, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save %s page: %w", resource, err)
	}
	return nil
}

// LoadPage returns the stored page, or nil when there is none.
func (r *SnapshotRepository) LoadPage(ctx context.Context, resource, key string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT data FROM page_snapshots WHERE resource = ? AND query_key = ?
	`, resource, key).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s page: %w", resource, err)
	}
	return data, nil
}

// Prune deletes pages saved before cutoff and returns how many were removed.
func (r *SnapshotRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM page_snapshots WHERE saved_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes every stored page. Called on logout.
func (r *SnapshotRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM page_snapshots`); err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return nil
}
