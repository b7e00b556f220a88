// ABOUTME: Database schema for the local page cache
// ABOUTME: Stores serialized list pages per resource and query
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS page_snapshots (
	resource TEXT NOT NULL,
	query_key TEXT NOT NULL,
	data BLOB NOT NULL,
	saved_at DATETIME NOT NULL,
	PRIMARY KEY (resource, query_key)
);

CREATE INDEX IF NOT EXISTS idx_page_snapshots_saved_at ON page_snapshots(saved_at);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
