package storage

import "database/sql"

// migrateV001 creates the initial clipstash schema. created_at is stored
// as integer nanoseconds since the Unix epoch so that recency ordering
// survives round-trips at full resolution. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			id          TEXT PRIMARY KEY,
			type        TEXT NOT NULL,
			value       TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			alias       TEXT NOT NULL DEFAULT '',
			file_size   INTEGER NOT NULL DEFAULT 0,
			file_path   TEXT NOT NULL DEFAULT '',
			mime_type   TEXT NOT NULL DEFAULT '',
			content_key TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_entries_created_at  ON entries(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_content_key ON entries(content_key)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_type        ON entries(type)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
