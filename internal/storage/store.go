package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ContentStore defines the interface for clipboard history persistence.
// It is the sole writer of durable state; in-memory views held by callers
// are projections, never the source of truth.
type ContentStore interface {
	GetAll(ctx context.Context) ([]Entry, error)
	GetByID(ctx context.Context, id string) (*Entry, error)
	GetByContentKey(ctx context.Context, key string) (*Entry, error)
	Insert(ctx context.Context, entry *Entry, payload []byte) error
	Update(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, id string) error
	DeleteOldestKeepingNewest(ctx context.Context, count int) (int64, error)
	DeleteAll(ctx context.Context) error
	Payload(ctx context.Context, entry *Entry) ([]byte, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// SQLiteStore implements ContentStore backed by a SQLite database plus a
// payload directory tree under the storage root.
type SQLiteStore struct {
	db   *sql.DB
	root string

	// mu serializes all mutations (insert/update/delete/retention) so a
	// retention sweep can never interleave with a racing insert. Reads go
	// straight to SQLite, which serves consistent snapshots under WAL.
	mu sync.Mutex

	// Prepared statements
	insertEntry *sql.Stmt
	getEntry    *sql.Stmt
	getByKey    *sql.Stmt
	updateEntry *sql.Stmt
	deleteEntry *sql.Stmt
}

const entryColumns = "id, type, value, created_at, alias, file_size, file_path, mime_type, content_key"

// NewSQLiteStore creates a SQLiteStore from an already-opened and migrated
// database. root is the storage directory that payload paths are resolved
// against.
func NewSQLiteStore(db *sql.DB, root string) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, root: root}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertEntry, err = s.db.Prepare(`
		INSERT INTO entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getEntry, err = s.db.Prepare(`
		SELECT ` + entryColumns + ` FROM entries WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.getByKey, err = s.db.Prepare(`
		SELECT ` + entryColumns + ` FROM entries
		WHERE content_key = ? ORDER BY created_at DESC LIMIT 1
	`)
	if err != nil {
		return err
	}

	s.updateEntry, err = s.db.Prepare(`
		UPDATE entries
		SET type = ?, value = ?, created_at = ?, alias = ?,
		    file_size = ?, file_path = ?, mime_type = ?, content_key = ?
		WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.deleteEntry, err = s.db.Prepare(`DELETE FROM entries WHERE id = ?`)
	if err != nil {
		return err
	}

	return nil
}

// GetAll returns every entry ordered by creation time descending. Ties are
// broken by insertion order, newest insert first. Rows that fail to scan
// or carry an unknown content type are skipped with a warning rather than
// failing the whole load.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]Entry, error) {
	return s.scanEntries(ctx, `
		SELECT `+entryColumns+` FROM entries
		ORDER BY created_at DESC, rowid DESC
	`)
}

// GetByID retrieves a single entry, returning (nil, nil) if absent.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*Entry, error) {
	return s.scanOne(s.getEntry.QueryRowContext(ctx, id))
}

// GetByContentKey returns the most recent entry with the given
// deduplication key, or (nil, nil) if no entry matches.
func (s *SQLiteStore) GetByContentKey(ctx context.Context, key string) (*Entry, error) {
	return s.scanOne(s.getByKey.QueryRowContext(ctx, key))
}

func (s *SQLiteStore) scanOne(row *sql.Row) (*Entry, error) {
	var e Entry
	var typ string
	var createdAt int64
	err := row.Scan(
		&e.ID, &typ, &e.Value, &createdAt, &e.Alias,
		&e.FileSize, &e.FilePath, &e.MimeType, &e.ContentKey,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	e.Type = ContentType(typ)
	e.CreatedAt = time.Unix(0, createdAt)
	return &e, nil
}

// Insert persists a new entry. If payload is non-empty it is written to a
// type-namespaced file under the storage root before the row is committed;
// a row is never committed pointing at a payload that failed to write. If
// the row commit fails, the freshly written payload file is removed again.
func (s *SQLiteStore) Insert(ctx context.Context, entry *Entry, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(payload) > 0 {
		relPath, err := s.writePayload(entry, payload)
		if err != nil {
			return err
		}
		entry.FilePath = relPath
		entry.FileSize = int64(len(payload))
	}

	_, err := s.insertEntry.ExecContext(ctx,
		entry.ID, string(entry.Type), entry.Value, entry.CreatedAt.UnixNano(),
		entry.Alias, entry.FileSize, entry.FilePath, entry.MimeType, entry.ContentKey,
	)
	if err != nil {
		if entry.FilePath != "" {
			s.removePayload(entry.FilePath)
			entry.FilePath = ""
			entry.FileSize = 0
		}
		return fmt.Errorf("insert entry: %w", err)
	}

	return nil
}

// Update replaces an existing row by id. Returns ErrNotFound if no row
// with that id exists.
func (s *SQLiteStore) Update(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.updateEntry.ExecContext(ctx,
		string(entry.Type), entry.Value, entry.CreatedAt.UnixNano(), entry.Alias,
		entry.FileSize, entry.FilePath, entry.MimeType, entry.ContentKey,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update entry %s: %w", entry.ID, ErrNotFound)
	}

	return nil
}

// Delete removes an entry and its payload file, if any. Deleting an id
// that does not exist is a no-op so callers stay idempotent.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.scanOne(s.getEntry.QueryRowContext(ctx, id))
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	if _, err := s.deleteEntry.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	if entry.FilePath != "" {
		s.removePayload(entry.FilePath)
	}

	return nil
}

// DeleteOldestKeepingNewest trims the store to the count most recently
// created entries and removes the evicted entries' payload files. The row
// deletion runs in a single transaction under the writer lock, so a
// concurrent insert is either fully before or fully after the sweep.
func (s *SQLiteStore) DeleteOldestKeepingNewest(ctx context.Context, count int) (int64, error) {
	if count < 0 {
		count = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT id, file_path FROM entries
		ORDER BY created_at DESC, rowid DESC
		LIMIT -1 OFFSET ?
	`, count)
	if err != nil {
		return 0, fmt.Errorf("select evictions: %w", err)
	}

	type victim struct {
		id       string
		filePath string
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.id, &v.filePath); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan eviction: %w", err)
		}
		victims = append(victims, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, v := range victims {
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", v.id); err != nil {
			return 0, fmt.Errorf("delete evicted entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit evictions: %w", err)
	}

	// Payload removal happens after the rows are durably gone; a failure
	// here leaves an orphan that Reconcile picks up on next startup.
	for _, v := range victims {
		if v.filePath != "" {
			s.removePayload(v.filePath)
		}
	}

	return int64(len(victims)), nil
}

// DeleteAll removes every entry row and the entire payload tree.
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("delete all entries: %w", err)
	}

	return s.removeAllPayloads()
}

// Count returns the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// scanEntries executes a query and scans results into Entry slices.
// Malformed rows are skipped, not fatal: a corrupt record should never
// take the rest of the history down with it.
func (s *SQLiteStore) scanEntries(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var typ string
		var createdAt int64
		if err := rows.Scan(
			&e.ID, &typ, &e.Value, &createdAt, &e.Alias,
			&e.FileSize, &e.FilePath, &e.MimeType, &e.ContentKey,
		); err != nil {
			slog.Warn("skipping malformed entry row", "err", err)
			continue
		}
		e.Type = ContentType(typ)
		if !e.Type.Valid() {
			slog.Warn("skipping entry with unknown content type", "id", e.ID, "type", typ)
			continue
		}
		e.CreatedAt = time.Unix(0, createdAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Return empty slice rather than nil
	if entries == nil {
		entries = []Entry{}
	}

	return entries, nil
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed — that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.insertEntry, s.getEntry, s.getByKey,
		s.updateEntry, s.deleteEntry,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
