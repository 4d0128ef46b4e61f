package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open creates the storage root if needed, opens the SQLite database
// inside it, runs migrations, and returns a ready-to-use store together
// with the underlying *sql.DB (the caller owns closing the DB). All
// failures wrap ErrStorageUnavailable so the host can degrade instead of
// crashing.
func Open(root, dbFile string) (*SQLiteStore, *sql.DB, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, nil, fmt.Errorf("%w: create storage root: %v", ErrStorageUnavailable, err)
	}

	dbPath := filepath.Join(root, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open database: %v", ErrStorageUnavailable, err)
	}

	runner := NewMigrationRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: run migrations: %v", ErrStorageUnavailable, err)
	}

	store, err := NewSQLiteStore(db, root)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: create store: %v", ErrStorageUnavailable, err)
	}

	return store, db, nil
}
