package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const payloadDir = "payloads"

// payloadPath computes the storage-relative location for an entry's
// payload: payloads/<type>/<id>.<ext>. Only the relative path is ever
// persisted; the storage root is resolved at read time.
func payloadPath(entry *Entry) string {
	return filepath.Join(payloadDir, string(entry.Type), entry.ID+"."+entry.Type.Ext())
}

// writePayload writes data to the entry's payload location and returns the
// storage-relative path. Must be called before the entry row is committed.
func (s *SQLiteStore) writePayload(entry *Entry, data []byte) (string, error) {
	relPath := payloadPath(entry)
	absPath := filepath.Join(s.root, relPath)

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return "", fmt.Errorf("%w: create payload directory: %v", ErrPayloadWrite, err)
	}
	if err := os.WriteFile(absPath, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayloadWrite, err)
	}

	return relPath, nil
}

// removePayload deletes a payload file by its storage-relative path.
// Failures are logged, not propagated: the row is already gone and a
// leftover file is reclaimed by the next Reconcile pass.
func (s *SQLiteStore) removePayload(relPath string) {
	absPath := filepath.Join(s.root, relPath)
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove payload file", "path", relPath, "err", err)
	}
}

// removeAllPayloads deletes the whole payload tree under the storage root.
func (s *SQLiteStore) removeAllPayloads() error {
	if err := os.RemoveAll(filepath.Join(s.root, payloadDir)); err != nil {
		return fmt.Errorf("remove payload tree: %w", err)
	}
	return nil
}

// Payload reads the payload bytes for an entry. Returns (nil, nil) when
// the entry has no payload or the file has gone missing — a missing file
// is data loss to log and carry on from, not a reason to fail the caller.
func (s *SQLiteStore) Payload(ctx context.Context, entry *Entry) ([]byte, error) {
	if entry.FilePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(s.root, entry.FilePath))
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("payload file missing", "id", entry.ID, "path", entry.FilePath)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrPayloadRead, err)
	}

	return data, nil
}

// Reconcile removes payload files that no entry row references. Orphans
// can appear when a metadata write fails after its payload write, or when
// payload removal fails after an eviction commit.
func (s *SQLiteStore) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT file_path FROM entries WHERE file_path != ''")
	if err != nil {
		return fmt.Errorf("query payload paths: %w", err)
	}
	defer rows.Close()

	referenced := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return fmt.Errorf("scan payload path: %w", err)
		}
		referenced[filepath.Clean(p)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rootDir := filepath.Join(s.root, payloadDir)
	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if _, ok := referenced[filepath.Clean(rel)]; !ok {
			slog.Info("removing orphaned payload file", "path", rel)
			if err := os.Remove(path); err != nil {
				slog.Warn("failed to remove orphaned payload", "path", rel, "err", err)
			}
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
