package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore creates a migrated in-memory store with a temp payload root.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	store, err := NewSQLiteStore(db, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func textEntry(id, value string, at time.Time) *Entry {
	return &Entry{
		ID:         id,
		Type:       TypeText,
		Value:      value,
		CreatedAt:  at,
		ContentKey: value,
	}
}

// --- Insert + GetByID roundtrip ---

func TestInsert_GetByID_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	at := time.Unix(0, 1700000000123456789)
	entry := textEntry("e1", "hello world", at)
	entry.Alias = "greeting"

	require.NoError(t, store.Insert(ctx, entry, nil))

	got, err := store.GetByID(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, TypeText, got.Type)
	assert.Equal(t, "hello world", got.Value)
	assert.Equal(t, "greeting", got.Alias)
	assert.Equal(t, "hello world", got.ContentKey)
	assert.True(t, got.CreatedAt.Equal(at), "created_at should survive at full resolution")
	assert.Empty(t, got.FilePath)
}

func TestInsert_WithPayload_WritesFileBeforeRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	payload := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	entry := &Entry{
		ID:         "img1",
		Type:       TypeImage,
		Value:      "image_1",
		CreatedAt:  time.Now(),
		MimeType:   "image/png",
		ContentKey: "somekey",
	}

	require.NoError(t, store.Insert(ctx, entry, payload))

	assert.Equal(t, filepath.Join("payloads", "image", "img1.png"), entry.FilePath)
	assert.Equal(t, int64(len(payload)), entry.FileSize)

	// File exists on disk under the storage root.
	_, err := os.Stat(filepath.Join(store.root, entry.FilePath))
	require.NoError(t, err)

	got, err := store.GetByID(ctx, "img1")
	require.NoError(t, err)
	require.NotNil(t, got)

	data, err := store.Payload(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestInsert_RowFailure_CleansUpPayload(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	require.NoError(t, NewMigrationRunner(db).Run())

	store, err := NewSQLiteStore(db, t.TempDir())
	require.NoError(t, err)

	// Close the database so the metadata write fails after the payload
	// file has already been written.
	require.NoError(t, db.Close())

	entry := &Entry{ID: "img", Type: TypeImage, Value: "a", CreatedAt: time.Now(), ContentKey: "k"}
	err = store.Insert(context.Background(), entry, []byte{1, 2})
	require.Error(t, err)
	assert.Empty(t, entry.FilePath)

	// The orphaned payload file must have been removed again.
	_, err = os.Stat(filepath.Join(store.root, "payloads", "image", "img.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestGetByID_Absent_ReturnsNilNil(t *testing.T) {
	store := openTestStore(t)

	got, err := store.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// --- GetByContentKey ---

func TestGetByContentKey(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Unix(1000, 0)
	require.NoError(t, store.Insert(ctx, textEntry("a", "same", base), nil))

	got, err := store.GetByContentKey(ctx, "same")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID)

	got, err = store.GetByContentKey(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// --- GetAll ordering ---

func TestGetAll_OrderedByCreatedAtDescending(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Unix(1000, 0)
	require.NoError(t, store.Insert(ctx, textEntry("old", "old", base), nil))
	require.NoError(t, store.Insert(ctx, textEntry("new", "new", base.Add(2*time.Second)), nil))
	require.NoError(t, store.Insert(ctx, textEntry("mid", "mid", base.Add(time.Second)), nil))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "mid", all[1].ID)
	assert.Equal(t, "old", all[2].ID)
}

func TestGetAll_TiesBrokenByInsertionOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	at := time.Unix(1000, 0)
	require.NoError(t, store.Insert(ctx, textEntry("first", "a", at), nil))
	require.NoError(t, store.Insert(ctx, textEntry("second", "b", at), nil))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].ID, "later insert wins the tie")
	assert.Equal(t, "first", all[1].ID)
}

func TestGetAll_Empty_ReturnsEmptySlice(t *testing.T) {
	store := openTestStore(t)

	all, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestGetAll_SkipsCorruptRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, textEntry("good", "fine", time.Unix(1000, 0)), nil))

	// Plant a row with an unknown content type, bypassing the store.
	_, err := store.db.Exec(`
		INSERT INTO entries (id, type, value, created_at, content_key)
		VALUES ('bad', 'hologram', 'x', 999, 'x')
	`)
	require.NoError(t, err)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "corrupt row is skipped, not fatal")
	assert.Equal(t, "good", all[0].ID)
}

// --- Update ---

func TestUpdate_ReplacesRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := textEntry("e1", "v", time.Unix(1000, 0))
	require.NoError(t, store.Insert(ctx, entry, nil))

	entry.Alias = "renamed"
	entry.CreatedAt = time.Unix(2000, 0)
	require.NoError(t, store.Update(ctx, entry))

	got, err := store.GetByID(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "renamed", got.Alias)
	assert.True(t, got.CreatedAt.Equal(time.Unix(2000, 0)))
}

func TestUpdate_Missing_ReturnsNotFound(t *testing.T) {
	store := openTestStore(t)

	err := store.Update(context.Background(), textEntry("ghost", "v", time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Delete ---

func TestDelete_CascadesPayloadFile(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := &Entry{ID: "img", Type: TypeImage, Value: "image_1", CreatedAt: time.Now(), ContentKey: "k"}
	require.NoError(t, store.Insert(ctx, entry, []byte{1, 2, 3}))

	absPath := filepath.Join(store.root, entry.FilePath)
	_, err := os.Stat(absPath)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "img"))

	got, err := store.GetByID(ctx, "img")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = os.Stat(absPath)
	assert.True(t, os.IsNotExist(err), "payload file should be gone")
}

func TestDelete_Missing_IsNoOp(t *testing.T) {
	store := openTestStore(t)

	assert.NoError(t, store.Delete(context.Background(), "never-existed"))
}

// --- Retention ---

func TestDeleteOldestKeepingNewest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Unix(1000, 0)
	for i := 0; i < 7; i++ {
		e := textEntry(fmt.Sprintf("e%d", i), fmt.Sprintf("v%d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.Insert(ctx, e, nil))
	}

	evicted, err := store.DeleteOldestKeepingNewest(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), evicted)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e6", all[0].ID)
	assert.Equal(t, "e5", all[1].ID)
	assert.Equal(t, "e4", all[2].ID)
}

func TestDeleteOldestKeepingNewest_RemovesEvictedPayloads(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := &Entry{ID: "old", Type: TypeImage, Value: "a", CreatedAt: time.Unix(1000, 0), ContentKey: "k1"}
	require.NoError(t, store.Insert(ctx, old, []byte{1}))
	kept := &Entry{ID: "kept", Type: TypeImage, Value: "b", CreatedAt: time.Unix(2000, 0), ContentKey: "k2"}
	require.NoError(t, store.Insert(ctx, kept, []byte{2}))

	_, err := store.DeleteOldestKeepingNewest(ctx, 1)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(store.root, old.FilePath))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(store.root, kept.FilePath))
	assert.NoError(t, err)
}

func TestDeleteOldestKeepingNewest_UnderCount_DeletesNothing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, textEntry("only", "v", time.Unix(1000, 0)), nil))

	evicted, err := store.DeleteOldestKeepingNewest(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, evicted)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// --- DeleteAll ---

func TestDeleteAll_ClearsRowsAndPayloadTree(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, textEntry("t", "v", time.Now()), nil))
	img := &Entry{ID: "i", Type: TypeImage, Value: "img", CreatedAt: time.Now(), ContentKey: "k"}
	require.NoError(t, store.Insert(ctx, img, []byte{9}))

	require.NoError(t, store.DeleteAll(ctx))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = os.Stat(filepath.Join(store.root, payloadDir))
	assert.True(t, os.IsNotExist(err), "payload tree should be removed")
}

// --- Payload edge cases ---

func TestPayload_NoFilePath_ReturnsNil(t *testing.T) {
	store := openTestStore(t)

	data, err := store.Payload(context.Background(), &Entry{ID: "x", Type: TypeText})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestPayload_MissingFile_ReturnsNilNotError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := &Entry{ID: "i", Type: TypeImage, Value: "img", CreatedAt: time.Now(), ContentKey: "k"}
	require.NoError(t, store.Insert(ctx, entry, []byte{1}))

	// Simulate external data loss.
	require.NoError(t, os.Remove(filepath.Join(store.root, entry.FilePath)))

	data, err := store.Payload(ctx, entry)
	require.NoError(t, err)
	assert.Nil(t, data)
}

// --- Reconcile ---

func TestReconcile_RemovesOrphanedPayloads(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := &Entry{ID: "keep", Type: TypeImage, Value: "img", CreatedAt: time.Now(), ContentKey: "k"}
	require.NoError(t, store.Insert(ctx, entry, []byte{1}))

	// Plant an orphan file no row references.
	orphan := filepath.Join(store.root, payloadDir, "image", "orphan.png")
	require.NoError(t, os.WriteFile(orphan, []byte{0xFF}, 0644))

	require.NoError(t, store.Reconcile(ctx))

	_, err := os.Stat(orphan)
	assert.True(t, os.IsNotExist(err), "orphan should be reclaimed")
	_, err = os.Stat(filepath.Join(store.root, entry.FilePath))
	assert.NoError(t, err, "referenced payload must survive")
}

// --- Open ---

func TestOpen_CreatesRootAndMigrates(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "store")

	store, db, err := Open(root, "test.db")
	require.NoError(t, err)
	defer db.Close()
	defer store.Close()

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = os.Stat(filepath.Join(root, "test.db"))
	assert.NoError(t, err)
}
