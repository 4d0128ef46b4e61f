// Package history implements the deduplication and ranking engine on top
// of the content store: it decides whether an incoming clipboard snapshot
// is a new entry or a refresh of an existing one, trims the store to the
// retention ceiling, and serves ranked search queries.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/clipstash/internal/bus"
	"github.com/runnerr0/clipstash/internal/storage"
)

// Manager is the single logical writer for clipboard history. All
// mutations are serialized through its mutex; reads go straight to the
// store.
type Manager struct {
	store    storage.ContentStore
	bus      *bus.Bus
	maxItems int
	recent   int

	mu     sync.Mutex
	lastTS time.Time
	now    func() time.Time // injectable clock for tests
}

// New creates a Manager. maxItems is the retention ceiling enforced after
// each insert; recent is how many entries an empty-query search returns.
func New(store storage.ContentStore, b *bus.Bus, maxItems, recent int) *Manager {
	return &Manager{
		store:    store,
		bus:      b,
		maxItems: maxItems,
		recent:   recent,
		now:      time.Now,
	}
}

// tick returns a wall-clock timestamp that is strictly greater than any
// previously issued one, so recency ordering never ties within a process.
// Must be called with mu held.
func (m *Manager) tick() time.Time {
	t := m.now()
	if !t.After(m.lastTS) {
		t = m.lastTS.Add(time.Nanosecond)
	}
	m.lastTS = t
	return t
}

// Add resolves a clipboard snapshot against the store: identical content
// refreshes the existing entry's recency (keeping its id and alias), new
// content inserts a fresh entry and triggers a retention sweep. Empty text
// snapshots are ignored. The change notification fires only after the
// durable write commits.
func (m *Manager) Add(ctx context.Context, typ storage.ContentType, value string, payload []byte) (*storage.Entry, error) {
	if typ == storage.TypeText && value == "" {
		return nil, nil
	}

	key := contentKey(typ, value, payload)

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.store.GetByContentKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolve content key: %w", err)
	}

	if existing != nil {
		// Refresh: same content re-copied bumps recency without growing
		// the history.
		existing.CreatedAt = m.tick()
		if err := m.store.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("refresh entry: %w", err)
		}
		m.bus.Publish()
		return existing, nil
	}

	entry := &storage.Entry{
		ID:         uuid.NewString(),
		Type:       typ,
		Value:      value,
		CreatedAt:  m.tick(),
		MimeType:   typ.MimeType(),
		ContentKey: key,
	}

	if err := m.store.Insert(ctx, entry, payload); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if err := m.enforceRetention(ctx); err != nil {
		slog.Warn("retention sweep failed", "err", err)
	}

	m.bus.Publish()
	return entry, nil
}

// enforceRetention trims the store once the item count exceeds the
// configured ceiling. Must be called with mu held.
func (m *Manager) enforceRetention(ctx context.Context) error {
	if m.maxItems <= 0 {
		return nil
	}
	n, err := m.store.Count(ctx)
	if err != nil {
		return err
	}
	if n <= int64(m.maxItems) {
		return nil
	}
	evicted, err := m.store.DeleteOldestKeepingNewest(ctx, m.maxItems)
	if err != nil {
		return err
	}
	slog.Debug("retention sweep", "evicted", evicted, "kept", m.maxItems)
	return nil
}

// SetAlias assigns or clears the user label on an entry.
func (m *Manager) SetAlias(ctx context.Context, id, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("set alias on %s: %w", id, storage.ErrNotFound)
	}

	entry.Alias = alias
	if err := m.store.Update(ctx, entry); err != nil {
		return err
	}

	m.bus.Publish()
	return nil
}

// Remove deletes a single entry and its payload. Removing an unknown id
// is a no-op.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}

	m.bus.Publish()
	return nil
}

// Clear wipes the whole history, rows and payload files alike.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.DeleteAll(ctx); err != nil {
		return err
	}

	m.bus.Publish()
	return nil
}

// Entry returns a single entry by id, or nil when absent.
func (m *Manager) Entry(ctx context.Context, id string) (*storage.Entry, error) {
	return m.store.GetByID(ctx, id)
}

// Payload returns the payload bytes for an entry, or nil when it has none.
func (m *Manager) Payload(ctx context.Context, entry *storage.Entry) ([]byte, error) {
	return m.store.Payload(ctx, entry)
}
