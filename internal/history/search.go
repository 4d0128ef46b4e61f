package history

import (
	"context"
	"log/slog"
	"strings"

	"github.com/runnerr0/clipstash/internal/storage"
)

// Search answers a free-text query against the history. An empty query
// returns the most recent entries; a non-empty query keeps entries whose
// value, alias, or type tag contains it as a case-insensitive substring.
// Either way results are deduplicated by content key, keeping the most
// recent holder of each key, and ordered by recency. There is no scoring
// beyond recency: contains-substring is the entire relevance model.
//
// Search has no side effects and is safe to call concurrently. A store
// failure yields an empty result list, never an error to the UI.
func (m *Manager) Search(ctx context.Context, query string) []storage.Entry {
	entries, err := m.store.GetAll(ctx)
	if err != nil {
		slog.Error("search query failed", "err", err)
		return []storage.Entry{}
	}

	q := strings.ToLower(query)
	seen := make(map[string]struct{}, len(entries))
	results := make([]storage.Entry, 0, len(entries))

	// entries arrive newest-first, so the first holder of each content
	// key is the most recent one.
	for _, e := range entries {
		if q != "" && !strings.Contains(searchableText(&e), q) {
			continue
		}
		if _, dup := seen[e.ContentKey]; dup {
			continue
		}
		seen[e.ContentKey] = struct{}{}
		results = append(results, e)

		if q == "" && len(results) >= m.recent {
			break
		}
	}

	return results
}

// searchableText is the lowercased haystack a query matches against:
// the entry's value, its alias if set, and the type tag.
func searchableText(e *storage.Entry) string {
	parts := []string{e.Value, string(e.Type)}
	if e.Alias != "" {
		parts = append(parts, e.Alias)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
