package history

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/runnerr0/clipstash/internal/storage"
)

// contentKey computes the deduplication identity of a clipboard snapshot.
// Text keys on the value itself; binary types key on a hash of the payload
// bytes. When a binary snapshot arrives without payload bytes the value
// string is the fallback key, a weaker guarantee applied uniformly.
func contentKey(typ storage.ContentType, value string, payload []byte) string {
	if typ == storage.TypeText || len(payload) == 0 {
		return value
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
