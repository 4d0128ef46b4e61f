package storage

import "errors"

var (
	// ErrStorageUnavailable means the storage root or database could not
	// be created/opened. Fatal to store initialization; the host should
	// degrade rather than crash.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound means an operation referenced an id that does not exist.
	// Deletes treat this as a no-op; updates surface it.
	ErrNotFound = errors.New("entry not found")

	// ErrPayloadWrite means a payload file could not be written. The
	// corresponding entry row is never committed.
	ErrPayloadWrite = errors.New("payload write failed")

	// ErrPayloadRead means a payload file exists in metadata but could not
	// be read back.
	ErrPayloadRead = errors.New("payload read failed")
)
