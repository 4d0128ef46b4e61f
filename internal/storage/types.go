package storage

import "time"

// ContentType classifies what kind of clipboard content an entry holds.
// The set is closed; adding a variant requires a schema migration.
type ContentType string

const (
	TypeText  ContentType = "text"
	TypeImage ContentType = "image"
	TypeVideo ContentType = "video"
	TypeFile  ContentType = "file"
)

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeFile:
		return true
	}
	return false
}

// Ext returns the payload file extension used for this content type.
func (t ContentType) Ext() string {
	switch t {
	case TypeImage:
		return "png"
	case TypeVideo:
		return "mp4"
	default:
		return "dat"
	}
}

// MimeType returns the canonical MIME type for payloads of this content
// type, or "" for types without a fixed payload encoding.
func (t ContentType) MimeType() string {
	switch t {
	case TypeImage:
		return "image/png"
	case TypeVideo:
		return "video/mp4"
	default:
		return ""
	}
}

// Entry is a single persisted piece of clipboard history.
type Entry struct {
	ID        string
	Type      ContentType
	Value     string // literal text for TypeText, a content-referencing name otherwise
	CreatedAt time.Time
	Alias     string // optional user label, not part of identity
	FileSize  int64
	FilePath  string // payload location relative to the storage root, "" if none
	MimeType  string

	// ContentKey is the deduplication identity: the text value itself for
	// text entries, a hash of the payload bytes for binary entries.
	ContentKey string
}
