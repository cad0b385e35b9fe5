package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

// ParsedEntry is the typed boundary over a raw RSS/Atom item. All fields are
// as the feed delivered them; the Normalizer turns this into an Entry.
type ParsedEntry struct {
	ID          string
	Link        string
	Title       string
	Summary     string // RSS description / Atom summary
	Content     string
	Author      string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
}

// Entry is a normalized item ready for storage: stable GUID, sanitized
// content with absolute URLs, bounded summary.
type Entry struct {
	GUID        string
	URL         string
	Title       string
	Author      string
	Content     string
	Summary     string
	PublishedAt *time.Time
}
