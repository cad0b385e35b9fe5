package database

import (
	"time"
)

// Feed represents a subscribed feed and its fetch-health bookkeeping.
type Feed struct {
	ID                  string // Database UUID
	URL                 string // RSS/Atom feed URL, unique
	Title               string
	SiteURL             string // Homepage URL from the feed's <link> element
	ETag                string // Conditional fetch: If-None-Match
	LastModified        string // Conditional fetch: If-Modified-Since
	ConsecutiveFailures int
	IsActive            bool
	FetchError          string // Last fetch error, truncated
	ExtractContent      bool   // Run readability extraction on thin entries
	LastFetchAt         *time.Time
	LastSuccessAt       *time.Time
	LastEntryAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Entry represents one normalized item owned by a Feed. (feed_id, guid) is
// unique; re-ingesting the same guid updates in place.
type Entry struct {
	ID          string
	FeedID      string
	GUID        string
	URL         string
	Title       string
	Author      string
	Content     string // Sanitized HTML, URLs absolute
	Summary     string
	PublishedAt *time.Time
	FirstSeen   time.Time
}

// VectorHit is one nearest-neighbor result from the vector index.
type VectorHit struct {
	EntryID string
	Score   float64 // Cosine similarity, higher is closer
	Title   string
}
