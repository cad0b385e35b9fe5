package database

import (
	"context"
	"time"
)

// EntryFields carries the mutable fields written by an upsert.
type EntryFields struct {
	GUID        string
	URL         string
	Title       string
	Author      string
	Content     string
	Summary     string
	PublishedAt *time.Time
}

// FetchResultUpdate is the persisted projection of one fetch attempt, as
// computed by the health state machine. last_fetch_at is always advanced;
// last_success_at, the caching headers and the feed metadata only move on
// success or not-modified.
type FetchResultUpdate struct {
	Success             bool
	ConsecutiveFailures int
	IsActive            bool
	FetchError          string
	ETag                string
	LastModified        string
	Title               string // refreshed when non-empty
	SiteURL             string // refreshed when non-empty
	HadNewEntries       bool
}

// KeywordQuery is a WHERE fragment with bound parameters produced by the
// search query builder. Args hold every user-derived value; the fragment
// itself contains only placeholders.
type KeywordQuery struct {
	Where     string
	Args      []interface{}
	Limit     int
	Truncated bool
}

type FeedRepository interface {
	RegisterFeed(ctx context.Context, url, title string, extractContent bool) (string, bool, error)
	GetFeed(ctx context.Context, id string) (*Feed, error)
	GetFeedByURL(ctx context.Context, url string) (*Feed, error)
	ListFeeds(ctx context.Context) ([]Feed, error)
	ListActiveFeeds(ctx context.Context) ([]Feed, error)
	UpdateFetchResult(ctx context.Context, feedID string, upd FetchResultUpdate) error
	SetFeedActive(ctx context.Context, id string, active bool) error
	RecoverInactiveFeeds(ctx context.Context, limit int) ([]Feed, error)
	DeleteFeed(ctx context.Context, id string) ([]string, error)
	GetFeedCount(ctx context.Context) (int, error)
	GetActiveFeedCount(ctx context.Context) (int, error)
}

type EntryRepository interface {
	UpsertEntry(ctx context.Context, feedID string, fields EntryFields) (string, bool, error)
	GetEntry(ctx context.Context, id string) (*Entry, error)
	GetEntriesByIDs(ctx context.Context, ids []string) ([]Entry, error)
	ListEntriesPage(ctx context.Context, offset, limit int) ([]Entry, error)
	ListFeedEntries(ctx context.Context, feedID string, limit int) ([]Entry, error)
	SearchEntries(ctx context.Context, query KeywordQuery) ([]Entry, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
	GetEntryCount(ctx context.Context) (int, error)
}

type VectorIndex interface {
	UpsertVector(ctx context.Context, entryID string, embedding []float32, title string) error
	QueryVectors(ctx context.Context, embedding []float32, topK int, minScore float64) ([]VectorHit, error)
	DeleteVectors(ctx context.Context, entryIDs []string) error
	ListVectorIDs(ctx context.Context) ([]string, error)
	CountVectors(ctx context.Context) (int, error)
}
