package pipeline

import (
	"context"
	"fmt"
	"time"

	"feedvault/app/database"
	"feedvault/app/queue"
)

type allowAllValidator struct{}

func (allowAllValidator) Validate(string) error { return nil }

type rejectValidator struct{ err error }

func (v rejectValidator) Validate(string) error { return v.err }

// mockFeedRepository holds a single feed and records fetch-result updates.
type mockFeedRepository struct {
	feed    *database.Feed
	updates []database.FetchResultUpdate
	getErr  error
}

func (m *mockFeedRepository) RegisterFeed(_ context.Context, url, title string, _ bool) (string, bool, error) {
	return "feed-1", true, nil
}

func (m *mockFeedRepository) GetFeed(_ context.Context, id string) (*database.Feed, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.feed == nil || m.feed.ID != id {
		return nil, nil
	}
	feed := *m.feed
	return &feed, nil
}

func (m *mockFeedRepository) GetFeedByURL(_ context.Context, url string) (*database.Feed, error) {
	if m.feed != nil && m.feed.URL == url {
		feed := *m.feed
		return &feed, nil
	}
	return nil, nil
}

func (m *mockFeedRepository) ListFeeds(_ context.Context) ([]database.Feed, error) {
	if m.feed == nil {
		return nil, nil
	}
	return []database.Feed{*m.feed}, nil
}

func (m *mockFeedRepository) ListActiveFeeds(ctx context.Context) ([]database.Feed, error) {
	if m.feed == nil || !m.feed.IsActive {
		return nil, nil
	}
	return []database.Feed{*m.feed}, nil
}

func (m *mockFeedRepository) UpdateFetchResult(_ context.Context, feedID string, upd database.FetchResultUpdate) error {
	m.updates = append(m.updates, upd)
	if m.feed != nil && m.feed.ID == feedID {
		m.feed.ConsecutiveFailures = upd.ConsecutiveFailures
		m.feed.IsActive = upd.IsActive
		m.feed.FetchError = upd.FetchError
		if upd.Success {
			m.feed.ETag = upd.ETag
			m.feed.LastModified = upd.LastModified
		}
	}
	return nil
}

func (m *mockFeedRepository) SetFeedActive(_ context.Context, id string, active bool) error {
	if m.feed != nil && m.feed.ID == id {
		m.feed.IsActive = active
	}
	return nil
}

func (m *mockFeedRepository) RecoverInactiveFeeds(_ context.Context, limit int) ([]database.Feed, error) {
	return nil, nil
}

func (m *mockFeedRepository) DeleteFeed(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (m *mockFeedRepository) GetFeedCount(_ context.Context) (int, error) { return 1, nil }

func (m *mockFeedRepository) GetActiveFeedCount(_ context.Context) (int, error) { return 1, nil }

// mockEntryRepository records upserts keyed by (feed_id, guid).
type mockEntryRepository struct {
	entries   map[string]database.Entry // key: feedID + "\x00" + guid
	order     []string
	upsertErr error
}

func newMockEntryRepository() *mockEntryRepository {
	return &mockEntryRepository{entries: make(map[string]database.Entry)}
}

func (m *mockEntryRepository) UpsertEntry(_ context.Context, feedID string, fields database.EntryFields) (string, bool, error) {
	if m.upsertErr != nil {
		return "", false, m.upsertErr
	}
	key := feedID + "\x00" + fields.GUID
	if existing, ok := m.entries[key]; ok {
		existing.Title = fields.Title
		existing.Content = fields.Content
		existing.Summary = fields.Summary
		m.entries[key] = existing
		return existing.ID, false, nil
	}
	id := fmt.Sprintf("entry-%d", len(m.entries)+1)
	m.entries[key] = database.Entry{
		ID:      id,
		FeedID:  feedID,
		GUID:    fields.GUID,
		URL:     fields.URL,
		Title:   fields.Title,
		Content: fields.Content,
	}
	m.order = append(m.order, key)
	return id, true, nil
}

func (m *mockEntryRepository) GetEntry(_ context.Context, _ string) (*database.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepository) GetEntriesByIDs(_ context.Context, _ []string) ([]database.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepository) ListEntriesPage(_ context.Context, _, _ int) ([]database.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepository) ListFeedEntries(_ context.Context, _ string, _ int) ([]database.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepository) SearchEntries(_ context.Context, _ database.KeywordQuery) ([]database.Entry, error) {
	return nil, nil
}

func (m *mockEntryRepository) PruneOlderThan(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

func (m *mockEntryRepository) GetEntryCount(_ context.Context) (int, error) {
	return len(m.entries), nil
}

// mockVectorIndex records indexed entry ids.
type mockVectorIndex struct {
	vectors   map[string][]float32
	upsertErr error
}

func newMockVectorIndex() *mockVectorIndex {
	return &mockVectorIndex{vectors: make(map[string][]float32)}
}

func (m *mockVectorIndex) UpsertVector(_ context.Context, entryID string, embedding []float32, _ string) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.vectors[entryID] = embedding
	return nil
}

func (m *mockVectorIndex) QueryVectors(_ context.Context, _ []float32, _ int, _ float64) ([]database.VectorHit, error) {
	return nil, nil
}

func (m *mockVectorIndex) DeleteVectors(_ context.Context, entryIDs []string) error {
	for _, id := range entryIDs {
		delete(m.vectors, id)
	}
	return nil
}

func (m *mockVectorIndex) ListVectorIDs(_ context.Context) ([]string, error) { return nil, nil }

func (m *mockVectorIndex) CountVectors(_ context.Context) (int, error) {
	return len(m.vectors), nil
}

// mockEmbedder returns a fixed vector.
type mockEmbedder struct {
	embedding []float32
	err       error
	calls     int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.embedding, nil
}

// mockQueue records routing decisions made by the worker pool.
type mockQueue struct {
	enqueued    []queue.FeedJob
	retried     []queue.FeedJob
	deadLetters []queue.DeadLetter
}

func (m *mockQueue) Enqueue(_ context.Context, job queue.FeedJob) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockQueue) Dequeue(_ context.Context, _ time.Duration) (*queue.FeedJob, error) {
	return nil, nil
}

func (m *mockQueue) Retry(_ context.Context, job queue.FeedJob, _ error) error {
	m.retried = append(m.retried, job)
	return nil
}

func (m *mockQueue) DeadLetter(_ context.Context, job queue.FeedJob, cause error) error {
	m.deadLetters = append(m.deadLetters, queue.DeadLetter{Job: job, Error: cause.Error()})
	return nil
}

func (m *mockQueue) ListDeadLetters(_ context.Context, _ int) ([]queue.DeadLetter, error) {
	return m.deadLetters, nil
}

func (m *mockQueue) RetryDeadLetters(_ context.Context, _ int) (int, error) { return 0, nil }

func (m *mockQueue) Len(_ context.Context) (int64, error) {
	return int64(len(m.enqueued)), nil
}

func (m *mockQueue) DeadLetterLen(_ context.Context) (int64, error) {
	return int64(len(m.deadLetters)), nil
}
