package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"feedvault/app/database"
)

// mockEntryRepository is an in-memory stand-in for the relational entry
// store. Entries keep insertion order so pagination is stable.
type mockEntryRepository struct {
	entries      []database.Entry
	searchResult []database.Entry
	searchErr    error
	lastQuery    database.KeywordQuery
}

func (m *mockEntryRepository) UpsertEntry(_ context.Context, feedID string, fields database.EntryFields) (string, bool, error) {
	for i, e := range m.entries {
		if e.FeedID == feedID && e.GUID == fields.GUID {
			m.entries[i].Title = fields.Title
			m.entries[i].Content = fields.Content
			return e.ID, false, nil
		}
	}
	id := fmt.Sprintf("entry-%d", len(m.entries)+1)
	m.entries = append(m.entries, database.Entry{
		ID:      id,
		FeedID:  feedID,
		GUID:    fields.GUID,
		URL:     fields.URL,
		Title:   fields.Title,
		Content: fields.Content,
		Summary: fields.Summary,
	})
	return id, true, nil
}

func (m *mockEntryRepository) GetEntry(_ context.Context, id string) (*database.Entry, error) {
	for _, e := range m.entries {
		if e.ID == id {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

func (m *mockEntryRepository) GetEntriesByIDs(_ context.Context, ids []string) ([]database.Entry, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []database.Entry
	for _, e := range m.entries {
		if want[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEntryRepository) ListEntriesPage(_ context.Context, offset, limit int) ([]database.Entry, error) {
	if offset >= len(m.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.entries) {
		end = len(m.entries)
	}
	return m.entries[offset:end], nil
}

func (m *mockEntryRepository) ListFeedEntries(_ context.Context, feedID string, limit int) ([]database.Entry, error) {
	var out []database.Entry
	for _, e := range m.entries {
		if e.FeedID == feedID {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockEntryRepository) SearchEntries(_ context.Context, query database.KeywordQuery) ([]database.Entry, error) {
	m.lastQuery = query
	return m.searchResult, m.searchErr
}

func (m *mockEntryRepository) PruneOlderThan(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

func (m *mockEntryRepository) GetEntryCount(_ context.Context) (int, error) {
	return len(m.entries), nil
}

// mockVectorIndex keeps embeddings in a map keyed by entry id.
type mockVectorIndex struct {
	vectors   map[string][]float32
	queryHits []database.VectorHit
	queryErr  error
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
	return m.queryHits, m.queryErr
}

func (m *mockVectorIndex) DeleteVectors(_ context.Context, entryIDs []string) error {
	for _, id := range entryIDs {
		delete(m.vectors, id)
	}
	return nil
}

func (m *mockVectorIndex) ListVectorIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.vectors))
	for id := range m.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockVectorIndex) CountVectors(_ context.Context) (int, error) {
	return len(m.vectors), nil
}

// mockEmbedder returns a fixed vector, or an error per call when set.
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
