package search

import (
	"context"
	"errors"
	"testing"

	"feedvault/app/database"
)

func TestSearchRankingOrder(t *testing.T) {
	entries := &mockEntryRepository{
		entries: []database.Entry{
			{ID: "e1", Title: "Go Concurrency"},
			{ID: "e2", Title: "Notes on go concurrency patterns"},
			{ID: "e3", Title: "Scheduler internals"},
			{ID: "e4", Title: "Runtime deep dive"},
		},
		searchResult: []database.Entry{
			{ID: "e2", Title: "Notes on go concurrency patterns"},
			{ID: "e1", Title: "Go Concurrency"},
		},
	}
	vectors := newMockVectorIndex()
	vectors.queryHits = []database.VectorHit{
		{EntryID: "e3", Score: 0.9},
		{EntryID: "e4", Score: 0.7},
	}
	embedder := &mockEmbedder{embedding: []float32{0.1, 0.2}}

	s := NewSearcher(entries, vectors, embedder, 6, 20, 0.35)
	results, truncated, err := s.Search(context.Background(), `"go concurrency"`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if truncated {
		t.Error("Expected truncated=false")
	}

	wantOrder := []struct{ id, source string }{
		{"e1", "title"},
		{"e2", "keyword"},
		{"e3", "semantic"},
		{"e4", "semantic"},
	}
	if len(results) != len(wantOrder) {
		t.Fatalf("Expected %d results, got %d", len(wantOrder), len(results))
	}
	for i, want := range wantOrder {
		if results[i].Entry.ID != want.id || results[i].Source != want.source {
			t.Errorf("Result %d: expected %s/%s, got %s/%s",
				i, want.id, want.source, results[i].Entry.ID, results[i].Source)
		}
	}
	if results[2].Score != 0.9 {
		t.Errorf("Expected semantic score 0.9, got %v", results[2].Score)
	}
}

func TestSearchDedupesAcrossLegs(t *testing.T) {
	entries := &mockEntryRepository{
		entries: []database.Entry{
			{ID: "e1", Title: "Go Concurrency"},
		},
		searchResult: []database.Entry{
			{ID: "e1", Title: "Go Concurrency"},
		},
	}
	vectors := newMockVectorIndex()
	vectors.queryHits = []database.VectorHit{{EntryID: "e1", Score: 0.95}}
	embedder := &mockEmbedder{embedding: []float32{0.1}}

	s := NewSearcher(entries, vectors, embedder, 6, 20, 0.35)
	results, _, err := s.Search(context.Background(), "concurrency")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result after dedupe, got %d", len(results))
	}
	if results[0].Source != "keyword" {
		t.Errorf("Expected keyword occurrence to win, got %s", results[0].Source)
	}
}

func TestSearchDegradesWhenEmbeddingFails(t *testing.T) {
	entries := &mockEntryRepository{
		searchResult: []database.Entry{{ID: "e1", Title: "Hit"}},
	}
	vectors := newMockVectorIndex()
	embedder := &mockEmbedder{err: errors.New("provider down")}

	s := NewSearcher(entries, vectors, embedder, 6, 20, 0.35)
	results, _, err := s.Search(context.Background(), "hit")
	if err != nil {
		t.Fatalf("Expected keyword-only results, got error %v", err)
	}
	if len(results) != 1 || results[0].Source != "keyword" {
		t.Errorf("Expected single keyword result, got %+v", results)
	}
}

func TestSearchWithoutEmbedder(t *testing.T) {
	entries := &mockEntryRepository{
		searchResult: []database.Entry{{ID: "e1", Title: "Hit"}},
	}

	s := NewSearcher(entries, nil, nil, 6, 20, 0.35)
	results, _, err := s.Search(context.Background(), "hit")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}

func TestSearchDropsSemanticHitsWithoutEntries(t *testing.T) {
	entries := &mockEntryRepository{
		entries: []database.Entry{{ID: "e1", Title: "Alive"}},
	}
	vectors := newMockVectorIndex()
	vectors.queryHits = []database.VectorHit{
		{EntryID: "e1", Score: 0.8},
		{EntryID: "gone", Score: 0.6},
	}
	embedder := &mockEmbedder{embedding: []float32{0.1}}

	s := NewSearcher(entries, vectors, embedder, 6, 20, 0.35)
	results, _, err := s.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 1 || results[0].Entry.ID != "e1" {
		t.Errorf("Expected only the live entry, got %+v", results)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s := NewSearcher(&mockEntryRepository{}, nil, nil, 6, 20, 0.35)
	if _, _, err := s.Search(context.Background(), "  "); err == nil {
		t.Error("Expected error for empty query")
	}
}

func TestSearchPropagatesKeywordError(t *testing.T) {
	entries := &mockEntryRepository{searchErr: errors.New("db gone")}

	s := NewSearcher(entries, nil, nil, 6, 20, 0.35)
	if _, _, err := s.Search(context.Background(), "hit"); err == nil {
		t.Error("Expected error when keyword search fails")
	}
}

func TestSearchReportsTruncation(t *testing.T) {
	entries := &mockEntryRepository{}

	s := NewSearcher(entries, nil, nil, 2, 20, 0.35)
	_, truncated, err := s.Search(context.Background(), "one two three")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !truncated {
		t.Error("Expected truncated=true when word cap exceeded")
	}
	if len(entries.lastQuery.Args) != 2 {
		t.Errorf("Expected 2 bound words, got %d", len(entries.lastQuery.Args))
	}
}
