// Package search implements hybrid retrieval over the entry store: keyword
// substring queries against the relational store, semantic nearest-neighbor
// queries against the vector index, fused by a fixed ranking rule.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"feedvault/app/database"
)

// Result is one fused search hit.
type Result struct {
	Entry  database.Entry `json:"entry"`
	Score  float64        `json:"score,omitempty"` // semantic similarity, 0 for keyword hits
	Source string         `json:"source"`          // "title", "keyword" or "semantic"
}

type Searcher struct {
	entries  database.EntryRepository
	vectors  database.VectorIndex
	embedder Embedder // nil disables the semantic leg
	builder  *QueryBuilder
	topK     int
	minScore float64
}

func NewSearcher(entries database.EntryRepository, vectors database.VectorIndex,
	embedder Embedder, maxWords, topK int, minScore float64) *Searcher {
	if topK <= 0 {
		topK = 20
	}
	return &Searcher{
		entries:  entries,
		vectors:  vectors,
		embedder: embedder,
		builder:  NewQueryBuilder(maxWords),
		topK:     topK,
		minScore: minScore,
	}
}

// Search runs the hybrid query. The ranking rule is fixed: exact-title
// keyword matches, then other keyword matches, then semantic matches by
// descending similarity; duplicates keep their highest-ranked occurrence.
// truncated reports that the keyword query exceeded the word cap.
func (s *Searcher) Search(ctx context.Context, raw string) ([]Result, bool, error) {
	kq, ok := s.builder.Build(raw, s.topK)
	if !ok {
		return nil, false, fmt.Errorf("empty search query")
	}

	keywordEntries, err := s.entries.SearchEntries(ctx, kq)
	if err != nil {
		return nil, kq.Truncated, fmt.Errorf("keyword search failed: %w", err)
	}

	needle := s.builder.Phrase(raw)

	var exact, rest []Result
	for _, entry := range keywordEntries {
		if strings.EqualFold(strings.TrimSpace(entry.Title), needle) {
			exact = append(exact, Result{Entry: entry, Source: "title"})
		} else {
			rest = append(rest, Result{Entry: entry, Source: "keyword"})
		}
	}

	fused := append(exact, rest...)
	fused = append(fused, s.semantic(ctx, raw)...)

	seen := make(map[string]bool, len(fused))
	out := fused[:0]
	for _, r := range fused {
		if seen[r.Entry.ID] {
			continue
		}
		seen[r.Entry.ID] = true
		out = append(out, r)
	}

	return out, kq.Truncated, nil
}

// semantic runs the vector leg. Failures degrade to keyword-only results
// rather than failing the whole query.
func (s *Searcher) semantic(ctx context.Context, raw string) []Result {
	if s.embedder == nil || s.vectors == nil {
		return nil
	}

	embedding, err := s.embedder.Embed(ctx, raw)
	if err != nil {
		slog.Warn("Query embedding failed, returning keyword results only", "error", err)
		return nil
	}

	hits, err := s.vectors.QueryVectors(ctx, embedding, s.topK, s.minScore)
	if err != nil {
		slog.Warn("Vector query failed, returning keyword results only", "error", err)
		return nil
	}
	if len(hits) == 0 {
		return nil
	}

	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.EntryID
		scores[hit.EntryID] = hit.Score
	}

	entries, err := s.entries.GetEntriesByIDs(ctx, ids)
	if err != nil {
		slog.Warn("Failed to load entries for semantic hits", "error", err)
		return nil
	}

	byID := make(map[string]database.Entry, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
	}

	// Preserve the index's descending-score order; drop hits whose entry
	// vanished (store/index drift pending reindex).
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		entry, ok := byID[hit.EntryID]
		if !ok {
			continue
		}
		results = append(results, Result{Entry: entry, Score: scores[hit.EntryID], Source: "semantic"})
	}

	return results
}
