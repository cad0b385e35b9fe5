package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedvault/app/database"
)

var (
	ErrReindexRunning  = errors.New("reindex already running")
	ErrReindexCooldown = errors.New("reindex ran recently, still in cooldown")
)

const reindexPageSize = 500

// ReindexStats summarizes one reindex pass.
type ReindexStats struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
	Deleted int `json:"deleted"`
}

// Reindexer restores the store/index consistency invariant: after a
// successful run the vector-id set equals the live entry-id set. It is
// idempotent, serialized against itself, and rate-limited by a cooldown
// since it scans every entry.
type Reindexer struct {
	entries       database.EntryRepository
	vectors       database.VectorIndex
	embedder      Embedder
	embedMaxChars int
	cooldown      time.Duration

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

func NewReindexer(entries database.EntryRepository, vectors database.VectorIndex,
	embedder Embedder, embedMaxChars int, cooldown time.Duration) *Reindexer {
	return &Reindexer{
		entries:       entries,
		vectors:       vectors,
		embedder:      embedder,
		embedMaxChars: embedMaxChars,
		cooldown:      cooldown,
	}
}

func (r *Reindexer) Run(ctx context.Context) (ReindexStats, error) {
	if r.embedder == nil {
		return ReindexStats{}, fmt.Errorf("embedding provider not configured")
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ReindexStats{}, ErrReindexRunning
	}
	if r.cooldown > 0 && !r.lastRun.IsZero() && time.Since(r.lastRun) < r.cooldown {
		r.mu.Unlock()
		return ReindexStats{}, ErrReindexCooldown
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.lastRun = time.Now()
		r.mu.Unlock()
	}()

	return r.run(ctx)
}

func (r *Reindexer) run(ctx context.Context) (ReindexStats, error) {
	var stats ReindexStats
	live := make(map[string]bool)

	for offset := 0; ; offset += reindexPageSize {
		entries, err := r.entries.ListEntriesPage(ctx, offset, reindexPageSize)
		if err != nil {
			return stats, fmt.Errorf("failed to page entries: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			live[entry.ID] = true

			if err := ctx.Err(); err != nil {
				return stats, err
			}

			embedding, err := r.embedder.Embed(ctx, EmbedText(entry.Title, entry.Content, r.embedMaxChars))
			if err != nil {
				slog.Warn("Reindex: embedding failed", "entry_id", entry.ID, "error", err)
				stats.Failed++
				continue
			}

			if err := r.vectors.UpsertVector(ctx, entry.ID, embedding, entry.Title); err != nil {
				slog.Warn("Reindex: vector upsert failed", "entry_id", entry.ID, "error", err)
				stats.Failed++
				continue
			}
			stats.Indexed++
		}
	}

	// Drop vectors whose entry no longer exists.
	vectorIDs, err := r.vectors.ListVectorIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list vector ids: %w", err)
	}

	var orphans []string
	for _, id := range vectorIDs {
		if !live[id] {
			orphans = append(orphans, id)
		}
	}

	if len(orphans) > 0 {
		if err := r.vectors.DeleteVectors(ctx, orphans); err != nil {
			return stats, fmt.Errorf("failed to delete orphan vectors: %w", err)
		}
		stats.Deleted = len(orphans)
	}

	slog.Info("Reindex completed",
		"indexed", stats.Indexed, "failed", stats.Failed, "deleted", stats.Deleted)

	return stats, nil
}
