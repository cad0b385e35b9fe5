package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var _ EntryRepository = (*entryRepository)(nil)

// entryRepository handles database operations for entries
type entryRepository struct {
	db *DB
}

func NewEntryRepository(db *DB) EntryRepository {
	return &entryRepository{db: db}
}

const entryColumns = `id, feed_id, guid, url, title, author, content, summary, published_at, first_seen`

func scanEntry(row interface{ Scan(...interface{}) error }) (*Entry, error) {
	var entry Entry
	err := row.Scan(
		&entry.ID, &entry.FeedID, &entry.GUID, &entry.URL, &entry.Title,
		&entry.Author, &entry.Content, &entry.Summary, &entry.PublishedAt, &entry.FirstSeen,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpsertEntry inserts an entry or updates the mutable fields of the existing
// (feed_id, guid) row. Safe to call twice with identical arguments; wasNew
// reports whether a row was created.
func (r *entryRepository) UpsertEntry(ctx context.Context, feedID string, fields EntryFields) (string, bool, error) {
	var id string
	var wasNew bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO entries (feed_id, guid, url, title, author, content, summary, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (feed_id, guid) DO UPDATE SET
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			content = EXCLUDED.content,
			summary = EXCLUDED.summary,
			published_at = EXCLUDED.published_at
		RETURNING id, (xmax = 0)
	`, feedID, fields.GUID, fields.URL, fields.Title, fields.Author,
		fields.Content, fields.Summary, fields.PublishedAt).Scan(&id, &wasNew)

	if err != nil {
		return "", false, fmt.Errorf("failed to upsert entry: %w", err)
	}

	return id, wasNew, nil
}

func (r *entryRepository) GetEntry(ctx context.Context, id string) (*Entry, error) {
	entry, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

func (r *entryRepository) GetEntriesByIDs(ctx context.Context, ids []string) ([]Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return r.listEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ANY($1)`, pq.Array(ids))
}

// ListEntriesPage returns a stable page for full-store scans (reindex).
func (r *entryRepository) ListEntriesPage(ctx context.Context, offset, limit int) ([]Entry, error) {
	return r.listEntries(ctx,
		`SELECT `+entryColumns+` FROM entries ORDER BY first_seen, id OFFSET $1 LIMIT $2`,
		offset, limit)
}

func (r *entryRepository) ListFeedEntries(ctx context.Context, feedID string, limit int) ([]Entry, error) {
	return r.listEntries(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE feed_id = $1
		 ORDER BY COALESCE(published_at, first_seen) DESC
		 LIMIT $2`, feedID, limit)
}

// SearchEntries runs a keyword query built by the search query builder. The
// WHERE fragment contains only placeholders; every user-derived value is in
// query.Args.
func (r *entryRepository) SearchEntries(ctx context.Context, query KeywordQuery) ([]Entry, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}

	sqlText := `SELECT ` + entryColumns + ` FROM entries WHERE ` + query.Where +
		fmt.Sprintf(` ORDER BY COALESCE(published_at, first_seen) DESC LIMIT %d`, limit)

	return r.listEntries(ctx, sqlText, query.Args...)
}

// PruneOlderThan deletes entries whose published (or, failing that, first
// seen) date precedes the cutoff, returning their ids so the caller can drop
// the corresponding vectors.
func (r *entryRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		DELETE FROM entries
		WHERE COALESCE(published_at, first_seen) < $1
		RETURNING id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to prune entries: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pruned entry id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pruned entries: %w", err)
	}

	return ids, nil
}

func (r *entryRepository) GetEntryCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get entry count: %w", err)
	}
	return count, nil
}

func (r *entryRepository) listEntries(ctx context.Context, query string, args ...interface{}) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return entries, nil
}
