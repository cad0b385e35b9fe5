package database

import (
	"context"
	"database/sql"
	"fmt"
)

var _ FeedRepository = (*feedRepository)(nil)

// feedRepository handles database operations for feeds
type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

const feedColumns = `id, url, title, site_url, etag, last_modified,
	consecutive_failures, is_active, fetch_error, extract_content,
	last_fetch_at, last_success_at, last_entry_at, created_at, updated_at`

func scanFeed(row interface{ Scan(...interface{}) error }) (*Feed, error) {
	var feed Feed
	err := row.Scan(
		&feed.ID, &feed.URL, &feed.Title, &feed.SiteURL, &feed.ETag, &feed.LastModified,
		&feed.ConsecutiveFailures, &feed.IsActive, &feed.FetchError, &feed.ExtractContent,
		&feed.LastFetchAt, &feed.LastSuccessAt, &feed.LastEntryAt, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// RegisterFeed inserts a feed or refreshes an existing one by URL. Returns
// the feed id and whether the row was newly created.
func (r *feedRepository) RegisterFeed(ctx context.Context, url, title string, extractContent bool) (string, bool, error) {
	var id string
	var wasNew bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO feeds (url, title, extract_content)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO UPDATE SET
			title = CASE WHEN EXCLUDED.title <> '' THEN EXCLUDED.title ELSE feeds.title END,
			extract_content = EXCLUDED.extract_content,
			updated_at = NOW()
		RETURNING id, (xmax = 0)
	`, url, title, extractContent).Scan(&id, &wasNew)

	if err != nil {
		return "", false, fmt.Errorf("failed to register feed: %w", err)
	}

	return id, wasNew, nil
}

func (r *feedRepository) GetFeed(ctx context.Context, id string) (*Feed, error) {
	feed, err := scanFeed(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

func (r *feedRepository) GetFeedByURL(ctx context.Context, url string) (*Feed, error) {
	feed, err := scanFeed(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE url = $1`, url))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}
	return feed, nil
}

func (r *feedRepository) ListFeeds(ctx context.Context) ([]Feed, error) {
	return r.listFeeds(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY created_at`)
}

func (r *feedRepository) ListActiveFeeds(ctx context.Context) ([]Feed, error) {
	return r.listFeeds(ctx, `SELECT `+feedColumns+` FROM feeds WHERE is_active = true ORDER BY created_at`)
}

func (r *feedRepository) listFeeds(ctx context.Context, query string, args ...interface{}) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

// UpdateFetchResult persists the outcome of one fetch attempt.
func (r *feedRepository) UpdateFetchResult(ctx context.Context, feedID string, upd FetchResultUpdate) error {
	var err error
	if upd.Success {
		_, err = r.db.ExecContext(ctx, `
			UPDATE feeds SET
				consecutive_failures = 0,
				fetch_error = '',
				etag = $2,
				last_modified = $3,
				title = CASE WHEN $4 <> '' THEN $4 ELSE title END,
				site_url = CASE WHEN $5 <> '' THEN $5 ELSE site_url END,
				last_fetch_at = NOW(),
				last_success_at = NOW(),
				last_entry_at = CASE WHEN $6 THEN NOW() ELSE last_entry_at END,
				updated_at = NOW()
			WHERE id = $1
		`, feedID, upd.ETag, upd.LastModified, upd.Title, upd.SiteURL, upd.HadNewEntries)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE feeds SET
				consecutive_failures = $2,
				is_active = $3,
				fetch_error = $4,
				last_fetch_at = NOW(),
				updated_at = NOW()
			WHERE id = $1
		`, feedID, upd.ConsecutiveFailures, upd.IsActive, upd.FetchError)
	}

	if err != nil {
		return fmt.Errorf("failed to update fetch result: %w", err)
	}

	return nil
}

// SetFeedActive is the manual toggle; it also clears the failure counter on
// re-activation so the feed gets a full failure budget again.
func (r *feedRepository) SetFeedActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds SET
			is_active = $2,
			consecutive_failures = CASE WHEN $2 THEN 0 ELSE consecutive_failures END,
			updated_at = NOW()
		WHERE id = $1
	`, id, active)

	if err != nil {
		return fmt.Errorf("failed to set feed active status: %w", err)
	}

	return nil
}

// RecoverInactiveFeeds optimistically re-enables up to limit inactive feeds
// (oldest first) and returns them for re-enqueueing.
func (r *feedRepository) RecoverInactiveFeeds(ctx context.Context, limit int) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE feeds SET
			consecutive_failures = 0,
			is_active = true,
			updated_at = NOW()
		WHERE id IN (
			SELECT id FROM feeds
			WHERE is_active = false
			ORDER BY updated_at ASC
			LIMIT $1
		)
		RETURNING `+feedColumns+`
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to recover inactive feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recovered feed: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recovered feeds: %w", err)
	}

	return feeds, nil
}

// DeleteFeed removes a feed and (via cascade) its entries, returning the
// deleted entry ids so the caller can drop their vectors.
func (r *feedRepository) DeleteFeed(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM entries WHERE feed_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed entries: %w", err)
	}

	var entryIDs []string
	for rows.Next() {
		var entryID string
		if err := rows.Scan(&entryID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entry id: %w", err)
		}
		entryIDs = append(entryIDs, entryID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry ids: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to delete feed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit feed deletion: %w", err)
	}

	return entryIDs, nil
}

func (r *feedRepository) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *feedRepository) GetActiveFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds WHERE is_active = true").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get active feed count: %w", err)
	}
	return count, nil
}
