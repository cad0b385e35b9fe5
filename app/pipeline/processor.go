package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedvault/app/database"
	"feedvault/app/events"
	"feedvault/app/feed"
	"feedvault/app/health"
	"feedvault/app/queue"
	"feedvault/app/safety"
	"feedvault/app/search"
)

// Content shorter than this triggers readability extraction for feeds
// that opt in. Many feeds ship only a teaser in the body.
const thinContentLen = 500

type urlValidator interface {
	Validate(rawURL string) error
}

// Processor executes one FeedJob end to end: validate, conditional fetch,
// parse, normalize, upsert, index, record health. Every step is idempotent
// so redelivered jobs are harmless.
type Processor struct {
	validator  urlValidator
	fetcher    *Fetcher
	parser     *feed.Parser
	normalizer *feed.Normalizer
	sanitizer  *feed.Sanitizer
	extractor  *feed.ContentExtractor
	feeds      database.FeedRepository
	entries    database.EntryRepository
	vectors    database.VectorIndex
	embedder   search.Embedder
	emitter    *events.Emitter

	embedMaxChars    int
	failureThreshold int
}

func NewProcessor(fetcher *Fetcher, feeds database.FeedRepository, entries database.EntryRepository,
	vectors database.VectorIndex, embedder search.Embedder, emitter *events.Emitter,
	summaryMaxLen, embedMaxChars, failureThreshold int) *Processor {
	return &Processor{
		validator:        safety.NewValidator(),
		fetcher:          fetcher,
		parser:           feed.NewParser(),
		normalizer:       feed.NewNormalizer(summaryMaxLen),
		sanitizer:        feed.NewSanitizer(),
		extractor:        feed.NewContentExtractor(),
		feeds:            feeds,
		entries:          entries,
		vectors:          vectors,
		embedder:         embedder,
		emitter:          emitter,
		embedMaxChars:    embedMaxChars,
		failureThreshold: failureThreshold,
	}
}

// Process runs one job. A returned error has already been recorded against
// the feed's health where appropriate; the caller only decides routing.
func (p *Processor) Process(ctx context.Context, job queue.FeedJob) error {
	start := time.Now()

	fd, err := p.feeds.GetFeed(ctx, job.FeedID)
	if err != nil {
		return fmt.Errorf("failed to load feed %s: %w", job.FeedID, err)
	}
	if fd == nil {
		slog.Warn("Feed no longer exists, dropping job", "feed_id", job.FeedID)
		return nil
	}

	if err := p.validator.Validate(fd.URL); err != nil {
		p.recordFailure(ctx, fd, err)
		return err
	}

	result, err := p.fetcher.Fetch(ctx, fd.URL, job.ETag, job.LastModified)
	if err != nil {
		p.recordFailure(ctx, fd, err)
		return err
	}

	if result.NotModified {
		return p.recordNotModified(ctx, fd, start)
	}

	metadata, parsed, err := p.parser.Run(result.Body)
	if err != nil {
		perr := &ParseError{URL: fd.URL, Err: err}
		p.recordFailure(ctx, fd, perr)
		return perr
	}

	baseURL := cmp.Or(metadata.Link, fd.URL)

	added := 0
	updated := 0
	for _, pe := range parsed {
		entry := p.normalizer.Run(fd.ID, baseURL, pe)

		if fd.ExtractContent && len(entry.Content) < thinContentLen && entry.URL != "" {
			p.extract(ctx, &entry)
		}

		id, wasNew, err := p.entries.UpsertEntry(ctx, fd.ID, database.EntryFields{
			GUID:        entry.GUID,
			URL:         entry.URL,
			Title:       entry.Title,
			Author:      entry.Author,
			Content:     entry.Content,
			Summary:     entry.Summary,
			PublishedAt: entry.PublishedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert entry: %w", err)
		}
		if wasNew {
			added++
			p.emitter.Emit(events.Event{Type: events.TypeEntryAdded, FeedID: fd.ID, FeedURL: fd.URL})
		} else {
			updated++
		}

		p.index(ctx, id, entry)
	}

	state := health.Apply(p.currentState(fd), health.OutcomeSuccess, "", p.failureThreshold)
	upd := database.FetchResultUpdate{
		Success:             true,
		ConsecutiveFailures: state.ConsecutiveFailures,
		IsActive:            state.IsActive,
		ETag:                result.ETag,
		LastModified:        result.LastModified,
		Title:               metadata.Title,
		SiteURL:             metadata.Link,
		HadNewEntries:       added > 0,
	}
	if err := p.feeds.UpdateFetchResult(ctx, fd.ID, upd); err != nil {
		return fmt.Errorf("failed to record fetch result: %w", err)
	}

	if job.IsRecoveryAttempt {
		p.emitter.Emit(events.Event{Type: events.TypeFeedRecovered, FeedID: fd.ID, FeedURL: fd.URL})
	}
	p.emitter.Emit(events.Event{Type: events.TypeFeedFetched, FeedID: fd.ID, FeedURL: fd.URL, Count: added})

	slog.Info("Feed processed",
		"feed_id", fd.ID,
		"url", fd.URL,
		"duration", time.Since(start).Round(time.Millisecond).String(),
		"total", len(parsed),
		"added", added,
		"updated", updated)

	return nil
}

func (p *Processor) recordNotModified(ctx context.Context, fd *database.Feed, start time.Time) error {
	state := health.Apply(p.currentState(fd), health.OutcomeNotModified, "", p.failureThreshold)
	upd := database.FetchResultUpdate{
		Success:             true,
		ConsecutiveFailures: state.ConsecutiveFailures,
		IsActive:            state.IsActive,
		ETag:                fd.ETag,
		LastModified:        fd.LastModified,
	}
	if err := p.feeds.UpdateFetchResult(ctx, fd.ID, upd); err != nil {
		return fmt.Errorf("failed to record fetch result: %w", err)
	}

	p.emitter.Emit(events.Event{Type: events.TypeFeedNotModified, FeedID: fd.ID, FeedURL: fd.URL})
	slog.Debug("Feed not modified",
		"feed_id", fd.ID,
		"url", fd.URL,
		"duration", time.Since(start).Round(time.Millisecond).String())
	return nil
}

// recordFailure applies one failure to the feed's health state. Errors
// while recording are logged, not returned: the job's own error drives
// the routing decision.
func (p *Processor) recordFailure(ctx context.Context, fd *database.Feed, cause error) {
	state := health.Apply(p.currentState(fd), health.OutcomeFailure, cause.Error(), p.failureThreshold)

	upd := database.FetchResultUpdate{
		Success:             false,
		ConsecutiveFailures: state.ConsecutiveFailures,
		IsActive:            state.IsActive,
		FetchError:          state.FetchError,
	}
	if err := p.feeds.UpdateFetchResult(ctx, fd.ID, upd); err != nil {
		slog.Error("Failed to record fetch failure", "feed_id", fd.ID, "error", err)
	}

	p.emitter.Emit(events.Event{Type: events.TypeFeedFailed, FeedID: fd.ID, FeedURL: fd.URL, Detail: state.FetchError})
	if fd.IsActive && !state.IsActive {
		slog.Warn("Feed deactivated after repeated failures",
			"feed_id", fd.ID, "url", fd.URL, "consecutive_failures", state.ConsecutiveFailures)
		p.emitter.Emit(events.Event{Type: events.TypeFeedDeactivated, FeedID: fd.ID, FeedURL: fd.URL, Count: state.ConsecutiveFailures})
	}
}

func (p *Processor) currentState(fd *database.Feed) health.State {
	return health.State{
		ConsecutiveFailures: fd.ConsecutiveFailures,
		IsActive:            fd.IsActive,
		FetchError:          fd.FetchError,
	}
}

// extract replaces thin feed content with the readability extraction of
// the entry's page. Best effort: any failure keeps the feed-provided
// content.
func (p *Processor) extract(ctx context.Context, entry *feed.Entry) {
	data, err := p.fetcher.FetchPage(ctx, entry.URL)
	if err != nil {
		slog.Debug("Content extraction fetch failed", "url", entry.URL, "error", err)
		return
	}

	extracted, err := p.extractor.Run(data, entry.URL)
	if err != nil {
		slog.Debug("Content extraction failed", "url", entry.URL, "error", err)
		return
	}
	if extracted == "" {
		return
	}

	entry.Content = feed.StripControlChars(p.sanitizer.Run(feed.RewriteURLs(extracted, entry.URL)))
}

// index embeds one entry and upserts its vector. Failures are logged and
// swallowed: drift is repaired by the next reindex.
func (p *Processor) index(ctx context.Context, entryID string, entry feed.Entry) {
	if p.embedder == nil || p.vectors == nil {
		return
	}

	embedding, err := p.embedder.Embed(ctx, search.EmbedText(entry.Title, entry.Content, p.embedMaxChars))
	if err != nil {
		slog.Error("Entry indexing failed", "error", &IndexingError{EntryID: entryID, Err: err})
		return
	}

	if err := p.vectors.UpsertVector(ctx, entryID, embedding, entry.Title); err != nil {
		slog.Error("Entry indexing failed", "error", &IndexingError{EntryID: entryID, Err: err})
	}
}
