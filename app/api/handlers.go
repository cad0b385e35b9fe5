package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"feedvault/app/database"
	"feedvault/app/queue"
	"feedvault/app/safety"
	"feedvault/app/search"
)

const defaultEntryLimit = 50

func NewHandler(feeds database.FeedRepository, entries database.EntryRepository,
	vectors database.VectorIndex, q queue.Interface, searcher *search.Searcher,
	reindexer *search.Reindexer, validator URLValidator, version string) *Handler {
	return &Handler{
		feeds:     feeds,
		entries:   entries,
		vectors:   vectors,
		queue:     q,
		searcher:  searcher,
		reindexer: reindexer,
		validator: validator,
		version:   version,
	}
}

func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query parameter 'q'"})
		return
	}

	results, truncated, err := h.searcher.Search(c.Request.Context(), query)
	if err != nil {
		slog.Error("Search failed", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":     query,
		"truncated": truncated,
		"total":     len(results),
		"results":   results,
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	ctx := c.Request.Context()
	if feedCount, err := h.feeds.GetFeedCount(ctx); err == nil {
		health["feeds"] = feedCount
	}
	if entryCount, err := h.entries.GetEntryCount(ctx); err == nil {
		health["entries"] = entryCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats := map[string]interface{}{}

	if total, err := h.feeds.GetFeedCount(ctx); err == nil {
		stats["feeds"] = total
	}
	if active, err := h.feeds.GetActiveFeedCount(ctx); err == nil {
		stats["active_feeds"] = active
	}
	if entryCount, err := h.entries.GetEntryCount(ctx); err == nil {
		stats["entries"] = entryCount
	}
	if vectorCount, err := h.vectors.CountVectors(ctx); err == nil {
		stats["vectors"] = vectorCount
	}
	if queued, err := h.queue.Len(ctx); err == nil {
		stats["queued_jobs"] = queued
	}
	if dead, err := h.queue.DeadLetterLen(ctx); err == nil {
		stats["dead_letters"] = dead
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feeds.ListFeeds(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]feedResponse, 0, len(feeds))
	for _, fd := range feeds {
		out = append(out, toFeedResponse(fd))
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": out,
		"total": len(out),
	})
}

func (h *Handler) AddFeed(c *gin.Context) {
	var req addFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.validator.Validate(req.URL); err != nil {
		var ve *safety.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unsafe feed URL", "details": ve.Reason})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid feed URL", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	id, created, err := h.feeds.RegisterFeed(ctx, req.URL, req.Title, req.ExtractContent)
	if err != nil {
		slog.Error("Database error", "operation", "register_feed", "url", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// First fetch without waiting for the next scheduler cycle.
	if err := h.queue.Enqueue(ctx, queue.FeedJob{FeedID: id, FeedURL: req.URL}); err != nil {
		slog.Warn("Failed to enqueue initial fetch", "feed_id", id, "error", err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"id": id, "url": req.URL, "created": created})
}

func (h *Handler) GetFeedDetails(c *gin.Context) {
	fd, ok := h.loadFeed(c)
	if !ok {
		return
	}

	limit := defaultEntryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.entries.ListFeedEntries(c.Request.Context(), fd.ID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_feed_entries", "feed_id", fd.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":    toFeedResponse(*fd),
		"entries": entries,
		"total":   len(entries),
	})
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	fd, ok := h.loadFeed(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	entryIDs, err := h.feeds.DeleteFeed(ctx, fd.ID)
	if err != nil {
		slog.Error("Database error", "operation", "delete_feed", "feed_id", fd.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if len(entryIDs) > 0 {
		if err := h.vectors.DeleteVectors(ctx, entryIDs); err != nil {
			// Orphans are repaired by the next reindex.
			slog.Error("Failed to delete vectors for removed feed", "feed_id", fd.ID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":         true,
		"entries_removed": len(entryIDs),
	})
}

func (h *Handler) ToggleFeed(c *gin.Context) {
	fd, ok := h.loadFeed(c)
	if !ok {
		return
	}

	var req toggleFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.feeds.SetFeedActive(c.Request.Context(), fd.ID, req.Active); err != nil {
		slog.Error("Database error", "operation", "set_feed_active", "feed_id", fd.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": fd.ID, "is_active": req.Active})
}

func (h *Handler) RefreshFeed(c *gin.Context) {
	fd, ok := h.loadFeed(c)
	if !ok {
		return
	}

	job := queue.FeedJob{
		FeedID:       fd.ID,
		FeedURL:      fd.URL,
		ETag:         fd.ETag,
		LastModified: fd.LastModified,
	}
	if err := h.queue.Enqueue(c.Request.Context(), job); err != nil {
		slog.Error("Failed to enqueue refresh", "feed_id", fd.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue refresh"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": fd.ID, "enqueued": true})
}

func (h *Handler) GetEntry(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing entry id parameter"})
		return
	}

	entry, err := h.entries.GetEntry(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_entry", "entry_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *Handler) Reindex(c *gin.Context) {
	stats, err := h.reindexer.Run(c.Request.Context())
	switch {
	case errors.Is(err, search.ErrReindexRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Reindex already running"})
		return
	case errors.Is(err, search.ErrReindexCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Reindex ran recently, try again later"})
		return
	case err != nil:
		slog.Error("Reindex failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reindex failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"indexed": stats.Indexed,
		"failed":  stats.Failed,
		"deleted": stats.Deleted,
	})
}

func (h *Handler) ListDeadLetters(c *gin.Context) {
	limit := defaultEntryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	letters, err := h.queue.ListDeadLetters(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Failed to list dead letters", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list dead letters"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dead_letters": letters,
		"total":        len(letters),
	})
}

func (h *Handler) RetryDeadLetters(c *gin.Context) {
	limit := defaultEntryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	requeued, err := h.queue.RetryDeadLetters(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Failed to retry dead letters", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retry dead letters"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requeued": requeued})
}

// loadFeed resolves the :id path parameter, writing the error response on
// failure.
func (h *Handler) loadFeed(c *gin.Context) (*database.Feed, bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed id parameter"})
		return nil, false
	}

	fd, err := h.feeds.GetFeed(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if fd == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return nil, false
	}

	return fd, true
}

func toFeedResponse(fd database.Feed) feedResponse {
	resp := feedResponse{
		ID:                  fd.ID,
		URL:                 fd.URL,
		Title:               fd.Title,
		SiteURL:             fd.SiteURL,
		IsActive:            fd.IsActive,
		ConsecutiveFailures: fd.ConsecutiveFailures,
		FetchError:          fd.FetchError,
		ExtractContent:      fd.ExtractContent,
	}
	if fd.LastFetchAt != nil {
		resp.LastFetchAt = fd.LastFetchAt.UTC().Format(time.RFC3339)
	}
	if fd.LastSuccessAt != nil {
		resp.LastSuccessAt = fd.LastSuccessAt.UTC().Format(time.RFC3339)
	}
	if fd.LastEntryAt != nil {
		resp.LastEntryAt = fd.LastEntryAt.UTC().Format(time.RFC3339)
	}
	return resp
}
