package api

import (
	"feedvault/app/database"
	"feedvault/app/queue"
	"feedvault/app/search"
)

// URLValidator rejects unsafe feed URLs before they reach the store.
type URLValidator interface {
	Validate(rawURL string) error
}

type Handler struct {
	feeds     database.FeedRepository
	entries   database.EntryRepository
	vectors   database.VectorIndex
	queue     queue.Interface
	searcher  *search.Searcher
	reindexer *search.Reindexer
	validator URLValidator
	version   string
}

type addFeedRequest struct {
	URL            string `json:"url" binding:"required"`
	Title          string `json:"title"`
	ExtractContent bool   `json:"extract_content"`
}

type toggleFeedRequest struct {
	Active bool `json:"active"`
}

type feedResponse struct {
	ID                  string `json:"id"`
	URL                 string `json:"url"`
	Title               string `json:"title"`
	SiteURL             string `json:"site_url,omitempty"`
	IsActive            bool   `json:"is_active"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	FetchError          string `json:"fetch_error,omitempty"`
	ExtractContent      bool   `json:"extract_content"`
	LastFetchAt         string `json:"last_fetch_at,omitempty"`
	LastSuccessAt       string `json:"last_success_at,omitempty"`
	LastEntryAt         string `json:"last_entry_at,omitempty"`
}
