package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedvault/app/database"
	"feedvault/app/queue"
	"feedvault/app/safety"
	"feedvault/app/search"
)

type mockFeedRepository struct {
	database.FeedRepository

	feed    *database.Feed
	active  bool
	deleted []string
}

func (m *mockFeedRepository) RegisterFeed(_ context.Context, url, title string, _ bool) (string, bool, error) {
	return "feed-1", true, nil
}

func (m *mockFeedRepository) GetFeed(_ context.Context, id string) (*database.Feed, error) {
	if m.feed == nil || m.feed.ID != id {
		return nil, nil
	}
	fd := *m.feed
	return &fd, nil
}

func (m *mockFeedRepository) ListFeeds(_ context.Context) ([]database.Feed, error) {
	if m.feed == nil {
		return nil, nil
	}
	return []database.Feed{*m.feed}, nil
}

func (m *mockFeedRepository) SetFeedActive(_ context.Context, id string, active bool) error {
	m.active = active
	return nil
}

func (m *mockFeedRepository) DeleteFeed(_ context.Context, id string) ([]string, error) {
	m.deleted = append(m.deleted, id)
	return []string{"e1", "e2"}, nil
}

func (m *mockFeedRepository) GetFeedCount(_ context.Context) (int, error) { return 1, nil }

func (m *mockFeedRepository) GetActiveFeedCount(_ context.Context) (int, error) { return 1, nil }

type mockEntryRepository struct {
	database.EntryRepository

	searchResult []database.Entry
}

func (m *mockEntryRepository) GetEntry(_ context.Context, id string) (*database.Entry, error) {
	for _, e := range m.searchResult {
		if e.ID == id {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

func (m *mockEntryRepository) SearchEntries(_ context.Context, _ database.KeywordQuery) ([]database.Entry, error) {
	return m.searchResult, nil
}

func (m *mockEntryRepository) ListFeedEntries(_ context.Context, _ string, _ int) ([]database.Entry, error) {
	return m.searchResult, nil
}

func (m *mockEntryRepository) GetEntryCount(_ context.Context) (int, error) {
	return len(m.searchResult), nil
}

type mockVectorIndex struct {
	database.VectorIndex

	deleted [][]string
}

func (m *mockVectorIndex) DeleteVectors(_ context.Context, entryIDs []string) error {
	m.deleted = append(m.deleted, entryIDs)
	return nil
}

func (m *mockVectorIndex) CountVectors(_ context.Context) (int, error) { return 0, nil }

type mockQueue struct {
	queue.Interface

	jobs []queue.FeedJob
}

func (m *mockQueue) Enqueue(_ context.Context, job queue.FeedJob) error {
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockQueue) Len(_ context.Context) (int64, error) { return int64(len(m.jobs)), nil }

func (m *mockQueue) DeadLetterLen(_ context.Context) (int64, error) { return 0, nil }

func (m *mockQueue) ListDeadLetters(_ context.Context, _ int) ([]queue.DeadLetter, error) {
	return []queue.DeadLetter{{Job: queue.FeedJob{FeedID: "feed-1"}, Error: "boom"}}, nil
}

func (m *mockQueue) RetryDeadLetters(_ context.Context, _ int) (int, error) { return 1, nil }

type allowAllValidator struct{}

func (allowAllValidator) Validate(string) error { return nil }

type rejectValidator struct{}

func (rejectValidator) Validate(rawURL string) error {
	return &safety.ValidationError{URL: rawURL, Reason: "private address"}
}

type testServer struct {
	engine  http.Handler
	feeds   *mockFeedRepository
	entries *mockEntryRepository
	vectors *mockVectorIndex
	queue   *mockQueue
}

func newTestServer(validator URLValidator) *testServer {
	feeds := &mockFeedRepository{
		feed: &database.Feed{ID: "feed-1", URL: "https://example.com/rss.xml", Title: "Example", IsActive: true},
	}
	entries := &mockEntryRepository{
		searchResult: []database.Entry{{ID: "e1", Title: "Hit"}},
	}
	vectors := &mockVectorIndex{}
	q := &mockQueue{}

	searcher := search.NewSearcher(entries, nil, nil, 6, 20, 0.35)
	reindexer := search.NewReindexer(entries, vectors, nil, 6000, time.Minute)

	handler := NewHandler(feeds, entries, vectors, q, searcher, reindexer, validator, "1.0.0")
	return &testServer{
		engine:  NewServer(handler, "secret"),
		feeds:   feeds,
		entries: entries,
		vectors: vectors,
		queue:   q,
	}
}

func (ts *testServer) request(t *testing.T, method, path, body, apiKey string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	w := ts.request(t, "GET", "/search?q=hit", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Total   int             `json:"total"`
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("Expected 1 result, got %d", resp.Total)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	if w := ts.request(t, "GET", "/search", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	if w := ts.request(t, "GET", "/api/feeds", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}
	if w := ts.request(t, "GET", "/api/feeds", "", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}
	if w := ts.request(t, "GET", "/api/feeds", "", "secret"); w.Code != http.StatusOK {
		t.Errorf("Expected 200 with key, got %d", w.Code)
	}
}

func TestAuthBearerToken(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	req := httptest.NewRequest("GET", "/api/feeds", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", w.Code)
	}
}

func TestAddFeed(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	w := ts.request(t, "POST", "/api/feeds", `{"url":"https://example.com/new.xml"}`, "secret")
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Registration triggers an immediate first fetch.
	if len(ts.queue.jobs) != 1 {
		t.Errorf("Expected 1 job enqueued, got %d", len(ts.queue.jobs))
	}
}

func TestAddFeedRejectsUnsafeURL(t *testing.T) {
	ts := newTestServer(rejectValidator{})

	w := ts.request(t, "POST", "/api/feeds", `{"url":"http://10.0.0.1/feed"}`, "secret")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if len(ts.queue.jobs) != 0 {
		t.Errorf("Expected no jobs enqueued, got %d", len(ts.queue.jobs))
	}
}

func TestAddFeedRequiresURL(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	if w := ts.request(t, "POST", "/api/feeds", `{"title":"no url"}`, "secret"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestDeleteFeedRemovesVectors(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	w := ts.request(t, "DELETE", "/api/feeds/feed-1", "", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(ts.feeds.deleted) != 1 {
		t.Errorf("Expected feed deleted, got %v", ts.feeds.deleted)
	}
	if len(ts.vectors.deleted) != 1 || len(ts.vectors.deleted[0]) != 2 {
		t.Errorf("Expected vectors deleted for removed entries, got %+v", ts.vectors.deleted)
	}
}

func TestToggleFeed(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	w := ts.request(t, "POST", "/api/feeds/feed-1/toggle", `{"active":false}`, "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ts.feeds.active {
		t.Error("Expected feed deactivated")
	}
}

func TestRefreshFeedEnqueuesJob(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	w := ts.request(t, "POST", "/api/feeds/feed-1/refresh", "", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(ts.queue.jobs) != 1 || ts.queue.jobs[0].FeedID != "feed-1" {
		t.Errorf("Expected refresh job, got %+v", ts.queue.jobs)
	}
}

func TestGetEntry(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	w := ts.request(t, "GET", "/api/entries/e1", "", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var entry database.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if entry.ID != "e1" {
		t.Errorf("Expected entry e1, got %q", entry.ID)
	}

	if w := ts.request(t, "GET", "/api/entries/missing", "", "secret"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing entry, got %d", w.Code)
	}
}

func TestFeedNotFound(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	if w := ts.request(t, "POST", "/api/feeds/missing/refresh", "", "secret"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestReindexWithoutEmbedder(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	// No embedding provider configured; the reindexer reports that.
	if w := ts.request(t, "POST", "/api/reindex", "", "secret"); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestDeadLetterEndpoints(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	w := ts.request(t, "GET", "/api/deadletters", "", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("Expected 1 dead letter, got %d", resp.Total)
	}

	w = ts.request(t, "POST", "/api/deadletters/retry", "", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var retryResp struct {
		Requeued int `json:"requeued"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &retryResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if retryResp.Requeued != 1 {
		t.Errorf("Expected 1 requeued, got %d", retryResp.Requeued)
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	w := ts.request(t, "GET", "/stats", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var stats map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	for _, key := range []string{"feeds", "active_feeds", "entries", "vectors"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("Expected stats key %q, got %v", key, stats)
		}
	}
}

func TestRootEndpoint(t *testing.T) {
	ts := newTestServer(allowAllValidator{})

	w := ts.request(t, "GET", "/", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "FeedVault") {
		t.Error("Expected service name in root response")
	}
}
