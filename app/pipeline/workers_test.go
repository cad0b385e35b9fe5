package pipeline

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedvault/app/database"
	"feedvault/app/queue"
	"feedvault/app/safety"
)

func newWorkerEnv(t *testing.T, status int) (*Workers, *mockQueue, *mockFeedRepository) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	feeds := &mockFeedRepository{
		feed: &database.Feed{ID: "feed-1", URL: server.URL, IsActive: true},
	}
	fetcher := NewFetcher(nil, "TestAgent/1.0", 5*time.Second)
	p := NewProcessor(fetcher, feeds, newMockEntryRepository(), newMockVectorIndex(), nil, nil, 500, 6000, 10)
	p.validator = allowAllValidator{}

	q := &mockQueue{}
	return NewWorkers(q, p, nil, 1), q, feeds
}

func TestHandleRetriesTransientFailure(t *testing.T) {
	w, q, _ := newWorkerEnv(t, http.StatusInternalServerError)

	w.handle(0, queue.FeedJob{FeedID: "feed-1", Attempt: 1})

	if len(q.retried) != 1 {
		t.Errorf("Expected 1 retry, got %d", len(q.retried))
	}
	if len(q.deadLetters) != 0 {
		t.Errorf("Expected no dead letters, got %d", len(q.deadLetters))
	}
}

func TestHandleDropsPermanentHTTPFailure(t *testing.T) {
	w, q, feeds := newWorkerEnv(t, http.StatusGone)

	w.handle(0, queue.FeedJob{FeedID: "feed-1"})

	if len(q.retried) != 0 || len(q.deadLetters) != 0 {
		t.Errorf("Expected drop, got %d retries / %d dead letters", len(q.retried), len(q.deadLetters))
	}
	// Still counted against the feed.
	if feeds.feed.ConsecutiveFailures != 1 {
		t.Errorf("Expected failure counted, got %d", feeds.feed.ConsecutiveFailures)
	}
}

func TestHandleDeadLettersValidationFailure(t *testing.T) {
	w, q, _ := newWorkerEnv(t, http.StatusOK)
	w.processor.validator = rejectValidator{err: &safety.ValidationError{URL: "u", Reason: "private address"}}

	w.handle(0, queue.FeedJob{FeedID: "feed-1", FeedURL: "u"})

	if len(q.deadLetters) != 1 {
		t.Fatalf("Expected 1 dead letter, got %d", len(q.deadLetters))
	}
	if len(q.retried) != 0 {
		t.Errorf("Expected no retries, got %d", len(q.retried))
	}
}

func TestHandleSuccessTouchesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer server.Close()

	feeds := &mockFeedRepository{
		feed: &database.Feed{ID: "feed-1", URL: server.URL, IsActive: true},
	}
	fetcher := NewFetcher(nil, "TestAgent/1.0", 5*time.Second)
	p := NewProcessor(fetcher, feeds, newMockEntryRepository(), newMockVectorIndex(), nil, nil, 500, 6000, 10)
	p.validator = allowAllValidator{}

	q := &mockQueue{}
	w := NewWorkers(q, p, nil, 1)
	w.handle(0, queue.FeedJob{FeedID: "feed-1"})

	if len(q.retried) != 0 || len(q.deadLetters) != 0 {
		t.Errorf("Expected no queue routing on success, got %d retries / %d dead letters",
			len(q.retried), len(q.deadLetters))
	}
}
