package pipeline

import (
	"errors"
	"fmt"

	"feedvault/app/safety"
)

// NetworkError covers transport-level fetch failures: connection refused,
// DNS, TLS, timeouts. Always transient.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx, non-304 response. 404 and 410 mean the
// URL is gone and retrying the same job is pointless; everything else
// (429, 5xx) is worth redelivering.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

func (e *HTTPStatusError) Permanent() bool {
	return e.StatusCode == 404 || e.StatusCode == 410
}

// ParseError is a body that is not a well-formed RSS/Atom document. A
// redelivery fetches a fresh body, so it stays in the retry budget.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IndexingError is an embedding or vector-store failure for one entry.
// It never fails the job; the entry stays searchable by keyword and the
// next reindex closes the gap.
type IndexingError struct {
	EntryID string
	Err     error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("failed to index entry %s: %v", e.EntryID, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

// Routing decides what the worker does with a failed job.
type Routing int

const (
	RouteRetry Routing = iota // transient, hand back for redelivery
	RouteDrop                 // permanent for this job, failure already recorded
	RouteDeadLetter
)

// RouteFor classifies a processing error. Validation failures dead-letter
// immediately; 404/410 are dropped since the next scheduler cycle issues
// a fresh job anyway; everything else is redelivered.
func RouteFor(err error) Routing {
	var ve *safety.ValidationError
	if errors.As(err, &ve) {
		return RouteDeadLetter
	}

	var se *HTTPStatusError
	if errors.As(err, &se) && se.Permanent() {
		return RouteDrop
	}

	return RouteRetry
}
