// Package health models per-feed fetch health as a pure state machine,
// separate from the I/O that records it.
package health

// Outcome classifies a finished fetch attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNotModified
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotModified:
		return "not_modified"
	case OutcomeFailure:
		return "failed"
	}
	return "unknown"
}

// State is the health-relevant slice of a feed record.
type State struct {
	ConsecutiveFailures int
	IsActive            bool
	FetchError          string
}

// MaxErrorLen bounds the stored fetch error description.
const MaxErrorLen = 500

// Apply returns the state after one fetch attempt. Success and not-modified
// reset the failure counter; a failure that pushes the counter to the
// threshold (>=) deactivates the feed. Permanent errors (404, parse
// failures) go through the same counter rather than deactivating
// immediately, so a host serving transient 404s during a deploy is not
// punished and the recovery sweep stays the single path back to active.
func Apply(s State, outcome Outcome, fetchErr string, threshold int) State {
	switch outcome {
	case OutcomeSuccess, OutcomeNotModified:
		s.ConsecutiveFailures = 0
		s.FetchError = ""
	case OutcomeFailure:
		s.ConsecutiveFailures++
		s.FetchError = Truncate(fetchErr, MaxErrorLen)
		if threshold > 0 && s.ConsecutiveFailures >= threshold {
			s.IsActive = false
		}
	}
	return s
}

// Truncate bounds s to max bytes.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
