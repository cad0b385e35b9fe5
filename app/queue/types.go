package queue

import (
	"time"
)

// FeedJob is one unit of fetch work. The queue delivers at-least-once, so
// everything a job triggers downstream must be idempotent.
type FeedJob struct {
	ID                string `json:"id"`
	FeedID            string `json:"feed_id"`
	FeedURL           string `json:"feed_url"`
	ETag              string `json:"etag,omitempty"`
	LastModified      string `json:"last_modified,omitempty"`
	IsRecoveryAttempt bool   `json:"is_recovery_attempt,omitempty"`
	Attempt           int    `json:"attempt,omitempty"`
}

// DeadLetter wraps a permanently abandoned job with its final error.
type DeadLetter struct {
	Job      FeedJob   `json:"job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}
