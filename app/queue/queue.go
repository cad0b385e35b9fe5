// Package queue implements the FeedJob queue over Redis lists: LPUSH to
// enqueue, BRPOP to consume, a second list for dead letters. Redelivery is
// explicit (a failed handler re-enqueues with an incremented attempt
// counter), and the pipeline's idempotency is what makes that safe.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	jobsKey = "feedvault:jobs"
	deadKey = "feedvault:dead"

	DefaultMaxAttempts = 3
)

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Interface is the queue surface consumed by the scheduler, the worker pool
// and the admin handlers.
type Interface interface {
	Enqueue(ctx context.Context, job FeedJob) error
	Dequeue(ctx context.Context, timeout time.Duration) (*FeedJob, error)
	Retry(ctx context.Context, job FeedJob, cause error) error
	DeadLetter(ctx context.Context, job FeedJob, cause error) error
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
	RetryDeadLetters(ctx context.Context, limit int) (int, error)
	Len(ctx context.Context) (int64, error)
	DeadLetterLen(ctx context.Context) (int64, error)
}

var _ Interface = (*Queue)(nil)

type Queue struct {
	rdb         *redis.Client
	maxAttempts int
}

func New(rdb *redis.Client, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Queue{rdb: rdb, maxAttempts: maxAttempts}
}

func (q *Queue) Enqueue(ctx context.Context, job FeedJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.rdb.LPush(ctx, jobsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

// Dequeue blocks up to timeout for the next job. Returns (nil, nil) when the
// timeout elapses with an empty queue.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*FeedJob, error) {
	res, err := q.rdb.BRPop(ctx, timeout, jobsKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}

	var job FeedJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// Retry re-enqueues a transiently failed job unless its attempt budget is
// spent, in which case it is dead-lettered.
func (q *Queue) Retry(ctx context.Context, job FeedJob, cause error) error {
	job.Attempt++
	if job.Attempt >= q.maxAttempts {
		return q.DeadLetter(ctx, job, cause)
	}
	return q.Enqueue(ctx, job)
}

func (q *Queue) DeadLetter(ctx context.Context, job FeedJob, cause error) error {
	letter := DeadLetter{
		Job:      job,
		FailedAt: time.Now().UTC(),
	}
	if cause != nil {
		letter.Error = cause.Error()
	}

	data, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	if err := q.rdb.LPush(ctx, deadKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter: %w", err)
	}

	return nil
}

func (q *Queue) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}

	raw, err := q.rdb.LRange(ctx, deadKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	letters := make([]DeadLetter, 0, len(raw))
	for _, item := range raw {
		var letter DeadLetter
		if err := json.Unmarshal([]byte(item), &letter); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dead letter: %w", err)
		}
		letters = append(letters, letter)
	}

	return letters, nil
}

// RetryDeadLetters moves up to limit dead letters back onto the job queue
// with a fresh attempt budget.
func (q *Queue) RetryDeadLetters(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	moved := 0
	for moved < limit {
		raw, err := q.rdb.RPop(ctx, deadKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("failed to pop dead letter: %w", err)
		}

		var letter DeadLetter
		if err := json.Unmarshal([]byte(raw), &letter); err != nil {
			return moved, fmt.Errorf("failed to unmarshal dead letter: %w", err)
		}

		job := letter.Job
		job.Attempt = 0
		if err := q.Enqueue(ctx, job); err != nil {
			return moved, err
		}
		moved++
	}

	return moved, nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, jobsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return n, nil
}

func (q *Queue) DeadLetterLen(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, deadKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get dead letter length: %w", err)
	}
	return n, nil
}
