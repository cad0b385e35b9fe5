// Package scheduler emits fetch work on a fixed period: one FeedJob per
// active feed, a bounded recovery sweep over inactive feeds, and a daily
// retention prune. Overlapping cycles are tolerated since every downstream
// effect is idempotent.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"feedvault/app/database"
	"feedvault/app/queue"
)

type Scheduler struct {
	cron    *cron.Cron
	feeds   database.FeedRepository
	entries database.EntryRepository
	vectors database.VectorIndex
	queue   queue.Interface

	interval      time.Duration
	recoveryLimit int
	retentionDays int

	ctx    context.Context
	cancel context.CancelFunc
}

func New(feeds database.FeedRepository, entries database.EntryRepository,
	vectors database.VectorIndex, q queue.Interface,
	interval time.Duration, recoveryLimit, retentionDays int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:          cron.New(),
		feeds:         feeds,
		entries:       entries,
		vectors:       vectors,
		queue:         q,
		interval:      interval,
		recoveryLimit: recoveryLimit,
		retentionDays: retentionDays,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start registers the cron entries and runs one cycle immediately so the
// first fetches do not wait out a full period.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() { s.RunCycle(s.ctx) }); err != nil {
		return fmt.Errorf("failed to register fetch cycle: %w", err)
	}

	if s.retentionDays > 0 {
		if _, err := s.cron.AddFunc("@daily", func() { s.RunRetention(s.ctx) }); err != nil {
			return fmt.Errorf("failed to register retention job: %w", err)
		}
	}

	s.cron.Start()
	slog.Info("Scheduler started", "interval", s.interval.String(), "recovery_limit", s.recoveryLimit)

	go s.RunCycle(s.ctx)
	return nil
}

func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunCycle enqueues one job per active feed, then reactivates up to
// recoveryLimit inactive feeds and enqueues a probe for each. Store errors
// are logged and end the cycle; they never crash the process.
func (s *Scheduler) RunCycle(ctx context.Context) (enqueued, recovered int) {
	feeds, err := s.feeds.ListActiveFeeds(ctx)
	if err != nil {
		slog.Error("Scheduler failed to list active feeds", "error", err)
		return 0, 0
	}

	for _, fd := range feeds {
		job := queue.FeedJob{
			FeedID:       fd.ID,
			FeedURL:      fd.URL,
			ETag:         fd.ETag,
			LastModified: fd.LastModified,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			slog.Error("Scheduler failed to enqueue job", "feed_id", fd.ID, "error", err)
			continue
		}
		enqueued++
	}

	recovered = s.runRecovery(ctx)

	slog.Info("Scheduler cycle completed", "enqueued", enqueued, "recovered", recovered)
	return enqueued, recovered
}

func (s *Scheduler) runRecovery(ctx context.Context) int {
	if s.recoveryLimit <= 0 {
		return 0
	}

	feeds, err := s.feeds.RecoverInactiveFeeds(ctx, s.recoveryLimit)
	if err != nil {
		slog.Error("Scheduler recovery sweep failed", "error", err)
		return 0
	}

	recovered := 0
	for _, fd := range feeds {
		job := queue.FeedJob{
			FeedID:            fd.ID,
			FeedURL:           fd.URL,
			IsRecoveryAttempt: true,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			slog.Error("Scheduler failed to enqueue recovery probe", "feed_id", fd.ID, "error", err)
			continue
		}
		recovered++
		slog.Info("Feed queued for recovery probe", "feed_id", fd.ID, "url", fd.URL)
	}
	return recovered
}

// RunRetention deletes entries older than the retention window and their
// vectors.
func (s *Scheduler) RunRetention(ctx context.Context) (pruned int) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)

	ids, err := s.entries.PruneOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Retention prune failed", "error", err)
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	if err := s.vectors.DeleteVectors(ctx, ids); err != nil {
		// Orphans are repaired by the next reindex.
		slog.Error("Failed to delete vectors for pruned entries", "count", len(ids), "error", err)
	}

	slog.Info("Retention prune completed", "pruned", len(ids), "cutoff", cutoff.Format(time.RFC3339))
	return len(ids)
}
