package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"feedvault/app/events"
	"feedvault/app/queue"
)

const dequeueTimeout = 5 * time.Second

// Workers is the consumer pool. Each worker blocks on the queue, processes
// one job at a time and routes failures per the error taxonomy.
type Workers struct {
	queue     queue.Interface
	processor *Processor
	emitter   *events.Emitter
	count     int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorkers(q queue.Interface, processor *Processor, emitter *events.Emitter, count int) *Workers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Workers{
		queue:     q,
		processor: processor,
		emitter:   emitter,
		count:     count,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (w *Workers) Start() {
	for i := 0; i < w.count; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}
	slog.Info("Worker pool started", "workers", w.count)
}

func (w *Workers) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Workers) worker(id int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(w.ctx, dequeueTimeout)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			slog.Error("Worker dequeue failed", "worker_id", id, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.handle(id, *job)
	}
}

func (w *Workers) handle(workerID int, job queue.FeedJob) {
	err := w.processor.Process(w.ctx, job)
	if err == nil {
		return
	}

	slog.Error("Worker job failed",
		"worker_id", workerID,
		"job_id", job.ID,
		"feed_id", job.FeedID,
		"url", job.FeedURL,
		"attempt", job.Attempt,
		"error", err)

	switch RouteFor(err) {
	case RouteDeadLetter:
		if dlErr := w.queue.DeadLetter(w.ctx, job, err); dlErr != nil {
			slog.Error("Failed to dead-letter job", "feed_id", job.FeedID, "error", dlErr)
			return
		}
		w.emitter.Emit(events.Event{Type: events.TypeJobDeadLettered, FeedID: job.FeedID, FeedURL: job.FeedURL, Detail: err.Error()})

	case RouteDrop:
		slog.Info("Job dropped, URL permanently gone", "feed_id", job.FeedID, "url", job.FeedURL)

	case RouteRetry:
		if rErr := w.queue.Retry(w.ctx, job, err); rErr != nil {
			slog.Error("Failed to re-enqueue job", "feed_id", job.FeedID, "error", rErr)
		}
	}
}
