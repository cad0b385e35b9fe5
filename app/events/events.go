// Package events provides a non-blocking sink for pipeline lifecycle
// events. Emitting never blocks the caller: when the buffer is full the
// event is dropped and counted.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type Type string

const (
	TypeFeedFetched     Type = "feed.fetched"
	TypeFeedNotModified Type = "feed.not_modified"
	TypeFeedFailed      Type = "feed.failed"
	TypeFeedDeactivated Type = "feed.deactivated"
	TypeFeedRecovered   Type = "feed.recovered"
	TypeEntryAdded      Type = "entry.added"
	TypeJobDeadLettered Type = "job.dead_lettered"
)

type Event struct {
	Type      Type
	FeedID    string
	FeedURL   string
	Detail    string
	Count     int
	Timestamp time.Time
}

// Emitter fans events out to the log through a buffered channel. A nil
// Emitter is valid and discards everything.
type Emitter struct {
	ch      chan Event
	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once
}

func NewEmitter(bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	e := &Emitter{
		ch:   make(chan Event, bufferSize),
		done: make(chan struct{}),
	}
	go e.drain()
	return e
}

func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	select {
	case e.ch <- ev:
	default:
		e.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded due to a full buffer.
func (e *Emitter) Dropped() int64 {
	if e == nil {
		return 0
	}
	return e.dropped.Load()
}

func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.once.Do(func() {
		close(e.ch)
		<-e.done
	})
}

func (e *Emitter) drain() {
	defer close(e.done)
	for ev := range e.ch {
		slog.Info("Event",
			"type", string(ev.Type),
			"feed_id", ev.FeedID,
			"feed_url", ev.FeedURL,
			"detail", ev.Detail,
			"count", ev.Count)
	}
}
