// Package queue is the bounded hand-off between the ingestion server and
// the processing pipeline.
package queue

import (
	"context"
	"errors"

	"camsentry/internal/config"
)

// Item is one fully received upload: the file's location on the backing
// filesystem plus a snapshot of the owning user's settings taken at
// enqueue time.
type Item struct {
	Path   string
	UserID string
	User   config.UserConfig
}

// Queue is a fixed-capacity FIFO. Put blocks while the queue is full:
// backpressure rather than loss. Items are consumed exactly once.
type Queue struct {
	ch chan Item
}

func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Item, capacity)}
}

var ErrClosed = errors.New("queue context canceled")

// Put enqueues an item, blocking while the queue is at capacity.
func (q *Queue) Put(ctx context.Context, it Item) error {
	select {
	case q.ch <- it:
		return nil
	case <-ctx.Done():
		return ErrClosed
	}
}

// Get dequeues the oldest item, blocking while the queue is empty.
func (q *Queue) Get(ctx context.Context) (Item, error) {
	select {
	case it := <-q.ch:
		return it, nil
	case <-ctx.Done():
		return Item{}, ErrClosed
	}
}

func (q *Queue) Len() int { return len(q.ch) }
func (q *Queue) Cap() int { return cap(q.ch) }
