package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is the single-process Queue used when no SQS url is configured. Jobs are handed to the
// worker pool in arrival order and never redelivered, so Delete has nothing to acknowledge.
type MemoryQueue struct {
	jobs chan queueMessage
}

// NewMemoryQueue creates a MemoryQueue holding up to buffer pending jobs.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{jobs: make(chan queueMessage, buffer)}
}

// Send enqueues a job payload, blocking while the buffer is full.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	select {
	case q.jobs <- queueMessage{ID: uuid.NewString(), Body: body, ReceiptHandle: uuid.NewString()}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive drains up to maxMessages jobs. When the buffer is empty it waits up to waitSeconds for the first
// one, mirroring SQS long polling; a non-positive wait returns nil at once.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxMessages <= 0 {
		maxMessages = 1
	}
	batch := q.drain(nil, maxMessages)
	if len(batch) > 0 || waitSeconds <= 0 {
		return batch, nil
	}

	timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case first := <-q.jobs:
		return q.drain([]queueMessage{first}, maxMessages), nil
	}
}

// Delete is a no-op: a received job is already gone from the buffer.
func (q *MemoryQueue) Delete(context.Context, string) error {
	return nil
}

func (q *MemoryQueue) drain(batch []queueMessage, max int) []queueMessage {
	for len(batch) < max {
		select {
		case msg := <-q.jobs:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
	return batch
}
