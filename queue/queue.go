// Package queue provides the durable job queues backing the message pipeline.
// Jobs live in Redis lists; a crashed worker loses at most the job it was
// holding, and exhausted jobs land on a dead-letter list for inspection.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Pipeline stage queues.
const (
	QueueInbound = "email:inbound"
	QueueDraft   = "email:draft"
	QueueSend    = "email:send"
)

// MaxAttempts is how many times a job runs before it is dead-lettered.
const MaxAttempts = 3

// Job is the envelope every queued payload travels in.
type Job struct {
	ID         string          `json:"id"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewJob wraps a payload in a fresh envelope.
func NewJob(payload interface{}) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:         "job_" + uuid.NewString(),
		EnqueuedAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Queue is a named FIFO job queue.
type Queue interface {
	// Enqueue wraps payload in a Job and pushes it onto the named queue.
	Enqueue(ctx context.Context, queue string, payload interface{}) error

	// Dequeue blocks up to timeout for the next job. A nil job with a nil
	// error means the timeout elapsed with nothing to do.
	Dequeue(ctx context.Context, queue string, timeout time.Duration) (*Job, error)

	// Fail records a failed attempt: the job is requeued until MaxAttempts,
	// then moved to the queue's dead-letter list.
	Fail(ctx context.Context, queue string, job *Job) error

	// Requeue puts a job back without consuming an attempt, for jobs that
	// could not run yet (e.g. the thread lock was held).
	Requeue(ctx context.Context, queue string, job *Job) error
}

// Locker provides short-lived mutual exclusion keys, used to serialize
// pipeline work per thread.
type Locker interface {
	// Acquire takes the lock if free. false means somebody else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
