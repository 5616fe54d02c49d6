package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue and Locker for tests and single-node
// development. Dequeue does not block; an empty queue returns immediately.
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string][]*Job
	locks  map[string]time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queues: make(map[string][]*Job),
		locks:  make(map[string]time.Time),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, queue string, payload interface{}) error {
	job, err := NewJob(payload)
	if err != nil {
		return err
	}
	q.push(queue, job)
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, queue string, timeout time.Duration) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := q.queues[queue]
	if len(jobs) == 0 {
		return nil, nil
	}
	job := jobs[0]
	q.queues[queue] = jobs[1:]
	return job, nil
}

func (q *MemoryQueue) Fail(ctx context.Context, queue string, job *Job) error {
	job.Attempts++
	if job.Attempts >= MaxAttempts {
		q.push(queue+":dead", job)
		return nil
	}
	q.push(queue, job)
	return nil
}

func (q *MemoryQueue) Requeue(ctx context.Context, queue string, job *Job) error {
	q.push(queue, job)
	return nil
}

func (q *MemoryQueue) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if expiry, held := q.locks[key]; held && time.Now().Before(expiry) {
		return false, nil
	}
	q.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (q *MemoryQueue) Release(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.locks, key)
	return nil
}

// Len reports how many jobs sit on a queue. Test helper.
func (q *MemoryQueue) Len(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queue])
}

func (q *MemoryQueue) push(queue string, job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[queue] = append(q.queues[queue], job)
}
