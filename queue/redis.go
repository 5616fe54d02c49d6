package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flowdesk/config"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix  = "flowdesk:queue:"
	lockPrefix = "flowdesk:lock:"
)

// RedisQueue implements Queue and Locker on a single Redis connection.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(cfg config.RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisQueue{client: client}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, queue string, payload interface{}) error {
	job, err := NewJob(payload)
	if err != nil {
		return err
	}
	return q.push(ctx, queue, job)
}

func (q *RedisQueue) Dequeue(ctx context.Context, queue string, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, keyPrefix+queue).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPOP returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("corrupt job on %s: %w", queue, err)
	}
	return &job, nil
}

func (q *RedisQueue) Fail(ctx context.Context, queue string, job *Job) error {
	job.Attempts++
	if job.Attempts >= MaxAttempts {
		return q.push(ctx, queue+":dead", job)
	}
	return q.push(ctx, queue, job)
}

func (q *RedisQueue) Requeue(ctx context.Context, queue string, job *Job) error {
	return q.push(ctx, queue, job)
}

func (q *RedisQueue) push(ctx context.Context, queue string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, keyPrefix+queue, raw).Err()
}

// Acquire takes a lock via SET NX with a TTL, so a crashed worker's lock
// expires on its own.
func (q *RedisQueue) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return q.client.SetNX(ctx, lockPrefix+key, 1, ttl).Result()
}

func (q *RedisQueue) Release(ctx context.Context, key string) error {
	return q.client.Del(ctx, lockPrefix+key).Err()
}

// Close tears down the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
