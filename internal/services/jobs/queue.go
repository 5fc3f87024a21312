package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bookwhisperer/config"
	"bookwhisperer/internal/database/model"
	"bookwhisperer/pkg/logger"
)

// Task is one unit of background work. It travels through the queue as
// JSON; the ProcessingJob row referenced by JobID carries the state.
type Task struct {
	JobID     string        `json:"job_id"`
	Type      model.JobType `json:"type"`
	BookID    string        `json:"book_id,omitempty"`
	ChapterID string        `json:"chapter_id,omitempty"`
	Voice     string        `json:"voice,omitempty"`
	Language  string        `json:"language,omitempty"`
}

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue blocks until a task arrives or ctx is done.
	Dequeue(ctx context.Context) (Task, error)
	Close() error
}

// NewQueue picks the backend: Redis when an address is configured, an
// in-process queue otherwise. Single-instance deployments need no broker.
func NewQueue() Queue {
	if config.Cfg.Redis.Addr != "" {
		return newRedisQueue()
	}
	logger.Info("%v: no redis address configured, using in-memory queue", config.ModuleJobs)
	return newMemoryQueue(1024)
}

type memoryQueue struct {
	ch chan Task
}

func newMemoryQueue(size int) *memoryQueue {
	return &memoryQueue{ch: make(chan Task, size)}
}

func (q *memoryQueue) Enqueue(_ context.Context, task Task) error {
	select {
	case q.ch <- task:
		return nil
	default:
		return fmt.Errorf("job queue full")
	}
}

func (q *memoryQueue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case task := <-q.ch:
		return task, nil
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

func (q *memoryQueue) Close() error { return nil }

type redisQueue struct {
	client *redis.Client
	key    string
}

func newRedisQueue() *redisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Cfg.Redis.Addr,
		Password: config.Cfg.Redis.Password,
		DB:       config.Cfg.Redis.DB,
	})
	key := config.Cfg.Redis.Queue
	if key == "" {
		key = "bookwhisperer:jobs"
	}
	return &redisQueue{client: client, key: key}
}

func (q *redisQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *redisQueue) Dequeue(ctx context.Context) (Task, error) {
	for {
		res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			return Task{}, err
		}
		// BRPop returns [key, value].
		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			logger.Error(err, "%v: dropping malformed task payload", config.ModuleJobs)
			continue
		}
		return task, nil
	}
}

func (q *redisQueue) Close() error { return q.client.Close() }
