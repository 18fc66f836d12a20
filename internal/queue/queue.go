package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"memovault/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	// WaitingQueue is the Redis list key for export jobs
	WaitingQueue = "memovault:export:waiting"
	// FailedQueue is the Redis list key for failed export jobs
	FailedQueue = "memovault:export:failed"
	// BlockTimeout is how long BRPOP will wait for a job
	BlockTimeout = 5 * time.Second
	// FailedJobTTL is how long failed jobs are kept in Redis
	FailedJobTTL = 30 * time.Minute
)

// Job asks the exporter to turn one staged capture into a vault note.
type Job struct {
	ID         string    `json:"id"`
	CaptureID  string    `json:"capture_id"`
	Path       string    `json:"path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FailReason string    `json:"fail_reason,omitempty"` // Set when job fails
}

// Queue manages the Redis export job queue
type Queue struct {
	client *redis.Client
}

// NewQueue creates a new queue connection
func NewQueue(ctx context.Context) (*Queue, error) {
	addr := fmt.Sprintf("%s:%d", config.ValkeyHost, config.ValkeyPort)
	slog.Debug("Connecting to export queue", "addr", addr)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Export queue initialized", "addr", addr)
	return &Queue{client: client}, nil
}

// NewQueueWithClient creates a queue with an existing Redis client (for testing)
func NewQueueWithClient(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue adds an export job to the queue
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	if q.client == nil {
		return errors.New("queue is not connected")
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.LPush(ctx, WaitingQueue, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	slog.Info("Export job enqueued", "job_id", job.ID, "capture_id", job.CaptureID)
	return nil
}

// Dequeue removes and returns a job from the queue.
// This blocks for up to BlockTimeout waiting for a job; a nil job with a nil
// error means the wait timed out.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	if q.client == nil {
		return nil, errors.New("queue is not connected")
	}

	result, err := q.client.BRPop(ctx, BlockTimeout, WaitingQueue).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	// BRPOP returns [key, value]
	if len(result) < 2 {
		return nil, fmt.Errorf("invalid BRPOP result: %v", result)
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	slog.Info("Export job dequeued", "job_id", job.ID, "capture_id", job.CaptureID)
	return &job, nil
}

// FailJob adds a job to the failed queue with a reason
func (q *Queue) FailJob(ctx context.Context, job *Job, reason string) error {
	if q.client == nil {
		return errors.New("queue is not connected")
	}

	job.FailReason = reason

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal failed job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.LPush(ctx, FailedQueue, jobJSON)
	pipe.Expire(ctx, FailedQueue, FailedJobTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add job to failed queue: %w", err)
	}

	slog.Warn("Export job failed", "job_id", job.ID, "capture_id", job.CaptureID, "reason", reason)
	return nil
}

// QueueLength returns the number of jobs waiting for export
func (q *Queue) QueueLength(ctx context.Context) (int64, error) {
	if q.client == nil {
		return 0, errors.New("queue is not connected")
	}

	length, err := q.client.LLen(ctx, WaitingQueue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
