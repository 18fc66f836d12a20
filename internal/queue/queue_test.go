package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueueWithClient(client)
}

func TestEnqueueDequeue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job := &Job{
		ID:        "job-1",
		CaptureID: "cap-1",
		Path:      "/voice/A.m4a",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, q.Enqueue(ctx, job))

	length, err := q.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, "cap-1", got.CaptureID)
	assert.Equal(t, "/voice/A.m4a", got.Path)
}

func TestDequeueOrderIsFIFO(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, &Job{ID: "job-1", CaptureID: "cap-1"}))
	require.NoError(t, q.Enqueue(ctx, &Job{ID: "job-2", CaptureID: "cap-2"}))

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "job-1", first.ID)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "job-2", second.ID)
}

func TestFailJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job := &Job{ID: "job-1", CaptureID: "cap-1"}
	require.NoError(t, q.FailJob(ctx, job, "vault unavailable"))
	assert.Equal(t, "vault unavailable", job.FailReason)

	length, err := q.client.LLen(ctx, FailedQueue).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestDisconnectedQueue(t *testing.T) {
	q := NewQueueWithClient(nil)
	ctx := context.Background()

	assert.Error(t, q.Enqueue(ctx, &Job{ID: "job-1"}))
	_, err := q.Dequeue(ctx)
	assert.Error(t, err)
	_, err = q.QueueLength(ctx)
	assert.Error(t, err)
	assert.NoError(t, q.Close())
}
