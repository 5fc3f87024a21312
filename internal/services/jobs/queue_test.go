package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookwhisperer/config"
	"bookwhisperer/internal/database/model"
)

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := newMemoryQueue(4)
	defer q.Close()

	in := Task{JobID: "job-1", Type: model.JobFormatChapter, BookID: "b", ChapterID: "c", Voice: "narrator"}
	require.NoError(t, q.Enqueue(context.Background(), in))

	out, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMemoryQueueOrder(t *testing.T) {
	q := newMemoryQueue(8)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), Task{JobID: id}))
	}
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got.JobID)
	}
}

func TestMemoryQueueFull(t *testing.T) {
	q := newMemoryQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), Task{JobID: "a"}))
	err := q.Enqueue(context.Background(), Task{JobID: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
}

func TestMemoryQueueDequeueCancelled(t *testing.T) {
	q := newMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not unblock on cancellation")
	}
}

func TestNewQueuePicksBackend(t *testing.T) {
	saved := config.Cfg.Redis
	defer func() { config.Cfg.Redis = saved }()

	config.Cfg.Redis.Addr = ""
	_, ok := NewQueue().(*memoryQueue)
	assert.True(t, ok)

	config.Cfg.Redis.Addr = "127.0.0.1:6379"
	rq, ok := NewQueue().(*redisQueue)
	require.True(t, ok)
	defer rq.Close()
	assert.Equal(t, config.Cfg.Redis.Queue, rq.key)
}

func TestBackoffDelay(t *testing.T) {
	saved := config.Cfg.Jobs
	defer func() { config.Cfg.Jobs = saved }()
	config.Cfg.Jobs.BackoffBase = 2
	config.Cfg.Jobs.BackoffMaxSecs = 600

	// attempt 0: 1s base plus at most 25% jitter
	d := backoffDelay(0)
	assert.GreaterOrEqual(t, d, time.Second)
	assert.LessOrEqual(t, d, 1250*time.Millisecond)

	// attempt 3: 8s base
	d = backoffDelay(3)
	assert.GreaterOrEqual(t, d, 8*time.Second)
	assert.LessOrEqual(t, d, 10*time.Second)

	// large attempts cap at the configured maximum
	d = backoffDelay(30)
	assert.GreaterOrEqual(t, d, 600*time.Second)
	assert.LessOrEqual(t, d, 750*time.Second)
}
