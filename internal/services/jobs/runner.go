package jobs

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"bookwhisperer/config"
	"bookwhisperer/internal/database"
	"bookwhisperer/internal/database/model"
	"bookwhisperer/pkg/logger"
)

// Handler executes one task. report publishes coarse progress (0-100) to
// the job row as the work advances.
type Handler func(ctx context.Context, task Task, report func(percent int)) error

// Runner drains the queue with a fixed worker pool. Failed tasks are
// re-enqueued with exponential backoff until the job's retry budget runs
// out.
type Runner struct {
	queue    Queue
	handlers map[model.JobType]Handler
	workers  int
	wg       sync.WaitGroup
}

func NewRunner(queue Queue) *Runner {
	workers := config.Cfg.Jobs.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Runner{
		queue:   queue,
		workers: workers,
		handlers: map[model.JobType]Handler{
			model.JobParseBook:     ParseBook,
			model.JobFormatChapter: FormatChapter,
			model.JobGenerateAudio: GenerateAudio,
		},
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	logger.Info("%v: starting %d workers", config.ModuleJobs, r.workers)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func(id int) {
			defer r.wg.Done()
			r.worker(ctx, id)
		}(i)
	}
}

// Wait blocks until all workers have exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) worker(ctx context.Context, id int) {
	for {
		task, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(err, "%v: worker %d dequeue failed", config.ModuleJobs, id)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		r.run(ctx, task)
	}
}

func (r *Runner) run(ctx context.Context, task Task) {
	handler, ok := r.handlers[task.Type]
	if !ok {
		r.markFailed(ctx, task.JobID, fmt.Errorf("unknown job type %q", task.Type))
		return
	}

	if err := r.markRunning(ctx, task.JobID); err != nil {
		logger.Error(err, "%v: job %s not runnable", config.ModuleJobs, task.JobID)
		return
	}

	report := func(percent int) {
		err := database.UpdateEntityByID[model.ProcessingJob](ctx, task.JobID, map[string]interface{}{
			"progress_percent": percent,
		})
		if err != nil {
			logger.Warn("%v: progress update for job %s failed: %v", config.ModuleJobs, task.JobID, err)
		}
	}

	logger.Info("%v: job %s (%s) started", config.ModuleJobs, task.JobID, task.Type)
	err := handler(ctx, task, report)
	if err == nil {
		r.markCompleted(ctx, task.JobID)
		logger.Info("%v: job %s (%s) completed", config.ModuleJobs, task.JobID, task.Type)
		return
	}

	logger.Error(err, "%v: job %s (%s) failed", config.ModuleJobs, task.JobID, task.Type)
	r.retryOrFail(ctx, task, err)
}

// retryOrFail re-enqueues the task after a backoff delay, or marks the job
// failed once the retry budget is spent.
func (r *Runner) retryOrFail(ctx context.Context, task Task, taskErr error) {
	job, err := database.GetEntityByID[model.ProcessingJob](ctx, task.JobID)
	if err != nil {
		logger.Error(err, "%v: cannot load job %s for retry", config.ModuleJobs, task.JobID)
		return
	}

	attempt := job.RetryCount
	if attempt >= job.MaxRetries {
		r.markFailed(ctx, task.JobID, taskErr)
		return
	}

	delay := backoffDelay(attempt)
	updateErr := database.UpdateEntityByID[model.ProcessingJob](ctx, task.JobID, map[string]interface{}{
		"status":        model.JobRetrying,
		"retry_count":   attempt + 1,
		"error_message": taskErr.Error(),
	})
	if updateErr != nil {
		logger.Error(updateErr, "%v: cannot mark job %s retrying", config.ModuleJobs, task.JobID)
	}
	logger.Warn("%v: job %s attempt %d/%d failed, retrying in %s",
		config.ModuleJobs, task.JobID, attempt+1, job.MaxRetries, delay.Round(time.Millisecond))

	// The worker moves on; the delayed re-enqueue happens off to the side.
	go func() {
		select {
		case <-time.After(delay):
			if err := r.queue.Enqueue(context.Background(), task); err != nil {
				r.markFailed(context.Background(), task.JobID, fmt.Errorf("re-enqueue: %w", err))
			}
		case <-ctx.Done():
		}
	}()
}

func (r *Runner) markRunning(ctx context.Context, jobID string) error {
	job, err := database.GetEntityByID[model.ProcessingJob](ctx, jobID)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{"status": model.JobRunning}
	if job.StartedAt == nil {
		updates["started_at"] = time.Now()
	}
	return database.UpdateEntityByID[model.ProcessingJob](ctx, jobID, updates)
}

func (r *Runner) markCompleted(ctx context.Context, jobID string) {
	err := database.UpdateEntityByID[model.ProcessingJob](ctx, jobID, map[string]interface{}{
		"status":           model.JobCompleted,
		"progress_percent": 100,
		"completed_at":     time.Now(),
	})
	if err != nil {
		logger.Error(err, "%v: cannot mark job %s completed", config.ModuleJobs, jobID)
	}
}

func (r *Runner) markFailed(ctx context.Context, jobID string, cause error) {
	err := database.UpdateEntityByID[model.ProcessingJob](ctx, jobID, map[string]interface{}{
		"status":        model.JobFailed,
		"error_message": cause.Error(),
		"completed_at":  time.Now(),
	})
	if err != nil {
		logger.Error(err, "%v: cannot mark job %s failed", config.ModuleJobs, jobID)
	}
}

// backoffDelay grows exponentially with the attempt number, capped, with up
// to 25% jitter so retries spread out.
func backoffDelay(attempt int) time.Duration {
	base := config.Cfg.Jobs.BackoffBase
	if base < 2 {
		base = 2
	}
	maxSecs := config.Cfg.Jobs.BackoffMaxSecs
	if maxSecs <= 0 {
		maxSecs = 600
	}

	secs := math.Pow(float64(base), float64(attempt))
	if secs > float64(maxSecs) {
		secs = float64(maxSecs)
	}
	delay := time.Duration(secs * float64(time.Second))
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}

// Submit creates the job row and pushes the task onto the queue. The
// returned row is what API clients poll.
func Submit(ctx context.Context, q Queue, task Task) (*model.ProcessingJob, error) {
	maxRetries := config.Cfg.Jobs.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	job := &model.ProcessingJob{
		BookID:     task.BookID,
		JobType:    task.Type,
		Status:     model.JobPending,
		MaxRetries: maxRetries,
	}
	if task.ChapterID != "" {
		chapterID := task.ChapterID
		job.ChapterID = &chapterID
	}
	if err := database.CreateEntity(ctx, job); err != nil {
		return nil, err
	}

	task.JobID = job.ID
	if err := q.Enqueue(ctx, task); err != nil {
		failErr := database.UpdateEntityByID[model.ProcessingJob](ctx, job.ID, map[string]interface{}{
			"status":        model.JobFailed,
			"error_message": err.Error(),
		})
		if failErr != nil {
			logger.Error(failErr, "%v: cannot mark unenqueued job %s failed", config.ModuleJobs, job.ID)
		}
		return nil, err
	}
	return job, nil
}
