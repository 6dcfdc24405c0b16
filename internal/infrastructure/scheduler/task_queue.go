package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskStatus is the final state of a queued task
type TaskStatus string

const (
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// TaskOutcome records how one submitted task ended
type TaskOutcome struct {
	ID          uuid.UUID     `json:"id"`
	Kind        string        `json:"kind"`
	Key         string        `json:"key"`
	Status      TaskStatus    `json:"status"`
	Error       string        `json:"error,omitempty"`
	SubmittedAt time.Time     `json:"submitted_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"duration"`
}

// TaskQueueConfig holds configuration for the task queue
type TaskQueueConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	// HistorySize bounds the outcomes kept for Recent
	HistorySize int
}

// DefaultTaskQueueConfig returns default configuration
func DefaultTaskQueueConfig() TaskQueueConfig {
	return TaskQueueConfig{
		Workers:     4,
		QueueSize:   512,
		TaskTimeout: 2 * time.Minute,
		HistorySize: 200,
	}
}

// Validate validates the configuration
func (c TaskQueueConfig) Validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 || c.TaskTimeout <= 0 || c.HistorySize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

type task struct {
	id          uuid.UUID
	kind        string
	key         string
	fn          func(ctx context.Context) error
	submittedAt time.Time
}

// TaskQueue runs side-effect tasks on a bounded worker pool. Every submission
// ends in exactly one TaskOutcome, including submissions refused because the
// queue was full or stopped.
type TaskQueue struct {
	config TaskQueueConfig
	logger *zap.Logger
	now    func() time.Time

	tasks     chan *task
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	historyMu sync.Mutex
	history   []TaskOutcome
	next      int
	filled    bool
}

// NewTaskQueue creates a new task queue
func NewTaskQueue(config TaskQueueConfig, logger *zap.Logger) (*TaskQueue, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskQueue{
		config:  config,
		logger:  logger,
		now:     time.Now,
		history: make([]TaskOutcome, config.HistorySize),
	}, nil
}

// Start starts the worker pool
func (q *TaskQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = true
	q.tasks = make(chan *task, q.config.QueueSize)
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}

	q.logger.Info("Task queue started",
		zap.Int("workers", q.config.Workers),
		zap.Int("queue_size", q.config.QueueSize),
	)
	return nil
}

// Stop refuses new tasks, drains the queued ones and waits for workers to exit
func (q *TaskQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("Task queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("Task queue stop timed out")
		return ctx.Err()
	}
}

// Submit queues fn under a kind and key used for logging and history.
// The task runs with the queue's context, not ctx, so it outlives the request that submitted it.
func (q *TaskQueue) Submit(ctx context.Context, kind, key string, fn func(ctx context.Context) error) error {
	t := &task{
		id:          uuid.New(),
		kind:        kind,
		key:         key,
		fn:          fn,
		submittedAt: q.now(),
	}

	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		q.finish(t, ErrSchedulerNotRunning)
		return ErrSchedulerNotRunning
	}
	select {
	case q.tasks <- t:
		q.mu.Unlock()
		q.logger.Debug("Task submitted",
			zap.String("task_id", t.id.String()),
			zap.String("kind", kind),
			zap.String("key", key),
		)
		return nil
	default:
		q.mu.Unlock()
		q.finish(t, ErrJobQueueFull)
		return ErrJobQueueFull
	}
}

// Recent returns up to limit outcomes, newest first. A limit <= 0 returns all kept outcomes.
func (q *TaskQueue) Recent(limit int) []TaskOutcome {
	q.historyMu.Lock()
	defer q.historyMu.Unlock()

	size := q.next
	if q.filled {
		size = len(q.history)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]TaskOutcome, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (q.next - i + len(q.history)) % len(q.history)
		out = append(out, q.history[idx])
	}
	return out
}

func (q *TaskQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for t := range q.tasks {
		q.finish(t, q.run(ctx, t))
	}
}

func (q *TaskQueue) run(ctx context.Context, t *task) (err error) {
	taskCtx, cancel := context.WithTimeout(ctx, q.config.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return t.fn(taskCtx)
}

func (q *TaskQueue) finish(t *task, err error) {
	finished := q.now()
	outcome := TaskOutcome{
		ID:          t.id,
		Kind:        t.kind,
		Key:         t.key,
		Status:      TaskStatusSucceeded,
		SubmittedAt: t.submittedAt,
		FinishedAt:  finished,
		Duration:    finished.Sub(t.submittedAt),
	}
	if err != nil {
		outcome.Status = TaskStatusFailed
		outcome.Error = err.Error()
		q.logger.Error("Task failed",
			zap.String("task_id", t.id.String()),
			zap.String("kind", t.kind),
			zap.String("key", t.key),
			zap.Error(err),
		)
	} else {
		q.logger.Info("Task completed",
			zap.String("task_id", t.id.String()),
			zap.String("kind", t.kind),
			zap.String("key", t.key),
			zap.Duration("duration", outcome.Duration),
		)
	}

	q.historyMu.Lock()
	q.history[q.next] = outcome
	q.next = (q.next + 1) % len(q.history)
	if q.next == 0 {
		q.filled = true
	}
	q.historyMu.Unlock()
}
