package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when submitting work to a stopped scheduler or queue
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrTaskPanicked is recorded when a task function panics
	ErrTaskPanicked = errors.New("task panicked")
)
