// Package scheduler runs background work: periodic reconciliation passes per
// channel connection and the task queue for fire-and-forget side effects.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	integrationapp "github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PassRunner enumerates schedulable connections and runs one pass for a connection
type PassRunner interface {
	Candidates(ctx context.Context) ([]uuid.UUID, error)
	RunPass(ctx context.Context, connectionID uuid.UUID) (*integrationapp.PassReport, error)
}

// SyncSchedulerConfig holds configuration for the pass scheduler
type SyncSchedulerConfig struct {
	Enabled bool
	// Workers is the number of passes that may run at once across connections
	Workers      int
	PassInterval time.Duration
	QueueSize    int
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Enabled:      true,
		Workers:      4,
		PassInterval: time.Minute,
		QueueSize:    256,
	}
}

// Validate validates the configuration
func (c SyncSchedulerConfig) Validate() error {
	if c.Workers <= 0 || c.PassInterval <= 0 || c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncScheduler submits one pass per connection every PassInterval to a worker pool.
// A connection whose pass is queued or running is never queued a second time.
type SyncScheduler struct {
	config SyncSchedulerConfig
	runner PassRunner
	logger *zap.Logger

	jobs      chan uuid.UUID
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	inFlight  map[uuid.UUID]struct{}
	isRunning bool
}

// NewSyncScheduler creates a new pass scheduler
func NewSyncScheduler(config SyncSchedulerConfig, runner PassRunner, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		config:   config,
		runner:   runner,
		logger:   logger,
		inFlight: make(map[uuid.UUID]struct{}),
	}, nil
}

// Start starts the workers and, when enabled, the pass ticker.
// TriggerPass works as soon as Start returns even when the ticker is disabled.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.jobs = make(chan uuid.UUID, s.config.QueueSize)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	if s.config.Enabled {
		s.wg.Add(1)
		go s.runLoop(ctx)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("pass_interval", s.config.PassInterval),
		zap.Bool("ticker_enabled", s.config.Enabled),
	)
	return nil
}

// Stop cancels running passes and waits for workers to exit
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerPass queues a pass for the connection. A pass already queued or
// running for the connection absorbs the request and nil is returned.
func (s *SyncScheduler) TriggerPass(connectionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if _, busy := s.inFlight[connectionID]; busy {
		return nil
	}

	select {
	case s.jobs <- connectionID:
		s.inFlight[connectionID] = struct{}{}
		return nil
	default:
		return ErrJobQueueFull
	}
}

// InFlight reports whether a pass is queued or running for the connection
func (s *SyncScheduler) InFlight(connectionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[connectionID]
	return ok
}

func (s *SyncScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PassInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick queues a pass for every candidate connection
func (s *SyncScheduler) tick(ctx context.Context) {
	ids, err := s.runner.Candidates(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("Failed to list sync candidates", zap.Error(err))
		}
		return
	}

	queued := 0
	for _, id := range ids {
		if err := s.TriggerPass(id); err != nil {
			s.logger.Warn("Failed to queue pass",
				zap.String("connection_id", id.String()),
				zap.Error(err),
			)
			if errors.Is(err, ErrSchedulerNotRunning) {
				return
			}
			continue
		}
		queued++
	}
	s.logger.Debug("Sync tick", zap.Int("candidates", len(ids)), zap.Int("queued", queued))
}

func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-s.jobs:
			if !ok {
				return
			}
			telemetry.WithProfilingLabels(ctx, func(ctx context.Context) {
				s.processPass(ctx, id, workerID)
			}, telemetry.ProfilingLabelJob, "sync_pass")
		}
	}
}

func (s *SyncScheduler) processPass(ctx context.Context, connectionID uuid.UUID, workerID int) {
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, connectionID)
		s.mu.Unlock()
	}()

	report, err := s.runner.RunPass(ctx, connectionID)
	if err != nil {
		switch {
		case errors.Is(err, integrationapp.ErrConnectionNotSchedulable),
			errors.Is(err, integrationapp.ErrPassInFlight):
			s.logger.Debug("Connection skipped",
				zap.String("connection_id", connectionID.String()),
				zap.Error(err),
			)
		case ctx.Err() != nil:
			s.logger.Debug("Pass cancelled", zap.String("connection_id", connectionID.String()))
		default:
			s.logger.Error("Pass failed",
				zap.Int("worker_id", workerID),
				zap.String("connection_id", connectionID.String()),
				zap.Error(err),
			)
		}
		return
	}
	if report == nil {
		return
	}

	s.logger.Info("Pass completed",
		zap.Int("worker_id", workerID),
		zap.String("connection_id", connectionID.String()),
		zap.Int("orders_applied", report.OrdersApplied),
		zap.Int("pushed", report.Pushed),
		zap.Int("push_failed", report.PushFailed),
		zap.Int("orders_pulled", report.OrdersPulled),
		zap.Int("drifted", report.Drifted),
		zap.Bool("tripped", report.Tripped),
		zap.Bool("aborted", report.Aborted),
		zap.Duration("duration", report.Duration),
	)
}
