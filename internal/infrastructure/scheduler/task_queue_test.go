package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startQueue(t *testing.T, cfg TaskQueueConfig) *TaskQueue {
	t.Helper()
	q, err := NewTaskQueue(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q
}

func TestTaskQueueConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultTaskQueueConfig().Validate())

	cfg := DefaultTaskQueueConfig()
	cfg.HistorySize = 0
	_, err := NewTaskQueue(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTaskQueue_RecordsOutcomes(t *testing.T) {
	q := startQueue(t, DefaultTaskQueueConfig())
	ctx := context.Background()

	require.NoError(t, q.Submit(ctx, "order_automation", "p-1", func(ctx context.Context) error { return nil }))
	assert.Eventually(t, func() bool { return len(q.Recent(0)) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Submit(ctx, "sync_enqueue", "p-2", func(ctx context.Context) error {
		return errors.New("mapping store down")
	}))
	assert.Eventually(t, func() bool { return len(q.Recent(0)) == 2 }, time.Second, 5*time.Millisecond)

	recent := q.Recent(0)
	assert.Equal(t, "sync_enqueue", recent[0].Kind)
	assert.Equal(t, TaskStatusFailed, recent[0].Status)
	assert.Equal(t, "mapping store down", recent[0].Error)
	assert.Equal(t, "order_automation", recent[1].Kind)
	assert.Equal(t, "p-1", recent[1].Key)
	assert.Equal(t, TaskStatusSucceeded, recent[1].Status)
	assert.Empty(t, recent[1].Error)

	assert.Len(t, q.Recent(1), 1)
}

func TestTaskQueue_TaskOutlivesSubmitContext(t *testing.T) {
	q := startQueue(t, DefaultTaskQueueConfig())

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan error, 1)
	require.NoError(t, q.Submit(ctx, "sync_enqueue", "p-1", func(taskCtx context.Context) error {
		ran <- taskCtx.Err()
		return nil
	}))
	cancel()

	select {
	case err := <-ran:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestTaskQueue_QueueFullIsRecordedAsFailed(t *testing.T) {
	cfg := DefaultTaskQueueConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	q := startQueue(t, cfg)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, q.Submit(ctx, "order_automation", "p-1", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, q.Submit(ctx, "order_automation", "p-2", func(ctx context.Context) error { return nil }))

	err := q.Submit(ctx, "order_automation", "p-3", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrJobQueueFull)

	recent := q.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, "p-3", recent[0].Key)
	assert.Equal(t, TaskStatusFailed, recent[0].Status)
	assert.Equal(t, ErrJobQueueFull.Error(), recent[0].Error)

	close(release)
	assert.Eventually(t, func() bool { return len(q.Recent(0)) == 3 }, time.Second, 5*time.Millisecond)
}

func TestTaskQueue_PanicIsRecorded(t *testing.T) {
	q := startQueue(t, DefaultTaskQueueConfig())

	require.NoError(t, q.Submit(context.Background(), "order_automation", "p-1", func(ctx context.Context) error {
		panic("adapter exploded")
	}))
	assert.Eventually(t, func() bool { return len(q.Recent(0)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, q.Recent(1)[0].Error, ErrTaskPanicked.Error())
}

func TestTaskQueue_HistoryIsBounded(t *testing.T) {
	cfg := DefaultTaskQueueConfig()
	cfg.Workers = 1
	cfg.HistorySize = 3
	q := startQueue(t, cfg)

	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		require.NoError(t, q.Submit(context.Background(), "sync_enqueue", key, func(ctx context.Context) error { return nil }))
	}
	assert.Eventually(t, func() bool {
		r := q.Recent(0)
		return len(r) == 3 && r[0].Key == "e"
	}, time.Second, 5*time.Millisecond)

	r := q.Recent(0)
	assert.Equal(t, []string{"e", "d", "c"}, []string{r[0].Key, r[1].Key, r[2].Key})
}

func TestTaskQueue_SubmitAfterStop(t *testing.T) {
	q, err := NewTaskQueue(DefaultTaskQueueConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, q.Start(context.Background()))
	require.NoError(t, q.Stop(context.Background()))

	err = q.Submit(context.Background(), "sync_enqueue", "p-1", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
	require.Len(t, q.Recent(0), 1)
	assert.Equal(t, TaskStatusFailed, q.Recent(0)[0].Status)
}
