package cache

import (
	"context"
	"sync"
	"time"

	"github.com/catalogsync/backend/internal/domain/shared"
)

// LocalKeyLocker is a process-local KeyLocker.
// The ttl argument is ignored: a local holder cannot die without the process.
type LocalKeyLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocalKeyLocker creates a new LocalKeyLocker
func NewLocalKeyLocker() *LocalKeyLocker {
	return &LocalKeyLocker{held: make(map[string]chan struct{})}
}

var _ shared.KeyLocker = (*LocalKeyLocker)(nil)

// Lock waits until key is free or ctx is done
func (l *LocalKeyLocker) Lock(ctx context.Context, key string, _ time.Duration) (func(), error) {
	for {
		l.mu.Lock()
		wait, busy := l.held[key]
		if !busy {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
