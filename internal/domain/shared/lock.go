package shared

import (
	"context"
	"time"
)

// KeyLocker provides mutual exclusion keyed by an arbitrary string.
// Implementations may be process-local or distributed.
type KeyLocker interface {
	// Lock blocks until the key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
