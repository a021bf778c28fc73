// Package lock provides short-lived exclusive locks keyed by name.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned by Unlock when the caller does not own the key.
var ErrNotHeld = errors.New("lock not held")

type Locker interface {
	// TryLock acquires key for ttl without blocking. It reports false when
	// someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}
