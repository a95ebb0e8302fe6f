// internal/adapters/redis_adapter/lock.go
package redis_adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/beadledger/internal/core/ports"
)

// Locker hands out short-lived Redis locks. A lock held elsewhere is waited on for
// at most wait before ports.ErrLockNotObtained is returned.
type Locker struct {
	client *redislock.Client
	wait   time.Duration
	logger *slog.Logger
}

var _ ports.Locker = (*Locker)(nil)

// NewLocker creates a locker on client
func NewLocker(client redis.UniversalClient, wait time.Duration, logger *slog.Logger) *Locker {
	return &Locker{
		client: redislock.New(client),
		wait:   wait,
		logger: logger.With(slog.String("component", "locker")),
	}
}

// TryLock obtains key for ttl
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.Lock, error) {
	opts := &redislock.Options{}
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
		opts.RetryStrategy = redislock.LinearBackoff(25 * time.Millisecond)
	}

	lock, err := l.client.Obtain(ctx, key, ttl, opts)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			l.logger.DebugContext(ctx, "lock not obtained", slog.String("key", key))
			return nil, ports.ErrLockNotObtained
		}
		return nil, fmt.Errorf("redis lock error: %w", err)
	}
	return &heldLock{lock: lock}, nil
}

type heldLock struct {
	lock *redislock.Lock
}

// Release gives the lock back. A lock that already expired is not an error.
func (h *heldLock) Release(ctx context.Context) error {
	if err := h.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return err
	}
	return nil
}
