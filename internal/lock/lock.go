// Package lock implements a named, leased mutual-exclusion lock on Redis.
// Acquisition is a single SET NX PX; release is a compare-and-delete script so
// a holder that outlived its lease cannot delete a lock already reassigned to
// someone else.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock: not acquired")

var unlockScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`)

type Lock struct {
	rdb   *redis.Client
	key   string
	token string
}

// New prepares a lock for one acquisition. The holder token is unique per
// Lock value and is never reused across acquisitions.
func New(rdb *redis.Client, key string) *Lock {
	return &Lock{rdb: rdb, key: key, token: uuid.NewString()}
}

// TryLock attempts a non-blocking acquire. The lease expires server-side so a
// crashed holder cannot wedge the resource.
func (l *Lock) TryLock(ctx context.Context, lease time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, l.key, l.token, lease).Result()
}

// Lock retries with a fixed backoff until acquired or ctx is done. Admission
// paths must use TryLock; this variant is for background consumers only.
func (l *Lock) Lock(ctx context.Context, lease, retryEvery time.Duration) error {
	for {
		ok, err := l.TryLock(ctx, lease)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryEvery):
		}
	}
}

// Unlock releases the lock only if this holder still owns it.
func (l *Lock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}

// Token exposes the opaque holder token (useful in logs and tests).
func (l *Lock) Token() string { return l.token }
