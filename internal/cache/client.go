// Package cache implements the two read paths for hot entities: logical
// expiration (serve stale instantly, rebuild in the background under a
// single-flight lock) and pass-through with an empty marker against cache
// penetration.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/lock"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/redisx"
)

// ErrNotFound: the key has no usable value — either it is not a pre-warmed
// hot key (logical-expire path) or the backing lookup came up empty
// (pass-through path).
var ErrNotFound = errors.New("cache: entry not found")

// Loader fetches the authoritative value. A nil value with nil error means
// the entity does not exist.
type Loader func(ctx context.Context) (any, error)

// envelope stored for logical-expiration entries. Entries are replaced whole
// on rebuild, never mutated in place.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	ExpireAt time.Time       `json:"expireAt"`
}

type Client struct {
	rdb *redis.Client
	log *logrus.Logger

	// Bounds concurrent background rebuilds, decoupled from readers.
	rebuilds *semaphore.Weighted
	wg       sync.WaitGroup

	now        func() time.Time
	nullTTL    time.Duration
	rebuildTTL time.Duration // lease on the rebuild lock
	missRetry  time.Duration // pass-through wait between lock attempts
	missTries  int
}

func New(rdb *redis.Client, log *logrus.Logger) *Client {
	return &Client{
		rdb:        rdb,
		log:        log,
		rebuilds:   semaphore.NewWeighted(10),
		now:        time.Now,
		nullTTL:    redisx.TTLCacheNull,
		rebuildTTL: redisx.TTLLockRebuild,
		missRetry:  50 * time.Millisecond,
		missTries:  20,
	}
}

func (c *Client) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// SetWithLogicalExpire writes an envelope whose staleness is governed by the
// embedded timestamp, not a physical TTL. Used to pre-warm hot keys.
func (c *Client) SetWithLogicalExpire(ctx context.Context, key string, v any, logicalTTL time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b, err := json.Marshal(envelope{Data: data, ExpireAt: c.now().Add(logicalTTL)})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, 0).Err()
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// GetWithLogicalExpire never blocks the reader: an absent key means "not a
// hot key" (ErrNotFound), a fresh entry is returned as-is, and a logically
// expired entry is returned stale while at most one background rebuild per
// key runs under lockKey.
func (c *Client) GetWithLogicalExpire(ctx context.Context, key, lockKey string, dest any, loader Loader, logicalTTL time.Duration) error {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var e envelope
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return fmt.Errorf("cache: bad envelope at %s: %w", key, err)
	}
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return err
	}
	if e.ExpireAt.After(c.now()) {
		return nil
	}

	// Stale. The caller gets the old payload either way; losing the lock
	// means another rebuild is already in flight.
	l := lock.New(c.rdb, lockKey)
	ok, lockErr := l.TryLock(ctx, c.rebuildTTL)
	if lockErr != nil || !ok {
		return nil
	}
	if !c.rebuilds.TryAcquire(1) {
		_ = l.Unlock(ctx)
		return nil
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.rebuilds.Release(1)

		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		defer func() { _ = l.Unlock(bg) }()

		fresh, err := loader(bg)
		if err != nil {
			c.log.WithError(err).WithField("key", key).Error("cache rebuild failed")
			return
		}
		if err := c.SetWithLogicalExpire(bg, key, fresh, logicalTTL); err != nil {
			c.log.WithError(err).WithField("key", key).Error("cache rebuild write failed")
		}
	}()
	return nil
}

// GetWithPassThrough is the non-hot-key sibling: a miss loads the backing
// store under a short-lived lock (other callers wait and re-check), and an
// empty backing result is cached as an explicit empty marker with a short
// physical TTL to blunt repeated penetration queries.
func (c *Client) GetWithPassThrough(ctx context.Context, key, lockKey string, dest any, loader Loader, ttl time.Duration) error {
	for i := 0; i < c.missTries; i++ {
		raw, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			if raw == "" {
				return ErrNotFound
			}
			return json.Unmarshal([]byte(raw), dest)
		}
		if err != redis.Nil {
			return err
		}

		l := lock.New(c.rdb, lockKey)
		ok, err := l.TryLock(ctx, c.rebuildTTL)
		if err != nil {
			return err
		}
		if !ok {
			// Someone else is rebuilding; bounded sleep, then re-check.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.missRetry):
			}
			continue
		}

		err = c.rebuildPassThrough(ctx, key, dest, loader, ttl)
		_ = l.Unlock(ctx)
		return err
	}
	return fmt.Errorf("cache: rebuild of %s still in flight after %d attempts", key, c.missTries)
}

func (c *Client) rebuildPassThrough(ctx context.Context, key string, dest any, loader Loader, ttl time.Duration) error {
	// Double check: the previous lock holder may have filled the key.
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if raw == "" {
			return ErrNotFound
		}
		return json.Unmarshal([]byte(raw), dest)
	}
	if err != redis.Nil {
		return err
	}

	v, err := loader(ctx)
	if err != nil {
		return err
	}
	if v == nil {
		if err := c.rdb.Set(ctx, key, "", c.nullTTL).Err(); err != nil {
			c.log.WithError(err).WithField("key", key).Warn("empty-marker write failed")
		}
		return ErrNotFound
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	return json.Unmarshal(b, dest)
}

// Wait blocks until in-flight background rebuilds finish. Shutdown and tests.
func (c *Client) Wait() { c.wg.Wait() }
