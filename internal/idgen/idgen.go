// Package idgen issues roughly time-sortable 64-bit ids backed by a Redis
// daily counter: high 31 bits are seconds since the service epoch, low 32 bits
// are an INCR sequence scoped per business tag per day.
package idgen

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/redisx"
)

// Seconds from 1970-01-01 to 2022-01-01 UTC.
const beginTimestamp = 1640995200

const countBits = 32

type Worker struct {
	rdb *redis.Client
	now func() time.Time
}

func New(rdb *redis.Client) *Worker {
	return &Worker{rdb: rdb, now: time.Now}
}

// NextID fails closed: if the counter store is unreachable no id is returned,
// so a caller can never proceed with a possibly colliding value.
func (w *Worker) NextID(ctx context.Context, tag string) (int64, error) {
	now := w.now().UTC()
	ts := now.Unix() - beginTimestamp

	// One counter per tag per day; doubles as a per-day volume audit.
	day := now.Format("2006:01:02")
	count, err := w.rdb.Incr(ctx, fmt.Sprintf(redisx.KeyIDCounter, tag, day)).Result()
	if err != nil {
		return 0, fmt.Errorf("idgen: counter unavailable: %w", err)
	}

	return ts<<countBits | count, nil
}
