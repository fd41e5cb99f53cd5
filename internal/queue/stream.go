// Package queue wraps a Redis Stream used as the pending-order log: consumer
// group reads with at-least-once delivery, plus the group's pending-entries
// list as the replayable recovery set.
package queue

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Queue struct {
	rdb      *redis.Client
	Stream   string
	Group    string
	Consumer string
}

func New(rdb *redis.Client, stream, group, consumer string) *Queue {
	return &Queue{rdb: rdb, Stream: stream, Group: group, Consumer: consumer}
}

// EnsureGroup creates the stream and group if they do not exist yet.
func (q *Queue) EnsureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.Stream, q.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// ReadNew claims up to count fresh records for this consumer, blocking up to
// block when the stream is empty. Returns nil on timeout.
func (q *Queue) ReadNew(ctx context.Context, count int64, block time.Duration) ([]redis.XMessage, error) {
	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.Group,
		Consumer: q.Consumer,
		Streams:  []string{q.Stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0].Messages, nil
}

// ReadPending re-reads records this group claimed but never acknowledged,
// starting from the beginning of the pending-entries list.
func (q *Queue) ReadPending(ctx context.Context, count int64) ([]redis.XMessage, error) {
	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.Group,
		Consumer: q.Consumer,
		Streams:  []string{q.Stream, "0"},
		Count:    count,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0].Messages, nil
}

func (q *Queue) Ack(ctx context.Context, ids ...string) error {
	return q.rdb.XAck(ctx, q.Stream, q.Group, ids...).Err()
}

// PendingCount reports how many records the group has claimed but not acked.
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	p, err := q.rdb.XPending(ctx, q.Stream, q.Group).Result()
	if err != nil {
		return 0, err
	}
	return p.Count, nil
}
