package seckill

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/orders"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/queue"
)

// OrderCreator is the idempotent downstream, implemented by orders.Creator.
type OrderCreator interface {
	CreateOrder(ctx context.Context, o orders.VoucherOrder) error
}

// Consumer drains the order queue one record at a time and acknowledges only
// after the idempotent creator succeeds. Records whose processing fails stay
// on the group's pending list and are replayed by the recovery pass — also
// after a crash, by whichever instance comes up next.
type Consumer struct {
	Queue   *queue.Queue
	Creator OrderCreator
	Log     *logrus.Logger

	ReadBlock time.Duration
	done      chan struct{}
}

func NewConsumer(q *queue.Queue, creator OrderCreator, log *logrus.Logger) *Consumer {
	return &Consumer{
		Queue:     q,
		Creator:   creator,
		Log:       log,
		ReadBlock: 2 * time.Second,
		done:      make(chan struct{}),
	}
}

// Start runs until ctx is cancelled. It begins with a recovery pass so
// records abandoned by a previous instance are processed before new ones.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.Queue.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	defer close(c.done)

	c.recoverPending(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := c.Queue.ReadNew(ctx, 1, c.ReadBlock)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Log.WithError(err).Warn("order stream read failed")
			c.sleep(ctx, 200*time.Millisecond)
			continue
		}
		for _, m := range msgs {
			if ok := c.handle(ctx, m); !ok {
				c.recoverPending(ctx)
			}
		}
	}
}

// Done is closed once the loop has exited.
func (c *Consumer) Done() <-chan struct{} { return c.done }

func (c *Consumer) handle(ctx context.Context, m redis.XMessage) bool {
	o, err := parsePending(m)
	if err != nil {
		// Malformed records can never be processed; ack so they don't
		// poison the pending list.
		c.Log.WithError(err).WithField("stream_id", m.ID).Error("malformed pending record, acking")
		c.ack(ctx, m.ID)
		return true
	}

	if err := c.Creator.CreateOrder(ctx, o); err != nil {
		c.Log.WithError(err).WithFields(logrus.Fields{
			"order_id": o.ID, "user_id": o.UserID, "voucher_id": o.VoucherID,
		}).Error("order processing failed, left pending")
		return false
	}

	c.ack(ctx, m.ID)
	return true
}

// recoverPending replays the group's pending-entries list from the start.
// Reprocessing a record whose order already exists is a no-op downstream.
func (c *Consumer) recoverPending(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		msgs, err := c.Queue.ReadPending(ctx, 1)
		if err != nil {
			c.Log.WithError(err).Warn("pending list read failed")
			c.sleep(ctx, 200*time.Millisecond)
			continue
		}
		if len(msgs) == 0 {
			return
		}
		if ok := c.handle(ctx, msgs[0]); !ok {
			c.sleep(ctx, 20*time.Millisecond)
		}
	}
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.Queue.Ack(ctx, id); err != nil {
		c.Log.WithError(err).WithField("stream_id", id).Warn("ack failed")
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func parsePending(m redis.XMessage) (orders.VoucherOrder, error) {
	o := orders.VoucherOrder{Status: orders.StatusUnpaid}
	var err error
	if o.ID, err = fieldInt64(m, "orderId"); err != nil {
		return o, err
	}
	if o.UserID, err = fieldInt64(m, "userId"); err != nil {
		return o, err
	}
	if o.VoucherID, err = fieldInt64(m, "voucherId"); err != nil {
		return o, err
	}
	return o, nil
}

func fieldInt64(m redis.XMessage, name string) (int64, error) {
	s, ok := m.Values[name].(string)
	if !ok {
		return 0, fmt.Errorf("record %s: missing field %q", m.ID, name)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("record %s: field %q: %w", m.ID, name, err)
	}
	return n, nil
}
