package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	kafkax "github.com/ariefcatur/go-voucher-seckill.git/internal/kafka"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/lock"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/redisx"
)

// Store is the durable side of order creation, implemented by Repo.
type Store interface {
	ExistsOrder(ctx context.Context, userID, voucherID int64) (bool, error)
	PlaceOrder(ctx context.Context, o VoucherOrder) error
}

// Publisher matches the kafka producer's Publish signature.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Creator turns pending-order records into durable orders. It tolerates
// duplicate delivery: the per-user lock plus the existing-order check make
// reprocessing a no-op.
type Creator struct {
	Store    Store
	Redis    *redis.Client
	Producer Publisher // optional; nil disables the order-created event
	Service  string
	Log      *logrus.Logger
}

// CreateOrder is the single authoritative writer of orders. Returning an error
// leaves the queue record unacknowledged so a later pass retries it.
func (c *Creator) CreateOrder(ctx context.Context, o VoucherOrder) error {
	// Single worker per consumer makes this a safety net for multi-worker
	// deployments rather than the sole serialization mechanism.
	l := lock.New(c.Redis, fmt.Sprintf(redisx.KeyLockOrder, o.UserID))
	ok, err := l.TryLock(ctx, redisx.TTLLockOrder)
	if err != nil {
		return fmt.Errorf("order lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("order lock held for user %d: %w", o.UserID, lock.ErrNotAcquired)
	}
	defer func() { _ = l.Unlock(ctx) }()

	exists, err := c.Store.ExistsOrder(ctx, o.UserID, o.VoucherID)
	if err != nil {
		return err
	}
	if exists {
		c.Log.WithFields(logrus.Fields{
			"user_id": o.UserID, "voucher_id": o.VoucherID,
		}).Warn("duplicate delivery: order already exists, skipping")
		return nil
	}

	if err := c.Store.PlaceOrder(ctx, o); err != nil {
		if errors.Is(err, ErrStockDepleted) {
			// Admission reserved a unit that durable stock no longer has.
			// Retrying cannot succeed and would risk overselling, so the
			// record is dropped after logging the invariant violation.
			c.Log.WithFields(logrus.Fields{
				"order_id": o.ID, "user_id": o.UserID, "voucher_id": o.VoucherID,
			}).Error("stock depleted during order creation despite admission; order dropped")
			return nil
		}
		return err
	}

	c.publishCreated(o)
	return nil
}

func (c *Creator) publishCreated(o VoucherOrder) {
	if c.Producer == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      c.Service,
		CorrelationID: fmt.Sprintf("%d", o.ID),
		Payload: kafkax.MustMarshal(OrderCreatedPayload{
			OrderID: o.ID, UserID: o.UserID, VoucherID: o.VoucherID, Status: StatusUnpaid,
		}),
	}
	c.Producer.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
