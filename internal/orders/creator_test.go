package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/lock"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/redisx"
)

type fakeStore struct {
	mu       sync.Mutex
	existing map[string]bool // "user/voucher"
	placed   []VoucherOrder
	depleted bool
}

func storeKey(userID, voucherID int64) string {
	return fmt.Sprintf("%d/%d", userID, voucherID)
}

func (f *fakeStore) ExistsOrder(_ context.Context, userID, voucherID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[storeKey(userID, voucherID)], nil
}

func (f *fakeStore) PlaceOrder(_ context.Context, o VoucherOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.depleted {
		return ErrStockDepleted
	}
	f.placed = append(f.placed, o)
	f.existing[storeKey(o.UserID, o.VoucherID)] = true
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func newCreator(t *testing.T) (*Creator, *fakeStore, *fakePublisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logrus.New()
	log.SetOutput(discard{})
	fs := &fakeStore{existing: map[string]bool{}}
	fp := &fakePublisher{}
	return &Creator{Store: fs, Redis: rdb, Producer: fp, Service: "test-worker", Log: log}, fs, fp, rdb
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func order() VoucherOrder {
	return VoucherOrder{ID: 9001, UserID: 42, VoucherID: 7, Status: StatusUnpaid, CreatedAt: time.Now()}
}

func TestCreateOrderPlacesAndPublishes(t *testing.T) {
	c, fs, fp, _ := newCreator(t)

	require.NoError(t, c.CreateOrder(context.Background(), order()))

	require.Len(t, fs.placed, 1)
	require.Equal(t, int64(9001), fs.placed[0].ID)

	require.Len(t, fp.msgs, 1)
	var ev Envelope
	require.NoError(t, json.Unmarshal(fp.msgs[0].Value, &ev))
	require.Equal(t, EventOrderCreated, ev.EventType)
	require.Equal(t, "test-worker", ev.Producer)

	var p OrderCreatedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	require.Equal(t, int64(9001), p.OrderID)
	require.Equal(t, int64(42), p.UserID)
	require.Equal(t, int64(7), p.VoucherID)
	require.Equal(t, StatusUnpaid, p.Status)
}

func TestCreateOrderDuplicateDeliveryIsNoop(t *testing.T) {
	c, fs, fp, _ := newCreator(t)
	ctx := context.Background()

	require.NoError(t, c.CreateOrder(ctx, order()))
	require.NoError(t, c.CreateOrder(ctx, order()))

	require.Len(t, fs.placed, 1)
	require.Len(t, fp.msgs, 1)
}

func TestCreateOrderStockDepletedDropsRecord(t *testing.T) {
	c, fs, fp, _ := newCreator(t)
	fs.depleted = true

	// nil so the queue record gets acked: a retry can never succeed here.
	require.NoError(t, c.CreateOrder(context.Background(), order()))

	require.Empty(t, fs.placed)
	require.Empty(t, fp.msgs)
}

func TestCreateOrderLockHeldElsewhere(t *testing.T) {
	c, fs, _, rdb := newCreator(t)
	ctx := context.Background()

	other := lock.New(rdb, fmt.Sprintf(redisx.KeyLockOrder, int64(42)))
	ok, err := other.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = c.CreateOrder(ctx, order())
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.Empty(t, fs.placed)
}
