package seckill

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/redisx"
)

func newGate(t *testing.T) (*Gate, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewGate(rdb, redisx.StreamOrders), rdb
}

func TestTryAdmitExactlyStockManySucceed(t *testing.T) {
	g, rdb := newGate(t)
	ctx := context.Background()

	const stock = 5
	const attempts = 20
	require.NoError(t, g.PrimeStock(ctx, 7, stock))

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			// distinct users, distinct order ids
			errs[i] = g.TryAdmit(ctx, 7, int64(100+i), int64(9000+i))
		}(i)
	}
	wg.Wait()

	admitted, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			admitted++
		case err == ErrOutOfStock:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, stock, admitted)
	require.Equal(t, attempts-stock, rejected)

	// counter drained to exactly zero, never negative
	left, err := rdb.Get(ctx, fmt.Sprintf(redisx.KeySeckillStock, 7)).Int()
	require.NoError(t, err)
	require.Equal(t, 0, left)

	// one pending record per admission
	n, err := rdb.XLen(ctx, redisx.StreamOrders).Result()
	require.NoError(t, err)
	require.EqualValues(t, stock, n)
}

func TestTryAdmitDuplicateUser(t *testing.T) {
	g, rdb := newGate(t)
	ctx := context.Background()

	require.NoError(t, g.PrimeStock(ctx, 7, 10))

	require.NoError(t, g.TryAdmit(ctx, 7, 42, 9001))
	require.ErrorIs(t, g.TryAdmit(ctx, 7, 42, 9002), ErrDuplicateOrder)

	// the duplicate consumed no stock and enqueued nothing
	left, err := rdb.Get(ctx, fmt.Sprintf(redisx.KeySeckillStock, 7)).Int()
	require.NoError(t, err)
	require.Equal(t, 9, left)

	n, err := rdb.XLen(ctx, redisx.StreamOrders).Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestTryAdmitUnprimedVoucherIsOutOfStock(t *testing.T) {
	g, _ := newGate(t)
	require.ErrorIs(t, g.TryAdmit(context.Background(), 999, 1, 1), ErrOutOfStock)
}

func TestPendingRecordFields(t *testing.T) {
	g, rdb := newGate(t)
	ctx := context.Background()

	require.NoError(t, g.PrimeStock(ctx, 7, 1))
	require.NoError(t, g.TryAdmit(ctx, 7, 42, 9001))

	msgs, err := rdb.XRange(ctx, redisx.StreamOrders, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "9001", msgs[0].Values["orderId"])
	require.Equal(t, "42", msgs[0].Values["userId"])
	require.Equal(t, "7", msgs[0].Values["voucherId"])
}
