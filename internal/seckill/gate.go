package seckill

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/redisx"
)

// Admission script. One atomic execution decides eligibility and, on success,
// publishes the pending-order record — no check-then-act race is possible
// across concurrent callers.
//
// KEYS[1] stock counter, KEYS[2] buyers set, KEYS[3] order stream
// ARGV[1] user id, ARGV[2] voucher id, ARGV[3] order id
// Returns 0 admitted, 1 out of stock, 2 duplicate user.
var gateScript = redis.NewScript(`
local stock = tonumber(redis.call('get', KEYS[1]))
if stock == nil or stock <= 0 then
    return 1
end
if redis.call('sismember', KEYS[2], ARGV[1]) == 1 then
    return 2
end
redis.call('incrby', KEYS[1], -1)
redis.call('sadd', KEYS[2], ARGV[1])
redis.call('xadd', KEYS[3], '*', 'orderId', ARGV[3], 'userId', ARGV[1], 'voucherId', ARGV[2])
return 0
`)

type Gate struct {
	rdb    *redis.Client
	stream string
}

func NewGate(rdb *redis.Client, stream string) *Gate {
	return &Gate{rdb: rdb, stream: stream}
}

// TryAdmit runs the admission script. nil means the user holds a reserved
// unit and the pending record is on the queue.
func (g *Gate) TryAdmit(ctx context.Context, voucherID, userID, orderID int64) error {
	keys := []string{
		fmt.Sprintf(redisx.KeySeckillStock, voucherID),
		fmt.Sprintf(redisx.KeySeckillBuyers, voucherID),
		g.stream,
	}
	res, err := gateScript.Run(ctx, g.rdb, keys, userID, voucherID, orderID).Int()
	if err != nil {
		return fmt.Errorf("seckill: gate script: %w", err)
	}
	switch res {
	case 0:
		return nil
	case 1:
		return ErrOutOfStock
	case 2:
		return ErrDuplicateOrder
	default:
		return fmt.Errorf("seckill: unexpected gate result %d", res)
	}
}

// PrimeStock publishes a voucher's sale quantity to the shared counter.
// Called when the voucher goes on sale; the durable record stays
// authoritative.
func (g *Gate) PrimeStock(ctx context.Context, voucherID int64, stock int) error {
	return g.rdb.Set(ctx, fmt.Sprintf(redisx.KeySeckillStock, voucherID), stock, 0).Err()
}
