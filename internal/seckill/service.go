package seckill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/cache"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/idgen"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/orders"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/redisx"
)

// VoucherStore is the durable voucher side, implemented by orders.Repo.
type VoucherStore interface {
	GetVoucher(ctx context.Context, voucherID int64) (*orders.SeckillVoucher, error)
	InsertVoucher(ctx context.Context, v *orders.SeckillVoucher) error
}

// Service is the admission path. It never blocks: the window guard reads a
// short-TTL cached voucher, the gate is one atomic script, and nothing here
// waits on order persistence.
type Service struct {
	Vouchers VoucherStore
	Gate     *Gate
	IDs      *idgen.Worker
	Cache    *cache.Client
	Log      *logrus.Logger

	now func() time.Time
}

func NewService(vouchers VoucherStore, gate *Gate, ids *idgen.Worker, c *cache.Client, log *logrus.Logger) *Service {
	return &Service{Vouchers: vouchers, Gate: gate, IDs: ids, Cache: c, Log: log, now: time.Now}
}

// Seckill decides admission for one (user, voucher) request and returns the
// reserved order id. Durable order creation happens later on the consumer.
func (s *Service) Seckill(ctx context.Context, userID, voucherID int64) (int64, error) {
	v, err := s.voucher(ctx, voucherID)
	if err != nil {
		return 0, err
	}

	// Window guard runs before the stock script.
	now := s.now()
	if now.Before(v.BeginTime) {
		return 0, ErrNotStarted
	}
	if now.After(v.EndTime) {
		return 0, ErrEnded
	}

	// No id, no admission: the generator failing closed keeps us from ever
	// enqueueing a record with a colliding id.
	orderID, err := s.IDs.NextID(ctx, "order")
	if err != nil {
		return 0, err
	}

	if err := s.Gate.TryAdmit(ctx, voucherID, userID, orderID); err != nil {
		return 0, err
	}
	return orderID, nil
}

// CreateVoucher persists a voucher and primes its admission stock counter.
func (s *Service) CreateVoucher(ctx context.Context, v *orders.SeckillVoucher) error {
	if err := s.Vouchers.InsertVoucher(ctx, v); err != nil {
		return err
	}
	return s.Gate.PrimeStock(ctx, v.VoucherID, v.Stock)
}

func (s *Service) voucher(ctx context.Context, voucherID int64) (*orders.SeckillVoucher, error) {
	var v orders.SeckillVoucher
	err := s.Cache.GetWithPassThrough(ctx,
		fmt.Sprintf(redisx.KeyCacheVoucher, voucherID),
		fmt.Sprintf(redisx.KeyLockVoucher, voucherID),
		&v,
		func(ctx context.Context) (any, error) {
			got, err := s.Vouchers.GetVoucher(ctx, voucherID)
			if errors.Is(err, orders.ErrVoucherNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return got, nil
		},
		redisx.TTLCacheVoucher,
	)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, orders.ErrVoucherNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
