package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/cache"
	"github.com/ariefcatur/go-voucher-seckill.git/internal/redisx"
)

// Store is implemented by Repo.
type Store interface {
	GetByID(ctx context.Context, shopID int64) (*Shop, error)
	Update(ctx context.Context, s *Shop) error
}

// Service serves shops through the logical-expire cache. Only pre-warmed
// shops are reachable on this path; everything else reads as not found, so
// the backing store never sees hot-key traffic.
type Service struct {
	Store Store
	Cache *cache.Client
	Log   *logrus.Logger

	TTL time.Duration

	// A dying backing store must not be hammered by rebuilds.
	breaker *gobreaker.CircuitBreaker
}

func NewService(store Store, c *cache.Client, log *logrus.Logger) *Service {
	return &Service{
		Store: store,
		Cache: c,
		Log:   log,
		TTL:   20 * time.Minute,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "shop-db",
			Timeout: 10 * time.Second,
		}),
	}
}

func (s *Service) GetByID(ctx context.Context, shopID int64) (*Shop, error) {
	var sh Shop
	err := s.Cache.GetWithLogicalExpire(ctx,
		fmt.Sprintf(redisx.KeyCacheShop, shopID),
		fmt.Sprintf(redisx.KeyLockShop, shopID),
		&sh,
		s.loader(shopID),
		s.TTL,
	)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// Warm pre-populates a hot shop with a logical expiry.
func (s *Service) Warm(ctx context.Context, shopID int64, ttl time.Duration) error {
	sh, err := s.Store.GetByID(ctx, shopID)
	if err != nil {
		return err
	}
	return s.Cache.SetWithLogicalExpire(ctx, fmt.Sprintf(redisx.KeyCacheShop, shopID), sh, ttl)
}

// Update writes the database first, then drops the cache entry so the next
// warm rebuilds from fresh data.
func (s *Service) Update(ctx context.Context, sh *Shop) error {
	if err := s.Store.Update(ctx, sh); err != nil {
		return err
	}
	return s.Cache.Delete(ctx, fmt.Sprintf(redisx.KeyCacheShop, sh.ID))
}

func (s *Service) loader(shopID int64) cache.Loader {
	return func(ctx context.Context) (any, error) {
		v, err := s.breaker.Execute(func() (any, error) {
			return s.Store.GetByID(ctx, shopID)
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
