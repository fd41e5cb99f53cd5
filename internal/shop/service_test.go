package shop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-voucher-seckill.git/internal/cache"
)

type fakeStore struct {
	mu    sync.Mutex
	shops map[int64]*Shop
	gets  int
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*Shop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	s, ok := f.shops[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) Update(_ context.Context, s *Shop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.shops[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	f.shops[s.ID] = &cp
	return nil
}

func newShopService(t *testing.T) (*Service, *fakeStore, *cache.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logrus.New()
	log.SetOutput(discard{})
	cc := cache.New(rdb, log)
	fs := &fakeStore{shops: map[int64]*Shop{}}
	return NewService(fs, cc, log), fs, cc
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func sample(id int64) *Shop {
	return &Shop{ID: id, Name: "103 Coffee", Address: "Jl. Sudirman 1", AvgPrice: decimal.NewFromInt(45)}
}

func TestGetByIDServedFromWarmedCache(t *testing.T) {
	svc, fs, _ := newShopService(t)
	ctx := context.Background()

	fs.shops[1] = sample(1)
	require.NoError(t, svc.Warm(ctx, 1, time.Minute))
	before := fs.gets

	got, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "103 Coffee", got.Name)
	require.Equal(t, before, fs.gets)
}

func TestGetByIDUnwarmedShopNotFound(t *testing.T) {
	svc, fs, _ := newShopService(t)

	// Present in the store, but only warmed shops are reachable here.
	fs.shops[1] = sample(1)
	_, err := svc.GetByID(context.Background(), 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetByIDStaleEntryRebuilds(t *testing.T) {
	svc, fs, cc := newShopService(t)
	ctx := context.Background()

	fs.shops[1] = sample(1)
	require.NoError(t, svc.Warm(ctx, 1, -time.Second))
	fs.shops[1].Name = "103 Coffee Roastery"

	// Stale value comes back immediately.
	got, err := svc.GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "103 Coffee", got.Name)

	cc.Wait()
	got, err = svc.GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "103 Coffee Roastery", got.Name)
}

func TestUpdateWritesStoreThenInvalidates(t *testing.T) {
	svc, fs, _ := newShopService(t)
	ctx := context.Background()

	fs.shops[1] = sample(1)
	require.NoError(t, svc.Warm(ctx, 1, time.Minute))

	upd := sample(1)
	upd.Address = "Jl. Thamrin 9"
	require.NoError(t, svc.Update(ctx, upd))

	// Entry was dropped, so the shop reads as unwarmed until re-warmed.
	_, err := svc.GetByID(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "Jl. Thamrin 9", fs.shops[1].Address)
}

func TestUpdateUnknownShop(t *testing.T) {
	svc, _, _ := newShopService(t)
	require.ErrorIs(t, svc.Update(context.Background(), sample(99)), ErrNotFound)
}
