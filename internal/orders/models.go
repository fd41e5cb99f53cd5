package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type SeckillVoucher struct {
	VoucherID int64
	Title     string
	Price     decimal.Decimal
	Stock     int
	BeginTime time.Time
	EndTime   time.Time
}

// VoucherOrder is created exactly once per (user, voucher) and never mutated
// except for its status.
type VoucherOrder struct {
	ID        int64
	UserID    int64
	VoucherID int64
	Status    Status
	CreatedAt time.Time
}
