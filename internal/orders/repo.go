package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrOrderNotFound   = errors.New("order not found")

	// ErrStockDepleted: the conditional decrement touched zero rows. After a
	// successful admission this signals a stock consistency bug.
	ErrStockDepleted = errors.New("durable stock depleted")

	ErrBadTransition = errors.New("invalid order status transition")
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetVoucher(ctx context.Context, voucherID int64) (*SeckillVoucher, error) {
	var v SeckillVoucher
	err := r.DB.QueryRow(ctx, `
		SELECT voucher_id, title, price, stock, begin_time, end_time
		FROM seckill_vouchers WHERE voucher_id=$1`, voucherID).
		Scan(&v.VoucherID, &v.Title, &v.Price, &v.Stock, &v.BeginTime, &v.EndTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repo) InsertVoucher(ctx context.Context, v *SeckillVoucher) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO seckill_vouchers(voucher_id, title, price, stock, begin_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		v.VoucherID, v.Title, v.Price, v.Stock, v.BeginTime, v.EndTime)
	return err
}

func (r *Repo) ExistsOrder(ctx context.Context, userID, voucherID int64) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM voucher_orders
		WHERE user_id=$1 AND voucher_id=$2`, userID, voucherID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PlaceOrder decrements durable stock and persists the order as one
// transaction. The decrement is conditional (stock > 0), never read-then-write.
func (r *Repo) PlaceOrder(ctx context.Context, o VoucherOrder) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE seckill_vouchers SET stock = stock - 1
		WHERE voucher_id=$1 AND stock > 0`, o.VoucherID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrStockDepleted
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO voucher_orders(id, user_id, voucher_id, status)
		VALUES ($1,$2,$3,$4)`,
		o.ID, o.UserID, o.VoucherID, StatusUnpaid); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repo) GetOrder(ctx context.Context, orderID int64) (*VoucherOrder, error) {
	var o VoucherOrder
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, voucher_id, status, created_at
		FROM voucher_orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.UserID, &o.VoucherID, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrderStatus applies a validated transition under FOR UPDATE.
func (r *Repo) UpdateOrderStatus(ctx context.Context, orderID int64, to Status) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from Status
	err = tx.QueryRow(ctx, `SELECT status FROM voucher_orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, from, to)
	}

	if _, err := tx.Exec(ctx, `UPDATE voucher_orders SET status=$2 WHERE id=$1`, orderID, to); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
