package shop

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("shop not found")

type Shop struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Address   string          `json:"address"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetByID(ctx context.Context, shopID int64) (*Shop, error) {
	var s Shop
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, address, avg_price, updated_at
		FROM shops WHERE id=$1`, shopID).
		Scan(&s.ID, &s.Name, &s.Address, &s.AvgPrice, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Update(ctx context.Context, s *Shop) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE shops SET name=$2, address=$3, avg_price=$4, updated_at=now()
		WHERE id=$1`, s.ID, s.Name, s.Address, s.AvgPrice)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
