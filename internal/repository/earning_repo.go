package repository

import (
	"context"

	"referral-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type EarningRepository interface {
	Create(ctx context.Context, tx Tx, e *domain.Earning) error
	SumByUser(ctx context.Context, tx Tx, userID int64) (decimal.Decimal, error)
	SumByUserAndType(ctx context.Context, userID int64) (map[domain.EarningType]decimal.Decimal, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Earning, error)
	// ExistsByTypeAndReference backs the one-credit-per-payment guard for
	// gateway-funded earnings.
	ExistsByTypeAndReference(ctx context.Context, tx Tx, userID int64, typ domain.EarningType, reference string) (bool, error)
}

type earningRepo struct {
	db *pgxpool.Pool
}

func NewEarningRepository(db *pgxpool.Pool) EarningRepository {
	return &earningRepo{db: db}
}

func (r *earningRepo) Create(ctx context.Context, tx Tx, e *domain.Earning) error {
	query := `INSERT INTO earnings
		(user_id, amount, type, description, referrer_id, sponsor_id, activation_id, payment_reference)
		VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return within(r.db, tx).QueryRow(ctx, query,
		e.UserID, e.Amount.String(), e.Type, e.Description,
		e.ReferrerID, e.SponsorID, e.ActivationID, e.PaymentReference,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *earningRepo) SumByUser(ctx context.Context, tx Tx, userID int64) (decimal.Decimal, error) {
	var sum string
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM earnings WHERE user_id = $1`
	if err := within(r.db, tx).QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(sum)
}

func (r *earningRepo) SumByUserAndType(ctx context.Context, userID int64) (map[domain.EarningType]decimal.Decimal, error) {
	query := `SELECT type, COALESCE(SUM(amount), 0)::text FROM earnings
		WHERE user_id = $1 GROUP BY type`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[domain.EarningType]decimal.Decimal)
	for rows.Next() {
		var typ domain.EarningType
		var sum string
		if err := rows.Scan(&typ, &sum); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, err
		}
		sums[typ] = d
	}
	return sums, rows.Err()
}

func (r *earningRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Earning, error) {
	query := `SELECT id, user_id, amount::text, type, description,
		referrer_id, sponsor_id, activation_id, payment_reference, created_at
		FROM earnings WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var earnings []*domain.Earning
	for rows.Next() {
		var e domain.Earning
		var amount string
		if err := rows.Scan(&e.ID, &e.UserID, &amount, &e.Type, &e.Description,
			&e.ReferrerID, &e.SponsorID, &e.ActivationID, &e.PaymentReference, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		earnings = append(earnings, &e)
	}
	return earnings, rows.Err()
}

func (r *earningRepo) ExistsByTypeAndReference(ctx context.Context, tx Tx, userID int64, typ domain.EarningType, reference string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(
		SELECT 1 FROM earnings WHERE user_id = $1 AND type = $2 AND payment_reference = $3)`
	err := within(r.db, tx).QueryRow(ctx, query, userID, typ, reference).Scan(&exists)
	return exists, err
}
