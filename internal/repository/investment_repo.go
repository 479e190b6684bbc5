package repository

import (
	"context"
	"errors"

	"referral-service/internal/domain"
	xerrors "referral-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type InvestmentRepository interface {
	Create(ctx context.Context, inv *domain.Investment) error
	GetByReference(ctx context.Context, tx Tx, reference string) (*domain.Investment, error)
	// UpsertCompleted marks the investment for reference as completed,
	// creating the row when payment initialization never happened (webhook
	// arriving for an unknown but valid reference).
	UpsertCompleted(ctx context.Context, tx Tx, userID int64, amount decimal.Decimal, tier domain.InvestmentTier, reference string) error
	SumCompletedByUserAndTier(ctx context.Context, userID int64, tier domain.InvestmentTier) (decimal.Decimal, error)
}

type investmentRepo struct {
	db *pgxpool.Pool
}

func NewInvestmentRepository(db *pgxpool.Pool) InvestmentRepository {
	return &investmentRepo{db: db}
}

func (r *investmentRepo) Create(ctx context.Context, inv *domain.Investment) error {
	query := `INSERT INTO investments (user_id, amount, tier, payment_reference, status)
		VALUES ($1, $2::numeric, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		inv.UserID, inv.Amount.String(), inv.Tier, inv.PaymentReference, inv.Status,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil && xerrors.IsUniqueViolation(err) {
		return xerrors.ErrAlreadyProcessed
	}
	return err
}

func (r *investmentRepo) GetByReference(ctx context.Context, tx Tx, reference string) (*domain.Investment, error) {
	query := `SELECT id, user_id, amount::text, tier, payment_reference, status, created_at, updated_at
		FROM investments WHERE payment_reference = $1`
	var inv domain.Investment
	var amount string
	err := within(r.db, tx).QueryRow(ctx, query, reference).Scan(
		&inv.ID, &inv.UserID, &amount, &inv.Tier, &inv.PaymentReference,
		&inv.Status, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	if inv.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *investmentRepo) UpsertCompleted(ctx context.Context, tx Tx, userID int64, amount decimal.Decimal, tier domain.InvestmentTier, reference string) error {
	query := `INSERT INTO investments (user_id, amount, tier, payment_reference, status)
		VALUES ($1, $2::numeric, $3, $4, 'completed')
		ON CONFLICT (payment_reference) DO UPDATE
		SET status = 'completed', tier = EXCLUDED.tier, updated_at = NOW()`
	_, err := within(r.db, tx).Exec(ctx, query, userID, amount.String(), tier, reference)
	return err
}

func (r *investmentRepo) SumCompletedByUserAndTier(ctx context.Context, userID int64, tier domain.InvestmentTier) (decimal.Decimal, error) {
	var sum string
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM investments
		WHERE user_id = $1 AND tier = $2 AND status = 'completed'`
	if err := r.db.QueryRow(ctx, query, userID, tier).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(sum)
}
