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

type WithdrawalRepository interface {
	Create(ctx context.Context, w *domain.Withdrawal) error
	GetByID(ctx context.Context, tx Tx, id int64) (*domain.Withdrawal, error)
	// GetByReferenceForUpdate locks the row inside tx so concurrent webhook
	// deliveries for the same reference serialize on the status check.
	GetByReferenceForUpdate(ctx context.Context, tx Tx, reference string) (*domain.Withdrawal, error)
	// UpdateStatus moves the withdrawal from one status to another. The WHERE
	// clause on the expected current status makes this a compare-and-set, the
	// same way coupons serialize on is_used: of two concurrent transitions off
	// the same status, exactly one updates a row and the other gets
	// ErrInvalidStatusTransition.
	UpdateStatus(ctx context.Context, tx Tx, id int64, from, to domain.WithdrawalStatus, reference, rejectionReason *string, markProcessed bool) error
	SumSettledByUser(ctx context.Context, tx Tx, userID int64) (decimal.Decimal, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Withdrawal, int, error)
}

type withdrawalRepo struct {
	db *pgxpool.Pool
}

func NewWithdrawalRepository(db *pgxpool.Pool) WithdrawalRepository {
	return &withdrawalRepo{db: db}
}

const withdrawalCols = `id, user_id, amount::text, currency, bank_name, bank_account,
	account_name, status, payment_reference, rejection_reason, processed_at, created_at`

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	var amount string
	err := row.Scan(
		&w.ID, &w.UserID, &amount, &w.Currency, &w.BankName, &w.BankAccount,
		&w.AccountName, &w.Status, &w.PaymentReference, &w.RejectionReason,
		&w.ProcessedAt, &w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrWithdrawalNotFound
		}
		return nil, err
	}
	if w.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *withdrawalRepo) Create(ctx context.Context, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals
		(user_id, amount, currency, bank_name, bank_account, account_name, status)
		VALUES ($1, $2::numeric, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		w.UserID, w.Amount.String(), w.Currency, w.BankName, w.BankAccount,
		w.AccountName, w.Status,
	).Scan(&w.ID, &w.CreatedAt)
}

func (r *withdrawalRepo) GetByID(ctx context.Context, tx Tx, id int64) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalCols + ` FROM withdrawals WHERE id = $1`
	return scanWithdrawal(within(r.db, tx).QueryRow(ctx, query, id))
}

func (r *withdrawalRepo) GetByReferenceForUpdate(ctx context.Context, tx Tx, reference string) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalCols + ` FROM withdrawals
		WHERE payment_reference = $1 FOR UPDATE`
	return scanWithdrawal(within(r.db, tx).QueryRow(ctx, query, reference))
}

func (r *withdrawalRepo) UpdateStatus(ctx context.Context, tx Tx, id int64, from, to domain.WithdrawalStatus, reference, rejectionReason *string, markProcessed bool) error {
	query := `UPDATE withdrawals
		SET status = $1,
		    payment_reference = COALESCE($2, payment_reference),
		    rejection_reason = $3,
		    processed_at = CASE WHEN $4 THEN NOW() ELSE processed_at END
		WHERE id = $5 AND status = $6`
	tag, err := within(r.db, tx).Exec(ctx, query, to, reference, rejectionReason, markProcessed, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// The row is gone or another transition won the race. Callers loaded
		// the withdrawal before calling, so report the lost race.
		return xerrors.ErrInvalidStatusTransition
	}
	return nil
}

func (r *withdrawalRepo) SumSettledByUser(ctx context.Context, tx Tx, userID int64) (decimal.Decimal, error) {
	var sum string
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM withdrawals
		WHERE user_id = $1 AND status IN ('APPROVED', 'PAID')`
	if err := within(r.db, tx).QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(sum)
}

func (r *withdrawalRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Withdrawal, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawals WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + withdrawalCols + ` FROM withdrawals
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var withdrawals []*domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, total, rows.Err()
}
