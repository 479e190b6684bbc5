package repository

import (
	"context"
	"errors"

	"referral-service/internal/domain"
	xerrors "referral-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CouponRepository interface {
	Create(ctx context.Context, c *domain.Coupon) error
	GetByCode(ctx context.Context, tx Tx, code string) (*domain.Coupon, error)
	// Consume flips the coupon from unused to used for userID. The WHERE
	// clause on is_used makes this the serialization point for concurrent
	// activations: exactly one caller gets a row, the rest see
	// ErrCouponAlreadyUsed.
	Consume(ctx context.Context, tx Tx, couponID, userID int64) error
	ListByAgent(ctx context.Context, agentID int64) ([]*domain.Coupon, error)
}

type couponRepo struct {
	db *pgxpool.Pool
}

func NewCouponRepository(db *pgxpool.Pool) CouponRepository {
	return &couponRepo{db: db}
}

func (r *couponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	query := `INSERT INTO coupons (code, agent_id) VALUES ($1, $2)
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query, c.Code, c.AgentID).Scan(&c.ID, &c.CreatedAt)
	if err != nil && xerrors.IsUniqueViolation(err) {
		return xerrors.ErrInvalidRequest
	}
	return err
}

func (r *couponRepo) GetByCode(ctx context.Context, tx Tx, code string) (*domain.Coupon, error) {
	query := `SELECT id, code, agent_id, is_used, used_by, used_at, created_at
		FROM coupons WHERE code = $1`
	var c domain.Coupon
	err := within(r.db, tx).QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.AgentID, &c.IsUsed, &c.UsedBy, &c.UsedAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrInvalidCoupon
		}
		return nil, err
	}
	return &c, nil
}

func (r *couponRepo) Consume(ctx context.Context, tx Tx, couponID, userID int64) error {
	query := `UPDATE coupons
		SET is_used = TRUE, used_by = $1, used_at = NOW()
		WHERE id = $2 AND is_used = FALSE`
	tag, err := within(r.db, tx).Exec(ctx, query, userID, couponID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrCouponAlreadyUsed
	}
	return nil
}

func (r *couponRepo) ListByAgent(ctx context.Context, agentID int64) ([]*domain.Coupon, error) {
	query := `SELECT id, code, agent_id, is_used, used_by, used_at, created_at
		FROM coupons WHERE agent_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coupons []*domain.Coupon
	for rows.Next() {
		var c domain.Coupon
		if err := rows.Scan(&c.ID, &c.Code, &c.AgentID, &c.IsUsed, &c.UsedBy, &c.UsedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		coupons = append(coupons, &c)
	}
	return coupons, rows.Err()
}
