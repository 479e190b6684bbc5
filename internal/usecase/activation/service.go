package activation

import (
	"context"
	"fmt"

	"referral-service/internal/repository"
	"referral-service/internal/usecase/earnings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ActivationAmount is the face value of one activation coupon.
var ActivationAmount = decimal.NewFromInt(50)

type Result struct {
	CouponID int64                  `json:"coupon_id"`
	Payouts  *earnings.PayoutResult `json:"payouts"`
}

// Service is the sole entry point for consuming a coupon. Coupon consumption
// and the payout cascade share one transaction, so either the coupon flips to
// used and every earning lands, or nothing does.
type Service struct {
	users   repository.UserRepository
	coupons repository.CouponRepository
	engine  *earnings.Engine
	logger  *zap.Logger
}

func New(
	users repository.UserRepository,
	coupons repository.CouponRepository,
	engine *earnings.Engine,
	logger *zap.Logger,
) *Service {
	return &Service{users: users, coupons: coupons, engine: engine, logger: logger}
}

// ActivateUser consumes couponCode for userID and triggers the payout
// cascade exactly once. Under concurrent attempts on the same code, the
// single-shot consume guarantees one success; the rest fail with
// ErrCouponAlreadyUsed before any payout runs.
func (s *Service) ActivateUser(ctx context.Context, userID int64, couponCode string) (*Result, error) {
	tx, err := s.users.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	user, err := s.users.GetByID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	coupon, err := s.coupons.GetByCode(ctx, tx, couponCode)
	if err != nil {
		return nil, err
	}

	if err := s.coupons.Consume(ctx, tx, coupon.ID, user.ID); err != nil {
		return nil, err
	}

	s.logger.Info("coupon consumed",
		zap.Int64("user_id", userID),
		zap.Int64("coupon_id", coupon.ID),
		zap.Int64("agent_id", coupon.AgentID))

	payouts, err := s.engine.TriggerActivationPayouts(ctx, tx, user.ID, ActivationAmount)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}

	return &Result{CouponID: coupon.ID, Payouts: payouts}, nil
}
