package admin

import (
	"context"
	"fmt"

	"referral-service/internal/domain"
	"referral-service/internal/repository"
	xerrors "referral-service/internal/xerrors"

	"go.uber.org/zap"
)

// Service holds the manual operations reserved for admin users. Withdrawal
// processing lives in the withdrawal service; these are the account-level
// grants.
type Service struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, logger *zap.Logger) *Service {
	return &Service{users: users, logger: logger}
}

// UpgradeToAgent flips the agent flag on the target user.
func (s *Service) UpgradeToAgent(ctx context.Context, userID int64) (*domain.User, error) {
	if err := s.users.SetAgent(ctx, userID); err != nil {
		return nil, err
	}
	s.logger.Info("user upgraded to agent", zap.Int64("user_id", userID))
	return s.users.GetByID(ctx, nil, userID)
}

// CreditCoupons grants coupon credits to an agent without a payment, e.g. a
// manual correction or promotion.
func (s *Service) CreditCoupons(ctx context.Context, userID int64, credits int) (*domain.User, error) {
	if credits < 1 {
		return nil, fmt.Errorf("%w: credits must be at least 1", xerrors.ErrInvalidInput)
	}
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsAgent {
		return nil, xerrors.ErrAgentOnly
	}
	if err := s.users.IncrementCouponCredits(ctx, nil, userID, credits); err != nil {
		return nil, err
	}
	s.logger.Info("agent coupon credits granted",
		zap.Int64("user_id", userID), zap.Int("credits", credits))
	return s.users.GetByID(ctx, nil, userID)
}
