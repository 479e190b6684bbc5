package agent

import (
	"context"
	"fmt"

	"referral-service/internal/domain"
	"referral-service/internal/repository"
	xerrors "referral-service/internal/xerrors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const maxBatchSize = 100

// Service covers the agent-facing coupon operations: batch generation and
// listing. Coupon codes are ULIDs, unique and unguessable enough for a code
// that is single-use and checked against the database anyway.
type Service struct {
	users   repository.UserRepository
	coupons repository.CouponRepository
	logger  *zap.Logger
}

func New(users repository.UserRepository, coupons repository.CouponRepository, logger *zap.Logger) *Service {
	return &Service{users: users, coupons: coupons, logger: logger}
}

// GenerateCoupons creates quantity unused coupons owned by the agent.
func (s *Service) GenerateCoupons(ctx context.Context, agentID int64, quantity int) ([]*domain.Coupon, error) {
	if quantity < 1 {
		quantity = 1
	}
	if quantity > maxBatchSize {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", xerrors.ErrInvalidInput, maxBatchSize)
	}

	user, err := s.users.GetByID(ctx, nil, agentID)
	if err != nil {
		return nil, err
	}
	if !user.IsAgent {
		return nil, xerrors.ErrAgentOnly
	}

	coupons := make([]*domain.Coupon, 0, quantity)
	for i := 0; i < quantity; i++ {
		c := &domain.Coupon{
			Code:    fmt.Sprintf("LDF-%s", ulid.Make().String()),
			AgentID: agentID,
		}
		if err := s.coupons.Create(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to create coupon: %w", err)
		}
		coupons = append(coupons, c)
	}

	s.logger.Info("coupons generated",
		zap.Int64("agent_id", agentID),
		zap.Int("quantity", quantity))
	return coupons, nil
}

// ListCoupons returns all coupons owned by the agent, newest first.
func (s *Service) ListCoupons(ctx context.Context, agentID int64) ([]*domain.Coupon, error) {
	return s.coupons.ListByAgent(ctx, agentID)
}
