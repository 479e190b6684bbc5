package ledger

import (
	"context"
	"fmt"
	"time"

	"referral-service/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const balanceCacheTTL = 2 * time.Minute

// Service is the single funnel for balance reads and mutations. The cached
// balance lives on the user row; redis sits in front of it for dashboard
// reads. Recalculate is the drift-repair path: it rebuilds the figure from
// earnings and settled withdrawals, the authoritative sources.
type Service struct {
	users       repository.UserRepository
	earnings    repository.EarningRepository
	withdrawals repository.WithdrawalRepository
	redisClient *redis.Client
	logger      *zap.Logger
}

func New(
	users repository.UserRepository,
	earnings repository.EarningRepository,
	withdrawals repository.WithdrawalRepository,
	redisClient *redis.Client,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:       users,
		earnings:    earnings,
		withdrawals: withdrawals,
		redisClient: redisClient,
		logger:      logger,
	}
}

func balanceKey(userID int64) string {
	return fmt.Sprintf("balance:user:%d", userID)
}

// GetBalance returns the cached balance for userID.
func (s *Service) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if s.redisClient != nil {
		if val, err := s.redisClient.Get(ctx, balanceKey(userID)).Result(); err == nil {
			if d, parseErr := decimal.NewFromString(val); parseErr == nil {
				return d, nil
			}
		}
	}

	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return decimal.Zero, err
	}

	s.cache(ctx, userID, user.Balance)
	return user.Balance, nil
}

// Recalculate recomputes the balance from first principles, writes it back as
// the new cached value and returns it.
func (s *Service) Recalculate(ctx context.Context, userID int64) (decimal.Decimal, error) {
	earned, err := s.earnings.SumByUser(ctx, nil, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum earnings: %w", err)
	}
	withdrawn, err := s.withdrawals.SumSettledByUser(ctx, nil, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum withdrawals: %w", err)
	}

	balance := earned.Sub(withdrawn)
	if err := s.users.SetBalance(ctx, userID, balance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to write recalculated balance: %w", err)
	}

	s.cache(ctx, userID, balance)
	s.logger.Info("balance recalculated",
		zap.Int64("user_id", userID),
		zap.String("balance", balance.String()))
	return balance, nil
}

// Increment adds amount to the user's cached balance inside tx.
func (s *Service) Increment(ctx context.Context, tx repository.Tx, userID int64, amount decimal.Decimal) error {
	if err := s.users.IncrementBalance(ctx, tx, userID, amount); err != nil {
		return err
	}
	s.Invalidate(ctx, userID)
	return nil
}

// Decrement subtracts amount from the user's cached balance inside tx.
func (s *Service) Decrement(ctx context.Context, tx repository.Tx, userID int64, amount decimal.Decimal) error {
	if err := s.users.DecrementBalance(ctx, tx, userID, amount); err != nil {
		return err
	}
	s.Invalidate(ctx, userID)
	return nil
}

// Invalidate drops the redis entry; the next read repopulates it from the
// user row. Dropping before the surrounding tx commits only costs a cache
// miss.
func (s *Service) Invalidate(ctx context.Context, userID int64) {
	if s.redisClient != nil {
		_ = s.redisClient.Del(ctx, balanceKey(userID)).Err()
	}
}

func (s *Service) cache(ctx context.Context, userID int64, balance decimal.Decimal) {
	if s.redisClient != nil {
		_ = s.redisClient.Set(ctx, balanceKey(userID), balance.String(), balanceCacheTTL).Err()
	}
}
