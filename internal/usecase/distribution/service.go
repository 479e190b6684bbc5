package distribution

import (
	"context"
	"fmt"
	"time"

	"referral-service/internal/domain"
	"referral-service/internal/repository"
	"referral-service/internal/usecase/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// GlobalPoolROIPerUser is the flat amount credited to each verified user
	// per global-pool distribution run.
	GlobalPoolROIPerUser = decimal.NewFromInt(100)
	// PremiumROIRate is applied to each premium user's completed PREMIUM
	// investment total per premium distribution run.
	PremiumROIRate = decimal.NewFromFloat(0.1)
)

// Service runs the periodic ROI distributions and the balance reconciliation
// sweep. Each user's credit is its own transaction so one bad row does not
// roll back the whole run.
type Service struct {
	users       repository.UserRepository
	earnings    repository.EarningRepository
	investments repository.InvestmentRepository
	ledger      *ledger.Service
	logger      *zap.Logger
}

func New(
	users repository.UserRepository,
	earnings repository.EarningRepository,
	investments repository.InvestmentRepository,
	ledgerSvc *ledger.Service,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:       users,
		earnings:    earnings,
		investments: investments,
		ledger:      ledgerSvc,
		logger:      logger,
	}
}

// RunReport summarizes one distribution run.
type RunReport struct {
	UsersCredited int             `json:"users_credited"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// DistributeGlobalPoolROI credits the flat pool amount to every
// email-verified user.
func (s *Service) DistributeGlobalPoolROI(ctx context.Context) (*RunReport, error) {
	userIDs, err := s.users.ListUserIDs(ctx, true, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	report := &RunReport{TotalAmount: decimal.Zero}
	for _, id := range userIDs {
		if err := s.credit(ctx, id, GlobalPoolROIPerUser, domain.EarningGlobalPoolROI,
			"Global pool ROI distribution"); err != nil {
			s.logger.Error("global pool credit failed",
				zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		report.UsersCredited++
		report.TotalAmount = report.TotalAmount.Add(GlobalPoolROIPerUser)
	}

	s.logger.Info("global pool ROI distributed",
		zap.Int("users", report.UsersCredited),
		zap.String("total", report.TotalAmount.String()))
	return report, nil
}

// DistributePremiumROI credits each verified premium user a percentage of
// their completed PREMIUM investment total. Users with no completed
// investment are skipped.
func (s *Service) DistributePremiumROI(ctx context.Context) (*RunReport, error) {
	userIDs, err := s.users.ListUserIDs(ctx, true, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list premium users: %w", err)
	}

	report := &RunReport{TotalAmount: decimal.Zero}
	for _, id := range userIDs {
		invested, err := s.investments.SumCompletedByUserAndTier(ctx, id, domain.TierPremium)
		if err != nil {
			s.logger.Error("investment sum failed", zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		roi := invested.Mul(PremiumROIRate)
		if !roi.IsPositive() {
			continue
		}
		if err := s.credit(ctx, id, roi, domain.EarningPremiumROI,
			"Premium ROI distribution"); err != nil {
			s.logger.Error("premium ROI credit failed",
				zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		report.UsersCredited++
		report.TotalAmount = report.TotalAmount.Add(roi)
	}

	s.logger.Info("premium ROI distributed",
		zap.Int("users", report.UsersCredited),
		zap.String("total", report.TotalAmount.String()))
	return report, nil
}

// ReconcileBalances rebuilds every user's cached balance from earnings and
// settled withdrawals. Exposed as an admin operation and usable as a job.
func (s *Service) ReconcileBalances(ctx context.Context) (int, error) {
	userIDs, err := s.users.ListUserIDs(ctx, false, false)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	repaired := 0
	for _, id := range userIDs {
		if _, err := s.ledger.Recalculate(ctx, id); err != nil {
			s.logger.Error("balance reconciliation failed",
				zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		repaired++
	}

	s.logger.Info("balances reconciled", zap.Int("users", repaired))
	return repaired, nil
}

// credit writes the earning row and the matching balance increment in one
// transaction, keeping the ledger identity intact between sweeps.
func (s *Service) credit(ctx context.Context, userID int64, amount decimal.Decimal, typ domain.EarningType, description string) error {
	tx, err := s.users.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.earnings.Create(ctx, tx, &domain.Earning{
		UserID:      userID,
		Amount:      amount,
		Type:        typ,
		Description: description,
	}); err != nil {
		return err
	}
	if err := s.ledger.Increment(ctx, tx, userID, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Runner invokes the distributions on a fixed interval until the context is
// canceled. Interval-based rather than calendar-based scheduling keeps the
// loop testable; production deployments typically trigger the endpoints from
// an external scheduler instead.
type Runner struct {
	svc      *Service
	interval time.Duration
	logger   *zap.Logger
}

func NewRunner(svc *Service, interval time.Duration, logger *zap.Logger) *Runner {
	return &Runner{svc: svc, interval: interval, logger: logger}
}

func (r *Runner) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("distribution runner disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("distribution runner started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("distribution runner stopped")
			return
		case <-ticker.C:
			if _, err := r.svc.DistributeGlobalPoolROI(ctx); err != nil {
				r.logger.Error("global pool distribution failed", zap.Error(err))
			}
			if _, err := r.svc.DistributePremiumROI(ctx); err != nil {
				r.logger.Error("premium distribution failed", zap.Error(err))
			}
		}
	}
}
