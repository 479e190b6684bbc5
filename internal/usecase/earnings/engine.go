package earnings

import (
	"context"
	"fmt"

	"referral-service/internal/domain"
	"referral-service/internal/repository"
	"referral-service/internal/usecase/ledger"
	"referral-service/internal/usecase/matrix"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Fixed payout schedule per activation, in currency units.
var (
	ReferralBonusAmount  = decimal.NewFromInt(1000)
	GlobalPoolAmount     = decimal.NewFromInt(1000)
	OperationsCostAmount = decimal.NewFromInt(500)

	// MatrixAmounts[i] pays upline level i+1.
	MatrixAmounts = []decimal.Decimal{
		decimal.NewFromInt(200),
		decimal.NewFromInt(100),
		decimal.NewFromInt(70),
		decimal.NewFromInt(60),
		decimal.NewFromInt(70),
	}
)

// PayoutResult summarizes one activation's payout cascade.
type PayoutResult struct {
	Payouts     int             `json:"payouts"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Engine creates all earnings triggered by an activation. It holds no
// idempotency state of its own: the activation service's coupon consume is
// the gate, and the engine runs inside that same transaction so a failed
// payout rolls the coupon back too.
type Engine struct {
	users    repository.UserRepository
	earnings repository.EarningRepository
	ledger   *ledger.Service
	resolver *matrix.Resolver
	logger   *zap.Logger
}

func NewEngine(
	users repository.UserRepository,
	earnings repository.EarningRepository,
	ledgerSvc *ledger.Service,
	resolver *matrix.Resolver,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		users:    users,
		earnings: earnings,
		ledger:   ledgerSvc,
		resolver: resolver,
		logger:   logger,
	}
}

// TriggerActivationPayouts creates every earning owed for newUserID's
// activation inside tx. Must be called at most once per activation.
//
// The pool and operations allocations are recorded against the new user's own
// record for audit and do not move any third party's cached balance; see the
// open question noted in DESIGN.md.
func (e *Engine) TriggerActivationPayouts(ctx context.Context, tx repository.Tx, newUserID int64, activationAmount decimal.Decimal) (*PayoutResult, error) {
	user, err := e.users.GetByID(ctx, tx, newUserID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("starting activation payouts",
		zap.Int64("user_id", newUserID),
		zap.String("activation_amount", activationAmount.String()))

	total := decimal.Zero
	payouts := 0

	// Referral bonus to the direct sponsor.
	if user.SponsorID != nil {
		earning := &domain.Earning{
			UserID:       *user.SponsorID,
			Amount:       ReferralBonusAmount,
			Type:         domain.EarningReferralBonus,
			Description:  fmt.Sprintf("Referral bonus for %s", user.DisplayName()),
			ReferrerID:   user.SponsorID,
			SponsorID:    user.SponsorID,
			ActivationID: &newUserID,
		}
		if err := e.earnings.Create(ctx, tx, earning); err != nil {
			return nil, fmt.Errorf("failed to create referral bonus: %w", err)
		}
		if err := e.ledger.Increment(ctx, tx, *user.SponsorID, ReferralBonusAmount); err != nil {
			return nil, fmt.Errorf("failed to credit sponsor: %w", err)
		}
		total = total.Add(ReferralBonusAmount)
		payouts++
	}

	// Pool and operations allocations, tracked on the new user for audit.
	for _, audit := range []struct {
		typ    domain.EarningType
		amount decimal.Decimal
		desc   string
	}{
		{domain.EarningGlobalPoolROI, GlobalPoolAmount, "Global pool allocation"},
		{domain.EarningOperationsCost, OperationsCostAmount, "Operations cost allocation"},
	} {
		earning := &domain.Earning{
			UserID:       newUserID,
			Amount:       audit.amount,
			Type:         audit.typ,
			Description:  audit.desc,
			ActivationID: &newUserID,
		}
		if err := e.earnings.Create(ctx, tx, earning); err != nil {
			return nil, fmt.Errorf("failed to create %s earning: %w", audit.typ, err)
		}
		total = total.Add(audit.amount)
		payouts++
	}

	// Matrix split over the sponsor's upline.
	if user.SponsorID != nil {
		upline, err := e.resolver.ResolveUpline(ctx, *user.SponsorID, matrix.MaxDepth)
		if err != nil {
			return nil, err
		}
		for i, ancestorID := range upline {
			if i >= len(MatrixAmounts) {
				break
			}
			level := i + 1
			amount := MatrixAmounts[i]
			earning := &domain.Earning{
				UserID:       ancestorID,
				Amount:       amount,
				Type:         domain.MatrixLevelEarning(level),
				Description:  fmt.Sprintf("Matrix level %d bonus for %s", level, user.DisplayName()),
				SponsorID:    &ancestorID,
				ActivationID: &newUserID,
			}
			if err := e.earnings.Create(ctx, tx, earning); err != nil {
				return nil, fmt.Errorf("failed to create matrix level %d earning: %w", level, err)
			}
			if err := e.ledger.Increment(ctx, tx, ancestorID, amount); err != nil {
				return nil, fmt.Errorf("failed to credit matrix level %d: %w", level, err)
			}
			total = total.Add(amount)
			payouts++
		}
	}

	e.logger.Info("activation payouts completed",
		zap.Int64("user_id", newUserID),
		zap.Int("payouts", payouts),
		zap.String("total", total.String()))

	return &PayoutResult{Payouts: payouts, TotalAmount: total}, nil
}
