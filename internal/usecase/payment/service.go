package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"referral-service/internal/domain"
	"referral-service/internal/repository"
	"referral-service/internal/usecase/ledger"
	xerrors "referral-service/internal/xerrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Purposes carried in checkout metadata and echoed back by the card gateway.
const (
	PurposePremiumUpgrade = "PREMIUM_UPGRADE"
	PurposeAgentCoupon    = "AGENT_COUPON"
)

var (
	// CouponUnitPrice is the price of one agent coupon credit.
	CouponUnitPrice = decimal.NewFromInt(3000)
	// DefaultPremiumAmount is charged when the client omits an amount.
	DefaultPremiumAmount = decimal.NewFromInt(5000)
)

// Service initializes card payments and reconciles gateway notifications
// against investment rows. payment_reference is the idempotency key
// throughout: an investment already completed means the notification was
// applied before and nothing moves twice.
type Service struct {
	users       repository.UserRepository
	investments repository.InvestmentRepository
	earnings    repository.EarningRepository
	ledger      *ledger.Service
	publicKey   string
	logger      *zap.Logger
}

func New(
	users repository.UserRepository,
	investments repository.InvestmentRepository,
	earnings repository.EarningRepository,
	ledgerSvc *ledger.Service,
	publicKey string,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:       users,
		investments: investments,
		earnings:    earnings,
		ledger:      ledgerSvc,
		publicKey:   publicKey,
		logger:      logger,
	}
}

// CheckoutCustomer is the payer identity forwarded to the inline widget.
type CheckoutCustomer struct {
	Email string `json:"email"`
	Phone string `json:"phone_number"`
	Name  string `json:"name"`
}

// CheckoutIntent is everything the client-side payment widget needs.
type CheckoutIntent struct {
	PublicKey   string            `json:"publicKey"`
	TxRef       string            `json:"tx_ref"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Customer    CheckoutCustomer  `json:"customer"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Meta        map[string]string `json:"meta"`
}

// InitializePremium creates a pending PREMIUM investment and returns the
// checkout payload. Rejected for users who are already premium.
func (s *Service) InitializePremium(ctx context.Context, userID int64, amount decimal.Decimal) (*CheckoutIntent, error) {
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if user.IsPremium {
		return nil, xerrors.ErrAlreadyPremium
	}

	if !amount.IsPositive() {
		amount = DefaultPremiumAmount
	}
	reference := fmt.Sprintf("LDF-%d-%s", userID, uuid.New().String()[:8])

	inv := &domain.Investment{
		UserID:           userID,
		Amount:           amount,
		Tier:             domain.TierPremium,
		PaymentReference: reference,
		Status:           domain.InvestmentPending,
	}
	if err := s.investments.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create investment: %w", err)
	}

	s.logger.Info("premium payment initialized",
		zap.Int64("user_id", userID),
		zap.String("reference", reference),
		zap.String("amount", amount.String()))

	return &CheckoutIntent{
		PublicKey: s.publicKey,
		TxRef:     reference,
		Amount:    amount,
		Currency:  "NGN",
		Customer: CheckoutCustomer{
			Email: user.Email,
			Phone: user.Phone,
			Name:  user.DisplayName(),
		},
		Title:       "Premium Upgrade",
		Description: "Upgrade to Premium Tier",
		Meta: map[string]string{
			"userId":  fmt.Sprintf("%d", userID),
			"purpose": PurposePremiumUpgrade,
		},
	}, nil
}

// InitializeAgentCoupons creates a pending AGENT_COUPON investment for
// quantity credits at the coupon unit price. Agents only.
func (s *Service) InitializeAgentCoupons(ctx context.Context, userID int64, quantity int) (*CheckoutIntent, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", xerrors.ErrInvalidInput)
	}

	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsAgent {
		return nil, xerrors.ErrAgentOnly
	}

	amount := CouponUnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	reference := fmt.Sprintf("AGENT-%d-%s", userID, uuid.New().String()[:8])

	inv := &domain.Investment{
		UserID:           userID,
		Amount:           amount,
		Tier:             domain.TierAgentCoupon,
		PaymentReference: reference,
		Status:           domain.InvestmentPending,
	}
	if err := s.investments.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create investment: %w", err)
	}

	s.logger.Info("agent coupon payment initialized",
		zap.Int64("user_id", userID),
		zap.String("reference", reference),
		zap.Int("quantity", quantity))

	return &CheckoutIntent{
		PublicKey: s.publicKey,
		TxRef:     reference,
		Amount:    amount,
		Currency:  "NGN",
		Customer: CheckoutCustomer{
			Email: user.Email,
			Phone: user.Phone,
			Name:  user.DisplayName(),
		},
		Title:       "Agent Coupon Credits",
		Description: fmt.Sprintf("Purchase of %d coupon credit(s)", quantity),
		Meta: map[string]string{
			"userId":  fmt.Sprintf("%d", userID),
			"purpose": PurposeAgentCoupon,
			"credits": fmt.Sprintf("%d", quantity),
		},
	}, nil
}

// Notification is a parsed card-gateway webhook event. UserID, Purpose and
// Credits come from checkout metadata and may be absent on redeliveries; the
// investment row fills the gaps.
type Notification struct {
	Reference string
	Status    string
	Amount    decimal.Decimal
	Purpose   string
	Credits   int
	UserID    *int64
}

// ReconcileResult reports what a notification actually changed.
type ReconcileResult struct {
	AlreadyProcessed bool
	UserID           int64
	Purpose          string
	CreditsAdded     int
}

// ApplyCardNotification reconciles a successful card payment. The whole
// mutation runs in one transaction keyed on the unique payment_reference, so
// gateway redelivery either short-circuits on the completed investment or
// loses the upsert race and conflicts on the constraint.
func (s *Service) ApplyCardNotification(ctx context.Context, n Notification) (*ReconcileResult, error) {
	if n.Reference == "" {
		return nil, xerrors.ErrReferenceMissing
	}
	switch strings.ToLower(n.Status) {
	case "successful", "completed":
	default:
		return nil, xerrors.ErrPaymentNotSuccessful
	}

	tx, err := s.users.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := s.investments.GetByReference(ctx, tx, n.Reference)
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status == domain.InvestmentCompleted {
		s.logger.Info("payment already processed", zap.String("reference", n.Reference))
		return &ReconcileResult{AlreadyProcessed: true, UserID: existing.UserID}, nil
	}

	userID, err := resolveUserID(n, existing)
	if err != nil {
		return nil, err
	}
	purpose := resolvePurpose(n, existing)

	var result *ReconcileResult
	if purpose == PurposeAgentCoupon {
		result, err = s.applyAgentCoupon(ctx, tx, userID, n)
	} else {
		result, err = s.applyPremium(ctx, tx, userID, n)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return result, nil
}

func (s *Service) applyAgentCoupon(ctx context.Context, tx repository.Tx, userID int64, n Notification) (*ReconcileResult, error) {
	credits := n.Credits
	if credits <= 0 {
		// Metadata lost in transit: derive credits from the amount paid.
		credits = int(n.Amount.Div(CouponUnitPrice).IntPart())
	}
	if credits <= 0 {
		return nil, fmt.Errorf("%w: cannot derive credits from amount %s", xerrors.ErrInvalidInput, n.Amount.String())
	}

	if err := s.investments.UpsertCompleted(ctx, tx, userID, n.Amount, domain.TierAgentCoupon, n.Reference); err != nil {
		return nil, err
	}
	if err := s.users.IncrementCouponCredits(ctx, tx, userID, credits); err != nil {
		return nil, err
	}

	s.logger.Info("agent coupon credits applied",
		zap.Int64("user_id", userID),
		zap.String("reference", n.Reference),
		zap.Int("credits", credits))

	return &ReconcileResult{UserID: userID, Purpose: PurposeAgentCoupon, CreditsAdded: credits}, nil
}

func (s *Service) applyPremium(ctx context.Context, tx repository.Tx, userID int64, n Notification) (*ReconcileResult, error) {
	if err := s.investments.UpsertCompleted(ctx, tx, userID, n.Amount, domain.TierPremium, n.Reference); err != nil {
		return nil, err
	}
	if err := s.users.SetPremium(ctx, tx, userID); err != nil {
		return nil, err
	}

	// Credit the premium ROI earning at most once per payment reference.
	exists, err := s.earnings.ExistsByTypeAndReference(ctx, tx, userID, domain.EarningPremiumROI, n.Reference)
	if err != nil {
		return nil, err
	}
	if !exists {
		ref := n.Reference
		earning := &domain.Earning{
			UserID:           userID,
			Amount:           n.Amount,
			Type:             domain.EarningPremiumROI,
			Description:      fmt.Sprintf("Premium tier investment - %s", n.Reference),
			PaymentReference: &ref,
		}
		if err := s.earnings.Create(ctx, tx, earning); err != nil {
			return nil, err
		}
		if err := s.ledger.Increment(ctx, tx, userID, n.Amount); err != nil {
			return nil, err
		}
	}

	s.logger.Info("premium payment applied",
		zap.Int64("user_id", userID),
		zap.String("reference", n.Reference))

	return &ReconcileResult{UserID: userID, Purpose: PurposePremiumUpgrade}, nil
}

func resolveUserID(n Notification, existing *domain.Investment) (int64, error) {
	if n.UserID != nil {
		return *n.UserID, nil
	}
	if existing != nil {
		return existing.UserID, nil
	}
	return 0, xerrors.ErrUserNotFound
}

func resolvePurpose(n Notification, existing *domain.Investment) string {
	if n.Purpose != "" {
		return n.Purpose
	}
	if existing != nil && existing.Tier == domain.TierAgentCoupon {
		return PurposeAgentCoupon
	}
	return PurposePremiumUpgrade
}
