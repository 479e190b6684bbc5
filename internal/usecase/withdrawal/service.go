package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"referral-service/internal/domain"
	"referral-service/internal/repository"
	"referral-service/internal/usecase/ledger"
	xerrors "referral-service/internal/xerrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// gatewayTimeout bounds every outbound transfer call. A timeout leaves the
// withdrawal PENDING; only a definitive gateway verdict moves it.
const gatewayTimeout = 15 * time.Second

// TransferRequest is what the bank gateway needs to move funds.
type TransferRequest struct {
	AccountNumber string
	BankName      string
	Amount        decimal.Decimal
	AccountName   string
	Narration     string
	Reference     string
}

// TransferResult is the gateway's verdict on an initiated transfer.
type TransferResult struct {
	TransactionReference string
	Status               string // SUCCESS, PENDING or FAILED
	Message              string
}

// TransferGateway is the outbound bank-transfer client. Transport-level
// failures must surface as errors wrapping xerrors.ErrExternalService;
// a definitive gateway rejection comes back as a FAILED result, not an error.
type TransferGateway interface {
	InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*TransferResult, error)
	Configured() bool
}

// Policy captures environment-conditional behavior explicitly instead of
// scattering mode checks through the flow.
type Policy struct {
	// RequireKYC gates withdrawal creation on the user's KYC flag.
	RequireKYC bool
	// AutoProcess submits a withdrawal right after creation (dev/test
	// convenience; production keeps the manual approval step).
	AutoProcess bool
}

// Service owns the withdrawal lifecycle. Balance is debited exactly once on
// PENDING -> APPROVED|PAID and refunded exactly once on APPROVED|PAID ->
// FAILED; every delta keys off an actual status change so webhook redelivery
// is harmless.
type Service struct {
	users       repository.UserRepository
	withdrawals repository.WithdrawalRepository
	ledger      *ledger.Service
	gateway     TransferGateway
	policy      Policy
	logger      *zap.Logger
}

func New(
	users repository.UserRepository,
	withdrawals repository.WithdrawalRepository,
	ledgerSvc *ledger.Service,
	gateway TransferGateway,
	policy Policy,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:       users,
		withdrawals: withdrawals,
		ledger:      ledgerSvc,
		gateway:     gateway,
		policy:      policy,
		logger:      logger,
	}
}

// CreateRequest carries user-supplied withdrawal fields; empty bank details
// fall back to the user's stored account.
type CreateRequest struct {
	Amount      decimal.Decimal
	Currency    string
	BankName    string
	BankAccount string
	AccountName string
}

// Create validates and persists a PENDING withdrawal. No balance moves here.
func (s *Service) Create(ctx context.Context, userID int64, req CreateRequest) (*domain.Withdrawal, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", xerrors.ErrInvalidInput)
	}

	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if s.policy.RequireKYC && !user.KYCVerified {
		return nil, xerrors.ErrKYCRequired
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Amount.GreaterThan(balance) {
		return nil, xerrors.ErrInsufficientBalance
	}

	w := &domain.Withdrawal{
		UserID:      userID,
		Amount:      req.Amount,
		Currency:    defaultStr(req.Currency, "NGN"),
		BankName:    defaultStr(req.BankName, strDeref(user.BankName)),
		BankAccount: defaultStr(req.BankAccount, strDeref(user.BankAccount)),
		AccountName: defaultStr(req.AccountName, user.DisplayName()),
		Status:      domain.WithdrawalPending,
	}
	if err := s.withdrawals.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	s.logger.Info("withdrawal requested",
		zap.Int64("withdrawal_id", w.ID),
		zap.Int64("user_id", userID),
		zap.String("amount", req.Amount.String()))

	if s.policy.AutoProcess {
		processed, err := s.Process(ctx, w.ID)
		if err != nil {
			// Creation already succeeded; the request stays PENDING for a
			// later manual run.
			s.logger.Warn("auto-processing failed, withdrawal remains pending",
				zap.Int64("withdrawal_id", w.ID), zap.Error(err))
			return w, nil
		}
		return processed, nil
	}

	return w, nil
}

// Process submits a PENDING withdrawal to the bank gateway. Transport errors
// are returned to the caller with the withdrawal left PENDING; they are safe
// to retry. When no gateway is configured the withdrawal is settled locally
// as APPROVED (non-production convenience mirroring AutoProcess).
func (s *Service) Process(ctx context.Context, withdrawalID int64) (*domain.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(ctx, nil, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WithdrawalPending {
		return nil, fmt.Errorf("%w: cannot process %s withdrawal", xerrors.ErrInvalidStatusTransition, w.Status)
	}

	reference := fmt.Sprintf("WDL-%d-%s", w.UserID, uuid.New().String()[:8])

	if !s.gateway.Configured() {
		if s.policy.AutoProcess {
			return s.applyStatus(ctx, w, domain.WithdrawalApproved, &reference, nil)
		}
		return nil, xerrors.ErrGatewayNotConfigured
	}

	callCtx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	result, err := s.gateway.InitiateTransfer(callCtx, TransferRequest{
		AccountNumber: w.BankAccount,
		BankName:      w.BankName,
		Amount:        w.Amount,
		AccountName:   w.AccountName,
		Narration:     "Withdrawal payout",
		Reference:     reference,
	})
	if err != nil {
		// No definitive verdict: stay PENDING, report upstream.
		s.logger.Error("transfer initiation failed",
			zap.Int64("withdrawal_id", w.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", xerrors.ErrExternalService, err)
	}

	ref := result.TransactionReference
	if ref == "" {
		ref = reference
	}

	switch MapGatewayStatus(result.Status) {
	case domain.WithdrawalPaid:
		return s.applyStatus(ctx, w, domain.WithdrawalPaid, &ref, nil)
	case domain.WithdrawalFailed:
		reason := defaultStr(result.Message, "Transfer failed")
		return s.applyStatus(ctx, w, domain.WithdrawalFailed, &ref, &reason)
	default:
		// Initiated but not settled; decrement now, the webhook resolves the
		// terminal state.
		return s.applyStatus(ctx, w, domain.WithdrawalApproved, &ref, nil)
	}
}

// ApplyGatewayStatus reconciles an asynchronous gateway notification for
// reference. Redelivery of an already-applied status is a no-op.
func (s *Service) ApplyGatewayStatus(ctx context.Context, reference, gatewayStatus, message string) (*domain.Withdrawal, error) {
	tx, err := s.users.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := s.withdrawals.GetByReferenceForUpdate(ctx, tx, reference)
	if err != nil {
		return nil, err
	}

	next := MapGatewayStatus(gatewayStatus)
	if next == "" || next == w.Status {
		// Unknown status or redelivery: nothing to apply.
		return w, nil
	}

	var reason *string
	if next == domain.WithdrawalFailed {
		r := defaultStr(message, "Transfer failed")
		reason = &r
	}

	if err := s.transition(ctx, tx, w, next, nil, reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	s.logger.Info("withdrawal status updated via webhook",
		zap.Int64("withdrawal_id", w.ID),
		zap.String("old_status", string(w.Status)),
		zap.String("new_status", string(next)))

	updated := *w
	updated.Status = next
	updated.RejectionReason = reason
	return &updated, nil
}

// ReconcileWithGateway asks the gateway for its current verdict on reference
// and applies it through the same path webhooks use. This is the recovery
// route for lost or delayed webhooks: an APPROVED withdrawal whose terminal
// notification never arrived gets settled here.
func (s *Service) ReconcileWithGateway(ctx context.Context, reference string) (*domain.Withdrawal, error) {
	if !s.gateway.Configured() {
		return nil, xerrors.ErrGatewayNotConfigured
	}

	callCtx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	result, err := s.gateway.VerifyTransaction(callCtx, reference)
	if err != nil {
		s.logger.Error("transfer verification failed",
			zap.String("reference", reference), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", xerrors.ErrExternalService, err)
	}

	return s.ApplyGatewayStatus(ctx, reference, result.Status, result.Message)
}

// Reject moves a PENDING withdrawal to the terminal REJECTED state. Nothing
// was ever debited, so there is no balance effect.
func (s *Service) Reject(ctx context.Context, withdrawalID int64, reason string) (*domain.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(ctx, nil, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WithdrawalPending {
		return nil, fmt.Errorf("%w: cannot reject %s withdrawal", xerrors.ErrInvalidStatusTransition, w.Status)
	}
	return s.applyStatus(ctx, w, domain.WithdrawalRejected, nil, &reason)
}

// History returns the user's withdrawals, newest first.
func (s *Service) History(ctx context.Context, userID int64, limit, offset int) ([]*domain.Withdrawal, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.withdrawals.ListByUser(ctx, userID, limit, offset)
}

// applyStatus runs a single transition in its own transaction.
func (s *Service) applyStatus(ctx context.Context, w *domain.Withdrawal, next domain.WithdrawalStatus, reference, reason *string) (*domain.Withdrawal, error) {
	tx, err := s.users.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.transition(ctx, tx, w, next, reference, reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	updated := *w
	updated.Status = next
	if reference != nil {
		updated.PaymentReference = reference
	}
	updated.RejectionReason = reason
	return &updated, nil
}

// transition persists the status change and applies the balance delta the
// old -> new pair dictates, inside the caller's transaction. The update is
// guarded on the status the caller observed, so a concurrent transition off
// the same status wins at most once and the loser gets
// ErrInvalidStatusTransition before any balance delta is applied.
func (s *Service) transition(ctx context.Context, tx repository.Tx, w *domain.Withdrawal, next domain.WithdrawalStatus, reference, reason *string) error {
	markProcessed := next == domain.WithdrawalPaid || next == domain.WithdrawalApproved
	if err := s.withdrawals.UpdateStatus(ctx, tx, w.ID, w.Status, next, reference, reason, markProcessed); err != nil {
		return err
	}

	switch domain.BalanceEffect(w.Status, next) {
	case domain.DeltaDebit:
		if err := s.ledger.Decrement(ctx, tx, w.UserID, w.Amount); err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}
		s.logger.Info("balance debited for withdrawal",
			zap.Int64("user_id", w.UserID), zap.String("amount", w.Amount.String()))
	case domain.DeltaCredit:
		if err := s.ledger.Increment(ctx, tx, w.UserID, w.Amount); err != nil {
			return fmt.Errorf("failed to refund balance: %w", err)
		}
		s.logger.Info("balance refunded for failed withdrawal",
			zap.Int64("user_id", w.UserID), zap.String("amount", w.Amount.String()))
	}
	return nil
}

// MapGatewayStatus translates gateway status vocabulary onto the withdrawal
// state machine. Unknown statuses map to the empty string and are ignored.
func MapGatewayStatus(status string) domain.WithdrawalStatus {
	switch strings.ToUpper(status) {
	case "SUCCESS", "SUCCESSFUL", "COMPLETED", "00":
		return domain.WithdrawalPaid
	case "FAILED", "DECLINED", "REJECTED", "01":
		return domain.WithdrawalFailed
	case "PENDING", "PROCESSING", "02":
		return domain.WithdrawalApproved
	default:
		return ""
	}
}

// IsRetryable reports whether a Process error left the withdrawal PENDING
// and safe to resubmit.
func IsRetryable(err error) bool {
	return errors.Is(err, xerrors.ErrExternalService)
}

func defaultStr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func strDeref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
