package payment

import (
	"context"
	"testing"

	"referral-service/internal/domain"
	"referral-service/internal/repository/repotest"
	"referral-service/internal/usecase/ledger"
	xerrors "referral-service/internal/xerrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type payFixture struct {
	users       *repotest.FakeUserRepo
	investments *repotest.FakeInvestmentRepo
	earnings    *repotest.FakeEarningRepo
	svc         *Service
}

func newPayFixture(t *testing.T) *payFixture {
	t.Helper()
	users := repotest.NewFakeUserRepo()
	investments := repotest.NewFakeInvestmentRepo()
	earnings := repotest.NewFakeEarningRepo()
	withdrawals := repotest.NewFakeWithdrawalRepo()
	ledgerSvc := ledger.New(users, earnings, withdrawals, nil, zap.NewNop())
	return &payFixture{
		users:       users,
		investments: investments,
		earnings:    earnings,
		svc:         New(users, investments, earnings, ledgerSvc, "FLWPUBK-test", zap.NewNop()),
	}
}

func TestInitializePremium(t *testing.T) {
	f := newPayFixture(t)
	u := f.users.Seed(&domain.User{Username: "member", Email: "m@example.com", Phone: "08010000001"})

	intent, err := f.svc.InitializePremium(context.Background(), u.ID, decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, "FLWPUBK-test", intent.PublicKey)
	assert.True(t, intent.Amount.Equal(DefaultPremiumAmount))
	assert.Equal(t, "NGN", intent.Currency)
	assert.Equal(t, PurposePremiumUpgrade, intent.Meta["purpose"])
	assert.NotEmpty(t, intent.TxRef)

	inv, err := f.investments.GetByReference(context.Background(), nil, intent.TxRef)
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentPending, inv.Status)
	assert.Equal(t, domain.TierPremium, inv.Tier)
}

func TestInitializePremiumAlreadyPremium(t *testing.T) {
	f := newPayFixture(t)
	u := f.users.Seed(&domain.User{Username: "member", IsPremium: true})

	_, err := f.svc.InitializePremium(context.Background(), u.ID, decimal.Zero)
	assert.ErrorIs(t, err, xerrors.ErrAlreadyPremium)
}

func TestInitializeAgentCoupons(t *testing.T) {
	f := newPayFixture(t)
	agent := f.users.Seed(&domain.User{Username: "agent", IsAgent: true})

	intent, err := f.svc.InitializeAgentCoupons(context.Background(), agent.ID, 4)
	require.NoError(t, err)
	assert.True(t, intent.Amount.Equal(decimal.NewFromInt(12000)))
	assert.Equal(t, PurposeAgentCoupon, intent.Meta["purpose"])
	assert.Equal(t, "4", intent.Meta["credits"])
}

func TestInitializeAgentCouponsNonAgent(t *testing.T) {
	f := newPayFixture(t)
	u := f.users.Seed(&domain.User{Username: "member"})

	_, err := f.svc.InitializeAgentCoupons(context.Background(), u.ID, 1)
	assert.ErrorIs(t, err, xerrors.ErrAgentOnly)

	_, err = f.svc.InitializeAgentCoupons(context.Background(), u.ID, 0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestApplyPremiumNotificationOnce(t *testing.T) {
	f := newPayFixture(t)
	u := f.users.Seed(&domain.User{Username: "member", Email: "m@example.com"})

	intent, err := f.svc.InitializePremium(context.Background(), u.ID, decimal.Zero)
	require.NoError(t, err)

	n := Notification{
		Reference: intent.TxRef,
		Status:    "successful",
		Amount:    DefaultPremiumAmount,
		Purpose:   PurposePremiumUpgrade,
		UserID:    &u.ID,
	}
	res, err := f.svc.ApplyCardNotification(context.Background(), n)
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, u.ID, res.UserID)

	assert.True(t, f.users.Users[u.ID].IsPremium)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(DefaultPremiumAmount))
	require.Len(t, f.earnings.ByType(u.ID, domain.EarningPremiumROI), 1)

	// Redelivery short-circuits on the completed investment.
	res, err = f.svc.ApplyCardNotification(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(DefaultPremiumAmount))
	require.Len(t, f.earnings.ByType(u.ID, domain.EarningPremiumROI), 1)
}

func TestApplyPremiumWithoutPriorInvestment(t *testing.T) {
	f := newPayFixture(t)
	u := f.users.Seed(&domain.User{Username: "member"})

	// No checkout row exists, the notification alone carries everything.
	res, err := f.svc.ApplyCardNotification(context.Background(), Notification{
		Reference: "LDF-external-ref",
		Status:    "completed",
		Amount:    decimal.NewFromInt(5000),
		Purpose:   PurposePremiumUpgrade,
		UserID:    &u.ID,
	})
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.True(t, f.users.Users[u.ID].IsPremium)
}

func TestApplyAgentCouponNotification(t *testing.T) {
	f := newPayFixture(t)
	agent := f.users.Seed(&domain.User{Username: "agent", IsAgent: true})

	intent, err := f.svc.InitializeAgentCoupons(context.Background(), agent.ID, 3)
	require.NoError(t, err)

	res, err := f.svc.ApplyCardNotification(context.Background(), Notification{
		Reference: intent.TxRef,
		Status:    "successful",
		Amount:    intent.Amount,
		Purpose:   PurposeAgentCoupon,
		Credits:   3,
		UserID:    &agent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.CreditsAdded)
	assert.Equal(t, 3, f.users.Users[agent.ID].AgentCouponCredits)

	// Coupon purchases do not touch the cash balance.
	assert.True(t, f.users.Users[agent.ID].Balance.IsZero())
}

func TestApplyAgentCouponCreditsFallback(t *testing.T) {
	f := newPayFixture(t)
	agent := f.users.Seed(&domain.User{Username: "agent", IsAgent: true})

	// Metadata lost: 9500 / 3000 floors to 3 credits.
	res, err := f.svc.ApplyCardNotification(context.Background(), Notification{
		Reference: "AGENT-external-ref",
		Status:    "successful",
		Amount:    decimal.NewFromInt(9500),
		Purpose:   PurposeAgentCoupon,
		UserID:    &agent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.CreditsAdded)
	assert.Equal(t, 3, f.users.Users[agent.ID].AgentCouponCredits)
}

func TestApplyNotificationValidation(t *testing.T) {
	f := newPayFixture(t)
	u := f.users.Seed(&domain.User{Username: "member"})

	_, err := f.svc.ApplyCardNotification(context.Background(), Notification{Status: "successful"})
	assert.ErrorIs(t, err, xerrors.ErrReferenceMissing)

	_, err = f.svc.ApplyCardNotification(context.Background(), Notification{
		Reference: "LDF-x", Status: "failed", UserID: &u.ID,
	})
	assert.ErrorIs(t, err, xerrors.ErrPaymentNotSuccessful)

	// Unknown reference with no metadata cannot be attributed to anyone.
	_, err = f.svc.ApplyCardNotification(context.Background(), Notification{
		Reference: "LDF-unknown", Status: "successful", Amount: decimal.NewFromInt(5000),
	})
	assert.ErrorIs(t, err, xerrors.ErrUserNotFound)
}

func TestResolvePurposeFallsBackToTier(t *testing.T) {
	f := newPayFixture(t)
	agent := f.users.Seed(&domain.User{Username: "agent", IsAgent: true})

	intent, err := f.svc.InitializeAgentCoupons(context.Background(), agent.ID, 2)
	require.NoError(t, err)

	// Purpose metadata missing; the pending investment's tier decides.
	res, err := f.svc.ApplyCardNotification(context.Background(), Notification{
		Reference: intent.TxRef,
		Status:    "successful",
		Amount:    intent.Amount,
	})
	require.NoError(t, err)
	assert.Equal(t, PurposeAgentCoupon, res.Purpose)
	assert.Equal(t, 2, f.users.Users[agent.ID].AgentCouponCredits)
}
