package distribution

import (
	"context"
	"testing"

	"referral-service/internal/domain"
	"referral-service/internal/repository/repotest"
	"referral-service/internal/usecase/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type distFixture struct {
	users       *repotest.FakeUserRepo
	earnings    *repotest.FakeEarningRepo
	investments *repotest.FakeInvestmentRepo
	withdrawals *repotest.FakeWithdrawalRepo
	svc         *Service
}

func newDistFixture(t *testing.T) *distFixture {
	t.Helper()
	users := repotest.NewFakeUserRepo()
	earnings := repotest.NewFakeEarningRepo()
	investments := repotest.NewFakeInvestmentRepo()
	withdrawals := repotest.NewFakeWithdrawalRepo()
	ledgerSvc := ledger.New(users, earnings, withdrawals, nil, zap.NewNop())
	return &distFixture{
		users:       users,
		earnings:    earnings,
		investments: investments,
		withdrawals: withdrawals,
		svc:         New(users, earnings, investments, ledgerSvc, zap.NewNop()),
	}
}

func TestDistributeGlobalPoolROI(t *testing.T) {
	f := newDistFixture(t)
	verified1 := f.users.Seed(&domain.User{Username: "v1", EmailVerified: true})
	verified2 := f.users.Seed(&domain.User{Username: "v2", EmailVerified: true})
	unverified := f.users.Seed(&domain.User{Username: "u1"})

	report, err := f.svc.DistributeGlobalPoolROI(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.UsersCredited)
	assert.True(t, report.TotalAmount.Equal(decimal.NewFromInt(200)))
	assert.True(t, f.users.Users[verified1.ID].Balance.Equal(GlobalPoolROIPerUser))
	assert.True(t, f.users.Users[verified2.ID].Balance.Equal(GlobalPoolROIPerUser))
	assert.True(t, f.users.Users[unverified.ID].Balance.IsZero())

	require.Len(t, f.earnings.ByType(verified1.ID, domain.EarningGlobalPoolROI), 1)
	require.Empty(t, f.earnings.ByType(unverified.ID, domain.EarningGlobalPoolROI))
}

func TestDistributePremiumROI(t *testing.T) {
	f := newDistFixture(t)
	ctx := context.Background()
	premium := f.users.Seed(&domain.User{Username: "prem", EmailVerified: true, IsPremium: true})
	// Premium flag without a completed investment earns nothing.
	idle := f.users.Seed(&domain.User{Username: "idle", EmailVerified: true, IsPremium: true})
	basic := f.users.Seed(&domain.User{Username: "basic", EmailVerified: true})

	require.NoError(t, f.investments.UpsertCompleted(ctx, nil, premium.ID,
		decimal.NewFromInt(5000), domain.TierPremium, "LDF-roi-1"))

	report, err := f.svc.DistributePremiumROI(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.UsersCredited)
	assert.True(t, report.TotalAmount.Equal(decimal.NewFromInt(500)), "total %s", report.TotalAmount)
	assert.True(t, f.users.Users[premium.ID].Balance.Equal(decimal.NewFromInt(500)))
	assert.True(t, f.users.Users[idle.ID].Balance.IsZero())
	assert.True(t, f.users.Users[basic.ID].Balance.IsZero())
}

func TestReconcileBalancesRepairsDrift(t *testing.T) {
	f := newDistFixture(t)
	ctx := context.Background()
	// Cached figure disagrees with the earnings ledger.
	u := f.users.Seed(&domain.User{Username: "drifted", Balance: decimal.NewFromInt(123456)})
	require.NoError(t, f.earnings.Create(ctx, nil, &domain.Earning{
		UserID: u.ID, Amount: decimal.NewFromInt(1000), Type: domain.EarningReferralBonus,
	}))
	require.NoError(t, f.withdrawals.Create(ctx, &domain.Withdrawal{
		UserID: u.ID, Amount: decimal.NewFromInt(300), Status: domain.WithdrawalPaid,
	}))

	repaired, err := f.svc.ReconcileBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.True(t, f.users.Users[u.ID].Balance.Equal(decimal.NewFromInt(700)))
}
