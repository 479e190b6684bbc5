package earnings

import (
	"context"
	"testing"

	"referral-service/internal/domain"
	"referral-service/internal/repository/repotest"
	"referral-service/internal/usecase/ledger"
	"referral-service/internal/usecase/matrix"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type engineFixture struct {
	users    *repotest.FakeUserRepo
	earnings *repotest.FakeEarningRepo
	engine   *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	users := repotest.NewFakeUserRepo()
	earningsRepo := repotest.NewFakeEarningRepo()
	withdrawals := repotest.NewFakeWithdrawalRepo()
	ledgerSvc := ledger.New(users, earningsRepo, withdrawals, nil, zap.NewNop())
	resolver := matrix.NewResolver(users)
	return &engineFixture{
		users:    users,
		earnings: earningsRepo,
		engine:   NewEngine(users, earningsRepo, ledgerSvc, resolver, zap.NewNop()),
	}
}

func TestActivationPayoutsFullChain(t *testing.T) {
	f := newEngineFixture(t)

	// Six ancestors above the new user: sponsor plus five matrix levels.
	var prev *int64
	chain := make([]*domain.User, 0, 6)
	for i := 0; i < 6; i++ {
		u := f.users.Seed(&domain.User{Username: "ancestor", SponsorID: prev})
		chain = append(chain, u)
		id := u.ID
		prev = &id
	}
	sponsor := chain[5]
	newUser := f.users.Seed(&domain.User{Username: "newbie", SponsorID: &sponsor.ID})

	res, err := f.engine.TriggerActivationPayouts(context.Background(), nil, newUser.ID, decimal.NewFromInt(3000))
	require.NoError(t, err)

	// 1 referral bonus + 2 audit allocations + 5 matrix levels.
	assert.Equal(t, 8, res.Payouts)
	assert.True(t, res.TotalAmount.Equal(decimal.NewFromInt(3000)),
		"total %s", res.TotalAmount)

	// Sponsor gets the referral bonus only; the matrix starts above them.
	assert.True(t, f.users.Users[sponsor.ID].Balance.Equal(decimal.NewFromInt(1000)))

	// Matrix amounts, nearest ancestor of the sponsor first.
	wantMatrix := []int64{200, 100, 70, 60, 70}
	for i, amount := range wantMatrix {
		ancestor := chain[4-i]
		assert.True(t, f.users.Users[ancestor.ID].Balance.Equal(decimal.NewFromInt(amount)),
			"level %d ancestor balance %s", i+1, f.users.Users[ancestor.ID].Balance)
		rows := f.earnings.ByType(ancestor.ID, domain.MatrixLevelEarning(i+1))
		require.Len(t, rows, 1)
		assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(amount)))
	}

	// Audit allocations sit on the new user without touching their balance.
	assert.True(t, f.users.Users[newUser.ID].Balance.IsZero())
	require.Len(t, f.earnings.ByType(newUser.ID, domain.EarningGlobalPoolROI), 1)
	require.Len(t, f.earnings.ByType(newUser.ID, domain.EarningOperationsCost), 1)
}

func TestActivationPayoutsNoSponsor(t *testing.T) {
	f := newEngineFixture(t)
	orphan := f.users.Seed(&domain.User{Username: "orphan"})

	res, err := f.engine.TriggerActivationPayouts(context.Background(), nil, orphan.ID, decimal.NewFromInt(3000))
	require.NoError(t, err)

	// Only the two audit allocations exist when there is nobody to pay.
	assert.Equal(t, 2, res.Payouts)
	assert.True(t, res.TotalAmount.Equal(decimal.NewFromInt(1500)))
	assert.True(t, f.users.Users[orphan.ID].Balance.IsZero())
}

func TestActivationPayoutsShortChain(t *testing.T) {
	f := newEngineFixture(t)
	root := f.users.Seed(&domain.User{Username: "root"})
	sponsor := f.users.Seed(&domain.User{Username: "sponsor", SponsorID: &root.ID})
	newUser := f.users.Seed(&domain.User{Username: "newbie", SponsorID: &sponsor.ID})

	res, err := f.engine.TriggerActivationPayouts(context.Background(), nil, newUser.ID, decimal.NewFromInt(3000))
	require.NoError(t, err)

	// Referral bonus + 2 audit rows + a single level-1 matrix payout to root.
	assert.Equal(t, 4, res.Payouts)
	assert.True(t, res.TotalAmount.Equal(decimal.NewFromInt(2700)))
	assert.True(t, f.users.Users[sponsor.ID].Balance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, f.users.Users[root.ID].Balance.Equal(decimal.NewFromInt(200)))
}

func TestActivationPayoutsUnknownUser(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.TriggerActivationPayouts(context.Background(), nil, 999, decimal.NewFromInt(3000))
	assert.Error(t, err)
}
