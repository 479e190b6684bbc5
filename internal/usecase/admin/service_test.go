package admin

import (
	"context"
	"testing"

	"referral-service/internal/domain"
	"referral-service/internal/repository/repotest"
	xerrors "referral-service/internal/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUpgradeToAgent(t *testing.T) {
	users := repotest.NewFakeUserRepo()
	svc := New(users, zap.NewNop())
	u := users.Seed(&domain.User{Username: "member"})

	updated, err := svc.UpgradeToAgent(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsAgent)

	_, err = svc.UpgradeToAgent(context.Background(), 999)
	assert.ErrorIs(t, err, xerrors.ErrUserNotFound)
}

func TestCreditCoupons(t *testing.T) {
	users := repotest.NewFakeUserRepo()
	svc := New(users, zap.NewNop())
	agent := users.Seed(&domain.User{Username: "agent", IsAgent: true})
	member := users.Seed(&domain.User{Username: "member"})

	updated, err := svc.CreditCoupons(context.Background(), agent.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.AgentCouponCredits)

	_, err = svc.CreditCoupons(context.Background(), member.ID, 5)
	assert.ErrorIs(t, err, xerrors.ErrAgentOnly)

	_, err = svc.CreditCoupons(context.Background(), agent.ID, 0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}
