package auth

import (
	"context"
	"testing"
	"time"

	"referral-service/internal/domain"
	"referral-service/internal/jwtutil"
	"referral-service/internal/repository/repotest"
	xerrors "referral-service/internal/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthFixture(t *testing.T) (*Service, *repotest.FakeUserRepo, *jwtutil.Manager) {
	t.Helper()
	users := repotest.NewFakeUserRepo()
	tokens := jwtutil.NewManager("test-secret", "referral-service", time.Hour)
	return New(users, tokens, zap.NewNop()), users, tokens
}

func registerReq(username, email, phone string) RegisterRequest {
	return RegisterRequest{
		FirstName: "Ada",
		LastName:  "Obi",
		Email:     email,
		Phone:     phone,
		Username:  username,
		Password:  "Sup3rSecret",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, tokens := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, registerReq("adaobi", "ada@example.com", "08011111111"))
	require.NoError(t, err)
	assert.NotZero(t, res.User.ID)
	assert.Len(t, res.VerificationToken, 64)
	assert.False(t, res.User.EmailVerified)

	// Password is stored hashed, never verbatim.
	assert.NotEqual(t, "Sup3rSecret", res.User.PasswordHash)

	token, user, err := svc.Login(ctx, "adaobi", "Sup3rSecret")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)

	claims, err := tokens.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, jwtutil.RoleUser, claims.Role)

	// Email works as the identifier too.
	_, _, err = svc.Login(ctx, "ada@example.com", "Sup3rSecret")
	assert.NoError(t, err)
}

func TestRegisterWithSponsor(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	ctx := context.Background()
	sponsor := users.Seed(&domain.User{Username: "upline"})

	req := registerReq("member", "member@example.com", "08022222222")
	req.SponsorUsername = "upline"
	res, err := svc.Register(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, res.User.SponsorID)
	assert.Equal(t, sponsor.ID, *res.User.SponsorID)

	req = registerReq("other", "other@example.com", "08033333333")
	req.SponsorUsername = "nobody"
	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, xerrors.ErrSponsorNotFound)
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq("adaobi", "ada@example.com", "08011111111"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerReq("adaobi", "ada2@example.com", "08099999999"))
	assert.ErrorIs(t, err, xerrors.ErrUserAlreadyExists)
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq("adaobi", "ada@example.com", "08011111111"))
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "adaobi", "wrong-password")
	assert.ErrorIs(t, err, xerrors.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "ghost", "Sup3rSecret")
	assert.ErrorIs(t, err, xerrors.ErrInvalidCredentials)
}

func TestLoginRoleClaims(t *testing.T) {
	svc, users, tokens := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, registerReq("agent1x", "agent@example.com", "08044444444"))
	require.NoError(t, err)
	users.Users[res.User.ID].IsAgent = true

	token, _, err := svc.Login(ctx, "agent1x", "Sup3rSecret")
	require.NoError(t, err)
	claims, err := tokens.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, jwtutil.RoleAgent, claims.Role)
}

func TestVerifyEmailFlow(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, registerReq("adaobi", "ada@example.com", "08011111111"))
	require.NoError(t, err)

	require.NoError(t, svc.VerifyEmail(ctx, res.VerificationToken))
	assert.True(t, users.Users[res.User.ID].EmailVerified)

	// The token is single-use.
	err = svc.VerifyEmail(ctx, res.VerificationToken)
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)

	err = svc.VerifyEmail(ctx, "bogus-token")
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
}

func TestResendVerification(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, registerReq("adaobi", "ada@example.com", "08011111111"))
	require.NoError(t, err)

	rotated, err := svc.ResendVerification(ctx, "adaobi")
	require.NoError(t, err)
	assert.NotEqual(t, res.VerificationToken, rotated)

	// The old token no longer resolves, the new one does.
	assert.ErrorIs(t, svc.VerifyEmail(ctx, res.VerificationToken), xerrors.ErrInvalidToken)
	require.NoError(t, svc.VerifyEmail(ctx, rotated))

	_, err = svc.ResendVerification(ctx, "adaobi")
	assert.ErrorIs(t, err, xerrors.ErrInvalidRequest)
}
