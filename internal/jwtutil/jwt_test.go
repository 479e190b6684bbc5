package jwtutil

import (
	"testing"
	"time"

	xerrors "referral-service/internal/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	m := NewManager("secret", "referral-service", time.Hour)

	token, err := m.Generate(42, RoleAgent)
	require.NoError(t, err)

	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, RoleAgent, claims.Role)
	assert.Equal(t, "referral-service", claims.Issuer)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := NewManager("secret", "referral-service", time.Hour)
	token, err := m.Generate(1, RoleUser)
	require.NoError(t, err)

	other := NewManager("different", "referral-service", time.Hour)
	_, err = other.ParseAndValidate(token)
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	m := NewManager("secret", "someone-else", time.Hour)
	token, err := m.Generate(1, RoleUser)
	require.NoError(t, err)

	ours := NewManager("secret", "referral-service", time.Hour)
	_, err = ours.ParseAndValidate(token)
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewManager("secret", "referral-service", time.Nanosecond)
	token, err := m.Generate(1, RoleUser)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = m.ParseAndValidate(token)
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	m := NewManager("secret", "referral-service", time.Hour)
	_, err := m.ParseAndValidate("not.a.token")
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
}
