package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundtrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	userID := uuid.New()

	token, err := m.Generate(userID.String())
	require.NoError(t, err)

	got, err := m.VerifyUserID(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	exp, err := m.Expiry(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.Generate(uuid.NewString())
	require.NoError(t, err)

	_, err = NewJWTManager("other", time.Hour).Verify(token)
	assert.Error(t, err)
}

func TestExpiryWithoutExpClaim(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	// Корректно подписанный токен, в котором exp не выставлен
	claims := jwt.RegisteredClaims{Subject: uuid.NewString()}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Expiry(raw)
	assert.Error(t, err)
}
