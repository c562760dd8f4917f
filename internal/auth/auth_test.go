package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssueParseRoundTrip(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "ecotrack.test", TokenTTL: time.Hour}

	token, err := Issue("acct-1", "maya@example.com", cfg)
	require.NoError(t, err)

	claims, err := Parse(token, cfg)
	require.NoError(t, err)
	require.Equal(t, "acct-1", claims.AccountID)
	require.Equal(t, "maya@example.com", claims.Email)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "ecotrack.test", TokenTTL: time.Hour}

	token, err := Issue("acct-1", "maya@example.com", cfg)
	require.NoError(t, err)

	_, err = Parse(token, Config{Secret: "other-secret", Issuer: "ecotrack.test"})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "ecotrack.test", TokenTTL: time.Hour}

	token, err := Issue("acct-1", "maya@example.com", cfg)
	require.NoError(t, err)

	_, err = Parse(token, Config{Secret: "test-secret", Issuer: "someone-else"})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "ecotrack.test"}

	past := time.Now().Add(-time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "acct-1",
		"iss": cfg.Issuer,
		"iat": past.Unix(),
		"exp": past.Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = Parse(signed, cfg)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsEmptyToken(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "ecotrack.test"}

	_, err := Parse("", cfg)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(4) // minimum cost keeps the test fast

	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hash)

	require.NoError(t, hasher.Compare(hash, "s3cret"))
	require.Error(t, hasher.Compare(hash, "wrong"))
}
