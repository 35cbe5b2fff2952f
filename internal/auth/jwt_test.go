package auth

import (
	"testing"
	"time"

	"fieldserve/config"

	"github.com/stretchr/testify/require"
)

func testJWT() *config.JWTConfig {
	return &config.JWTConfig{AccessSecret: "secret", AccessExpiry: time.Minute, Issuer: "fieldserve"}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWT()
	tok, err := GenerateAccessToken(cfg, 7, "w@example.com", "WORKER")
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, tok)
	require.NoError(t, err)
	require.Equal(t, uint(7), claims.UserID)
	require.Equal(t, "w@example.com", claims.Email)
	require.Equal(t, "WORKER", claims.Role)
}

func TestParseRejectsWrongSecretAndExpired(t *testing.T) {
	cfg := testJWT()
	tok, err := GenerateAccessToken(cfg, 7, "w@example.com", "WORKER")
	require.NoError(t, err)

	other := testJWT()
	other.AccessSecret = "other"
	_, err = ParseAccessToken(other, tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := testJWT()
	expired.AccessExpiry = -time.Minute
	tok, err = GenerateAccessToken(expired, 7, "w@example.com", "WORKER")
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignIssuer(t *testing.T) {
	cfg := testJWT()
	foreign := testJWT()
	foreign.Issuer = "someone-else"
	tok, err := GenerateAccessToken(foreign, 7, "w@example.com", "WORKER")
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}
