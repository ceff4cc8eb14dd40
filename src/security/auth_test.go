package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/stockfolio/backend/src/config"
)

func init() {
	config.Cfg = &config.AppConfig{AccessTokenExpiry: time.Hour}
}

func TestHashAndComparePassword(t *testing.T) {
	svc := NewAuthService("test-secret-key-of-at-least-32-bytes!!")

	hash, err := svc.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.NoError(t, svc.CompareHashAndPassword(hash, "correct horse battery staple"))
	assert.Error(t, svc.CompareHashAndPassword(hash, "wrong password"))
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewAuthService("test-secret-key-of-at-least-32-bytes!!")

	token, err := svc.GenerateToken("42")
	require.NoError(t, err)

	sub, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	signer := NewAuthService("test-secret-key-of-at-least-32-bytes!!")
	verifier := NewAuthService("a-different-secret-also-32-bytes-long!")

	token, err := signer.GenerateToken("42")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewAuthService("test-secret-key-of-at-least-32-bytes!!")
	_, err := svc.ValidateToken("not.a.jwt")
	assert.Error(t, err)
}

func TestGenerateRefreshToken_Unique(t *testing.T) {
	svc := NewAuthService("test-secret-key-of-at-least-32-bytes!!")

	a, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := svc.GenerateRefreshToken()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
