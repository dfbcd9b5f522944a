package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tasklist/internal/adapters/repository"
	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/infrastructure/config"
	"github.com/taskmaster/tasklist/internal/infrastructure/logger"
	"github.com/taskmaster/tasklist/internal/ports"
)

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(repository.NewMemoryUserRepository(), config.JWTConfig{
		Secret:    "test-secret",
		ExpiresIn: time.Hour,
		Issuer:    "tasklist-test",
	}, logger.NewNop())
}

func TestAuth_RegisterLoginValidate(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	reg, err := auth.Register(ctx, ports.RegisterRequest{Username: "ada", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.Empty(t, reg.User.PasswordHash)
	assert.Equal(t, int64(3600), reg.ExpiresIn)

	_, err = auth.Register(ctx, ports.RegisterRequest{Username: "ada", Password: "another one"})
	assert.ErrorIs(t, err, entities.ErrUserExists)

	login, err := auth.Login(ctx, ports.LoginRequest{Username: "ada", Password: "correct horse"})
	require.NoError(t, err)

	claims, err := auth.ValidateToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)
	assert.Equal(t, "ada", claims.Username)
}

func TestAuth_InvalidCredentials(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()
	_, err := auth.Register(ctx, ports.RegisterRequest{Username: "ada", Password: "correct horse"})
	require.NoError(t, err)

	_, err = auth.Login(ctx, ports.LoginRequest{Username: "ada", Password: "wrong"})
	assert.ErrorIs(t, err, entities.ErrInvalidCredentials)

	_, err = auth.Login(ctx, ports.LoginRequest{Username: "bob", Password: "whatever"})
	assert.ErrorIs(t, err, entities.ErrInvalidCredentials)
}

func TestAuth_ValidateTokenRejectsForeignTokens(t *testing.T) {
	auth := newTestAuth(t)
	_, err := auth.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, entities.ErrUnauthorized)

	other := NewAuthService(repository.NewMemoryUserRepository(), config.JWTConfig{
		Secret: "other-secret", ExpiresIn: time.Hour, Issuer: "tasklist-test",
	}, logger.NewNop())
	token, err := other.IssueToken(&entities.User{ID: "u1", Username: "eve"})
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, entities.ErrUnauthorized)
}
