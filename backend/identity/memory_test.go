package identity

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestMemoryProvider() *MemoryProvider {
	return NewMemoryProvider().WithBcryptCost(bcrypt.MinCost)
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	return apiErr.Status
}

func TestMemoryProviderSignupLoginRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestMemoryProvider()

	user, err := p.CreateUser(ctx, CreateUserParams{
		Email:        "Ann@Example.com",
		Password:     "secret1",
		EmailConfirm: true,
		UserMetadata: map[string]interface{}{"first_name": "Ann"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.NotNil(t, user.ConfirmedAt)

	session, err := p.SignInWithPassword(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", session.TokenType)
	assert.Equal(t, user.ID, session.User.ID)

	got, err := p.GetUser(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestMemoryProviderRejections(t *testing.T) {
	ctx := context.Background()
	p := newTestMemoryProvider()

	_, err := p.CreateUser(ctx, CreateUserParams{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = p.CreateUser(ctx, CreateUserParams{Email: "ann@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusUnprocessableEntity, apiStatus(t, err))

	_, err = p.SignInWithPassword(ctx, "ann@example.com", "wrong-password")
	assert.Equal(t, http.StatusBadRequest, apiStatus(t, err))

	_, err = p.SignInWithPassword(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, http.StatusBadRequest, apiStatus(t, err))

	_, err = p.GetUser(ctx, "garbage")
	assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err))

	other := newTestMemoryProvider()
	_, err = other.CreateUser(ctx, CreateUserParams{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	foreign, err := other.SignInWithPassword(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	_, err = p.GetUser(ctx, foreign.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err), "token signed by another provider")
}

func TestMemoryProviderTokenExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	p := newTestMemoryProvider().WithClock(func() time.Time { return now })

	_, err := p.CreateUser(ctx, CreateUserParams{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	session, err := p.SignInWithPassword(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	now = now.Add(2 * memorySessionTTL)
	_, err = p.GetUser(ctx, session.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err))
}

func TestMemoryProviderUpdateUser(t *testing.T) {
	ctx := context.Background()
	p := newTestMemoryProvider()

	ann, err := p.CreateUser(ctx, CreateUserParams{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = p.CreateUser(ctx, CreateUserParams{Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = p.UpdateUserByID(ctx, ann.ID, UpdateUserParams{Email: "bob@example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, apiStatus(t, err))

	_, err = p.UpdateUserByID(ctx, ann.ID, UpdateUserParams{Password: "123"})
	assert.Equal(t, http.StatusUnprocessableEntity, apiStatus(t, err))

	updated, err := p.UpdateUserByID(ctx, ann.ID, UpdateUserParams{Email: "ann.lee@example.com", Password: "secret2"})
	require.NoError(t, err)
	assert.Equal(t, "ann.lee@example.com", updated.Email)

	_, err = p.SignInWithPassword(ctx, "ann@example.com", "secret1")
	assert.Error(t, err)
	_, err = p.SignInWithPassword(ctx, "ann.lee@example.com", "secret2")
	assert.NoError(t, err)
}
