package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(store *fakeStore) (*AuthService, *TokenIssuer) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour, fixedNow)
	svc := NewAuthServiceWithLogger(store, issuer, NewPasswordHasher(cheapArgon2), nil, sequence("user"), fixedNow, nil)
	return svc, issuer
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a regular user and issues a token", func(t *testing.T) {
		store := newFakeStore()
		svc, issuer := newTestAuthService(store)

		result, err := svc.Register(ctx, RegisterParams{Username: "  alice ", Email: "Alice@Example.COM", Password: "hunter22"})
		require.NoError(t, err)

		assert.Equal(t, "user-001", result.User.ID)
		assert.Equal(t, "alice", result.User.Username)
		assert.Equal(t, "alice@example.com", result.User.Email)
		assert.Equal(t, RoleUser, result.User.Role)
		assert.Equal(t, referenceNow.Add(time.Hour), result.ExpiresAt)

		claims, err := issuer.Parse(result.Token)
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, claims.Subject)

		stored := store.users[result.User.ID]
		assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
		assert.NotContains(t, stored.PasswordHash, "hunter22")
	})

	t.Run("validates fields", func(t *testing.T) {
		svc, _ := newTestAuthService(newFakeStore())

		_, err := svc.Register(ctx, RegisterParams{Username: "al", Email: "not-an-email", Password: "123"})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "username")
		assert.Contains(t, vErr.FieldErrors, "email")
		assert.Contains(t, vErr.FieldErrors, "password")
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		svc, _ := newTestAuthService(newFakeStore())

		_, err := svc.Register(ctx, RegisterParams{Username: "alice", Email: "alice@example.com", Password: "hunter22"})
		require.NoError(t, err)

		_, err = svc.Register(ctx, RegisterParams{Username: "alice2", Email: "ALICE@example.com", Password: "hunter22"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestAuthService_LoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc, _ := newTestAuthService(store)

	registered, err := svc.Register(ctx, RegisterParams{Username: "alice", Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)

	t.Run("logs in with matching credentials", func(t *testing.T) {
		result, err := svc.Login(ctx, LoginParams{Email: " ALICE@example.com ", Password: "hunter22"})
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, result.User.ID)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginParams{Email: "alice@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = svc.Login(ctx, LoginParams{Email: "nobody@example.com", Password: "hunter22"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("missing fields are validation errors", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginParams{})
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("authenticates a token to the stored role", func(t *testing.T) {
		creds := store.users[registered.User.ID]
		creds.User.Role = RoleAdmin
		store.users[registered.User.ID] = creds

		principal, err := svc.Authenticate(ctx, registered.Token)
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, principal.UserID)
		assert.Equal(t, "alice", principal.Username)
		assert.True(t, principal.IsAdmin)

		me, err := svc.CurrentUser(ctx, principal)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", me.Email)
	})

	t.Run("rejects empty and invalid tokens", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "")
		assert.ErrorIs(t, err, ErrUnauthenticated)

		_, err = svc.Authenticate(ctx, "garbage")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("rejects tokens of deleted users", func(t *testing.T) {
		require.NoError(t, store.DeleteUser(ctx, registered.User.ID))

		_, err := svc.Authenticate(ctx, registered.Token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}
