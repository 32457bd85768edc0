package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/network"
	"github.com/annel0/tileworld/internal/world"
)

func newIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer([]byte(strings.Repeat("k", 32)), time.Hour)
	require.NoError(t, err)
	return ti
}

func TestTokenIssuer(t *testing.T) {
	ti := newIssuer(t)
	u := &User{ID: 7, Username: "alice", Role: world.RoleModerator}

	token, err := ti.Issue(u)
	require.NoError(t, err)

	claims, err := ti.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int32(7), claims.UserID)
	assert.Equal(t, world.RoleModerator, claims.Role)

	t.Run("expired", func(t *testing.T) {
		ti.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { ti.now = time.Now }()
		_, err := ti.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("foreign secret", func(t *testing.T) {
		other, err := NewTokenIssuer([]byte(strings.Repeat("x", 32)), time.Hour)
		require.NoError(t, err)
		_, err = other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("short secret", func(t *testing.T) {
		_, err := NewTokenIssuer([]byte("short"), time.Hour)
		assert.Error(t, err)
	})
}

func TestMemoryUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()

	u, err := repo.CreateUser(ctx, "Bob", "hash", world.RolePlayer)
	require.NoError(t, err)
	assert.Equal(t, int32(1), u.ID)

	_, err = repo.CreateUser(ctx, "bob", "other", world.RolePlayer)
	assert.ErrorIs(t, err, ErrUserExists, "имена без учёта регистра")

	got, err := repo.GetUserByName(ctx, "BOB")
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Username)

	_, err = repo.GetUserByID(ctx, 99)
	assert.ErrorIs(t, err, ErrUserNotFound)

	at := time.Unix(1700000000, 0)
	require.NoError(t, repo.TouchLogin(ctx, u.ID, at))
	got, _ = repo.GetUserByID(ctx, u.ID)
	assert.Equal(t, at, got.LastLogin)
}

func TestGameAuthenticator(t *testing.T) {
	ctx := context.Background()
	ti := newIssuer(t)

	t.Run("auto register then password", func(t *testing.T) {
		ga := NewGameAuthenticator(NewMemoryUserRepo(), ti, true)

		id, err := ga.Authenticate(ctx, map[string]string{"name": "carol", "password": "secret"})
		require.NoError(t, err)
		assert.Equal(t, int32(1), id.UserID)
		assert.NotEmpty(t, id.Token)

		again, err := ga.Authenticate(ctx, map[string]string{"name": "Carol", "password": "secret"})
		require.NoError(t, err)
		assert.Equal(t, id.UserID, again.UserID)

		_, err = ga.Authenticate(ctx, map[string]string{"name": "carol", "password": "wrong"})
		assert.ErrorIs(t, err, network.ErrUnauthorized)
	})

	t.Run("token", func(t *testing.T) {
		ga := NewGameAuthenticator(NewMemoryUserRepo(), ti, true)
		first, err := ga.Authenticate(ctx, map[string]string{"name": "dave", "password": "secret"})
		require.NoError(t, err)

		id, err := ga.Authenticate(ctx, map[string]string{"token": first.Token})
		require.NoError(t, err)
		assert.Equal(t, "dave", id.Name)

		_, err = ga.Authenticate(ctx, map[string]string{"token": "garbage"})
		assert.ErrorIs(t, err, network.ErrUnauthorized)
	})

	t.Run("no registration", func(t *testing.T) {
		ga := NewGameAuthenticator(NewMemoryUserRepo(), ti, false)
		_, err := ga.Authenticate(ctx, map[string]string{"name": "erin", "password": "secret"})
		assert.ErrorIs(t, err, network.ErrUnauthorized)

		_, err = ga.Authenticate(ctx, map[string]string{})
		assert.ErrorIs(t, err, network.ErrUnauthorized)
	})

	t.Run("register validation", func(t *testing.T) {
		ga := NewGameAuthenticator(NewMemoryUserRepo(), ti, true)
		_, err := ga.Register(ctx, "a b", "secret", world.RolePlayer)
		assert.Error(t, err)
		_, err = ga.Register(ctx, "frank", "12", world.RolePlayer)
		assert.Error(t, err)

		u, err := ga.Register(ctx, "frank", "1234", world.RoleDeveloper)
		require.NoError(t, err)
		assert.NotEqual(t, "1234", u.PasswordHash)
		assert.True(t, passwordMatches(u, "1234"))
		assert.False(t, passwordMatches(u, "4321"))
		assert.False(t, passwordMatches(&User{Username: "ghost"}, ""), "без хэша пароль не подходит")
	})
}
