package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/pkg/jwtx"
)

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	login := func(t *testing.T, env *testEnv) domain.TokenPair {
		t.Helper()
		env.signup(t, "alice", "alice@example.com")
		res, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)
		require.NotNil(t, res.Tokens)
		return *res.Tokens
	}

	t.Run("rotates the refresh token", func(t *testing.T) {
		env := newTestEnv(t)
		pair := login(t, env)

		next, err := env.Tokens.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
		require.NotEmpty(t, next.AccessToken)

		// Session id survives rotation.
		oldClaims, err := env.Keys.Verifier().Verify(pair.RefreshToken, jwtx.TokenUseRefresh)
		require.NoError(t, err)
		newClaims, err := env.Keys.Verifier().Verify(next.RefreshToken, jwtx.TokenUseRefresh)
		require.NoError(t, err)
		require.Equal(t, oldClaims.SID, newClaims.SID)
		require.NotEqual(t, oldClaims.ID, newClaims.ID)
	})

	t.Run("replay of a rotated token kills the lineage", func(t *testing.T) {
		env := newTestEnv(t)
		pair := login(t, env)

		next, err := env.Tokens.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		// The old token comes back: someone other than the legitimate
		// client holds it.
		_, err = env.Tokens.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrSessionRevoked)

		// The new token is dead too.
		_, err = env.Tokens.Refresh(ctx, next.RefreshToken)
		require.ErrorIs(t, err, ErrSessionRevoked)
	})

	t.Run("picks up role changes", func(t *testing.T) {
		env := newTestEnv(t)
		pair := login(t, env)

		claims, err := env.Keys.Verifier().Verify(pair.AccessToken, jwtx.TokenUseAccess)
		require.NoError(t, err)
		require.NoError(t, env.Store.Users().UpdateRole(ctx, claims.Subject, domain.RoleAdmin))

		next, err := env.Tokens.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		refreshed, err := env.Keys.Verifier().Verify(next.AccessToken, jwtx.TokenUseAccess)
		require.NoError(t, err)
		require.Equal(t, "admin", refreshed.Role)
	})

	t.Run("deactivated user cannot refresh", func(t *testing.T) {
		env := newTestEnv(t)
		pair := login(t, env)

		claims, err := env.Keys.Verifier().Verify(pair.AccessToken, jwtx.TokenUseAccess)
		require.NoError(t, err)
		require.NoError(t, env.Store.Users().SetActive(ctx, claims.Subject, false))

		_, err = env.Tokens.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrAccountInactive)

		// The lineage is gone: reactivation does not revive the session.
		require.NoError(t, env.Store.Users().SetActive(ctx, claims.Subject, true))
		_, err = env.Tokens.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrSessionRevoked)
	})

	t.Run("rejects access tokens and garbage", func(t *testing.T) {
		env := newTestEnv(t)
		pair := login(t, env)

		_, err := env.Tokens.Refresh(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrInvalidToken)

		_, err = env.Tokens.Refresh(ctx, "garbage")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("preserves mfa_verified across rotation", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "bob", "bob@example.com")
		secret, _ := env.enableMFA(t, user.ID)

		res, err := env.Login.Login(ctx, "bob", testPassword, "")
		require.NoError(t, err)
		pair, err := env.MFA.VerifyChallenge(ctx, res.Challenge.MFAToken, env.totpCode(t, secret), "")
		require.NoError(t, err)

		next, err := env.Tokens.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		claims, err := env.Keys.Verifier().Verify(next.AccessToken, jwtx.TokenUseAccess)
		require.NoError(t, err)
		require.True(t, claims.MFAVerified)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes the session lineage", func(t *testing.T) {
		env := newTestEnv(t)
		env.signup(t, "alice", "alice@example.com")
		res, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)

		require.NoError(t, env.Tokens.Logout(ctx, res.Tokens.RefreshToken))

		_, err = env.Tokens.Refresh(ctx, res.Tokens.RefreshToken)
		require.ErrorIs(t, err, ErrSessionRevoked)
	})

	t.Run("is idempotent", func(t *testing.T) {
		env := newTestEnv(t)
		env.signup(t, "alice", "alice@example.com")
		res, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)

		require.NoError(t, env.Tokens.Logout(ctx, res.Tokens.RefreshToken))
		require.NoError(t, env.Tokens.Logout(ctx, res.Tokens.RefreshToken))
	})

	t.Run("does not touch other sessions", func(t *testing.T) {
		env := newTestEnv(t)
		env.signup(t, "alice", "alice@example.com")

		first, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)
		second, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)

		require.NoError(t, env.Tokens.Logout(ctx, first.Tokens.RefreshToken))

		_, err = env.Tokens.Refresh(ctx, second.Tokens.RefreshToken)
		require.NoError(t, err)
	})
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("role ordering", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.signup(t, "alice", "alice@example.com")
		require.NoError(t, env.Store.Users().UpdateRole(ctx, user.ID, domain.RoleAdmin))

		res, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)

		claims, err := env.Authorize.Authorize(ctx, res.Tokens.AccessToken, domain.RoleClient)
		require.NoError(t, err)
		require.Equal(t, user.ID, claims.Subject)

		_, err = env.Authorize.Authorize(ctx, res.Tokens.AccessToken, domain.RoleAdmin)
		require.NoError(t, err)

		_, err = env.Authorize.Authorize(ctx, res.Tokens.AccessToken, domain.RoleSuperAdmin)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("rejects refresh tokens and garbage", func(t *testing.T) {
		env := newTestEnv(t)
		env.signup(t, "alice", "alice@example.com")
		res, err := env.Login.Login(ctx, "alice", testPassword, "")
		require.NoError(t, err)

		_, err = env.Authorize.Authorize(ctx, res.Tokens.RefreshToken, domain.RoleClient)
		require.ErrorIs(t, err, ErrInvalidToken)

		_, err = env.Authorize.Authorize(ctx, "junk", domain.RoleClient)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
